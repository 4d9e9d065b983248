package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/listsync/internal/formatter"
	"github.com/desertthunder/listsync/internal/models"
	"github.com/desertthunder/listsync/internal/shared"
	"github.com/desertthunder/listsync/internal/tasks"
)

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := strings.TrimSpace(cmd.StringArg(name))
	if v == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	return v, nil
}

// render prints export as the styled board, or in the format named by --format.
func (r *Runner) render(cmd *cli.Command, export *models.ListExport) error {
	name := cmd.String("format")
	if name == "" {
		return r.writePlain("%s\n", formatter.Board(export))
	}

	f, err := formatter.ParseFormat(name)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}
	data, err := formatter.Render(export, f)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeList(list *models.GroceryList) error {
	return r.writePlain("%s  %s  %s\n", list.Key(), formatter.Title(list.Name), formatter.ListStatusLabel(list.Status))
}

// ListsList prints the lists of the authenticated user.
func (r *Runner) ListsList(ctx context.Context, cmd *cli.Command) error {
	lists, err := r.api.Lists(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch lists: %w", err)
	}

	if s := cmd.String("status"); s != "" {
		status := models.ListStatus(strings.ToLower(s))
		if !status.Valid() {
			return fmt.Errorf("%w: status %q", shared.ErrInvalidFlag, s)
		}
		filtered := lists[:0]
		for _, l := range lists {
			if l.Status == status {
				filtered = append(filtered, l)
			}
		}
		lists = filtered
	}

	return r.writeResult(cmd, lists, func() error {
		if len(lists) == 0 {
			return r.writePlain("%s\n", formatter.Muted("No lists"))
		}
		r.writePlainHeader(fmt.Sprintf("Lists (%d)", len(lists)))
		for i := range lists {
			r.writeList(&lists[i])
		}
		return nil
	})
}

// ListsCreate creates a list.
func (r *Runner) ListsCreate(ctx context.Context, cmd *cli.Command) error {
	name, err := requireArg(cmd, "name")
	if err != nil {
		return err
	}

	list, err := r.api.CreateList(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to create list: %w", err)
	}
	r.logger.Info("list created", "id", list.Key(), "name", list.Name)

	return r.writeResult(cmd, list, func() error {
		r.writePlain("%s\n", formatter.Success("✓ List created"))
		return r.writeList(list)
	})
}

// ListsShow prints a list with its items.
func (r *Runner) ListsShow(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	export, err := r.fetchExport(ctx, id)
	if err != nil {
		return err
	}

	return r.writeResult(cmd, export, func() error {
		return r.render(cmd, export)
	})
}

func (r *Runner) fetchExport(ctx context.Context, id string) (*models.ListExport, error) {
	list, err := r.api.List(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch list: %w", err)
	}

	items := list.Items
	if items == nil {
		if items, err = r.api.Items(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to fetch items: %w", err)
		}
	}
	list.Items = nil
	return &models.ListExport{List: *list, Items: items}, nil
}

func (r *Runner) updateList(ctx context.Context, cmd *cli.Command, patch models.ListPatch) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	list, err := r.api.UpdateList(ctx, id, patch)
	if err != nil {
		return fmt.Errorf("failed to update list: %w", err)
	}
	r.logger.Info("list updated", "id", list.Key())

	return r.writeResult(cmd, list, func() error {
		r.writePlain("%s\n", formatter.Success("✓ List updated"))
		return r.writeList(list)
	})
}

// ListsRename changes the name of a list.
func (r *Runner) ListsRename(ctx context.Context, cmd *cli.Command) error {
	name, err := requireArg(cmd, "name")
	if err != nil {
		return err
	}
	return r.updateList(ctx, cmd, models.ListPatch{Name: &name})
}

// ListsStatus changes the status of a list.
func (r *Runner) ListsStatus(ctx context.Context, cmd *cli.Command) error {
	s, err := requireArg(cmd, "status")
	if err != nil {
		return err
	}
	status := models.ListStatus(strings.ToLower(s))
	if !status.Valid() {
		return fmt.Errorf("%w: list status %q", shared.ErrInvalidArgument, s)
	}
	return r.updateList(ctx, cmd, models.ListPatch{Status: &status})
}

// ListsDelete deletes a list.
func (r *Runner) ListsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	if err := r.api.DeleteList(ctx, id); err != nil {
		return fmt.Errorf("failed to delete list: %w", err)
	}
	r.logger.Info("list deleted", "id", id)
	return r.writePlain("%s %s\n", formatter.Success("✓ Deleted"), id)
}

// ListsDuplicate copies a list with its items.
func (r *Runner) ListsDuplicate(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	list, err := r.api.DuplicateList(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to duplicate list: %w", err)
	}
	r.logger.Info("list duplicated", "from", id, "to", list.Key())

	return r.writeResult(cmd, list, func() error {
		r.writePlain("%s\n", formatter.Success("✓ List duplicated"))
		return r.writeList(list)
	})
}

// ListsExport writes lists to files with a manifest, reporting progress as it goes.
func (r *Runner) ListsExport(ctx context.Context, cmd *cli.Command) error {
	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	ids := cmd.Args().Slice()
	if cmd.Bool("all") {
		lists, err := r.api.Lists(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch lists: %w", err)
		}
		ids = ids[:0]
		for _, l := range lists {
			ids = append(ids, l.Key())
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: pass list IDs or --all", shared.ErrMissingArgument)
	}

	prog := make(chan tasks.ProgressUpdate, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range prog {
			if u.Phase == tasks.ExportList && u.Total > 0 {
				r.writePlain("[%d/%d] %s\n", u.Step, u.Total, u.Message)
			} else {
				r.writePlain("%s\n", formatter.Muted(u.Message))
			}
		}
	}()

	result, err := tasks.ExportLists(ctx, prog, r.api, ids, tasks.ExportOpts{
		Format:     f,
		OutputDir:  cmd.String("output"),
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  cmd.Float("rate-limit"),
	})
	close(prog)
	wg.Wait()
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	r.writePlainln("%s %d of %d lists to %s", formatter.Success("✓ Exported"), result.Successful, result.Total, result.OutputDirectory)
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}
	for _, res := range result.Results {
		if !res.Success {
			r.writePlain("%s %s: %v\n", formatter.Error("✗"), res.ListID, res.Error)
		}
	}
	return nil
}
