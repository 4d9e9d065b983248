package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/listsync/internal/formatter"
	"github.com/desertthunder/listsync/internal/models"
	"github.com/desertthunder/listsync/internal/shared"
)

func (r *Runner) writeItem(item *models.ListItem) error {
	line := fmt.Sprintf("%s  %s  %s", item.Key(), item.Name, formatter.StatusLabel(item.Status))
	if item.Notes != "" {
		line += "  " + formatter.Muted(item.Notes)
	}
	return r.writePlain("%s\n", line)
}

// ItemsList prints the items of a list with the shopping progress.
func (r *Runner) ItemsList(ctx context.Context, cmd *cli.Command) error {
	listID, err := requireArg(cmd, "list")
	if err != nil {
		return err
	}

	items, err := r.api.Items(ctx, listID)
	if err != nil {
		return fmt.Errorf("failed to fetch items: %w", err)
	}

	return r.writeResult(cmd, items, func() error {
		p := models.ProgressOf(items)
		r.writePlainHeader(fmt.Sprintf("Items %s", formatter.FormatProgress(p)))
		for i := range items {
			r.writeItem(&items[i])
		}
		return r.writePlain("%s\n", formatter.ProgressBar(p, 30))
	})
}

// ItemsAdd adds an item to a list.
func (r *Runner) ItemsAdd(ctx context.Context, cmd *cli.Command) error {
	listID, err := requireArg(cmd, "list")
	if err != nil {
		return err
	}

	item := models.NewItem{
		Name:     cmd.StringArg("name"),
		Quantity: cmd.Float("quantity"),
		Unit:     cmd.String("unit"),
		Notes:    cmd.String("notes"),
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	created, err := r.api.AddItem(ctx, listID, item)
	if err != nil {
		return fmt.Errorf("failed to add item: %w", err)
	}
	r.logger.Info("item added", "list", listID, "item", created.Key())

	return r.writeResult(cmd, created, func() error {
		r.writePlain("%s\n", formatter.Success("✓ Item added"))
		return r.writeItem(created)
	})
}

func (r *Runner) patchItem(ctx context.Context, cmd *cli.Command, listID, itemID string, patch models.ItemPatch) error {
	updated, err := r.api.UpdateItem(ctx, listID, itemID, patch)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	r.logger.Info("item updated", "list", listID, "item", updated.Key(), "status", updated.Status)

	return r.writeResult(cmd, updated, func() error {
		return r.writeItem(updated)
	})
}

// ItemsStatus sets the status of an item.
func (r *Runner) ItemsStatus(ctx context.Context, cmd *cli.Command) error {
	listID, err := requireArg(cmd, "list")
	if err != nil {
		return err
	}
	itemID, err := requireArg(cmd, "item")
	if err != nil {
		return err
	}
	status, err := models.ParseItemStatus(cmd.StringArg("status"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	patch := models.ItemPatch{Status: &status}
	if cmd.IsSet("notes") {
		notes := cmd.String("notes")
		patch.Notes = &notes
	}
	return r.patchItem(ctx, cmd, listID, itemID, patch)
}

// ItemsCycle advances an item to the next status.
func (r *Runner) ItemsCycle(ctx context.Context, cmd *cli.Command) error {
	listID, err := requireArg(cmd, "list")
	if err != nil {
		return err
	}
	itemID, err := requireArg(cmd, "item")
	if err != nil {
		return err
	}

	item, err := r.api.Item(ctx, listID, itemID)
	if err != nil {
		return fmt.Errorf("failed to fetch item: %w", err)
	}
	next := item.Status.Next()
	return r.patchItem(ctx, cmd, listID, itemID, models.ItemPatch{Status: &next})
}

// ItemsDelete removes an item from a list.
func (r *Runner) ItemsDelete(ctx context.Context, cmd *cli.Command) error {
	listID, err := requireArg(cmd, "list")
	if err != nil {
		return err
	}
	itemID, err := requireArg(cmd, "item")
	if err != nil {
		return err
	}

	if err := r.api.DeleteItem(ctx, listID, itemID); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	r.logger.Info("item deleted", "list", listID, "item", itemID)
	return r.writePlain("%s %s\n", formatter.Success("✓ Deleted"), itemID)
}
