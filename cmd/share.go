package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/listsync/internal/formatter"
	"github.com/desertthunder/listsync/internal/models"
	"github.com/desertthunder/listsync/internal/repositories"
	"github.com/desertthunder/listsync/internal/shared"
)

// ShareLink generates a share link for a list.
func (r *Runner) ShareLink(ctx context.Context, cmd *cli.Command) error {
	listID, err := requireArg(cmd, "list")
	if err != nil {
		return err
	}
	shopkeeper := cmd.String("shopkeeper")

	link, err := r.api.GenerateLink(ctx, listID, shopkeeper)
	if err != nil {
		return fmt.Errorf("failed to generate share link: %w", err)
	}
	r.logger.Info("share link generated", "list", listID)

	if cmd.Bool("remember") {
		if err := r.rememberToken(listID, shopkeeper, link.ShareToken); err != nil {
			return err
		}
	}

	if cmd.Bool("open") && link.ShareURL != "" {
		if err := shared.OpenBrowser(link.ShareURL); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	}

	return r.writeResult(cmd, link, func() error {
		r.writePlain("%s\n", formatter.Success("✓ Share link generated"))
		r.writePlain("Token: %s\n", link.ShareToken)
		if link.ShareURL != "" {
			r.writePlain("URL:   %s\n", link.ShareURL)
		}
		return nil
	})
}

func (r *Runner) rememberToken(listID, shopkeeper, token string) error {
	db, err := r.openCache()
	if err != nil {
		return err
	}
	defer db.Close()

	err = repositories.NewShareTokenRepository(db).Put(&models.ShareToken{
		Token:          token,
		ListKey:        listID,
		ShopkeeperName: shopkeeper,
	})
	if err != nil {
		return err
	}
	r.logger.Debug("share token stored", "list", listID)
	return nil
}

// forgetTokens drops cached tokens of a revoked list. It does nothing without a cache.
func (r *Runner) forgetTokens(listID string) {
	if _, err := os.Stat(r.config.Database.Path); err != nil {
		return
	}
	db, err := r.openCache()
	if err != nil {
		r.logger.Debug("cache unavailable", "error", err)
		return
	}
	defer db.Close()

	repo := repositories.NewShareTokenRepository(db)
	for {
		tok, err := repo.ForList(listID)
		if err != nil {
			return
		}
		if err := repo.Delete(tok.Token); err != nil {
			r.logger.Warn("failed to forget share token", "error", err)
			return
		}
	}
}

// ShareRevoke revokes the share link of a list.
func (r *Runner) ShareRevoke(ctx context.Context, cmd *cli.Command) error {
	listID, err := requireArg(cmd, "list")
	if err != nil {
		return err
	}

	if err := r.api.RevokeLink(ctx, listID); err != nil {
		return fmt.Errorf("failed to revoke share link: %w", err)
	}
	r.logger.Info("share link revoked", "list", listID)
	r.forgetTokens(listID)
	return r.writePlain("%s %s\n", formatter.Success("✓ Share link revoked for"), listID)
}

// ShareView prints a shared list as the shopkeeper sees it.
func (r *Runner) ShareView(ctx context.Context, cmd *cli.Command) error {
	token, err := requireArg(cmd, "token")
	if err != nil {
		return err
	}

	resp, err := r.api.ViewSharedList(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to view shared list: %w", err)
	}

	return r.writeResult(cmd, resp, func() error {
		share := resp.Share
		return r.writePlain("%s\n", formatter.Board(&models.ListExport{List: resp.List, Items: resp.Items, Share: &share}))
	})
}

// ShareAccept accepts a shared list as shopkeeper.
func (r *Runner) ShareAccept(ctx context.Context, cmd *cli.Command) error {
	token, err := requireArg(cmd, "token")
	if err != nil {
		return err
	}
	name, err := requireArg(cmd, "name")
	if err != nil {
		return err
	}

	data, err := r.api.AcceptShare(ctx, token, name)
	if err != nil {
		return fmt.Errorf("failed to accept share: %w", err)
	}
	r.logger.Info("share accepted", "shopkeeper", data.ShopkeeperName)

	return r.writeResult(cmd, data, func() error {
		return r.writePlain("%s\n", formatter.ShareLabel(data.Status, data.ShopkeeperName, false))
	})
}

// ShareStatus sets the status of a shared list.
func (r *Runner) ShareStatus(ctx context.Context, cmd *cli.Command) error {
	token, err := requireArg(cmd, "token")
	if err != nil {
		return err
	}
	s, err := requireArg(cmd, "status")
	if err != nil {
		return err
	}
	status := models.ListStatus(strings.ToLower(s))
	if !status.Valid() {
		return fmt.Errorf("%w: list status %q", shared.ErrInvalidArgument, s)
	}

	list, err := r.api.UpdateSharedListStatus(ctx, token, status)
	if err != nil {
		return fmt.Errorf("failed to update shared list: %w", err)
	}

	return r.writeResult(cmd, list, func() error {
		return r.writeList(list)
	})
}

// ShareItem sets the status of an item of a shared list.
func (r *Runner) ShareItem(ctx context.Context, cmd *cli.Command) error {
	token, err := requireArg(cmd, "token")
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

	item, err := r.api.UpdateSharedItemStatus(ctx, token, itemID, status, cmd.String("notes"))
	if err != nil {
		return fmt.Errorf("failed to update shared item: %w", err)
	}

	return r.writeResult(cmd, item, func() error {
		return r.writeItem(item)
	})
}
