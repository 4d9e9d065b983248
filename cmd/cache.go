package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/listsync/internal/formatter"
	"github.com/desertthunder/listsync/internal/models"
	"github.com/desertthunder/listsync/internal/repositories"
)

// cachedList is the JSON form of a cached snapshot.
type cachedList struct {
	ListID         string             `json:"list_id"`
	Name           string             `json:"name"`
	Status         models.ListStatus  `json:"status"`
	Items          int                `json:"items"`
	ShareStatus    models.ShareStatus `json:"share_status,omitempty"`
	ShopkeeperName string             `json:"shopkeeper_name,omitempty"`
	Revoked        bool               `json:"revoked"`
	SavedAt        time.Time          `json:"saved_at"`
}

// CacheList prints the newest cached snapshot of every list.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openCache()
	if err != nil {
		return err
	}
	defer db.Close()

	snaps, err := repositories.NewSnapshotRepository(db).Lists()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	out := make([]cachedList, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, cachedList{
			ListID:         s.ListKey(),
			Name:           s.List().Name,
			Status:         s.List().Status,
			Items:          len(s.Items()),
			ShareStatus:    s.ShareStatus(),
			ShopkeeperName: s.ShopkeeperName(),
			Revoked:        s.Revoked(),
			SavedAt:        s.CreatedAt(),
		})
	}

	return r.writeResult(cmd, out, func() error {
		if len(out) == 0 {
			return r.writePlain("%s\n", formatter.Muted("Cache is empty"))
		}
		r.writePlainHeader(fmt.Sprintf("Cached lists (%d)", len(out)))
		for _, c := range out {
			r.writePlain("%s  %s  %s  %s\n",
				c.ListID,
				formatter.Title(c.Name),
				formatter.ListStatusLabel(c.Status),
				formatter.Muted(c.SavedAt.Local().Format(time.DateTime)),
			)
		}
		return nil
	})
}

// CacheShow prints the last cached state of a list.
func (r *Runner) CacheShow(ctx context.Context, cmd *cli.Command) error {
	listID, err := requireArg(cmd, "list")
	if err != nil {
		return err
	}

	db, err := r.openCache()
	if err != nil {
		return err
	}
	defer db.Close()

	snap, err := repositories.NewSnapshotRepository(db).Latest(listID)
	if err != nil {
		return err
	}

	export := &models.ListExport{List: snap.List(), Items: snap.Items()}
	if snap.ShareStatus() != "" || snap.ShopkeeperName() != "" {
		export.Share = &models.ShareData{Status: snap.ShareStatus(), ShopkeeperName: snap.ShopkeeperName()}
	}

	r.writePlain("%s\n", formatter.Muted("cached "+snap.CreatedAt().Local().Format(time.DateTime)))
	if err := r.render(cmd, export); err != nil {
		return err
	}
	if snap.Revoked() {
		r.writePlain("%s\n", formatter.ShareLabel(snap.ShareStatus(), snap.ShopkeeperName(), true))
	}
	return nil
}

// CacheRemove deletes every cached snapshot of a list.
func (r *Runner) CacheRemove(ctx context.Context, cmd *cli.Command) error {
	listID, err := requireArg(cmd, "list")
	if err != nil {
		return err
	}

	db, err := r.openCache()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repositories.NewSnapshotRepository(db).DeleteList(listID); err != nil {
		return err
	}
	r.logger.Info("cache cleared", "list", listID)
	return r.writePlain("%s %s\n", formatter.Success("✓ Removed cached snapshots of"), listID)
}
