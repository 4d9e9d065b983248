package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/listsync/internal/formatter"
	"github.com/desertthunder/listsync/internal/realtime"
	"github.com/desertthunder/listsync/internal/repositories"
	"github.com/desertthunder/listsync/internal/shared"
	"github.com/desertthunder/listsync/internal/tasks"
)

// statusListener logs connection lifecycle changes of the realtime session.
type statusListener struct {
	logger *log.Logger
}

var _ realtime.Listener = (*statusListener)(nil)

func (l *statusListener) OnConnected() {
	l.logger.Info("connected")
}

func (l *statusListener) OnDisconnected(reason string) {
	l.logger.Warn("disconnected, reconnecting", "reason", reason)
}

func (l *statusListener) OnError(err error) {
	l.logger.Error("realtime error", "error", err)
}

// Watch loads a list and prints every reconciled update until interrupted.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	listID := cmd.StringArg("list")
	token := cmd.String("share-token")
	if listID == "" && token == "" {
		return fmt.Errorf("%w: list id or --share-token", shared.ErrMissingArgument)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var snapshots *repositories.SnapshotRepository
	if cmd.Bool("cache") {
		db, err := r.openCache()
		if err != nil {
			return err
		}
		defer db.Close()
		snapshots = repositories.NewSnapshotRepository(db)
	}
	keep := int(cmd.Int("keep"))

	session := r.session()
	defer session.Close()

	tracker := tasks.NewTracker(r.api, session, tasks.TrackerOpts{
		ListID:     listID,
		ShareToken: token,
		Logger:     r.logger,
	})
	defer tracker.Close()

	loaded, err := tracker.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load list: %w", err)
	}
	if tracker.Subscription() == nil {
		r.logger.Warn("list has no id, live updates unavailable", "shared", token != "")
	} else {
		r.logger.Info("watching list", "list", loaded.List.Key(), "endpoint", r.config.Realtime.Endpoint)
	}

	for {
		select {
		case <-ctx.Done():
			r.writePlainln("%s", formatter.Muted("stopped watching"))
			return nil
		case u, ok := <-tracker.Updates():
			if !ok {
				return nil
			}

			r.writePlain("%s %s\n", formatter.Muted(time.Now().Format(time.TimeOnly)), formatter.Title(u.Kind))
			if err := r.render(cmd, u.Snapshot.Export()); err != nil {
				return err
			}
			if u.Snapshot.Revoked {
				r.writePlain("%s\n", formatter.Error(u.Snapshot.Err))
			}

			if snapshots != nil {
				if err := snapshots.Save(u.Snapshot.Persisted(), keep); err != nil {
					r.logger.Warn("failed to cache snapshot", "error", err)
				}
			}
		}
	}
}
