package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/listsync/internal/models"
	"github.com/desertthunder/listsync/internal/realtime"
	"github.com/desertthunder/listsync/internal/reconcile"
	"github.com/desertthunder/listsync/internal/shared"
)

// ListAPI is the part of [services.ListService] a [Tracker] needs.
type ListAPI interface {
	List(ctx context.Context, listID string) (*models.GroceryList, error)
	Items(ctx context.Context, listID string) ([]models.ListItem, error)
	UpdateList(ctx context.Context, listID string, patch models.ListPatch) (*models.GroceryList, error)
	UpdateItem(ctx context.Context, listID, itemID string, patch models.ItemPatch) (*models.ListItem, error)
	ViewSharedList(ctx context.Context, token string) (*models.ShareResponse, error)
	AcceptShare(ctx context.Context, token, shopkeeperName string) (*models.ShareData, error)
	UpdateSharedListStatus(ctx context.Context, token string, status models.ListStatus) (*models.GroceryList, error)
	UpdateSharedItemStatus(ctx context.Context, token, itemID string, status models.ItemStatus, notes string) (*models.ListItem, error)
}

// Subscriber opens realtime subscriptions. Implemented by [realtime.Session].
type Subscriber interface {
	Subscribe(listID string, h realtime.Handlers, opts ...realtime.SubscribeOption) *realtime.Subscription
}

// Update is a reconciled state change of the tracked list.
type Update struct {
	// Kind is the realtime event name, or "load", "patch" and "replace" for local changes.
	Kind     string
	Snapshot reconcile.Snapshot
}

// TrackerOpts configures a [Tracker]. Owners set ListID; shopkeepers set
// ShareToken and may leave ListID empty.
type TrackerOpts struct {
	ListID     string
	ShareToken string
	Logger     *log.Logger
	// Buffer is the capacity of the updates channel, 64 when zero.
	Buffer int
}

// Tracker keeps one list in sync: it loads the list over HTTP, follows it
// over realtime, and applies local mutations optimistically.
type Tracker struct {
	api    ListAPI
	sub    Subscriber
	logger *log.Logger
	token  string

	mu           sync.Mutex
	listID       string
	view         *reconcile.View
	subscription *realtime.Subscription
	closed       bool

	updMu      sync.Mutex
	updates    chan Update
	updsClosed bool
}

// NewTracker creates a tracker. Nothing is fetched until [Tracker.Load].
func NewTracker(api ListAPI, sub Subscriber, opts TrackerOpts) *Tracker {
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	buf := opts.Buffer
	if buf <= 0 {
		buf = 64
	}
	return &Tracker{
		api:     api,
		sub:     sub,
		logger:  shared.WithLogger(logger, "component", "tracker"),
		token:   opts.ShareToken,
		listID:  opts.ListID,
		updates: make(chan Update, buf),
	}
}

// Shopkeeper reports whether the tracker works through a share token.
func (t *Tracker) Shopkeeper() bool {
	return t.token != ""
}

// sendUpdate sends an update through the channel without blocking.
// Updates are dropped while the channel is full; [Tracker.Snapshot] always has the latest state.
func (t *Tracker) sendUpdate(u Update) {
	t.updMu.Lock()
	defer t.updMu.Unlock()
	if t.updsClosed {
		return
	}
	select {
	case t.updates <- u:
	default:
		t.logger.Debug("update dropped, channel full", "kind", u.Kind)
	}
}

// Updates delivers every applied change. The channel is closed by [Tracker.Close].
func (t *Tracker) Updates() <-chan Update {
	return t.updates
}

func (t *Tracker) fetch(ctx context.Context) (models.GroceryList, []models.ListItem, *models.ShareData, error) {
	if t.token != "" {
		resp, err := t.api.ViewSharedList(ctx, t.token)
		if err != nil {
			if errors.Is(err, shared.ErrListNotFound) {
				return models.GroceryList{}, nil, nil, fmt.Errorf("%w: %v", shared.ErrShareRevoked, err)
			}
			return models.GroceryList{}, nil, nil, err
		}
		share := resp.Share
		return resp.List, resp.Items, &share, nil
	}

	t.mu.Lock()
	listID := t.listID
	t.mu.Unlock()
	if listID == "" {
		return models.GroceryList{}, nil, nil, fmt.Errorf("%w: list id or share token", shared.ErrMissingArgument)
	}

	list, err := t.api.List(ctx, listID)
	if err != nil {
		return models.GroceryList{}, nil, nil, err
	}
	items := list.Items
	if items == nil {
		if items, err = t.api.Items(ctx, listID); err != nil {
			return models.GroceryList{}, nil, nil, err
		}
	}
	return *list, items, nil, nil
}

// Load fetches the list and starts following it. Calling Load again
// refreshes the view from the server and keeps the subscription.
func (t *Tracker) Load(ctx context.Context) (reconcile.Snapshot, error) {
	list, items, share, err := t.fetch(ctx)
	if err != nil {
		return reconcile.Snapshot{}, err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return reconcile.Snapshot{}, shared.ErrConnectionClosed
	}
	if t.view != nil {
		view := t.view
		t.mu.Unlock()
		view.Replace(list, items)
		return view.Snapshot(), nil
	}

	opts := []reconcile.ViewOption{
		reconcile.WithViewLogger(t.logger),
		reconcile.OnChange(func(kind string, s reconcile.Snapshot) {
			t.sendUpdate(Update{Kind: kind, Snapshot: s})
		}),
	}
	if share != nil {
		opts = append(opts, reconcile.WithShare(share.Status, share.ShopkeeperName))
	}
	view := reconcile.NewView(list, items, opts...)
	t.view = view
	if list.Key() != "" {
		t.listID = list.Key()
	}
	listID := t.listID
	t.mu.Unlock()

	snap := view.Snapshot()
	t.sendUpdate(Update{Kind: "load", Snapshot: snap})

	var subOpts []realtime.SubscribeOption
	if t.token != "" {
		subOpts = append(subOpts, realtime.WithShareToken(t.token))
	}
	sub := t.sub.Subscribe(listID, view.Handlers(), subOpts...)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		sub.Close()
		return snap, shared.ErrConnectionClosed
	}
	t.subscription = sub
	t.mu.Unlock()

	t.logger.Debug("tracking list", "list", listID, "items", len(items), "shopkeeper", t.token != "")
	return snap, nil
}

// Snapshot returns the current view state. ok is false before Load.
func (t *Tracker) Snapshot() (reconcile.Snapshot, bool) {
	t.mu.Lock()
	view := t.view
	t.mu.Unlock()
	if view == nil {
		return reconcile.Snapshot{}, false
	}
	return view.Snapshot(), true
}

// Subscription returns the realtime subscription, nil before Load.
func (t *Tracker) Subscription() *realtime.Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.subscription
}

// actionable returns the view when mutations are allowed.
func (t *Tracker) actionable() (*reconcile.View, string, error) {
	t.mu.Lock()
	view, listID := t.view, t.listID
	t.mu.Unlock()
	if view == nil {
		return nil, "", shared.ErrNotLoaded
	}
	if !view.Actionable() {
		return nil, "", shared.ErrShareRevoked
	}
	return view, listID, nil
}

// CycleItem advances an item to the next status in the cycle.
func (t *Tracker) CycleItem(ctx context.Context, itemID string) (*models.ListItem, error) {
	view, _, err := t.actionable()
	if err != nil {
		return nil, err
	}
	item, ok := view.Item(itemID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrItemNotFound, itemID)
	}
	return t.SetItemStatus(ctx, itemID, item.Status.Next(), "")
}

// SetItemStatus changes the status of one item, with optional notes.
// Shopkeepers cannot edit items of a completed list.
func (t *Tracker) SetItemStatus(ctx context.Context, itemID string, status models.ItemStatus, notes string) (*models.ListItem, error) {
	view, listID, err := t.actionable()
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: item status %q", shared.ErrInvalidInput, status)
	}

	var updated *models.ListItem
	if t.token != "" {
		if view.Snapshot().List.Status == models.ListCompleted {
			return nil, shared.ErrListCompleted
		}
		updated, err = t.api.UpdateSharedItemStatus(ctx, t.token, itemID, status, notes)
	} else {
		patch := models.ItemPatch{Status: &status}
		if notes != "" {
			patch.Notes = &notes
		}
		updated, err = t.api.UpdateItem(ctx, listID, itemID, patch)
	}
	if err != nil {
		return nil, err
	}

	if !view.PatchItem(*updated) {
		t.logger.Debug("updated item not in view", "item", updated.Key())
	}
	return updated, nil
}

// CompleteList marks the list completed.
func (t *Tracker) CompleteList(ctx context.Context) (*models.GroceryList, error) {
	view, listID, err := t.actionable()
	if err != nil {
		return nil, err
	}

	var list *models.GroceryList
	if t.token != "" {
		list, err = t.api.UpdateSharedListStatus(ctx, t.token, models.ListCompleted)
	} else {
		status := models.ListCompleted
		list, err = t.api.UpdateList(ctx, listID, models.ListPatch{Status: &status})
	}
	if err != nil {
		return nil, err
	}

	view.ApplyListCompleted(nil)
	return list, nil
}

// AcceptShare accepts the share as shopkeeperName. Only valid for shopkeepers.
func (t *Tracker) AcceptShare(ctx context.Context, shopkeeperName string) (*models.ShareData, error) {
	if t.token == "" {
		return nil, fmt.Errorf("%w: accepting requires a share token", shared.ErrInvalidInput)
	}
	view, _, err := t.actionable()
	if err != nil {
		return nil, err
	}

	data, err := t.api.AcceptShare(ctx, t.token, shopkeeperName)
	if err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(map[string]string{"shopkeeperName": data.ShopkeeperName})
	view.ApplyShareAccepted(payload)
	return data, nil
}

// Close stops following the list and closes the updates channel.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	sub := t.subscription
	t.subscription = nil
	t.mu.Unlock()

	sub.Close()

	t.updMu.Lock()
	t.updsClosed = true
	close(t.updates)
	t.updMu.Unlock()
}
