package reconcile

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/listsync/internal/models"
	"github.com/desertthunder/listsync/internal/realtime"
	"github.com/desertthunder/listsync/internal/shared"
)

// Snapshot is a point-in-time copy of a [View]. It shares no memory with the view.
type Snapshot struct {
	List           models.GroceryList
	Items          []models.ListItem
	ShareStatus    models.ShareStatus
	ShopkeeperName string
	Revoked        bool
	// Err is the user-facing message set when the share link was revoked.
	Err string
}

// ChangeFunc observes applied changes. kind is the realtime event, or "patch"
// and "replace" for local updates.
type ChangeFunc func(kind string, snap Snapshot)

// View holds the local state of one list. All methods are safe for concurrent use.
type View struct {
	logger   *log.Logger
	onChange ChangeFunc

	mu    sync.RWMutex
	state Snapshot
}

// ViewOption configures a [View].
type ViewOption func(*View)

// WithShare seeds the share indicator.
func WithShare(status models.ShareStatus, shopkeeper string) ViewOption {
	return func(v *View) {
		v.state.ShareStatus = status
		v.state.ShopkeeperName = shopkeeper
	}
}

// WithViewLogger sets the logger used for ignored payloads.
func WithViewLogger(l *log.Logger) ViewOption {
	return func(v *View) {
		if l != nil {
			v.logger = l
		}
	}
}

// OnChange registers fn to run after every applied change. It runs outside the
// view's lock on the goroutine that applied the change.
func OnChange(fn ChangeFunc) ViewOption {
	return func(v *View) { v.onChange = fn }
}

// NewView creates a view over list and items. list.Items is ignored.
func NewView(list models.GroceryList, items []models.ListItem, opts ...ViewOption) *View {
	list.Items = nil
	v := &View{logger: shared.DiscardLogger()}
	v.state.List = list
	v.state.Items = slices.Clone(items)
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (s Snapshot) clone() Snapshot {
	s.Items = slices.Clone(s.Items)
	return s
}

// Export converts the snapshot for the formatter. Share is nil when the list
// was never shared with this view.
func (s Snapshot) Export() *models.ListExport {
	export := &models.ListExport{List: s.List, Items: slices.Clone(s.Items)}
	if s.ShareStatus != "" || s.ShopkeeperName != "" {
		export.Share = &models.ShareData{Status: s.ShareStatus, ShopkeeperName: s.ShopkeeperName}
	}
	return export
}

// Persisted converts the snapshot for the offline cache.
func (s Snapshot) Persisted() *models.Snapshot {
	return models.NewSnapshot(s.List, s.Items, s.ShareStatus, s.ShopkeeperName, s.Revoked)
}

// Snapshot returns a copy of the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.clone()
}

// Items returns a copy of the item collection.
func (v *View) Items() []models.ListItem {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.state.Items)
}

// Item looks up an item by key.
func (v *View) Item(key string) (models.ListItem, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if i := indexOf(v.state.Items, key); i >= 0 {
		return v.state.Items[i], true
	}
	return models.ListItem{}, false
}

// Actionable reports whether mutations may still be offered. A revoked share
// keeps its last state visible but read-only.
func (v *View) Actionable() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return !v.state.Revoked
}

// update runs fn under the write lock and notifies on change.
func (v *View) update(kind string, fn func(s *Snapshot) bool) bool {
	v.mu.Lock()
	applied := fn(&v.state)
	var snap Snapshot
	if applied {
		snap = v.state.clone()
	}
	v.mu.Unlock()

	if applied && v.onChange != nil {
		v.onChange(kind, snap)
	}
	return applied
}

// Replace swaps in freshly fetched state, e.g. after a reload over HTTP.
// Share and revocation state is kept.
func (v *View) Replace(list models.GroceryList, items []models.ListItem) {
	list.Items = nil
	items = slices.Clone(items)
	v.update("replace", func(s *Snapshot) bool {
		s.List = list
		s.Items = items
		return true
	})
}

// PatchItem applies a full item, typically the response of an HTTP mutation.
// It reports whether an item with the same key existed.
func (v *View) PatchItem(item models.ListItem) bool {
	return v.update("patch", func(s *Snapshot) bool {
		items, ok := ItemUpdated(s.Items, item)
		if ok {
			s.Items = items
		}
		return ok
	})
}

// ApplyItemUpdated handles item.updated.
func (v *View) ApplyItemUpdated(payload json.RawMessage) bool {
	applied := v.update(string(realtime.EventItemUpdated), func(s *Snapshot) bool {
		items, ok := MergeItem(s.Items, payload)
		if ok {
			s.Items = items
		}
		return ok
	})
	if !applied {
		v.logger.Debug("item update ignored", "payload", string(payload))
	}
	return applied
}

// ApplyListUpdated handles list.updated.
func (v *View) ApplyListUpdated(payload json.RawMessage) bool {
	return v.update(string(realtime.EventListUpdated), func(s *Snapshot) bool {
		if !Concerns(payload, s.List.Key()) {
			return false
		}
		m, ok := MergeList(s.List, payload)
		if !ok {
			return false
		}
		s.List = m.List
		if m.ItemsReplaced {
			s.Items = m.Items
		}
		if m.Share != nil {
			if m.Share.ShopkeeperName != "" {
				s.ShopkeeperName = m.Share.ShopkeeperName
			}
			if m.Share.Status != "" {
				s.ShareStatus = m.Share.Status
			}
		}
		return true
	})
}

// ApplyListCompleted handles list.completed.
func (v *View) ApplyListCompleted(payload json.RawMessage) bool {
	return v.update(string(realtime.EventListCompleted), func(s *Snapshot) bool {
		if !Concerns(payload, s.List.Key()) {
			return false
		}
		s.List.Status = models.ListCompleted
		return true
	})
}

// ApplyShareAccepted handles share.accepted. The shopkeeper name is kept when
// the payload omits it.
func (v *View) ApplyShareAccepted(payload json.RawMessage) bool {
	return v.update(string(realtime.EventShareAccepted), func(s *Snapshot) bool {
		if !Concerns(payload, s.List.Key()) {
			return false
		}
		s.ShareStatus = models.ShareAccepted
		if m := fields(payload); m != nil {
			if name, ok := stringField(m, "shopkeeperName"); ok && name != "" {
				s.ShopkeeperName = name
			}
		}
		return true
	})
}

// ApplyShareRevoked handles share.revoked. Later item updates are still
// recorded; only [View.Actionable] changes.
func (v *View) ApplyShareRevoked(payload json.RawMessage) bool {
	return v.update(string(realtime.EventShareRevoked), func(s *Snapshot) bool {
		if !Concerns(payload, s.List.Key()) {
			return false
		}
		s.Revoked = true
		s.Err = shared.ErrShareRevoked.Error()
		return true
	})
}

// Handlers routes every inbound list event into the view.
func (v *View) Handlers() realtime.Handlers {
	return realtime.Handlers{
		OnListUpdated:   func(p json.RawMessage) { v.ApplyListUpdated(p) },
		OnItemUpdated:   func(p json.RawMessage) { v.ApplyItemUpdated(p) },
		OnListCompleted: func(p json.RawMessage) { v.ApplyListCompleted(p) },
		OnShareRevoked:  func(p json.RawMessage) { v.ApplyShareRevoked(p) },
		OnShareAccepted: func(p json.RawMessage) { v.ApplyShareAccepted(p) },
	}
}
