package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is the last reconciled state of a list, cached for offline viewing.
type Snapshot struct {
	id             string
	sequence       int
	list           GroceryList
	items          []ListItem
	shareStatus    ShareStatus
	shopkeeperName string
	revoked        bool
	savedAt        time.Time
}

type snapshotPayload struct {
	List  GroceryList `json:"list"`
	Items []ListItem  `json:"items"`
}

// NewSnapshot captures list state. The items slice is copied.
func NewSnapshot(list GroceryList, items []ListItem, shareStatus ShareStatus, shopkeeperName string, revoked bool) *Snapshot {
	list.Items = nil
	return &Snapshot{
		list:           list,
		items:          append([]ListItem(nil), items...),
		shareStatus:    shareStatus,
		shopkeeperName: shopkeeperName,
		revoked:        revoked,
		savedAt:        time.Now().UTC(),
	}
}

// DecodeSnapshot rebuilds a Snapshot from its persisted columns.
func DecodeSnapshot(id string, sequence int, payload []byte, shareStatus ShareStatus, shopkeeperName string, revoked bool, savedAt time.Time) (*Snapshot, error) {
	var p snapshotPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot payload: %w", err)
	}
	return &Snapshot{
		id:             id,
		sequence:       sequence,
		list:           p.List,
		items:          p.Items,
		shareStatus:    shareStatus,
		shopkeeperName: shopkeeperName,
		revoked:        revoked,
		savedAt:        savedAt,
	}, nil
}

func (s *Snapshot) ID() string { return s.id }
func (s *Snapshot) Sequence() int { return s.sequence }
func (s *Snapshot) ListKey() string { return s.list.Key() }
func (s *Snapshot) List() GroceryList { return s.list }
func (s *Snapshot) Items() []ListItem { return s.items }
func (s *Snapshot) ShareStatus() ShareStatus { return s.shareStatus }
func (s *Snapshot) ShopkeeperName() string { return s.shopkeeperName }
func (s *Snapshot) Revoked() bool { return s.revoked }
func (s *Snapshot) CreatedAt() time.Time { return s.savedAt }
func (s *Snapshot) SetID(id string) { s.id = id }
func (s *Snapshot) SetSequence(sequence int) { s.sequence = sequence }
func (s *Snapshot) SetSavedAt(savedAt time.Time) { s.savedAt = savedAt }

// Payload encodes the list and items for storage.
func (s *Snapshot) Payload() ([]byte, error) {
	return json.Marshal(snapshotPayload{List: s.list, Items: s.items})
}

// Validate checks that the snapshot can be keyed by list.
func (s *Snapshot) Validate() error {
	if s.list.Key() == "" {
		return fmt.Errorf("snapshot list has no identifier")
	}
	return nil
}
