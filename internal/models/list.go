package models

import (
	"fmt"
	"strings"
)

// ItemStatus is the workflow state of a [ListItem].
type ItemStatus string

const (
	ItemToBuy       ItemStatus = "to_buy"
	ItemInProgress  ItemStatus = "in_progress"
	ItemDone        ItemStatus = "done"
	ItemUnavailable ItemStatus = "unavailable"
	ItemSubstituted ItemStatus = "substituted"
)

// ItemStatuses lists every item status in cycle order.
var ItemStatuses = []ItemStatus{ItemToBuy, ItemInProgress, ItemDone, ItemUnavailable, ItemSubstituted}

// Valid reports whether s is a known item status.
func (s ItemStatus) Valid() bool {
	for _, v := range ItemStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Next returns the status that follows s in the cycle, wrapping from
// substituted back to to_buy. Unknown statuses restart at to_buy.
func (s ItemStatus) Next() ItemStatus {
	for i, v := range ItemStatuses {
		if v == s {
			return ItemStatuses[(i+1)%len(ItemStatuses)]
		}
	}
	return ItemToBuy
}

// Label is the human readable form, e.g. "in progress".
func (s ItemStatus) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// ParseItemStatus accepts "in_progress", "in-progress" or "in progress" in any case.
func ParseItemStatus(s string) (ItemStatus, error) {
	norm := strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToLower(strings.TrimSpace(s)))
	st := ItemStatus(norm)
	if !st.Valid() {
		return "", fmt.Errorf("unknown item status %q", s)
	}
	return st, nil
}

// ListStatus is the lifecycle state of a [GroceryList].
type ListStatus string

const (
	ListDraft     ListStatus = "draft"
	ListShared    ListStatus = "shared"
	ListCompleted ListStatus = "completed"
)

// Valid reports whether s is a known list status.
func (s ListStatus) Valid() bool {
	switch s {
	case ListDraft, ListShared, ListCompleted:
		return true
	}
	return false
}

// ListItem is one entry of a grocery list.
type ListItem struct {
	MongoID   string     `json:"_id,omitempty"`
	ID        string     `json:"id,omitempty"`
	ListID    string     `json:"listId,omitempty"`
	Name      string     `json:"name"`
	Quantity  float64    `json:"quantity"`
	Unit      string     `json:"unit,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	Status    ItemStatus `json:"status"`
	CreatedAt string     `json:"createdAt,omitempty"`
	UpdatedAt string     `json:"updatedAt,omitempty"`
}

// Key is the canonical identity of the item: "_id" when present, otherwise "id".
func (i ListItem) Key() string {
	return key(i.MongoID, i.ID)
}

// GroceryList is a shopping list. Items is nil when the payload omitted it.
type GroceryList struct {
	MongoID   string     `json:"_id,omitempty"`
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	Status    ListStatus `json:"status"`
	UserID    string     `json:"userId,omitempty"`
	Items     []ListItem `json:"items,omitempty"`
	CreatedAt string     `json:"createdAt,omitempty"`
	UpdatedAt string     `json:"updatedAt,omitempty"`
}

// Key is the canonical identity of the list: "_id" when present, otherwise "id".
func (l GroceryList) Key() string {
	return key(l.MongoID, l.ID)
}

// NewItem is the body for creating an item.
type NewItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit,omitempty"`
	Notes    string  `json:"notes,omitempty"`
}

// Validate checks the fields required by the service.
func (n NewItem) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("item name is required")
	}
	if n.Quantity <= 0 {
		return fmt.Errorf("item quantity must be positive")
	}
	return nil
}

// ItemPatch is a partial item update. Nil fields are left untouched.
type ItemPatch struct {
	Name     *string     `json:"name,omitempty"`
	Quantity *float64    `json:"quantity,omitempty"`
	Unit     *string     `json:"unit,omitempty"`
	Notes    *string     `json:"notes,omitempty"`
	Status   *ItemStatus `json:"status,omitempty"`
}

// ListPatch is a partial list update. Nil fields are left untouched.
type ListPatch struct {
	Name   *string     `json:"name,omitempty"`
	Status *ListStatus `json:"status,omitempty"`
}

// Progress counts items by status.
type Progress struct {
	Total  int
	ByStat map[ItemStatus]int
}

// Done is the number of items that need no further shopping:
// done, unavailable and substituted items all count as handled.
func (p Progress) Done() int {
	return p.ByStat[ItemDone] + p.ByStat[ItemUnavailable] + p.ByStat[ItemSubstituted]
}

// Percent returns handled items as a percentage of the total.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Done()) * 100 / float64(p.Total)
}

// ProgressOf summarizes items.
func ProgressOf(items []ListItem) Progress {
	p := Progress{Total: len(items), ByStat: make(map[ItemStatus]int, len(ItemStatuses))}
	for _, it := range items {
		p.ByStat[it.Status]++
	}
	return p
}

// ListExport is a list together with its items, as written by exporters.
type ListExport struct {
	List  GroceryList `json:"list"`
	Items []ListItem  `json:"items"`
	Share *ShareData  `json:"share,omitempty"`
}
