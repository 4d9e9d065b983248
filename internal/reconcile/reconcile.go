// Package reconcile merges realtime payloads into a local copy of list state.
//
// The functions here never fail: malformed payloads leave state unchanged and
// payloads with wrongly typed fields apply whatever did decode. Applying the
// same update twice yields the same state as applying it once, so optimistic
// patches from HTTP responses and the realtime events describing the same
// change can arrive in either order.
package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/desertthunder/listsync/internal/models"
)

// decode unmarshals data into v, treating type mismatches as partial success.
func decode(data []byte, v any) bool {
	err := json.Unmarshal(data, v)
	if err == nil {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &typeErr)
}

// fields splits a JSON object payload into its members. Non-objects yield nil.
func fields(payload json.RawMessage) map[string]json.RawMessage {
	if len(payload) == 0 {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil
	}
	return m
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func stringField(m map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := m[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// indexOf returns the position of the item keyed key, or -1. Empty keys never match.
func indexOf(items []models.ListItem, key string) int {
	if key == "" {
		return -1
	}
	for i := range items {
		if items[i].Key() == key {
			return i
		}
	}
	return -1
}

// ItemUpdated replaces the item sharing updated's key. When nothing matches,
// items is returned as is and the second result is false. The input slice is
// never modified.
func ItemUpdated(items []models.ListItem, updated models.ListItem) ([]models.ListItem, bool) {
	i := indexOf(items, updated.Key())
	if i < 0 {
		return items, false
	}
	out := make([]models.ListItem, len(items))
	copy(out, items)
	out[i] = updated
	return out, true
}

// MergeItem applies an item.updated payload. Fields present in the payload
// replace those of the matching item; absent fields keep their value.
func MergeItem(items []models.ListItem, payload json.RawMessage) ([]models.ListItem, bool) {
	m := fields(payload)
	if m == nil {
		return items, false
	}

	var id models.ListItem
	mongoID, _ := stringField(m, "_id")
	plainID, _ := stringField(m, "id")
	id.MongoID, id.ID = mongoID, plainID

	i := indexOf(items, id.Key())
	if i < 0 {
		return items, false
	}

	merged := items[i]
	if !decode(payload, &merged) {
		return items, false
	}
	return ItemUpdated(items, merged)
}

// ShareMeta is share information carried by list.updated payloads, either at
// the top level ("shopkeeperName") or under "share".
type ShareMeta struct {
	ShopkeeperName string
	Status         models.ShareStatus
}

// ListMerge is the result of [MergeList].
type ListMerge struct {
	List          models.GroceryList
	Items         []models.ListItem
	ItemsReplaced bool
	Share         *ShareMeta
}

// MergeList applies a list.updated payload to list. When the payload carries
// "items" the collection is replaced wholesale; otherwise Items is nil and
// ItemsReplaced false.
func MergeList(list models.GroceryList, payload json.RawMessage) (ListMerge, bool) {
	m := fields(payload)
	if m == nil {
		return ListMerge{List: list}, false
	}

	merged := list
	merged.Items = nil
	if !decode(payload, &merged) {
		return ListMerge{List: list}, false
	}
	// list identity is owned by the view
	merged.MongoID, merged.ID = list.MongoID, list.ID
	if merged.Name == "" {
		merged.Name = list.Name
	}
	if merged.Status == "" || !merged.Status.Valid() {
		merged.Status = list.Status
	}

	out := ListMerge{List: merged}
	if raw, ok := m["items"]; ok && isArray(raw) {
		var items []models.ListItem
		if decode(raw, &items) {
			if items == nil {
				items = []models.ListItem{}
			}
			out.Items = items
			out.ItemsReplaced = true
		}
	}
	out.List.Items = nil

	if name, ok := stringField(m, "shopkeeperName"); ok && name != "" {
		out.Share = &ShareMeta{ShopkeeperName: name}
	}
	if share := fields(m["share"]); share != nil {
		if out.Share == nil {
			out.Share = &ShareMeta{}
		}
		if name, ok := stringField(share, "shopkeeperName"); ok && name != "" && out.Share.ShopkeeperName == "" {
			out.Share.ShopkeeperName = name
		}
		if status, ok := stringField(share, "status"); ok {
			out.Share.Status = models.ShareStatus(status)
		}
	}
	return out, true
}

// Concerns reports whether payload is about the list keyed listKey. Payloads
// that name no list ("listId", "_id" or "id") concern every list, as does an
// empty listKey.
func Concerns(payload json.RawMessage, listKey string) bool {
	if listKey == "" {
		return true
	}
	m := fields(payload)
	if m == nil {
		return true
	}
	named := false
	for _, name := range []string{"listId", "_id", "id"} {
		v, ok := stringField(m, name)
		if !ok || v == "" {
			continue
		}
		named = true
		if v == listKey {
			return true
		}
	}
	return !named
}
