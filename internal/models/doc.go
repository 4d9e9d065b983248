// Package models defines the grocery-list entities exchanged with the list service.
//
// The package contains two categories of types:
//
// 1. Wire types: decoded from REST responses and realtime payloads
//   - [GroceryList] : A shopping list, optionally carrying its items
//   - [ListItem] : One entry of a list with its workflow status
//   - [ShareData], [ShareResponse], [ShareLink] : Token-based public sharing
//
// 2. Persistent Entities: cached locally for offline viewing
//   - [Snapshot] : The last reconciled state of a watched list
//
// Lists and items may be identified by either "_id" or "id" depending on the
// endpoint that produced them. Always compare identities through Key().
package models
