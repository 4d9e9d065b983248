package models

import "time"

// ShareStatus is the state of a share link.
type ShareStatus string

const (
	ShareActive   ShareStatus = "active"
	ShareAccepted ShareStatus = "accepted"
)

// ShareData describes a share link as seen by the shopkeeper.
type ShareData struct {
	ShareToken     string      `json:"shareToken"`
	ShopkeeperName string      `json:"shopkeeperName,omitempty"`
	Status         ShareStatus `json:"status"`
	AcceptedAt     string      `json:"acceptedAt,omitempty"`
}

// ShareResponse is returned by the public share endpoints.
type ShareResponse struct {
	List  GroceryList `json:"list"`
	Items []ListItem  `json:"items"`
	Share ShareData   `json:"share"`
}

// ShareLink is returned when an owner generates a share link.
type ShareLink struct {
	ShareToken string `json:"shareToken"`
	ShareURL   string `json:"shareUrl"`
}

// ShareToken is a share token remembered locally so a shopkeeper can rejoin a list.
type ShareToken struct {
	Token          string
	ListKey        string
	ShopkeeperName string
	CreatedAt      time.Time
}
