package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/listsync/internal/models"
	"github.com/desertthunder/listsync/internal/shared"
)

func sharePath(token string) string {
	return "/share/" + url.PathEscape(token)
}

// GenerateLink creates a share link for a list. shopkeeperName may be empty.
func (s *ListService) GenerateLink(ctx context.Context, listID, shopkeeperName string) (*models.ShareLink, error) {
	if err := required("list id", listID); err != nil {
		return nil, err
	}
	body := struct {
		ShopkeeperName string `json:"shopkeeperName,omitempty"`
	}{shopkeeperName}

	var link models.ShareLink
	if err := s.doRequest(ctx, http.MethodPost, listPath(listID)+"/share", body, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// RevokeLink invalidates the share link of a list.
func (s *ListService) RevokeLink(ctx context.Context, listID string) error {
	if err := required("list id", listID); err != nil {
		return err
	}
	return s.doRequest(ctx, http.MethodPost, listPath(listID)+"/share/revoke", nil, nil)
}

// ViewSharedList fetches a list through its share token.
func (s *ListService) ViewSharedList(ctx context.Context, token string) (*models.ShareResponse, error) {
	if err := required("share token", token); err != nil {
		return nil, err
	}
	var resp models.ShareResponse
	if err := s.doPublic(ctx, http.MethodGet, sharePath(token), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AcceptShare marks the share as accepted by the named shopkeeper.
func (s *ListService) AcceptShare(ctx context.Context, token, shopkeeperName string) (*models.ShareData, error) {
	if err := required("share token", token); err != nil {
		return nil, err
	}
	body := struct {
		ShopkeeperName string `json:"shopkeeperName,omitempty"`
	}{shopkeeperName}

	var data models.ShareData
	if err := s.doPublic(ctx, http.MethodPost, sharePath(token)+"/accept", body, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// UpdateSharedListStatus changes the status of a shared list.
func (s *ListService) UpdateSharedListStatus(ctx context.Context, token string, status models.ListStatus) (*models.GroceryList, error) {
	if err := required("share token", token); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: list status %q", shared.ErrInvalidInput, status)
	}
	body := struct {
		Status models.ListStatus `json:"status"`
	}{status}

	var list models.GroceryList
	if err := s.doPublic(ctx, http.MethodPost, sharePath(token)+"/status", body, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// UpdateSharedItemStatus changes the status of one item of a shared list.
// notes is sent only when non-empty.
func (s *ListService) UpdateSharedItemStatus(ctx context.Context, token, itemID string, status models.ItemStatus, notes string) (*models.ListItem, error) {
	if err := required("share token", token); err != nil {
		return nil, err
	}
	if err := required("item id", itemID); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: item status %q", shared.ErrInvalidInput, status)
	}
	body := struct {
		Status models.ItemStatus `json:"status"`
		Notes  string            `json:"notes,omitempty"`
	}{status, notes}

	var item models.ListItem
	endpoint := sharePath(token) + "/items/" + url.PathEscape(itemID) + "/status"
	if err := s.doPublic(ctx, http.MethodPost, endpoint, body, &item); err != nil {
		return nil, itemError(err)
	}
	return &item, nil
}
