package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/listsync/internal/models"
	"github.com/desertthunder/listsync/internal/shared"
)

func listPath(listID string) string {
	return "/lists/" + url.PathEscape(listID)
}

func itemPath(listID, itemID string) string {
	return listPath(listID) + "/items/" + url.PathEscape(itemID)
}

// Lists retrieves every list owned by the authenticated user.
func (s *ListService) Lists(ctx context.Context) ([]models.GroceryList, error) {
	var lists []models.GroceryList
	if err := s.doRequest(ctx, http.MethodGet, "/lists", nil, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

// CreateList creates an empty draft list.
func (s *ListService) CreateList(ctx context.Context, name string) (*models.GroceryList, error) {
	if err := required("list name", name); err != nil {
		return nil, err
	}
	var list models.GroceryList
	body := map[string]string{"name": name}
	if err := s.doRequest(ctx, http.MethodPost, "/lists", body, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// List retrieves a single list.
func (s *ListService) List(ctx context.Context, listID string) (*models.GroceryList, error) {
	if err := required("list id", listID); err != nil {
		return nil, err
	}
	var list models.GroceryList
	if err := s.doRequest(ctx, http.MethodGet, listPath(listID), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// UpdateList renames a list or changes its status.
func (s *ListService) UpdateList(ctx context.Context, listID string, patch models.ListPatch) (*models.GroceryList, error) {
	if err := required("list id", listID); err != nil {
		return nil, err
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("%w: list status %q", shared.ErrInvalidInput, *patch.Status)
	}
	var list models.GroceryList
	if err := s.doRequest(ctx, http.MethodPatch, listPath(listID), patch, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// DeleteList removes a list and its items.
func (s *ListService) DeleteList(ctx context.Context, listID string) error {
	if err := required("list id", listID); err != nil {
		return err
	}
	return s.doRequest(ctx, http.MethodDelete, listPath(listID), nil, nil)
}

// DuplicateList copies a list into a new draft.
func (s *ListService) DuplicateList(ctx context.Context, listID string) (*models.GroceryList, error) {
	if err := required("list id", listID); err != nil {
		return nil, err
	}
	var list models.GroceryList
	if err := s.doRequest(ctx, http.MethodPost, listPath(listID)+"/duplicate", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Items retrieves every item of a list.
func (s *ListService) Items(ctx context.Context, listID string) ([]models.ListItem, error) {
	if err := required("list id", listID); err != nil {
		return nil, err
	}
	var items []models.ListItem
	if err := s.doRequest(ctx, http.MethodGet, listPath(listID)+"/items", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddItem appends an item to a list.
func (s *ListService) AddItem(ctx context.Context, listID string, item models.NewItem) (*models.ListItem, error) {
	if err := required("list id", listID); err != nil {
		return nil, err
	}
	if err := item.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	var created models.ListItem
	if err := s.doRequest(ctx, http.MethodPost, listPath(listID)+"/items", item, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Item retrieves a single item.
func (s *ListService) Item(ctx context.Context, listID, itemID string) (*models.ListItem, error) {
	if err := required("list id", listID); err != nil {
		return nil, err
	}
	if err := required("item id", itemID); err != nil {
		return nil, err
	}
	var item models.ListItem
	if err := s.doRequest(ctx, http.MethodGet, itemPath(listID, itemID), nil, &item); err != nil {
		return nil, itemError(err)
	}
	return &item, nil
}

// UpdateItem applies a partial update to an item.
func (s *ListService) UpdateItem(ctx context.Context, listID, itemID string, patch models.ItemPatch) (*models.ListItem, error) {
	if err := required("list id", listID); err != nil {
		return nil, err
	}
	if err := required("item id", itemID); err != nil {
		return nil, err
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("%w: item status %q", shared.ErrInvalidInput, *patch.Status)
	}
	var item models.ListItem
	if err := s.doRequest(ctx, http.MethodPatch, itemPath(listID, itemID), patch, &item); err != nil {
		return nil, itemError(err)
	}
	return &item, nil
}

// DeleteItem removes an item.
func (s *ListService) DeleteItem(ctx context.Context, listID, itemID string) error {
	if err := required("list id", listID); err != nil {
		return err
	}
	if err := required("item id", itemID); err != nil {
		return err
	}
	return itemError(s.doRequest(ctx, http.MethodDelete, itemPath(listID, itemID), nil, nil))
}
