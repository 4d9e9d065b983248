package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/listsync/internal/models"
	"github.com/desertthunder/listsync/internal/shared"
)

// ShareTokenRepository remembers share tokens per list.
type ShareTokenRepository struct {
	db *sql.DB
}

// NewShareTokenRepository creates a new ShareTokenRepository with the given database connection
func NewShareTokenRepository(db *sql.DB) *ShareTokenRepository {
	return &ShareTokenRepository{db: db}
}

// Put stores a token, replacing the list and shopkeeper name of an existing entry.
func (r *ShareTokenRepository) Put(tok *models.ShareToken) error {
	if tok.Token == "" {
		return fmt.Errorf("%w: share token", shared.ErrMissingArgument)
	}
	if tok.ListKey == "" {
		return fmt.Errorf("%w: list id", shared.ErrMissingArgument)
	}
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO share_tokens (token, list_key, shopkeeper_name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (token) DO UPDATE SET
			list_key = excluded.list_key,
			shopkeeper_name = excluded.shopkeeper_name
	`
	if _, err := r.db.Exec(query, tok.Token, tok.ListKey, tok.ShopkeeperName, tok.CreatedAt); err != nil {
		return fmt.Errorf("failed to store share token: %w", err)
	}
	return nil
}

// Get retrieves a token.
func (r *ShareTokenRepository) Get(token string) (*models.ShareToken, error) {
	var tok models.ShareToken
	err := r.db.QueryRow(
		`SELECT token, list_key, shopkeeper_name, created_at FROM share_tokens WHERE token = ?`, token,
	).Scan(&tok.Token, &tok.ListKey, &tok.ShopkeeperName, &tok.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("share token not found: %s", token)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan share token: %w", err)
	}
	return &tok, nil
}

// ForList retrieves the most recently stored token of a list.
func (r *ShareTokenRepository) ForList(listKey string) (*models.ShareToken, error) {
	var tok models.ShareToken
	err := r.db.QueryRow(`
		SELECT token, list_key, shopkeeper_name, created_at
		FROM share_tokens
		WHERE list_key = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, listKey).Scan(&tok.Token, &tok.ListKey, &tok.ShopkeeperName, &tok.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no share token for list %s", listKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan share token: %w", err)
	}
	return &tok, nil
}

// Delete forgets a token, typically after it was revoked.
func (r *ShareTokenRepository) Delete(token string) error {
	result, err := r.db.Exec(`DELETE FROM share_tokens WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("failed to delete share token: %w", err)
	}
	return expectRows(result, fmt.Errorf("share token not found: %s", token))
}
