package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/listsync/internal/models"
	"github.com/desertthunder/listsync/internal/shared"
)

// SnapshotRepository implements models.Repository[*models.Snapshot] for the offline list cache.
//
// Every save appends a row; readers use the newest row per list.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new SnapshotRepository with the given database connection
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

var _ models.Repository[*models.Snapshot] = (*SnapshotRepository)(nil)

const snapshotColumns = `id, sequence, list_key, share_status, shopkeeper_name, revoked, payload, saved_at`

// Create inserts a snapshot with a generated ID and sequence
func (r *SnapshotRepository) Create(snap *models.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	payload, err := snap.Payload()
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	id := shared.GenerateID()
	list := snap.List()

	var sequence int
	err = inTx(r.db, func(tx *sql.Tx) error {
		var err error
		if sequence, err = NextSequence(tx, "list_snapshots"); err != nil {
			return err
		}

		query := `
			INSERT INTO list_snapshots (
				id, sequence, list_key, name, status, share_status,
				shopkeeper_name, revoked, payload, saved_at
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err = tx.Exec(query,
			id,
			sequence,
			snap.ListKey(),
			list.Name,
			string(list.Status),
			string(snap.ShareStatus()),
			snap.ShopkeeperName(),
			snap.Revoked(),
			string(payload),
			snap.CreatedAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	snap.SetID(id)
	snap.SetSequence(sequence)
	return nil
}

// Save records snap and keeps at most keep snapshots for its list. A
// non-positive keep retains everything.
func (r *SnapshotRepository) Save(snap *models.Snapshot, keep int) error {
	if err := r.Create(snap); err != nil {
		return err
	}
	if keep <= 0 {
		return nil
	}
	return r.Prune(snap.ListKey(), keep)
}

// Get retrieves a snapshot by ID
func (r *SnapshotRepository) Get(id string) (*models.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM list_snapshots WHERE id = ?`
	snap, err := scanSnapshot(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSnapshotNotFound, id)
	}
	return snap, err
}

// Latest retrieves the newest snapshot of a list
func (r *SnapshotRepository) Latest(listKey string) (*models.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM list_snapshots
		WHERE list_key = ?
		ORDER BY sequence DESC
		LIMIT 1
	`
	snap, err := scanSnapshot(r.db.QueryRow(query, listKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: list %s", shared.ErrSnapshotNotFound, listKey)
	}
	return snap, err
}

// List retrieves every snapshot of a list, newest first
func (r *SnapshotRepository) List(listKey string) ([]*models.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM list_snapshots
		WHERE list_key = ?
		ORDER BY sequence DESC
	`
	return r.query(query, listKey)
}

// Lists retrieves the newest snapshot of every cached list, most recently saved first
func (r *SnapshotRepository) Lists() ([]*models.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM list_snapshots s
		WHERE sequence = (
			SELECT MAX(sequence) FROM list_snapshots WHERE list_key = s.list_key
		)
		ORDER BY sequence DESC
	`
	return r.query(query)
}

// Delete removes a single snapshot by ID
func (r *SnapshotRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM list_snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return expectRows(result, fmt.Errorf("%w: %s", shared.ErrSnapshotNotFound, id))
}

// DeleteList removes every snapshot of a list
func (r *SnapshotRepository) DeleteList(listKey string) error {
	result, err := r.db.Exec(`DELETE FROM list_snapshots WHERE list_key = ?`, listKey)
	if err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	return expectRows(result, fmt.Errorf("%w: list %s", shared.ErrSnapshotNotFound, listKey))
}

// Prune keeps only the newest keep snapshots of a list
func (r *SnapshotRepository) Prune(listKey string, keep int) error {
	if keep < 0 {
		return fmt.Errorf("%w: keep must not be negative", shared.ErrInvalidArgument)
	}

	query := `
		DELETE FROM list_snapshots
		WHERE list_key = ? AND id NOT IN (
			SELECT id FROM list_snapshots
			WHERE list_key = ?
			ORDER BY sequence DESC
			LIMIT ?
		)
	`
	if _, err := r.db.Exec(query, listKey, listKey, keep); err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) query(query string, args ...any) ([]*models.Snapshot, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*models.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return snaps, nil
}

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// scanSnapshot scans one row into a [models.Snapshot]. [sql.ErrNoRows] is returned unwrapped.
func scanSnapshot(row scanner) (*models.Snapshot, error) {
	var (
		id             string
		sequence       int
		listKey        string
		shareStatus    string
		shopkeeperName string
		revoked        bool
		payload        string
		savedAt        time.Time
	)

	err := row.Scan(&id, &sequence, &listKey, &shareStatus, &shopkeeperName, &revoked, &payload, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	snap, err := models.DecodeSnapshot(id, sequence, []byte(payload), models.ShareStatus(shareStatus), shopkeeperName, revoked, savedAt)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", id, err)
	}
	return snap, nil
}

func expectRows(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
