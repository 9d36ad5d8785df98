package phone

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SnapshotRepository defines persistence for the latest device snapshot.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
//
// Only the most recent snapshot per device is kept; Save replaces any
// previous row.
type SnapshotRepository interface {
	// Save stores the snapshot for a device, replacing any previous one.
	Save(ctx context.Context, device string, snap Snapshot) error

	// Load retrieves the stored snapshot for a device.
	// Returns ErrSnapshotNotFound if nothing has been stored yet.
	Load(ctx context.Context, device string) (Snapshot, error)
}

// SQLiteSnapshotRepository implements SnapshotRepository using SQLite.
type SQLiteSnapshotRepository struct {
	db *sql.DB
}

// NewSQLiteSnapshotRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the
// device_snapshots migration applied.
func NewSQLiteSnapshotRepository(db *sql.DB) *SQLiteSnapshotRepository {
	return &SQLiteSnapshotRepository{db: db}
}

// Save stores the snapshot for a device, replacing any previous one.
func (r *SQLiteSnapshotRepository) Save(ctx context.Context, device string, snap Snapshot) error {
	if snap.IsZero() {
		return fmt.Errorf("phone: refusing to save empty snapshot for %q", device)
	}

	data, err := json.Marshal(snap.Fields())
	if err != nil {
		return fmt.Errorf("marshalling snapshot fields: %w", err)
	}

	query := `
		INSERT INTO device_snapshots (device_name, fields, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(device_name) DO UPDATE SET
			fields = excluded.fields,
			updated_at = excluded.updated_at`

	if _, err := r.db.ExecContext(ctx, query,
		device,
		string(data),
		snap.UpdatedAt().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	return nil
}

// Load retrieves the stored snapshot for a device.
func (r *SQLiteSnapshotRepository) Load(ctx context.Context, device string) (Snapshot, error) {
	query := `
		SELECT fields, updated_at
		FROM device_snapshots
		WHERE device_name = ?`

	var data, updatedAt string
	err := r.db.QueryRowContext(ctx, query, device).Scan(&data, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, ErrSnapshotNotFound
		}
		return Snapshot{}, fmt.Errorf("querying snapshot: %w", err)
	}

	var fields Fields
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshalling snapshot fields: %w", err)
	}

	at, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parsing snapshot timestamp: %w", err)
	}

	return NewSnapshot(fields, at), nil
}
