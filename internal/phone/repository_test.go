package phone

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Tsury/ha-tsuryphone/internal/infrastructure/database"
)

// openSnapshotDB opens a fresh database with the snapshot table applied.
func openSnapshotDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if _, err := db.ExecContext(context.Background(), `
		CREATE TABLE device_snapshots (
			device_name TEXT PRIMARY KEY,
			fields      TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)
	`); err != nil {
		t.Fatalf("creating table: %v", err)
	}

	return db
}

func TestSQLiteSnapshotRepository_SaveAndLoad(t *testing.T) {
	db := openSnapshotDB(t)
	repo := NewSQLiteSnapshotRepository(db.DB)
	ctx := context.Background()

	at := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	snap := NewSnapshot(testStatusFields(), at)

	if err := repo.Save(ctx, "hallway-phone", snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := repo.Load(ctx, "hallway-phone")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := loaded.PhoneState(); got != StateIdle {
		t.Errorf("PhoneState() = %q, want %q", got, StateIdle)
	}
	if got := loaded.TotalCalls(); got != 42 {
		t.Errorf("TotalCalls() = %d, want 42", got)
	}
	if !loaded.UpdatedAt().Equal(at) {
		t.Errorf("UpdatedAt() = %v, want %v", loaded.UpdatedAt(), at)
	}
}

func TestSQLiteSnapshotRepository_SaveReplaces(t *testing.T) {
	db := openSnapshotDB(t)
	repo := NewSQLiteSnapshotRepository(db.DB)
	ctx := context.Background()

	first := NewSnapshot(testStatusFields(), time.Unix(1000, 0).UTC())
	if err := repo.Save(ctx, "hallway-phone", first); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}

	second := first.Overlay(SectionStatus, Fields{"state": StateInCall}, time.Unix(2000, 0).UTC())
	if err := repo.Save(ctx, "hallway-phone", second); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	loaded, err := repo.Load(ctx, "hallway-phone")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := loaded.PhoneState(); got != StateInCall {
		t.Errorf("PhoneState() = %q, want %q", got, StateInCall)
	}

	// Only one row per device
	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM device_snapshots",
	).Scan(&count); err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}
}

func TestSQLiteSnapshotRepository_LoadMissing(t *testing.T) {
	db := openSnapshotDB(t)
	repo := NewSQLiteSnapshotRepository(db.DB)

	_, err := repo.Load(context.Background(), "unknown-device")
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("Load() error = %v, want ErrSnapshotNotFound", err)
	}
}

func TestSQLiteSnapshotRepository_RejectsEmptySnapshot(t *testing.T) {
	db := openSnapshotDB(t)
	repo := NewSQLiteSnapshotRepository(db.DB)

	var empty Snapshot
	if err := repo.Save(context.Background(), "hallway-phone", empty); err == nil {
		t.Error("Save() of zero snapshot expected error, got nil")
	}
}
