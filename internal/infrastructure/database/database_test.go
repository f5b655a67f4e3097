package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// newTestDB opens a throwaway database under t.TempDir and closes it when
// the test finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen(t *testing.T) {
	t.Run("creates file and parent directories", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "state", "history", "controls.db")

		db, err := Open(Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })

		info, err := os.Stat(dbPath)
		if err != nil {
			t.Fatalf("database file missing: %v", err)
		}
		if perm := info.Mode().Perm(); perm != filePermissions {
			t.Errorf("file mode = %o, want %o", perm, filePermissions)
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
		}
	})

	t.Run("wal mode", func(t *testing.T) {
		db := newTestDB(t)

		var mode string
		if err := db.QueryRowContext(context.Background(),
			"PRAGMA journal_mode",
		).Scan(&mode); err != nil {
			t.Fatalf("reading journal_mode: %v", err)
		}
		if mode != "wal" {
			t.Errorf("journal_mode = %q, want %q", mode, "wal")
		}
	})

	t.Run("rollback journal without wal", func(t *testing.T) {
		db, err := Open(Config{
			Path:        filepath.Join(t.TempDir(), "test.db"),
			WALMode:     false,
			BusyTimeout: 5,
		})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })

		var mode string
		if err := db.QueryRowContext(context.Background(),
			"PRAGMA journal_mode",
		).Scan(&mode); err != nil {
			t.Fatalf("reading journal_mode: %v", err)
		}
		if mode == "wal" {
			t.Error("journal_mode = wal with WALMode disabled")
		}
	})
}

func TestHealthCheck(t *testing.T) {
	db := newTestDB(t)
	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestCloseIsNilSafe(t *testing.T) {
	db := newTestDB(t)
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() after close error = %v", err)
	}
}

func TestExecContext(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			numid INTEGER NOT NULL,
			value TEXT NOT NULL
		)
	`); err != nil {
		t.Fatalf("creating table: %v", err)
	}

	res, err := db.ExecContext(ctx,
		"INSERT INTO snapshots (numid, value) VALUES (?, ?)", 3, "40,40")
	if err != nil {
		t.Fatalf("ExecContext() INSERT error = %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("LastInsertId() error = %v", err)
	}
	if id != 1 {
		t.Errorf("LastInsertId() = %d, want 1", id)
	}
}

func TestBeginTx(t *testing.T) {
	setup := func(t *testing.T) (*DB, context.Context) {
		t.Helper()
		db := newTestDB(t)
		ctx := context.Background()
		if _, err := db.ExecContext(ctx,
			"CREATE TABLE snapshots (id INTEGER PRIMARY KEY, value TEXT)",
		); err != nil {
			t.Fatalf("creating table: %v", err)
		}
		return db, ctx
	}

	count := func(t *testing.T, db *DB, ctx context.Context) int {
		t.Helper()
		var n int
		if err := db.QueryRowContext(ctx,
			"SELECT count(*) FROM snapshots",
		).Scan(&n); err != nil {
			t.Fatalf("counting rows: %v", err)
		}
		return n
	}

	t.Run("commit persists", func(t *testing.T) {
		db, ctx := setup(t)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx() error = %v", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO snapshots (value) VALUES ('52')",
		); err != nil {
			t.Fatalf("insert in tx: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if n := count(t, db, ctx); n != 1 {
			t.Errorf("rows after commit = %d, want 1", n)
		}
	})

	t.Run("rollback discards", func(t *testing.T) {
		db, ctx := setup(t)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx() error = %v", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO snapshots (value) VALUES ('52')",
		); err != nil {
			t.Fatalf("insert in tx: %v", err)
		}
		if err := tx.Rollback(); err != nil {
			t.Fatalf("Rollback() error = %v", err)
		}
		if n := count(t, db, ctx); n != 0 {
			t.Errorf("rows after rollback = %d, want 0", n)
		}
	})
}

func TestStatsSingleWriter(t *testing.T) {
	db := newTestDB(t)
	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
}
