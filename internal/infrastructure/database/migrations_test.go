package database

import (
	"context"
	"embed"
	"testing"
)

//go:embed testdata/*.sql
var fixtureFS embed.FS

const fixtureVersion = "20260710_090000"

// useFixtureMigrations points the package at the testdata schema for one
// test and restores the real embed afterwards.
func useFixtureMigrations(t *testing.T) {
	t.Helper()
	savedFS, savedDir := MigrationsFS, MigrationsDir
	MigrationsFS = fixtureFS
	MigrationsDir = "testdata"
	t.Cleanup(func() {
		MigrationsFS = savedFS
		MigrationsDir = savedDir
	})
}

func TestMigrate(t *testing.T) {
	useFixtureMigrations(t)
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// The fixture table must be usable, not merely present.
	if _, err := db.ExecContext(ctx,
		"INSERT INTO event_log (numid, kind) VALUES (3, 'value')",
	); err != nil {
		t.Fatalf("inserting into migrated table: %v", err)
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 0 {
		t.Fatalf("status = %d applied, %d pending, want 1 applied, 0 pending",
			len(applied), len(pending))
	}
	if applied[0].Version != fixtureVersion {
		t.Errorf("applied version = %q, want %q", applied[0].Version, fixtureVersion)
	}
	if applied[0].AppliedAt.IsZero() {
		t.Error("applied_at not recorded")
	}

	// A second run must not re-apply anything.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() second run error = %v", err)
	}
	applied, _, err = db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() after re-run error = %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("after re-run: %d applied, want 1", len(applied))
	}
}

func TestMigrateDown(t *testing.T) {
	useFixtureMigrations(t)
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if _, err := db.ExecContext(ctx,
		"INSERT INTO event_log (numid, kind) VALUES (3, 'value')",
	); err == nil {
		t.Error("event_log still writable after rollback")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) != 1 {
		t.Fatalf("status = %d applied, %d pending, want 0 applied, 1 pending",
			len(applied), len(pending))
	}

	// Rolling back an empty ledger is a no-op, not an error.
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() on empty ledger error = %v", err)
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	savedFS, savedDir := MigrationsFS, MigrationsDir
	MigrationsFS = embed.FS{}
	MigrationsDir = "migrations"
	t.Cleanup(func() {
		MigrationsFS = savedFS
		MigrationsDir = savedDir
	})

	db := newTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no embedded schema error = %v", err)
	}
}

func TestGetMigrationStatusBeforeMigrate(t *testing.T) {
	useFixtureMigrations(t)
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.ensureMigrationsTable(ctx); err != nil {
		t.Fatalf("ensureMigrationsTable() error = %v", err)
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) != 1 {
		t.Fatalf("status = %d applied, %d pending, want 0 applied, 1 pending",
			len(applied), len(pending))
	}
	if pending[0].Name != "event_log" {
		t.Errorf("pending name = %q, want %q", pending[0].Name, "event_log")
	}
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{
			name:        "up migration",
			filename:    "20260705_120000_control_history.up.sql",
			wantVersion: "20260705_120000",
			wantUp:      true,
			wantOK:      true,
		},
		{
			name:        "down migration",
			filename:    "20260705_120000_control_history.down.sql",
			wantVersion: "20260705_120000",
			wantUp:      false,
			wantOK:      true,
		},
		{
			name:        "no description",
			filename:    "20260705_120000.up.sql",
			wantVersion: "20260705_120000",
			wantUp:      true,
			wantOK:      true,
		},
		{
			name:     "not sql",
			filename: "20260705_120000_notes.up.txt",
			wantOK:   false,
		},
		{
			name:     "no direction",
			filename: "20260705_120000_control_history.sql",
			wantOK:   false,
		},
		{
			name:     "no version",
			filename: "invalid.up.sql",
			wantOK:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("parseFilename(%q) ok = %v, want %v", tt.filename, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
			if isUp != tt.wantUp {
				t.Errorf("isUp = %v, want %v", isUp, tt.wantUp)
			}
		})
	}
}

func TestMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20260705_120000_control_history.up.sql", "control_history"},
		{"20260705_120000_control_history.down.sql", "control_history"},
		{"20260710_090000_event_log.up.sql", "event_log"},
		{"20260705_120000.up.sql", "20260705_120000"},
	}
	for _, tt := range tests {
		if got := migrationName(tt.filename); got != tt.want {
			t.Errorf("migrationName(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
