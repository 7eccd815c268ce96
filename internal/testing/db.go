// Package testing provides test helpers shared by the underwriter packages.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/aristath/underwriter/internal/database"
)

// NewTestDB creates an isolated, migrated SQLite database for a test.
// The database lives in t.TempDir and is closed automatically.
//
// Supported schema names: database.NameRegistry, database.NameAudit.
// Unknown names produce an empty database.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	profile := database.ProfileStandard
	if name == database.NameAudit {
		profile = database.ProfileLedger
	}

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})
	return db
}
