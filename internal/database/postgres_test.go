package database

import (
	"strings"
	"testing"
)

func TestMigrations_EmbeddedAndOrdered(t *testing.T) {
	migrations, err := Migrations()
	if err != nil {
		t.Fatalf("Migrations() error: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected at least one embedded migration")
	}

	for i, m := range migrations {
		if m.Version <= 0 {
			t.Errorf("migration %s has invalid version %d", m.Name, m.Version)
		}
		if i > 0 && migrations[i-1].Version >= m.Version {
			t.Errorf("migrations out of order: %s before %s", migrations[i-1].Name, m.Name)
		}
	}

	if !strings.Contains(migrations[0].SQL, "CREATE TABLE IF NOT EXISTS study_sets") {
		t.Errorf("expected first migration to create study_sets, got:\n%s", migrations[0].SQL)
	}
}
