package migrations

import (
	"strings"
	"testing"
)

func TestMigrationsRegisteredInOrder(t *testing.T) {
	sorted := Migrations.Sorted()
	want := []string{"2024112201", "2024112202", "2024112203"}
	if len(sorted) != len(want) {
		t.Fatalf("expected %d migrations, got %d", len(want), len(sorted))
	}
	for i, name := range want {
		if sorted[i].Name != name {
			t.Fatalf("migration %d: expected %s, got %s", i, name, sorted[i].Name)
		}
	}
	if createQuizzesSQL == "" || createSessionResultsSQL == "" {
		t.Fatalf("expected embedded SQL")
	}
}

func TestSessionResultsKeyedByRun(t *testing.T) {
	if !strings.Contains(keySessionResultsByRunSQL, "PRIMARY KEY (run_id, session_id)") {
		t.Fatalf("expected composite primary key, got:\n%s", keySessionResultsByRunSQL)
	}
}
