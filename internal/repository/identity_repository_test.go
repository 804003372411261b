package repository

import (
	"errors"
	"testing"
	"time"
)

func TestUpdateColumnsSelectsFixedVariants(t *testing.T) {
	vector := []float32{0.1, 0.2}

	both, err := updateColumns("Asha Rao", vector)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertColumns(t, both, "full_name", "embedding", "enrolled_at")

	nameOnly, err := updateColumns("Asha Rao", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertColumns(t, nameOnly, "full_name", "enrolled_at")

	embeddingOnly, err := updateColumns("", vector)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertColumns(t, embeddingOnly, "embedding", "enrolled_at")
}

func TestUpdateColumnsRejectsEmptyUpdate(t *testing.T) {
	if _, err := updateColumns("", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUpdateColumnsRefreshesEnrolledAt(t *testing.T) {
	before := time.Now().UTC()
	columns, err := updateColumns("Asha Rao", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stamp, ok := columns["enrolled_at"].(time.Time)
	if !ok {
		t.Fatalf("enrolled_at missing or wrong type: %v", columns["enrolled_at"])
	}
	if stamp.Before(before.Add(-time.Second)) {
		t.Fatalf("enrolled_at not refreshed: %v", stamp)
	}
}

func assertColumns(t *testing.T, columns map[string]any, want ...string) {
	t.Helper()
	if len(columns) != len(want) {
		t.Fatalf("expected %d columns, got %v", len(want), columns)
	}
	for _, name := range want {
		if _, ok := columns[name]; !ok {
			t.Fatalf("missing column %q in %v", name, columns)
		}
	}
}
