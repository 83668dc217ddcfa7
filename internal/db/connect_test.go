package db

import (
	"context"
	"testing"
)

func TestOpenMemoryCreatesSchema(t *testing.T) {
	ctx := context.Background()
	h, err := OpenMemory(ctx, t.Name())
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer h.Close()

	for _, table := range []string{
		"users", "password_resets", "questions", "user_progress", "category_stats",
		"lesson_progress", "streaks", "exam_attempts", "toeic_results", "event_log",
	} {
		var n int
		if err := h.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestOpenMemoryIsolated(t *testing.T) {
	ctx := context.Background()
	a, err := OpenMemory(ctx, "iso")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := OpenMemory(ctx, "iso")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if _, err := a.ExecContext(ctx, `INSERT INTO streaks (user_id, current, longest, last_active_day) VALUES ($1, 1, 1, '2026-01-01')`, "u1"); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := b.QueryRowContext(ctx, `SELECT COUNT(*) FROM streaks`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("databases should not share rows, got %d", n)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), Driver("mysql"), ""); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
