package database_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"telesumm/internal/database"
	"telesumm/internal/domain"
)

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()

	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	dbPath := filepath.Join(t.TempDir(), "test.sqlite")

	db, err := database.New(context.Background(), dbPath, log)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestUserSettingsDefaultAndUpsert(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	us, err := db.GetUserSettingsWithDefault(ctx, 42)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if us.Tier != "medium" {
		t.Fatalf("expected default tier medium, got %q", us.Tier)
	}

	if err = db.UpsertUserSettings(ctx, &domain.UserSettings{UserID: 42, Tier: "large"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err = db.UpsertUserSettings(ctx, &domain.UserSettings{UserID: 42, Tier: "small"}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	us, err = db.GetUserSettingsWithDefault(ctx, 42)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if us.Tier != "small" {
		t.Fatalf("expected tier small, got %q", us.Tier)
	}

	if err = db.UpsertUserSettings(ctx, &domain.UserSettings{UserID: 42, Tier: " "}); err == nil {
		t.Fatalf("expected error for empty tier")
	}
}

func TestSummaryHistory(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	last, err := db.GetLastSummary(ctx, 7)
	if err != nil {
		t.Fatalf("get last: %v", err)
	}
	if last != nil {
		t.Fatalf("expected no history, got %+v", last)
	}

	old := time.Now().Add(-48 * time.Hour)
	records := []*domain.SummaryRecord{
		{UserID: 7, Tier: "small", Summary: "old summary", Chunks: 1, CreatedAt: old},
		{UserID: 7, Tier: "large", Summary: "new summary", Chunks: 3},
		{UserID: 8, Tier: "medium", Summary: "other user", Chunks: 1},
	}
	for _, r := range records {
		if err = db.AddSummary(ctx, r); err != nil {
			t.Fatalf("add summary: %v", err)
		}
		if r.ID == 0 {
			t.Fatalf("expected id to be assigned")
		}
	}

	last, err = db.GetLastSummary(ctx, 7)
	if err != nil {
		t.Fatalf("get last: %v", err)
	}
	if last == nil || last.Summary != "new summary" || last.Chunks != 3 || last.Tier != "large" {
		t.Fatalf("unexpected last summary: %+v", last)
	}

	deleted, err := db.DeleteSummariesBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted row, got %d", deleted)
	}

	if err = db.AddSummary(ctx, &domain.SummaryRecord{UserID: 7, Summary: "  "}); err == nil {
		t.Fatalf("expected error for empty summary")
	}
}
