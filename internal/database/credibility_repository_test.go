package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kithua/acw/internal/credibility"
	"github.com/kithua/acw/internal/source"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "acw.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenRunsMigrations(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Expected re-running migrations to be a no-op, got %v", err)
	}
	if version != 1 {
		t.Errorf("Expected schema version 1, got %d", version)
	}
	if dirty {
		t.Error("Expected clean schema")
	}
}

func TestSaveAllAndLoadAll(t *testing.T) {
	ctx := context.Background()
	repo := NewCredibilityRepository(openTestDB(t))
	scoredAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	records := []credibility.Record{
		{
			Domain:          "bbc.com",
			OverallScore:    0.825,
			ComponentScores: map[string]float64{"domain_reputation": 1.0, "freshness": 1.0},
			Tier:            source.TierA,
			RiskFactors:     nil,
			LastScore:       0.825,
			ScoredAt:        scoredAt,
		},
		{
			Domain:          "casino-news.biz",
			OverallScore:    0.3,
			ComponentScores: map[string]float64{"domain_reputation": 0.1},
			Tier:            source.TierD,
			RiskFactors:     []string{"no_https", "suspicious_keyword:casino"},
			LastScore:       0.3,
			ScoredAt:        scoredAt,
		},
	}
	if err := repo.SaveAll(ctx, records); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	loaded, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(loaded))
	}
	if loaded[0].Domain != "bbc.com" {
		t.Errorf("Expected records ordered by domain, got %s first", loaded[0].Domain)
	}
	if loaded[0].ComponentScores["domain_reputation"] != 1.0 {
		t.Errorf("Expected component score 1.0, got %v", loaded[0].ComponentScores["domain_reputation"])
	}
	if len(loaded[0].RiskFactors) != 0 {
		t.Errorf("Expected no risk factors, got %v", loaded[0].RiskFactors)
	}
	if len(loaded[1].RiskFactors) != 2 {
		t.Errorf("Expected 2 risk factors, got %v", loaded[1].RiskFactors)
	}
	if !loaded[1].ScoredAt.Equal(scoredAt) {
		t.Errorf("Expected scored_at %v, got %v", scoredAt, loaded[1].ScoredAt)
	}
}

func TestSaveAllUpserts(t *testing.T) {
	ctx := context.Background()
	repo := NewCredibilityRepository(openTestDB(t))
	now := time.Now().UTC()

	rec := credibility.Record{Domain: "allafrica.com", OverallScore: 0.6, Tier: source.TierB, LastScore: 0.6, ScoredAt: now}
	if err := repo.SaveAll(ctx, []credibility.Record{rec}); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	rec.OverallScore = 0.72
	rec.LastScore = 0.72
	if err := repo.SaveAll(ctx, []credibility.Record{rec}); err != nil {
		t.Fatalf("Failed to save update: %v", err)
	}

	got, err := repo.Get(ctx, "allafrica.com")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if got == nil {
		t.Fatal("Expected record, got nil")
	}
	if got.LastScore != 0.72 {
		t.Errorf("Expected last score 0.72, got %v", got.LastScore)
	}

	missing, err := repo.Get(ctx, "unknown.org")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for unknown domain, got %+v", missing)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := NewCredibilityRepository(openTestDB(t))
	now := time.Now().UTC()

	records := []credibility.Record{
		{Domain: "old.example", Tier: source.TierC, ScoredAt: now.Add(-90 * 24 * time.Hour)},
		{Domain: "new.example", Tier: source.TierC, ScoredAt: now},
	}
	if err := repo.SaveAll(ctx, records); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	n, err := repo.DeleteOlderThan(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("Failed to prune: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 pruned record, got %d", n)
	}
}

func TestRepositoryBacksCredibilityCache(t *testing.T) {
	ctx := context.Background()
	repo := NewCredibilityRepository(openTestDB(t))

	prior := credibility.Record{Domain: "bbc.com", OverallScore: 0.9, Tier: source.TierA, LastScore: 0.9, ScoredAt: time.Now().UTC()}
	if err := repo.SaveAll(ctx, []credibility.Record{prior}); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	cache := credibility.NewCache(repo, 0)
	if err := cache.Load(ctx); err != nil {
		t.Fatalf("Failed to load cache: %v", err)
	}

	last, ok := cache.LastScore("bbc.com")
	if !ok || last != 0.9 {
		t.Errorf("Expected last score 0.9, got %v (found=%v)", last, ok)
	}
}
