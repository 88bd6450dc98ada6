package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/kithua/acw/internal/credibility"
	"github.com/kithua/acw/internal/source"
)

const credibilityTable = "credibility_cache"

var credibilityColumns = []string{
	"domain", "overall_score", "component_scores", "tier", "risk_factors", "last_score", "scored_at",
}

// CredibilityRepository stores credibility records keyed by domain.
type CredibilityRepository struct {
	db *DB
}

func NewCredibilityRepository(db *DB) *CredibilityRepository {
	return &CredibilityRepository{db: db}
}

func (r *CredibilityRepository) LoadAll(ctx context.Context) ([]credibility.Record, error) {
	query, args, err := sq.Select(credibilityColumns...).
		From(credibilityTable).
		OrderBy("domain").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query credibility cache: %w", err)
	}
	defer rows.Close()

	var records []credibility.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate credibility cache: %w", err)
	}
	return records, nil
}

// Get returns the record for domain, or nil when none is stored.
func (r *CredibilityRepository) Get(ctx context.Context, domain string) (*credibility.Record, error) {
	query, args, err := sq.Select(credibilityColumns...).
		From(credibilityTable).
		Where(sq.Eq{"domain": domain}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveAll upserts records in a single transaction.
func (r *CredibilityRepository) SaveAll(ctx context.Context, records []credibility.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		components, err := json.Marshal(rec.ComponentScores)
		if err != nil {
			return fmt.Errorf("failed to encode component scores for %s: %w", rec.Domain, err)
		}
		risks := rec.RiskFactors
		if risks == nil {
			risks = []string{}
		}
		riskJSON, err := json.Marshal(risks)
		if err != nil {
			return fmt.Errorf("failed to encode risk factors for %s: %w", rec.Domain, err)
		}

		query, args, err := sq.Insert(credibilityTable).
			Columns(credibilityColumns...).
			Values(rec.Domain, rec.OverallScore, string(components), string(rec.Tier), string(riskJSON),
				rec.LastScore, rec.ScoredAt.UTC().Format(time.RFC3339Nano)).
			Suffix(`ON CONFLICT(domain) DO UPDATE SET
				overall_score = excluded.overall_score,
				component_scores = excluded.component_scores,
				tier = excluded.tier,
				risk_factors = excluded.risk_factors,
				last_score = excluded.last_score,
				scored_at = excluded.scored_at`).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build upsert: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", rec.Domain, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credibility cache: %w", err)
	}
	return nil
}

// DeleteOlderThan drops records scored before cutoff.
func (r *CredibilityRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := sq.Delete(credibilityTable).
		Where(sq.Lt{"scored_at": cutoff.UTC().Format(time.RFC3339Nano)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune credibility cache: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (credibility.Record, error) {
	var (
		rec        credibility.Record
		components string
		tier       string
		risks      string
		scoredAt   string
	)
	if err := row.Scan(&rec.Domain, &rec.OverallScore, &components, &tier, &risks, &rec.LastScore, &scoredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("failed to scan credibility record: %w", err)
	}

	rec.Tier = source.Tier(tier)
	if err := json.Unmarshal([]byte(components), &rec.ComponentScores); err != nil {
		return rec, fmt.Errorf("failed to decode component scores for %s: %w", rec.Domain, err)
	}
	if err := json.Unmarshal([]byte(risks), &rec.RiskFactors); err != nil {
		return rec, fmt.Errorf("failed to decode risk factors for %s: %w", rec.Domain, err)
	}

	ts, err := time.Parse(time.RFC3339Nano, scoredAt)
	if err != nil {
		return rec, fmt.Errorf("failed to parse scored_at for %s: %w", rec.Domain, err)
	}
	rec.ScoredAt = ts
	return rec, nil
}
