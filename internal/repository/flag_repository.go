package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// FlagRepository maintains the ai_flags ledger. The ledger is an accumulator:
// counts only ever increase and rows are never deleted.
type FlagRepository struct {
	db *sqlx.DB
}

// NewFlagRepository creates a new flag repository.
func NewFlagRepository(db *sqlx.DB) *FlagRepository {
	return &FlagRepository{db: db}
}

// Increment adds one flag for the (offering, student) pair. The upsert is a
// single atomic statement so concurrent flags for the same pair are never
// lost to a read-then-write race.
func (r *FlagRepository) Increment(ctx context.Context, offeringID, studentID string) error {
	const query = `INSERT INTO ai_flags (id, offering_id, student_id, flagged_count, last_flagged_at)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (offering_id, student_id)
		DO UPDATE SET flagged_count = ai_flags.flagged_count + 1, last_flagged_at = EXCLUDED.last_flagged_at`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), offeringID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("increment flag: %w", err)
	}
	return nil
}

// CountFor returns the ledger count for a single (offering, student) pair.
// Pairs that were never flagged report zero.
func (r *FlagRepository) CountFor(ctx context.Context, offeringID, studentID string) (int, error) {
	const query = `SELECT COALESCE(MAX(flagged_count), 0) FROM ai_flags WHERE offering_id = $1 AND student_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, offeringID, studentID); err != nil {
		return 0, fmt.Errorf("flag count: %w", err)
	}
	return count, nil
}
