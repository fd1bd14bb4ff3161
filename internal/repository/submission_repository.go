package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-submission-api/internal/models"
)

const submissionColumns = `id, assignment_id, student_id, attempt_number, text_answer, score, status, submitted_at, created_at, updated_at`

// SubmissionRepository handles submission persistence.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new submission repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// FindByID returns a submission by its ID.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	query := fmt.Sprintf("SELECT %s FROM submissions WHERE id = $1 LIMIT 1", submissionColumns)
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindPending returns the PENDING submission for an assignment and student,
// or sql.ErrNoRows when none exists. At most one such row can exist.
func (r *SubmissionRepository) FindPending(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	query := fmt.Sprintf("SELECT %s FROM submissions WHERE assignment_id = $1 AND student_id = $2 AND status = $3 LIMIT 1", submissionColumns)
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, query, assignmentID, studentID, models.SubmissionPending); err != nil {
		return nil, err
	}
	return &sub, nil
}

// NextAttempt computes the attempt number a brand-new submission row would
// receive: one past the highest prior attempt, 1 when no history exists.
func (r *SubmissionRepository) NextAttempt(ctx context.Context, assignmentID, studentID string) (int, error) {
	const query = `SELECT COALESCE(MAX(attempt_number), 0) + 1 FROM submissions WHERE assignment_id = $1 AND student_id = $2`
	var next int
	if err := r.db.GetContext(ctx, &next, query, assignmentID, studentID); err != nil {
		return 0, fmt.Errorf("next attempt: %w", err)
	}
	return next, nil
}

// Record persists a submission outcome. The whole read-modify-write runs in
// one transaction serialized per (assignment, student) via an advisory lock,
// so concurrent submits for the same pair cannot duplicate attempt numbers or
// leave two PENDING rows.
//
// When a PENDING row exists it is updated in place and its attempt number
// incremented (the resubmission consumes one attempt); otherwise a new row is
// inserted with the next attempt number. sub is updated with the persisted
// state.
func (r *SubmissionRepository) Record(ctx context.Context, sub *models.Submission) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submission tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sub.AssignmentID+":"+sub.StudentID); err != nil {
		return fmt.Errorf("acquire submission lock: %w", err)
	}

	now := time.Now().UTC()
	lockQuery := fmt.Sprintf("SELECT %s FROM submissions WHERE assignment_id = $1 AND student_id = $2 AND status = $3 LIMIT 1 FOR UPDATE", submissionColumns)
	var pending models.Submission
	err = tx.GetContext(ctx, &pending, lockQuery, sub.AssignmentID, sub.StudentID, models.SubmissionPending)
	switch {
	case err == nil:
		sub.ID = pending.ID
		sub.AttemptNumber = pending.AttemptNumber + 1
		sub.CreatedAt = pending.CreatedAt
		sub.SubmittedAt = now
		sub.UpdatedAt = now
		const update = `UPDATE submissions
			SET attempt_number = :attempt_number, text_answer = :text_answer, status = :status,
			    submitted_at = :submitted_at, updated_at = :updated_at
			WHERE id = :id`
		if _, err := tx.NamedExecContext(ctx, update, sub); err != nil {
			return fmt.Errorf("update pending submission: %w", err)
		}
	case err == sql.ErrNoRows:
		const nextQuery = `SELECT COALESCE(MAX(attempt_number), 0) + 1 FROM submissions WHERE assignment_id = $1 AND student_id = $2`
		var attempt int
		if err := tx.GetContext(ctx, &attempt, nextQuery, sub.AssignmentID, sub.StudentID); err != nil {
			return fmt.Errorf("compute attempt number: %w", err)
		}
		if sub.ID == "" {
			sub.ID = uuid.NewString()
		}
		sub.AttemptNumber = attempt
		sub.SubmittedAt = now
		sub.CreatedAt = now
		sub.UpdatedAt = now
		const insert = `INSERT INTO submissions (id, assignment_id, student_id, attempt_number, text_answer, score, status, submitted_at, created_at, updated_at)
			VALUES (:id, :assignment_id, :student_id, :attempt_number, :text_answer, :score, :status, :submitted_at, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insert, sub); err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}
	default:
		return fmt.Errorf("lock pending submission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit submission: %w", err)
	}
	return nil
}

// UpdateGrade sets score and status on a submission.
func (r *SubmissionRepository) UpdateGrade(ctx context.Context, id string, score float64, status models.SubmissionStatus) error {
	const query = `UPDATE submissions SET score = $2, status = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, score, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update grade: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReopenRejected transitions a REJECTED_AI submission under the attempt
// ceiling back to PENDING. The guards are part of the statement so a
// concurrent double-grant cannot slip through; it returns false when no row
// matched.
func (r *SubmissionRepository) ReopenRejected(ctx context.Context, id string, maxAttempts int) (bool, error) {
	const query = `UPDATE submissions SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4 AND attempt_number < $5`
	res, err := r.db.ExecContext(ctx, query, id, models.SubmissionPending, time.Now().UTC(), models.SubmissionRejectedAI, maxAttempts)
	if err != nil {
		return false, fmt.Errorf("reopen submission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reopen submission: %w", err)
	}
	return n > 0, nil
}

// StatsForStudent summarises a student's submission history.
func (r *SubmissionRepository) StatsForStudent(ctx context.Context, studentID string) (*models.SubmissionStats, error) {
	const query = `SELECT COUNT(*) AS total_submissions,
		COUNT(*) FILTER (WHERE status = $2) AS rejected_ai
		FROM submissions WHERE student_id = $1`
	var stats models.SubmissionStats
	if err := r.db.GetContext(ctx, &stats, query, studentID, models.SubmissionRejectedAI); err != nil {
		return nil, fmt.Errorf("submission stats: %w", err)
	}
	return &stats, nil
}

// RejectedAICountsByOffering groups REJECTED_AI submissions by student across
// an offering's assignments. This live aggregate is the source of truth for
// teacher-facing views; the ai_flags ledger only serves single-pair lookups.
func (r *SubmissionRepository) RejectedAICountsByOffering(ctx context.Context, offeringID string) ([]models.StudentFlagCount, error) {
	const query = `SELECT s.student_id, u.full_name AS student_name, COUNT(*) AS count
		FROM submissions s
		JOIN assignments a ON a.id = s.assignment_id
		JOIN users u ON u.id = s.student_id
		WHERE a.offering_id = $1 AND s.status = $2
		GROUP BY s.student_id, u.full_name
		ORDER BY count DESC, u.full_name ASC`
	var counts []models.StudentFlagCount
	if err := r.db.SelectContext(ctx, &counts, query, offeringID, models.SubmissionRejectedAI); err != nil {
		return nil, fmt.Errorf("rejected counts: %w", err)
	}
	return counts, nil
}
