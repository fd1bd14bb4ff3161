package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-submission-api/internal/models"
)

// OfferingRepository reads the offering/teacher directory.
type OfferingRepository struct {
	db *sqlx.DB
}

// NewOfferingRepository creates a new offering repository.
func NewOfferingRepository(db *sqlx.DB) *OfferingRepository {
	return &OfferingRepository{db: db}
}

// FindByID returns an offering by its ID.
func (r *OfferingRepository) FindByID(ctx context.Context, id string) (*models.Offering, error) {
	const query = `SELECT id, course_title, period, created_at, updated_at FROM offerings WHERE id = $1 LIMIT 1`
	var offering models.Offering
	if err := r.db.GetContext(ctx, &offering, query, id); err != nil {
		return nil, err
	}
	return &offering, nil
}

// TeachersFor returns every teacher assigned to an offering.
func (r *OfferingRepository) TeachersFor(ctx context.Context, offeringID string) ([]models.OfferingTeacher, error) {
	const query = `SELECT u.id, u.full_name
		FROM offering_teachers ot
		JOIN users u ON u.id = ot.teacher_id
		WHERE ot.offering_id = $1
		ORDER BY u.full_name ASC`
	var teachers []models.OfferingTeacher
	if err := r.db.SelectContext(ctx, &teachers, query, offeringID); err != nil {
		return nil, fmt.Errorf("teachers for offering: %w", err)
	}
	return teachers, nil
}
