package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-submission-api/internal/models"
	appErrors "github.com/noah-isme/lms-submission-api/pkg/errors"
)

type assignmentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error)
}

// CreateAssignmentRequest is the payload for creating an assignment.
type CreateAssignmentRequest struct {
	OfferingID      string     `json:"offering_id" validate:"required"`
	Title           string     `json:"title" validate:"required"`
	QuestionType    string     `json:"question_type" validate:"required,oneof=TEXT PDF"`
	QuestionText    *string    `json:"question_text,omitempty"`
	QuestionFileURL *string    `json:"question_file_url,omitempty"`
	DueAt           *time.Time `json:"due_at,omitempty"`
}

// AssignmentService covers the minimal assignment surface this API exposes.
type AssignmentService struct {
	assignments assignmentRepo
	offerings   offeringReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(assignments assignmentRepo, offerings offeringReader, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{assignments: assignments, offerings: offerings, validator: validate, logger: logger}
}

// Create validates and persists a new assignment.
func (s *AssignmentService) Create(ctx context.Context, req CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if models.QuestionType(req.QuestionType) == models.QuestionTypeText && (req.QuestionText == nil || *req.QuestionText == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "question text is required for TEXT assignments")
	}
	if models.QuestionType(req.QuestionType) == models.QuestionTypePDF && (req.QuestionFileURL == nil || *req.QuestionFileURL == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "question file url is required for PDF assignments")
	}

	if _, err := s.offerings.FindByID(ctx, req.OfferingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}

	assignment := &models.Assignment{
		OfferingID:      req.OfferingID,
		Title:           req.Title,
		QuestionType:    models.QuestionType(req.QuestionType),
		QuestionText:    req.QuestionText,
		QuestionFileURL: req.QuestionFileURL,
		DueAt:           req.DueAt,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	return assignment, nil
}

// Get returns an assignment by ID.
func (s *AssignmentService) Get(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}

// List returns assignments matching the filter.
func (s *AssignmentService) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, *models.Pagination, error) {
	assignments, total, err := s.assignments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	return assignments, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}
