package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-submission-api/internal/models"
	"github.com/noah-isme/lms-submission-api/pkg/classifier"
	appErrors "github.com/noah-isme/lms-submission-api/pkg/errors"
)

type submissionRepo interface {
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	Record(ctx context.Context, sub *models.Submission) error
	UpdateGrade(ctx context.Context, id string, score float64, status models.SubmissionStatus) error
	ReopenRejected(ctx context.Context, id string, maxAttempts int) (bool, error)
	StatsForStudent(ctx context.Context, studentID string) (*models.SubmissionStats, error)
}

type assignmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type integrityClassifier interface {
	Classify(ctx context.Context, text string) (*classifier.Verdict, error)
}

type notificationDispatcher interface {
	NotifyUser(ctx context.Context, userID, title, body string) error
	NotifyOfferingTeachers(ctx context.Context, offeringID, title, body string) error
}

type flagLedger interface {
	RecordFlag(ctx context.Context, offeringID, studentID string) error
}

type lifecycleMetrics interface {
	SubmissionRecorded(status models.SubmissionStatus)
	ClassifierFailed()
	ObserveClassifier(duration time.Duration)
	FlagRecorded()
}

// SubmitRequest is the payload for a student submission.
type SubmitRequest struct {
	AssignmentID string `json:"-" validate:"required"`
	StudentID    string `json:"-" validate:"required"`
	TextAnswer   string `json:"text_answer"`
}

// Moderation carries the classifier verdict details returned alongside a
// rejected submission so the client can explain the rejection.
type Moderation struct {
	Prediction    string  `json:"prediction"`
	Confidence    float64 `json:"confidence"`
	AIProbability float64 `json:"ai_probability"`
}

// SubmitResult wraps the persisted submission with optional moderation info.
type SubmitResult struct {
	Submission *models.Submission `json:"submission"`
	Moderation *Moderation        `json:"moderation,omitempty"`
}

// GradeRequest is the payload for grading a submission.
type GradeRequest struct {
	Score  *float64                 `json:"score" validate:"required"`
	Status *models.SubmissionStatus `json:"status,omitempty"`
}

// SubmissionService orchestrates the submission lifecycle: timing validation,
// integrity classification, persistence, and side effects.
type SubmissionService struct {
	submissions submissionRepo
	assignments assignmentReader
	students    studentReader
	classifier  integrityClassifier
	notifier    notificationDispatcher
	flags       flagLedger
	metrics     lifecycleMetrics
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService. classifier may be nil,
// in which case every submission proceeds unflagged.
func NewSubmissionService(
	submissions submissionRepo,
	assignments assignmentReader,
	students studentReader,
	cls integrityClassifier,
	notifier notificationDispatcher,
	flags flagLedger,
	metrics lifecycleMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		submissions: submissions,
		assignments: assignments,
		students:    students,
		classifier:  cls,
		notifier:    notifier,
		flags:       flags,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// Submit handles one submission attempt. Flagged work is persisted as
// REJECTED_AI rather than dropped; a failed classifier call falls open and
// the submission proceeds as SUBMITTED.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	text := strings.TrimSpace(req.TextAnswer)
	if text == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "answer text is required")
	}

	assignment, err := s.assignments.FindByID(ctx, req.AssignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if assignment.DueAt != nil && s.now().After(*assignment.DueAt) {
		return nil, appErrors.Clone(appErrors.ErrOverdue, "assignment due date has passed")
	}

	verdict := s.classify(ctx, text)

	status := models.SubmissionSubmitted
	if verdict.IsAI() {
		status = models.SubmissionRejectedAI
	}

	sub := &models.Submission{
		AssignmentID: req.AssignmentID,
		StudentID:    req.StudentID,
		TextAnswer:   text,
		Status:       status,
	}
	if err := s.submissions.Record(ctx, sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist submission")
	}
	if s.metrics != nil {
		s.metrics.SubmissionRecorded(status)
	}

	result := &SubmitResult{Submission: sub}
	if status == models.SubmissionRejectedAI {
		result.Moderation = &Moderation{
			Prediction:    verdict.Prediction,
			Confidence:    verdict.Confidence,
			AIProbability: verdict.Probabilities.AI,
		}
		if err := s.flags.RecordFlag(ctx, assignment.OfferingID, req.StudentID); err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.FlagRecorded()
		}
		s.notifyRejected(ctx, assignment, sub, verdict)
	} else {
		s.notifySubmitted(ctx, assignment)
	}

	return result, nil
}

// classify runs the integrity check. This is the named fail-open path: any
// classifier failure is logged and the work proceeds as human-written, so an
// unavailable classifier never blocks a legitimate submission.
func (s *SubmissionService) classify(ctx context.Context, text string) *classifier.Verdict {
	if s.classifier == nil {
		return nil
	}
	start := s.now()
	verdict, err := s.classifier.Classify(ctx, text)
	if s.metrics != nil {
		s.metrics.ObserveClassifier(time.Since(start))
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.ClassifierFailed()
		}
		s.logger.Warn("classifier unavailable, submission proceeds unflagged",
			zap.Bool("unavailable", classifier.IsUnavailable(err)),
			zap.Error(err))
		return nil
	}
	return verdict
}

func (s *SubmissionService) notifyRejected(ctx context.Context, assignment *models.Assignment, sub *models.Submission, verdict *classifier.Verdict) {
	studentName := sub.StudentID
	if student, err := s.students.FindByID(ctx, sub.StudentID); err == nil {
		studentName = student.FullName
	}

	//nolint:errcheck // dispatch is best-effort, failures are logged inside
	s.notifier.NotifyUser(ctx, sub.StudentID,
		"Submission flagged",
		fmt.Sprintf("Your submission for %q was flagged by the integrity check. A teacher will review it.", assignment.Title))
	//nolint:errcheck
	s.notifier.NotifyOfferingTeachers(ctx, assignment.OfferingID,
		"Submission flagged as AI-generated",
		fmt.Sprintf("%s's submission for %q was flagged as AI-generated (confidence %.1f%%).", studentName, assignment.Title, verdict.Confidence*100))
}

func (s *SubmissionService) notifySubmitted(ctx context.Context, assignment *models.Assignment) {
	//nolint:errcheck // dispatch is best-effort, failures are logged inside
	s.notifier.NotifyOfferingTeachers(ctx, assignment.OfferingID,
		"New submission awaiting review",
		fmt.Sprintf("A new submission for %q is awaiting review.", assignment.Title))
}

// Grade sets a submission's score, defaulting the status to GRADED.
func (s *SubmissionService) Grade(ctx context.Context, submissionID string, req GradeRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	score := *req.Score
	if score < 0 || score > 100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score must be between 0 and 100")
	}

	status := models.SubmissionGraded
	if req.Status != nil {
		switch *req.Status {
		case models.SubmissionSubmitted, models.SubmissionGraded, models.SubmissionRejectedAI:
			status = *req.Status
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid submission status")
		}
	}

	sub, err := s.submissions.FindByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	if err := s.submissions.UpdateGrade(ctx, submissionID, score, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grade submission")
	}

	sub.Score = &score
	sub.Status = status
	return sub, nil
}

// GrantChance reopens a REJECTED_AI submission for one more attempt. The
// attempt number is unchanged here; it increments when the student actually
// resubmits.
func (s *SubmissionService) GrantChance(ctx context.Context, submissionID string) (*models.Submission, error) {
	sub, err := s.submissions.FindByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if sub.Status != models.SubmissionRejectedAI {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "can only grant chances to AI-rejected submissions")
	}
	if sub.AttemptNumber >= models.MaxAttempts {
		return nil, appErrors.Clone(appErrors.ErrAttemptLimit, "maximum attempts reached")
	}

	reopened, err := s.submissions.ReopenRejected(ctx, submissionID, models.MaxAttempts)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reopen submission")
	}
	if !reopened {
		// lost a race: the row left REJECTED_AI between the read and the update
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "can only grant chances to AI-rejected submissions")
	}

	sub.Status = models.SubmissionPending
	//nolint:errcheck // dispatch is best-effort, failures are logged inside
	s.notifier.NotifyUser(ctx, sub.StudentID,
		"Resubmission chance granted",
		"A teacher reopened your flagged submission. You may submit one more attempt.")
	return sub, nil
}

// StatsForStudent summarises a student's submission history.
func (s *SubmissionService) StatsForStudent(ctx context.Context, studentID string) (*models.SubmissionStats, error) {
	stats, err := s.submissions.StatsForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission stats")
	}
	return stats, nil
}
