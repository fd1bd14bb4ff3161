package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-submission-api/internal/models"
	"github.com/noah-isme/lms-submission-api/pkg/classifier"
	appErrors "github.com/noah-isme/lms-submission-api/pkg/errors"
)

type mockSubmissionRepo struct {
	subs      map[string]*models.Submission
	recordErr error
}

func newMockSubmissionRepo() *mockSubmissionRepo {
	return &mockSubmissionRepo{subs: make(map[string]*models.Submission)}
}

func (m *mockSubmissionRepo) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	if sub, ok := m.subs[id]; ok {
		copy := *sub
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) Record(ctx context.Context, sub *models.Submission) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	now := time.Now().UTC()
	for _, existing := range m.subs {
		if existing.AssignmentID == sub.AssignmentID && existing.StudentID == sub.StudentID && existing.Status == models.SubmissionPending {
			existing.AttemptNumber++
			existing.TextAnswer = sub.TextAnswer
			existing.Status = sub.Status
			existing.SubmittedAt = now
			existing.UpdatedAt = now
			*sub = *existing
			return nil
		}
	}
	max := 0
	for _, existing := range m.subs {
		if existing.AssignmentID == sub.AssignmentID && existing.StudentID == sub.StudentID && existing.AttemptNumber > max {
			max = existing.AttemptNumber
		}
	}
	sub.ID = fmt.Sprintf("sub-%d", len(m.subs)+1)
	sub.AttemptNumber = max + 1
	sub.SubmittedAt = now
	sub.CreatedAt = now
	sub.UpdatedAt = now
	copy := *sub
	m.subs[sub.ID] = &copy
	return nil
}

func (m *mockSubmissionRepo) UpdateGrade(ctx context.Context, id string, score float64, status models.SubmissionStatus) error {
	sub, ok := m.subs[id]
	if !ok {
		return sql.ErrNoRows
	}
	sub.Score = &score
	sub.Status = status
	return nil
}

func (m *mockSubmissionRepo) ReopenRejected(ctx context.Context, id string, maxAttempts int) (bool, error) {
	sub, ok := m.subs[id]
	if !ok || sub.Status != models.SubmissionRejectedAI || sub.AttemptNumber >= maxAttempts {
		return false, nil
	}
	sub.Status = models.SubmissionPending
	return true, nil
}

func (m *mockSubmissionRepo) StatsForStudent(ctx context.Context, studentID string) (*models.SubmissionStats, error) {
	stats := &models.SubmissionStats{}
	for _, sub := range m.subs {
		if sub.StudentID != studentID {
			continue
		}
		stats.TotalSubmissions++
		if sub.Status == models.SubmissionRejectedAI {
			stats.RejectedAI++
		}
	}
	return stats, nil
}

type mockAssignmentReader struct {
	assignments map[string]*models.Assignment
}

func (m *mockAssignmentReader) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	if a, ok := m.assignments[id]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

type mockStudentReader struct {
	users map[string]*models.User
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type mockClassifier struct {
	verdict *classifier.Verdict
	err     error
	calls   int
}

func (m *mockClassifier) Classify(ctx context.Context, text string) (*classifier.Verdict, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.verdict, nil
}

type sentNotification struct {
	UserID     string
	OfferingID string
	Title      string
}

type mockNotifier struct {
	sent    []sentNotification
	userErr error
}

func (m *mockNotifier) NotifyUser(ctx context.Context, userID, title, body string) error {
	if m.userErr != nil {
		return m.userErr
	}
	m.sent = append(m.sent, sentNotification{UserID: userID, Title: title})
	return nil
}

func (m *mockNotifier) NotifyOfferingTeachers(ctx context.Context, offeringID, title, body string) error {
	m.sent = append(m.sent, sentNotification{OfferingID: offeringID, Title: title})
	return nil
}

type mockFlagLedger struct {
	counts map[string]int
	err    error
}

func (m *mockFlagLedger) RecordFlag(ctx context.Context, offeringID, studentID string) error {
	if m.err != nil {
		return m.err
	}
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[offeringID+":"+studentID]++
	return nil
}

type lifecycleFixture struct {
	svc      *SubmissionService
	repo     *mockSubmissionRepo
	cls      *mockClassifier
	notifier *mockNotifier
	flags    *mockFlagLedger
}

func newLifecycleFixture(t *testing.T, cls *mockClassifier) *lifecycleFixture {
	t.Helper()
	repo := newMockSubmissionRepo()
	dueAt := time.Now().Add(24 * time.Hour)
	assignments := &mockAssignmentReader{assignments: map[string]*models.Assignment{
		"a1": {ID: "a1", OfferingID: "o1", Title: "Essay One", QuestionType: models.QuestionTypeText, DueAt: &dueAt},
		"a2": {ID: "a2", OfferingID: "o1", Title: "No Deadline", QuestionType: models.QuestionTypeText},
	}}
	students := &mockStudentReader{users: map[string]*models.User{
		"s1": {ID: "s1", FullName: "Alice Student", Role: models.RoleStudent},
	}}
	notifier := &mockNotifier{}
	flags := &mockFlagLedger{}
	svc := NewSubmissionService(repo, assignments, students, cls, notifier, flags, nil, validator.New(), zap.NewNop())
	return &lifecycleFixture{svc: svc, repo: repo, cls: cls, notifier: notifier, flags: flags}
}

func humanVerdict() *classifier.Verdict {
	return &classifier.Verdict{Prediction: classifier.PredictionHuman, Confidence: 0.9, Probabilities: classifier.Probabilities{Human: 0.9, AI: 0.1}}
}

func aiVerdict() *classifier.Verdict {
	return &classifier.Verdict{Prediction: classifier.PredictionAI, Confidence: 0.97, Probabilities: classifier.Probabilities{Human: 0.03, AI: 0.97}}
}

func TestSubmitEmptyTextRejected(t *testing.T) {
	f := newLifecycleFixture(t, &mockClassifier{verdict: humanVerdict()})
	_, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "a1", StudentID: "s1", TextAnswer: "   \n\t"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Zero(t, f.cls.calls)
	assert.Empty(t, f.repo.subs)
}

func TestSubmitAssignmentNotFound(t *testing.T) {
	f := newLifecycleFixture(t, &mockClassifier{verdict: humanVerdict()})
	_, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "missing", StudentID: "s1", TextAnswer: "hello"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubmitOverdue(t *testing.T) {
	f := newLifecycleFixture(t, &mockClassifier{verdict: humanVerdict()})
	f.svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	_, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "a1", StudentID: "s1", TextAnswer: "late answer"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrOverdue.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.repo.subs, "no row may be created for an overdue submission")
}

func TestSubmitHumanVerdict(t *testing.T) {
	f := newLifecycleFixture(t, &mockClassifier{verdict: humanVerdict()})
	result, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "a1", StudentID: "s1", TextAnswer: "my own words"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionSubmitted, result.Submission.Status)
	assert.Equal(t, 1, result.Submission.AttemptNumber)
	assert.Nil(t, result.Moderation)
	assert.Empty(t, f.flags.counts)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "o1", f.notifier.sent[0].OfferingID)
}

func TestSubmitAIVerdict(t *testing.T) {
	f := newLifecycleFixture(t, &mockClassifier{verdict: aiVerdict()})
	result, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "a1", StudentID: "s1", TextAnswer: "generated prose"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionRejectedAI, result.Submission.Status)
	require.NotNil(t, result.Moderation, "rejection must carry verdict details")
	assert.Equal(t, classifier.PredictionAI, result.Moderation.Prediction)
	assert.InDelta(t, 0.97, result.Moderation.Confidence, 1e-9)
	assert.InDelta(t, 0.97, result.Moderation.AIProbability, 1e-9)

	assert.Equal(t, 1, f.flags.counts["o1:s1"])
	require.Len(t, f.notifier.sent, 2, "student and teachers each get one notification")
	assert.Equal(t, "s1", f.notifier.sent[0].UserID)
	assert.Equal(t, "o1", f.notifier.sent[1].OfferingID)
	// the flagged row is still persisted for audit history
	require.Len(t, f.repo.subs, 1)
}

func TestSubmitClassifierFailureFallsOpen(t *testing.T) {
	f := newLifecycleFixture(t, &mockClassifier{err: &classifier.UnavailableError{Reason: "timeout"}})
	result, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "a1", StudentID: "s1", TextAnswer: "legit answer"})
	require.NoError(t, err, "classifier unavailability must never block a submission")
	assert.Equal(t, models.SubmissionSubmitted, result.Submission.Status)
	assert.Nil(t, result.Moderation)
	assert.Empty(t, f.flags.counts)
}

func TestSubmitNilClassifierProceedsUnflagged(t *testing.T) {
	repo := newMockSubmissionRepo()
	assignments := &mockAssignmentReader{assignments: map[string]*models.Assignment{
		"a2": {ID: "a2", OfferingID: "o1", Title: "No Deadline", QuestionType: models.QuestionTypeText},
	}}
	svc := NewSubmissionService(repo, assignments, &mockStudentReader{}, nil, &mockNotifier{}, &mockFlagLedger{}, nil, validator.New(), zap.NewNop())
	result, err := svc.Submit(context.Background(), SubmitRequest{AssignmentID: "a2", StudentID: "s1", TextAnswer: "answer"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionSubmitted, result.Submission.Status)
}

func TestSubmitNotificationFailureDoesNotBlock(t *testing.T) {
	f := newLifecycleFixture(t, &mockClassifier{verdict: aiVerdict()})
	f.notifier.userErr = fmt.Errorf("notification store down")
	result, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "a1", StudentID: "s1", TextAnswer: "generated"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionRejectedAI, result.Submission.Status)
}

func TestAttemptNumbersAreSequential(t *testing.T) {
	f := newLifecycleFixture(t, &mockClassifier{verdict: aiVerdict()})

	// first attempt gets flagged
	first, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "a1", StudentID: "s1", TextAnswer: "try one"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Submission.AttemptNumber)

	// teacher grants a chance, student resubmits, row updates in place
	_, err = f.svc.GrantChance(context.Background(), first.Submission.ID)
	require.NoError(t, err)

	f.cls.verdict = humanVerdict()
	second, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "a1", StudentID: "s1", TextAnswer: "try two"})
	require.NoError(t, err)
	assert.Equal(t, first.Submission.ID, second.Submission.ID)
	assert.Equal(t, 2, second.Submission.AttemptNumber)
	assert.Equal(t, models.SubmissionSubmitted, second.Submission.Status)
	require.Len(t, f.repo.subs, 1, "resubmission must not create a second row")
}

func TestGrantChanceRequiresRejectedStatus(t *testing.T) {
	f := newLifecycleFixture(t, &mockClassifier{verdict: humanVerdict()})
	result, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "a1", StudentID: "s1", TextAnswer: "fine work"})
	require.NoError(t, err)

	_, err = f.svc.GrantChance(context.Background(), result.Submission.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.SubmissionSubmitted, f.repo.subs[result.Submission.ID].Status, "row must be unmodified")
}

func TestGrantChanceAttemptLimit(t *testing.T) {
	f := newLifecycleFixture(t, &mockClassifier{verdict: aiVerdict()})
	f.repo.subs["sub-x"] = &models.Submission{
		ID: "sub-x", AssignmentID: "a1", StudentID: "s1",
		AttemptNumber: models.MaxAttempts, Status: models.SubmissionRejectedAI,
	}
	_, err := f.svc.GrantChance(context.Background(), "sub-x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAttemptLimit.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.SubmissionRejectedAI, f.repo.subs["sub-x"].Status)
}

func TestGrantChanceTwiceFails(t *testing.T) {
	f := newLifecycleFixture(t, &mockClassifier{verdict: aiVerdict()})
	result, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "a1", StudentID: "s1", TextAnswer: "generated"})
	require.NoError(t, err)

	granted, err := f.svc.GrantChance(context.Background(), result.Submission.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionPending, granted.Status)

	_, err = f.svc.GrantChance(context.Background(), result.Submission.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestGrantChanceNotFound(t *testing.T) {
	f := newLifecycleFixture(t, &mockClassifier{verdict: humanVerdict()})
	_, err := f.svc.GrantChance(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestThirdAttemptIsFinal(t *testing.T) {
	f := newLifecycleFixture(t, &mockClassifier{verdict: aiVerdict()})

	first, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "a1", StudentID: "s1", TextAnswer: "one"})
	require.NoError(t, err)
	_, err = f.svc.GrantChance(context.Background(), first.Submission.ID)
	require.NoError(t, err)

	second, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "a1", StudentID: "s1", TextAnswer: "two"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Submission.AttemptNumber)
	_, err = f.svc.GrantChance(context.Background(), second.Submission.ID)
	require.NoError(t, err)

	third, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "a1", StudentID: "s1", TextAnswer: "three"})
	require.NoError(t, err)
	assert.Equal(t, 3, third.Submission.AttemptNumber)

	_, err = f.svc.GrantChance(context.Background(), third.Submission.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAttemptLimit.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 3, f.flags.counts["o1:s1"])
}

func TestGradeDefaultsToGraded(t *testing.T) {
	f := newLifecycleFixture(t, &mockClassifier{verdict: humanVerdict()})
	result, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "a1", StudentID: "s1", TextAnswer: "good work"})
	require.NoError(t, err)

	score := 85.0
	graded, err := f.svc.Grade(context.Background(), result.Submission.ID, GradeRequest{Score: &score})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionGraded, graded.Status)
	require.NotNil(t, graded.Score)
	assert.Equal(t, 85.0, *graded.Score)
}

func TestGradeIsIdempotent(t *testing.T) {
	f := newLifecycleFixture(t, &mockClassifier{verdict: humanVerdict()})
	result, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "a1", StudentID: "s1", TextAnswer: "good work"})
	require.NoError(t, err)

	score := 85.0
	_, err = f.svc.Grade(context.Background(), result.Submission.ID, GradeRequest{Score: &score})
	require.NoError(t, err)
	graded, err := f.svc.Grade(context.Background(), result.Submission.ID, GradeRequest{Score: &score})
	require.NoError(t, err)
	assert.Equal(t, 85.0, *graded.Score)
	assert.Len(t, f.repo.subs, 1, "grading must not create rows")
}

func TestGradeScoreOutOfRange(t *testing.T) {
	f := newLifecycleFixture(t, &mockClassifier{verdict: humanVerdict()})
	score := 101.0
	_, err := f.svc.Grade(context.Background(), "any", GradeRequest{Score: &score})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGradeNotFound(t *testing.T) {
	f := newLifecycleFixture(t, &mockClassifier{verdict: humanVerdict()})
	score := 50.0
	_, err := f.svc.Grade(context.Background(), "missing", GradeRequest{Score: &score})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStatsForStudent(t *testing.T) {
	f := newLifecycleFixture(t, &mockClassifier{verdict: aiVerdict()})
	_, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "a1", StudentID: "s1", TextAnswer: "one"})
	require.NoError(t, err)
	f.cls.verdict = humanVerdict()
	_, err = f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "a2", StudentID: "s1", TextAnswer: "two"})
	require.NoError(t, err)

	stats, err := f.svc.StatsForStudent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSubmissions)
	assert.Equal(t, 1, stats.RejectedAI)
}
