package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-submission-api/internal/models"
	appErrors "github.com/noah-isme/lms-submission-api/pkg/errors"
)

type stubAggregator struct {
	summary *OfferingFlagSummary
}

func (s *stubAggregator) CountsForOffering(ctx context.Context, offeringID string) (*OfferingFlagSummary, error) {
	return s.summary, nil
}

func TestRenderCSVReport(t *testing.T) {
	agg := &stubAggregator{summary: &OfferingFlagSummary{
		OfferingID: "o1",
		Counts: []models.StudentFlagCount{
			{StudentID: "s1", StudentName: "Alice", Count: 3},
			{StudentID: "s2", StudentName: "Bob", Count: 1},
		},
	}}
	svc := NewReportService(agg, zap.NewNop())

	file, err := svc.Render(context.Background(), "o1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Contains(t, file.FileName, "integrity-report-o1")

	body := string(file.Content)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Student")
	assert.Contains(t, lines[1], "Alice")
	assert.Contains(t, lines[2], "Bob")
}

func TestRenderPDFReport(t *testing.T) {
	agg := &stubAggregator{summary: &OfferingFlagSummary{OfferingID: "o1"}}
	svc := NewReportService(agg, zap.NewNop())

	file, err := svc.Render(context.Background(), "o1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Content), "%PDF"))
}

func TestRenderUnknownFormat(t *testing.T) {
	agg := &stubAggregator{summary: &OfferingFlagSummary{OfferingID: "o1"}}
	svc := NewReportService(agg, zap.NewNop())

	_, err := svc.Render(context.Background(), "o1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
