package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-submission-api/pkg/export"
	appErrors "github.com/noah-isme/lms-submission-api/pkg/errors"
)

type flagAggregator interface {
	CountsForOffering(ctx context.Context, offeringID string) (*OfferingFlagSummary, error)
}

// ReportFile is a rendered integrity report ready for download.
type ReportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ReportService renders the offering integrity report.
type ReportService struct {
	flags  flagAggregator
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(flags flagAggregator, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		flags:  flags,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// Render produces the REJECTED_AI aggregate for an offering as csv or pdf.
func (s *ReportService) Render(ctx context.Context, offeringID, format string) (*ReportFile, error) {
	summary, err := s.flags.CountsForOffering(ctx, offeringID)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{Headers: []string{"Student", "Student ID", "AI Flags"}}
	for _, row := range summary.Counts {
		data.Rows = append(data.Rows, map[string]string{
			"Student":    row.StudentName,
			"Student ID": row.StudentID,
			"AI Flags":   strconv.Itoa(row.Count),
		})
	}

	stamp := time.Now().UTC().Format("2006-01-02")
	switch format {
	case "csv", "":
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return &ReportFile{
			FileName:    fmt.Sprintf("integrity-report-%s-%s.csv", offeringID, stamp),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	case "pdf":
		content, err := s.pdf.Render(data, "Integrity Report")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return &ReportFile{
			FileName:    fmt.Sprintf("integrity-report-%s-%s.pdf", offeringID, stamp),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
