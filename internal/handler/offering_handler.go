package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-submission-api/internal/service"
	appErrors "github.com/noah-isme/lms-submission-api/pkg/errors"
	"github.com/noah-isme/lms-submission-api/pkg/response"
)

type flagService interface {
	CountFor(ctx context.Context, offeringID, studentID string) (int, error)
	CountsForOffering(ctx context.Context, offeringID string) (*service.OfferingFlagSummary, error)
}

type reportService interface {
	Render(ctx context.Context, offeringID, format string) (*service.ReportFile, error)
}

// OfferingHandler exposes the teacher-facing integrity views of an offering.
type OfferingHandler struct {
	flags   flagService
	reports reportService
}

// NewOfferingHandler constructs handler. reports may be nil when report
// generation is disabled.
func NewOfferingHandler(flags flagService, reports reportService) *OfferingHandler {
	return &OfferingHandler{flags: flags, reports: reports}
}

// StudentFlags godoc
// @Summary AI-flag count for one student in an offering
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/flags/{studentId} [get]
func (h *OfferingHandler) StudentFlags(c *gin.Context) {
	offeringID := c.Param("id")
	studentID := c.Param("studentId")

	count, err := h.flags.CountFor(c.Request.Context(), offeringID, studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"offering_id":   offeringID,
		"student_id":    studentID,
		"flagged_count": count,
	}, nil)
}

// OfferingFlags godoc
// @Summary Per-student AI-flag aggregate for an offering
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/flags [get]
func (h *OfferingHandler) OfferingFlags(c *gin.Context) {
	summary, err := h.flags.CountsForOffering(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// IntegrityReport godoc
// @Summary Download the offering integrity report
// @Tags Offerings
// @Produce octet-stream
// @Param id path string true "Offering ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /offerings/{id}/integrity-report [get]
func (h *OfferingHandler) IntegrityReport(c *gin.Context) {
	if h.reports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "report generation is disabled"))
		return
	}

	file, err := h.reports.Render(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.FileName))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
