package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-submission-api/internal/models"
	"github.com/noah-isme/lms-submission-api/internal/service"
	appErrors "github.com/noah-isme/lms-submission-api/pkg/errors"
	"github.com/noah-isme/lms-submission-api/pkg/response"
)

type submissionLifecycle interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error)
	Grade(ctx context.Context, submissionID string, req service.GradeRequest) (*models.Submission, error)
	GrantChance(ctx context.Context, submissionID string) (*models.Submission, error)
	StatsForStudent(ctx context.Context, studentID string) (*models.SubmissionStats, error)
}

// SubmissionHandler exposes the submission lifecycle endpoints.
type SubmissionHandler struct {
	submissions submissionLifecycle
}

// NewSubmissionHandler constructs handler.
func NewSubmissionHandler(submissions submissionLifecycle) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions}
}

type submitPayload struct {
	TextAnswer string `json:"text_answer"`
}

// Submit godoc
// @Summary Submit an answer to an assignment
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body submitPayload true "Submission payload"
// @Success 201 {object} response.Envelope
// @Router /assignments/{id}/submissions [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload submitPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.submissions.Submit(c.Request.Context(), service.SubmitRequest{
		AssignmentID: c.Param("id"),
		StudentID:    claims.UserID,
		TextAnswer:   payload.TextAnswer,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Moderation != nil {
		response.CreatedWithMeta(c, result.Submission, map[string]interface{}{"moderation": result.Moderation})
		return
	}
	response.Created(c, result.Submission)
}

// Grade godoc
// @Summary Grade a submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.GradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/grade [patch]
func (h *SubmissionHandler) Grade(c *gin.Context) {
	var req service.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	sub, err := h.submissions.Grade(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// GrantChance godoc
// @Summary Grant a resubmission chance for an AI-rejected submission
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/grant-chance [patch]
func (h *SubmissionHandler) GrantChance(c *gin.Context) {
	sub, err := h.submissions.GrantChance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil, map[string]interface{}{"message": "resubmission chance granted"})
}

// MyStats godoc
// @Summary Submission stats for the authenticated student
// @Tags Submissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /students/me/submission-stats [get]
func (h *SubmissionHandler) MyStats(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	stats, err := h.submissions.StatsForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
