package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-submission-api/internal/models"
	appErrors "github.com/noah-isme/lms-submission-api/pkg/errors"
	"github.com/noah-isme/lms-submission-api/pkg/response"
)

type notificationLister interface {
	ListForUser(ctx context.Context, userID string, page, pageSize int) ([]models.Notification, *models.Pagination, error)
}

// NotificationHandler exposes the notification inbox.
type NotificationHandler struct {
	notifications notificationLister
}

// NewNotificationHandler constructs handler.
func NewNotificationHandler(notifications notificationLister) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ListMine godoc
// @Summary List notifications for the authenticated user
// @Tags Notifications
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	page, pageSize := 1, 20
	if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		page = p
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		pageSize = size
	}

	notifications, pagination, err := h.notifications.ListForUser(c.Request.Context(), claims.UserID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, pagination)
}
