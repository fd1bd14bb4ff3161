package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-submission-api/internal/models"
)

type notificationRepo interface {
	Create(ctx context.Context, n *models.Notification) error
	ListForUser(ctx context.Context, userID string, page, pageSize int) ([]models.Notification, int, error)
}

type teacherDirectory interface {
	TeachersFor(ctx context.Context, offeringID string) ([]models.OfferingTeacher, error)
}

// NotificationService creates notification records. Delivery is best-effort:
// callers treat every dispatch failure as non-fatal, and teacher fan-out
// isolates failures per recipient.
type NotificationService struct {
	notifications notificationRepo
	offerings     teacherDirectory
	logger        *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(notifications notificationRepo, offerings teacherDirectory, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{notifications: notifications, offerings: offerings, logger: logger}
}

// NotifyUser creates one notification for a single user.
func (s *NotificationService) NotifyUser(ctx context.Context, userID, title, body string) error {
	n := &models.Notification{UserID: userID, Title: title, Body: body}
	if err := s.notifications.Create(ctx, n); err != nil {
		s.logger.Warn("notification dispatch failed",
			zap.String("user_id", userID),
			zap.String("title", title),
			zap.Error(err))
		return err
	}
	return nil
}

// NotifyOfferingTeachers fans one notification out to every teacher of an
// offering. One failed recipient does not prevent the others; the error
// returned reflects only a failure to resolve the teacher list.
func (s *NotificationService) NotifyOfferingTeachers(ctx context.Context, offeringID, title, body string) error {
	teachers, err := s.offerings.TeachersFor(ctx, offeringID)
	if err != nil {
		s.logger.Warn("teacher fan-out skipped, directory lookup failed",
			zap.String("offering_id", offeringID),
			zap.Error(err))
		return err
	}
	for _, teacher := range teachers {
		if err := s.NotifyUser(ctx, teacher.ID, title, body); err != nil {
			continue
		}
	}
	return nil
}

// ListForUser returns a user's notifications.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, page, pageSize int) ([]models.Notification, *models.Pagination, error) {
	notifications, total, err := s.notifications.ListForUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return notifications, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}
