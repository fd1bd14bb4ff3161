package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-submission-api/internal/models"
	appErrors "github.com/noah-isme/lms-submission-api/pkg/errors"
)

type flagRepo interface {
	Increment(ctx context.Context, offeringID, studentID string) error
	CountFor(ctx context.Context, offeringID, studentID string) (int, error)
}

type rejectedCounter interface {
	RejectedAICountsByOffering(ctx context.Context, offeringID string) ([]models.StudentFlagCount, error)
}

type offeringReader interface {
	FindByID(ctx context.Context, id string) (*models.Offering, error)
}

type flagCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// OfferingFlagSummary is the teacher-facing aggregate of AI flags per student.
type OfferingFlagSummary struct {
	OfferingID string                    `json:"offering_id"`
	Counts     []models.StudentFlagCount `json:"counts"`
}

// FlagService maintains the AI-flag ledger and serves flag aggregates. The
// ledger is the cheap single-pair counter; the offering-wide view is a live
// group-by over submissions, so the two stay reconciled by construction.
type FlagService struct {
	flags      flagRepo
	rejections rejectedCounter
	offerings  offeringReader
	cache      flagCache
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewFlagService constructs a FlagService. cache may be nil.
func NewFlagService(flags flagRepo, rejections rejectedCounter, offerings offeringReader, cache flagCache, cacheTTL time.Duration, logger *zap.Logger) *FlagService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &FlagService{flags: flags, rejections: rejections, offerings: offerings, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// RecordFlag increments the ledger for a pair and invalidates the cached
// offering aggregate.
func (s *FlagService) RecordFlag(ctx context.Context, offeringID, studentID string) error {
	if err := s.flags.Increment(ctx, offeringID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record flag")
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, offeringFlagsKey(offeringID)); err != nil {
			s.logger.Warn("flag cache invalidation failed", zap.String("offering_id", offeringID), zap.Error(err))
		}
	}
	return nil
}

// CountFor returns the ledger count for a single (offering, student) pair.
func (s *FlagService) CountFor(ctx context.Context, offeringID, studentID string) (int, error) {
	if _, err := s.offerings.FindByID(ctx, offeringID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	count, err := s.flags.CountFor(ctx, offeringID, studentID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count flags")
	}
	return count, nil
}

// CountsForOffering returns the live REJECTED_AI aggregate for an offering,
// cached for a short TTL.
func (s *FlagService) CountsForOffering(ctx context.Context, offeringID string) (*OfferingFlagSummary, error) {
	if _, err := s.offerings.FindByID(ctx, offeringID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}

	key := offeringFlagsKey(offeringID)
	if s.cache != nil {
		var cached OfferingFlagSummary
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("flag cache read failed", zap.String("offering_id", offeringID), zap.Error(err))
		}
	}

	counts, err := s.rejections.RejectedAICountsByOffering(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate flags")
	}
	summary := &OfferingFlagSummary{OfferingID: offeringID, Counts: counts}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary, s.cacheTTL); err != nil {
			s.logger.Warn("flag cache write failed", zap.String("offering_id", offeringID), zap.Error(err))
		}
	}
	return summary, nil
}

func offeringFlagsKey(offeringID string) string {
	return fmt.Sprintf("flags:offering:%s", offeringID)
}
