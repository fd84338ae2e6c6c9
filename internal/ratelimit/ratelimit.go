package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	ratelimitDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/ratelimit"
	"github.com/frahmantamala/attendance/pkg/clock"
	"github.com/frahmantamala/attendance/pkg/logger"
	"gorm.io/gorm"
)

// Endpoint names used as the second half of a limiter key.
const (
	EndpointLogin    = "login"
	EndpointCheckIn  = "checkin"
	EndpointCheckOut = "checkout"
)

const DefaultWindow = time.Minute

// Limits holds the per-endpoint attempt budgets.
type Limits struct {
	Login    int
	CheckIn  int
	CheckOut int
}

func DefaultLimits() Limits {
	return Limits{Login: 5, CheckIn: 3, CheckOut: 3}
}

// Checker is the side of the limiter services depend on.
type Checker interface {
	Allow(ctx context.Context, identifier, endpoint string, limit int) bool
}

// Limiter counts attempts per (identifier, endpoint) in a fixed window that
// opens with the first attempt. Counters live in the rate_limits table so
// every process sharing the database sees the same budget.
type Limiter struct {
	db     *gorm.DB
	clock  clock.Clock
	window time.Duration
	logger *slog.Logger
}

func NewLimiter(db *gorm.DB, clk clock.Clock, window time.Duration, logger *slog.Logger) *Limiter {
	if clk == nil {
		clk = clock.Real()
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{db: db, clock: clk, window: window, logger: logger}
}

var errLimitReached = errors.New("limit reached")

// Allow records an attempt and reports whether it fits the budget. Storage
// failures let the attempt through.
func (l *Limiter) Allow(ctx context.Context, identifier, endpoint string, limit int) bool {
	log := logger.FromOr(ctx, l.logger)

	var err error
	// a concurrent first attempt on the same key can lose the insert race once
	for attempt := 0; attempt < 2; attempt++ {
		err = l.record(ctx, identifier, endpoint, limit)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}

	switch {
	case err == nil:
		return true
	case errors.Is(err, errLimitReached):
		log.Info("rate limit reached", "identifier", identifier, "endpoint", endpoint, "limit", limit)
		return false
	default:
		log.Warn("rate limiter degraded, allowing attempt",
			"identifier", identifier, "endpoint", endpoint, "error", err)
		return true
	}
}

// record spends one attempt. The increment is conditional on the stored count
// so two requests reading the same count cannot both slip under the limit.
func (l *Limiter) record(ctx context.Context, identifier, endpoint string, limit int) error {
	now := l.clock.Now().UTC()
	cutoff := now.Add(-l.window)

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("window_start < ?", cutoff).
			Delete(&ratelimitDatamodel.RateLimit{}).Error; err != nil {
			return err
		}

		res := tx.Model(&ratelimitDatamodel.RateLimit{}).
			Where("identifier = ? AND endpoint = ? AND attempt_count < ?", identifier, endpoint, limit).
			Update("attempt_count", gorm.Expr("attempt_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		var existing int64
		if err := tx.Model(&ratelimitDatamodel.RateLimit{}).
			Where("identifier = ? AND endpoint = ?", identifier, endpoint).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 || limit <= 0 {
			return errLimitReached
		}

		return tx.Create(&ratelimitDatamodel.RateLimit{
			Identifier:   identifier,
			Endpoint:     endpoint,
			AttemptCount: 1,
			WindowStart:  now,
		}).Error
	})
}
