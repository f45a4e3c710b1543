package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/repository"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/lifecycle"
	apperrors "github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/errors"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/logger"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/metrics"
)

// DefaultCutoff is the facility closing time.
const DefaultCutoff = "17:00:00"

// Result reports what a sweep run actually cancelled. CancelledCount may be
// lower than the pre-run pending count when state changed between the two
// reads; that race is documented behavior, not an error.
type Result struct {
	CancelledCount int `json:"cancelled_count"`
	NoShowCount    int `json:"no_show_count"`
	LeftEarlyCount int `json:"left_early_count"`
	SkippedCount   int `json:"skipped_count"`
}

// Service is the end-of-day batch that forcibly cancels stale appointments.
// Each appointment is cancelled in its own transaction so one bad row never
// blocks the rest.
type Service struct {
	appointments repository.AppointmentRepository
	lifecycle    *lifecycle.Service
	cutoff       string
	logger       *logger.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewService(appointments repository.AppointmentRepository, lc *lifecycle.Service, cutoff string, log *logger.Logger, m *metrics.Metrics) *Service {
	if cutoff == "" {
		cutoff = DefaultCutoff
	}
	return &Service{
		appointments: appointments,
		lifecycle:    lc,
		cutoff:       cutoff,
		logger:       log,
		metrics:      m,
		now:          time.Now,
	}
}

// PendingCount is the pre-run "N late appointments detected" read.
func (s *Service) PendingCount(ctx context.Context, asOf time.Time) (int64, error) {
	count, err := s.appointments.CountSweepable(ctx, asOf)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return count, nil
}

// Run cancels every confirmed (no-show) and checked_in (left-early)
// appointment scheduled for asOf's date. It refuses to run before the
// cutoff time. Re-running after completion finds zero rows.
func (s *Service) Run(ctx context.Context, asOf time.Time) (*Result, error) {
	if !s.afterCutoff(asOf) {
		return nil, apperrors.BadRequest(
			fmt.Sprintf("auto-cancellation only runs at or after closing time (%s)", s.cutoff), nil)
	}

	if s.metrics != nil {
		s.metrics.SweepRunsTotal.Inc()
	}

	result := &Result{}

	noShow, err := s.sweepStatus(ctx, asOf, model.AppointmentStatusConfirmed, "no_show", result)
	if err != nil {
		return nil, err
	}
	result.NoShowCount = noShow

	leftEarly, err := s.sweepStatus(ctx, asOf, model.AppointmentStatusCheckedIn, "left_early", result)
	if err != nil {
		return nil, err
	}
	result.LeftEarlyCount = leftEarly

	result.CancelledCount = result.NoShowCount + result.LeftEarlyCount
	return result, nil
}

func (s *Service) sweepStatus(ctx context.Context, asOf time.Time, status model.AppointmentStatus, kind string, result *Result) (int, error) {
	appointments, err := s.appointments.ListForSweep(ctx, asOf, status)
	if err != nil {
		return 0, apperrors.Internal(err)
	}

	cancelled := 0
	for _, appointment := range appointments {
		if err := s.lifecycle.CancelAsSystem(ctx, appointment); err != nil {
			if apperrors.IsCode(err, apperrors.ErrStateConflict) {
				// A manual transition got there first; not a failure.
				result.SkippedCount++
				continue
			}
			// This row rolled back; log and keep sweeping the rest.
			result.SkippedCount++
			if s.metrics != nil {
				s.metrics.SweepRowFailures.Inc()
			}
			if s.logger != nil {
				s.logger.Error(err, fmt.Sprintf("sweep failed for appointment %d", appointment.ID))
			}
			continue
		}
		cancelled++
		if s.metrics != nil {
			s.metrics.SweepCancelledTotal.WithLabelValues(kind).Inc()
		}
	}
	return cancelled, nil
}

func (s *Service) afterCutoff(asOf time.Time) bool {
	cutoff, err := time.Parse("15:04:05", s.cutoff)
	if err != nil {
		cutoff, _ = time.Parse("15:04:05", DefaultCutoff)
	}
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(),
		cutoff.Hour(), cutoff.Minute(), cutoff.Second(), 0, asOf.Location())
	return !asOf.Before(day)
}
