package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/repository"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/queueing"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/verification"
	apperrors "github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/errors"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/logger"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/messaging"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/metrics"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/security"
)

// MsgStateConflict is the operator-facing message for transitions attempted
// from a status that no longer matches.
const MsgStateConflict = "appointment not found or not in expected status"

// Notifier delivers best-effort patient notifications. Failures are logged,
// never propagated into a transition.
type Notifier interface {
	SendCancellation(ctx context.Context, appointment *model.Appointment, reason string) error
}

// Service owns the legal transitions of an appointment and the side effects
// each transition requires. Every transition runs inside a single database
// transaction; the appointment row's status column is the serialization
// point for concurrent operators.
type Service struct {
	tx           repository.TxRunner
	appointments repository.AppointmentRepository
	visits       repository.VisitRepository
	queue        repository.QueueRepository
	logs         repository.AppointmentLogRepository
	employees    repository.EmployeeRepository
	policy       *queueing.Policy
	hasher       security.PasswordHasher
	notifier     Notifier
	broker       messaging.Broker
	logger       *logger.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewService(
	tx repository.TxRunner,
	appointments repository.AppointmentRepository,
	visits repository.VisitRepository,
	queue repository.QueueRepository,
	logs repository.AppointmentLogRepository,
	employees repository.EmployeeRepository,
	policy *queueing.Policy,
	hasher security.PasswordHasher,
	notifier Notifier,
	broker messaging.Broker,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		tx:           tx,
		appointments: appointments,
		visits:       visits,
		queue:        queue,
		logs:         logs,
		employees:    employees,
		policy:       policy,
		hasher:       hasher,
		notifier:     notifier,
		broker:       broker,
		logger:       log,
		metrics:      m,
		now:          time.Now,
	}
}

// CheckInOptions collapses the legacy and QR-priority check-in paths into one
// operation. A nil Verified means the operator attested identity in person;
// an empty Priority admits at the normal tier.
type CheckInOptions struct {
	Verified          *verification.Result
	Priority          model.PriorityInput
	SpecialCategories []model.SpecialCategory
	Notes             string
}

type CheckInResult struct {
	Appointment *model.Appointment
	Visit       *model.Visit
	QueueEntry  *model.QueueEntry
	Attendance  model.AttendanceStatus
}

// CheckIn moves a confirmed appointment to checked_in: classifies attendance,
// opens a visit, admits the patient to the triage queue and appends the audit
// row, all in one transaction.
func (s *Service) CheckIn(ctx context.Context, principal *model.Principal, appointmentID int64, opts CheckInOptions) (*CheckInResult, error) {
	appointment, err := s.getAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.Status != model.AppointmentStatusConfirmed {
		return nil, apperrors.StateConflict(MsgStateConflict)
	}
	if opts.Verified != nil && opts.Verified.AppointmentID != appointmentID {
		return nil, apperrors.Verification(verification.MsgMismatchedQR)
	}

	now := s.now()
	attendance := ClassifyAttendance(appointment.ScheduledAt(), now)

	visit := &model.Visit{
		PatientID:        appointment.PatientID,
		FacilityID:       appointment.FacilityID,
		AppointmentID:    &appointment.ID,
		VisitDate:        now,
		TimeIn:           now,
		VisitStatus:      model.VisitStatusOngoing,
		AttendanceStatus: attendance,
	}

	adm := queueing.Admission{
		Priority:          opts.Priority,
		SpecialCategories: opts.SpecialCategories,
		Notes:             opts.Notes,
	}

	var entry *model.QueueEntry
	err = s.tx.WithTx(ctx, func(ext sqlx.ExtContext) error {
		// Re-check the status as part of the update itself; a pre-read
		// is not trusted under concurrency.
		ok, err := s.appointments.TransitionStatus(ctx, ext, appointment.ID,
			model.AppointmentStatusConfirmed, model.AppointmentStatusCheckedIn, nil)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.StateConflict(MsgStateConflict)
		}

		if err := s.visits.Create(ctx, ext, visit); err != nil {
			return err
		}

		entry, err = s.policy.Admit(visit, appointment, adm, now)
		if err != nil {
			return err
		}
		if err := s.queue.Create(ctx, ext, entry); err != nil {
			return err
		}

		return s.logs.Create(ctx, ext, &model.AppointmentLog{
			AppointmentID: appointment.ID,
			PatientID:     appointment.PatientID,
			Action:        model.LogActionCheckedIn,
			OldStatus:     model.AppointmentStatusConfirmed,
			NewStatus:     model.AppointmentStatusCheckedIn,
			Reason:        checkInSummary(attendance, entry),
			ActorType:     model.ActorEmployee,
			ActorID:       actorID(principal),
			CreatedAt:     now,
		})
	})
	if err != nil {
		s.observe(model.LogActionCheckedIn, err)
		return nil, err
	}

	appointment.Status = model.AppointmentStatusCheckedIn
	s.observe(model.LogActionCheckedIn, nil)
	if s.metrics != nil {
		s.metrics.QueueAdmissionsTotal.WithLabelValues(string(entry.PriorityLevel)).Inc()
	}
	s.publish(ctx, "appointment.checked_in", appointment.ID, entry)

	return &CheckInResult{
		Appointment: appointment,
		Visit:       visit,
		QueueEntry:  entry,
		Attendance:  attendance,
	}, nil
}

// CancelInput carries the operator's cancellation form. The password is
// re-verified against the acting employee's stored hash.
type CancelInput struct {
	Reason      string
	OtherReason string
	Password    string
}

// Cancel moves a confirmed or checked_in appointment to cancelled. Rejection
// leaves no partial state.
func (s *Service) Cancel(ctx context.Context, principal *model.Principal, appointmentID int64, input CancelInput) (*model.Appointment, error) {
	reason, err := resolveCancelReason(input)
	if err != nil {
		return nil, err
	}

	if err := s.reauthenticate(ctx, principal, input.Password); err != nil {
		return nil, err
	}

	appointment, err := s.getAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	from := appointment.Status
	if from != model.AppointmentStatusConfirmed && from != model.AppointmentStatusCheckedIn {
		return nil, apperrors.StateConflict(MsgStateConflict)
	}

	now := s.now()
	err = s.tx.WithTx(ctx, func(ext sqlx.ExtContext) error {
		ok, err := s.appointments.TransitionStatus(ctx, ext, appointment.ID,
			from, model.AppointmentStatusCancelled, &reason)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.StateConflict(MsgStateConflict)
		}

		if from == model.AppointmentStatusCheckedIn {
			visit, err := s.visits.GetOpenByAppointment(ctx, ext, appointment.ID)
			if err != nil {
				return err
			}
			if visit != nil {
				if _, err := s.visits.Close(ctx, ext, visit.ID,
					model.VisitStatusCancelled, visit.AttendanceStatus, nil, now); err != nil {
					return err
				}
			}
		}

		return s.logs.Create(ctx, ext, &model.AppointmentLog{
			AppointmentID: appointment.ID,
			PatientID:     appointment.PatientID,
			Action:        model.LogActionCancelled,
			OldStatus:     from,
			NewStatus:     model.AppointmentStatusCancelled,
			Reason:        reason,
			ActorType:     model.ActorEmployee,
			ActorID:       actorID(principal),
			CreatedAt:     now,
		})
	})
	if err != nil {
		s.observe(model.LogActionCancelled, err)
		return nil, err
	}

	appointment.Status = model.AppointmentStatusCancelled
	appointment.CancellationReason = &reason
	s.observe(model.LogActionCancelled, nil)
	s.publish(ctx, "appointment.cancelled", appointment.ID, nil)
	s.notifyCancellation(ctx, appointment, reason)

	return appointment, nil
}

// Complete moves a checked_in appointment to completed and closes its visit.
func (s *Service) Complete(ctx context.Context, principal *model.Principal, appointmentID int64) (*model.Appointment, error) {
	appointment, err := s.getAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.Status != model.AppointmentStatusCheckedIn {
		return nil, apperrors.StateConflict(MsgStateConflict)
	}

	now := s.now()
	err = s.tx.WithTx(ctx, func(ext sqlx.ExtContext) error {
		ok, err := s.appointments.TransitionStatus(ctx, ext, appointment.ID,
			model.AppointmentStatusCheckedIn, model.AppointmentStatusCompleted, nil)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.StateConflict(MsgStateConflict)
		}

		visit, err := s.visits.GetOpenByAppointment(ctx, ext, appointment.ID)
		if err != nil {
			return err
		}
		if visit != nil {
			if _, err := s.visits.Close(ctx, ext, visit.ID,
				model.VisitStatusCompleted, visit.AttendanceStatus, actorID(principal), now); err != nil {
				return err
			}
		}

		return s.logs.Create(ctx, ext, &model.AppointmentLog{
			AppointmentID: appointment.ID,
			PatientID:     appointment.PatientID,
			Action:        model.LogActionCompleted,
			OldStatus:     model.AppointmentStatusCheckedIn,
			NewStatus:     model.AppointmentStatusCompleted,
			ActorType:     model.ActorEmployee,
			ActorID:       actorID(principal),
			CreatedAt:     now,
		})
	})
	if err != nil {
		s.observe(model.LogActionCompleted, err)
		return nil, err
	}

	appointment.Status = model.AppointmentStatusCompleted
	s.observe(model.LogActionCompleted, nil)
	s.publish(ctx, "appointment.completed", appointment.ID, nil)

	return appointment, nil
}

// CancelAsSystem is the sweep's transition: cancel a stale appointment with
// no-show or left-early semantics, synthesizing a visit when none exists.
// One transaction per appointment; the caller decides what to do on failure.
func (s *Service) CancelAsSystem(ctx context.Context, appointment *model.Appointment) error {
	var reason string
	var attendance model.AttendanceStatus
	switch appointment.Status {
	case model.AppointmentStatusConfirmed:
		reason = model.NoShowCancelReason
		attendance = model.AttendanceNoShow
	case model.AppointmentStatusCheckedIn:
		reason = model.LeftEarlyCancelReason
		attendance = model.AttendanceLeftEarly
	default:
		return apperrors.StateConflict(MsgStateConflict)
	}

	now := s.now()
	err := s.tx.WithTx(ctx, func(ext sqlx.ExtContext) error {
		ok, err := s.appointments.TransitionStatus(ctx, ext, appointment.ID,
			appointment.Status, model.AppointmentStatusCancelled, &reason)
		if err != nil {
			return err
		}
		if !ok {
			// A manual transition won the race; this row is no
			// longer sweepable.
			return apperrors.StateConflict(MsgStateConflict)
		}

		if attendance == model.AttendanceLeftEarly {
			visit, err := s.visits.GetOpenByAppointment(ctx, ext, appointment.ID)
			if err != nil {
				return err
			}
			if visit != nil {
				if _, err := s.visits.Close(ctx, ext, visit.ID,
					model.VisitStatusCancelled, attendance, nil, now); err != nil {
					return err
				}
			} else if err := s.createClosedVisit(ctx, ext, appointment, attendance, now); err != nil {
				return err
			}
		} else if err := s.createClosedVisit(ctx, ext, appointment, attendance, now); err != nil {
			return err
		}

		return s.logs.Create(ctx, ext, &model.AppointmentLog{
			AppointmentID: appointment.ID,
			PatientID:     appointment.PatientID,
			Action:        model.LogActionCancelled,
			OldStatus:     appointment.Status,
			NewStatus:     model.AppointmentStatusCancelled,
			Reason:        reason,
			ActorType:     model.ActorSystem,
			CreatedAt:     now,
		})
	})
	if err != nil {
		s.observe(model.LogActionCancelled, err)
		return err
	}

	old := appointment.Status
	appointment.Status = model.AppointmentStatusCancelled
	appointment.CancellationReason = &reason
	s.observe(model.LogActionCancelled, nil)
	s.publish(ctx, "appointment.cancelled", appointment.ID, map[string]interface{}{
		"swept_from": old,
	})
	s.notifyCancellation(ctx, appointment, reason)
	return nil
}

// createClosedVisit records a visit that opens and closes at the same
// instant, used when the sweep cancels an appointment without an open visit.
func (s *Service) createClosedVisit(ctx context.Context, ext sqlx.ExtContext, appointment *model.Appointment, attendance model.AttendanceStatus, now time.Time) error {
	out := now
	return s.visits.Create(ctx, ext, &model.Visit{
		PatientID:        appointment.PatientID,
		FacilityID:       appointment.FacilityID,
		AppointmentID:    &appointment.ID,
		VisitDate:        now,
		TimeIn:           now,
		TimeOut:          &out,
		VisitStatus:      model.VisitStatusCancelled,
		AttendanceStatus: attendance,
		Remarks:          "Auto-cancelled by closing-time sweep",
	})
}

// Get returns a single appointment.
func (s *Service) Get(ctx context.Context, appointmentID int64) (*model.Appointment, error) {
	return s.getAppointment(ctx, appointmentID)
}

// Logs returns the append-only transition history for an appointment.
func (s *Service) Logs(ctx context.Context, appointmentID int64) ([]*model.AppointmentLog, error) {
	logs, err := s.logs.ListByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return logs, nil
}

func (s *Service) getAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	appointment, err := s.appointments.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, apperrors.Internal(err)
	}
	return appointment, nil
}

func (s *Service) reauthenticate(ctx context.Context, principal *model.Principal, password string) error {
	if principal == nil {
		return apperrors.Unauthorized("", nil)
	}

	employee, err := s.employees.Get(ctx, principal.EmployeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Unauthorized("", err)
		}
		return apperrors.Internal(err)
	}

	if err := s.hasher.Compare(employee.PasswordHash, password); err != nil {
		return apperrors.Unauthorized("incorrect password", err)
	}
	return nil
}

func resolveCancelReason(input CancelInput) (string, error) {
	if !model.ValidCancelReason(input.Reason) {
		return "", apperrors.BadRequest("invalid cancellation reason", nil)
	}
	if input.Reason != model.CancelReasonOthers {
		return input.Reason, nil
	}

	text := strings.TrimSpace(input.OtherReason)
	if text == "" {
		return "", apperrors.BadRequest("cancellation reason is required", nil)
	}
	if len(text) > model.MaxOtherReasonLength {
		return "", apperrors.BadRequest(
			fmt.Sprintf("cancellation reason must not exceed %d characters", model.MaxOtherReasonLength), nil)
	}
	return text, nil
}

func checkInSummary(attendance model.AttendanceStatus, entry *model.QueueEntry) string {
	return fmt.Sprintf("attendance=%s priority=%s queue=%s", attendance, entry.PriorityLevel, entry.QueueNumber())
}

func actorID(principal *model.Principal) *int64 {
	if principal == nil {
		return nil
	}
	id := principal.EmployeeID
	return &id
}

func (s *Service) observe(action string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		if apperrors.IsCode(err, apperrors.ErrStateConflict) {
			outcome = "conflict"
		}
	}
	s.metrics.TransitionsTotal.WithLabelValues(action, outcome).Inc()
}

func (s *Service) publish(ctx context.Context, eventType string, appointmentID int64, payload interface{}) {
	if s.broker == nil {
		return
	}
	event := messaging.Event{Type: eventType, AppointmentID: appointmentID, Payload: payload}
	if err := s.broker.Publish(ctx, "appointments.lifecycle", event); err != nil && s.logger != nil {
		s.logger.Warn(err, "failed to publish lifecycle event")
	}
}

func (s *Service) notifyCancellation(ctx context.Context, appointment *model.Appointment, reason string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendCancellation(ctx, appointment, reason); err != nil && s.logger != nil {
		s.logger.Warn(err, "failed to send cancellation notification")
	}
}
