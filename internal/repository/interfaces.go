package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
)

// TxRunner executes a function inside a database transaction. Repository
// methods that must participate in a transition take an sqlx.ExtContext so
// the same code path serves *sqlx.DB and *sqlx.Tx.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ext sqlx.ExtContext) error) error
}

type (
	AppointmentRepository interface {
		Get(ctx context.Context, id int64) (*model.Appointment, error)
		GetCredential(ctx context.Context, id int64) (*model.AppointmentCredential, error)
		// FindIDByQRToken resolves which appointment a token belongs to,
		// 0 when unknown. Used to tell a mismatched QR apart from an
		// invalid one.
		FindIDByQRToken(ctx context.Context, token string) (int64, error)
		// TransitionStatus performs the guarded status update. The
		// from-status check is part of the UPDATE's WHERE clause; false
		// means zero rows matched and the caller must treat the
		// transition as a state conflict.
		TransitionStatus(ctx context.Context, ext sqlx.ExtContext, id int64, from, to model.AppointmentStatus, cancellationReason *string) (bool, error)
		// ListForSweep returns appointments on the given date still in
		// the given status.
		ListForSweep(ctx context.Context, date time.Time, status model.AppointmentStatus) ([]*model.Appointment, error)
		// CountSweepable is the pre-run "N late appointments detected"
		// read; it may legitimately differ from what the sweep cancels.
		CountSweepable(ctx context.Context, date time.Time) (int64, error)
	}

	VisitRepository interface {
		Create(ctx context.Context, ext sqlx.ExtContext, visit *model.Visit) error
		// GetOpenByAppointment returns the ongoing visit for an
		// appointment, or nil when none exists.
		GetOpenByAppointment(ctx context.Context, ext sqlx.ExtContext, appointmentID int64) (*model.Visit, error)
		// Close sets time_out, visit_status and attendance_status; false
		// when the visit row no longer matches.
		Close(ctx context.Context, ext sqlx.ExtContext, visitID int64, status model.VisitStatus, attendance model.AttendanceStatus, attendingEmployeeID *int64, timeOut time.Time) (bool, error)
	}

	QueueRepository interface {
		Create(ctx context.Context, ext sqlx.ExtContext, entry *model.QueueEntry) error
	}

	AppointmentLogRepository interface {
		Create(ctx context.Context, ext sqlx.ExtContext, entry *model.AppointmentLog) error
		ListByAppointment(ctx context.Context, appointmentID int64) ([]*model.AppointmentLog, error)
	}

	EmployeeRepository interface {
		Get(ctx context.Context, id int64) (*model.Employee, error)
	}

	PatientRepository interface {
		Get(ctx context.Context, id int64) (*model.Patient, error)
	}

	LabOrderRepository interface {
		GetOrderForUpdate(ctx context.Context, ext sqlx.ExtContext, id int64) (*model.LabOrder, error)
		CompleteItem(ctx context.Context, ext sqlx.ExtContext, orderID, itemID int64) (bool, error)
		CountItems(ctx context.Context, ext sqlx.ExtContext, orderID int64) (total, completed int64, err error)
		SetOverallStatus(ctx context.Context, ext sqlx.ExtContext, id int64, status model.LabOrderStatus) error
	}
)
