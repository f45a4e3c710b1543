package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/queueing"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/verification"
	apperrors "github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/errors"
)

type fakeTxRunner struct {
	runs int
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(ext sqlx.ExtContext) error) error {
	f.runs++
	return fn(nil)
}

type transitionCall struct {
	id     int64
	from   model.AppointmentStatus
	to     model.AppointmentStatus
	reason *string
}

type fakeAppointmentRepo struct {
	appointment   *model.Appointment
	transitions   []transitionCall
	transitionOKs []bool
	transitionErr error
}

func (f *fakeAppointmentRepo) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	if f.appointment == nil || f.appointment.ID != id {
		return nil, sql.ErrNoRows
	}
	copied := *f.appointment
	return &copied, nil
}

func (f *fakeAppointmentRepo) GetCredential(ctx context.Context, id int64) (*model.AppointmentCredential, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeAppointmentRepo) FindIDByQRToken(ctx context.Context, token string) (int64, error) {
	return 0, nil
}

func (f *fakeAppointmentRepo) TransitionStatus(ctx context.Context, ext sqlx.ExtContext, id int64, from, to model.AppointmentStatus, reason *string) (bool, error) {
	if f.transitionErr != nil {
		return false, f.transitionErr
	}
	f.transitions = append(f.transitions, transitionCall{id: id, from: from, to: to, reason: reason})
	if len(f.transitionOKs) > 0 {
		ok := f.transitionOKs[0]
		f.transitionOKs = f.transitionOKs[1:]
		return ok, nil
	}
	return true, nil
}

func (f *fakeAppointmentRepo) ListForSweep(ctx context.Context, date time.Time, status model.AppointmentStatus) ([]*model.Appointment, error) {
	return nil, nil
}

func (f *fakeAppointmentRepo) CountSweepable(ctx context.Context, date time.Time) (int64, error) {
	return 0, nil
}

type closeCall struct {
	visitID    int64
	status     model.VisitStatus
	attendance model.AttendanceStatus
	employeeID *int64
	timeOut    time.Time
}

type fakeVisitRepo struct {
	created   []*model.Visit
	open      *model.Visit
	closed    []closeCall
	createErr error
	nextID    int64
}

func (f *fakeVisitRepo) Create(ctx context.Context, ext sqlx.ExtContext, visit *model.Visit) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	visit.ID = f.nextID
	f.created = append(f.created, visit)
	return nil
}

func (f *fakeVisitRepo) GetOpenByAppointment(ctx context.Context, ext sqlx.ExtContext, appointmentID int64) (*model.Visit, error) {
	return f.open, nil
}

func (f *fakeVisitRepo) Close(ctx context.Context, ext sqlx.ExtContext, visitID int64, status model.VisitStatus, attendance model.AttendanceStatus, attendingEmployeeID *int64, timeOut time.Time) (bool, error) {
	f.closed = append(f.closed, closeCall{
		visitID:    visitID,
		status:     status,
		attendance: attendance,
		employeeID: attendingEmployeeID,
		timeOut:    timeOut,
	})
	return true, nil
}

type fakeQueueRepo struct {
	entries   []*model.QueueEntry
	createErr error
}

func (f *fakeQueueRepo) Create(ctx context.Context, ext sqlx.ExtContext, entry *model.QueueEntry) error {
	if f.createErr != nil {
		return f.createErr
	}
	entry.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, entry)
	return nil
}

type fakeLogRepo struct {
	entries []*model.AppointmentLog
}

func (f *fakeLogRepo) Create(ctx context.Context, ext sqlx.ExtContext, entry *model.AppointmentLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLogRepo) ListByAppointment(ctx context.Context, appointmentID int64) ([]*model.AppointmentLog, error) {
	return f.entries, nil
}

type fakeEmployeeRepo struct {
	employee *model.Employee
}

func (f *fakeEmployeeRepo) Get(ctx context.Context, id int64) (*model.Employee, error) {
	if f.employee == nil || f.employee.ID != id {
		return nil, sql.ErrNoRows
	}
	return f.employee, nil
}

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (fakeHasher) Compare(hashedPassword, password string) error {
	if hashedPassword != "hashed:"+password {
		return errors.New("hash mismatch")
	}
	return nil
}

type fixture struct {
	tx           *fakeTxRunner
	appointments *fakeAppointmentRepo
	visits       *fakeVisitRepo
	queue        *fakeQueueRepo
	logs         *fakeLogRepo
	employees    *fakeEmployeeRepo
	service      *Service
	now          time.Time
}

func newFixture(t *testing.T, appointment *model.Appointment) *fixture {
	t.Helper()

	f := &fixture{
		tx:           &fakeTxRunner{},
		appointments: &fakeAppointmentRepo{appointment: appointment},
		visits:       &fakeVisitRepo{},
		queue:        &fakeQueueRepo{},
		logs:         &fakeLogRepo{},
		employees: &fakeEmployeeRepo{employee: &model.Employee{
			ID:           5,
			PasswordHash: "hashed:secret-pass",
		}},
		now: time.Date(2025, 3, 10, 10, 20, 0, 0, time.UTC),
	}

	f.service = NewService(f.tx, f.appointments, f.visits, f.queue, f.logs, f.employees,
		queueing.NewPolicy(), fakeHasher{}, nil, nil, nil, nil)
	f.service.now = func() time.Time { return f.now }
	return f
}

func confirmedAppointment() *model.Appointment {
	return &model.Appointment{
		ID:            42,
		PatientID:     3,
		FacilityID:    1,
		ServiceID:     9,
		ScheduledDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		ScheduledTime: "10:00:00",
		Status:        model.AppointmentStatusConfirmed,
	}
}

func principal() *model.Principal {
	return &model.Principal{EmployeeID: 5, Role: "records_officer"}
}

func TestCheckIn_Success(t *testing.T) {
	f := newFixture(t, confirmedAppointment())

	result, err := f.service.CheckIn(context.Background(), principal(), 42, CheckInOptions{
		Verified:          &verification.Result{AppointmentID: 42, Method: verification.MethodQR},
		Priority:          model.PriorityInputUrgent,
		SpecialCategories: []model.SpecialCategory{model.CategoryPregnant},
		Notes:             "third trimester",
	})
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusCheckedIn, result.Appointment.Status)
	assert.Equal(t, model.AttendanceOnTime, result.Attendance)

	require.Len(t, f.appointments.transitions, 1)
	tc := f.appointments.transitions[0]
	assert.Equal(t, model.AppointmentStatusConfirmed, tc.from)
	assert.Equal(t, model.AppointmentStatusCheckedIn, tc.to)
	assert.Nil(t, tc.reason)

	require.Len(t, f.visits.created, 1)
	visit := f.visits.created[0]
	assert.Equal(t, model.VisitStatusOngoing, visit.VisitStatus)
	assert.Equal(t, model.AttendanceOnTime, visit.AttendanceStatus)
	assert.Equal(t, f.now, visit.TimeIn)
	require.NotNil(t, visit.AppointmentID)
	assert.Equal(t, int64(42), *visit.AppointmentID)

	require.Len(t, f.queue.entries, 1)
	entry := f.queue.entries[0]
	assert.Equal(t, model.PriorityUrgent, entry.PriorityLevel)
	assert.Equal(t, visit.ID, entry.VisitID)
	assert.Equal(t, "Priority: Urgent | Special: Pregnant | Notes: third trimester", entry.Remarks)
	assert.Equal(t, "T-001", result.QueueEntry.QueueNumber())

	require.Len(t, f.logs.entries, 1)
	logEntry := f.logs.entries[0]
	assert.Equal(t, model.LogActionCheckedIn, logEntry.Action)
	assert.Equal(t, model.ActorEmployee, logEntry.ActorType)
	require.NotNil(t, logEntry.ActorID)
	assert.Equal(t, int64(5), *logEntry.ActorID)

	assert.Equal(t, 1, f.tx.runs)
}

func TestCheckIn_DefaultsToNormalPriority(t *testing.T) {
	f := newFixture(t, confirmedAppointment())

	result, err := f.service.CheckIn(context.Background(), principal(), 42, CheckInOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.PriorityNormal, result.QueueEntry.PriorityLevel)
	assert.Equal(t, "Priority: Normal", result.QueueEntry.Remarks)
}

func TestCheckIn_AlreadyCheckedIn(t *testing.T) {
	appointment := confirmedAppointment()
	appointment.Status = model.AppointmentStatusCheckedIn
	f := newFixture(t, appointment)

	_, err := f.service.CheckIn(context.Background(), principal(), 42, CheckInOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrStateConflict))
	assert.Empty(t, f.visits.created)
	assert.Empty(t, f.queue.entries)
}

func TestCheckIn_NotFound(t *testing.T) {
	f := newFixture(t, confirmedAppointment())

	_, err := f.service.CheckIn(context.Background(), principal(), 999, CheckInOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestCheckIn_VerificationForDifferentAppointment(t *testing.T) {
	f := newFixture(t, confirmedAppointment())

	_, err := f.service.CheckIn(context.Background(), principal(), 42, CheckInOptions{
		Verified: &verification.Result{AppointmentID: 41, Method: verification.MethodQR},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrVerification))
	assert.Empty(t, f.appointments.transitions)
}

func TestCheckIn_QueueInsertFailureAbortsTransaction(t *testing.T) {
	f := newFixture(t, confirmedAppointment())
	f.queue.createErr = errors.New("queue insert failed")

	_, err := f.service.CheckIn(context.Background(), principal(), 42, CheckInOptions{})
	require.Error(t, err)
	// The audit row is written last; it must not exist when an earlier
	// step in the same transaction failed.
	assert.Empty(t, f.logs.entries)
}

func TestCheckIn_LostRaceReturnsConflict(t *testing.T) {
	f := newFixture(t, confirmedAppointment())
	// Two operators read the same confirmed appointment; the guarded
	// update lets exactly one through.
	f.appointments.transitionOKs = []bool{true, false}

	_, err := f.service.CheckIn(context.Background(), principal(), 42, CheckInOptions{})
	require.NoError(t, err)

	_, err = f.service.CheckIn(context.Background(), principal(), 42, CheckInOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrStateConflict))

	assert.Len(t, f.queue.entries, 1)
	assert.Len(t, f.logs.entries, 1)
}

func TestCancel_InvalidReason(t *testing.T) {
	f := newFixture(t, confirmedAppointment())

	_, err := f.service.Cancel(context.Background(), principal(), 42, CancelInput{
		Reason:   "Changed my mind",
		Password: "secret-pass",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
}

func TestCancel_OthersRequiresText(t *testing.T) {
	f := newFixture(t, confirmedAppointment())

	_, err := f.service.Cancel(context.Background(), principal(), 42, CancelInput{
		Reason:      model.CancelReasonOthers,
		OtherReason: "   ",
		Password:    "secret-pass",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
}

func TestCancel_OthersTextTooLong(t *testing.T) {
	f := newFixture(t, confirmedAppointment())

	_, err := f.service.Cancel(context.Background(), principal(), 42, CancelInput{
		Reason:      model.CancelReasonOthers,
		OtherReason: strings.Repeat("x", model.MaxOtherReasonLength+1),
		Password:    "secret-pass",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
}

func TestCancel_WrongPassword(t *testing.T) {
	f := newFixture(t, confirmedAppointment())

	_, err := f.service.Cancel(context.Background(), principal(), 42, CancelInput{
		Reason:   "Schedule conflict",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))
	assert.Empty(t, f.appointments.transitions)
}

func TestCancel_FromConfirmed(t *testing.T) {
	f := newFixture(t, confirmedAppointment())

	appointment, err := f.service.Cancel(context.Background(), principal(), 42, CancelInput{
		Reason:   "Schedule conflict",
		Password: "secret-pass",
	})
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusCancelled, appointment.Status)
	require.NotNil(t, appointment.CancellationReason)
	assert.Equal(t, "Schedule conflict", *appointment.CancellationReason)

	require.Len(t, f.appointments.transitions, 1)
	require.NotNil(t, f.appointments.transitions[0].reason)
	assert.Equal(t, "Schedule conflict", *f.appointments.transitions[0].reason)

	// No visit existed; nothing to close.
	assert.Empty(t, f.visits.closed)

	require.Len(t, f.logs.entries, 1)
	assert.Equal(t, model.LogActionCancelled, f.logs.entries[0].Action)
	assert.Equal(t, model.AppointmentStatusConfirmed, f.logs.entries[0].OldStatus)
}

func TestCancel_FromCheckedInClosesVisit(t *testing.T) {
	appointment := confirmedAppointment()
	appointment.Status = model.AppointmentStatusCheckedIn
	f := newFixture(t, appointment)
	f.visits.open = &model.Visit{
		ID:               11,
		VisitStatus:      model.VisitStatusOngoing,
		AttendanceStatus: model.AttendanceOnTime,
	}

	_, err := f.service.Cancel(context.Background(), principal(), 42, CancelInput{
		Reason:      model.CancelReasonOthers,
		OtherReason: "patient requested transfer",
		Password:    "secret-pass",
	})
	require.NoError(t, err)

	require.Len(t, f.visits.closed, 1)
	closed := f.visits.closed[0]
	assert.Equal(t, int64(11), closed.visitID)
	assert.Equal(t, model.VisitStatusCancelled, closed.status)
	assert.Equal(t, model.AttendanceOnTime, closed.attendance)
	assert.Equal(t, f.now, closed.timeOut)
}

func TestCancel_TerminalStatus(t *testing.T) {
	appointment := confirmedAppointment()
	appointment.Status = model.AppointmentStatusCompleted
	f := newFixture(t, appointment)

	_, err := f.service.Cancel(context.Background(), principal(), 42, CancelInput{
		Reason:   "Schedule conflict",
		Password: "secret-pass",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrStateConflict))
}

func TestComplete_Success(t *testing.T) {
	appointment := confirmedAppointment()
	appointment.Status = model.AppointmentStatusCheckedIn
	f := newFixture(t, appointment)
	f.visits.open = &model.Visit{
		ID:               11,
		VisitStatus:      model.VisitStatusOngoing,
		AttendanceStatus: model.AttendanceLate,
	}

	result, err := f.service.Complete(context.Background(), principal(), 42)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, result.Status)

	require.Len(t, f.visits.closed, 1)
	closed := f.visits.closed[0]
	assert.Equal(t, model.VisitStatusCompleted, closed.status)
	assert.Equal(t, model.AttendanceLate, closed.attendance)
	require.NotNil(t, closed.employeeID)
	assert.Equal(t, int64(5), *closed.employeeID)
}

func TestComplete_FromConfirmedIsConflict(t *testing.T) {
	f := newFixture(t, confirmedAppointment())

	_, err := f.service.Complete(context.Background(), principal(), 42)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrStateConflict))
}

func TestCancelAsSystem_NoShow(t *testing.T) {
	appointment := confirmedAppointment()
	f := newFixture(t, appointment)

	err := f.service.CancelAsSystem(context.Background(), appointment)
	require.NoError(t, err)

	require.NotNil(t, appointment.CancellationReason)
	assert.Equal(t, model.NoShowCancelReason, *appointment.CancellationReason)

	// A no-show never checked in, so the sweep records a visit that opens
	// and closes at the same instant.
	require.Len(t, f.visits.created, 1)
	visit := f.visits.created[0]
	assert.Equal(t, model.VisitStatusCancelled, visit.VisitStatus)
	assert.Equal(t, model.AttendanceNoShow, visit.AttendanceStatus)
	require.NotNil(t, visit.TimeOut)
	assert.Equal(t, visit.TimeIn, *visit.TimeOut)

	require.Len(t, f.logs.entries, 1)
	logEntry := f.logs.entries[0]
	assert.Equal(t, model.ActorSystem, logEntry.ActorType)
	assert.Nil(t, logEntry.ActorID)
}

func TestCancelAsSystem_LeftEarlyClosesOpenVisit(t *testing.T) {
	appointment := confirmedAppointment()
	appointment.Status = model.AppointmentStatusCheckedIn
	f := newFixture(t, appointment)
	f.visits.open = &model.Visit{ID: 11, VisitStatus: model.VisitStatusOngoing}

	err := f.service.CancelAsSystem(context.Background(), appointment)
	require.NoError(t, err)

	require.NotNil(t, appointment.CancellationReason)
	assert.Equal(t, model.LeftEarlyCancelReason, *appointment.CancellationReason)

	require.Len(t, f.visits.closed, 1)
	assert.Equal(t, model.AttendanceLeftEarly, f.visits.closed[0].attendance)
	assert.Empty(t, f.visits.created)
}

func TestCancelAsSystem_TerminalStatusIsConflict(t *testing.T) {
	appointment := confirmedAppointment()
	appointment.Status = model.AppointmentStatusCancelled
	f := newFixture(t, appointment)

	err := f.service.CancelAsSystem(context.Background(), appointment)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrStateConflict))
	assert.Equal(t, 0, f.tx.runs)
}
