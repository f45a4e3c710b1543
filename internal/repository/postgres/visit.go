package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
)

func (r *visitRepository) Create(ctx context.Context, ext sqlx.ExtContext, visit *model.Visit) error {
	query := `
		INSERT INTO visits (
			patient_id, facility_id, appointment_id, visit_date,
			time_in, time_out, attending_employee_id,
			visit_status, attendance_status, remarks
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := ext.QueryRowxContext(ctx, query,
		visit.PatientID,
		visit.FacilityID,
		visit.AppointmentID,
		visit.VisitDate.Format("2006-01-02"),
		visit.TimeIn,
		visit.TimeOut,
		visit.AttendingEmployeeID,
		visit.VisitStatus,
		visit.AttendanceStatus,
		visit.Remarks,
	).Scan(&visit.ID)
	if err != nil {
		return fmt.Errorf("failed to create visit: %w", err)
	}
	return nil
}

func (r *visitRepository) GetOpenByAppointment(ctx context.Context, ext sqlx.ExtContext, appointmentID int64) (*model.Visit, error) {
	query := `
		SELECT id, patient_id, facility_id, appointment_id, visit_date,
			   time_in, time_out, attending_employee_id,
			   visit_status, attendance_status, remarks
		FROM visits
		WHERE appointment_id = $1 AND visit_status = $2
		ORDER BY id DESC
		LIMIT 1
	`
	var visit model.Visit
	err := sqlx.GetContext(ctx, ext, &visit, query, appointmentID, model.VisitStatusOngoing)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open visit: %w", err)
	}
	return &visit, nil
}

func (r *visitRepository) Close(ctx context.Context, ext sqlx.ExtContext, visitID int64, status model.VisitStatus, attendance model.AttendanceStatus, attendingEmployeeID *int64, timeOut time.Time) (bool, error) {
	query := `
		UPDATE visits
		SET visit_status = $1, attendance_status = $2,
			attending_employee_id = COALESCE($3, attending_employee_id),
			time_out = $4
		WHERE id = $5 AND visit_status = $6
	`
	result, err := ext.ExecContext(ctx, query, status, attendance, attendingEmployeeID, timeOut, visitID, model.VisitStatusOngoing)
	if err != nil {
		return false, fmt.Errorf("failed to close visit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}
