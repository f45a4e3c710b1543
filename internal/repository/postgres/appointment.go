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

func (r *appointmentRepository) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	query := `
		SELECT id, patient_id, facility_id, service_id, referral_id,
			   scheduled_date, scheduled_time, status, cancellation_reason,
			   created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) GetCredential(ctx context.Context, id int64) (*model.AppointmentCredential, error) {
	query := `
		SELECT id, qr_token, qr_expires_at, verification_code
		FROM appointments
		WHERE id = $1
	`
	var cred model.AppointmentCredential
	if err := r.db.GetContext(ctx, &cred, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get appointment credential: %w", err)
	}
	return &cred, nil
}

func (r *appointmentRepository) FindIDByQRToken(ctx context.Context, token string) (int64, error) {
	query := `SELECT id FROM appointments WHERE qr_token = $1`

	var id int64
	if err := r.db.GetContext(ctx, &id, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to look up QR token: %w", err)
	}
	return id, nil
}

// TransitionStatus applies the guarded status update. The from-status clause
// is the serialization point for concurrent transitions: whichever statement
// commits first wins, the loser sees zero affected rows.
func (r *appointmentRepository) TransitionStatus(ctx context.Context, ext sqlx.ExtContext, id int64, from, to model.AppointmentStatus, cancellationReason *string) (bool, error) {
	query := `
		UPDATE appointments
		SET status = $1, cancellation_reason = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	result, err := ext.ExecContext(ctx, query, to, cancellationReason, time.Now(), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update appointment status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *appointmentRepository) ListForSweep(ctx context.Context, date time.Time, status model.AppointmentStatus) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, facility_id, service_id, referral_id,
			   scheduled_date, scheduled_time, status, cancellation_reason,
			   created_at, updated_at
		FROM appointments
		WHERE scheduled_date = $1 AND status = $2
		ORDER BY id ASC
	`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, date.Format("2006-01-02"), status); err != nil {
		return nil, fmt.Errorf("failed to list appointments for sweep: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) CountSweepable(ctx context.Context, date time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM appointments
		WHERE scheduled_date = $1 AND status IN ($2, $3)
	`
	var count int64
	err := r.db.GetContext(ctx, &count, query, date.Format("2006-01-02"),
		model.AppointmentStatusConfirmed, model.AppointmentStatusCheckedIn)
	if err != nil {
		return 0, fmt.Errorf("failed to count sweepable appointments: %w", err)
	}
	return count, nil
}
