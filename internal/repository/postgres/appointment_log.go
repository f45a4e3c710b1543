package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
)

func (r *appointmentLogRepository) Create(ctx context.Context, ext sqlx.ExtContext, entry *model.AppointmentLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO appointment_logs (
			appointment_id, patient_id, action, old_status, new_status,
			reason, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := ext.QueryRowxContext(ctx, query,
		entry.AppointmentID,
		entry.PatientID,
		entry.Action,
		entry.OldStatus,
		entry.NewStatus,
		entry.Reason,
		entry.ActorType,
		entry.ActorID,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to create appointment log: %w", err)
	}
	return nil
}

func (r *appointmentLogRepository) ListByAppointment(ctx context.Context, appointmentID int64) ([]*model.AppointmentLog, error) {
	query := `
		SELECT id, appointment_id, patient_id, action, old_status, new_status,
			   reason, actor_type, actor_id, created_at
		FROM appointment_logs
		WHERE appointment_id = $1
		ORDER BY created_at ASC, id ASC
	`
	var logs []*model.AppointmentLog
	if err := r.db.SelectContext(ctx, &logs, query, appointmentID); err != nil {
		return nil, fmt.Errorf("failed to list appointment logs: %w", err)
	}
	return logs, nil
}
