package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
)

func (r *queueRepository) Create(ctx context.Context, ext sqlx.ExtContext, entry *model.QueueEntry) error {
	query := `
		INSERT INTO queue_entries (
			patient_id, visit_id, appointment_id, service_id,
			queue_type, station_id, priority_level, status,
			time_in, remarks
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := ext.QueryRowxContext(ctx, query,
		entry.PatientID,
		entry.VisitID,
		entry.AppointmentID,
		entry.ServiceID,
		entry.QueueType,
		entry.StationID,
		entry.PriorityLevel,
		entry.Status,
		entry.TimeIn,
		entry.Remarks,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to create queue entry: %w", err)
	}
	return nil
}
