package model

import "time"

type ActorType string

const (
	ActorEmployee ActorType = "employee"
	ActorSystem   ActorType = "system"
)

// Log actions, one per state-machine transition.
const (
	LogActionCheckedIn = "checked_in"
	LogActionCompleted = "completed"
	LogActionCancelled = "cancelled"
)

// AppointmentLog is the append-only audit trail of appointment transitions.
// Rows are never updated or deleted.
type AppointmentLog struct {
	ID            int64             `db:"id" json:"id"`
	AppointmentID int64             `db:"appointment_id" json:"appointment_id"`
	PatientID     int64             `db:"patient_id" json:"patient_id"`
	Action        string            `db:"action" json:"action"`
	OldStatus     AppointmentStatus `db:"old_status" json:"old_status"`
	NewStatus     AppointmentStatus `db:"new_status" json:"new_status"`
	Reason        string            `db:"reason" json:"reason,omitempty"`
	ActorType     ActorType         `db:"actor_type" json:"actor_type"`
	ActorID       *int64            `db:"actor_id" json:"actor_id,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}
