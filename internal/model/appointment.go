package model

import (
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCheckedIn AppointmentStatus = "checked_in"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Terminal reports whether no further transition is permitted from s.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled
}

type Appointment struct {
	ID                 int64             `db:"id" json:"id"`
	PatientID          int64             `db:"patient_id" json:"patient_id"`
	FacilityID         int64             `db:"facility_id" json:"facility_id"`
	ServiceID          int64             `db:"service_id" json:"service_id"`
	ReferralID         *int64            `db:"referral_id" json:"referral_id,omitempty"`
	ScheduledDate      time.Time         `db:"scheduled_date" json:"scheduled_date"`
	ScheduledTime      string            `db:"scheduled_time" json:"scheduled_time"`
	Status             AppointmentStatus `db:"status" json:"status"`
	CancellationReason *string           `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at" json:"updated_at"`
}

// ScheduledAt combines the stored date and time-of-day columns into a single
// instant in the appointment's local time zone.
func (a *Appointment) ScheduledAt() time.Time {
	tod, err := time.Parse("15:04:05", a.ScheduledTime)
	if err != nil {
		// scheduled_time is a TIME column; HH:MM is the only other
		// shape seen in production data.
		tod, err = time.Parse("15:04", a.ScheduledTime)
		if err != nil {
			return a.ScheduledDate
		}
	}
	d := a.ScheduledDate
	return time.Date(d.Year(), d.Month(), d.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, d.Location())
}

// AppointmentCredential carries the identity-verification material issued at
// booking time. Read-only for this service.
type AppointmentCredential struct {
	AppointmentID    int64      `db:"id" json:"appointment_id"`
	QRToken          *string    `db:"qr_token" json:"-"`
	QRExpiresAt      *time.Time `db:"qr_expires_at" json:"-"`
	VerificationCode string     `db:"verification_code" json:"-"`
}

const (
	CancelReasonOthers    = "Others"
	MaxOtherReasonLength  = 60
	NoShowCancelReason    = "No show - Patient did not arrive by closing time"
	LeftEarlyCancelReason = "Left early - Patient left before completing visit"
)

// CancelReasons is the fixed taxonomy offered to operators. "Others"
// requires free text.
var CancelReasons = []string{
	"Schedule conflict",
	"Feeling better",
	"Transferred to another facility",
	"Weather disturbance",
	"Duplicate booking",
	CancelReasonOthers,
}

// ValidCancelReason reports whether reason is part of the fixed taxonomy.
func ValidCancelReason(reason string) bool {
	for _, r := range CancelReasons {
		if r == reason {
			return true
		}
	}
	return false
}

type CancelAppointmentRequest struct {
	CancelReason     string `json:"cancel_reason" binding:"required"`
	OtherReason      string `json:"other_reason"`
	EmployeePassword string `json:"employee_password" binding:"required"`
}

type PriorityCheckInRequest struct {
	QRToken           string   `json:"qr_token"`
	VerificationCode  string   `json:"verification_code"`
	Priority          string   `json:"priority" binding:"required,oneof=emergency urgent standard low"`
	SpecialCategories []string `json:"special_categories"`
	Notes             string   `json:"notes" binding:"max=500"`
}

type CheckInResponse struct {
	Message          string `json:"message"`
	VisitID          int64  `json:"visit_id"`
	QueueEntryID     int64  `json:"queue_entry_id"`
	QueueNumber      string `json:"queue_number,omitempty"`
	AttendanceStatus string `json:"attendance_status"`
}
