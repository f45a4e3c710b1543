package model

import "time"

type VisitStatus string

const (
	VisitStatusOngoing   VisitStatus = "ongoing"
	VisitStatusCompleted VisitStatus = "completed"
	VisitStatusCancelled VisitStatus = "cancelled"
)

type AttendanceStatus string

const (
	AttendanceEarly     AttendanceStatus = "early"
	AttendanceOnTime    AttendanceStatus = "on_time"
	AttendanceLate      AttendanceStatus = "late"
	AttendanceNoShow    AttendanceStatus = "no_show"
	AttendanceLeftEarly AttendanceStatus = "left_early"
)

// Visit is a single clinical encounter. AppointmentID is nullable because
// walk-in visits exist without a booking; every visit this service creates
// is appointment-backed.
type Visit struct {
	ID                  int64            `db:"id" json:"id"`
	PatientID           int64            `db:"patient_id" json:"patient_id"`
	FacilityID          int64            `db:"facility_id" json:"facility_id"`
	AppointmentID       *int64           `db:"appointment_id" json:"appointment_id,omitempty"`
	VisitDate           time.Time        `db:"visit_date" json:"visit_date"`
	TimeIn              time.Time        `db:"time_in" json:"time_in"`
	TimeOut             *time.Time       `db:"time_out" json:"time_out,omitempty"`
	AttendingEmployeeID *int64           `db:"attending_employee_id" json:"attending_employee_id,omitempty"`
	VisitStatus         VisitStatus      `db:"visit_status" json:"visit_status"`
	AttendanceStatus    AttendanceStatus `db:"attendance_status" json:"attendance_status"`
	Remarks             string           `db:"remarks" json:"remarks,omitempty"`
}
