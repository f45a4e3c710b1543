package model

import (
	"fmt"
	"time"
)

type PriorityLevel string

const (
	PriorityEmergency PriorityLevel = "emergency"
	PriorityUrgent    PriorityLevel = "urgent"
	PriorityNormal    PriorityLevel = "normal"
	PriorityLow       PriorityLevel = "low"
)

// PriorityInput is the operator-facing priority vocabulary. It differs from
// PriorityLevel in one rename: "standard" maps to the "normal" queue tier.
type PriorityInput string

const (
	PriorityInputEmergency PriorityInput = "emergency"
	PriorityInputUrgent    PriorityInput = "urgent"
	PriorityInputStandard  PriorityInput = "standard"
	PriorityInputLow       PriorityInput = "low"
)

// Level maps operator input onto the queue priority tier.
func (p PriorityInput) Level() (PriorityLevel, error) {
	switch p {
	case PriorityInputEmergency:
		return PriorityEmergency, nil
	case PriorityInputUrgent:
		return PriorityUrgent, nil
	case PriorityInputStandard, "":
		return PriorityNormal, nil
	case PriorityInputLow:
		return PriorityLow, nil
	}
	return "", fmt.Errorf("unknown priority %q", string(p))
}

type SpecialCategory string

const (
	CategorySenior       SpecialCategory = "senior"
	CategoryPWD          SpecialCategory = "pwd"
	CategoryPregnant     SpecialCategory = "pregnant"
	CategoryInjured      SpecialCategory = "injured"
	CategorySpecialNeeds SpecialCategory = "special_needs"
)

// DisplayName is the label written into queue remarks.
func (c SpecialCategory) DisplayName() string {
	switch c {
	case CategorySenior:
		return "Senior Citizen"
	case CategoryPWD:
		return "PWD"
	case CategoryPregnant:
		return "Pregnant"
	case CategoryInjured:
		return "Injured"
	case CategorySpecialNeeds:
		return "Special Needs"
	}
	return string(c)
}

// ParseSpecialCategory validates an operator-supplied category value.
func ParseSpecialCategory(s string) (SpecialCategory, error) {
	switch SpecialCategory(s) {
	case CategorySenior, CategoryPWD, CategoryPregnant, CategoryInjured, CategorySpecialNeeds:
		return SpecialCategory(s), nil
	}
	return "", fmt.Errorf("unknown special category %q", s)
}

const (
	QueueTypeTriage    = "triage"
	TriageStationID    = 1
	QueueStatusWaiting = "waiting"
)

type QueueEntry struct {
	ID            int64         `db:"id" json:"id"`
	PatientID     int64         `db:"patient_id" json:"patient_id"`
	VisitID       int64         `db:"visit_id" json:"visit_id"`
	AppointmentID int64         `db:"appointment_id" json:"appointment_id"`
	ServiceID     int64         `db:"service_id" json:"service_id"`
	QueueType     string        `db:"queue_type" json:"queue_type"`
	StationID     int           `db:"station_id" json:"station_id"`
	PriorityLevel PriorityLevel `db:"priority_level" json:"priority_level"`
	Status        string        `db:"status" json:"status"`
	TimeIn        time.Time     `db:"time_in" json:"time_in"`
	Remarks       string        `db:"remarks" json:"remarks,omitempty"`
}

// QueueNumber renders the user-facing triage ticket, e.g. T-042.
func (q *QueueEntry) QueueNumber() string {
	return fmt.Sprintf("T-%03d", q.ID)
}
