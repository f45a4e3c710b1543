package queueing

import (
	"strings"
	"time"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
	apperrors "github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/errors"
)

// Admission is the operator input collected at check-in.
type Admission struct {
	Priority          model.PriorityInput
	SpecialCategories []model.SpecialCategory
	Notes             string
}

// Policy maps a verified check-in onto a triage-queue entry. It only builds
// the entry; the caller inserts it inside the check-in transaction so that
// admission happens exactly once per transition.
type Policy struct {
	stationID int
}

func NewPolicy() *Policy {
	return &Policy{stationID: model.TriageStationID}
}

// Admit derives the queue entry for a visit. Priority defaults to the normal
// tier when the operator supplied none (the legacy check-in path).
func (p *Policy) Admit(visit *model.Visit, appointment *model.Appointment, adm Admission, now time.Time) (*model.QueueEntry, error) {
	level, err := adm.Priority.Level()
	if err != nil {
		return nil, apperrors.BadRequest("invalid priority", err)
	}

	return &model.QueueEntry{
		PatientID:     appointment.PatientID,
		VisitID:       visit.ID,
		AppointmentID: appointment.ID,
		ServiceID:     appointment.ServiceID,
		QueueType:     model.QueueTypeTriage,
		StationID:     p.stationID,
		PriorityLevel: level,
		Status:        model.QueueStatusWaiting,
		TimeIn:        now,
		Remarks:       BuildRemarks(level, adm.SpecialCategories, adm.Notes),
	}, nil
}

// BuildRemarks renders priority, special categories and operator notes into
// the free-text remarks column. Downstream station routing does not parse
// this text; it is display-only.
func BuildRemarks(level model.PriorityLevel, categories []model.SpecialCategory, notes string) string {
	parts := []string{"Priority: " + titleCase(string(level))}

	if len(categories) > 0 {
		names := make([]string, 0, len(categories))
		for _, c := range categories {
			names = append(names, c.DisplayName())
		}
		parts = append(parts, "Special: "+strings.Join(names, ", "))
	}

	if notes = strings.TrimSpace(notes); notes != "" {
		parts = append(parts, "Notes: "+notes)
	}

	return strings.Join(parts, " | ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
