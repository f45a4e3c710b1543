package lifecycle

import (
	"time"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
)

// LatenessGrace is how long after the scheduled time a patient still counts
// as on time.
const LatenessGrace = time.Hour

// ClassifyAttendance maps scheduled time against actual check-in time. Pure
// function, shared by the manual and priority check-in paths.
func ClassifyAttendance(scheduledAt, now time.Time) model.AttendanceStatus {
	switch {
	case now.Before(scheduledAt):
		return model.AttendanceEarly
	case now.After(scheduledAt.Add(LatenessGrace)):
		return model.AttendanceLate
	default:
		return model.AttendanceOnTime
	}
}
