package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
)

func TestClassifyAttendance(t *testing.T) {
	scheduled := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		now      time.Time
		expected model.AttendanceStatus
	}{
		{
			name:     "before scheduled time is early",
			now:      scheduled.Add(-time.Minute),
			expected: model.AttendanceEarly,
		},
		{
			name:     "exactly on scheduled time is on time",
			now:      scheduled,
			expected: model.AttendanceOnTime,
		},
		{
			name:     "within grace period is on time",
			now:      scheduled.Add(30 * time.Minute),
			expected: model.AttendanceOnTime,
		},
		{
			name:     "exactly at grace boundary is on time",
			now:      scheduled.Add(time.Hour),
			expected: model.AttendanceOnTime,
		},
		{
			name:     "one second past grace is late",
			now:      scheduled.Add(time.Hour + time.Second),
			expected: model.AttendanceLate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyAttendance(scheduled, tt.now))
		})
	}
}
