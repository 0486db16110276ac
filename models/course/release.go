package course

import (
	"time"

	"github.com/jinzhu/now"
)

// DripDay is the beginning of the day that lies days after the enrollment day.
func DripDay(enrolledAt time.Time, days int) time.Time {
	return now.With(enrolledAt).BeginningOfDay().AddDate(0, 0, days)
}
