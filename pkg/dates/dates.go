// Package dates converts between civil dates and the time values pgx reads
// and writes for DATE columns.
package dates

import (
	"time"

	"cloud.google.com/go/civil"
)

func Today() civil.Date { return civil.DateOf(time.Now()) }

// FromTime converts an optional DATE column into an optional civil date.
func FromTime(t *time.Time) *civil.Date {
	if t == nil {
		return nil
	}
	d := civil.DateOf(*t)
	return &d
}

// TimePtr is the inverse of FromTime, for query arguments.
func TimePtr(d *civil.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.In(time.UTC)
	return &t
}
