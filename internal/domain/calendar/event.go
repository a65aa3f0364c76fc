// Package calendar exports appointments as iCalendar files and mirrors them
// into a linked Google Calendar.
package calendar

import (
	"strings"
	"time"

	"github.com/clinic/clinic/internal/domain/appointment"
)

// Event is the calendar-neutral view of an appointment shared by the ICS
// export and the Google Calendar client.
type Event struct {
	UID           string
	Summary       string
	Description   string
	Start         time.Time
	End           time.Time
	AttendeeEmail string
	AttendeeName  string
	Cancelled     bool
	Created       time.Time
	Modified      time.Time
}

// EventFromAppointment maps an appointment and its patient to an event. The
// slot always lasts appointment.Duration.
func EventFromAppointment(a *appointment.Appointment) Event {
	ev := Event{
		UID:       a.ID.String() + "@clinic",
		Summary:   "Appointment",
		Start:     a.DateTime.UTC(),
		End:       a.End().UTC(),
		Cancelled: a.Status == appointment.StatusCancelled,
		Created:   a.CreatedAt.UTC(),
		Modified:  a.UpdatedAt.UTC(),
	}
	if a.Patient != nil {
		ev.Summary = "Appointment: " + a.Patient.FullName()
		ev.AttendeeName = a.Patient.FullName()
		if a.Patient.Email != nil {
			ev.AttendeeEmail = *a.Patient.Email
		}
	}

	var desc []string
	if a.Reason != nil {
		desc = append(desc, "Reason: "+*a.Reason)
	}
	if a.Notes != nil {
		desc = append(desc, "Notes: "+*a.Notes)
	}
	desc = append(desc, "Status: "+a.Status)
	ev.Description = strings.Join(desc, "\n")
	return ev
}
