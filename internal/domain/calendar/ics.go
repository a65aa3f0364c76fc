package calendar

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/clinic/clinic/internal/domain/appointment"
)

const (
	ICSContentType = "text/calendar; charset=utf-8"
	icsProductID   = "-//Clinic//Appointments//EN"
)

// ErrNoAppointments is returned when an export matches nothing.
var ErrNoAppointments = errors.New("no appointments found")

// BuildICS renders appointments as an RFC 5545 calendar.
func BuildICS(name string, appts []*appointment.Appointment, now time.Time) ([]byte, error) {
	if len(appts) == 0 {
		return nil, ErrNoAppointments
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, a := range appts {
		ev := EventFromAppointment(a)
		ve := cal.AddEvent(ev.UID)
		ve.SetDtStampTime(now.UTC())
		if !ev.Created.IsZero() {
			ve.SetCreatedTime(ev.Created)
		}
		if !ev.Modified.IsZero() {
			ve.SetModifiedAt(ev.Modified)
		}
		ve.SetStartAt(ev.Start)
		ve.SetEndAt(ev.End)
		ve.SetSummary(ev.Summary)
		ve.SetDescription(ev.Description)
		if ev.Cancelled {
			ve.SetStatus(ics.ObjectStatusCancelled)
		} else {
			ve.SetStatus(ics.ObjectStatusConfirmed)
		}
		if ev.AttendeeEmail != "" {
			ve.AddAttendee(ev.AttendeeEmail,
				ics.CalendarUserTypeIndividual,
				ics.ParticipationStatusNeedsAction,
				ics.ParticipationRoleReqParticipant,
				ics.WithCN(ev.AttendeeName),
			)
		}
	}

	var buf bytes.Buffer
	if err := cal.SerializeTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize calendar: %w", err)
	}
	return buf.Bytes(), nil
}
