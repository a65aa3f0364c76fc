package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/appointment"
	"github.com/clinic/clinic/internal/platform/ownership"
)

type appointmentRepo struct{ s *Store }

// view copies a stored appointment and attaches its patient. Must be
// called with s.mu held.
func (r *appointmentRepo) view(a *appointment.Appointment) *appointment.Appointment {
	cp := *a
	cp.Patient = r.s.summary(a.PatientID)
	return &cp
}

// owned must be called with s.mu held.
func (r *appointmentRepo) owned(id, doctorID uuid.UUID) (*appointment.Appointment, bool) {
	a, ok := r.s.appointments[id]
	if !ok || !r.s.ownsPatient(a.PatientID, doctorID) {
		return nil, false
	}
	return a, true
}

func (r *appointmentRepo) Create(_ context.Context, a *appointment.Appointment, doctorID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !r.s.ownsPatient(a.PatientID, doctorID) {
		return ownership.ErrNotFound
	}
	a.ID = uuid.New()
	a.CreatedAt = r.s.now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	cp.Patient = nil
	r.s.appointments[a.ID] = &cp
	return nil
}

func (r *appointmentRepo) FindOwned(_ context.Context, id, doctorID uuid.UUID) (*appointment.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.owned(id, doctorID)
	if !ok {
		return nil, ownership.ErrNotFound
	}
	return r.view(a), nil
}

func (r *appointmentRepo) Update(_ context.Context, a *appointment.Appointment, doctorID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.owned(a.ID, doctorID)
	if !ok || !r.s.ownsPatient(a.PatientID, doctorID) {
		return ownership.ErrNotFound
	}
	cur.PatientID = a.PatientID
	cur.DateTime = a.DateTime
	cur.Status = a.Status
	cur.Reason = a.Reason
	cur.Notes = a.Notes
	cur.UpdatedAt = r.s.now()
	a.CalendarEventID = cur.CalendarEventID
	a.CreatedAt = cur.CreatedAt
	a.UpdatedAt = cur.UpdatedAt
	return nil
}

func (r *appointmentRepo) modify(id, doctorID uuid.UUID, fn func(a *appointment.Appointment)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.owned(id, doctorID)
	if !ok {
		return ownership.ErrNotFound
	}
	fn(a)
	a.UpdatedAt = r.s.now()
	return nil
}

func (r *appointmentRepo) UpdateStatus(_ context.Context, id, doctorID uuid.UUID, status string) error {
	return r.modify(id, doctorID, func(a *appointment.Appointment) { a.Status = status })
}

func (r *appointmentRepo) SetCalendarEventID(_ context.Context, id, doctorID uuid.UUID, eventID *string) error {
	return r.modify(id, doctorID, func(a *appointment.Appointment) {
		if eventID == nil {
			a.CalendarEventID = nil
			return
		}
		v := *eventID
		a.CalendarEventID = &v
	})
}

func (r *appointmentRepo) Delete(_ context.Context, id, doctorID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.owned(id, doctorID); !ok {
		return ownership.ErrNotFound
	}
	delete(r.s.appointments, id)
	return nil
}

func (r *appointmentRepo) List(_ context.Context, doctorID uuid.UUID, f appointment.ListFilter) ([]*appointment.Appointment, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []*appointment.Appointment
	for id := range r.s.appointments {
		a, ok := r.owned(id, doctorID)
		if !ok {
			continue
		}
		switch {
		case f.Status != "" && a.Status != f.Status,
			f.PatientID != nil && a.PatientID != *f.PatientID,
			f.From != nil && a.DateTime.Before(*f.From),
			f.To != nil && !a.DateTime.Before(*f.To):
			continue
		}
		all = append(all, r.view(a))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].DateTime.Equal(all[j].DateTime) {
			return all[i].DateTime.Before(all[j].DateTime)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	return page(all, f.Limit, f.Offset), len(all), nil
}

func (r *appointmentRepo) CountByStatus(_ context.Context, doctorID uuid.UUID) (map[string]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[string]int, len(appointment.Statuses))
	for _, st := range appointment.Statuses {
		counts[st] = 0
	}
	for id := range r.s.appointments {
		if a, ok := r.owned(id, doctorID); ok {
			counts[a.Status]++
		}
	}
	return counts, nil
}
