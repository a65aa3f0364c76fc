package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/ownership"
)

type patientRepo struct{ s *Store }

func copyPatient(p *patient.Patient) *patient.Patient {
	cp := *p
	return &cp
}

func (r *patientRepo) Create(_ context.Context, p *patient.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = r.s.now()
	p.UpdatedAt = p.CreatedAt
	r.s.patients[p.ID] = copyPatient(p)
	return nil
}

func (r *patientRepo) FindOwned(_ context.Context, id, doctorID uuid.UUID) (*patient.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if !r.s.ownsPatient(id, doctorID) {
		return nil, ownership.ErrNotFound
	}
	return copyPatient(r.s.patients[id]), nil
}

func (r *patientRepo) Update(_ context.Context, p *patient.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !r.s.ownsPatient(p.ID, p.DoctorID) {
		return ownership.ErrNotFound
	}
	cur := r.s.patients[p.ID]
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = r.s.now()
	r.s.patients[p.ID] = copyPatient(p)
	return nil
}

// Delete removes the patient with their appointments, records and
// prescriptions.
func (r *patientRepo) Delete(_ context.Context, id, doctorID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !r.s.ownsPatient(id, doctorID) {
		return ownership.ErrNotFound
	}
	delete(r.s.patients, id)
	for k, a := range r.s.appointments {
		if a.PatientID == id {
			delete(r.s.appointments, k)
		}
	}
	for k, m := range r.s.records {
		if m.PatientID == id {
			delete(r.s.records, k)
		}
	}
	for k, rx := range r.s.prescriptions {
		if rx.PatientID == id {
			delete(r.s.prescriptions, k)
		}
	}
	return nil
}

func matches(p *patient.Patient, search string) bool {
	if search == "" {
		return true
	}
	q := strings.ToLower(search)
	fields := []string{p.FirstName, p.LastName, p.FirstName + " " + p.LastName}
	if p.Email != nil {
		fields = append(fields, *p.Email)
	}
	if p.Phone != nil {
		fields = append(fields, *p.Phone)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func (r *patientRepo) List(_ context.Context, doctorID uuid.UUID, f patient.ListFilter) ([]*patient.Patient, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []*patient.Patient
	for _, p := range r.s.patients {
		if p.DoctorID == doctorID && matches(p, f.Search) {
			all = append(all, copyPatient(p))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID.String() < b.ID.String()
	})
	return page(all, f.Limit, f.Offset), len(all), nil
}

func (r *patientRepo) Count(_ context.Context, doctorID uuid.UUID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, p := range r.s.patients {
		if p.DoctorID == doctorID {
			n++
		}
	}
	return n, nil
}
