package memstore

import (
	"context"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/prescription"
	"github.com/clinic/clinic/internal/platform/ownership"
)

type prescriptionRepo struct{ s *Store }

func (r *prescriptionRepo) view(rx *prescription.Prescription) *prescription.Prescription {
	cp := *rx
	cp.Patient = r.s.summary(rx.PatientID)
	return &cp
}

func (r *prescriptionRepo) owned(id, doctorID uuid.UUID) (*prescription.Prescription, bool) {
	rx, ok := r.s.prescriptions[id]
	if !ok || !r.s.ownsPatient(rx.PatientID, doctorID) {
		return nil, false
	}
	return rx, true
}

func (r *prescriptionRepo) store(rx *prescription.Prescription) {
	cp := *rx
	cp.Patient = nil
	r.s.prescriptions[rx.ID] = &cp
}

func (r *prescriptionRepo) Create(_ context.Context, rx *prescription.Prescription, doctorID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !r.s.ownsPatient(rx.PatientID, doctorID) {
		return ownership.ErrNotFound
	}
	rx.ID = uuid.New()
	rx.CreatedAt = r.s.now()
	rx.UpdatedAt = rx.CreatedAt
	r.store(rx)
	return nil
}

func (r *prescriptionRepo) FindOwned(_ context.Context, id, doctorID uuid.UUID) (*prescription.Prescription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rx, ok := r.owned(id, doctorID)
	if !ok {
		return nil, ownership.ErrNotFound
	}
	return r.view(rx), nil
}

func (r *prescriptionRepo) Update(_ context.Context, rx *prescription.Prescription, doctorID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.owned(rx.ID, doctorID)
	if !ok || !r.s.ownsPatient(rx.PatientID, doctorID) {
		return ownership.ErrNotFound
	}
	rx.DoctorID = cur.DoctorID
	rx.CreatedAt = cur.CreatedAt
	rx.UpdatedAt = r.s.now()
	r.store(rx)
	return nil
}

func (r *prescriptionRepo) Delete(_ context.Context, id, doctorID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.owned(id, doctorID); !ok {
		return ownership.ErrNotFound
	}
	delete(r.s.prescriptions, id)
	return nil
}

func (r *prescriptionRepo) List(_ context.Context, doctorID uuid.UUID, f prescription.ListFilter) ([]*prescription.Prescription, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []*prescription.Prescription
	for id := range r.s.prescriptions {
		rx, ok := r.owned(id, doctorID)
		switch {
		case !ok,
			f.PatientID != nil && rx.PatientID != *f.PatientID,
			f.Active != nil && rx.ActiveOn(f.Today) != *f.Active:
			continue
		}
		all = append(all, r.view(rx))
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.IssuedDate != b.IssuedDate {
			return b.IssuedDate.Before(a.IssuedDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return page(all, f.Limit, f.Offset), len(all), nil
}

func (r *prescriptionRepo) CountActive(_ context.Context, doctorID uuid.UUID, today civil.Date) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for id := range r.s.prescriptions {
		if rx, ok := r.owned(id, doctorID); ok && rx.ActiveOn(today) {
			n++
		}
	}
	return n, nil
}
