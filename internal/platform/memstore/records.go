package memstore

import (
	"context"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/medicalrecord"
	"github.com/clinic/clinic/internal/platform/ownership"
)

type recordRepo struct{ s *Store }

func (r *recordRepo) view(m *medicalrecord.Record) *medicalrecord.Record {
	cp := *m
	if m.Vitals != nil {
		v := *m.Vitals
		cp.Vitals = &v
	}
	cp.Patient = r.s.summary(m.PatientID)
	return &cp
}

func (r *recordRepo) owned(id, doctorID uuid.UUID) (*medicalrecord.Record, bool) {
	m, ok := r.s.records[id]
	if !ok || !r.s.ownsPatient(m.PatientID, doctorID) {
		return nil, false
	}
	return m, true
}

func (r *recordRepo) store(m *medicalrecord.Record) {
	cp := *m
	if m.Vitals != nil {
		v := *m.Vitals
		cp.Vitals = &v
	}
	cp.Patient = nil
	r.s.records[m.ID] = &cp
}

func (r *recordRepo) Create(_ context.Context, m *medicalrecord.Record, doctorID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !r.s.ownsPatient(m.PatientID, doctorID) {
		return ownership.ErrNotFound
	}
	m.ID = uuid.New()
	m.CreatedAt = r.s.now()
	m.UpdatedAt = m.CreatedAt
	r.store(m)
	return nil
}

func (r *recordRepo) FindOwned(_ context.Context, id, doctorID uuid.UUID) (*medicalrecord.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.owned(id, doctorID)
	if !ok {
		return nil, ownership.ErrNotFound
	}
	return r.view(m), nil
}

func (r *recordRepo) Update(_ context.Context, m *medicalrecord.Record, doctorID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.owned(m.ID, doctorID)
	if !ok || !r.s.ownsPatient(m.PatientID, doctorID) {
		return ownership.ErrNotFound
	}
	m.DoctorID = cur.DoctorID
	m.CreatedAt = cur.CreatedAt
	m.UpdatedAt = r.s.now()
	r.store(m)
	return nil
}

func (r *recordRepo) Delete(_ context.Context, id, doctorID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.owned(id, doctorID); !ok {
		return ownership.ErrNotFound
	}
	delete(r.s.records, id)
	return nil
}

func (r *recordRepo) List(_ context.Context, doctorID uuid.UUID, f medicalrecord.ListFilter) ([]*medicalrecord.Record, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []*medicalrecord.Record
	for id := range r.s.records {
		m, ok := r.owned(id, doctorID)
		if !ok || (f.PatientID != nil && m.PatientID != *f.PatientID) {
			continue
		}
		all = append(all, r.view(m))
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.RecordDate != b.RecordDate {
			return b.RecordDate.Before(a.RecordDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return page(all, f.Limit, f.Offset), len(all), nil
}

func (r *recordRepo) CountSince(_ context.Context, doctorID uuid.UUID, since civil.Date) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for id := range r.s.records {
		if m, ok := r.owned(id, doctorID); ok && !m.RecordDate.Before(since) {
			n++
		}
	}
	return n, nil
}
