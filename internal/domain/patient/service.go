package patient

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/ownership"
	"github.com/clinic/clinic/pkg/pagination"
)

type Service struct {
	patients Repository
	now      func() time.Time
}

func NewService(patients Repository) *Service {
	return &Service{patients: patients, now: time.Now}
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Column widths of patient.
const (
	maxNameLen        = 100
	maxEmailLen       = 320
	maxPhoneLen       = 40
	maxContactNameLen = 200
)

func (s *Service) normalize(p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" {
		return ownership.Invalid("first_name", "is required")
	}
	if p.LastName == "" {
		return ownership.Invalid("last_name", "is required")
	}

	p.Email = trimPtr(p.Email)
	if p.Email != nil {
		lower := strings.ToLower(*p.Email)
		if addr, err := mail.ParseAddress(lower); err != nil || addr.Address != lower {
			return ownership.Invalid("email", "is not a valid address")
		}
		p.Email = &lower
	}

	p.Gender = trimPtr(p.Gender)
	if p.Gender != nil {
		g := strings.ToUpper(*p.Gender)
		if !validGenders[g] {
			return ownership.Invalid("gender", "must be one of MALE, FEMALE, OTHER")
		}
		p.Gender = &g
	}

	p.BloodType = trimPtr(p.BloodType)
	if p.BloodType != nil {
		bt := strings.ToUpper(*p.BloodType)
		if !validBloodTypes[bt] {
			return ownership.Invalid("blood_type", "is not a valid blood type")
		}
		p.BloodType = &bt
	}

	if p.DateOfBirth != nil && p.DateOfBirth.After(civil.DateOf(s.now())) {
		return ownership.Invalid("date_of_birth", "cannot be in the future")
	}

	p.Phone = trimPtr(p.Phone)
	p.Address = trimPtr(p.Address)
	p.Allergies = trimPtr(p.Allergies)
	p.MedicalHistory = trimPtr(p.MedicalHistory)
	p.EmergencyContactName = trimPtr(p.EmergencyContactName)
	p.EmergencyContactPhone = trimPtr(p.EmergencyContactPhone)
	return errors.Join(
		ownership.MaxLength("first_name", p.FirstName, maxNameLen),
		ownership.MaxLength("last_name", p.LastName, maxNameLen),
		ownership.MaxLengthPtr("email", p.Email, maxEmailLen),
		ownership.MaxLengthPtr("phone", p.Phone, maxPhoneLen),
		ownership.MaxLengthPtr("emergency_contact_name", p.EmergencyContactName, maxContactNameLen),
		ownership.MaxLengthPtr("emergency_contact_phone", p.EmergencyContactPhone, maxPhoneLen),
	)
}

func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, p *Patient) error {
	if err := s.normalize(p); err != nil {
		return err
	}
	p.DoctorID = doctorID
	return s.patients.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id, doctorID uuid.UUID) (*Patient, error) {
	return ownership.Load[Patient](ctx, s.patients, id, doctorID)
}

// Update replaces every editable field of the doctor's patient p.ID.
func (s *Service) Update(ctx context.Context, doctorID uuid.UUID, p *Patient) error {
	if err := s.normalize(p); err != nil {
		return err
	}
	p.DoctorID = doctorID
	return s.patients.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id, doctorID uuid.UUID) error {
	return s.patients.Delete(ctx, id, doctorID)
}

func (s *Service) List(ctx context.Context, doctorID uuid.UUID, f ListFilter) ([]*Patient, int, error) {
	f.Search = strings.TrimSpace(f.Search)
	return s.patients.List(ctx, doctorID, f)
}

func (s *Service) Count(ctx context.Context, doctorID uuid.UUID) (int, error) {
	return s.patients.Count(ctx, doctorID)
}

// All returns every patient of the doctor, reading the list page by page.
func (s *Service) All(ctx context.Context, doctorID uuid.UUID, search string) ([]*Patient, error) {
	var out []*Patient
	f := ListFilter{Search: strings.TrimSpace(search), Limit: pagination.MaxLimit}
	for {
		items, total, err := s.patients.List(ctx, doctorID, f)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		f.Offset += len(items)
		if len(items) == 0 || f.Offset >= total {
			return out, nil
		}
	}
}
