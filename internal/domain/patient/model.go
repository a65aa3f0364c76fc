package patient

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// Patient belongs to exactly one doctor. Deleting a patient removes their
// appointments, medical records and prescriptions.
type Patient struct {
	ID                    uuid.UUID   `json:"id"`
	DoctorID              uuid.UUID   `json:"doctor_id"`
	FirstName             string      `json:"first_name"`
	LastName              string      `json:"last_name"`
	Email                 *string     `json:"email,omitempty"`
	Phone                 *string     `json:"phone,omitempty"`
	DateOfBirth           *civil.Date `json:"date_of_birth,omitempty"`
	Gender                *string     `json:"gender,omitempty"`
	Address               *string     `json:"address,omitempty"`
	BloodType             *string     `json:"blood_type,omitempty"`
	Allergies             *string     `json:"allergies,omitempty"`
	MedicalHistory        *string     `json:"medical_history,omitempty"`
	EmergencyContactName  *string     `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string     `json:"emergency_contact_phone,omitempty"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Summary is the subset of a patient embedded in appointments, records and
// prescriptions.
type Summary struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     *string   `json:"email,omitempty"`
}

func (s *Summary) FullName() string {
	return s.FirstName + " " + s.LastName
}

func (p *Patient) Summary() *Summary {
	return &Summary{ID: p.ID, FirstName: p.FirstName, LastName: p.LastName, Email: p.Email}
}

const (
	GenderMale   = "MALE"
	GenderFemale = "FEMALE"
	GenderOther  = "OTHER"
)

var validGenders = map[string]bool{
	GenderMale: true, GenderFemale: true, GenderOther: true,
}

var validBloodTypes = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

// ListFilter narrows a doctor's patient list. Search matches name, email
// and phone case-insensitively.
type ListFilter struct {
	Search string
	Limit  int
	Offset int
}
