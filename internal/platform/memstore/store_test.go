package memstore

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/clinic/clinic/internal/domain/appointment"
	"github.com/clinic/clinic/internal/domain/medicalrecord"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/prescription"
	"github.com/clinic/clinic/internal/domain/user"
	"github.com/clinic/clinic/internal/platform/ownership"
	"github.com/clinic/clinic/pkg/dates"
)

func seedPatient(t *testing.T, s *Store, doctorID uuid.UUID, first, last string) *patient.Patient {
	t.Helper()
	p := &patient.Patient{DoctorID: doctorID, FirstName: first, LastName: last}
	require.NoError(t, s.Patients().Create(context.Background(), p))
	return p
}

func TestUsers_EmailUniqueIgnoresCase(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Users().Create(ctx, &user.User{Email: "a@x.com", Role: "DOCTOR"}))

	err := s.Users().Create(ctx, &user.User{Email: "A@X.com", Role: "DOCTOR"})
	require.ErrorIs(t, err, user.ErrEmailTaken)

	u, err := s.Users().GetByEmail(ctx, "A@x.COM")
	require.NoError(t, err)
	require.Equal(t, "a@x.com", u.Email)

	_, err = s.Users().GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, ownership.ErrNotFound)
}

func TestPatients_ScopedToDoctor(t *testing.T) {
	s := New()
	ctx := context.Background()
	doctorA, doctorB := uuid.New(), uuid.New()
	p := seedPatient(t, s, doctorA, "Jane", "Doe")

	got, err := s.Patients().FindOwned(ctx, p.ID, doctorA)
	require.NoError(t, err)
	require.Equal(t, "Jane", got.FirstName)

	_, err = s.Patients().FindOwned(ctx, p.ID, doctorB)
	require.ErrorIs(t, err, ownership.ErrNotFound)
	require.ErrorIs(t, s.Patients().Delete(ctx, p.ID, doctorB), ownership.ErrNotFound)

	n, err := s.Patients().Count(ctx, doctorB)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestPatients_DeleteCascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	doctor := uuid.New()
	p := seedPatient(t, s, doctor, "Jane", "Doe")

	a := &appointment.Appointment{PatientID: p.ID, DateTime: time.Now().UTC(), Status: appointment.StatusScheduled}
	require.NoError(t, s.Appointments().Create(ctx, a, doctor))
	rec := &medicalrecord.Record{PatientID: p.ID, Diagnosis: "flu", RecordDate: dates.Today()}
	require.NoError(t, s.MedicalRecords().Create(ctx, rec, doctor))
	rx := &prescription.Prescription{PatientID: p.ID, DoctorID: doctor, Medication: "x", IssuedDate: dates.Today()}
	require.NoError(t, s.Prescriptions().Create(ctx, rx, doctor))

	require.NoError(t, s.Patients().Delete(ctx, p.ID, doctor))

	_, err := s.Appointments().FindOwned(ctx, a.ID, doctor)
	require.ErrorIs(t, err, ownership.ErrNotFound)
	_, err = s.MedicalRecords().FindOwned(ctx, rec.ID, doctor)
	require.ErrorIs(t, err, ownership.ErrNotFound)
	_, err = s.Prescriptions().FindOwned(ctx, rx.ID, doctor)
	require.ErrorIs(t, err, ownership.ErrNotFound)
}

func TestAppointments_ListFiltersAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	doctor := uuid.New()
	p := seedPatient(t, s, doctor, "Jane", "Doe")
	base := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

	for _, offset := range []int{2, 0, 1} {
		a := &appointment.Appointment{PatientID: p.ID, DateTime: base.AddDate(0, 0, offset), Status: appointment.StatusScheduled}
		require.NoError(t, s.Appointments().Create(ctx, a, doctor))
	}

	all, total, err := s.Appointments().List(ctx, doctor, appointment.ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.True(t, all[0].DateTime.Equal(base))
	require.NotNil(t, all[0].Patient)
	require.Equal(t, "Jane", all[0].Patient.FirstName)

	from, to := base.AddDate(0, 0, 1), base.AddDate(0, 0, 2)
	window, total, err := s.Appointments().List(ctx, doctor, appointment.ListFilter{From: &from, To: &to, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.True(t, window[0].DateTime.Equal(from))

	require.NoError(t, s.Appointments().UpdateStatus(ctx, all[0].ID, doctor, appointment.StatusCancelled))
	counts, err := s.Appointments().CountByStatus(ctx, doctor)
	require.NoError(t, err)
	require.Equal(t, map[string]int{
		appointment.StatusScheduled: 2,
		appointment.StatusCompleted: 0,
		appointment.StatusCancelled: 1,
	}, counts)

	others, total, err := s.Appointments().List(ctx, uuid.New(), appointment.ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, others)
}

func TestAppointments_UpdateKeepsCalendarEvent(t *testing.T) {
	s := New()
	ctx := context.Background()
	doctor := uuid.New()
	p := seedPatient(t, s, doctor, "Jane", "Doe")
	a := &appointment.Appointment{PatientID: p.ID, DateTime: time.Now().UTC(), Status: appointment.StatusScheduled}
	require.NoError(t, s.Appointments().Create(ctx, a, doctor))

	eventID := "evt-1"
	require.NoError(t, s.Appointments().SetCalendarEventID(ctx, a.ID, doctor, &eventID))

	notes := "bring labs"
	a.Notes = &notes
	a.CalendarEventID = nil
	require.NoError(t, s.Appointments().Update(ctx, a, doctor))

	got, err := s.Appointments().FindOwned(ctx, a.ID, doctor)
	require.NoError(t, err)
	require.Equal(t, "bring labs", *got.Notes)
	require.NotNil(t, got.CalendarEventID)
	require.Equal(t, "evt-1", *got.CalendarEventID)
}

func TestAppointments_CreateForeignPatient(t *testing.T) {
	s := New()
	p := seedPatient(t, s, uuid.New(), "Jane", "Doe")
	a := &appointment.Appointment{PatientID: p.ID, DateTime: time.Now().UTC(), Status: appointment.StatusScheduled}
	require.ErrorIs(t, s.Appointments().Create(context.Background(), a, uuid.New()), ownership.ErrNotFound)
}

func TestRecords_CountSince(t *testing.T) {
	s := New()
	ctx := context.Background()
	doctor := uuid.New()
	p := seedPatient(t, s, doctor, "Jane", "Doe")
	june := civil.Date{Year: 2024, Month: time.June, Day: 1}

	for _, d := range []civil.Date{june.AddDays(-1), june, june.AddDays(10)} {
		rec := &medicalrecord.Record{PatientID: p.ID, Diagnosis: "check", RecordDate: d}
		require.NoError(t, s.MedicalRecords().Create(ctx, rec, doctor))
	}

	n, err := s.MedicalRecords().CountSince(ctx, doctor, june)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	list, _, err := s.MedicalRecords().List(ctx, doctor, medicalrecord.ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, june.AddDays(10), list[0].RecordDate)
}

func TestPrescriptions_ActiveFilter(t *testing.T) {
	s := New()
	ctx := context.Background()
	doctor := uuid.New()
	p := seedPatient(t, s, doctor, "Jane", "Doe")
	today := civil.Date{Year: 2024, Month: time.June, Day: 15}
	expired := today.AddDays(-1)

	for _, exp := range []*civil.Date{nil, &today, &expired} {
		rx := &prescription.Prescription{PatientID: p.ID, DoctorID: doctor, Medication: "m", IssuedDate: today.AddDays(-30), ExpiryDate: exp}
		require.NoError(t, s.Prescriptions().Create(ctx, rx, doctor))
	}

	n, err := s.Prescriptions().CountActive(ctx, doctor, today)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	inactive := false
	list, total, err := s.Prescriptions().List(ctx, doctor, prescription.ListFilter{Active: &inactive, Today: today, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, expired, *list[0].ExpiryDate)
}
