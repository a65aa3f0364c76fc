package medicalrecord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/ownership"
	"github.com/clinic/clinic/pkg/dates"
)

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const recordCols = `m.id, m.patient_id, m.doctor_id, m.diagnosis, m.symptoms, m.vitals, m.notes,
	m.treatment_plan, m.record_date, m.follow_up_date, m.created_at, m.updated_at,
	p.first_name, p.last_name, p.email`

const recordFrom = ` FROM medical_record m JOIN patient p ON p.id = m.patient_id`

func (r *recordRepoPG) scanRecord(row pgx.Row) (*Record, error) {
	var (
		m        Record
		recorded time.Time
		followUp *time.Time
	)
	ps := &patient.Summary{}
	err := row.Scan(&m.ID, &m.PatientID, &m.DoctorID, &m.Diagnosis, &m.Symptoms, &m.Vitals,
		&m.Notes, &m.TreatmentPlan, &recorded, &followUp, &m.CreatedAt, &m.UpdatedAt,
		&ps.FirstName, &ps.LastName, &ps.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ownership.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.RecordDate = civil.DateOf(recorded)
	m.FollowUpDate = dates.FromTime(followUp)
	ps.ID = m.PatientID
	m.Patient = ps
	return &m, nil
}

func (r *recordRepoPG) Create(ctx context.Context, m *Record, doctorID uuid.UUID) error {
	m.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_record (id, patient_id, doctor_id, diagnosis, symptoms, vitals, notes,
			treatment_plan, record_date, follow_up_date)
		SELECT $1::uuid, p.id, $3::uuid, $4::text, $5::text, $6::jsonb, $7::text, $8::text, $9::date, $10::date
		FROM patient p WHERE p.id = $2 AND p.doctor_id = $11
		RETURNING created_at, updated_at`,
		m.ID, m.PatientID, m.DoctorID, m.Diagnosis, m.Symptoms, m.Vitals, m.Notes,
		m.TreatmentPlan, m.RecordDate.In(time.UTC), dates.TimePtr(m.FollowUpDate), doctorID).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ownership.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert medical record: %w", err)
	}
	return nil
}

func (r *recordRepoPG) FindOwned(ctx context.Context, id, doctorID uuid.UUID) (*Record, error) {
	return r.scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+recordFrom+` WHERE m.id = $1 AND p.doctor_id = $2`, id, doctorID))
}

// Update leaves doctor_id untouched; the author of a record does not change.
func (r *recordRepoPG) Update(ctx context.Context, m *Record, doctorID uuid.UUID) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE medical_record m SET patient_id=$3, diagnosis=$4, symptoms=$5, vitals=$6, notes=$7,
			treatment_plan=$8, record_date=$9, follow_up_date=$10, updated_at=NOW()
		FROM patient cur, patient nxt
		WHERE m.id = $1 AND cur.id = m.patient_id AND cur.doctor_id = $2
			AND nxt.id = $3 AND nxt.doctor_id = $2
		RETURNING m.doctor_id, m.created_at, m.updated_at`,
		m.ID, doctorID, m.PatientID, m.Diagnosis, m.Symptoms, m.Vitals, m.Notes,
		m.TreatmentPlan, m.RecordDate.In(time.UTC), dates.TimePtr(m.FollowUpDate)).
		Scan(&m.DoctorID, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ownership.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update medical record: %w", err)
	}
	return nil
}

func (r *recordRepoPG) Delete(ctx context.Context, id, doctorID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM medical_record m USING patient p
		WHERE m.id = $1 AND p.id = m.patient_id AND p.doctor_id = $2`, id, doctorID)
	if err != nil {
		return fmt.Errorf("delete medical record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ownership.ErrNotFound
	}
	return nil
}

func (r *recordRepoPG) List(ctx context.Context, doctorID uuid.UUID, f ListFilter) ([]*Record, int, error) {
	where := ` WHERE p.doctor_id = $1`
	args := []interface{}{doctorID}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		where += ` AND m.patient_id = $2`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+recordFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count medical records: %w", err)
	}

	n := len(args)
	args = append(args, f.Limit, f.Offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT `+recordCols+recordFrom+where+
		` ORDER BY m.record_date DESC, m.created_at DESC, m.id LIMIT $%d OFFSET $%d`, n+1, n+2), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list medical records: %w", err)
	}
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		m, err := r.scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *recordRepoPG) CountSince(ctx context.Context, doctorID uuid.UUID, since civil.Date) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+recordFrom+
		` WHERE p.doctor_id = $1 AND m.record_date >= $2`, doctorID, since.In(time.UTC)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count medical records: %w", err)
	}
	return n, nil
}
