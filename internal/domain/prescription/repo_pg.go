package prescription

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const rxCols = `rx.id, rx.patient_id, rx.doctor_id, rx.medication, rx.dosage, rx.frequency,
	rx.duration, rx.notes, rx.issued_date, rx.expiry_date, rx.created_at, rx.updated_at,
	p.first_name, p.last_name, p.email`

const rxFrom = ` FROM prescription rx JOIN patient p ON p.id = rx.patient_id`

func (r *prescriptionRepoPG) scanPrescription(row pgx.Row) (*Prescription, error) {
	var (
		rx     Prescription
		issued time.Time
		expiry *time.Time
	)
	ps := &patient.Summary{}
	err := row.Scan(&rx.ID, &rx.PatientID, &rx.DoctorID, &rx.Medication, &rx.Dosage, &rx.Frequency,
		&rx.Duration, &rx.Notes, &issued, &expiry, &rx.CreatedAt, &rx.UpdatedAt,
		&ps.FirstName, &ps.LastName, &ps.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ownership.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rx.IssuedDate = civil.DateOf(issued)
	rx.ExpiryDate = dates.FromTime(expiry)
	ps.ID = rx.PatientID
	rx.Patient = ps
	return &rx, nil
}

func (r *prescriptionRepoPG) Create(ctx context.Context, rx *Prescription, doctorID uuid.UUID) error {
	rx.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescription (id, patient_id, doctor_id, medication, dosage, frequency, duration,
			notes, issued_date, expiry_date)
		SELECT $1::uuid, p.id, $3::uuid, $4::varchar, $5::varchar, $6::varchar, $7::varchar,
			$8::text, $9::date, $10::date
		FROM patient p WHERE p.id = $2 AND p.doctor_id = $11
		RETURNING created_at, updated_at`,
		rx.ID, rx.PatientID, rx.DoctorID, rx.Medication, rx.Dosage, rx.Frequency, rx.Duration,
		rx.Notes, rx.IssuedDate.In(time.UTC), dates.TimePtr(rx.ExpiryDate), doctorID).
		Scan(&rx.CreatedAt, &rx.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ownership.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepoPG) FindOwned(ctx context.Context, id, doctorID uuid.UUID) (*Prescription, error) {
	return r.scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+rxCols+rxFrom+` WHERE rx.id = $1 AND p.doctor_id = $2`, id, doctorID))
}

func (r *prescriptionRepoPG) Update(ctx context.Context, rx *Prescription, doctorID uuid.UUID) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE prescription rx SET patient_id=$3, medication=$4, dosage=$5, frequency=$6,
			duration=$7, notes=$8, issued_date=$9, expiry_date=$10, updated_at=NOW()
		FROM patient cur, patient nxt
		WHERE rx.id = $1 AND cur.id = rx.patient_id AND cur.doctor_id = $2
			AND nxt.id = $3 AND nxt.doctor_id = $2
		RETURNING rx.doctor_id, rx.created_at, rx.updated_at`,
		rx.ID, doctorID, rx.PatientID, rx.Medication, rx.Dosage, rx.Frequency, rx.Duration,
		rx.Notes, rx.IssuedDate.In(time.UTC), dates.TimePtr(rx.ExpiryDate)).
		Scan(&rx.DoctorID, &rx.CreatedAt, &rx.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ownership.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepoPG) Delete(ctx context.Context, id, doctorID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM prescription rx USING patient p
		WHERE rx.id = $1 AND p.id = rx.patient_id AND p.doctor_id = $2`, id, doctorID)
	if err != nil {
		return fmt.Errorf("delete prescription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ownership.ErrNotFound
	}
	return nil
}

const activeCond = `(rx.expiry_date IS NULL OR rx.expiry_date >= $%d)`

func (r *prescriptionRepoPG) List(ctx context.Context, doctorID uuid.UUID, f ListFilter) ([]*Prescription, int, error) {
	conds := []string{"p.doctor_id = $1"}
	args := []interface{}{doctorID}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		conds = append(conds, fmt.Sprintf("rx.patient_id = $%d", len(args)))
	}
	if f.Active != nil {
		args = append(args, f.Today.In(time.UTC))
		cond := fmt.Sprintf(activeCond, len(args))
		if !*f.Active {
			cond = "NOT " + cond
		}
		conds = append(conds, cond)
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+rxFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count prescriptions: %w", err)
	}

	n := len(args)
	args = append(args, f.Limit, f.Offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT `+rxCols+rxFrom+where+
		` ORDER BY rx.issued_date DESC, rx.created_at DESC, rx.id LIMIT $%d OFFSET $%d`, n+1, n+2), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list prescriptions: %w", err)
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		rx, err := r.scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rx)
	}
	return items, total, rows.Err()
}

func (r *prescriptionRepoPG) CountActive(ctx context.Context, doctorID uuid.UUID, today civil.Date) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+rxFrom+` WHERE p.doctor_id = $1 AND `+
		fmt.Sprintf(activeCond, 2), doctorID, today.In(time.UTC)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active prescriptions: %w", err)
	}
	return n, nil
}
