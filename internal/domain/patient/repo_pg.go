package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/ownership"
	"github.com/clinic/clinic/pkg/dates"
)

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, doctor_id, first_name, last_name, email, phone, date_of_birth, gender,
	address, blood_type, allergies, medical_history, emergency_contact_name,
	emergency_contact_phone, created_at, updated_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var (
		p   Patient
		dob *time.Time
	)
	err := row.Scan(&p.ID, &p.DoctorID, &p.FirstName, &p.LastName, &p.Email, &p.Phone,
		&dob, &p.Gender, &p.Address, &p.BloodType, &p.Allergies, &p.MedicalHistory,
		&p.EmergencyContactName, &p.EmergencyContactPhone, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ownership.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.DateOfBirth = dates.FromTime(dob)
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, doctor_id, first_name, last_name, email, phone, date_of_birth,
			gender, address, blood_type, allergies, medical_history,
			emergency_contact_name, emergency_contact_phone)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		p.ID, p.DoctorID, p.FirstName, p.LastName, p.Email, p.Phone, dates.TimePtr(p.DateOfBirth),
		p.Gender, p.Address, p.BloodType, p.Allergies, p.MedicalHistory,
		p.EmergencyContactName, p.EmergencyContactPhone).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) FindOwned(ctx context.Context, id, doctorID uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1 AND doctor_id = $2`, id, doctorID))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET first_name=$3, last_name=$4, email=$5, phone=$6, date_of_birth=$7,
			gender=$8, address=$9, blood_type=$10, allergies=$11, medical_history=$12,
			emergency_contact_name=$13, emergency_contact_phone=$14, updated_at=NOW()
		WHERE id = $1 AND doctor_id = $2
		RETURNING created_at, updated_at`,
		p.ID, p.DoctorID, p.FirstName, p.LastName, p.Email, p.Phone, dates.TimePtr(p.DateOfBirth),
		p.Gender, p.Address, p.BloodType, p.Allergies, p.MedicalHistory,
		p.EmergencyContactName, p.EmergencyContactPhone).Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ownership.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id, doctorID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1 AND doctor_id = $2`, id, doctorID)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ownership.ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern matches term as a literal substring. Backslash is the default
// LIKE escape character in Postgres.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func (r *patientRepoPG) List(ctx context.Context, doctorID uuid.UUID, f ListFilter) ([]*Patient, int, error) {
	where := `WHERE doctor_id = $1`
	args := []interface{}{doctorID}
	if f.Search != "" {
		args = append(args, likePattern(f.Search))
		where += ` AND (first_name ILIKE $2 OR last_name ILIKE $2 OR email ILIKE $2 OR phone ILIKE $2
			OR (first_name || ' ' || last_name) ILIKE $2)`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	n := len(args)
	args = append(args, f.Limit, f.Offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT `+patientCols+` FROM patient `+where+
		` ORDER BY last_name, first_name, id LIMIT $%d OFFSET $%d`, n+1, n+2), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *patientRepoPG) Count(ctx context.Context, doctorID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient WHERE doctor_id = $1`, doctorID).Scan(&n)
	return n, err
}
