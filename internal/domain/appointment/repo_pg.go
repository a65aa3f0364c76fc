package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/ownership"
)

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const apptCols = `a.id, a.patient_id, a.date_time, a.status, a.reason, a.notes, a.calendar_event_id,
	a.created_at, a.updated_at, p.first_name, p.last_name, p.email`

const apptFrom = ` FROM appointment a JOIN patient p ON p.id = a.patient_id`

func (r *appointmentRepoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	ps := &PatientSummary{}
	err := row.Scan(&a.ID, &a.PatientID, &a.DateTime, &a.Status, &a.Reason, &a.Notes,
		&a.CalendarEventID, &a.CreatedAt, &a.UpdatedAt, &ps.FirstName, &ps.LastName, &ps.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ownership.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ps.ID = a.PatientID
	a.Patient = ps
	return &a, nil
}

// Create inserts only when the patient belongs to doctorID.
func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment, doctorID uuid.UUID) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, date_time, status, reason, notes)
		SELECT $1::uuid, p.id, $3::timestamptz, $4::varchar, $5::text, $6::text FROM patient p WHERE p.id = $2 AND p.doctor_id = $7
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DateTime, a.Status, a.Reason, a.Notes, doctorID).Scan(&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ownership.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) FindOwned(ctx context.Context, id, doctorID uuid.UUID) (*Appointment, error) {
	return r.scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+apptFrom+` WHERE a.id = $1 AND p.doctor_id = $2`, id, doctorID))
}

// Update requires both the current and the new patient to belong to doctorID.
func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment, doctorID uuid.UUID) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointment a SET patient_id=$3, date_time=$4, status=$5, reason=$6, notes=$7,
			updated_at=NOW()
		FROM patient cur, patient nxt
		WHERE a.id = $1 AND cur.id = a.patient_id AND cur.doctor_id = $2
			AND nxt.id = $3 AND nxt.doctor_id = $2
		RETURNING a.created_at, a.updated_at, a.calendar_event_id`,
		a.ID, doctorID, a.PatientID, a.DateTime, a.Status, a.Reason, a.Notes).
		Scan(&a.CreatedAt, &a.UpdatedAt, &a.CalendarEventID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ownership.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) execOwned(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ownership.ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id, doctorID uuid.UUID, status string) error {
	return r.execOwned(ctx, `
		UPDATE appointment a SET status=$3, updated_at=NOW()
		FROM patient p
		WHERE a.id = $1 AND p.id = a.patient_id AND p.doctor_id = $2`, id, doctorID, status)
}

func (r *appointmentRepoPG) SetCalendarEventID(ctx context.Context, id, doctorID uuid.UUID, eventID *string) error {
	return r.execOwned(ctx, `
		UPDATE appointment a SET calendar_event_id=$3, updated_at=NOW()
		FROM patient p
		WHERE a.id = $1 AND p.id = a.patient_id AND p.doctor_id = $2`, id, doctorID, eventID)
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id, doctorID uuid.UUID) error {
	return r.execOwned(ctx, `
		DELETE FROM appointment a USING patient p
		WHERE a.id = $1 AND p.id = a.patient_id AND p.doctor_id = $2`, id, doctorID)
}

func (r *appointmentRepoPG) List(ctx context.Context, doctorID uuid.UUID, f ListFilter) ([]*Appointment, int, error) {
	conds := []string{"p.doctor_id = $1"}
	args := []interface{}{doctorID}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("a.status = $%d", f.Status)
	}
	if f.PatientID != nil {
		add("a.patient_id = $%d", *f.PatientID)
	}
	if f.From != nil {
		add("a.date_time >= $%d", *f.From)
	}
	if f.To != nil {
		add("a.date_time < $%d", *f.To)
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+apptFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	n := len(args)
	args = append(args, f.Limit, f.Offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT `+apptCols+apptFrom+where+
		` ORDER BY a.date_time, a.id LIMIT $%d OFFSET $%d`, n+1, n+2), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) CountByStatus(ctx context.Context, doctorID uuid.UUID) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT a.status, COUNT(*)`+apptFrom+
		` WHERE p.doctor_id = $1 GROUP BY a.status`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("count appointments by status: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
