package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/ownership"
)

const uniqueViolation = "23505"

type userRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, email, password_hash, first_name, last_name, role, specialization, phone,
	google_access_token, google_refresh_token, google_token_expiry, google_calendar_id,
	created_at, updated_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var (
		u                      User
		access, refresh, calID *string
		expiry                 *time.Time
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role,
		&u.Specialization, &u.Phone, &access, &refresh, &expiry, &calID,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ownership.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if refresh != nil {
		tok := &CalendarToken{RefreshToken: *refresh}
		if access != nil {
			tok.AccessToken = *access
		}
		if expiry != nil {
			tok.Expiry = *expiry
		}
		if calID != nil {
			tok.CalendarID = *calID
		}
		u.Calendar = tok
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO app_user (id, email, password_hash, first_name, last_name, role,
			specialization, phone)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role,
		u.Specialization, u.Phone).Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM app_user WHERE id = $1`, id))
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM app_user WHERE LOWER(email) = LOWER($1)`, email))
}

func (r *userRepoPG) UpdateProfile(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE app_user SET email=$2, first_name=$3, last_name=$4, specialization=$5,
			phone=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.Email, u.FirstName, u.LastName, u.Specialization, u.Phone).Scan(&u.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ownership.ErrNotFound
	case isUniqueViolation(err):
		return ErrEmailTaken
	case err != nil:
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *userRepoPG) exec(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ownership.ErrNotFound
	}
	return nil
}

func (r *userRepoPG) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.exec(ctx, `UPDATE app_user SET password_hash=$2, updated_at=NOW() WHERE id = $1`, id, hash)
}

func (r *userRepoPG) SetCalendarToken(ctx context.Context, id uuid.UUID, tok CalendarToken) error {
	return r.exec(ctx, `
		UPDATE app_user SET google_access_token=$2, google_refresh_token=$3,
			google_token_expiry=$4, google_calendar_id=$5, updated_at=NOW()
		WHERE id = $1`,
		id, tok.AccessToken, tok.RefreshToken, tok.Expiry, tok.CalendarID)
}

func (r *userRepoPG) ClearCalendarToken(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `
		UPDATE app_user SET google_access_token=NULL, google_refresh_token=NULL,
			google_token_expiry=NULL, google_calendar_id=NULL, updated_at=NOW()
		WHERE id = $1`, id)
}
