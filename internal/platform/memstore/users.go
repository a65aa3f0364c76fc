package memstore

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/user"
	"github.com/clinic/clinic/internal/platform/ownership"
)

type userRepo struct{ s *Store }

func copyUser(u *user.User) *user.User {
	cp := *u
	if u.Calendar != nil {
		tok := *u.Calendar
		cp.Calendar = &tok
	}
	return &cp
}

// emailTaken must be called with s.mu held.
func (r *userRepo) emailTaken(email string, except uuid.UUID) bool {
	for id, u := range r.s.users {
		if id != except && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *userRepo) Create(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.emailTaken(u.Email, uuid.Nil) {
		return user.ErrEmailTaken
	}
	u.ID = uuid.New()
	u.CreatedAt = r.s.now()
	u.UpdatedAt = u.CreatedAt
	r.s.users[u.ID] = copyUser(u)
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, ownership.ErrNotFound
	}
	return copyUser(u), nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, ownership.ErrNotFound
}

func (r *userRepo) UpdateProfile(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.users[u.ID]
	if !ok {
		return ownership.ErrNotFound
	}
	if r.emailTaken(u.Email, u.ID) {
		return user.ErrEmailTaken
	}
	cur.Email = u.Email
	cur.FirstName = u.FirstName
	cur.LastName = u.LastName
	cur.Specialization = u.Specialization
	cur.Phone = u.Phone
	cur.UpdatedAt = r.s.now()
	u.UpdatedAt = cur.UpdatedAt
	u.CreatedAt = cur.CreatedAt
	return nil
}

func (r *userRepo) update(id uuid.UUID, fn func(u *user.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return ownership.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = r.s.now()
	return nil
}

func (r *userRepo) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	return r.update(id, func(u *user.User) { u.PasswordHash = hash })
}

func (r *userRepo) SetCalendarToken(_ context.Context, id uuid.UUID, tok user.CalendarToken) error {
	return r.update(id, func(u *user.User) { u.Calendar = &tok })
}

func (r *userRepo) ClearCalendarToken(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(u *user.User) { u.Calendar = nil })
}
