package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/appointment"
	"github.com/clinic/clinic/internal/domain/user"
)

// ExportLimit caps how many appointments one ICS export contains.
const ExportLimit = 1000

var (
	// ErrNotConfigured is returned when the server has no Google OAuth
	// client settings.
	ErrNotConfigured = errors.New("calendar integration is not configured")
	ErrNotLinked     = errors.New("calendar not linked")
	// ErrUpstream wraps every failure talking to Google.
	ErrUpstream = errors.New("calendar service unavailable")
)

type AppointmentStore interface {
	Get(ctx context.Context, id, doctorID uuid.UUID) (*appointment.Appointment, error)
	List(ctx context.Context, doctorID uuid.UUID, f appointment.ListFilter) ([]*appointment.Appointment, int, error)
	SetCalendarEventID(ctx context.Context, id, doctorID uuid.UUID, eventID *string) error
}

// CredentialStore persists the doctor's OAuth grant.
type CredentialStore interface {
	CalendarToken(ctx context.Context, id uuid.UUID) (*user.CalendarToken, error)
	SetCalendarToken(ctx context.Context, id uuid.UUID, tok user.CalendarToken) error
	ClearCalendarToken(ctx context.Context, id uuid.UUID) error
}

type LinkStatus struct {
	Enabled    bool       `json:"enabled"`
	Linked     bool       `json:"linked"`
	CalendarID string     `json:"calendar_id,omitempty"`
	Expiry     *time.Time `json:"expiry,omitempty"`
}

type Service struct {
	appointments AppointmentStore
	creds        CredentialStore
	oauth        *OAuth
	events       EventClient
	logger       zerolog.Logger
	now          func() time.Time
}

// NewService builds the calendar service. oauth may be nil, in which case
// only the ICS export works.
func NewService(appointments AppointmentStore, creds CredentialStore, oauth *OAuth, events EventClient, logger zerolog.Logger) *Service {
	return &Service{
		appointments: appointments,
		creds:        creds,
		oauth:        oauth,
		events:       events,
		logger:       logger.With().Str("component", "calendar").Logger(),
		now:          time.Now,
	}
}

func upstream(err error) error {
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

// ExportICS renders the doctor's appointments matching f.
func (s *Service) ExportICS(ctx context.Context, doctorID uuid.UUID, name string, f appointment.ListFilter) ([]byte, error) {
	f.Limit, f.Offset = ExportLimit, 0
	appts, total, err := s.appointments.List(ctx, doctorID, f)
	if err != nil {
		return nil, err
	}
	if total > len(appts) {
		s.logger.Warn().
			Str("user_id", doctorID.String()).
			Int("exported", len(appts)).
			Int("matched", total).
			Msg("calendar export truncated")
	}
	return BuildICS(name, appts, s.now())
}

func (s *Service) AuthURL(doctorID uuid.UUID) (string, error) {
	if s.oauth == nil {
		return "", ErrNotConfigured
	}
	return s.oauth.AuthURL(doctorID)
}

// Link completes the authorization code flow and stores the grant. Google
// omits the refresh token on repeat consent; the stored one is kept then.
func (s *Service) Link(ctx context.Context, doctorID uuid.UUID, code, state string) (*LinkStatus, error) {
	if s.oauth == nil {
		return nil, ErrNotConfigured
	}
	if err := s.oauth.CheckState(state, doctorID); err != nil {
		return nil, err
	}
	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, upstream(err)
	}

	stored := user.CalendarToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		CalendarID:   DefaultCalendarID,
	}
	if stored.RefreshToken == "" {
		prev, err := s.creds.CalendarToken(ctx, doctorID)
		if err != nil {
			return nil, err
		}
		if prev == nil || prev.RefreshToken == "" {
			return nil, upstream(errors.New("grant carried no refresh token"))
		}
		stored.RefreshToken = prev.RefreshToken
		if prev.CalendarID != "" {
			stored.CalendarID = prev.CalendarID
		}
	}
	if err := s.creds.SetCalendarToken(ctx, doctorID, stored); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", doctorID.String()).Msg("calendar linked")
	return s.Status(ctx, doctorID)
}

func (s *Service) Status(ctx context.Context, doctorID uuid.UUID) (*LinkStatus, error) {
	st := &LinkStatus{Enabled: s.oauth != nil}
	tok, err := s.creds.CalendarToken(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if tok != nil && tok.RefreshToken != "" {
		st.Linked = true
		st.CalendarID = tok.CalendarID
		if !tok.Expiry.IsZero() {
			exp := tok.Expiry
			st.Expiry = &exp
		}
	}
	return st, nil
}

// Unlink forgets the stored grant. Events already pushed stay in Google.
func (s *Service) Unlink(ctx context.Context, doctorID uuid.UUID) error {
	if err := s.creds.ClearCalendarToken(ctx, doctorID); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", doctorID.String()).Msg("calendar unlinked")
	return nil
}

// session returns a usable access token and calendar id, persisting a
// refreshed token.
func (s *Service) session(ctx context.Context, doctorID uuid.UUID) (string, string, error) {
	if s.oauth == nil {
		return "", "", ErrNotConfigured
	}
	stored, err := s.creds.CalendarToken(ctx, doctorID)
	if err != nil {
		return "", "", err
	}
	if stored == nil || stored.RefreshToken == "" {
		return "", "", ErrNotLinked
	}
	calendarID := stored.CalendarID
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}

	tok, err := s.oauth.Fresh(ctx, stored)
	if err != nil {
		return "", "", upstream(err)
	}
	if tok.AccessToken != stored.AccessToken {
		next := *stored
		next.AccessToken = tok.AccessToken
		next.Expiry = tok.Expiry
		if tok.RefreshToken != "" {
			next.RefreshToken = tok.RefreshToken
		}
		if err := s.creds.SetCalendarToken(ctx, doctorID, next); err != nil {
			return "", "", err
		}
	}
	return tok.AccessToken, calendarID, nil
}

// Sync pushes the appointment to the linked calendar, creating the event
// on first sync and updating it afterwards. An event deleted on the Google
// side is recreated.
func (s *Service) Sync(ctx context.Context, doctorID, appointmentID uuid.UUID) (*appointment.Appointment, error) {
	a, err := s.appointments.Get(ctx, appointmentID, doctorID)
	if err != nil {
		return nil, err
	}
	accessToken, calendarID, err := s.session(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	ev := EventFromAppointment(a)
	if a.CalendarEventID != nil {
		err := s.events.Update(ctx, accessToken, calendarID, *a.CalendarEventID, ev)
		var apiErr *APIError
		switch {
		case err == nil:
			return a, nil
		case errors.As(err, &apiErr) && apiErr.gone():
			s.logger.Warn().Str("appointment_id", a.ID.String()).Msg("calendar event missing, recreating")
		default:
			return nil, upstream(err)
		}
	}

	eventID, err := s.events.Insert(ctx, accessToken, calendarID, ev)
	if err != nil {
		return nil, upstream(err)
	}
	if err := s.appointments.SetCalendarEventID(ctx, a.ID, doctorID, &eventID); err != nil {
		return nil, err
	}
	a.CalendarEventID = &eventID
	s.logger.Info().Str("appointment_id", a.ID.String()).Str("event_id", eventID).Msg("appointment synced")
	return a, nil
}

// Unsync removes the appointment's event from the linked calendar. An
// appointment that was never synced is left as is.
func (s *Service) Unsync(ctx context.Context, doctorID, appointmentID uuid.UUID) error {
	a, err := s.appointments.Get(ctx, appointmentID, doctorID)
	if err != nil {
		return err
	}
	if a.CalendarEventID == nil {
		return nil
	}
	accessToken, calendarID, err := s.session(ctx, doctorID)
	if err != nil {
		return err
	}
	if err := s.events.Delete(ctx, accessToken, calendarID, *a.CalendarEventID); err != nil {
		return upstream(err)
	}
	return s.appointments.SetCalendarEventID(ctx, a.ID, doctorID, nil)
}
