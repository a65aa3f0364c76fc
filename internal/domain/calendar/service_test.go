package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/clinic/clinic/internal/domain/appointment"
	"github.com/clinic/clinic/internal/domain/user"
	"github.com/clinic/clinic/internal/platform/ownership"
)

// -- Fakes --

type ownedAppointment struct {
	doctorID uuid.UUID
	appt     *appointment.Appointment
}

type fakeAppointments map[uuid.UUID]*ownedAppointment

func (f fakeAppointments) Get(_ context.Context, id, doctorID uuid.UUID) (*appointment.Appointment, error) {
	o, ok := f[id]
	if !ok || o.doctorID != doctorID {
		return nil, ownership.ErrNotFound
	}
	cp := *o.appt
	return &cp, nil
}

func (f fakeAppointments) List(_ context.Context, doctorID uuid.UUID, lf appointment.ListFilter) ([]*appointment.Appointment, int, error) {
	var out []*appointment.Appointment
	for _, o := range f {
		if o.doctorID != doctorID || (lf.Status != "" && o.appt.Status != lf.Status) {
			continue
		}
		out = append(out, o.appt)
	}
	return out, len(out), nil
}

func (f fakeAppointments) SetCalendarEventID(_ context.Context, id, doctorID uuid.UUID, eventID *string) error {
	o, ok := f[id]
	if !ok || o.doctorID != doctorID {
		return ownership.ErrNotFound
	}
	o.appt.CalendarEventID = eventID
	return nil
}

type fakeCreds map[uuid.UUID]*user.CalendarToken

func (f fakeCreds) CalendarToken(_ context.Context, id uuid.UUID) (*user.CalendarToken, error) {
	return f[id], nil
}

func (f fakeCreds) SetCalendarToken(_ context.Context, id uuid.UUID, tok user.CalendarToken) error {
	f[id] = &tok
	return nil
}

func (f fakeCreds) ClearCalendarToken(_ context.Context, id uuid.UUID) error {
	delete(f, id)
	return nil
}

type harness struct {
	svc    *Service
	google *fakeGoogle
	appts  fakeAppointments
	creds  fakeCreds
	doctor uuid.UUID
	appt   *appointment.Appointment
	grants int
}

// newHarness wires the service to a fake Google serving both the token
// endpoint and the Calendar API.
func newHarness(t *testing.T) *harness {
	h := &harness{
		appts:  fakeAppointments{},
		creds:  fakeCreds{},
		doctor: uuid.New(),
		appt:   sampleAppointment(appointment.StatusScheduled),
	}
	h.appts[h.appt.ID] = &ownedAppointment{doctorID: h.doctor, appt: h.appt}
	h.google = newFakeGoogle(t)

	mux := http.NewServeMux()
	h.google.register(mux)
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		h.grants++
		resp := map[string]interface{}{"access_token": "fresh", "token_type": "Bearer", "expires_in": 3600}
		if r.Form.Get("grant_type") == "authorization_code" {
			if r.Form.Get("code") == "repeat" {
				resp["access_token"] = "again"
			} else {
				resp["access_token"] = "first"
				resp["refresh_token"] = "refresh-1"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	o := newTestOAuth()
	o.cfg.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	h.svc = NewService(h.appts, h.creds, o, NewGoogleClient(srv.URL+"/calendar/v3"), zerolog.Nop())
	return h
}

func (h *harness) link(expiry time.Time) {
	h.creds[h.doctor] = &user.CalendarToken{
		AccessToken: "stale", RefreshToken: "refresh-1", Expiry: expiry, CalendarID: DefaultCalendarID,
	}
}

func (h *harness) state(t *testing.T) string {
	raw, err := h.svc.AuthURL(h.doctor)
	require.NoError(t, err)
	return stateFrom(t, raw)
}

// -- Link --

func TestService_Link(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	st, err := h.svc.Link(ctx, h.doctor, "code-1", h.state(t))
	require.NoError(t, err)
	require.True(t, st.Enabled)
	require.True(t, st.Linked)
	require.Equal(t, DefaultCalendarID, st.CalendarID)
	require.Equal(t, "first", h.creds[h.doctor].AccessToken)
	require.Equal(t, "refresh-1", h.creds[h.doctor].RefreshToken)

	// repeat consent returns no refresh token; the stored one survives
	_, err = h.svc.Link(ctx, h.doctor, "repeat", h.state(t))
	require.NoError(t, err)
	require.Equal(t, "again", h.creds[h.doctor].AccessToken)
	require.Equal(t, "refresh-1", h.creds[h.doctor].RefreshToken)
}

func TestService_Link_NoRefreshTokenAtAll(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Link(context.Background(), h.doctor, "repeat", h.state(t))
	require.ErrorIs(t, err, ErrUpstream)
	require.Nil(t, h.creds[h.doctor])
}

func TestService_Link_RejectsForeignState(t *testing.T) {
	h := newHarness(t)
	raw, err := h.svc.AuthURL(uuid.New())
	require.NoError(t, err)

	_, err = h.svc.Link(context.Background(), h.doctor, "code-1", stateFrom(t, raw))
	require.ErrorIs(t, err, ErrInvalidState)
	require.Zero(t, h.grants)
}

func TestService_StatusAndUnlink(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	st, err := h.svc.Status(ctx, h.doctor)
	require.NoError(t, err)
	require.False(t, st.Linked)

	h.link(time.Now().Add(time.Hour))
	st, err = h.svc.Status(ctx, h.doctor)
	require.NoError(t, err)
	require.True(t, st.Linked)
	require.NotNil(t, st.Expiry)

	require.NoError(t, h.svc.Unlink(ctx, h.doctor))
	st, err = h.svc.Status(ctx, h.doctor)
	require.NoError(t, err)
	require.False(t, st.Linked)
}

// -- Sync --

func TestService_Sync_RefreshesAndInserts(t *testing.T) {
	h := newHarness(t)
	h.link(time.Now().Add(-time.Hour))

	a, err := h.svc.Sync(context.Background(), h.doctor, h.appt.ID)
	require.NoError(t, err)
	require.NotNil(t, a.CalendarEventID)
	require.Equal(t, "evt-1", *h.appt.CalendarEventID)

	require.Equal(t, 1, h.grants)
	require.Equal(t, "fresh", h.creds[h.doctor].AccessToken, "refreshed token is persisted")
	require.Equal(t, "refresh-1", h.creds[h.doctor].RefreshToken)
	require.Equal(t, []string{"Bearer fresh"}, h.google.tokens)
}

func TestService_Sync_UpdatesExistingEvent(t *testing.T) {
	h := newHarness(t)
	h.link(time.Now().Add(time.Hour))
	ctx := context.Background()

	_, err := h.svc.Sync(ctx, h.doctor, h.appt.ID)
	require.NoError(t, err)
	h.appt.Status = appointment.StatusCancelled
	_, err = h.svc.Sync(ctx, h.doctor, h.appt.ID)
	require.NoError(t, err)

	require.Zero(t, h.grants, "a valid access token is used as is")
	require.Len(t, h.google.events, 1)
	require.Equal(t, "cancelled", h.google.events["evt-1"].Status)
}

func TestService_Sync_RecreatesDeletedEvent(t *testing.T) {
	h := newHarness(t)
	h.link(time.Now().Add(time.Hour))
	gone := "deleted-in-google"
	h.appt.CalendarEventID = &gone

	a, err := h.svc.Sync(context.Background(), h.doctor, h.appt.ID)
	require.NoError(t, err)
	require.Equal(t, "evt-1", *a.CalendarEventID)
}

func TestService_Sync_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Sync(ctx, h.doctor, h.appt.ID)
	require.ErrorIs(t, err, ErrNotLinked)

	_, err = h.svc.Sync(ctx, uuid.New(), h.appt.ID)
	require.ErrorIs(t, err, ownership.ErrNotFound)

	h.link(time.Now().Add(time.Hour))
	h.google.failNext = 1
	_, err = h.svc.Sync(ctx, h.doctor, h.appt.ID)
	require.ErrorIs(t, err, ErrUpstream)
	require.Nil(t, h.appt.CalendarEventID)
}

func TestService_NotConfigured(t *testing.T) {
	appts := fakeAppointments{}
	a := sampleAppointment(appointment.StatusScheduled)
	doctor := uuid.New()
	appts[a.ID] = &ownedAppointment{doctorID: doctor, appt: a}
	svc := NewService(appts, fakeCreds{}, nil, nil, zerolog.Nop())

	_, err := svc.AuthURL(doctor)
	require.ErrorIs(t, err, ErrNotConfigured)
	_, err = svc.Sync(context.Background(), doctor, a.ID)
	require.ErrorIs(t, err, ErrNotConfigured)

	st, err := svc.Status(context.Background(), doctor)
	require.NoError(t, err)
	require.False(t, st.Enabled)
}

func TestService_Unsync(t *testing.T) {
	h := newHarness(t)
	h.link(time.Now().Add(time.Hour))
	ctx := context.Background()

	require.NoError(t, h.svc.Unsync(ctx, h.doctor, h.appt.ID), "never synced is a no-op")

	_, err := h.svc.Sync(ctx, h.doctor, h.appt.ID)
	require.NoError(t, err)
	require.NoError(t, h.svc.Unsync(ctx, h.doctor, h.appt.ID))
	require.Nil(t, h.appt.CalendarEventID)
	require.Empty(t, h.google.events)
}

// -- Export --

func TestService_ExportICS(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	data, err := h.svc.ExportICS(ctx, h.doctor, "Clinic", appointment.ListFilter{Status: appointment.StatusScheduled})
	require.NoError(t, err)
	require.Contains(t, string(data), "BEGIN:VEVENT")

	_, err = h.svc.ExportICS(ctx, h.doctor, "Clinic", appointment.ListFilter{Status: appointment.StatusCompleted})
	require.ErrorIs(t, err, ErrNoAppointments)

	_, err = h.svc.ExportICS(ctx, uuid.New(), "Clinic", appointment.ListFilter{})
	require.ErrorIs(t, err, ErrNoAppointments)
}

type overflowingAppointments struct {
	fakeAppointments
	total int
}

func (o overflowingAppointments) List(ctx context.Context, doctorID uuid.UUID, lf appointment.ListFilter) ([]*appointment.Appointment, int, error) {
	items, _, err := o.fakeAppointments.List(ctx, doctorID, lf)
	return items, o.total, err
}

func TestService_ExportICS_WarnsWhenTruncated(t *testing.T) {
	appts := fakeAppointments{}
	a := sampleAppointment(appointment.StatusScheduled)
	doctor := uuid.New()
	appts[a.ID] = &ownedAppointment{doctorID: doctor, appt: a}

	var buf bytes.Buffer
	svc := NewService(overflowingAppointments{appts, ExportLimit + 5}, fakeCreds{}, nil, nil, zerolog.New(&buf))
	_, err := svc.ExportICS(context.Background(), doctor, "Clinic", appointment.ListFilter{})
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "calendar export truncated", entry["message"])
	require.EqualValues(t, ExportLimit+5, entry["matched"])
	require.EqualValues(t, 1, entry["exported"])

	buf.Reset()
	svc = NewService(appts, fakeCreds{}, nil, nil, zerolog.New(&buf))
	_, err = svc.ExportICS(context.Background(), doctor, "Clinic", appointment.ListFilter{})
	require.NoError(t, err)
	require.Empty(t, buf.String())
}
