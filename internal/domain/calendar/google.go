package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultCalendarID = "primary"
	googleTimeout     = 15 * time.Second
)

// APIError is a non-2xx answer from the Google Calendar API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google calendar: status %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) gone() bool {
	return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone
}

type googleEventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type googleAttendee struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

type googleEvent struct {
	ID          string           `json:"id,omitempty"`
	Summary     string           `json:"summary"`
	Description string           `json:"description,omitempty"`
	Start       googleEventTime  `json:"start"`
	End         googleEventTime  `json:"end"`
	Attendees   []googleAttendee `json:"attendees,omitempty"`
	Status      string           `json:"status,omitempty"`
}

func toGoogleEvent(ev Event) googleEvent {
	g := googleEvent{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       googleEventTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: "UTC"},
		End:         googleEventTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: "UTC"},
		Status:      "confirmed",
	}
	if ev.Cancelled {
		g.Status = "cancelled"
	}
	if ev.AttendeeEmail != "" {
		g.Attendees = []googleAttendee{{Email: ev.AttendeeEmail, DisplayName: ev.AttendeeName}}
	}
	return g
}

// EventClient writes events to an external calendar.
type EventClient interface {
	Insert(ctx context.Context, accessToken, calendarID string, ev Event) (string, error)
	Update(ctx context.Context, accessToken, calendarID, eventID string, ev Event) error
	Delete(ctx context.Context, accessToken, calendarID, eventID string) error
}

// GoogleClient talks to the Calendar v3 REST API. Requests are not retried.
type GoogleClient struct {
	http *resty.Client
}

func NewGoogleClient(baseURL string) *GoogleClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(googleTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &GoogleClient{http: client}
}

func (c *GoogleClient) request(ctx context.Context, accessToken, calendarID string) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetPathParam("calendarId", calendarID)
}

func checkResponse(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsError() {
		body := resp.String()
		if len(body) > 512 {
			body = body[:512]
		}
		return fmt.Errorf("%s: %w", op, &APIError{StatusCode: resp.StatusCode(), Body: body})
	}
	return nil
}

func (c *GoogleClient) Insert(ctx context.Context, accessToken, calendarID string, ev Event) (string, error) {
	var out googleEvent
	resp, err := c.request(ctx, accessToken, calendarID).
		SetBody(toGoogleEvent(ev)).
		SetResult(&out).
		Post("/calendars/{calendarId}/events")
	if err := checkResponse(resp, err, "insert event"); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("insert event: response carried no event id")
	}
	return out.ID, nil
}

func (c *GoogleClient) Update(ctx context.Context, accessToken, calendarID, eventID string, ev Event) error {
	resp, err := c.request(ctx, accessToken, calendarID).
		SetPathParam("eventId", eventID).
		SetBody(toGoogleEvent(ev)).
		Put("/calendars/{calendarId}/events/{eventId}")
	return checkResponse(resp, err, "update event")
}

// Delete treats an event that is already gone as deleted.
func (c *GoogleClient) Delete(ctx context.Context, accessToken, calendarID, eventID string) error {
	resp, err := c.request(ctx, accessToken, calendarID).
		SetPathParam("eventId", eventID).
		Delete("/calendars/{calendarId}/events/{eventId}")
	if err == nil && resp.IsError() && (&APIError{StatusCode: resp.StatusCode()}).gone() {
		return nil
	}
	return checkResponse(resp, err, "delete event")
}
