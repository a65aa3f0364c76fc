package medicalrecord

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
)

func doctorContext(e *echo.Echo, doctor uuid.UUID, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: doctor, Role: auth.RoleDoctor}))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError %d, got %T (%v)", code, err, err)
	}
	if he.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, he.Code, he.Message)
	}
}

func TestHandler_CreateThenGet(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()

	body := `{"patient_id":"` + f.patientA.String() + `","diagnosis":"Migraine","record_date":"2024-06-10",` +
		`"follow_up_date":"2024-06-24","vitals":{"blood_pressure":"120/80","temperature":36.8}}`
	c, rec := doctorContext(e, f.doctorA, http.MethodPost, "/api/medical-records", body)
	if err := h.CreateRecord(c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var created map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	c, rec = doctorContext(e, f.doctorA, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(created["id"].(string))
	if err := h.GetRecord(c); err != nil {
		t.Fatalf("get: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["record_date"] != "2024-06-10" || got["follow_up_date"] != "2024-06-24" {
		t.Errorf("expected date-only fields, got %v / %v", got["record_date"], got["follow_up_date"])
	}
	vitals, ok := got["vitals"].(map[string]interface{})
	if !ok || vitals["blood_pressure"] != "120/80" {
		t.Errorf("expected vitals round trip, got %v", got["vitals"])
	}
}

func TestHandler_OtherDoctorGets404(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()

	body := `{"patient_id":"` + f.patientA.String() + `","diagnosis":"Migraine"}`
	c, _ := doctorContext(e, f.doctorB, http.MethodPost, "/api/medical-records", body)
	expectStatus(t, h.CreateRecord(c), http.StatusNotFound)

	c, _ = doctorContext(e, f.doctorB, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	expectStatus(t, h.GetRecord(c), http.StatusNotFound)
}

func TestHandler_ListByPatient(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()
	f.create(t, "Flu", fixedDate(2))
	f.create(t, "Cold", fixedDate(9))

	c, rec := doctorContext(e, f.doctorA, http.MethodGet, "/api/medical-records?patient_id="+f.patientA.String(), "")
	if err := h.ListRecords(c); err != nil {
		t.Fatalf("list: %v", err)
	}
	var resp struct {
		Data  []Record `json:"data"`
		Total int      `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || resp.Data[0].Diagnosis != "Cold" {
		t.Errorf("expected 2 records newest first, got %+v", resp)
	}

	c, _ = doctorContext(e, f.doctorA, http.MethodGet, "/api/medical-records?patient_id=xyz", "")
	expectStatus(t, h.ListRecords(c), http.StatusBadRequest)
}

func TestHandler_DeleteMissing(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()

	c, _ := doctorContext(e, f.doctorA, http.MethodDelete, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	expectStatus(t, h.DeleteRecord(c), http.StatusNotFound)
}

func TestHandler_CreateNullRecordDateDefaultsToToday(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()

	body := `{"patient_id":"` + f.patientA.String() + `","diagnosis":"Flu","record_date":null,"follow_up_date":null}`
	c, rec := doctorContext(e, f.doctorA, http.MethodPost, "/api/medical-records", body)
	if err := h.CreateRecord(c); err != nil {
		t.Fatalf("create: %v", err)
	}
	var got Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RecordDate != civil.DateOf(fixedNow) {
		t.Errorf("expected record_date %s, got %s", civil.DateOf(fixedNow), got.RecordDate)
	}
	if got.Diagnosis != "Flu" {
		t.Errorf("expected diagnosis to survive decoding, got %q", got.Diagnosis)
	}
}
