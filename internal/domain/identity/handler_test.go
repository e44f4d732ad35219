package identity

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/hospital/frontdesk/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	h := NewHandler(newTestDirectory())
	e := echo.New()
	return h, e
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

func TestHandler_CreateDoctorDefaultsAvailable(t *testing.T) {
	h, e := newTestHandler()

	body := `{"user_id":"u-1","first_name":"Greg","last_name":"House","specialization":"diagnostics","consultation_fee":150}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/doctors", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var d Doctor
	json.Unmarshal(rec.Body.Bytes(), &d)
	if !d.IsAvailable {
		t.Error("expected is_available to default to true")
	}
}

func TestHandler_CreateDoctor_BadRequest(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/doctors", strings.NewReader(`{"first_name":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	if code := httpCode(t, h.CreateDoctor(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_ListDoctors(t *testing.T) {
	h, e := newTestHandler()
	seedDoctor(t, h.dir, "u-1", "House")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors?limit=5", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListDoctors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []DoctorSummary `json:"data"`
		Total int             `json:"total"`
		Limit int             `json:"limit"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || len(resp.Data) != 1 || resp.Limit != 5 {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
	if resp.Data[0].Specialization != "cardiology" {
		t.Errorf("unexpected specialization %q", resp.Data[0].Specialization)
	}
}

func TestHandler_GetDoctor(t *testing.T) {
	h, e := newTestHandler()
	d := seedDoctor(t, h.dir, "u-1", "House")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())

	if err := h.GetDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	if code := httpCode(t, h.GetDoctor(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_GetDoctor_NotFound(t *testing.T) {
	h, e := newTestHandler()

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	if code := httpCode(t, h.GetDoctor(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_Me(t *testing.T) {
	h, e := newTestHandler()
	p := seedPatient(t, h.dir, "u-pat")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{UserID: "u-pat", Roles: []string{"patient"}}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Me(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var actor Actor
	json.Unmarshal(rec.Body.Bytes(), &actor)
	if actor.PatientID == nil || *actor.PatientID != p.ID {
		t.Errorf("expected patient id %s, got %s", p.ID, rec.Body.String())
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), httptest.NewRecorder())
	if code := httpCode(t, h.Me(c)); code != http.StatusForbidden {
		t.Errorf("expected 403 without principal, got %d", code)
	}
}

func TestHandler_CreatePatient(t *testing.T) {
	h, e := newTestHandler()

	body := `{"user_id":"u-p","first_name":"Jane","last_name":"Smith"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c = e.NewContext(req, httptest.NewRecorder())
	if code := httpCode(t, h.CreatePatient(c)); code != http.StatusConflict {
		t.Errorf("expected 409 on duplicate user, got %d", code)
	}
}
