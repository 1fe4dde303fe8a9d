package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cuidasalud/cuidasalud/internal/domain/vitals"
)

func newTestHandler() (*Handler, *mockRepo) {
	repo := newMockRepo()
	return NewHandler(newTestService(repo, &mockDirectory{}, nil)), repo
}

func TestHandler_Notify(t *testing.T) {
	repo := newMockRepo()
	patientID := uuid.New()
	dir := &mockDirectory{patient: &Contact{ID: patientID, FullName: "Maria Gonzalez"}}
	h := NewHandler(newTestService(repo, dir, nil))
	e := echo.New()

	body := `{"patient_id":"` + patientID.String() + `","type":"alerta","severity":"critica","title":"Alerta critica","message":"FC_FUERA_RANGO"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Notify(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var n Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &n); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if n.CaregiverID != nil {
		t.Error("response must be the patient-scoped row")
	}
	if n.Type != TypeAlerta || n.Severity != vitals.SeverityCritica {
		t.Errorf("type/severity = %q/%q", n.Type, n.Severity)
	}
	if len(repo.order) != 1 {
		t.Errorf("got %d rows, want 1", len(repo.order))
	}
}

func TestHandler_Notify_InvalidSeverity(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	body := `{"patient_id":"` + uuid.New().String() + `","severity":"urgente","title":"t"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Notify(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_GetPreferences_Defaults(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	if err := h.GetPreferences(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var p CaregiverPreference
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !p.RecibirCriticas || p.RecibirLeves || p.CanalEmail {
		t.Errorf("unexpected defaults: %+v", p)
	}
}

func TestHandler_SavePreferences(t *testing.T) {
	h, repo := newTestHandler()
	e := echo.New()
	cgID := uuid.New()

	body := `{"recibir_criticas":true,"recibir_leves":true,"canal_app":true,"canal_email":true}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(cgID.String())

	if err := h.SavePreferences(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	saved, ok := repo.preferences[cgID]
	if !ok {
		t.Fatal("preference not persisted")
	}
	if !saved.RecibirLeves || !saved.CanalEmail {
		t.Errorf("unexpected saved preference: %+v", saved)
	}
}

func TestHandler_SavePreferences_InvalidQuietHours(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	body := `{"recibir_criticas":true,"quiet_start":"22:00"}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.SavePreferences(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_MarkRead_NotFound(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.MarkRead(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_ListCaregiverNotifications(t *testing.T) {
	h, repo := newTestHandler()
	e := echo.New()
	cgID := uuid.New()

	n := &Notification{PatientID: uuid.New(), CaregiverID: &cgID, Type: TypeAlerta, Severity: vitals.SeverityCritica, Title: "t", Message: "m"}
	if err := repo.CreateNotification(context.Background(), n); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(cgID.String())

	if err := h.ListCaregiverNotifications(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Data  []*Notification `json:"data"`
		Total int             `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Total != 1 || len(resp.Data) != 1 {
		t.Errorf("total = %d, data = %d, want 1/1", resp.Total, len(resp.Data))
	}
}
