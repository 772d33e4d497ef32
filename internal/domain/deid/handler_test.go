package deid

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo) {
	h := NewHandler(newTestService(nil))
	e := echo.New()
	return h, e
}

func TestHandler_Mask(t *testing.T) {
	h, e := newTestHandler()
	body := `{"name":"Jane Doe","dob":"1990-01-01"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Mask(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "Jane") {
		t.Fatalf("original value leaked in response: %s", rec.Body.String())
	}

	var resp MaskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, err := uuid.Parse(resp.RecordID); err != nil {
		t.Fatalf("record_id is not a uuid: %q", resp.RecordID)
	}
	if resp.EntryCount != 2 {
		t.Fatalf("entry_count = %d, want 2", resp.EntryCount)
	}
}

func TestHandler_Mask_EmptyRecord(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Mask(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_MaskThenRemap(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Jane Doe"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.Mask(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Mask: %v", err)
	}
	var masked MaskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &masked); err != nil {
		t.Fatalf("decode mask response: %v", err)
	}

	payload, _ := json.Marshal(masked.MaskedRecord)
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(string(payload)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(masked.RecordID)

	if err := h.Remap(c); err != nil {
		t.Fatalf("Remap: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp RemapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode remap response: %v", err)
	}
	if resp.RestoredRecord["name"] != "Jane Doe" {
		t.Fatalf("restored name = %v", resp.RestoredRecord["name"])
	}
	if len(resp.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", resp.Warnings)
	}
}

func TestHandler_Remap_UnknownID(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"note":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.Remap(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_Remap_BadID(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.Remap(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_GetMapping(t *testing.T) {
	h, e := newTestHandler()
	res, err := h.svc.Mask(nil, Record{"name": "Jane Doe", "email": "jane@example.com"})
	if err != nil {
		t.Fatalf("Mask: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(res.RecordID.String())

	if err := h.GetMapping(c); err != nil {
		t.Fatalf("GetMapping: %v", err)
	}
	if strings.Contains(rec.Body.String(), "Jane") || strings.Contains(rec.Body.String(), "example.com") {
		t.Fatalf("mapping values leaked: %s", rec.Body.String())
	}
	var info MappingInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.EntryCount != 2 {
		t.Fatalf("entry_count = %d, want 2", info.EntryCount)
	}
}

func TestHandler_DeleteMapping(t *testing.T) {
	h, e := newTestHandler()
	res, err := h.svc.Mask(nil, Record{"name": "Jane Doe"})
	if err != nil {
		t.Fatalf("Mask: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(res.RecordID.String())

	if err := h.DeleteMapping(c); err != nil {
		t.Fatalf("DeleteMapping: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(res.RecordID.String())
	err = h.DeleteMapping(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %v", err)
	}
}
