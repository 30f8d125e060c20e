package httpkit

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"estatebot_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// stepError mirrors the orchestrator's step wrapper: it prefixes the failing
// step name and exposes the cause through Unwrap.
type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string { return "booking step " + e.step + ": " + e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

func handle(t *testing.T, err error) (int, ErrorResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if !HandleError(c, err) {
		t.Fatal("expected the error to be handled")
	}

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rec.Code, body
}

func TestHandleErrorNil(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	if HandleError(c, nil) {
		t.Fatal("nil error must not be handled")
	}
}

func TestHandleErrorDomainKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", apperr.NotFound("appointment not found"), http.StatusNotFound},
		{"validation", apperr.Validation("new appointment time must be in the future"), http.StatusBadRequest},
		{"conflict", apperr.Conflict("timeslot already booked"), http.StatusConflict},
		{"state", apperr.State("a completed viewing cannot be cancelled"), http.StatusConflict},
	}

	for _, tt := range tests {
		status, body := handle(t, tt.err)
		if status != tt.wantStatus {
			t.Fatalf("%s: expected status %d, got %d", tt.name, tt.wantStatus, status)
		}
		if body.Error != tt.err.Error() {
			t.Fatalf("%s: expected message %q, got %q", tt.name, tt.err.Error(), body.Error)
		}
	}
}

func TestHandleErrorRedactsUnavailable(t *testing.T) {
	status, body := handle(t, apperr.Unavailable("calendar returned 503", errors.New("upstream timeout")))
	if status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", status)
	}
	if body.Error != msgUnavailable {
		t.Fatalf("expected redacted message, got %q", body.Error)
	}
}

func TestHandleErrorRedactsInternal(t *testing.T) {
	status, body := handle(t, apperr.Internal("active appointment is missing provider resources"))
	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
	if body.Error != msgInternal {
		t.Fatalf("expected redacted message, got %q", body.Error)
	}
}

func TestHandleErrorUnwrapsStepWrapper(t *testing.T) {
	cause := apperr.Unavailable("calendar returned 503", errors.New("upstream timeout"))
	wrapped := &stepError{step: "calendar_event", err: cause}

	status, body := handle(t, wrapped)
	if status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from the wrapped cause, got %d", status)
	}
	if body.Error != msgUnavailable {
		t.Fatalf("expected redacted message, got %q", body.Error)
	}
	if strings.Contains(body.Error, "calendar_event") || strings.Contains(body.Error, "503") {
		t.Fatalf("internal detail leaked to caller: %q", body.Error)
	}
}

func TestHandleErrorUntypedNeverEchoes(t *testing.T) {
	status, body := handle(t, errors.New("pq: connection refused"))
	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
	if body.Error != msgInternal {
		t.Fatalf("expected redacted message, got %q", body.Error)
	}
	if strings.Contains(body.Error, "connection refused") {
		t.Fatalf("internal detail leaked to caller: %q", body.Error)
	}
}
