package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mgnrega/internal/core"
	"mgnrega/internal/services"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusOK).
		BodyHTML([]byte("<p>ok</p>")).
		Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "<p>ok</p>" {
		t.Errorf("Body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerDistrictSelected(7, 1).
		Trigger("report:loaded", true).
		Header("HX-Push-Url", "false").
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	for _, part := range []string{`"district:selected"`, `"district_id":7`, `"state_id":1`, `"report:loaded":true`} {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}
	if w.Header().Get("HX-Push-Url") != "false" {
		t.Error("custom header not set")
	}
}

func TestErrorResponse_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()

	ErrorResponse(http.StatusBadRequest, "<script>alert('xss')</script>").Write(w)

	body := w.Body.String()
	if w.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d", w.Code)
	}
	if strings.Contains(body, "<script>") {
		t.Error("Error response did not escape HTML")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("Error response did not properly escape HTML entities")
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusNotFound, "No metrics found for district 3")

	if w.Code != http.StatusNotFound {
		t.Errorf("Status code = %d", w.Code)
	}
	if got := w.Body.String(); !strings.Contains(got, `{"detail":"No metrics found for district 3"}`) {
		t.Errorf("Body = %q", got)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Error("missing JSON content type")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("district 4: %w", core.ErrNotFound), http.StatusNotFound},
		{core.ErrInvalidCoordinates, http.StatusBadRequest},
		{core.ErrInvalidPeriod, http.StatusBadRequest},
		{services.ErrInvalidInput, http.StatusBadRequest},
		{&paramError{name: "lat", reason: "is required"}, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
