package http

import (
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusOK).
		BodyString("test").
		Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "test" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "test")
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerFormReset().
		TriggerLedgerChanged(4).
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if trigger == "" {
		t.Fatal("HX-Trigger header not set")
	}

	for _, part := range []string{`"form:reset":{}`, `"ledger:changed"`, `"version":4`} {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}
}

func TestHTMXResponseBuilder_NoTriggerHeaderWhenEmpty(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().Write(w)
	if _, ok := w.Header()["Hx-Trigger"]; ok {
		t.Error("HX-Trigger should not be set without triggers")
	}
}

func TestHTMXResponseBuilder_Retarget(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusUnprocessableEntity).
		Retarget("#expenseForm", "outerHTML").
		Write(w)

	if got := w.Header().Get("HX-Retarget"); got != "#expenseForm" {
		t.Errorf("HX-Retarget = %q", got)
	}
	if got := w.Header().Get("HX-Reswap"); got != "outerHTML" {
		t.Errorf("HX-Reswap = %q", got)
	}
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Status code = %d", w.Code)
	}
}

func TestHTMXResponseBuilder_CustomHeader(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Header("X-Custom", "value").
		Status(http.StatusCreated).
		Write(w)

	if w.Header().Get("X-Custom") != "value" {
		t.Errorf("Custom header not set")
	}
	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestHTMXResponseBuilder_TemplatesAppend(t *testing.T) {
	tmpl := template.Must(template.New("").Parse(`{{define "a"}}<p>{{.}}</p>{{end}}{{define "b"}}<i>{{.}}</i>{{end}}`))
	resp := NewHTMXResponse()
	if err := resp.Template(tmpl, "a", "one"); err != nil {
		t.Fatal(err)
	}
	if err := resp.Template(tmpl, "b", "<two>"); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	resp.Write(w)
	if got, want := w.Body.String(), "<p>one</p><i>&lt;two&gt;</i>"; got != want {
		t.Errorf("Body = %q, want %q", got, want)
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{
			name:       "bad request",
			builder:    BadRequestError("Invalid input"),
			wantStatus: http.StatusBadRequest,
			wantBody:   `<div class="error" role="alert">Invalid input</div>`,
		},
		{
			name:       "internal server error",
			builder:    InternalServerError("Something broke"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `<div class="error" role="alert">Something broke</div>`,
		},
		{
			name:       "too many requests",
			builder:    ErrorResponse(http.StatusTooManyRequests, "Slow down"),
			wantStatus: http.StatusTooManyRequests,
			wantBody:   `<div class="error" role="alert">Slow down</div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestErrorResponse_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()

	BadRequestError("<script>alert('xss')</script>").Write(w)

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("Error response did not escape HTML")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("Error response did not properly escape HTML entities")
	}
}
