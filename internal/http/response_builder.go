// This file implements the builder for HTMX responses: status, HX-* headers
// and a rendered body.

package http

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"
)

// HX-Trigger event names the client listens for.
const (
	TriggerFormReset     = "form:reset"
	TriggerLedgerChanged = "ledger:changed"
)

type HTMXResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       bytes.Buffer
	headers    map[string]string
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    map[string]string{"Content-Type": "text/html; charset=utf-8"},
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named event with optional data to the HX-Trigger header.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	if data == nil {
		data = struct{}{}
	}
	b.triggers[name] = data
	return b
}

func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger(TriggerFormReset, nil)
}

// TriggerLedgerChanged announces a committed mutation and the resulting version.
func (b *HTMXResponseBuilder) TriggerLedgerChanged(version uint64) *HTMXResponseBuilder {
	return b.Trigger(TriggerLedgerChanged, map[string]uint64{"version": version})
}

// Retarget swaps the response into selector instead of the requesting element's target.
func (b *HTMXResponseBuilder) Retarget(selector, swap string) *HTMXResponseBuilder {
	b.headers["HX-Retarget"] = selector
	if swap != "" {
		b.headers["HX-Reswap"] = swap
	}
	return b
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

// Template appends the rendered template to the body.
func (b *HTMXResponseBuilder) Template(t *template.Template, name string, data any) error {
	return t.ExecuteTemplate(&b.body, name, data)
}

func (b *HTMXResponseBuilder) BodyString(content string) *HTMXResponseBuilder {
	b.body.WriteString(content)
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		if triggerJSON, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if b.body.Len() > 0 {
		_, _ = w.Write(b.body.Bytes())
	}
}

// ErrorResponse creates a standard error response with HTML formatting.
// The message is HTML-escaped for safety.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(statusCode).
		BodyString(`<div class="error" role="alert">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}
