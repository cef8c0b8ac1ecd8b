// This file implements parsing of submitted transactions from HTMX forms or
// JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

const maxBodyBytes = 64 << 10

var (
	errBodyTooLarge = errors.New("request body too large")
	errInvalidID    = errors.New("invalid transaction id")
	errTrailingData = errors.New("unexpected data after JSON body")
)

// Form field names, shared with web/templates/form.html.
const (
	fieldText   = "transactionText"
	fieldAmount = "transactionAmount"
	fieldKind   = "kind"
	fieldSort   = "sort"
)

// RequestBodyParser reads a request body once and serves values from it
// whether it was sent as JSON or form-encoded.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse decodes the body as JSON when it looks like a JSON object, otherwise as a form.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		// Numbers stay as written so amounts keep every digit.
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		data := make(map[string]any)
		if err := dec.Decode(&data); err != nil {
			p.err = err
			return err
		}
		if _, err := dec.Token(); err != io.EOF {
			p.err = errTrailingData
			return p.err
		}
		p.jsonData = data
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns the first present key, sanitized.
func (p *RequestBodyParser) Get(keys ...string) string {
	for _, key := range keys {
		if p.jsonData != nil {
			if val, ok := p.jsonData[key]; ok {
				return sanitizeInput(stringValue(val))
			}
		}
		if p.formData != nil && p.formData.Has(key) {
			return sanitizeInput(p.formData.Get(key))
		}
	}
	return ""
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseSubmission maps a parsed body to a ledger input. JSON clients may use
// text/amount/kind; the HTML form posts transactionText/transactionAmount and
// the clicked button's kind value. An unknown kind still returns the typed
// text and amount along with the error.
func ParseSubmission(p *RequestBodyParser) (ledger.Input, error) {
	in := ledger.Input{
		Text:   p.Get(fieldText, "text"),
		Amount: p.Get(fieldAmount, "amount"),
	}
	isEarning, err := parseKind(p.Get(fieldKind, "type"))
	if err != nil {
		return in, err
	}
	in.IsEarning = isEarning
	return in, nil
}

// parseKind accepts the button values and the stored kind names; a missing
// kind counts as an expense.
func parseKind(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "earning", "income", string(core.Credit):
		return true, nil
	case "", "expense", string(core.Debit):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", core.ErrInvalidKind, v)
	}
}

// parseSort reads the sort option from the query string, falling back to the body.
func parseSort(r *http.Request, p *RequestBodyParser) core.SortOption {
	if v := r.URL.Query().Get(fieldSort); v != "" {
		return core.ParseSortOption(v)
	}
	if p != nil {
		return core.ParseSortOption(p.Get(fieldSort))
	}
	return core.SortNone
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidID, r.PathValue("id"))
	}
	return id, nil
}

// sanitizeInput removes control characters other than tab/newline/CR and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
