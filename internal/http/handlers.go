package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/log"
)

const (
	msgInvalidAmount = "Please enter a valid non-negative amount"
	msgStaleEdit     = "The transaction you were editing no longer exists"
	msgNotFound      = "Transaction not found"
)

type formData struct {
	Editing bool
	ID      int64
	Text    string
	Amount  string
	Error   string
	OOB     bool
}

type ledgerData struct {
	core.View
	Notice string
}

// idleForm is the empty entry form, swapped out-of-band next to a ledger partial.
func idleForm(errMsg string) *formData {
	return &formData{Error: errMsg, OOB: true}
}

func editForm(tx core.Transaction) formData {
	return formData{Editing: true, ID: tx.ID, Text: tx.Text, Amount: tx.Amount.String()}
}

// view returns the rendered ledger for opt, reusing a cached render of the same version.
func (s *Server) view(ctx context.Context, opt core.SortOption) (core.View, error) {
	key := fmt.Sprintf("%d:%s", s.ledger.Version(), opt)
	if v, ok := s.views.Get(key); ok {
		return v, nil
	}
	v, version, err := s.ledger.Render(ctx, opt)
	if err != nil {
		return core.View{}, err
	}
	s.views.Set(fmt.Sprintf("%d:%s", version, opt), v)
	return v, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())
	opt := parseSort(r, nil)

	v, err := s.view(r.Context(), opt)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	form := formData{}
	if st := s.ledger.EditState(); st.Editing {
		if tx, ok, err := s.ledger.Lookup(r.Context(), st.ID); err == nil && ok {
			form = editForm(tx)
		}
	}

	data := struct {
		Form        formData
		Ledger      ledgerData
		SortOptions []core.SortOption
	}{
		Form:        form,
		Ledger:      ledgerData{View: v},
		SortOptions: core.SortOptions,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		logger.ErrorContext(r.Context(), "Index template execution failed",
			log.FieldError, err,
			log.FieldComponent, log.ComponentTemplate,
			"template", "index.html")
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}

// handleLedgerPartial re-renders the ledger for the selected sort option.
func (s *Server) handleLedgerPartial(w http.ResponseWriter, r *http.Request) {
	v, err := s.view(r.Context(), parseSort(r, nil))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.writeLedger(w, r, NewHTMXResponse(), ledgerData{View: v}, nil)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		logger.WarnContext(r.Context(), "Unreadable submission",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeValidation)
		BadRequestError("Invalid request format").Write(w)
		return
	}
	opt := parseSort(r, p)

	in, err := ParseSubmission(p)
	if err != nil {
		s.rejectSubmission(w, r, p, in, err.Error())
		return
	}

	res, err := s.ledger.Submit(r.Context(), in)
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		s.metrics.invalidAmount.Add(1)
		s.rejectSubmission(w, r, p, in, msgInvalidAmount)
		return
	case errors.Is(err, ledger.ErrNotFound):
		s.metrics.notFound.Add(1)
		if p.IsJSON() {
			writeJSON(w, http.StatusNotFound, apiError{Error: msgStaleEdit})
			return
		}
		v, rerr := s.view(r.Context(), opt)
		if rerr != nil {
			s.renderError(w, r, rerr)
			return
		}
		s.writeLedger(w, r, NewHTMXResponse().Status(http.StatusNotFound),
			ledgerData{View: v, Notice: msgStaleEdit}, idleForm(""))
		return
	case err != nil:
		s.renderError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Updated {
		s.metrics.updated.Add(1)
		status = http.StatusOK
	} else {
		s.metrics.created.Add(1)
	}

	if p.IsJSON() {
		writeJSON(w, status, newAPITransaction(res.Transaction))
		return
	}

	v, err := s.view(r.Context(), opt)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	resp := NewHTMXResponse().Status(status).TriggerFormReset().TriggerLedgerChanged(s.ledger.Version())
	s.writeLedger(w, r, resp, ledgerData{View: v}, idleForm(""))
}

// rejectSubmission answers 422 and re-renders the form with the submitted
// values so nothing typed is lost.
func (s *Server) rejectSubmission(w http.ResponseWriter, r *http.Request, p *RequestBodyParser, in ledger.Input, msg string) {
	if p.IsJSON() {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Error: msg})
		return
	}
	st := s.ledger.EditState()
	form := formData{Editing: st.Editing, ID: st.ID, Text: in.Text, Amount: in.Amount, Error: msg}

	resp := NewHTMXResponse().
		Status(http.StatusUnprocessableEntity).
		Retarget("#expenseForm", "outerHTML")
	if err := resp.Template(s.templates, "form", form); err != nil {
		s.renderError(w, r, err)
		return
	}
	resp.Write(w)
}

// handleBeginEdit answers with the form pre-filled with the selected transaction.
func (s *Server) handleBeginEdit(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	tx, err := s.ledger.BeginEdit(r.Context(), id)
	if errors.Is(err, ledger.ErrNotFound) {
		s.metrics.notFound.Add(1)
		s.writeForm(w, r, http.StatusNotFound, formData{Error: msgNotFound})
		return
	}
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.writeForm(w, r, http.StatusOK, editForm(tx))
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	s.ledger.CancelEdit()
	s.writeForm(w, r, http.StatusOK, formData{})
}

// handleDelete always re-renders the ledger; deleting an unknown id changes nothing.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	p := NewRequestBodyParser(r)
	_ = p.Parse()
	opt := parseSort(r, p)

	wasEditing := s.ledger.EditState()
	resp := NewHTMXResponse()
	var form *formData

	err = s.ledger.Delete(r.Context(), id)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		s.metrics.notFound.Add(1)
	case err != nil:
		s.renderError(w, r, err)
		return
	default:
		s.metrics.deleted.Add(1)
		resp.TriggerLedgerChanged(s.ledger.Version())
		if wasEditing.Editing && wasEditing.ID == id {
			form = idleForm("")
		}
	}

	v, err := s.view(r.Context(), opt)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.writeLedger(w, r, resp, ledgerData{View: v}, form)
}

type apiError struct {
	Error string `json:"error"`
}

type apiTransaction struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Amount    string    `json:"amount"`
	Kind      core.Kind `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

func newAPITransaction(tx core.Transaction) apiTransaction {
	return apiTransaction{ID: tx.ID, Text: tx.Text, Amount: tx.Amount.String(), Kind: tx.Kind, CreatedAt: tx.CreatedAt}
}

type apiRow struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Amount    string    `json:"amount"`
	Display   string    `json:"display"`
	Kind      core.Kind `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

type apiLedger struct {
	Sort     core.SortOption `json:"sort"`
	Rows     []apiRow        `json:"rows"`
	Earnings string          `json:"earnings"`
	Expenses string          `json:"expenses"`
	Net      string          `json:"net"`
	Totals   struct {
		Earnings string `json:"earnings"`
		Expenses string `json:"expenses"`
		Net      string `json:"net"`
	} `json:"totals"`
	Version uint64 `json:"version"`
	Editing *int64 `json:"editing,omitempty"`
}

// handleAPILedger serves the same projection as the HTML ledger, as JSON.
func (s *Server) handleAPILedger(w http.ResponseWriter, r *http.Request) {
	opt := parseSort(r, nil)
	v, version, err := s.ledger.Render(r.Context(), opt)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Render failed", log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "render failed"})
		return
	}

	out := apiLedger{
		Sort:     v.Sort,
		Rows:     make([]apiRow, 0, len(v.Rows)),
		Earnings: v.Earnings,
		Expenses: v.Expenses,
		Net:      v.Net,
		Version:  version,
	}
	out.Totals.Earnings = v.Totals.Earnings.String()
	out.Totals.Expenses = v.Totals.Expenses.String()
	out.Totals.Net = v.Totals.Net.String()

	for _, row := range v.Rows {
		out.Rows = append(out.Rows, apiRow{
			ID:        row.ID,
			Text:      row.Text,
			Amount:    row.Value.String(),
			Display:   row.Amount,
			Kind:      row.Kind,
			CreatedAt: row.CreatedAt,
		})
	}
	if st := s.ledger.EditState(); st.Editing {
		id := st.ID
		out.Editing = &id
	}
	writeJSON(w, http.StatusOK, out)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.started).String(),
	})
}

// handleReady checks templates and the backing store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.ready == nil {
		checks["store"] = "ok"
	} else if err := s.ready(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.clientIP.ClientIP(r),
		log.FieldComponent, log.ComponentRateLimit)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests, slow down").Write(w)
}

// writeLedger renders the ledger partial, followed by an out-of-band form when given.
func (s *Server) writeLedger(w http.ResponseWriter, r *http.Request, resp *HTMXResponseBuilder, data ledgerData, form *formData) {
	if err := resp.Template(s.templates, "ledger", data); err != nil {
		s.renderError(w, r, err)
		return
	}
	if form != nil {
		if err := resp.Template(s.templates, "form", form); err != nil {
			s.renderError(w, r, err)
			return
		}
	}
	resp.Write(w)
}

func (s *Server) writeForm(w http.ResponseWriter, r *http.Request, status int, form formData) {
	resp := NewHTMXResponse().Status(status)
	if err := resp.Template(s.templates, "form", form); err != nil {
		s.renderError(w, r, err)
		return
	}
	resp.Write(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
		log.FieldError, err,
		log.FieldPath, r.URL.Path,
		log.FieldErrorType, log.ErrorTypeInternal)
	InternalServerError("Something went wrong").Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
