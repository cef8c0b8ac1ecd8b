package google

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/events"
	"ledger/internal/log"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{CredentialsJSON: "{}"}, log.NewNop())
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"}, log.NewNop())
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(path, []byte(`{"type":"file"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{name: "inline json wins", cfg: Config{CredentialsJSON: `{"type":"inline"}`, CredentialsFile: path}, want: `{"type":"inline"}`},
		{name: "file", cfg: Config{CredentialsFile: path}, want: `{"type":"file"}`},
		{name: "unreadable file", cfg: Config{CredentialsFile: filepath.Join(dir, "missing.json")}, wantErr: true},
		{name: "nothing set", cfg: Config{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadCredentials(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != tt.want {
				t.Errorf("credentials = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestActivityRow(t *testing.T) {
	id := uuid.New()
	e := &events.Event{
		EventID:   id,
		Type:      core.ChangeUpdated,
		ID:        4,
		Text:      "Rent",
		Amount:    "1500",
		Kind:      core.Debit,
		CreatedAt: time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC),
		Timestamp: time.Date(2025, 2, 3, 9, 30, 0, 0, time.UTC),
	}

	row, err := activityRow(e)
	if err != nil {
		t.Fatalf("activityRow: %v", err)
	}
	if len(row) != len(Header) {
		t.Fatalf("row has %d columns, header has %d", len(row), len(Header))
	}

	want := []any{"2025-02-03T09:30:00Z", "updated", int64(4), "Rent", "debit", "1500", "2025-02-01T08:00:00Z", id.String()}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("column %v = %v, want %v", Header[i], row[i], want[i])
		}
	}
}

func TestAppendActivity_Validation(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetName: "Ledger", logger: log.NewNop()} // svc is nil

	_, err := c.AppendActivity(context.Background(), &events.Event{})
	if !errors.Is(err, events.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}

	valid := &events.Event{EventID: uuid.New(), Type: core.ChangeCreated, ID: 1, Amount: "1", Kind: core.Credit}
	if _, err := c.AppendActivity(context.Background(), valid); err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected uninitialized service error, got %v", err)
	}
}

func TestActivityRowKeepsFormulaLikeTextLiteral(t *testing.T) {
	e := &events.Event{
		EventID:   uuid.New(),
		Type:      core.ChangeCreated,
		ID:        9,
		Text:      "=IMPORTXML(\"http://example.com\")",
		Amount:    "12.50",
		Kind:      core.Credit,
		Timestamp: time.Date(2025, 2, 3, 9, 30, 0, 0, time.UTC),
	}

	row, err := activityRow(e)
	if err != nil {
		t.Fatalf("activityRow: %v", err)
	}
	if row[3] != e.Text {
		t.Errorf("text = %v, want %q", row[3], e.Text)
	}
	if amount, _ := row[5].(string); amount != "12.5" || strings.HasPrefix(amount, "+") || strings.HasPrefix(amount, "-") {
		t.Errorf("amount = %v, want unsigned 12.5", row[5])
	}
	if row[6] != "" {
		t.Errorf("created = %v, want empty for zero time", row[6])
	}
	if valueInputOption != "RAW" {
		t.Errorf("valueInputOption = %q, cells must not be parsed as formulas", valueInputOption)
	}
}
