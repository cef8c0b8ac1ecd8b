package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"ledger/internal/events"
	"ledger/internal/log"
	ports "ledger/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Cells are stored as typed. Text such as "=SUM(A1)" stays literal.
const valueInputOption = "RAW"

// Header is the first row of the activity sheet; rows follow the same column order.
var Header = []any{"Timestamp", "Event", "Transaction", "Description", "Type", "Amount", "Created", "Event ID"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

var _ ports.ActivityWriter = (*Client)(nil)

// Config selects the spreadsheet and the service account used to write to it.
// CredentialsJSON wins over CredentialsFile when both are set.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Ledger"
	}

	logger = logger.WithComponent(log.ComponentSheets)
	credentials, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", spreadsheetID,
		"sheet", sheetName)

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
	}, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendActivity appends the event below the last row of the sheet and
// returns the updated A1 range.
func (c *Client) AppendActivity(ctx context.Context, e *events.Event) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	row, err := activityRow(e)
	if err != nil {
		return "", err
	}

	rng := fmt.Sprintf("%s!A:H", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Activity row appended",
		log.FieldEventID, e.EventID.String(),
		log.FieldTxID, e.ID,
		"range", ref)
	return ref, nil
}

// activityRow lays out an event in Header order. Amount is the unsigned
// decimal; the Type column carries the direction.
func activityRow(e *events.Event) ([]any, error) {
	tx, err := e.Transaction()
	if err != nil {
		return nil, err
	}
	created := ""
	if !tx.CreatedAt.IsZero() {
		created = tx.CreatedAt.UTC().Format(time.RFC3339)
	}
	return []any{
		e.Timestamp.UTC().Format(time.RFC3339),
		string(e.Type),
		tx.ID,
		tx.Text,
		string(tx.Kind),
		tx.Amount.String(),
		created,
		e.EventID.String(),
	}, nil
}
