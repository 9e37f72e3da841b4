package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var _ Recorder = (*SheetsRecorder)(nil)

// SheetsRecorder appends one row per entry to a Google Sheets tab.
type SheetsRecorder struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
}

type SheetsConfig struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// NewSheetsRecorder authenticates with a service account.
func NewSheetsRecorder(ctx context.Context, cfg SheetsConfig, opts ...goption.ClientOption) (*SheetsRecorder, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Audit"
	}

	if len(opts) == 0 {
		creds, err := serviceAccountCredentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Audit sheet recorder ready", "spreadsheet_id", cfg.SpreadsheetID, "sheet", sheet)
	return &SheetsRecorder{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheet: sheet}, nil
}

func serviceAccountCredentials(cfg SheetsConfig) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		return []byte(cfg.ServiceAccountJSON), nil
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

func (r *SheetsRecorder) Record(ctx context.Context, e Entry) error {
	rng := fmt.Sprintf("%s!A:I", r.sheet)
	vr := &gsheet.ValueRange{Values: [][]any{e.Row()}}
	_, err := r.svc.Spreadsheets.Values.Append(r.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append audit row to %s: %w", r.sheet, err)
	}
	return nil
}
