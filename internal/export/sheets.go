package export

import (
	"context"
	"fmt"
	"log/slog"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bilancio/internal/core"
)

// ReviewAppender writes a weekly review somewhere durable.
type ReviewAppender interface {
	AppendReview(ctx context.Context, review core.WeeklyReview) error
}

// SheetsExporter appends weekly reviews as rows to a Google Sheet, one
// row per category plus a total row.
type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ ReviewAppender = (*SheetsExporter)(nil)

// NewSheetsExporter builds an exporter from service-account credentials.
func NewSheetsExporter(ctx context.Context, spreadsheetID, sheetName, credentialsFile string) (*SheetsExporter, error) {
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsFile(credentialsFile),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// AppendReview appends the review to the sheet. Row layout:
// start, end, category key, amount. The total row uses "TOTAL" as key.
func (e *SheetsExporter) AppendReview(ctx context.Context, review core.WeeklyReview) error {
	var rows [][]any
	for _, ct := range review.ByCategory {
		rows = append(rows, []any{
			review.StartDate.String(),
			review.EndDate.String(),
			ct.CategoryKey,
			ct.Total.Decimal(),
		})
	}
	rows = append(rows, []any{
		review.StartDate.String(),
		review.EndDate.String(),
		"TOTAL",
		review.Total.Decimal(),
	})

	vr := &gsheet.ValueRange{Values: rows}
	_, err := e.svc.Spreadsheets.Values.
		Append(e.spreadsheetID, e.sheetName+"!A:D", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append review rows: %w", err)
	}

	slog.InfoContext(ctx, "Weekly review exported",
		"spreadsheet_id", e.spreadsheetID,
		"sheet", e.sheetName,
		"start", review.StartDate,
		"end", review.EndDate,
		"rows", len(rows))
	return nil
}
