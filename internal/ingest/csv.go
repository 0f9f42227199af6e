// Package ingest reads the Statement Normalizer's output contract from
// normalized CSV files. Bank-specific statement parsing happens upstream in
// the Normalizer; by the time a file reaches this package its amounts use a
// single canonical decimal representation.
package ingest

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fluxo-ledger/fluxo/internal/common"
	"github.com/fluxo-ledger/fluxo/internal/model"
	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// csvRow mirrors the Normalizer's output columns.
type csvRow struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	SourceType  string `csv:"source_type"`
}

// dateLayouts are the date shapes the Normalizer contract allows: ISO-8601
// or a locale date string.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"02/01/2006",
}

// ReadFile loads a normalized CSV file into the pipeline's input contract,
// preserving row order.
func ReadFile(path string) ([]model.NormalizedRecord, error) {
	f, err := os.Open(path) // #nosec G304 -- user-supplied input file
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var rows []csvRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrParse, path, err)
	}

	records := make([]model.NormalizedRecord, 0, len(rows))
	for i, row := range rows {
		record, convErr := convertRow(row)
		if convErr != nil {
			return nil, fmt.Errorf("%w: %s row %d: %v", common.ErrParse, path, i+1, convErr)
		}
		records = append(records, record)
	}

	return records, nil
}

func convertRow(row csvRow) (model.NormalizedRecord, error) {
	var record model.NormalizedRecord

	date, err := parseDate(strings.TrimSpace(row.Date))
	if err != nil {
		return record, err
	}

	description := strings.TrimSpace(row.Description)
	if description == "" {
		return record, fmt.Errorf("empty description")
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(row.Amount))
	if err != nil {
		return record, fmt.Errorf("invalid amount %q: %w", row.Amount, err)
	}

	record.Date = date
	record.Description = description
	record.Amount = amount
	record.SourceType = strings.TrimSpace(row.SourceType)
	return record, nil
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}
