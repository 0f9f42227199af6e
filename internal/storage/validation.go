package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fluxo-ledger/fluxo/internal/model"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string parameter cannot be empty")
	ErrNilParameter  = errors.New("parameter cannot be nil")
	ErrInvalidRecord = errors.New("invalid staged record")
	ErrInvalidEntry  = errors.New("invalid ledger entry")
	ErrInvalidRule   = errors.New("invalid classification rule")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateStagedRecords validates a slice of staged records.
func validateStagedRecords(records []model.StagedRecord) error {
	if records == nil {
		return fmt.Errorf("%w: records", ErrNilParameter)
	}
	for i := range records {
		if err := validateStagedRecord(&records[i]); err != nil {
			return fmt.Errorf("record at index %d: %w", i, err)
		}
	}
	return nil
}

func validateStagedRecord(r *model.StagedRecord) error {
	if r.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.Institution) == "" {
		return fmt.Errorf("%w: missing institution", ErrInvalidRecord)
	}
	return nil
}

func validateLedgerEntry(e *model.LedgerEntry) error {
	if e == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if strings.TrimSpace(e.ExternalID) == "" {
		return fmt.Errorf("%w: missing external id", ErrInvalidEntry)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.Description) == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidEntry)
	}
	return nil
}

func validateRule(r *model.ClassificationRule) error {
	if r == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if len(r.Patterns) == 0 {
		return fmt.Errorf("%w: no patterns", ErrInvalidRule)
	}
	if strings.TrimSpace(r.Group) == "" {
		return fmt.Errorf("%w: missing group", ErrInvalidRule)
	}
	return nil
}
