// Package model defines the core domain models for the statement-import pipeline.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DuplicateStatus indicates the outcome of duplicate detection for a staged record.
type DuplicateStatus string

// Duplicate status constants.
const (
	DuplicateUnknown  DuplicateStatus = "unknown"
	DuplicateNone     DuplicateStatus = "none"
	DuplicateExact    DuplicateStatus = "exact"
	DuplicateProbable DuplicateStatus = "probable"
)

// ClassificationOrigin records which tier of the classification engine
// produced a record's category fields.
type ClassificationOrigin string

// Classification origin constants.
const (
	OriginRule           ClassificationOrigin = "rule"
	OriginAmountFallback ClassificationOrigin = "amount_fallback"
	OriginUnclassified   ClassificationOrigin = "unclassified"
)

// NormalizedRecord is one row of the Statement Normalizer's output contract.
// Amount sign and decimal separators are already canonical by the time a
// record reaches this pipeline.
type NormalizedRecord struct {
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	SourceType  string          `json:"source_type,omitempty"` // optional hint, e.g. "income"
	Amount      decimal.Decimal `json:"amount"`
}

// SessionMeta carries the upload-level metadata shared by every record in a
// staging session.
type SessionMeta struct {
	Institution    string `json:"institution"`
	CardLabel      string `json:"card_label,omitempty"`
	InvoiceMonth   string `json:"invoice_month"` // "YYYY-MM"
	SourceFilename string `json:"source_filename,omitempty"`
}

/// StagedRecord is one transaction pending review: staged, then annotated in
// place by the classification engine and the duplicate detector, and finally
// either committed to the ledger or discarded with its session.
type StagedRecord struct {
	Date                 time.Time            `json:"date"`
	SessionID            string               `json:"session_id"`
	ExternalID           string               `json:"external_id"`
	Description          string               `json:"description"`
	Institution          string               `json:"institution"`
	CardLabel            string               `json:"card_label,omitempty"`
	InvoiceMonth         string               `json:"invoice_month"`
	SourceType           string               `json:"source_type,omitempty"`
	Group                string               `json:"group,omitempty"`
	Subgroup             string               `json:"subgroup,omitempty"`
	ExpenseType          string               `json:"expense_type,omitempty"`
	ClassificationOrigin ClassificationOrigin `json:"classification_origin,omitempty"`
	FlowBucket           FlowBucket           `json:"flow_bucket,omitempty"`
	DuplicateStatus      DuplicateStatus      `json:"duplicate_status"`
	Amount               decimal.Decimal      `json:"amount"`
	DuplicateSimilarity  float64              `json:"duplicate_similarity"`
	DuplicateOf          *int64               `json:"duplicate_of,omitempty"`
	ID                   int64                `json:"id"`
	Position             int                  `json:"-"`
}

// GenerateExternalID derives the deterministic identifier used for
// exact-duplicate lookups against the ledger. Two uploads of the same real
// transaction from the same institution produce the same id.
func (r *StagedRecord) GenerateExternalID() string {
	data := fmt.Sprintf("%s:%s:%s:%s",
		r.Date.Format("2006-01-02"),
		r.Amount.StringFixed(2),
		r.Description,
		r.Institution)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Classified reports whether the record has been through the classification
// engine, regardless of which tier handled it.
func (r *StagedRecord) Classified() bool {
	return r.ClassificationOrigin != ""
}
