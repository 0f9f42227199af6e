package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is a permanent, committed transaction. The unique index on
// ExternalID is what makes exact-duplicate detection authoritative.
type LedgerEntry struct {
	Date                 time.Time
	CreatedAt            time.Time
	ExternalID           string
	Description          string
	Institution          string
	CardLabel            string
	InvoiceMonth         string
	Group                string
	Subgroup             string
	ExpenseType          string
	ClassificationOrigin ClassificationOrigin
	FlowBucket           FlowBucket
	Amount               decimal.Decimal
	ID                   int64
}

// EntryFromStaged builds the ledger row for an accepted staged record,
// preserving the classification already computed during review.
func EntryFromStaged(r StagedRecord) LedgerEntry {
	return LedgerEntry{
		ExternalID:           r.ExternalID,
		Date:                 r.Date,
		Description:          r.Description,
		Amount:               r.Amount,
		Institution:          r.Institution,
		CardLabel:            r.CardLabel,
		InvoiceMonth:         r.InvoiceMonth,
		Group:                r.Group,
		Subgroup:             r.Subgroup,
		ExpenseType:          r.ExpenseType,
		ClassificationOrigin: r.ClassificationOrigin,
		FlowBucket:           r.FlowBucket,
	}
}
