package model

import "time"

// RecurringPattern is a derived rule learned from the ledger: a merchant
// description stem that has resolved to the same category often enough to
// trust for future classification runs.
type RecurringPattern struct {
	UpdatedAt    time.Time
	MerchantStem string
	Institution  string
	Group        string
	Subgroup     string
	ExpenseType  string
	ID           int64
	Occurrences  int
}

// InstallmentChain tracks an open "NN/MM" installment purchase across
// invoice months, keyed by description stem, institution, and total count.
type InstallmentChain struct {
	FirstDate         time.Time
	LastDate          time.Time
	DescriptionStem   string
	Institution       string
	ID                int64
	TotalInstallments int
	SeenInstallments  int
}

// Complete reports whether every installment of the chain has appeared in
// the ledger.
func (c *InstallmentChain) Complete() bool {
	return c.TotalInstallments > 0 && c.SeenInstallments >= c.TotalInstallments
}
