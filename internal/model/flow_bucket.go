package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FlowBucket is the coarse direction of a transaction, derived independently
// of the group/subgroup assignment.
type FlowBucket string

// Flow bucket constants.
const (
	BucketIncome     FlowBucket = "income"
	BucketExpense    FlowBucket = "expense"
	BucketInvestment FlowBucket = "investment"
)

// DeriveFlowBucket computes a record's coarse bucket. Positive raw flow or a
// source-flagged income type means income; a group literally named
// "investments" means investment; everything else is an expense. The group
// comparison happens even for rule-matched records, so an "investments" rule
// never gets short-circuited into the expense bucket.
func DeriveFlowBucket(amount decimal.Decimal, sourceType, group string) FlowBucket {
	if amount.IsPositive() || strings.EqualFold(sourceType, "income") {
		return BucketIncome
	}
	if strings.EqualFold(group, "investments") {
		return BucketInvestment
	}
	return BucketExpense
}
