// Package classify assigns category fields to staged records using the
// prioritized rule set, pattern-derived rules from the auxiliary base, and
// an amount-band fallback.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/fluxo-ledger/fluxo/internal/common"
	"github.com/fluxo-ledger/fluxo/internal/model"
	"github.com/fluxo-ledger/fluxo/internal/service"
	"github.com/shopspring/decimal"
)

// Bucket names the generic category assigned by the amount-band fallback.
type Bucket struct {
	Group       string
	Subgroup    string
	ExpenseType string
}

// Config carries the engine's tunables. The thresholds are policy, not
// contract, so they arrive here from configuration instead of living in the
// algorithm.
type Config struct {
	LargeBucket    Bucket
	SmallBucket    Bucket
	LargeThreshold decimal.Decimal
	SmallThreshold decimal.Decimal
}

// DefaultConfig returns the stock fallback policy.
func DefaultConfig() Config {
	return Config{
		LargeThreshold: decimal.NewFromInt(500),
		SmallThreshold: decimal.NewFromInt(10),
		LargeBucket: Bucket{
			Group:       "Grandes Gastos",
			Subgroup:    "Acima do Limite",
			ExpenseType: "variável",
		},
		SmallBucket: Bucket{
			Group:       "Pequenos Gastos",
			Subgroup:    "Dia a Dia",
			ExpenseType: "variável",
		},
	}
}

// Engine classifies batches of staged records.
type Engine struct {
	rules service.RuleStore
	aux   service.AuxiliaryStore
	cfg   Config
}

// NewEngine creates a classification engine. aux may be nil when no
// auxiliary base is available; the engine then runs on static rules alone.
func NewEngine(rules service.RuleStore, aux service.AuxiliaryStore, cfg Config) *Engine {
	return &Engine{rules: rules, aux: aux, cfg: cfg}
}

// ClassifyBatch assigns category fields to every record, in the stable
// order the batch was staged. The rule set is loaded once per batch; if it
// cannot be loaded the whole batch is aborted untouched so the caller can
// retry safely. Classification itself never fails per record: unclassified
// is a valid terminal state.
func (e *Engine) ClassifyBatch(ctx context.Context, records []model.StagedRecord) error {
	rules, err := e.rules.GetActiveRules(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrRuleLoad, err)
	}

	derived := e.loadDerivedPatterns(ctx)

	for i := range records {
		e.classify(&records[i], rules, derived)
	}

	return nil
}

// loadDerivedPatterns fetches the recurring-merchant patterns computed by
// the rebuilder. The auxiliary base is an enrichment, not part of the rule
// set: a load failure degrades to static rules with a warning.
func (e *Engine) loadDerivedPatterns(ctx context.Context) []model.RecurringPattern {
	if e.aux == nil {
		return nil
	}
	patterns, err := e.aux.GetRecurringPatterns(ctx)
	if err != nil {
		common.LogWarn("auxiliary base unavailable, classifying with static rules only",
			common.Fields{"error": err.Error()})
		return nil
	}
	return patterns
}

func (e *Engine) classify(r *model.StagedRecord, rules []model.ClassificationRule, derived []model.RecurringPattern) {
	assigned := false

	// Rules arrive in ascending priority order; the first rule with any
	// matching pattern wins.
	for i := range rules {
		if rules[i].Matches(r.Description) {
			r.Group = rules[i].Group
			r.Subgroup = rules[i].Subgroup
			r.ExpenseType = rules[i].ExpenseType
			r.ClassificationOrigin = model.OriginRule
			assigned = true
			break
		}
	}

	// Pattern-derived rules rank below every static rule.
	if !assigned {
		stem := model.MerchantStem(r.Description)
		for i := range derived {
			if matchesStem(stem, r.Institution, &derived[i]) {
				r.Group = derived[i].Group
				r.Subgroup = derived[i].Subgroup
				r.ExpenseType = derived[i].ExpenseType
				r.ClassificationOrigin = model.OriginRule
				assigned = true
				break
			}
		}
	}

	if !assigned {
		e.fallback(r)
	}

	// The coarse bucket is derived independently of the category
	// assignment above and is computed for every record.
	r.FlowBucket = model.DeriveFlowBucket(r.Amount, r.SourceType, r.Group)
}

func (e *Engine) fallback(r *model.StagedRecord) {
	abs := r.Amount.Abs()
	switch {
	case abs.GreaterThan(e.cfg.LargeThreshold):
		r.Group = e.cfg.LargeBucket.Group
		r.Subgroup = e.cfg.LargeBucket.Subgroup
		r.ExpenseType = e.cfg.LargeBucket.ExpenseType
		r.ClassificationOrigin = model.OriginAmountFallback
	case abs.LessThan(e.cfg.SmallThreshold):
		r.Group = e.cfg.SmallBucket.Group
		r.Subgroup = e.cfg.SmallBucket.Subgroup
		r.ExpenseType = e.cfg.SmallBucket.ExpenseType
		r.ClassificationOrigin = model.OriginAmountFallback
	default:
		r.Group = ""
		r.Subgroup = ""
		r.ExpenseType = ""
		r.ClassificationOrigin = model.OriginUnclassified
	}
}

func matchesStem(stem, institution string, p *model.RecurringPattern) bool {
	if p.MerchantStem == "" || stem == "" {
		return false
	}
	if p.Institution != "" && !strings.EqualFold(p.Institution, institution) {
		return false
	}
	return strings.Contains(stem, p.MerchantStem)
}
