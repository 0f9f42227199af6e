// Package rebuild recomputes the auxiliary lookup base (recurring-merchant
// patterns and installment chains) from the permanent ledger. It runs off
// the commit path and its failures are observability warnings, never user
// flow errors.
package rebuild

import (
	"context"
	"fmt"
	"sort"

	"github.com/fluxo-ledger/fluxo/internal/model"
	"github.com/fluxo-ledger/fluxo/internal/service"
)

// MinOccurrences is how many unanimous sightings a merchant stem needs
// before it becomes a derived classification pattern.
const MinOccurrences = 3

// Scope restricts a rebuild to one institution's slice of the ledger. The
// zero value rebuilds everything.
type Scope struct {
	Institution string
}

// Rebuilder derives the auxiliary base from the ledger.
type Rebuilder struct {
	ledger service.LedgerStore
	aux    service.AuxiliaryStore
}

// NewRebuilder creates a rebuilder.
func NewRebuilder(ledger service.LedgerStore, aux service.AuxiliaryStore) *Rebuilder {
	return &Rebuilder{ledger: ledger, aux: aux}
}

// Rebuild recomputes the scope's auxiliary base from the full ledger and
// swaps it in atomically. Safe to re-run: the same ledger always produces
// the same base.
func (b *Rebuilder) Rebuild(ctx context.Context, scope Scope) error {
	entries, err := b.ledger.ListEntries(ctx, scope.Institution)
	if err != nil {
		return fmt.Errorf("failed to read ledger for rebuild: %w", err)
	}

	patterns := derivePatterns(entries)
	chains := deriveChains(entries)

	if err := b.aux.ReplaceAuxiliaryBase(ctx, scope.Institution, patterns, chains); err != nil {
		return fmt.Errorf("failed to store auxiliary base: %w", err)
	}

	return nil
}

// derivePatterns finds merchant stems that resolved to one category often
// enough to trust. A stem that ever resolved to a different category is
// disqualified; guessing between categories is the engine's job, not ours.
func derivePatterns(entries []model.LedgerEntry) []model.RecurringPattern {
	type bucket struct {
		group       string
		subgroup    string
		expenseType string
		count       int
		conflicted  bool
	}

	buckets := make(map[[2]string]*bucket)
	for i := range entries {
		e := &entries[i]
		if e.Group == "" || e.ClassificationOrigin == model.OriginUnclassified {
			continue
		}
		stem := model.MerchantStem(e.Description)
		if stem == "" {
			continue
		}

		key := [2]string{stem, e.Institution}
		b, ok := buckets[key]
		if !ok {
			buckets[key] = &bucket{
				group:       e.Group,
				subgroup:    e.Subgroup,
				expenseType: e.ExpenseType,
				count:       1,
			}
			continue
		}
		if b.group != e.Group || b.subgroup != e.Subgroup || b.expenseType != e.ExpenseType {
			b.conflicted = true
		}
		b.count++
	}

	var patterns []model.RecurringPattern
	for key, b := range buckets {
		if b.conflicted || b.count < MinOccurrences {
			continue
		}
		patterns = append(patterns, model.RecurringPattern{
			MerchantStem: key[0],
			Institution:  key[1],
			Group:        b.group,
			Subgroup:     b.subgroup,
			ExpenseType:  b.expenseType,
			Occurrences:  b.count,
		})
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].MerchantStem != patterns[j].MerchantStem {
			return patterns[i].MerchantStem < patterns[j].MerchantStem
		}
		return patterns[i].Institution < patterns[j].Institution
	})

	return patterns
}

// deriveChains tracks open installment purchases by their "NN/MM" markers.
func deriveChains(entries []model.LedgerEntry) []model.InstallmentChain {
	type chainKey struct {
		stem        string
		institution string
		total       int
	}
	type chainState struct {
		chain model.InstallmentChain
		seen  map[int]bool
	}

	states := make(map[chainKey]*chainState)
	for i := range entries {
		e := &entries[i]
		current, total, ok := model.ParseInstallment(e.Description)
		if !ok {
			continue
		}
		stem := model.MerchantStem(e.Description)
		if stem == "" {
			continue
		}

		key := chainKey{stem: stem, institution: e.Institution, total: total}
		st, exists := states[key]
		if !exists {
			st = &chainState{
				chain: model.InstallmentChain{
					DescriptionStem:   stem,
					Institution:       e.Institution,
					TotalInstallments: total,
					FirstDate:         e.Date,
					LastDate:          e.Date,
				},
				seen: make(map[int]bool),
			}
			states[key] = st
		}
		st.seen[current] = true
		if e.Date.Before(st.chain.FirstDate) {
			st.chain.FirstDate = e.Date
		}
		if e.Date.After(st.chain.LastDate) {
			st.chain.LastDate = e.Date
		}
	}

	var chains []model.InstallmentChain
	for _, st := range states {
		st.chain.SeenInstallments = len(st.seen)
		chains = append(chains, st.chain)
	}

	sort.Slice(chains, func(i, j int) bool {
		if chains[i].DescriptionStem != chains[j].DescriptionStem {
			return chains[i].DescriptionStem < chains[j].DescriptionStem
		}
		if chains[i].Institution != chains[j].Institution {
			return chains[i].Institution < chains[j].Institution
		}
		return chains[i].TotalInstallments < chains[j].TotalInstallments
	})

	return chains
}
