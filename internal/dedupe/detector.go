// Package dedupe flags staged records that already exist in the permanent
// ledger, first by exact external-id lookup and then by fuzzy scoring over
// a tightly bounded candidate set.
package dedupe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fluxo-ledger/fluxo/internal/model"
	"github.com/fluxo-ledger/fluxo/internal/service"
	"github.com/shopspring/decimal"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Config carries the detector's tunables. The cutoff is policy, so it is a
// configuration input rather than a literal in the algorithm.
type Config struct {
	AmountTolerance     decimal.Decimal
	SimilarityThreshold float64
	DateWindow          time.Duration
}

// DefaultConfig returns the stock detection policy: one currency unit cent
// of amount drift, a seven-day date window, and a 0.85 similarity cutoff.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.85,
		DateWindow:          7 * 24 * time.Hour,
		AmountTolerance:     decimal.NewFromFloat(0.01),
	}
}

// Detector annotates staged records with their duplicate status. It reads
// the ledger and never writes to it.
type Detector struct {
	ledger service.LedgerStore
	cfg    Config
}

// NewDetector creates a duplicate detector.
func NewDetector(ledger service.LedgerStore, cfg Config) *Detector {
	return &Detector{ledger: ledger, cfg: cfg}
}

// DetectBatch runs both phases over the batch in its stable staged order.
// Ledger access is two round trips for the whole batch: one keyed fetch for
// the exact phase and one bounded window query for the fuzzy phase.
func (d *Detector) DetectBatch(ctx context.Context, records []model.StagedRecord) error {
	if len(records) == 0 {
		return nil
	}

	externalIDs := make([]string, len(records))
	for i := range records {
		if records[i].ExternalID == "" {
			records[i].ExternalID = records[i].GenerateExternalID()
		}
		externalIDs[i] = records[i].ExternalID
	}

	exact, err := d.ledger.GetEntriesByExternalIDs(ctx, externalIDs)
	if err != nil {
		return fmt.Errorf("exact duplicate lookup failed: %w", err)
	}

	candidates, err := d.fetchCandidates(ctx, records)
	if err != nil {
		return err
	}

	for i := range records {
		r := &records[i]
		if entry, ok := exact[r.ExternalID]; ok {
			id := entry.ID
			r.DuplicateStatus = model.DuplicateExact
			r.DuplicateSimilarity = 1.0
			r.DuplicateOf = &id
			continue
		}
		d.fuzzyMatch(r, candidates[r.Institution])
	}

	return nil
}

// fetchCandidates pulls every ledger entry that could fuzzy-match any
// record in the batch, one query per institution (sessions share one
// institution, so normally exactly one).
func (d *Detector) fetchCandidates(ctx context.Context, records []model.StagedRecord) (map[string][]model.LedgerEntry, error) {
	type window struct {
		from, to time.Time
	}
	windows := make(map[string]window)
	for i := range records {
		date := records[i].Date
		w, ok := windows[records[i].Institution]
		if !ok {
			windows[records[i].Institution] = window{from: date, to: date}
			continue
		}
		if date.Before(w.from) {
			w.from = date
		}
		if date.After(w.to) {
			w.to = date
		}
		windows[records[i].Institution] = w
	}

	candidates := make(map[string][]model.LedgerEntry, len(windows))
	for institution, w := range windows {
		entries, err := d.ledger.FindCandidates(ctx, institution,
			w.from.Add(-d.cfg.DateWindow), w.to.Add(d.cfg.DateWindow))
		if err != nil {
			return nil, fmt.Errorf("candidate lookup for %s failed: %w", institution, err)
		}
		candidates[institution] = entries
	}

	return candidates, nil
}

// fuzzyMatch scores a record against its institution's candidates and
// annotates it. Ties on similarity go to the smallest date distance, then
// the smallest amount distance.
func (d *Detector) fuzzyMatch(r *model.StagedRecord, candidates []model.LedgerEntry) {
	var (
		best       *model.LedgerEntry
		bestSim    float64
		bestDate   time.Duration
		bestAmount decimal.Decimal
	)

	for i := range candidates {
		c := &candidates[i]

		amountDist := c.Amount.Sub(r.Amount).Abs()
		if amountDist.GreaterThan(d.cfg.AmountTolerance) {
			continue
		}
		dateDist := absDuration(c.Date.Sub(r.Date))
		if dateDist > d.cfg.DateWindow {
			continue
		}

		sim := Similarity(r.Description, c.Description)
		if best == nil || sim > bestSim ||
			(sim == bestSim && (dateDist < bestDate ||
				(dateDist == bestDate && amountDist.LessThan(bestAmount)))) {
			best = c
			bestSim = sim
			bestDate = dateDist
			bestAmount = amountDist
		}
	}

	if best == nil || bestSim <= d.cfg.SimilarityThreshold {
		r.DuplicateStatus = model.DuplicateNone
		r.DuplicateSimilarity = 0
		r.DuplicateOf = nil
		return
	}

	id := best.ID
	r.DuplicateStatus = model.DuplicateProbable
	r.DuplicateSimilarity = bestSim
	r.DuplicateOf = &id
}

// Similarity is the normalized edit-distance similarity between two
// descriptions: 1 - levenshtein/maxlen, case-folded. Two empty strings are
// perfectly similar; one empty against one non-empty is fully dissimilar.
// The measure is symmetric.
func Similarity(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))

	switch {
	case len(ra) == 0 && len(rb) == 0:
		return 1
	case len(ra) == 0 || len(rb) == 0:
		return 0
	}

	dist := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptionsWithSub)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}

	return 1 - float64(dist)/float64(maxLen)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
