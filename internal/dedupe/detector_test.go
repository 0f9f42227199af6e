package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/fluxo-ledger/fluxo/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	byExternalID map[string]model.LedgerEntry
	candidates   []model.LedgerEntry
}

func (f *fakeLedger) GetEntriesByExternalIDs(_ context.Context, ids []string) (map[string]model.LedgerEntry, error) {
	result := make(map[string]model.LedgerEntry)
	for _, id := range ids {
		if e, ok := f.byExternalID[id]; ok {
			result[id] = e
		}
	}
	return result, nil
}

func (f *fakeLedger) FindCandidates(_ context.Context, institution string, from, to time.Time) ([]model.LedgerEntry, error) {
	var out []model.LedgerEntry
	for _, e := range f.candidates {
		if e.Institution == institution && !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLedger) InsertEntry(context.Context, *model.LedgerEntry) error { return nil }

func (f *fakeLedger) ListEntries(context.Context, string) ([]model.LedgerEntry, error) {
	return f.candidates, nil
}

func stagedAt(date, description, amount string) model.StagedRecord {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	r := model.StagedRecord{
		Date:        d,
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Institution: "Nubank",
	}
	r.ExternalID = r.GenerateExternalID()
	return r
}

func ledgerAt(id int64, date, description, amount string) model.LedgerEntry {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return model.LedgerEntry{
		ID:          id,
		Date:        d,
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Institution: "Nubank",
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "UBER TRIP", "UBER TRIP", 1},
		{"case folded", "Uber Trip", "UBER TRIP", 1},
		{"both empty", "", "", 1},
		{"one empty", "UBER", "", 0},
		{"single char substitution", "IFOOD*RESTAURANTE", "IFOOD RESTAURANTE", 1 - 1.0/17},
		{"disjoint", "abc", "xyz", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, Similarity(tt.b, tt.a), 1e-9, "similarity must be symmetric")
		})
	}
}

func TestDetectBatch_ExactMatch(t *testing.T) {
	staged := stagedAt("2024-03-01", "IFOOD RESTAURANTE", "-45.00")
	existing := ledgerAt(41, "2024-03-01", "IFOOD RESTAURANTE", "-45.00")
	existing.ExternalID = staged.ExternalID

	ledger := &fakeLedger{byExternalID: map[string]model.LedgerEntry{
		existing.ExternalID: existing,
	}}
	detector := NewDetector(ledger, DefaultConfig())

	records := []model.StagedRecord{staged}
	require.NoError(t, detector.DetectBatch(context.Background(), records))

	assert.Equal(t, model.DuplicateExact, records[0].DuplicateStatus)
	assert.Equal(t, 1.0, records[0].DuplicateSimilarity)
	require.NotNil(t, records[0].DuplicateOf)
	assert.EqualValues(t, 41, *records[0].DuplicateOf)
}

func TestDetectBatch_ProbableMatch(t *testing.T) {
	// Same amount and nearby date, description differing in one character:
	// similarity 16/17 clears the 0.85 cutoff.
	ledger := &fakeLedger{candidates: []model.LedgerEntry{
		ledgerAt(7, "2024-03-03", "IFOOD RESTAURANTE", "-45.00"),
	}}
	detector := NewDetector(ledger, DefaultConfig())

	records := []model.StagedRecord{stagedAt("2024-03-01", "IFOOD*RESTAURANTE", "-45.00")}
	require.NoError(t, detector.DetectBatch(context.Background(), records))

	assert.Equal(t, model.DuplicateProbable, records[0].DuplicateStatus)
	assert.InDelta(t, 1-1.0/17, records[0].DuplicateSimilarity, 1e-9)
	require.NotNil(t, records[0].DuplicateOf)
	assert.EqualValues(t, 7, *records[0].DuplicateOf)
}

func TestDetectBatch_ThresholdIsExclusive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SimilarityThreshold = 1 - 1.0/17

	ledger := &fakeLedger{candidates: []model.LedgerEntry{
		ledgerAt(7, "2024-03-01", "IFOOD RESTAURANTE", "-45.00"),
	}}
	detector := NewDetector(ledger, cfg)

	// Similarity equals the cutoff exactly; "above" means strictly above.
	records := []model.StagedRecord{stagedAt("2024-03-01", "IFOOD*RESTAURANTE", "-45.00")}
	require.NoError(t, detector.DetectBatch(context.Background(), records))

	assert.Equal(t, model.DuplicateNone, records[0].DuplicateStatus)
	assert.Zero(t, records[0].DuplicateSimilarity)
	assert.Nil(t, records[0].DuplicateOf)
}

func TestDetectBatch_AmountOutsideTolerance(t *testing.T) {
	ledger := &fakeLedger{candidates: []model.LedgerEntry{
		ledgerAt(7, "2024-03-01", "IFOOD RESTAURANTE", "-45.02"),
	}}
	detector := NewDetector(ledger, DefaultConfig())

	records := []model.StagedRecord{stagedAt("2024-03-01", "IFOOD*RESTAURANTE", "-45.00")}
	require.NoError(t, detector.DetectBatch(context.Background(), records))
	assert.Equal(t, model.DuplicateNone, records[0].DuplicateStatus)
}

func TestDetectBatch_AmountWithinTolerance(t *testing.T) {
	ledger := &fakeLedger{candidates: []model.LedgerEntry{
		ledgerAt(7, "2024-03-01", "IFOOD RESTAURANTE", "-45.01"),
	}}
	detector := NewDetector(ledger, DefaultConfig())

	records := []model.StagedRecord{stagedAt("2024-03-01", "IFOOD*RESTAURANTE", "-45.00")}
	require.NoError(t, detector.DetectBatch(context.Background(), records))
	assert.Equal(t, model.DuplicateProbable, records[0].DuplicateStatus)
}

func TestDetectBatch_DateOutsideWindow(t *testing.T) {
	ledger := &fakeLedger{candidates: []model.LedgerEntry{
		ledgerAt(7, "2024-03-09", "IFOOD RESTAURANTE", "-45.00"),
	}}
	detector := NewDetector(ledger, DefaultConfig())

	// Eight days apart, window is seven.
	records := []model.StagedRecord{stagedAt("2024-03-01", "IFOOD*RESTAURANTE", "-45.00")}
	require.NoError(t, detector.DetectBatch(context.Background(), records))
	assert.Equal(t, model.DuplicateNone, records[0].DuplicateStatus)
}

func TestDetectBatch_TieBreaksByDateThenAmount(t *testing.T) {
	// Both candidates have identical descriptions, so identical similarity.
	// The one two days away must lose to the one a day away.
	ledger := &fakeLedger{candidates: []model.LedgerEntry{
		ledgerAt(1, "2024-03-03", "IFOOD RESTAURANTE", "-45.00"),
		ledgerAt(2, "2024-03-02", "IFOOD RESTAURANTE", "-45.00"),
	}}
	detector := NewDetector(ledger, DefaultConfig())

	records := []model.StagedRecord{stagedAt("2024-03-01", "IFOOD*RESTAURANTE", "-45.00")}
	require.NoError(t, detector.DetectBatch(context.Background(), records))

	require.NotNil(t, records[0].DuplicateOf)
	assert.EqualValues(t, 2, *records[0].DuplicateOf)
}

func TestDetectBatch_OtherInstitutionNotCandidate(t *testing.T) {
	other := ledgerAt(7, "2024-03-01", "IFOOD RESTAURANTE", "-45.00")
	other.Institution = "Itaú"

	ledger := &fakeLedger{candidates: []model.LedgerEntry{other}}
	detector := NewDetector(ledger, DefaultConfig())

	records := []model.StagedRecord{stagedAt("2024-03-01", "IFOOD*RESTAURANTE", "-45.00")}
	require.NoError(t, detector.DetectBatch(context.Background(), records))
	assert.Equal(t, model.DuplicateNone, records[0].DuplicateStatus)
}

func TestDetectBatch_GeneratesMissingExternalIDs(t *testing.T) {
	detector := NewDetector(&fakeLedger{}, DefaultConfig())

	records := []model.StagedRecord{{
		Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Description: "UBER TRIP",
		Amount:      decimal.RequireFromString("-23.50"),
		Institution: "Nubank",
	}}
	require.NoError(t, detector.DetectBatch(context.Background(), records))

	assert.NotEmpty(t, records[0].ExternalID)
	assert.Equal(t, model.DuplicateNone, records[0].DuplicateStatus)
}

func TestDetectBatch_ExactSkipsFuzzy(t *testing.T) {
	staged := stagedAt("2024-03-01", "UBER TRIP", "-23.50")
	exact := ledgerAt(1, "2024-03-01", "UBER TRIP", "-23.50")
	exact.ExternalID = staged.ExternalID

	ledger := &fakeLedger{
		byExternalID: map[string]model.LedgerEntry{exact.ExternalID: exact},
		candidates: []model.LedgerEntry{
			ledgerAt(99, "2024-03-01", "UBER TRIP", "-23.50"),
		},
	}
	detector := NewDetector(ledger, DefaultConfig())

	records := []model.StagedRecord{staged}
	require.NoError(t, detector.DetectBatch(context.Background(), records))

	assert.Equal(t, model.DuplicateExact, records[0].DuplicateStatus)
	assert.EqualValues(t, 1, *records[0].DuplicateOf)
}
