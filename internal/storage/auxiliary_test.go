package storage

import (
	"context"
	"testing"
	"time"

	"github.com/fluxo-ledger/fluxo/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceAuxiliaryBase_ScopedToInstitution(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	nubankPatterns := []model.RecurringPattern{
		{MerchantStem: "spotify", Institution: "Nubank", Group: "Assinaturas", Occurrences: 4},
	}
	itauPatterns := []model.RecurringPattern{
		{MerchantStem: "netflix", Institution: "Itaú", Group: "Assinaturas", Occurrences: 3},
	}

	require.NoError(t, store.ReplaceAuxiliaryBase(ctx, "Nubank", nubankPatterns, nil))
	require.NoError(t, store.ReplaceAuxiliaryBase(ctx, "Itaú", itauPatterns, nil))

	// Rebuilding one institution must not touch the other's rows.
	replacement := []model.RecurringPattern{
		{MerchantStem: "ifood", Institution: "Nubank", Group: "Alimentação", Occurrences: 6},
	}
	require.NoError(t, store.ReplaceAuxiliaryBase(ctx, "Nubank", replacement, nil))

	patterns, err := store.GetRecurringPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, patterns, 2)

	stems := map[string]string{}
	for _, p := range patterns {
		stems[p.MerchantStem] = p.Institution
	}
	assert.Equal(t, "Nubank", stems["ifood"])
	assert.Equal(t, "Itaú", stems["netflix"])
	assert.NotContains(t, stems, "spotify")
}

func TestReplaceAuxiliaryBase_Idempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	chains := []model.InstallmentChain{
		{
			DescriptionStem:   "magalu parc",
			Institution:       "Nubank",
			TotalInstallments: 10,
			SeenInstallments:  2,
			FirstDate:         time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC),
			LastDate:          time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		},
	}

	require.NoError(t, store.ReplaceAuxiliaryBase(ctx, "Nubank", nil, chains))
	require.NoError(t, store.ReplaceAuxiliaryBase(ctx, "Nubank", nil, chains))

	got, err := store.GetInstallmentChains(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 10, got[0].TotalInstallments)
	assert.Equal(t, 2, got[0].SeenInstallments)
	assert.False(t, got[0].Complete())
}

func TestReplaceAuxiliaryBase_EmptyClearsInstitution(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	patterns := []model.RecurringPattern{
		{MerchantStem: "spotify", Institution: "Nubank", Group: "Assinaturas", Occurrences: 4},
	}
	require.NoError(t, store.ReplaceAuxiliaryBase(ctx, "Nubank", patterns, nil))
	require.NoError(t, store.ReplaceAuxiliaryBase(ctx, "Nubank", nil, nil))

	got, err := store.GetRecurringPatterns(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
