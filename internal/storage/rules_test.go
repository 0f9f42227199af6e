package storage

import (
	"context"
	"testing"

	"github.com/fluxo-ledger/fluxo/internal/common"
	"github.com/fluxo-ledger/fluxo/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveRule_InsertAndUpdate(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	rule := model.ClassificationRule{
		Priority: 10,
		Patterns: []string{"uber", "99app"},
		Group:    "Transporte",
		Subgroup: "Aplicativo",
		IsActive: true,
	}
	require.NoError(t, store.SaveRule(ctx, &rule))
	require.NotZero(t, rule.ID)

	rule.Patterns = append(rule.Patterns, "cabify")
	require.NoError(t, store.SaveRule(ctx, &rule))

	rules, err := store.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, []string{"uber", "99app", "cabify"}, rules[0].Patterns)
}

func TestGetActiveRules_PriorityOrder(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	// Inserted out of priority order on purpose.
	for _, r := range []model.ClassificationRule{
		{Priority: 30, Patterns: []string{"ifood"}, Group: "Alimentação", IsActive: true},
		{Priority: 10, Patterns: []string{"uber"}, Group: "Transporte", IsActive: true},
		{Priority: 20, Patterns: []string{"netflix"}, Group: "Assinaturas", IsActive: true},
		{Priority: 5, Patterns: []string{"farmacia"}, Group: "Saúde", IsActive: false},
	} {
		rule := r
		require.NoError(t, store.SaveRule(ctx, &rule))
	}

	rules, err := store.GetActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 3)

	assert.Equal(t, "Transporte", rules[0].Group)
	assert.Equal(t, "Assinaturas", rules[1].Group)
	assert.Equal(t, "Alimentação", rules[2].Group)
}

func TestSaveRule_UpdateMissing(t *testing.T) {
	store := setupStore(t)

	rule := model.ClassificationRule{
		ID:       999,
		Priority: 10,
		Patterns: []string{"uber"},
		Group:    "Transporte",
		IsActive: true,
	}
	err := store.SaveRule(context.Background(), &rule)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetActiveRules_TiesBreakByID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first := model.ClassificationRule{Priority: 10, Patterns: []string{"a"}, Group: "First", IsActive: true}
	second := model.ClassificationRule{Priority: 10, Patterns: []string{"b"}, Group: "Second", IsActive: true}
	require.NoError(t, store.SaveRule(ctx, &first))
	require.NoError(t, store.SaveRule(ctx, &second))

	rules, err := store.GetActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "First", rules[0].Group)
	assert.Equal(t, "Second", rules[1].Group)
}
