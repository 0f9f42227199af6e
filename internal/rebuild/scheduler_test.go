package rebuild

import (
	"context"
	"testing"

	"github.com/fluxo-ledger/fluxo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsTriggeredRebuild(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	insertEntry(t, store, "2024-01-05", "SPOTIFY BR", "Assinaturas")
	insertEntry(t, store, "2024-02-05", "SPOTIFY BR", "Assinaturas")
	insertEntry(t, store, "2024-03-05", "SPOTIFY BR", "Assinaturas")

	scheduler := NewScheduler(NewRebuilder(store, store), 4)
	scheduler.Trigger(Scope{Institution: "Nubank"})
	scheduler.Close()

	patterns, err := store.GetRecurringPatterns(ctx)
	require.NoError(t, err)
	assert.Len(t, patterns, 1)
}

func TestScheduler_CloseIsIdempotent(t *testing.T) {
	store := testutil.SetupTestDB(t)

	scheduler := NewScheduler(NewRebuilder(store, store), 1)
	scheduler.Close()
	scheduler.Close()
}
