package tests

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/EternisAI/zone-orchestrator/internal/status"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusStore(t *testing.T, store status.Store) {
	ctx := context.Background()

	t.Run("merge keeps other fields", func(t *testing.T) {
		id := uuid.NewString()
		require.NoError(t, store.Update(ctx, id, status.FieldTerraform, status.Creating))
		first, err := store.Get(ctx, id)
		require.NoError(t, err)

		require.NoError(t, store.Update(ctx, id, status.FieldClusterName, "sys-zone-cluster"))
		require.NoError(t, store.Update(ctx, id, status.FieldTerraform, status.Complete))

		record, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, status.Complete, record.Get(status.FieldTerraform))
		assert.Equal(t, "sys-zone-cluster", record.Get(status.FieldClusterName))
		assert.False(t, record.LastUpdated.Before(first.LastUpdated))
	})

	t.Run("unknown tenant", func(t *testing.T) {
		_, err := store.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, status.ErrNotFound)
	})

	t.Run("concurrent fields survive", func(t *testing.T) {
		id := uuid.NewString()
		var wg sync.WaitGroup
		for i := range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, store.Update(ctx, id, fmt.Sprintf("field_%d", i), "value"))
			}()
		}
		wg.Wait()

		record, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Len(t, record.Fields, 10)
	})
}
