package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/infra/storage/memory"
)

func TestPrunerDeletesStaleSessions(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewFiltersRepo(memory.NewMemoryStorage())
	require.NoError(t, repo.Save(ctx, &domain.ClientFilters{ClientID: 1}))

	p := NewPruner(time.Hour, repo, nil)
	assert.Equal(t, 0, p.prune(ctx))

	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.Equal(t, 1, p.prune(ctx))

	f, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestPrunerDisabled(t *testing.T) {
	p := NewPruner(-1, memory.NewFiltersRepo(memory.NewMemoryStorage()), nil)
	done := make(chan struct{})
	go func() {
		p.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled pruner should return immediately")
	}
}
