package purge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sweeney/brew-monitor/internal/store"
)

var base = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func seed(t *testing.T, s store.Store, collection string, n int) []string {
	t.Helper()
	var ids []string
	for i := 0; i < n; i++ {
		id, err := s.Add(context.Background(), collection, store.Fields{
			"ph_value":  3.5,
			"timestamp": base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestPurgeOnlyPHReadings(t *testing.T) {
	s := store.NewFakeStore()
	seed(t, s, store.PHReadingsPath("u1", "r1"), 5)
	p := New(s, 2, zap.NewNop(), nil)

	res := p.Purge(context.Background(), "u1", "r1")

	assert.True(t, res.FullySucceeded)
	assert.Equal(t, 5, res.Deleted)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 0, s.Count(store.PHReadingsPath("u1", "r1")))
	assert.Len(t, s.DeleteCalls(), 5)
}

func TestPurgeEmptyRecipe(t *testing.T) {
	s := store.NewFakeStore()
	p := New(s, 0, zap.NewNop(), nil)

	done := make(chan Result, 1)
	go func() { done <- p.Purge(context.Background(), "u1", "empty") }()

	select {
	case res := <-done:
		assert.True(t, res.FullySucceeded)
		assert.Equal(t, 0, res.Deleted)
		assert.Empty(t, s.DeleteCalls())
	case <-time.After(time.Second):
		t.Fatal("purge of an empty recipe did not complete")
	}
}

func TestPurgeBothCollections(t *testing.T) {
	s := store.NewFakeStore()
	seed(t, s, store.TemperatureReadingsPath("u1", "r1"), 7)
	seed(t, s, store.PHReadingsPath("u1", "r1"), 3)
	// Another recipe is untouched.
	seed(t, s, store.PHReadingsPath("u1", "r2"), 2)

	res := New(s, 3, zap.NewNop(), nil).Purge(context.Background(), "u1", "r1")

	assert.True(t, res.FullySucceeded)
	assert.Equal(t, 10, res.Deleted)
	assert.Equal(t, 0, s.Count(store.TemperatureReadingsPath("u1", "r1")))
	assert.Equal(t, 2, s.Count(store.PHReadingsPath("u1", "r2")))
}

func TestPurgeContinuesPastFailedDelete(t *testing.T) {
	s := store.NewFakeStore()
	col := store.TemperatureReadingsPath("u1", "r1")
	ids := seed(t, s, col, 4)
	seed(t, s, store.PHReadingsPath("u1", "r1"), 2)
	s.FailOn(store.OpDelete, store.Join(col, ids[1]), errors.New("permission denied"))

	res := New(s, 1, zap.NewNop(), nil).Purge(context.Background(), "u1", "r1")

	assert.False(t, res.FullySucceeded)
	assert.Equal(t, 5, res.Deleted)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, s.Count(col))
	assert.Equal(t, 0, s.Count(store.PHReadingsPath("u1", "r1")))
}

func TestPurgeListFailure(t *testing.T) {
	s := store.NewFakeStore()
	seed(t, s, store.PHReadingsPath("u1", "r1"), 3)
	s.FailOn(store.OpList, store.TemperatureReadingsPath("u1", "r1"), errors.New("unavailable"))

	res := New(s, 0, zap.NewNop(), nil).Purge(context.Background(), "u1", "r1")

	assert.False(t, res.FullySucceeded)
	assert.Equal(t, 3, res.Deleted)
	assert.Equal(t, 0, s.Count(store.PHReadingsPath("u1", "r1")))
}

func TestPurgeOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := store.NewRedisClient(mr.Addr(), "", 0)
	defer client.Close()
	s := store.NewRedisStore(client, "brew:", zap.NewNop())

	for i := 0; i < 3; i++ {
		seed(t, s, store.TemperatureReadingsPath("u1", fmt.Sprintf("r%d", i)), 4)
	}

	res := New(s, 2, zap.NewNop(), nil).Purge(context.Background(), "u1", "r1")
	require.True(t, res.FullySucceeded)
	assert.Equal(t, 4, res.Deleted)

	docs, err := s.List(context.Background(), store.TemperatureReadingsPath("u1", "r1"))
	require.NoError(t, err)
	assert.Empty(t, docs)
	docs, err = s.List(context.Background(), store.TemperatureReadingsPath("u1", "r0"))
	require.NoError(t, err)
	assert.Len(t, docs, 4)
}
