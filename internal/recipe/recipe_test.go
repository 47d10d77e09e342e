package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sweeney/brew-monitor/internal/store"
)

var base = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusDraft, StatusBrewing, StatusPaused, StatusCompleted} {
		if got := ParseStatus(s.String()); got != s {
			t.Errorf("ParseStatus(%q) = %v, want %v", s.String(), got, s)
		}
	}
}

func TestParseStatusDefaultsToDraft(t *testing.T) {
	for _, in := range []string{"", "fermenting", "DONE"} {
		if got := ParseStatus(in); got != StatusDraft {
			t.Errorf("ParseStatus(%q) = %v, want draft", in, got)
		}
	}
	if got := ParseStatus(" Brewing "); got != StatusBrewing {
		t.Errorf("ParseStatus should ignore case and space, got %v", got)
	}
}

func TestStatusJSON(t *testing.T) {
	raw, err := json.Marshal(struct {
		S Status `json:"s"`
	}{StatusPaused})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"paused"}`, string(raw))

	var out struct {
		S Status `json:"s"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"s":"completed"}`), &out))
	assert.Equal(t, StatusCompleted, out.S)
}

func newRepo() (*store.FakeStore, *Repository) {
	s := store.NewFakeStore()
	clock := base
	now := func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return s, NewRepository(s, now, zap.NewNop())
}

func TestCreateAndGet(t *testing.T) {
	_, repo := newRepo()
	ctx := context.Background()

	rec, err := repo.Create(ctx, "u1", Details{RecipeName: "Ginger", Sugar: "1 cup"})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	assert.Equal(t, StatusDraft, rec.Status)

	got, err := repo.Get(ctx, "u1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ginger", got.RecipeName)
	assert.Equal(t, "1 cup", got.Sugar)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, StatusDraft, got.Status)
	assert.True(t, got.CreatedDate.Equal(rec.CreatedDate))
	assert.Nil(t, got.BrewingStartDate)
	assert.Nil(t, got.CompletionDate)
}

func TestGetMissing(t *testing.T) {
	_, repo := newRepo()
	_, err := repo.Get(context.Background(), "u1", "nope")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestMissingStatusReadsAsDraft(t *testing.T) {
	s, repo := newRepo()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, store.RecipePath("u1", "legacy"), store.Fields{"recipeName": "Old"}))

	got, err := repo.Get(ctx, "u1", "legacy")
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, got.Status)
}

func TestListNewestFirst(t *testing.T) {
	_, repo := newRepo()
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		_, err := repo.Create(ctx, "u1", Details{RecipeName: name})
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, "u2", Details{RecipeName: "other user"})
	require.NoError(t, err)

	list, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].RecipeName)
	assert.Equal(t, "first", list[2].RecipeName)
}

func TestUpdateDetailsKeepsState(t *testing.T) {
	_, repo := newRepo()
	ctx := context.Background()

	rec, err := repo.Create(ctx, "u1", Details{RecipeName: "Plain"})
	require.NoError(t, err)
	start := base.Add(time.Hour)
	require.NoError(t, repo.UpdateState(ctx, "u1", rec.ID, StateUpdate{Status: StatusBrewing, BrewingStartDate: &start}))

	require.NoError(t, repo.UpdateDetails(ctx, "u1", rec.ID, Details{RecipeName: "Hibiscus", Flavor: "floral"}))

	got, err := repo.Get(ctx, "u1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hibiscus", got.RecipeName)
	assert.Equal(t, "floral", got.Flavor)
	assert.Equal(t, StatusBrewing, got.Status)
	require.NotNil(t, got.BrewingStartDate)
	assert.True(t, got.BrewingStartDate.Equal(start))
}

func TestUpdateStateDates(t *testing.T) {
	_, repo := newRepo()
	ctx := context.Background()

	rec, err := repo.Create(ctx, "u1", Details{RecipeName: "Plain"})
	require.NoError(t, err)
	start, done := base.Add(time.Hour), base.Add(48*time.Hour)

	require.NoError(t, repo.UpdateState(ctx, "u1", rec.ID, StateUpdate{Status: StatusBrewing, BrewingStartDate: &start}))
	require.NoError(t, repo.UpdateState(ctx, "u1", rec.ID, StateUpdate{Status: StatusCompleted, CompletionDate: &done}))

	got, err := repo.Get(ctx, "u1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.BrewingStartDate)
	require.NotNil(t, got.CompletionDate)
	assert.True(t, got.CompletionDate.Equal(done))

	require.NoError(t, repo.UpdateState(ctx, "u1", rec.ID, StateUpdate{
		Status:              StatusDraft,
		ClearBrewingStart:   true,
		ClearCompletionDate: true,
	}))
	got, err = repo.Get(ctx, "u1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, got.Status)
	assert.Nil(t, got.BrewingStartDate)
	assert.Nil(t, got.CompletionDate)
}

func TestUpdateStateMissingRecipe(t *testing.T) {
	_, repo := newRepo()
	err := repo.UpdateState(context.Background(), "u1", "nope", StateUpdate{Status: StatusBrewing})
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestDelete(t *testing.T) {
	_, repo := newRepo()
	ctx := context.Background()

	rec, err := repo.Create(ctx, "u1", Details{RecipeName: "Gone"})
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, "u1", rec.ID))

	_, err = repo.Get(ctx, "u1", rec.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
