package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sweeney/brew-monitor/internal/lifecycle"
	"github.com/sweeney/brew-monitor/internal/lock"
	"github.com/sweeney/brew-monitor/internal/purge"
	"github.com/sweeney/brew-monitor/internal/recipe"
	"github.com/sweeney/brew-monitor/internal/status"
	"github.com/sweeney/brew-monitor/internal/store"
)

type nopMonitor struct{}

func (nopMonitor) Start(context.Context, recipe.Recipe) error { return nil }
func (nopMonitor) Stop(string) {}

type apiFixture struct {
	store *store.FakeStore
	ts    *httptest.Server
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	s := store.NewFakeStore()
	logger := zap.NewNop()
	now := func() time.Time { return start }
	svc := lifecycle.NewService(lifecycle.Deps{
		Recipes: recipe.NewRepository(s, now, logger),
		Lock:    lock.New(s, logger),
		Purger:  purge.New(s, 4, logger, nil),
		Monitor: nopMonitor{},
		Now:     now,
		Logger:  logger,
	})
	srv := New(":0", status.NewTracker(start, status.Config{}), svc, nil, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &apiFixture{store: s, ts: ts}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (f *apiFixture) create(t *testing.T, userID, name string) string {
	t.Helper()
	code, body := f.do(t, http.MethodPost, "/api/users/"+userID+"/recipes", fmt.Sprintf(`{"recipeName":%q}`, name))
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "draft", body["status"])
	return body["recipeId"].(string)
}

func recipeField(t *testing.T, body map[string]any, key string) any {
	t.Helper()
	rec, ok := body["recipe"].(map[string]any)
	require.True(t, ok, "response has no recipe: %v", body)
	return rec[key]
}

func TestAPIStartAndConflict(t *testing.T) {
	f := newAPIFixture(t)
	r1 := f.create(t, "alice", "Green tea")
	r2 := f.create(t, "bob", "Black tea")

	code, body := f.do(t, http.MethodPost, "/api/users/alice/recipes/"+r1+"/start", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "brewing", recipeField(t, body, "status"))
	assert.Equal(t, false, body["degraded"])
	assert.NotNil(t, recipeField(t, body, "brewingStartDate"))

	code, body = f.do(t, http.MethodPost, "/api/users/bob/recipes/"+r2+"/start", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, r1, body["brewing_recipe_id"])

	code, body = f.do(t, http.MethodGet, "/api/sensor-lock", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["held"])
	assert.Equal(t, r1, body["recipe_id"])
	assert.Equal(t, "alice", body["user_id"])
}

func TestAPIInvalidTransition(t *testing.T) {
	f := newAPIFixture(t)
	r1 := f.create(t, "alice", "Green tea")

	code, body := f.do(t, http.MethodPost, "/api/users/alice/recipes/"+r1+"/pause", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, body["error"], "invalid status transition")
}

func TestAPIUnknownAction(t *testing.T) {
	f := newAPIFixture(t)
	r1 := f.create(t, "alice", "Green tea")

	code, _ := f.do(t, http.MethodPost, "/api/users/alice/recipes/"+r1+"/ferment", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAPIMissingRecipe(t *testing.T) {
	f := newAPIFixture(t)

	code, _ := f.do(t, http.MethodGet, "/api/users/alice/recipes/nope", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(t, http.MethodPost, "/api/users/alice/recipes/nope/start", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPIEditAndList(t *testing.T) {
	f := newAPIFixture(t)
	r1 := f.create(t, "alice", "Green tea")

	code, body := f.do(t, http.MethodPut, "/api/users/alice/recipes/"+r1, `{"recipeName":"Oolong","notes":"second ferment"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Oolong", body["recipeName"])
	assert.Equal(t, "second ferment", body["notes"])

	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/api/users/alice/recipes", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, r1, list[0]["recipeId"])
}

func TestAPIBadBody(t *testing.T) {
	f := newAPIFixture(t)

	code, body := f.do(t, http.MethodPost, "/api/users/alice/recipes", `{"recipeName":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "invalid recipe")

	code, _ = f.do(t, http.MethodPost, "/api/users/alice/recipes", `{"status":"brewing"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAPIAbortDegraded(t *testing.T) {
	f := newAPIFixture(t)
	r1 := f.create(t, "alice", "Green tea")
	code, _ := f.do(t, http.MethodPost, "/api/users/alice/recipes/"+r1+"/start", "")
	require.Equal(t, http.StatusOK, code)

	phs := store.PHReadingsPath("alice", r1)
	id, err := f.store.Add(context.Background(), phs, store.Fields{"ph_value": 3.4, "timestamp": start})
	require.NoError(t, err)
	f.store.FailOn(store.OpDelete, store.Join(phs, id), errors.New("permission denied"))

	code, body := f.do(t, http.MethodPost, "/api/users/alice/recipes/"+r1+"/abort", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["degraded"])
	purgeBody := body["purge"].(map[string]any)
	assert.Equal(t, float64(1), purgeBody["failed"])
	assert.Equal(t, "draft", recipeField(t, body, "status"))
}

func TestAPIDeleteRecipe(t *testing.T) {
	f := newAPIFixture(t)
	r1 := f.create(t, "alice", "Green tea")

	code, body := f.do(t, http.MethodDelete, "/api/users/alice/recipes/"+r1, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["degraded"])
	assert.Nil(t, body["recipe"])

	code, _ = f.do(t, http.MethodGet, "/api/users/alice/recipes/"+r1, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPIForceRelease(t *testing.T) {
	f := newAPIFixture(t)
	r1 := f.create(t, "alice", "Green tea")
	f.do(t, http.MethodPost, "/api/users/alice/recipes/"+r1+"/start", "")

	code, body := f.do(t, http.MethodDelete, "/api/sensor-lock", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, r1, body["previous_recipe_id"])

	_, body = f.do(t, http.MethodGet, "/api/sensor-lock", "")
	assert.Equal(t, false, body["held"])
}

// stubLifecycle returns err from every call.
type stubLifecycle struct {
	err error
}

func (s stubLifecycle) Create(context.Context, string, recipe.Details) (recipe.Recipe, error) {
	return recipe.Recipe{}, s.err
}

func (s stubLifecycle) Edit(context.Context, string, string, recipe.Details) (recipe.Recipe, error) {
	return recipe.Recipe{}, s.err
}

func (s stubLifecycle) Get(context.Context, string, string) (recipe.Recipe, error) {
	return recipe.Recipe{}, s.err
}

func (s stubLifecycle) List(context.Context, string) ([]recipe.Recipe, error) {
	return nil, s.err
}

func (s stubLifecycle) Apply(context.Context, string, string, lifecycle.Action) (lifecycle.Result, error) {
	return lifecycle.Result{}, s.err
}

func (s stubLifecycle) Delete(context.Context, string, string) (lifecycle.Result, error) {
	return lifecycle.Result{}, s.err
}

func (s stubLifecycle) SensorLock(context.Context) (lock.Holder, error) {
	return lock.Holder{}, s.err
}

func (s stubLifecycle) ForceRelease(context.Context) (lock.Holder, error) {
	return lock.Holder{}, s.err
}

func TestAPIErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"already brewing", &lifecycle.AlreadyBrewingError{RecipeID: "other"}, http.StatusConflict},
		{"invalid transition", fmt.Errorf("pause from draft: %w", lifecycle.ErrInvalidTransition), http.StatusConflict},
		{"not found", fmt.Errorf("get recipe: %w", store.ErrNotFound), http.StatusNotFound},
		{"lock unavailable", fmt.Errorf("%w: %w", lifecycle.ErrLockUnavailable, errors.New("timeout")), http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(":0", status.NewTracker(start, status.Config{}), stubLifecycle{err: tt.err}, nil, nil)
			ts := httptest.NewServer(srv.Handler())
			defer ts.Close()

			resp, err := http.Post(ts.URL+"/api/users/u/recipes/r/start", "application/json", nil)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)

			var body errorJSON
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.want == http.StatusInternalServerError {
				assert.Equal(t, "internal error", body.Error)
			}
		})
	}
}
