package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sweeney/brew-monitor/internal/lifecycle"
	"github.com/sweeney/brew-monitor/internal/lock"
	"github.com/sweeney/brew-monitor/internal/recipe"
	"github.com/sweeney/brew-monitor/internal/store"
)

// Lifecycle is the recipe service the API drives.
type Lifecycle interface {
	Create(ctx context.Context, userID string, d recipe.Details) (recipe.Recipe, error)
	Edit(ctx context.Context, userID, recipeID string, d recipe.Details) (recipe.Recipe, error)
	Get(ctx context.Context, userID, recipeID string) (recipe.Recipe, error)
	List(ctx context.Context, userID string) ([]recipe.Recipe, error)
	Apply(ctx context.Context, userID, recipeID string, a lifecycle.Action) (lifecycle.Result, error)
	Delete(ctx context.Context, userID, recipeID string) (lifecycle.Result, error)
	SensorLock(ctx context.Context) (lock.Holder, error)
	ForceRelease(ctx context.Context) (lock.Holder, error)
}

const maxBodyBytes = 64 << 10

func (s *Server) registerAPI(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/users/{uid}/recipes", s.handleListRecipes)
	mux.HandleFunc("POST /api/users/{uid}/recipes", s.handleCreateRecipe)
	mux.HandleFunc("GET /api/users/{uid}/recipes/{rid}", s.handleGetRecipe)
	mux.HandleFunc("PUT /api/users/{uid}/recipes/{rid}", s.handleEditRecipe)
	mux.HandleFunc("DELETE /api/users/{uid}/recipes/{rid}", s.handleDeleteRecipe)
	mux.HandleFunc("POST /api/users/{uid}/recipes/{rid}/{action}", s.handleAction)
	mux.HandleFunc("GET /api/sensor-lock", s.handleGetLock)
	mux.HandleFunc("DELETE /api/sensor-lock", s.handleForceRelease)
}

func (s *Server) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	recs, err := s.lifecycle.List(r.Context(), r.PathValue("uid"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]recipeJSON, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecipeJSON(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	d, ok := decodeDetails(w, r)
	if !ok {
		return
	}
	rec, err := s.lifecycle.Create(r.Context(), r.PathValue("uid"), d)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecipeJSON(rec))
}

func (s *Server) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	rec, err := s.lifecycle.Get(r.Context(), r.PathValue("uid"), r.PathValue("rid"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecipeJSON(rec))
}

func (s *Server) handleEditRecipe(w http.ResponseWriter, r *http.Request) {
	d, ok := decodeDetails(w, r)
	if !ok {
		return
	}
	rec, err := s.lifecycle.Edit(r.Context(), r.PathValue("uid"), r.PathValue("rid"), d)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecipeJSON(rec))
}

func (s *Server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	res, err := s.lifecycle.Delete(r.Context(), r.PathValue("uid"), r.PathValue("rid"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultJSON(res, false))
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	a, err := lifecycle.ParseAction(r.PathValue("action"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
		return
	}
	res, err := s.lifecycle.Apply(r.Context(), r.PathValue("uid"), r.PathValue("rid"), a)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultJSON(res, true))
}

func (s *Server) handleGetLock(w http.ResponseWriter, r *http.Request) {
	h, err := s.lifecycle.SensorLock(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLockJSON(h))
}

func (s *Server) handleForceRelease(w http.ResponseWriter, r *http.Request) {
	h, err := s.lifecycle.ForceRelease(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("sensor lock force released", zap.String("previous_recipe_id", h.RecipeID))
	writeJSON(w, http.StatusOK, lockJSON{Held: false, Previous: h.RecipeID})
}

func decodeDetails(w http.ResponseWriter, r *http.Request) (recipe.Details, bool) {
	var d recipe.Details
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid recipe: " + err.Error()})
		return recipe.Details{}, false
	}
	return d, true
}

// writeError maps service errors onto status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var brewing *lifecycle.AlreadyBrewingError
	switch {
	case errors.As(err, &brewing):
		writeJSON(w, http.StatusConflict, errorJSON{Error: err.Error(), BrewingRecipeID: brewing.RecipeID})
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorJSON{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorJSON{Error: err.Error()})
	case errors.Is(err, lifecycle.ErrLockUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorJSON{Error: err.Error()})
	default:
		s.logger.Error("api request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal error"})
	}
}
