package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sweeney/brew-monitor/internal/lifecycle"
	"github.com/sweeney/brew-monitor/internal/lock"
	"github.com/sweeney/brew-monitor/internal/recipe"
)

// recipeJSON is the API representation of a recipe.
type recipeJSON struct {
	ID     string `json:"recipeId"`
	UserID string `json:"userId"`
	recipe.Details
	Status           string  `json:"status"`
	CreatedDate      string  `json:"createdDate"`
	BrewingStartDate *string `json:"brewingStartDate"`
	CompletionDate   *string `json:"completionDate"`
}

// resultJSON is the response to a lifecycle action or delete.
type resultJSON struct {
	Recipe   *recipeJSON `json:"recipe,omitempty"`
	Degraded bool        `json:"degraded"`
	Purge    *purgeJSON  `json:"purge,omitempty"`
}

type purgeJSON struct {
	FullySucceeded bool `json:"fully_succeeded"`
	Deleted        int  `json:"deleted"`
	Failed         int  `json:"failed"`
}

type lockJSON struct {
	Held     bool   `json:"held"`
	RecipeID string `json:"recipe_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Previous string `json:"previous_recipe_id,omitempty"`
}

type errorJSON struct {
	Error           string `json:"error"`
	BrewingRecipeID string `json:"brewing_recipe_id,omitempty"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func toRecipeJSON(r recipe.Recipe) recipeJSON {
	return recipeJSON{
		ID:               r.ID,
		UserID:           r.UserID,
		Details:          r.Details,
		Status:           r.Status.String(),
		CreatedDate:      r.CreatedDate.UTC().Format(time.RFC3339),
		BrewingStartDate: formatTime(r.BrewingStartDate),
		CompletionDate:   formatTime(r.CompletionDate),
	}
}

func toResultJSON(res lifecycle.Result, withRecipe bool) resultJSON {
	out := resultJSON{Degraded: res.Degraded()}
	if withRecipe {
		rj := toRecipeJSON(res.Recipe)
		out.Recipe = &rj
	}
	if res.Purge != nil {
		out.Purge = &purgeJSON{
			FullySucceeded: res.Purge.FullySucceeded,
			Deleted:        res.Purge.Deleted,
			Failed:         res.Purge.Failed,
		}
	}
	return out
}

func toLockJSON(h lock.Holder) lockJSON {
	return lockJSON{Held: !h.Empty(), RecipeID: h.RecipeID, UserID: h.UserID}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
