// Package lock arbitrates which recipe may receive sensor readings.
//
// The lock is a single shared document holding at most one recipe and user.
// Acquisition is check-then-act, not compare-and-swap: two acquisitions for
// different recipes racing on an empty lock can both succeed, and the later
// write wins.
package lock

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sweeney/brew-monitor/internal/store"
)

// Lock document fields.
const (
	FieldActiveRecipeID = "active_recipe_id"
	FieldActiveUserID   = "active_user_id"
)

// Holder is the current owner of the lock. The zero value means free.
type Holder struct {
	RecipeID string
	UserID   string
}

// Empty reports whether nobody holds the lock.
func (h Holder) Empty() bool {
	return h.RecipeID == ""
}

// Result is the outcome of an acquisition attempt.
type Result struct {
	Granted bool
	// Holder is the recipe holding the lock when the attempt was denied.
	Holder string
}

// Lock is the sensor exclusivity lock.
type Lock struct {
	store  store.Store
	path   string
	logger *zap.Logger
}

// New creates a lock backed by the shared active config document.
func New(s store.Store, logger *zap.Logger) *Lock {
	return &Lock{store: s, path: store.ActiveConfigPath, logger: logger}
}

// Current reads the lock holder. A missing document is a free lock.
func (l *Lock) Current(ctx context.Context) (Holder, error) {
	doc, err := l.store.Get(ctx, l.path)
	if errors.Is(err, store.ErrNotFound) {
		return Holder{}, nil
	}
	if err != nil {
		return Holder{}, fmt.Errorf("read sensor lock: %w", err)
	}
	recipeID, _ := doc.String(FieldActiveRecipeID)
	userID, _ := doc.String(FieldActiveUserID)
	return Holder{RecipeID: recipeID, UserID: userID}, nil
}

// TryAcquire claims the lock for recipeID unless another recipe holds it.
// Acquiring a lock the recipe already holds is granted again.
// A read failure is returned as an error and nothing is written.
func (l *Lock) TryAcquire(ctx context.Context, recipeID, userID string) (Result, error) {
	h, err := l.Current(ctx)
	if err != nil {
		return Result{}, err
	}
	if !h.Empty() && h.RecipeID != recipeID {
		l.logger.Info("sensor lock denied",
			zap.String("recipe_id", recipeID),
			zap.String("holder", h.RecipeID),
		)
		return Result{Granted: false, Holder: h.RecipeID}, nil
	}

	err = l.store.Set(ctx, l.path, store.Fields{
		FieldActiveRecipeID: recipeID,
		FieldActiveUserID:   userID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("write sensor lock: %w", err)
	}
	l.logger.Info("sensor lock acquired",
		zap.String("recipe_id", recipeID),
		zap.String("user_id", userID),
	)
	return Result{Granted: true}, nil
}

// Release frees the lock if recipeID holds it. Releasing a free lock, or one
// held by another recipe, does nothing.
func (l *Lock) Release(ctx context.Context, recipeID string) error {
	h, err := l.Current(ctx)
	if err != nil {
		return err
	}
	if h.RecipeID != recipeID {
		return nil
	}
	return l.clear(ctx)
}

// ForceRelease frees the lock whoever holds it.
func (l *Lock) ForceRelease(ctx context.Context) error {
	h, err := l.Current(ctx)
	if err != nil {
		return err
	}
	if h.Empty() {
		return nil
	}
	l.logger.Warn("force releasing sensor lock", zap.String("holder", h.RecipeID))
	return l.clear(ctx)
}

// clear nulls both fields, keeping the document.
func (l *Lock) clear(ctx context.Context) error {
	err := l.store.Update(ctx, l.path, store.Fields{
		FieldActiveRecipeID: nil,
		FieldActiveUserID:   nil,
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("clear sensor lock: %w", err)
	}
	l.logger.Info("sensor lock released")
	return nil
}
