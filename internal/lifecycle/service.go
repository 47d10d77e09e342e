package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/brew-monitor/internal/lock"
	"github.com/sweeney/brew-monitor/internal/metrics"
	"github.com/sweeney/brew-monitor/internal/purge"
	"github.com/sweeney/brew-monitor/internal/recipe"
	"github.com/sweeney/brew-monitor/internal/store"
)

// Locker is the sensor exclusivity lock.
type Locker interface {
	TryAcquire(ctx context.Context, recipeID, userID string) (lock.Result, error)
	Release(ctx context.Context, recipeID string) error
	ForceRelease(ctx context.Context) error
	Current(ctx context.Context) (lock.Holder, error)
}

// Recipes persists recipes.
type Recipes interface {
	Create(ctx context.Context, userID string, d recipe.Details) (recipe.Recipe, error)
	Get(ctx context.Context, userID, recipeID string) (recipe.Recipe, error)
	List(ctx context.Context, userID string) ([]recipe.Recipe, error)
	UpdateDetails(ctx context.Context, userID, recipeID string, d recipe.Details) error
	UpdateState(ctx context.Context, userID, recipeID string, u recipe.StateUpdate) error
	Delete(ctx context.Context, userID, recipeID string) error
}

// Purger deletes the reading history of a recipe.
type Purger interface {
	Purge(ctx context.Context, userID, recipeID string) purge.Result
}

// Monitor runs the live reading pipeline for brewing recipes.
type Monitor interface {
	// Start begins monitoring with fresh alert state.
	Start(ctx context.Context, rec recipe.Recipe) error
	// Stop ends monitoring. No reading is processed after it returns.
	Stop(recipeID string)
}

// Outcome qualifies a successful action.
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeDegraded means the action completed but left residue behind,
	// such as orphaned readings after a partial purge.
	OutcomeDegraded
)

func (o Outcome) String() string {
	if o == OutcomeDegraded {
		return "degraded"
	}
	return "ok"
}

// Result is the outcome of an action.
type Result struct {
	Recipe  recipe.Recipe
	Outcome Outcome
	Purge   *purge.Result
}

// Degraded reports whether the action left residue behind.
func (r Result) Degraded() bool {
	return r.Outcome == OutcomeDegraded
}

// Deps are the collaborators of a Service.
type Deps struct {
	Recipes Recipes
	Lock    Locker
	Purger  Purger
	Monitor Monitor
	Now     func() time.Time
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Service applies lifecycle actions. Actions on the same recipe must be
// serialized by the caller.
type Service struct {
	recipes Recipes
	lock    Locker
	purger  Purger
	monitor Monitor
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewService creates a lifecycle service.
func NewService(d Deps) *Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{
		recipes: d.Recipes,
		lock:    d.Lock,
		purger:  d.Purger,
		monitor: d.Monitor,
		now:     d.Now,
		logger:  d.Logger,
		metrics: d.Metrics,
	}
}

// Apply runs action on a recipe.
func (s *Service) Apply(ctx context.Context, userID, recipeID string, a Action) (Result, error) {
	rec, err := s.recipes.Get(ctx, userID, recipeID)
	if err != nil {
		s.metrics.Transition(string(a), "error")
		return Result{}, err
	}
	if _, err := Next(rec.Status, a); err != nil {
		s.metrics.Transition(string(a), "invalid")
		return Result{}, err
	}

	// Once the lock or monitor is touched the sequence runs to the end, even
	// if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	var res Result
	switch a {
	case ActionStart, ActionResume, ActionRebrew:
		res, err = s.enterBrewing(ctx, rec, a)
	case ActionPause, ActionComplete:
		res, err = s.leaveBrewing(ctx, rec, a)
	case ActionAbort:
		res, err = s.abort(ctx, rec)
	}

	s.record(a, res, err)
	return res, err
}

func (s *Service) record(a Action, res Result, err error) {
	var already *AlreadyBrewingError
	switch {
	case errors.As(err, &already):
		s.metrics.Transition(string(a), "denied")
	case err != nil:
		s.metrics.Transition(string(a), "error")
		s.logger.Warn("lifecycle action failed", zap.String("action", string(a)), zap.Error(err))
	default:
		s.metrics.Transition(string(a), res.Outcome.String())
		s.logger.Info("lifecycle action applied",
			zap.String("action", string(a)),
			zap.String("recipe_id", res.Recipe.ID),
			zap.Stringer("status", res.Recipe.Status),
			zap.Stringer("outcome", res.Outcome),
		)
	}
}

// Start begins brewing a draft recipe.
func (s *Service) Start(ctx context.Context, userID, recipeID string) (Result, error) {
	return s.Apply(ctx, userID, recipeID, ActionStart)
}

// Resume continues a paused recipe.
func (s *Service) Resume(ctx context.Context, userID, recipeID string) (Result, error) {
	return s.Apply(ctx, userID, recipeID, ActionResume)
}

// Rebrew starts a completed recipe again.
func (s *Service) Rebrew(ctx context.Context, userID, recipeID string) (Result, error) {
	return s.Apply(ctx, userID, recipeID, ActionRebrew)
}

// Pause suspends brewing. Reading history is kept.
func (s *Service) Pause(ctx context.Context, userID, recipeID string) (Result, error) {
	return s.Apply(ctx, userID, recipeID, ActionPause)
}

// Complete finishes brewing.
func (s *Service) Complete(ctx context.Context, userID, recipeID string) (Result, error) {
	return s.Apply(ctx, userID, recipeID, ActionComplete)
}

// Abort returns a recipe to draft and deletes its reading history.
func (s *Service) Abort(ctx context.Context, userID, recipeID string) (Result, error) {
	return s.Apply(ctx, userID, recipeID, ActionAbort)
}

func (s *Service) enterBrewing(ctx context.Context, rec recipe.Recipe, a Action) (Result, error) {
	granted, err := s.lock.TryAcquire(ctx, rec.ID, rec.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("%s %s: %w: %w", a, rec.ID, ErrLockUnavailable, err)
	}
	if !granted.Granted {
		return Result{}, &AlreadyBrewingError{RecipeID: granted.Holder}
	}

	now := s.now().UTC()
	update := recipe.StateUpdate{Status: recipe.StatusBrewing}
	switch {
	case a == ActionRebrew:
		update.BrewingStartDate = &now
		update.ClearCompletionDate = true
	case rec.BrewingStartDate == nil:
		update.BrewingStartDate = &now
	}

	if err := s.recipes.UpdateState(ctx, rec.UserID, rec.ID, update); err != nil {
		if relErr := s.lock.Release(ctx, rec.ID); relErr != nil {
			s.logger.Error("failed to release sensor lock after status write failed",
				zap.String("recipe_id", rec.ID),
				zap.Error(relErr),
			)
		}
		return Result{}, err
	}

	rec.Status = recipe.StatusBrewing
	if update.BrewingStartDate != nil {
		rec.BrewingStartDate = update.BrewingStartDate
	}
	if update.ClearCompletionDate {
		rec.CompletionDate = nil
	}

	res := Result{Recipe: rec}
	if err := s.monitor.Start(ctx, rec); err != nil {
		s.logger.Warn("brewing without live monitoring",
			zap.String("recipe_id", rec.ID),
			zap.Error(err),
		)
		res.Outcome = OutcomeDegraded
	}
	return res, nil
}

func (s *Service) leaveBrewing(ctx context.Context, rec recipe.Recipe, a Action) (Result, error) {
	s.releaseQuietly(ctx, rec.ID)
	s.monitor.Stop(rec.ID)

	update := recipe.StateUpdate{Status: recipe.StatusPaused}
	if a == ActionComplete {
		now := s.now().UTC()
		update = recipe.StateUpdate{Status: recipe.StatusCompleted, CompletionDate: &now}
	}
	if err := s.recipes.UpdateState(ctx, rec.UserID, rec.ID, update); err != nil {
		return Result{}, err
	}

	rec.Status = update.Status
	if update.CompletionDate != nil {
		rec.CompletionDate = update.CompletionDate
	}
	return Result{Recipe: rec}, nil
}

func (s *Service) abort(ctx context.Context, rec recipe.Recipe) (Result, error) {
	s.releaseQuietly(ctx, rec.ID)
	s.monitor.Stop(rec.ID)

	pr := s.purger.Purge(ctx, rec.UserID, rec.ID)

	err := s.recipes.UpdateState(ctx, rec.UserID, rec.ID, recipe.StateUpdate{
		Status:              recipe.StatusDraft,
		ClearBrewingStart:   true,
		ClearCompletionDate: true,
	})
	if err != nil {
		return Result{Purge: &pr}, err
	}

	rec.Status = recipe.StatusDraft
	rec.BrewingStartDate = nil
	rec.CompletionDate = nil
	res := Result{Recipe: rec, Purge: &pr}
	if !pr.FullySucceeded {
		res.Outcome = OutcomeDegraded
	}
	return res, nil
}

// releaseQuietly frees the lock for recipeID. Failures are logged; leaving
// brewing never fails because of the lock.
func (s *Service) releaseQuietly(ctx context.Context, recipeID string) {
	if err := s.lock.Release(ctx, recipeID); err != nil {
		s.logger.Warn("failed to release sensor lock",
			zap.String("recipe_id", recipeID),
			zap.Error(err),
		)
	}
}

// Delete removes a recipe with its reading history. The lock is released if
// it points at the recipe, whatever the purge outcome.
func (s *Service) Delete(ctx context.Context, userID, recipeID string) (Result, error) {
	rec, err := s.recipes.Get(ctx, userID, recipeID)
	if err != nil {
		s.metrics.Transition("delete", "error")
		return Result{}, err
	}

	ctx = context.WithoutCancel(ctx)
	s.monitor.Stop(recipeID)
	pr := s.purger.Purge(ctx, userID, recipeID)
	s.releaseQuietly(ctx, recipeID)

	if err := s.recipes.Delete(ctx, userID, recipeID); err != nil {
		s.metrics.Transition("delete", "error")
		return Result{Recipe: rec, Purge: &pr}, err
	}

	res := Result{Recipe: rec, Purge: &pr}
	if !pr.FullySucceeded {
		res.Outcome = OutcomeDegraded
	}
	s.metrics.Transition("delete", res.Outcome.String())
	s.logger.Info("recipe deleted",
		zap.String("recipe_id", recipeID),
		zap.Stringer("outcome", res.Outcome),
	)
	return res, nil
}

// Create stores a new draft recipe.
func (s *Service) Create(ctx context.Context, userID string, d recipe.Details) (recipe.Recipe, error) {
	return s.recipes.Create(ctx, userID, d)
}

// Edit changes a recipe's details. Allowed in every status.
func (s *Service) Edit(ctx context.Context, userID, recipeID string, d recipe.Details) (recipe.Recipe, error) {
	if err := s.recipes.UpdateDetails(ctx, userID, recipeID, d); err != nil {
		return recipe.Recipe{}, err
	}
	return s.recipes.Get(ctx, userID, recipeID)
}

// Get loads a recipe.
func (s *Service) Get(ctx context.Context, userID, recipeID string) (recipe.Recipe, error) {
	return s.recipes.Get(ctx, userID, recipeID)
}

// List returns a user's recipes, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]recipe.Recipe, error) {
	return s.recipes.List(ctx, userID)
}

// SensorLock returns the current lock holder.
func (s *Service) SensorLock(ctx context.Context) (lock.Holder, error) {
	return s.lock.Current(ctx)
}

// ForceRelease clears the sensor lock whoever holds it and stops monitoring
// the recipe it pointed at. The recipe's status is left alone.
func (s *Service) ForceRelease(ctx context.Context) (lock.Holder, error) {
	h, err := s.lock.Current(ctx)
	if err != nil {
		return lock.Holder{}, err
	}
	if err := s.lock.ForceRelease(ctx); err != nil {
		return h, err
	}
	if !h.Empty() {
		s.monitor.Stop(h.RecipeID)
	}
	return h, nil
}

// RestoreMonitoring resumes the pipeline for the lock holder after a
// restart. A lock pointing at a missing or non-brewing recipe is released.
func (s *Service) RestoreMonitoring(ctx context.Context) error {
	h, err := s.lock.Current(ctx)
	if err != nil {
		return err
	}
	if h.Empty() {
		return nil
	}

	rec, err := s.recipes.Get(ctx, h.UserID, h.RecipeID)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("sensor lock points at a missing recipe", zap.String("recipe_id", h.RecipeID))
		return s.lock.Release(ctx, h.RecipeID)
	}
	if err != nil {
		return err
	}
	if rec.Status != recipe.StatusBrewing {
		s.logger.Warn("sensor lock held by a recipe that is not brewing",
			zap.String("recipe_id", rec.ID),
			zap.Stringer("status", rec.Status),
		)
		return s.lock.Release(ctx, rec.ID)
	}

	s.logger.Info("restoring monitoring", zap.String("recipe_id", rec.ID))
	return s.monitor.Start(ctx, rec)
}
