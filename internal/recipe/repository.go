package recipe

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/brew-monitor/internal/store"
)

// Persisted field names.
const (
	fieldUserID           = "userId"
	fieldRecipeName       = "recipeName"
	fieldTeaLeaf          = "teaLeaf"
	fieldWater            = "water"
	fieldSugar            = "sugar"
	fieldScoby            = "scoby"
	fieldKombuchaStarter  = "kombuchaStarter"
	fieldFlavor           = "flavor"
	fieldNotes            = "notes"
	fieldStatus           = "status"
	fieldCreatedDate      = store.FieldCreatedDate
	fieldBrewingStartDate = "brewingStartDate"
	fieldCompletionDate   = "completionDate"
)

// Repository reads and writes recipes in the document store.
type Repository struct {
	store  store.Store
	now    func() time.Time
	logger *zap.Logger
}

// NewRepository creates a repository. now stamps createdDate.
func NewRepository(s store.Store, now func() time.Time, logger *zap.Logger) *Repository {
	return &Repository{store: s, now: now, logger: logger}
}

// Create stores a new draft recipe and returns it with its id.
func (r *Repository) Create(ctx context.Context, userID string, d Details) (Recipe, error) {
	rec := Recipe{
		UserID:      userID,
		Details:     d,
		Status:      StatusDraft,
		CreatedDate: r.now().UTC(),
	}
	id, err := r.store.Add(ctx, store.RecipesPath(userID), toFields(rec))
	if err != nil {
		return Recipe{}, fmt.Errorf("create recipe: %w", err)
	}
	rec.ID = id
	r.logger.Info("recipe created", zap.String("user_id", userID), zap.String("recipe_id", id))
	return rec, nil
}

// Get loads one recipe. Missing recipes wrap store.ErrNotFound.
func (r *Repository) Get(ctx context.Context, userID, recipeID string) (Recipe, error) {
	doc, err := r.store.Get(ctx, store.RecipePath(userID, recipeID))
	if err != nil {
		return Recipe{}, fmt.Errorf("get recipe %s: %w", recipeID, err)
	}
	return fromDocument(userID, doc), nil
}

// List returns a user's recipes, newest first.
func (r *Repository) List(ctx context.Context, userID string) ([]Recipe, error) {
	docs, err := r.store.Run(ctx, store.Query{
		Collection: store.RecipesPath(userID),
		OrderBy:    fieldCreatedDate,
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	out := make([]Recipe, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromDocument(userID, doc))
	}
	return out, nil
}

// UpdateDetails replaces the editable fields. Status and dates are untouched.
func (r *Repository) UpdateDetails(ctx context.Context, userID, recipeID string, d Details) error {
	err := r.store.Update(ctx, store.RecipePath(userID, recipeID), detailFields(d))
	if err != nil {
		return fmt.Errorf("update recipe %s: %w", recipeID, err)
	}
	return nil
}

// StateUpdate is a status change with its date side effects. Nil dates are
// left alone unless the matching Clear flag is set.
type StateUpdate struct {
	Status              Status
	BrewingStartDate    *time.Time
	CompletionDate      *time.Time
	ClearBrewingStart   bool
	ClearCompletionDate bool
}

// UpdateState writes a status change.
func (r *Repository) UpdateState(ctx context.Context, userID, recipeID string, u StateUpdate) error {
	fields := store.Fields{fieldStatus: u.Status.String()}
	switch {
	case u.ClearBrewingStart:
		fields[fieldBrewingStartDate] = nil
	case u.BrewingStartDate != nil:
		fields[fieldBrewingStartDate] = u.BrewingStartDate.UTC()
	}
	switch {
	case u.ClearCompletionDate:
		fields[fieldCompletionDate] = nil
	case u.CompletionDate != nil:
		fields[fieldCompletionDate] = u.CompletionDate.UTC()
	}

	if err := r.store.Update(ctx, store.RecipePath(userID, recipeID), fields); err != nil {
		return fmt.Errorf("update recipe %s status: %w", recipeID, err)
	}
	return nil
}

// Delete removes the recipe document only; reading history is the caller's.
func (r *Repository) Delete(ctx context.Context, userID, recipeID string) error {
	if err := r.store.Delete(ctx, store.RecipePath(userID, recipeID)); err != nil {
		return fmt.Errorf("delete recipe %s: %w", recipeID, err)
	}
	return nil
}

func detailFields(d Details) store.Fields {
	return store.Fields{
		fieldRecipeName:      d.RecipeName,
		fieldTeaLeaf:         d.TeaLeaf,
		fieldWater:           d.Water,
		fieldSugar:           d.Sugar,
		fieldScoby:           d.Scoby,
		fieldKombuchaStarter: d.KombuchaStarter,
		fieldFlavor:          d.Flavor,
		fieldNotes:           d.Notes,
	}
}

func toFields(rec Recipe) store.Fields {
	f := detailFields(rec.Details)
	f[fieldUserID] = rec.UserID
	f[fieldStatus] = rec.Status.String()
	f[fieldCreatedDate] = rec.CreatedDate
	f[fieldBrewingStartDate] = timeOrNil(rec.BrewingStartDate)
	f[fieldCompletionDate] = timeOrNil(rec.CompletionDate)
	return f
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func fromDocument(userID string, doc store.Document) Recipe {
	str := func(key string) string {
		s, _ := doc.String(key)
		return s
	}
	optTime := func(key string) *time.Time {
		if t, ok := doc.Time(key); ok {
			return &t
		}
		return nil
	}

	rec := Recipe{
		ID:     doc.ID,
		UserID: userID,
		Details: Details{
			RecipeName:      str(fieldRecipeName),
			TeaLeaf:         str(fieldTeaLeaf),
			Water:           str(fieldWater),
			Sugar:           str(fieldSugar),
			Scoby:           str(fieldScoby),
			KombuchaStarter: str(fieldKombuchaStarter),
			Flavor:          str(fieldFlavor),
			Notes:           str(fieldNotes),
		},
		Status:           ParseStatus(str(fieldStatus)),
		BrewingStartDate: optTime(fieldBrewingStartDate),
		CompletionDate:   optTime(fieldCompletionDate),
	}
	if u := str(fieldUserID); u != "" {
		rec.UserID = u
	}
	if t, ok := doc.Time(fieldCreatedDate); ok {
		rec.CreatedDate = t
	}
	return rec
}
