// Package relationship keeps recipe category-id sets consistent with the categories
// that exist.
//
// There is no reverse index from categories to recipes. Cleanup scans the user's recipes
// projected to id and categories, filters them in memory because the query language cannot
// test set intersection, and removes the ids with per-recipe set updates committed in
// independent transactions of at most repository.MaxTransactItems items.
package relationship

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"savethespice-backend/internal/clock"
	"savethespice-backend/internal/domain"
	appErrors "savethespice-backend/internal/errors"
	"savethespice-backend/internal/repository"
)

// Cleanup reports the outcome of a reference removal.
type Cleanup struct {
	// Targeted holds every recipe included in the submitted updates.
	Targeted []int
	// Failed holds the recipes whose transaction chunk was rejected.
	Failed []int
}

// Updated returns the targeted recipes whose chunk committed.
func (c Cleanup) Updated() []int {
	if len(c.Failed) == 0 {
		return c.Targeted
	}
	failed := make(map[int]struct{}, len(c.Failed))
	for _, id := range c.Failed {
		failed[id] = struct{}{}
	}
	updated := make([]int, 0, len(c.Targeted)-len(c.Failed))
	for _, id := range c.Targeted {
		if _, ok := failed[id]; !ok {
			updated = append(updated, id)
		}
	}
	return updated
}

// Maintainer propagates category deletions into recipes.
type Maintainer struct {
	store     repository.Store
	tables    repository.Tables
	events    domain.EventBus
	clock     clock.Clock
	logger    *zap.Logger
	chunkSize int
}

// NewMaintainer creates a relationship maintainer.
func NewMaintainer(store repository.Store, tables repository.Tables, events domain.EventBus, clk clock.Clock, logger *zap.Logger) *Maintainer {
	return &Maintainer{
		store:     store,
		tables:    tables,
		events:    events,
		clock:     clk,
		logger:    logger,
		chunkSize: repository.MaxTransactItems,
	}
}

// RemoveCategoryReferences deletes categoryIDs from the category set of every recipe that
// references any of them. Recipes that reference none are not written.
//
// A failed recipe query is returned as the error with an empty Cleanup. A rejected chunk
// does not stop later chunks; its recipes are listed in Failed and the error is a
// PARTIAL_FAILURE carrying those ids.
func (m *Maintainer) RemoveCategoryReferences(ctx context.Context, userID string, categoryIDs []int) (Cleanup, error) {
	if len(categoryIDs) == 0 {
		return Cleanup{}, nil
	}

	recipes, err := m.recipeCategories(ctx, userID)
	if err != nil {
		return Cleanup{}, err
	}

	return m.remove(ctx, userID, dedupe(categoryIDs), recipes)
}

// SweepDanglingReferences removes every category id that is referenced by a recipe but no
// longer exists. It repairs what a failed cleanup left behind.
func (m *Maintainer) SweepDanglingReferences(ctx context.Context, userID string) (Cleanup, error) {
	items, err := m.store.Query(ctx, m.tables.Categories, repository.UserKey(userID), repository.QueryOptions{
		Projection: []string{repository.AttrCategoryID},
	})
	if err != nil {
		return Cleanup{}, appErrors.Wrap(err, "SweepDanglingReferences", "failed to list categories")
	}
	var categories []domain.Category
	if err := repository.DecodeAll(items, &categories); err != nil {
		return Cleanup{}, err
	}
	existing := make(map[int]struct{}, len(categories))
	for _, c := range categories {
		existing[c.CategoryID] = struct{}{}
	}

	recipes, err := m.recipeCategories(ctx, userID)
	if err != nil {
		return Cleanup{}, err
	}

	danglingSet := make(map[int]struct{})
	for _, r := range recipes {
		for _, id := range r.Categories {
			if _, ok := existing[id]; !ok {
				danglingSet[id] = struct{}{}
			}
		}
	}
	if len(danglingSet) == 0 {
		m.logger.Info("no dangling category references", zap.String("user_id", userID))
		return Cleanup{}, nil
	}

	dangling := make([]int, 0, len(danglingSet))
	for id := range danglingSet {
		dangling = append(dangling, id)
	}
	sort.Ints(dangling)

	m.logger.Info("sweeping dangling category references",
		zap.String("user_id", userID),
		zap.Ints("category_ids", dangling),
	)
	return m.remove(ctx, userID, dangling, recipes)
}

func (m *Maintainer) recipeCategories(ctx context.Context, userID string) ([]domain.Recipe, error) {
	items, err := m.store.Query(ctx, m.tables.Recipes, repository.UserKey(userID), repository.QueryOptions{
		Projection: []string{repository.AttrRecipeID, repository.AttrCategories},
	})
	if err != nil {
		return nil, appErrors.Wrap(err, "RemoveCategoryReferences", "failed to scan recipes")
	}
	var recipes []domain.Recipe
	if err := repository.DecodeAll(items, &recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

func (m *Maintainer) remove(ctx context.Context, userID string, categoryIDs []int, recipes []domain.Recipe) (Cleanup, error) {
	var targeted []int
	for _, r := range recipes {
		for _, id := range categoryIDs {
			if r.HasCategory(id) {
				targeted = append(targeted, r.RecipeID)
				break
			}
		}
	}

	if len(targeted) == 0 {
		m.logger.Info("no recipes reference the categories",
			zap.String("user_id", userID),
			zap.Ints("category_ids", categoryIDs),
		)
		return Cleanup{}, nil
	}

	m.logger.Info("removing category references",
		zap.String("user_id", userID),
		zap.Ints("category_ids", categoryIDs),
		zap.Ints("recipe_ids", targeted),
	)

	result := Cleanup{Targeted: targeted}
	var firstErr error
	for _, chunk := range chunks(targeted, m.chunkSize) {
		items := make([]repository.TransactItem, 0, len(chunk))
		for _, recipeID := range chunk {
			items = append(items, repository.TransactItem{
				Table: m.tables.Recipes,
				Key:   repository.EntityKey(userID, repository.AttrRecipeID, recipeID),
				Update: repository.Update{
					DeleteFromSet: map[string][]int{repository.AttrCategories: categoryIDs},
					RequireExists: true,
				},
			})
		}

		if err := m.store.TransactUpdate(ctx, items); err != nil {
			m.logger.Error("category reference chunk failed",
				zap.String("user_id", userID),
				zap.Ints("recipe_ids", chunk),
				zap.Error(err),
			)
			result.Failed = append(result.Failed, chunk...)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if updated := result.Updated(); len(updated) > 0 {
		event := domain.NewEvent(domain.EventReferencesRemoved, userID, m.clock.Now(), updated...)
		event.Data = map[string]any{"categoryIds": categoryIDs}
		if err := m.events.Publish(ctx, event); err != nil {
			m.logger.Warn("failed to publish event", zap.String("event_type", event.Type), zap.Error(err))
		}
	}

	if len(result.Failed) > 0 {
		return result, appErrors.PartialFailure(appErrors.CodeReferenceCleanup, "some recipes kept references to deleted categories").
			WithOperation("RemoveCategoryReferences").
			WithResource("recipe").
			WithUserID(userID).
			WithFailedIDs(result.Failed).
			WithCause(firstErr).
			Build()
	}
	return result, nil
}

func chunks[T any](items []T, size int) [][]T {
	var out [][]T
	for size < len(items) {
		items, out = items[size:], append(out, items[:size:size])
	}
	return append(out, items)
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
