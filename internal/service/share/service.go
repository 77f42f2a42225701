// Package share publishes expiring public copies of recipes.
package share

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"savethespice-backend/internal/clock"
	"savethespice-backend/internal/domain"
	appErrors "savethespice-backend/internal/errors"
	"savethespice-backend/internal/repository"
)

// LinkTTL is how long a share link stays readable.
const LinkTTL = 24 * time.Hour

// RecipeReader loads a user's recipe.
type RecipeReader interface {
	GetRecipe(ctx context.Context, userID string, id int) (domain.Recipe, error)
}

// CategoryNamer maps category ids to names.
type CategoryNamer interface {
	CategoryNames(ctx context.Context, userID string, ids []int) ([]string, error)
}

// Service creates and reads share links.
type Service struct {
	store      repository.Store
	table      string
	recipes    RecipeReader
	categories CategoryNamer
	clock      clock.Clock
	logger     *zap.Logger
}

// NewService creates a share service.
func NewService(store repository.Store, tables repository.Tables, recipes RecipeReader, categories CategoryNamer, clk clock.Clock, logger *zap.Logger) *Service {
	return &Service{
		store:      store,
		table:      tables.Share,
		recipes:    recipes,
		categories: categories,
		clock:      clk,
		logger:     logger,
	}
}

// CreateShareLink copies the recipe into the share table under a random id. The copy
// carries category names because ids mean nothing outside the owner's partition.
func (s *Service) CreateShareLink(ctx context.Context, userID string, recipeID int) (domain.SharedRecipe, error) {
	recipe, err := s.recipes.GetRecipe(ctx, userID, recipeID)
	if err != nil {
		return domain.SharedRecipe{}, err
	}
	names, err := s.categories.CategoryNames(ctx, userID, recipe.Categories)
	if err != nil {
		return domain.SharedRecipe{}, err
	}

	shareID := uuid.NewString()
	set := map[string]any{"ttl": s.clock.Now().Add(LinkTTL).Unix()}
	for name, value := range map[string]string{
		"name":        recipe.Name,
		"desc":        recipe.Desc,
		"cookTime":    recipe.CookTime,
		"yields":      recipe.Yields,
		"adaptedFrom": recipe.AdaptedFrom,
		"url":         recipe.URL,
		"imgSrc":      recipe.ImgSrc,
	} {
		if value != "" {
			set[name] = value
		}
	}
	if len(recipe.Ingredients) > 0 {
		set["ingredients"] = recipe.Ingredients
	}
	if len(recipe.Instructions) > 0 {
		set["instructions"] = recipe.Instructions
	}
	if len(names) > 0 {
		set[repository.AttrCategories] = names
	}

	item, err := s.store.Upsert(ctx, s.table, repository.ShareKey(shareID), repository.Update{Set: set})
	if err != nil {
		return domain.SharedRecipe{}, appErrors.Wrap(err, "CreateShareLink", "failed to store shared recipe")
	}
	shared, err := decode(item)
	if err != nil {
		return domain.SharedRecipe{}, err
	}

	s.logger.Info("share link created",
		zap.String("user_id", userID),
		zap.Int("recipe_id", recipeID),
		zap.String("share_id", shareID),
	)
	return shared, nil
}

// GetSharedRecipe reads a share link. Expired links are reported as missing even before
// the table's TTL sweep removes them.
func (s *Service) GetSharedRecipe(ctx context.Context, shareID string) (domain.SharedRecipe, error) {
	if _, err := uuid.Parse(shareID); err != nil {
		return domain.SharedRecipe{}, notFound(shareID)
	}

	item, err := s.store.GetItem(ctx, s.table, repository.ShareKey(shareID))
	if err != nil {
		return domain.SharedRecipe{}, appErrors.Wrap(err, "GetSharedRecipe", "failed to read shared recipe")
	}
	if item == nil {
		return domain.SharedRecipe{}, notFound(shareID)
	}
	shared, err := decode(item)
	if err != nil {
		return domain.SharedRecipe{}, err
	}
	if shared.TTL < s.clock.Now().Unix() {
		return domain.SharedRecipe{}, notFound(shareID)
	}
	return shared, nil
}

func decode(item repository.Item) (domain.SharedRecipe, error) {
	var r domain.SharedRecipe
	if err := repository.Decode(item, &r); err != nil {
		return domain.SharedRecipe{}, err
	}
	return r, nil
}

func notFound(shareID string) error {
	return appErrors.NotFound(appErrors.CodeShareNotFound, "shared recipe does not exist or has expired").
		WithResource("share").
		WithDetails(shareID).
		Build()
}
