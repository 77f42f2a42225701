package share

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"savethespice-backend/internal/clock"
	"savethespice-backend/internal/domain"
	appErrors "savethespice-backend/internal/errors"
	"savethespice-backend/internal/repository"
	"savethespice-backend/internal/repository/memory"
)

var tables = repository.Tables{Recipes: "recipes", Categories: "categories", Meta: "meta", Share: "share"}

type stubRecipes map[int]domain.Recipe

func (s stubRecipes) GetRecipe(_ context.Context, _ string, id int) (domain.Recipe, error) {
	r, ok := s[id]
	if !ok {
		return domain.Recipe{}, appErrors.NotFound(appErrors.CodeRecipeNotFound, "no recipe").Build()
	}
	return r, nil
}

type stubNames map[int]string

func (s stubNames) CategoryNames(_ context.Context, _ string, ids []int) ([]string, error) {
	var out []string
	for _, id := range ids {
		if n, ok := s[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func newService() (*Service, *clock.Fixed) {
	clk := clock.NewFixed(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	recipes := stubRecipes{
		4: {RecipeID: 4, Name: "Curry", Ingredients: []string{"rice"}, Categories: []int{1, 2, 9}},
	}
	names := stubNames{1: "Dinner", 2: "Spicy"}
	return NewService(memory.NewStore(clk), tables, recipes, names, clk, zap.NewNop()), clk
}

func TestCreateShareLink_CopiesRecipeWithCategoryNames(t *testing.T) {
	svc, clk := newService()
	ctx := context.Background()

	shared, err := svc.CreateShareLink(ctx, "u1", 4)
	require.NoError(t, err)
	_, err = uuid.Parse(shared.ShareID)
	require.NoError(t, err)
	assert.Equal(t, "Curry", shared.Name)
	assert.Equal(t, []string{"rice"}, shared.Ingredients)
	assert.Equal(t, []string{"Dinner", "Spicy"}, shared.Categories)
	assert.Equal(t, clk.Now().Add(LinkTTL).Unix(), shared.TTL)

	got, err := svc.GetSharedRecipe(ctx, shared.ShareID)
	require.NoError(t, err)
	assert.Equal(t, shared, got)
}

func TestCreateShareLink_MissingRecipe(t *testing.T) {
	svc, _ := newService()
	_, err := svc.CreateShareLink(context.Background(), "u1", 99)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestGetSharedRecipe_ExpiredOrUnknown(t *testing.T) {
	svc, clk := newService()
	ctx := context.Background()

	shared, err := svc.CreateShareLink(ctx, "u1", 4)
	require.NoError(t, err)

	clk.Advance(LinkTTL + time.Second)
	_, err = svc.GetSharedRecipe(ctx, shared.ShareID)
	assert.True(t, appErrors.IsNotFound(err))

	_, err = svc.GetSharedRecipe(ctx, uuid.NewString())
	assert.True(t, appErrors.IsNotFound(err))

	_, err = svc.GetSharedRecipe(ctx, "not-a-uuid")
	assert.True(t, appErrors.IsNotFound(err))
}
