package relationship

import (
	"context"
	"testing"
	"time"

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

type fixture struct {
	store  *memory.Store
	events *domain.RecordingEventBus
	m      *Maintainer
}

func newFixture() fixture {
	clk := clock.NewFixed(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	store := memory.NewStore(clk)
	events := domain.NewRecordingEventBus()
	return fixture{
		store:  store,
		events: events,
		m:      NewMaintainer(store, tables, events, clk, zap.NewNop()),
	}
}

func (f fixture) putRecipe(t *testing.T, userID string, id int, categories ...int) {
	t.Helper()
	update := repository.Update{Set: map[string]any{"name": "r"}}
	if len(categories) > 0 {
		update.AddToSet = map[string][]int{repository.AttrCategories: categories}
	}
	_, err := f.store.Upsert(context.Background(), tables.Recipes,
		repository.EntityKey(userID, repository.AttrRecipeID, id), update)
	require.NoError(t, err)
}

func (f fixture) putCategory(t *testing.T, userID string, id int, name string) {
	t.Helper()
	_, err := f.store.Upsert(context.Background(), tables.Categories,
		repository.EntityKey(userID, repository.AttrCategoryID, id),
		repository.Update{Set: map[string]any{repository.AttrName: name}})
	require.NoError(t, err)
}

func (f fixture) categoriesOf(t *testing.T, userID string, id int) []int {
	t.Helper()
	item, err := f.store.GetItem(context.Background(), tables.Recipes,
		repository.EntityKey(userID, repository.AttrRecipeID, id))
	require.NoError(t, err)
	require.NotNil(t, item)
	var r domain.Recipe
	require.NoError(t, repository.Decode(item, &r))
	return r.Categories
}

func TestRemoveCategoryReferences_OnlyTouchesReferencingRecipes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.putRecipe(t, "u1", 1, 7, 3)
	f.putRecipe(t, "u1", 2, 3)
	f.putRecipe(t, "u1", 3, 7)
	f.putRecipe(t, "u1", 4)
	f.putRecipe(t, "u2", 1, 7)

	before, err := f.store.GetItem(ctx, tables.Recipes, repository.EntityKey("u1", repository.AttrRecipeID, 2))
	require.NoError(t, err)

	result, err := f.m.RemoveCategoryReferences(ctx, "u1", []int{7})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, result.Targeted)
	assert.Empty(t, result.Failed)

	assert.Equal(t, []int{3}, f.categoriesOf(t, "u1", 1), "other ids are untouched")
	assert.Empty(t, f.categoriesOf(t, "u1", 3))
	assert.Equal(t, []int{7}, f.categoriesOf(t, "u2", 1), "other users are untouched")

	after, err := f.store.GetItem(ctx, tables.Recipes, repository.EntityKey("u1", repository.AttrRecipeID, 2))
	require.NoError(t, err)
	assert.Equal(t, before, after, "non-referencing recipes are not written")

	assert.Equal(t, []string{domain.EventReferencesRemoved}, f.events.Types())
}

func TestRemoveCategoryReferences_EmptyInput(t *testing.T) {
	f := newFixture()
	result, err := f.m.RemoveCategoryReferences(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Empty(t, result.Targeted)
	assert.Equal(t, 0, f.store.Calls("Query"))
}

func TestRemoveCategoryReferences_NoMatches(t *testing.T) {
	f := newFixture()
	f.putRecipe(t, "u1", 1, 2)

	result, err := f.m.RemoveCategoryReferences(context.Background(), "u1", []int{9})
	require.NoError(t, err)
	assert.Empty(t, result.Targeted)
	assert.Equal(t, 0, f.store.Calls("TransactUpdate"))
	assert.Empty(t, f.events.Events())
}

func TestRemoveCategoryReferences_ChunkAtomicity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for id := 0; id < 30; id++ {
		f.putRecipe(t, "u1", id, 7, 100+id)
	}
	f.store.FailTransactionAt(2, appErrors.Unavailable(appErrors.CodeTransactionFailed, "cancelled").Build())

	result, err := f.m.RemoveCategoryReferences(ctx, "u1", []int{7})
	require.Error(t, err)
	assert.True(t, appErrors.IsPartialFailure(err))
	assert.Len(t, result.Targeted, 30)
	assert.Equal(t, []int{25, 26, 27, 28, 29}, result.Failed)
	assert.Len(t, result.Updated(), 25)
	assert.Equal(t, 2, f.store.Calls("TransactUpdate"))

	var ue *appErrors.UnifiedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, []int{25, 26, 27, 28, 29}, ue.FailedIDs)

	for id := 0; id < 25; id++ {
		assert.Equal(t, []int{100 + id}, f.categoriesOf(t, "u1", id), "chunk 1 committed")
	}
	for id := 25; id < 30; id++ {
		assert.ElementsMatch(t, []int{7, 100 + id}, f.categoriesOf(t, "u1", id), "chunk 2 fully unapplied")
	}
}

func TestRemoveCategoryReferences_QueryFailure(t *testing.T) {
	f := newFixture()
	f.store.SetError("Query", appErrors.Unavailable(appErrors.CodeStoreUnavailable, "down").Build())

	_, err := f.m.RemoveCategoryReferences(context.Background(), "u1", []int{1})
	require.Error(t, err)
	assert.True(t, appErrors.IsUnavailable(err))
	assert.False(t, appErrors.IsPartialFailure(err))
}

func TestRemoveCategoryReferences_ConcurrentlyDeletedRecipeIsNotResurrected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.putRecipe(t, "u1", 1, 7)

	recipes, err := f.m.recipeCategories(ctx, "u1")
	require.NoError(t, err)

	_, err = f.store.Delete(ctx, tables.Recipes, repository.EntityKey("u1", repository.AttrRecipeID, 1))
	require.NoError(t, err)

	result, err := f.m.remove(ctx, "u1", []int{7}, recipes)
	assert.True(t, appErrors.IsPartialFailure(err))
	assert.Equal(t, []int{1}, result.Failed)

	item, err := f.store.GetItem(ctx, tables.Recipes, repository.EntityKey("u1", repository.AttrRecipeID, 1))
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestSweepDanglingReferences(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.putCategory(t, "u1", 1, "Dessert")
	f.putCategory(t, "u1", 2, "Quick")
	f.putRecipe(t, "u1", 1, 1, 5)
	f.putRecipe(t, "u1", 2, 2)
	f.putRecipe(t, "u1", 3, 6)

	result, err := f.m.SweepDanglingReferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, result.Targeted)

	assert.Equal(t, []int{1}, f.categoriesOf(t, "u1", 1))
	assert.Equal(t, []int{2}, f.categoriesOf(t, "u1", 2))
	assert.Empty(t, f.categoriesOf(t, "u1", 3))

	again, err := f.m.SweepDanglingReferences(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, again.Targeted)
}

func TestChunks(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks([]int{1, 2, 3, 4, 5}, 2))
	assert.Equal(t, [][]int{{1, 2}}, chunks([]int{1, 2}, 2))
}
