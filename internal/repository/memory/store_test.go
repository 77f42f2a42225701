package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savethespice-backend/internal/clock"
	appErrors "savethespice-backend/internal/errors"
	"savethespice-backend/internal/repository"
)

const table = "recipes"

func newStore() (*Store, *clock.Fixed) {
	clk := clock.NewFixed(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return NewStore(clk), clk
}

func str(item repository.Item, name string) string {
	if s, ok := item[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func ns(item repository.Item, name string) []string {
	if set, ok := item[name].(*types.AttributeValueMemberNS); ok {
		return set.Value
	}
	return nil
}

func TestGetItem_ProjectionKeepsKey(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	key := repository.UserKey("u1")

	missing, err := s.GetItem(ctx, "meta", key, "shoppingList")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = s.Upsert(ctx, "meta", key, repository.Update{})
	require.NoError(t, err)

	item, err := s.GetItem(ctx, "meta", key, "shoppingList")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "u1", str(item, repository.AttrUserID))
	assert.NotContains(t, item, "shoppingList")
	assert.NotContains(t, item, "createTime")
}

func TestUpsert_StampsCreateTimeOnce(t *testing.T) {
	s, clk := newStore()
	ctx := context.Background()
	key := repository.EntityKey("u1", repository.AttrRecipeID, 1)

	first, err := s.Upsert(ctx, table, key, repository.Update{Set: map[string]any{"name": "Soup"}})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:00:00Z", str(first, repository.AttrCreateTime))
	assert.Equal(t, "2024-05-01T12:00:00Z", str(first, repository.AttrUpdateTime))
	assert.Equal(t, "u1", str(first, repository.AttrUserID))

	clk.Advance(time.Minute)
	second, err := s.Upsert(ctx, table, key, repository.Update{Set: map[string]any{"desc": "hot"}})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:00:00Z", str(second, repository.AttrCreateTime))
	assert.Equal(t, "2024-05-01T12:01:00Z", str(second, repository.AttrUpdateTime))
	assert.Equal(t, "Soup", str(second, "name"), "unsupplied attributes are kept")
	assert.Equal(t, "hot", str(second, "desc"))
}

func TestUpsert_RequireExists(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	key := repository.EntityKey("u1", repository.AttrRecipeID, 9)

	_, err := s.Upsert(ctx, table, key, repository.Update{
		Set:           map[string]any{"name": "Ghost"},
		RequireExists: true,
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsPreconditionFailed(err))

	item, err := s.GetItem(ctx, table, key)
	require.NoError(t, err)
	assert.Nil(t, item, "failed condition must not write")
}

func TestUpsert_NumberSets(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	key := repository.EntityKey("u1", repository.AttrRecipeID, 1)

	item, err := s.Upsert(ctx, table, key, repository.Update{
		AddToSet: map[string][]int{repository.AttrCategories: {3, 1, 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ns(item, repository.AttrCategories))

	item, err = s.Upsert(ctx, table, key, repository.Update{
		DeleteFromSet: map[string][]int{repository.AttrCategories: {2}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, ns(item, repository.AttrCategories))

	item, err = s.Upsert(ctx, table, key, repository.Update{
		DeleteFromSet: map[string][]int{repository.AttrCategories: {1, 3}},
	})
	require.NoError(t, err)
	_, present := item[repository.AttrCategories]
	assert.False(t, present, "an emptied set is removed")
}

func TestUpsert_AppendToList(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	key := repository.UserKey("u1")

	_, err := s.Upsert(ctx, "meta", key, repository.Update{
		AppendToList:      map[string][]any{"shoppingList": {"eggs"}},
		RequireAttributes: []string{"shoppingList"},
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsPreconditionFailed(err))

	_, err = s.Upsert(ctx, "meta", key, repository.Update{Set: map[string]any{"shoppingList": []string{"milk"}}})
	require.NoError(t, err)

	item, err := s.Upsert(ctx, "meta", key, repository.Update{
		AppendToList:      map[string][]any{"shoppingList": {"eggs", "flour"}},
		RequireAttributes: []string{"shoppingList"},
	})
	require.NoError(t, err)

	var out struct {
		ShoppingList []string `dynamodbav:"shoppingList"`
	}
	require.NoError(t, repository.Decode(item, &out))
	assert.Equal(t, []string{"milk", "eggs", "flour"}, out.ShoppingList)
}

func TestUpsert_Remove(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	key := repository.EntityKey("u1", repository.AttrRecipeID, 1)

	_, err := s.Upsert(ctx, table, key, repository.Update{Set: map[string]any{"name": "A", "url": "x"}})
	require.NoError(t, err)

	item, err := s.Upsert(ctx, table, key, repository.Update{Remove: []string{"url"}})
	require.NoError(t, err)
	_, present := item["url"]
	assert.False(t, present)
	assert.Equal(t, "A", str(item, "name"))
}

func TestDelete(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	key := repository.EntityKey("u1", repository.AttrCategoryID, 4)

	_, err := s.Delete(ctx, "categories", key)
	require.Error(t, err)
	assert.True(t, appErrors.IsNotFound(err))

	_, err = s.Upsert(ctx, "categories", key, repository.Update{Set: map[string]any{"name": "Quick"}})
	require.NoError(t, err)

	old, err := s.Delete(ctx, "categories", key)
	require.NoError(t, err)
	assert.Equal(t, "Quick", str(old, "name"))

	item, err := s.GetItem(ctx, "categories", key)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestIncrement_ReturnsPreviousValue(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	key := repository.UserKey("u1")

	for want := 0; want < 3; want++ {
		got, err := s.Increment(ctx, "meta", key, "nextRecipeId", 1)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	item, err := s.GetItem(ctx, "meta", key)
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "3"}, item["nextRecipeId"])
}

func TestQuery_OrderProjectionFilter(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()

	for _, id := range []int{10, 2, 7} {
		_, err := s.Upsert(ctx, "categories", repository.EntityKey("u1", repository.AttrCategoryID, id),
			repository.Update{Set: map[string]any{"name": map[int]string{10: "Dessert", 2: "Quick", 7: "Easy"}[id]}})
		require.NoError(t, err)
	}
	_, err := s.Upsert(ctx, "categories", repository.EntityKey("u2", repository.AttrCategoryID, 1),
		repository.Update{Set: map[string]any{"name": "Dessert"}})
	require.NoError(t, err)

	items, err := s.Query(ctx, "categories", repository.UserKey("u1"), repository.QueryOptions{
		Projection: []string{repository.AttrCategoryID, repository.AttrName},
	})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Quick", str(items[0], "name"))
	assert.Equal(t, "Easy", str(items[1], "name"))
	assert.Equal(t, "Dessert", str(items[2], "name"))
	assert.Len(t, items[0], 2, "projection keeps only requested attributes")

	items, err = s.Query(ctx, "categories", repository.UserKey("u1"), repository.QueryOptions{
		Filter: &repository.Filter{Attribute: repository.AttrName, In: []any{"Dessert", "Nope"}},
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Dessert", str(items[0], "name"))
}

func TestTransactUpdate_AllOrNothing(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	existing := repository.EntityKey("u1", repository.AttrRecipeID, 1)
	missing := repository.EntityKey("u1", repository.AttrRecipeID, 2)

	_, err := s.Upsert(ctx, table, existing, repository.Update{
		AddToSet: map[string][]int{repository.AttrCategories: {5, 6}},
	})
	require.NoError(t, err)

	remove := repository.Update{
		DeleteFromSet: map[string][]int{repository.AttrCategories: {5}},
		RequireExists: true,
	}
	err = s.TransactUpdate(ctx, []repository.TransactItem{
		{Table: table, Key: existing, Update: remove},
		{Table: table, Key: missing, Update: remove},
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsPreconditionFailed(err))

	item, err := s.GetItem(ctx, table, existing)
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "6"}, ns(item, repository.AttrCategories), "no member of a failed transaction applies")

	ghost, err := s.GetItem(ctx, table, missing)
	require.NoError(t, err)
	assert.Nil(t, ghost)
}

func TestTransactUpdate_TooMany(t *testing.T) {
	s, _ := newStore()
	items := make([]repository.TransactItem, repository.MaxTransactItems+1)
	err := s.TransactUpdate(context.Background(), items)
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
}

func TestFaultInjection(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	boom := errors.New("boom")

	s.SetError("Query", boom)
	_, err := s.Query(ctx, table, repository.UserKey("u1"), repository.QueryOptions{})
	assert.ErrorIs(t, err, boom)

	s.SetError("Query", nil)
	_, err = s.Query(ctx, table, repository.UserKey("u1"), repository.QueryOptions{})
	assert.NoError(t, err)
	assert.Equal(t, 2, s.Calls("Query"))

	key := repository.EntityKey("u1", repository.AttrRecipeID, 1)
	item := repository.TransactItem{Table: table, Key: key, Update: repository.Update{Set: map[string]any{"name": "x"}}}
	s.FailTransactionAt(2, boom)

	require.NoError(t, s.TransactUpdate(ctx, []repository.TransactItem{item}))
	assert.ErrorIs(t, s.TransactUpdate(ctx, []repository.TransactItem{item}), boom)
	require.NoError(t, s.TransactUpdate(ctx, []repository.TransactItem{item}))
}
