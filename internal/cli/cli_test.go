package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savethespice-backend/internal/config"
	"savethespice-backend/internal/di"
	"savethespice-backend/internal/domain"
	"savethespice-backend/internal/repository"
)

func sharedContainer(t *testing.T) (*di.Container, Factory) {
	t.Helper()
	c, cleanup, err := di.InitializeContainer(context.Background(), config.Defaults(config.Test))
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return c, func(context.Context) (*di.Container, func(), error) {
		return c, func() {}, nil
	}
}

func execute(t *testing.T, factory Factory, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand(factory)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestUserCreate(t *testing.T) {
	_, factory := sharedContainer(t)

	out, err := execute(t, factory, "user", "create", "--user", "u1")
	require.NoError(t, err)
	var meta domain.UserMeta
	require.NoError(t, json.Unmarshal([]byte(out), &meta))
	assert.Equal(t, "u1", meta.UserID)

	_, err = execute(t, factory, "user", "create")
	assert.ErrorContains(t, err, "--user is required")
}

func TestIDsNext(t *testing.T) {
	_, factory := sharedContainer(t)

	var ids []int
	for i := 0; i < 2; i++ {
		out, err := execute(t, factory, "ids", "next", "-u", "u1", "--type", "category")
		require.NoError(t, err)
		var got struct {
			ID int `json:"id"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		ids = append(ids, got.ID)
	}
	assert.Equal(t, ids[0]+1, ids[1])

	_, err := execute(t, factory, "ids", "next", "-u", "u1", "--type", "tag")
	assert.Error(t, err)
}

func TestCategoriesSweep(t *testing.T) {
	c, factory := sharedContainer(t)
	ctx := context.Background()

	created, err := c.Recipes.CreateRecipe(ctx, "u1", domain.RecipeFields{Name: "Pie", Categories: []string{"Dessert", "Baking"}})
	require.NoError(t, err)
	require.Len(t, created.Created, 2)

	// Remove one category row without cleanup to leave a dangling reference.
	gone := created.Created[0].CategoryID
	_, err = c.Store.Delete(ctx, c.Config.Storage.Tables.Categories,
		repository.EntityKey("u1", repository.AttrCategoryID, gone))
	require.NoError(t, err)

	out, err := execute(t, factory, "categories", "sweep", "--user", "u1")
	require.NoError(t, err)
	var result SweepResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, []int{created.RecipeID}, result.UpdatedRecipes)

	pie, err := c.Recipes.GetRecipe(ctx, "u1", created.RecipeID)
	require.NoError(t, err)
	assert.Equal(t, []int{created.Created[1].CategoryID}, pie.Categories)
}
