package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"savethespice-backend/internal/clock"
	"savethespice-backend/internal/config"
	"savethespice-backend/internal/domain"
	"savethespice-backend/internal/infrastructure/images"
	"savethespice-backend/internal/infrastructure/observability"
	"savethespice-backend/internal/interfaces/http/rest/middleware"
	"savethespice-backend/internal/repository"
	"savethespice-backend/internal/repository/memory"
	"savethespice-backend/internal/service/batch"
	"savethespice-backend/internal/service/category"
	"savethespice-backend/internal/service/identity"
	"savethespice-backend/internal/service/meta"
	"savethespice-backend/internal/service/recipe"
	"savethespice-backend/internal/service/relationship"
	"savethespice-backend/internal/service/share"
	"savethespice-backend/pkg/api"
)

const user = "user-1"

type testServer struct {
	t      *testing.T
	router *chi.Mux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	clk := clock.NewFixed(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	tables := repository.Tables{Recipes: "recipes", Categories: "categories", Meta: "meta", Share: "share"}
	store := memory.NewStore(clk)
	events := domain.NewRecordingEventBus()
	exec := batch.NewExecutor(4, logger)

	alloc := identity.NewAllocator(store, tables, logger)
	refs := relationship.NewMaintainer(store, tables, events, clk, logger)
	categories := category.NewService(store, tables, alloc, refs, exec, events, clk, logger)
	recipes := recipe.NewService(store, tables, alloc, categories, images.Passthrough{}, exec, events, clk, logger)
	metaSvc := meta.NewService(store, tables, logger)
	shares := share.NewService(store, tables, recipes, categories, clk, logger)

	cfg := config.Defaults(config.Test)
	router := NewRouter(recipes, categories, metaSvc, shares, observability.NewCollector("test"), cfg, logger).Setup()
	return &testServer{t: t, router: router}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.DevUserHeader, user)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// data decodes the envelope's data field into dst.
func data(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	require.True(t, envelope.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body api.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error.Code
}

type createdRecipe struct {
	domain.Recipe
	NewCategories []domain.Category `json:"newCategories"`
	Existing      []int             `json:"existingCategories"`
}

func (s *testServer) createRecipe(name string, categories ...string) createdRecipe {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/recipes", domain.RecipeFields{Name: name, Categories: categories})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var out createdRecipe
	data(s.t, rec, &out)
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
}

func TestPrivateRoutesRequireUser(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/recipes", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
}

func TestRecipes_CategoryDeduplication(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/users", nil).Code)

	a := s.createRecipe("Brownies", "Dessert", "Quick")
	assert.Len(t, a.NewCategories, 2)
	b := s.createRecipe("Pudding", "Dessert", "Easy")
	assert.Len(t, b.NewCategories, 1)
	assert.Len(t, b.Existing, 1)

	var listed struct {
		Categories []domain.Category `json:"categories"`
	}
	data(t, s.do(http.MethodGet, "/api/categories", nil), &listed)
	assert.Len(t, listed.Categories, 3)

	dessert := b.Existing[0]
	assert.Contains(t, a.Categories, dessert)
	assert.Contains(t, b.Categories, dessert)
}

func TestRecipes_CRUD(t *testing.T) {
	s := newTestServer(t)
	created := s.createRecipe("Soup")
	path := fmt.Sprintf("/api/recipes/%d", created.RecipeID)

	rec := s.do(http.MethodPatch, path, domain.RecipePatch{Update: &domain.RecipeFields{Desc: "warm"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got domain.Recipe
	data(t, s.do(http.MethodGet, path, nil), &got)
	assert.Equal(t, "Soup", got.Name)
	assert.Equal(t, "warm", got.Desc)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, path, nil).Code)
	rec = s.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "RECIPE_NOT_FOUND", errorCode(t, rec))
}

func TestRecipes_Rejects(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/recipes", domain.RecipeFields{Desc: "nameless"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "RECIPE_NAME_REQUIRED", errorCode(t, rec))

	rec = s.do(http.MethodGet, "/api/recipes/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ID", errorCode(t, rec))

	rec = s.do(http.MethodPost, "/api/recipes", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, rec))

	ids := make([]int, 101)
	rec = s.do(http.MethodDelete, "/api/recipes", ids)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BATCH_TOO_LARGE", errorCode(t, rec))
}

func TestRecipes_BatchDeletePartialFailure(t *testing.T) {
	s := newTestServer(t)
	a := s.createRecipe("A")
	b := s.createRecipe("B")
	missing := b.RecipeID + 100

	rec := s.do(http.MethodDelete, "/api/recipes", []int{a.RecipeID, missing, b.RecipeID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		FailedDeletions []int `json:"failedDeletions"`
	}
	data(t, rec, &out)
	assert.Equal(t, []int{missing}, out.FailedDeletions)

	var listed struct {
		Recipes []domain.Recipe `json:"recipes"`
	}
	data(t, s.do(http.MethodGet, "/api/recipes", nil), &listed)
	assert.Empty(t, listed.Recipes)
}

func TestRecipes_BatchPatchAllSucceeded(t *testing.T) {
	s := newTestServer(t)
	a := s.createRecipe("A")

	body := map[int]domain.RecipePatch{a.RecipeID: {Update: &domain.RecipeFields{Name: "A2"}}}
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPatch, "/api/recipes", body).Code)

	body = map[int]domain.RecipePatch{a.RecipeID + 50: {Update: &domain.RecipeFields{Name: "X"}}}
	rec := s.do(http.MethodPatch, "/api/recipes", body)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		FailedUpdates []int `json:"failedUpdates"`
	}
	data(t, rec, &out)
	assert.Equal(t, []int{a.RecipeID + 50}, out.FailedUpdates)
}

func TestCategories_DeleteCleansRecipes(t *testing.T) {
	s := newTestServer(t)
	withDessert := s.createRecipe("Cake", "Dessert", "Baking")
	other := s.createRecipe("Bread", "Baking")

	var dessert int
	for _, c := range withDessert.NewCategories {
		if c.Name == "Dessert" {
			dessert = c.CategoryID
		}
	}

	rec := s.do(http.MethodDelete, fmt.Sprintf("/api/categories/%d", dessert), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out category.DeleteResult
	data(t, rec, &out)
	assert.Equal(t, []int{withDessert.RecipeID}, out.UpdatedRecipes)

	var cake domain.Recipe
	data(t, s.do(http.MethodGet, fmt.Sprintf("/api/recipes/%d", withDessert.RecipeID), nil), &cake)
	assert.NotContains(t, cake.Categories, dessert)
	assert.Len(t, cake.Categories, 1)

	var bread domain.Recipe
	data(t, s.do(http.MethodGet, fmt.Sprintf("/api/recipes/%d", other.RecipeID), nil), &bread)
	assert.Equal(t, other.Categories, bread.Categories)
}

func TestShoppingList(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/users", nil).Code)

	var empty []string
	data(t, s.do(http.MethodGet, "/api/shoppinglist", nil), &empty)
	assert.Empty(t, empty)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPut, "/api/shoppinglist", []string{"eggs"}).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPatch, "/api/shoppinglist", []string{"milk"}).Code)

	var items []string
	data(t, s.do(http.MethodGet, "/api/shoppinglist", nil), &items)
	assert.Equal(t, []string{"eggs", "milk"}, items)
}

func TestShareLink(t *testing.T) {
	s := newTestServer(t)
	r := s.createRecipe("Stew", "Dinner")

	rec := s.do(http.MethodPost, "/api/share", map[string]int{"recipeId": r.RecipeID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var shared domain.SharedRecipe
	data(t, rec, &shared)
	require.NotEmpty(t, shared.ShareID)

	req := httptest.NewRequest(http.MethodGet, "/public/share/"+shared.ShareID, nil)
	pub := httptest.NewRecorder()
	s.router.ServeHTTP(pub, req)
	require.Equal(t, http.StatusOK, pub.Code)
	var got domain.SharedRecipe
	data(t, pub, &got)
	assert.Equal(t, "Stew", got.Name)
	assert.Equal(t, []string{"Dinner"}, got.Categories)

	rec = s.do(http.MethodPost, "/api/share", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
