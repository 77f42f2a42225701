package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"savethespice-backend/internal/domain"
	"savethespice-backend/internal/service/batch"
	"savethespice-backend/internal/service/recipe"
	"savethespice-backend/pkg/api"
)

// RecipeService is the part of the recipe service the handlers use.
type RecipeService interface {
	CreateRecipe(ctx context.Context, userID string, fields domain.RecipeFields) (recipe.Result, error)
	PutRecipe(ctx context.Context, userID string, id int, fields domain.RecipeFields) (recipe.Result, error)
	PatchRecipe(ctx context.Context, userID string, id int, patch domain.RecipePatch) (recipe.Result, error)
	GetRecipe(ctx context.Context, userID string, id int) (domain.Recipe, error)
	ListRecipes(ctx context.Context, userID string) ([]domain.Recipe, error)
	DeleteRecipe(ctx context.Context, userID string, id int) error
	PutRecipes(ctx context.Context, userID string, recipes []domain.RecipeFields) recipe.PutRecipesResult
	PatchRecipes(ctx context.Context, userID string, patches map[int]domain.RecipePatch) recipe.PatchRecipesResult
	DeleteRecipes(ctx context.Context, userID string, ids []int) batch.Report[int]
}

// RecipeHandler serves /api/recipes.
type RecipeHandler struct {
	recipes RecipeService
	logger  *zap.Logger
}

// NewRecipeHandler creates a recipe handler.
func NewRecipeHandler(recipes RecipeService, logger *zap.Logger) *RecipeHandler {
	return &RecipeHandler{recipes: recipes, logger: logger}
}

// BatchDeleteResponse reports the ids a batch delete could not remove.
type BatchDeleteResponse struct {
	FailedDeletions []int                `json:"failedDeletions"`
	Errors          []batch.Failure[int] `json:"errors,omitempty"`
}

// BatchUpdateResponse reports the ids a batch patch could not update.
type BatchUpdateResponse struct {
	FailedUpdates []int                `json:"failedUpdates"`
	Errors        []batch.Failure[int] `json:"errors,omitempty"`
}

// List handles GET /api/recipes.
func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.recipes.ListRecipes(r.Context(), userID(r))
	if err != nil {
		api.FromError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{"recipes": recipes})
}

// Create handles POST /api/recipes.
func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var fields domain.RecipeFields
	if err := decodeJSON(w, r, &fields); err != nil {
		api.FromError(w, err)
		return
	}
	result, err := h.recipes.CreateRecipe(r.Context(), userID(r), fields)
	if err != nil {
		api.FromError(w, err)
		return
	}
	api.JSON(w, http.StatusCreated, result)
}

// PutMany handles PUT /api/recipes.
func (h *RecipeHandler) PutMany(w http.ResponseWriter, r *http.Request) {
	var recipes []domain.RecipeFields
	if err := decodeJSON(w, r, &recipes); err != nil {
		api.FromError(w, err)
		return
	}
	if err := checkBatch(len(recipes)); err != nil {
		api.FromError(w, err)
		return
	}
	result := h.recipes.PutRecipes(r.Context(), userID(r), recipes)
	if len(result.FailedAdds) > 0 {
		h.logger.Warn("batch recipe create partially failed",
			zap.String("user_id", userID(r)),
			zap.Ints("failed", result.FailedAdds),
		)
	}
	api.JSON(w, http.StatusOK, result)
}

// PatchMany handles PATCH /api/recipes.
func (h *RecipeHandler) PatchMany(w http.ResponseWriter, r *http.Request) {
	var patches map[int]domain.RecipePatch
	if err := decodeJSON(w, r, &patches); err != nil {
		api.FromError(w, err)
		return
	}
	if err := checkBatch(len(patches)); err != nil {
		api.FromError(w, err)
		return
	}
	result := h.recipes.PatchRecipes(r.Context(), userID(r), patches)
	if result.Empty() {
		api.NoContent(w)
		return
	}
	api.JSON(w, http.StatusOK, result)
}

// DeleteMany handles DELETE /api/recipes.
func (h *RecipeHandler) DeleteMany(w http.ResponseWriter, r *http.Request) {
	var ids []int
	if err := decodeJSON(w, r, &ids); err != nil {
		api.FromError(w, err)
		return
	}
	if err := checkBatch(len(ids)); err != nil {
		api.FromError(w, err)
		return
	}
	report := h.recipes.DeleteRecipes(r.Context(), userID(r), ids)
	if report.OK() {
		api.NoContent(w)
		return
	}
	api.JSON(w, http.StatusOK, BatchDeleteResponse{FailedDeletions: report.FailedIDs(), Errors: report.Failed})
}

// Get handles GET /api/recipes/{id}.
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		api.FromError(w, err)
		return
	}
	rec, err := h.recipes.GetRecipe(r.Context(), userID(r), id)
	if err != nil {
		api.FromError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, rec)
}

// Put handles PUT /api/recipes/{id}.
func (h *RecipeHandler) Put(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		api.FromError(w, err)
		return
	}
	var fields domain.RecipeFields
	if err := decodeJSON(w, r, &fields); err != nil {
		api.FromError(w, err)
		return
	}
	result, err := h.recipes.PutRecipe(r.Context(), userID(r), id, fields)
	if err != nil {
		api.FromError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, result)
}

// Patch handles PATCH /api/recipes/{id}.
func (h *RecipeHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		api.FromError(w, err)
		return
	}
	var patch domain.RecipePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		api.FromError(w, err)
		return
	}
	result, err := h.recipes.PatchRecipe(r.Context(), userID(r), id, patch)
	if err != nil {
		api.FromError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, result)
}

// Delete handles DELETE /api/recipes/{id}.
func (h *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		api.FromError(w, err)
		return
	}
	if err := h.recipes.DeleteRecipe(r.Context(), userID(r), id); err != nil {
		api.FromError(w, err)
		return
	}
	api.NoContent(w)
}
