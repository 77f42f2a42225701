package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"savethespice-backend/internal/domain"
	"savethespice-backend/internal/service/batch"
	"savethespice-backend/internal/service/category"
	"savethespice-backend/pkg/api"
	"savethespice-backend/pkg/utils"
)

// CategoryService is the part of the category service the handlers use.
type CategoryService interface {
	CreateCategory(ctx context.Context, userID string, fields domain.CategoryFields) (domain.Category, error)
	PutCategory(ctx context.Context, userID string, id int, fields domain.CategoryFields) (domain.Category, error)
	PatchCategory(ctx context.Context, userID string, id int, patch domain.CategoryPatch) (domain.Category, error)
	PatchCategories(ctx context.Context, userID string, patches map[int]domain.CategoryPatch) batch.Report[int]
	GetCategory(ctx context.Context, userID string, id int) (domain.Category, error)
	ListCategories(ctx context.Context, userID string) ([]domain.Category, error)
	DeleteCategory(ctx context.Context, userID string, id int) (category.DeleteResult, error)
	DeleteCategories(ctx context.Context, userID string, ids []int) (category.DeleteResult, error)
}

// CategoryHandler serves /api/categories.
type CategoryHandler struct {
	categories CategoryService
	logger     *zap.Logger
}

// NewCategoryHandler creates a category handler.
func NewCategoryHandler(categories CategoryService, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{categories: categories, logger: logger}
}

// List handles GET /api/categories.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.ListCategories(r.Context(), userID(r))
	if err != nil {
		api.FromError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// Create handles POST /api/categories.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var fields domain.CategoryFields
	if err := decodeJSON(w, r, &fields); err != nil {
		api.FromError(w, err)
		return
	}
	if err := utils.ValidateStruct(fields); err != nil {
		api.FromError(w, err)
		return
	}
	c, err := h.categories.CreateCategory(r.Context(), userID(r), fields)
	if err != nil {
		api.FromError(w, err)
		return
	}
	api.JSON(w, http.StatusCreated, c)
}

// PatchMany handles PATCH /api/categories.
func (h *CategoryHandler) PatchMany(w http.ResponseWriter, r *http.Request) {
	var patches map[int]domain.CategoryPatch
	if err := decodeJSON(w, r, &patches); err != nil {
		api.FromError(w, err)
		return
	}
	if err := checkBatch(len(patches)); err != nil {
		api.FromError(w, err)
		return
	}
	report := h.categories.PatchCategories(r.Context(), userID(r), patches)
	if report.OK() {
		api.NoContent(w)
		return
	}
	api.JSON(w, http.StatusOK, BatchUpdateResponse{FailedUpdates: report.FailedIDs(), Errors: report.Failed})
}

// DeleteMany handles DELETE /api/categories.
func (h *CategoryHandler) DeleteMany(w http.ResponseWriter, r *http.Request) {
	var ids []int
	if err := decodeJSON(w, r, &ids); err != nil {
		api.FromError(w, err)
		return
	}
	if err := checkBatch(len(ids)); err != nil {
		api.FromError(w, err)
		return
	}
	result, err := h.categories.DeleteCategories(r.Context(), userID(r), ids)
	h.writeDelete(w, r, result, err)
}

// Get handles GET /api/categories/{id}.
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		api.FromError(w, err)
		return
	}
	c, err := h.categories.GetCategory(r.Context(), userID(r), id)
	if err != nil {
		api.FromError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, c)
}

// Put handles PUT /api/categories/{id}.
func (h *CategoryHandler) Put(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		api.FromError(w, err)
		return
	}
	var fields domain.CategoryFields
	if err := decodeJSON(w, r, &fields); err != nil {
		api.FromError(w, err)
		return
	}
	if err := utils.ValidateStruct(fields); err != nil {
		api.FromError(w, err)
		return
	}
	c, err := h.categories.PutCategory(r.Context(), userID(r), id, fields)
	if err != nil {
		api.FromError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, c)
}

// Patch handles PATCH /api/categories/{id}.
func (h *CategoryHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		api.FromError(w, err)
		return
	}
	var patch domain.CategoryPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		api.FromError(w, err)
		return
	}
	c, err := h.categories.PatchCategory(r.Context(), userID(r), id, patch)
	if err != nil {
		api.FromError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/categories/{id}.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		api.FromError(w, err)
		return
	}
	result, err := h.categories.DeleteCategory(r.Context(), userID(r), id)
	h.writeDelete(w, r, result, err)
}

// writeDelete answers a category deletion with 204 when no recipe was touched.
func (h *CategoryHandler) writeDelete(w http.ResponseWriter, r *http.Request, result category.DeleteResult, err error) {
	if err != nil {
		api.FromError(w, err)
		return
	}
	if len(result.FailedRecipeUpdates) > 0 {
		h.logger.Warn("category reference cleanup incomplete",
			zap.String("user_id", userID(r)),
			zap.Ints("failed_recipe_updates", result.FailedRecipeUpdates),
		)
	}
	if result.Empty() {
		api.NoContent(w)
		return
	}
	api.JSON(w, http.StatusOK, result)
}
