package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"savethespice-backend/internal/domain"
	"savethespice-backend/pkg/api"
	"savethespice-backend/pkg/utils"
)

// ShareService is the part of the share service the handlers use.
type ShareService interface {
	CreateShareLink(ctx context.Context, userID string, recipeID int) (domain.SharedRecipe, error)
	GetSharedRecipe(ctx context.Context, shareID string) (domain.SharedRecipe, error)
}

// ShareHandler serves share links.
type ShareHandler struct {
	shares ShareService
	logger *zap.Logger
}

// NewShareHandler creates a share handler.
func NewShareHandler(shares ShareService, logger *zap.Logger) *ShareHandler {
	return &ShareHandler{shares: shares, logger: logger}
}

// Create handles POST /api/share.
func (h *ShareHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.ShareLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		api.FromError(w, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		api.FromError(w, err)
		return
	}
	shared, err := h.shares.CreateShareLink(r.Context(), userID(r), *req.RecipeID)
	if err != nil {
		api.FromError(w, err)
		return
	}
	api.JSON(w, http.StatusCreated, shared)
}

// Get handles GET /public/share/{shareId}. No authentication is required.
func (h *ShareHandler) Get(w http.ResponseWriter, r *http.Request) {
	shared, err := h.shares.GetSharedRecipe(r.Context(), chi.URLParam(r, "shareId"))
	if err != nil {
		api.FromError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, shared)
}
