package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"savethespice-backend/internal/domain"
	"savethespice-backend/pkg/api"
)

// MetaService is the part of the user metadata service the handlers use.
type MetaService interface {
	CreateUser(ctx context.Context, userID string) (domain.UserMeta, error)
	GetShoppingList(ctx context.Context, userID string) ([]string, error)
	AppendShoppingList(ctx context.Context, userID string, items []string) ([]string, error)
	ReplaceShoppingList(ctx context.Context, userID string, items []string) ([]string, error)
}

// UserHandler serves /api/users and /api/shoppinglist.
type UserHandler struct {
	meta   MetaService
	logger *zap.Logger
}

// NewUserHandler creates a user handler.
func NewUserHandler(meta MetaService, logger *zap.Logger) *UserHandler {
	return &UserHandler{meta: meta, logger: logger}
}

// Create handles POST /api/users. Repeating it is harmless.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	meta, err := h.meta.CreateUser(r.Context(), userID(r))
	if err != nil {
		api.FromError(w, err)
		return
	}
	api.JSON(w, http.StatusCreated, meta)
}

// ShoppingList handles GET /api/shoppinglist.
func (h *UserHandler) ShoppingList(w http.ResponseWriter, r *http.Request) {
	items, err := h.meta.GetShoppingList(r.Context(), userID(r))
	if err != nil {
		api.FromError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, items)
}

// AppendShoppingList handles PATCH /api/shoppinglist.
func (h *UserHandler) AppendShoppingList(w http.ResponseWriter, r *http.Request) {
	h.updateShoppingList(w, r, h.meta.AppendShoppingList)
}

// ReplaceShoppingList handles PUT /api/shoppinglist.
func (h *UserHandler) ReplaceShoppingList(w http.ResponseWriter, r *http.Request) {
	h.updateShoppingList(w, r, h.meta.ReplaceShoppingList)
}

func (h *UserHandler) updateShoppingList(
	w http.ResponseWriter,
	r *http.Request,
	update func(context.Context, string, []string) ([]string, error),
) {
	var items []string
	if err := decodeJSON(w, r, &items); err != nil {
		api.FromError(w, err)
		return
	}
	if _, err := update(r.Context(), userID(r), items); err != nil {
		api.FromError(w, err)
		return
	}
	api.NoContent(w)
}
