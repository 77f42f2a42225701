// Package meta manages the per-user metadata record: sign-up and the shopping list.
package meta

import (
	"context"

	"go.uber.org/zap"

	"savethespice-backend/internal/domain"
	appErrors "savethespice-backend/internal/errors"
	"savethespice-backend/internal/repository"
)

const attrShoppingList = "shoppingList"

// Service reads and writes user metadata.
type Service struct {
	store  repository.Store
	table  string
	logger *zap.Logger
}

// NewService creates a metadata service over the meta table.
func NewService(store repository.Store, tables repository.Tables, logger *zap.Logger) *Service {
	return &Service{store: store, table: tables.Meta, logger: logger}
}

// CreateUser makes sure the user's metadata record exists. Existing counters and lists
// are left alone, so calling it twice is harmless.
func (s *Service) CreateUser(ctx context.Context, userID string) (domain.UserMeta, error) {
	if userID == "" {
		return domain.UserMeta{}, appErrors.Validation(appErrors.CodeUserIDEmpty, "user id cannot be empty").Build()
	}

	item, err := s.store.Upsert(ctx, s.table, repository.UserKey(userID), repository.Update{})
	if err != nil {
		return domain.UserMeta{}, appErrors.Wrap(err, "CreateUser", "failed to create user")
	}
	meta, err := decode(item)
	if err != nil {
		return domain.UserMeta{}, err
	}

	s.logger.Info("user created", zap.String("user_id", userID))
	return meta, nil
}

// GetShoppingList returns the user's shopping list, empty when none was saved or the
// user has no record.
func (s *Service) GetShoppingList(ctx context.Context, userID string) ([]string, error) {
	item, err := s.store.GetItem(ctx, s.table, repository.UserKey(userID), attrShoppingList)
	if err != nil {
		return nil, appErrors.Wrap(err, "GetShoppingList", "failed to read shopping list")
	}
	if item == nil {
		return []string{}, nil
	}
	return shoppingList(item)
}

// AppendShoppingList appends items to the list, starting one when the user has none yet.
func (s *Service) AppendShoppingList(ctx context.Context, userID string, items []string) ([]string, error) {
	if len(items) == 0 {
		return nil, appErrors.Validation(appErrors.CodeInvalidInput, "no shopping list items supplied").Build()
	}

	values := make([]any, len(items))
	for i, v := range items {
		values[i] = v
	}
	item, err := s.store.Upsert(ctx, s.table, repository.UserKey(userID), repository.Update{
		AppendToList:      map[string][]any{attrShoppingList: values},
		RequireExists:     true,
		RequireAttributes: []string{attrShoppingList},
	})
	if appErrors.IsPreconditionFailed(err) {
		s.logger.Debug("no shopping list yet, setting it", zap.String("user_id", userID))
		return s.ReplaceShoppingList(ctx, userID, items)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, "AppendShoppingList", "failed to update shopping list")
	}
	return shoppingList(item)
}

// ReplaceShoppingList overwrites the list. The user must exist.
func (s *Service) ReplaceShoppingList(ctx context.Context, userID string, items []string) ([]string, error) {
	if items == nil {
		items = []string{}
	}
	item, err := s.store.Upsert(ctx, s.table, repository.UserKey(userID), repository.Update{
		Set:           map[string]any{attrShoppingList: items},
		RequireExists: true,
	})
	if appErrors.IsPreconditionFailed(err) {
		return nil, userNotFound(userID, err)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, "ReplaceShoppingList", "failed to save shopping list")
	}
	return shoppingList(item)
}

func shoppingList(item repository.Item) ([]string, error) {
	meta, err := decode(item)
	if err != nil {
		return nil, err
	}
	return meta.ShoppingList, nil
}

func decode(item repository.Item) (domain.UserMeta, error) {
	var m domain.UserMeta
	if err := repository.Decode(item, &m); err != nil {
		return domain.UserMeta{}, err
	}
	if m.ShoppingList == nil {
		m.ShoppingList = []string{}
	}
	return m, nil
}

func userNotFound(userID string, cause error) error {
	return appErrors.NotFound(appErrors.CodeUserNotFound, "user does not exist").
		WithResource("user").
		WithUserID(userID).
		WithCause(cause).
		Build()
}
