// Package identity allocates per-user sequential entity ids.
package identity

import (
	"context"

	"go.uber.org/zap"

	"savethespice-backend/internal/domain"
	appErrors "savethespice-backend/internal/errors"
	"savethespice-backend/internal/repository"
)

// Allocator hands out ids from the counters on the user metadata record. Atomicity comes
// from the store's ADD primitive; there is no locking and no retry here.
type Allocator struct {
	store  repository.Store
	table  string
	logger *zap.Logger
}

// NewAllocator creates an allocator over the metadata table.
func NewAllocator(store repository.Store, tables repository.Tables, logger *zap.Logger) *Allocator {
	return &Allocator{
		store:  store,
		table:  tables.Meta,
		logger: logger,
	}
}

// NextID returns the pre-increment value of the entity type's counter. The first id of a
// fresh user is 0; a missing metadata record is created by the increment.
func (a *Allocator) NextID(ctx context.Context, userID string, entity domain.EntityType) (int, error) {
	if userID == "" {
		return 0, appErrors.Validation(appErrors.CodeUserIDEmpty, "user id cannot be empty").Build()
	}
	if !entity.Valid() {
		return 0, appErrors.Validation(appErrors.CodeInvalidInput, "unknown entity type").
			WithDetails(string(entity)).
			Build()
	}

	id, err := a.store.Increment(ctx, a.table, repository.UserKey(userID), entity.CounterField(), 1)
	if err != nil {
		return 0, appErrors.Wrap(err, "NextID", "failed to allocate "+string(entity)+" id")
	}

	a.logger.Debug("allocated id",
		zap.String("user_id", userID),
		zap.String("entity", string(entity)),
		zap.Int("id", id),
	)
	return id, nil
}
