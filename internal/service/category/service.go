// Package category manages categories and resolves recipe category names to ids.
package category

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"savethespice-backend/internal/clock"
	"savethespice-backend/internal/domain"
	appErrors "savethespice-backend/internal/errors"
	"savethespice-backend/internal/repository"
	"savethespice-backend/internal/service/batch"
	"savethespice-backend/internal/service/relationship"
)

// IDAllocator hands out sequential per-user ids.
type IDAllocator interface {
	NextID(ctx context.Context, userID string, entity domain.EntityType) (int, error)
}

// ReferenceRemover strips deleted category ids from recipes.
type ReferenceRemover interface {
	RemoveCategoryReferences(ctx context.Context, userID string, categoryIDs []int) (relationship.Cleanup, error)
}

// DeleteResult reports a category deletion and the recipe cleanup that followed it.
type DeleteResult struct {
	FailedDeletions     []int                `json:"failedDeletions,omitempty"`
	Errors              []batch.Failure[int] `json:"errors,omitempty"`
	UpdatedRecipes      []int                `json:"updatedRecipes,omitempty"`
	FailedRecipeUpdates []int                `json:"failedRecipeUpdates,omitempty"`
}

// Empty reports whether there is nothing to tell the caller.
func (r DeleteResult) Empty() bool {
	return len(r.FailedDeletions) == 0 && len(r.UpdatedRecipes) == 0 && len(r.FailedRecipeUpdates) == 0
}

// Service implements category reads and writes.
type Service struct {
	store    repository.Store
	tables   repository.Tables
	ids      IDAllocator
	refs     ReferenceRemover
	executor *batch.Executor
	events   domain.EventBus
	clock    clock.Clock
	logger   *zap.Logger
}

// NewService creates a category service.
func NewService(
	store repository.Store,
	tables repository.Tables,
	ids IDAllocator,
	refs ReferenceRemover,
	executor *batch.Executor,
	events domain.EventBus,
	clk clock.Clock,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:    store,
		tables:   tables,
		ids:      ids,
		refs:     refs,
		executor: executor,
		events:   events,
		clock:    clk,
		logger:   logger,
	}
}

// CreateCategory allocates an id and stores a new category.
func (s *Service) CreateCategory(ctx context.Context, userID string, fields domain.CategoryFields) (domain.Category, error) {
	if err := fields.Validate(); err != nil {
		return domain.Category{}, err
	}

	category, err := s.create(ctx, userID, fields.Name)
	if err != nil {
		return domain.Category{}, err
	}

	s.logger.Info("category created",
		zap.String("user_id", userID),
		zap.Int("category_id", category.CategoryID),
	)
	s.publish(ctx, domain.NewEvent(domain.EventCategoryCreated, userID, s.clock.Now(), category.CategoryID))
	return category, nil
}

// PutCategory writes the category under id whether or not it exists. createTime is kept
// when it does.
func (s *Service) PutCategory(ctx context.Context, userID string, id int, fields domain.CategoryFields) (domain.Category, error) {
	if err := validID(id); err != nil {
		return domain.Category{}, err
	}
	if err := fields.Validate(); err != nil {
		return domain.Category{}, err
	}

	item, err := s.store.Upsert(ctx, s.tables.Categories, s.key(userID, id), repository.Update{
		Set: map[string]any{repository.AttrName: fields.Name},
	})
	if err != nil {
		return domain.Category{}, appErrors.Wrap(err, "PutCategory", "failed to store category")
	}
	return decode(item)
}

// PatchCategory updates an existing category. It fails without writing when the category
// does not exist.
func (s *Service) PatchCategory(ctx context.Context, userID string, id int, patch domain.CategoryPatch) (domain.Category, error) {
	if err := validID(id); err != nil {
		return domain.Category{}, err
	}
	if err := patch.Validate(); err != nil {
		return domain.Category{}, err
	}

	item, err := s.store.Upsert(ctx, s.tables.Categories, s.key(userID, id), repository.Update{
		Set:           map[string]any{repository.AttrName: patch.Update.Name},
		RequireExists: true,
	})
	if err != nil {
		return domain.Category{}, missing(err, "PatchCategory", userID, id)
	}
	return decode(item)
}

// PatchCategories patches every category independently.
func (s *Service) PatchCategories(ctx context.Context, userID string, patches map[int]domain.CategoryPatch) batch.Report[int] {
	ids := make([]int, 0, len(patches))
	for id := range patches {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	return batch.Apply(ctx, s.executor, ids, func(ctx context.Context, id int) error {
		_, err := s.PatchCategory(ctx, userID, id, patches[id])
		return err
	})
}

// GetCategory returns one category.
func (s *Service) GetCategory(ctx context.Context, userID string, id int) (domain.Category, error) {
	if err := validID(id); err != nil {
		return domain.Category{}, err
	}

	item, err := s.store.GetItem(ctx, s.tables.Categories, s.key(userID, id))
	if err != nil {
		return domain.Category{}, appErrors.Wrap(err, "GetCategory", "failed to read category")
	}
	if item == nil {
		return domain.Category{}, appErrors.NotFound(appErrors.CodeCategoryNotFound,
			fmt.Sprintf("user does not have a category with id %d", id)).
			WithResource("category").
			WithUserID(userID).
			Build()
	}
	return decode(item)
}

// ListCategories returns all of the user's categories.
func (s *Service) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	items, err := s.store.Query(ctx, s.tables.Categories, repository.UserKey(userID), repository.QueryOptions{})
	if err != nil {
		return nil, appErrors.Wrap(err, "ListCategories", "failed to list categories")
	}
	categories := []domain.Category{}
	if err := repository.DecodeAll(items, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// CategoryNames maps ids to names. Ids without a category are skipped.
func (s *Service) CategoryNames(ctx context.Context, userID string, ids []int) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	categories, err := s.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]string, len(categories))
	for _, c := range categories {
		byID[c.CategoryID] = c.Name
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := byID[id]; ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// DeleteCategory deletes an existing category and removes its id from every recipe.
// Cleanup chunk failures are reported in the result, not as an error.
func (s *Service) DeleteCategory(ctx context.Context, userID string, id int) (DeleteResult, error) {
	if err := s.deleteRow(ctx, userID, id); err != nil {
		return DeleteResult{}, err
	}

	var result DeleteResult
	if err := s.cleanup(ctx, userID, []int{id}, &result); err != nil {
		return DeleteResult{}, err
	}
	return result, nil
}

// DeleteCategories deletes each category independently, then cleans up recipes once for
// the categories that were actually deleted.
func (s *Service) DeleteCategories(ctx context.Context, userID string, ids []int) (DeleteResult, error) {
	report := batch.Apply(ctx, s.executor, ids, func(ctx context.Context, id int) error {
		return s.deleteRow(ctx, userID, id)
	})

	result := DeleteResult{
		FailedDeletions: report.FailedIDs(),
		Errors:          report.Failed,
	}
	if len(report.Succeeded) == 0 {
		return result, nil
	}
	if err := s.cleanup(ctx, userID, report.Succeeded, &result); err != nil {
		return DeleteResult{}, err
	}
	return result, nil
}

func (s *Service) deleteRow(ctx context.Context, userID string, id int) error {
	if err := validID(id); err != nil {
		return err
	}
	if _, err := s.store.Delete(ctx, s.tables.Categories, s.key(userID, id)); err != nil {
		return missing(err, "DeleteCategory", userID, id)
	}
	s.logger.Info("category deleted", zap.String("user_id", userID), zap.Int("category_id", id))
	return nil
}

// cleanup removes references to deleted categories. A failed recipe scan is returned: the
// category rows are already gone and the references stay until a sweep.
func (s *Service) cleanup(ctx context.Context, userID string, deleted []int, result *DeleteResult) error {
	s.publish(ctx, domain.NewEvent(domain.EventCategoryDeleted, userID, s.clock.Now(), deleted...))

	cleanup, err := s.refs.RemoveCategoryReferences(ctx, userID, deleted)
	if err != nil && !appErrors.IsPartialFailure(err) {
		return appErrors.Wrap(err, "DeleteCategory", "categories deleted but recipe references were not removed")
	}
	if err != nil {
		s.logger.Warn("recipe references partially removed",
			zap.String("user_id", userID),
			zap.Ints("failed_recipe_ids", cleanup.Failed),
			zap.Error(err),
		)
	}

	result.UpdatedRecipes = cleanup.Updated()
	result.FailedRecipeUpdates = cleanup.Failed
	return nil
}

func (s *Service) create(ctx context.Context, userID, name string) (domain.Category, error) {
	id, err := s.ids.NextID(ctx, userID, domain.EntityCategory)
	if err != nil {
		return domain.Category{}, err
	}

	item, err := s.store.Upsert(ctx, s.tables.Categories, s.key(userID, id), repository.Update{
		Set: map[string]any{repository.AttrName: name},
	})
	if err != nil {
		return domain.Category{}, appErrors.Wrap(err, "CreateCategory", "failed to store category")
	}
	return decode(item)
}

func (s *Service) publish(ctx context.Context, event domain.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("event_type", event.Type),
			zap.String("user_id", event.UserID),
			zap.Error(err),
		)
	}
}

func (s *Service) key(userID string, id int) repository.Key {
	return repository.EntityKey(userID, repository.AttrCategoryID, id)
}

func decode(item repository.Item) (domain.Category, error) {
	var c domain.Category
	if err := repository.Decode(item, &c); err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

func validID(id int) error {
	if id < 0 {
		return appErrors.Validation(appErrors.CodeInvalidID, fmt.Sprintf("%d is not a valid category id", id)).
			WithResource("category").
			Build()
	}
	return nil
}

func missing(err error, op, userID string, id int) error {
	if appErrors.IsPreconditionFailed(err) {
		return appErrors.PreconditionFailed(appErrors.CodeCategoryNotFound,
			fmt.Sprintf("user does not have a category with id %d", id)).
			WithOperation(op).
			WithResource("category").
			WithUserID(userID).
			WithCause(err).
			Build()
	}
	return appErrors.Wrap(err, op, "category write failed")
}
