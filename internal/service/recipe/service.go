// Package recipe implements the recipe write path: id allocation, category resolution,
// image re-hosting and the conditional store writes, for single recipes and batches.
package recipe

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
	"savethespice-backend/internal/service/category"
)

// IDAllocator hands out sequential per-user ids.
type IDAllocator interface {
	NextID(ctx context.Context, userID string, entity domain.EntityType) (int, error)
}

// CategoryResolver maps category names to ids, creating missing categories.
type CategoryResolver interface {
	Resolve(ctx context.Context, userID string, names []string) (category.Resolution, error)
}

// ImageHost copies external images into storage the service controls.
type ImageHost interface {
	// Rehost returns the stored location of src.
	Rehost(ctx context.Context, src string) (string, error)
	// Remove deletes src when it is a hosted image and ignores anything else.
	Remove(ctx context.Context, src string) error
}

// Result is a written recipe plus the category resolution that produced its id set.
type Result struct {
	domain.Recipe
	category.Resolution
}

// Service implements recipe reads and writes.
type Service struct {
	store    repository.Store
	tables   repository.Tables
	ids      IDAllocator
	resolver CategoryResolver
	images   ImageHost
	executor *batch.Executor
	events   domain.EventBus
	clock    clock.Clock
	logger   *zap.Logger
}

// NewService creates a recipe service.
func NewService(
	store repository.Store,
	tables repository.Tables,
	ids IDAllocator,
	resolver CategoryResolver,
	images ImageHost,
	executor *batch.Executor,
	events domain.EventBus,
	clk clock.Clock,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:    store,
		tables:   tables,
		ids:      ids,
		resolver: resolver,
		images:   images,
		executor: executor,
		events:   events,
		clock:    clk,
		logger:   logger,
	}
}

// CreateRecipe stores a new recipe under a freshly allocated id.
func (s *Service) CreateRecipe(ctx context.Context, userID string, fields domain.RecipeFields) (Result, error) {
	return s.UpsertRecipe(ctx, userID, nil, fields)
}

// PutRecipe writes the supplied fields to the recipe with id, creating it if needed.
func (s *Service) PutRecipe(ctx context.Context, userID string, id int, fields domain.RecipeFields) (Result, error) {
	return s.UpsertRecipe(ctx, userID, &id, fields)
}

// UpsertRecipe creates a recipe when recipeID is nil and otherwise merges the supplied
// fields into the recipe with that id. Only supplied attributes are written and createTime
// is never changed. Category names are stored as the resolved id set.
func (s *Service) UpsertRecipe(ctx context.Context, userID string, recipeID *int, fields domain.RecipeFields) (Result, error) {
	create := recipeID == nil
	if err := fields.Validate(create); err != nil {
		return Result{}, err
	}
	if !create {
		if err := validID(*recipeID); err != nil {
			return Result{}, err
		}
	}

	var id int
	if create {
		next, err := s.ids.NextID(ctx, userID, domain.EntityRecipe)
		if err != nil {
			return Result{}, err
		}
		id = next
	} else {
		id = *recipeID
	}

	var resolution category.Resolution
	if fields.Categories != nil {
		res, err := s.resolver.Resolve(ctx, userID, fields.Categories)
		if err != nil {
			return Result{}, err
		}
		resolution = res
	}

	return s.write(ctx, userID, id, create, fields, resolution)
}

func (s *Service) write(ctx context.Context, userID string, id int, create bool, fields domain.RecipeFields, resolution category.Resolution) (Result, error) {
	update := repository.Update{Set: s.fieldValues(ctx, userID, fields)}
	if fields.Categories != nil {
		setCategories(&update, resolution.IDsFor(fields.Categories))
	}

	item, err := s.store.Upsert(ctx, s.tables.Recipes, s.key(userID, id), update)
	if err != nil {
		return Result{}, appErrors.Wrap(err, "UpsertRecipe", "failed to store recipe")
	}
	recipe, err := decode(item)
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("recipe stored",
		zap.String("user_id", userID),
		zap.Int("recipe_id", id),
		zap.Bool("created", create),
	)
	if create {
		s.publish(ctx, domain.NewEvent(domain.EventRecipeCreated, userID, s.clock.Now(), id))
	}
	return Result{Recipe: recipe, Resolution: resolution}, nil
}

// PutRecipesResult reports a batch create. FailedAdds holds indexes into the request.
type PutRecipesResult struct {
	Recipes    []domain.Recipe      `json:"recipes"`
	FailedAdds []int                `json:"failedAdds,omitempty"`
	Errors     []batch.Failure[int] `json:"errors,omitempty"`
	category.Resolution
}

// PutRecipes creates every recipe independently. Category names of the valid entries are
// resolved once so that concurrent items never create the same category twice.
func (s *Service) PutRecipes(ctx context.Context, userID string, recipes []domain.RecipeFields) PutRecipesResult {
	rejected := make(map[int]error)
	var valid []domain.RecipeFields
	for i, fields := range recipes {
		if err := fields.Validate(true); err != nil {
			rejected[i] = err
			continue
		}
		valid = append(valid, fields)
	}
	resolution, resolveErr := s.resolveAll(ctx, userID, categoryNames(valid))

	indexes := make([]int, len(recipes))
	for i := range recipes {
		indexes[i] = i
	}

	res := batch.Map(ctx, s.executor, indexes, func(ctx context.Context, i int) (domain.Recipe, error) {
		if err, ok := rejected[i]; ok {
			return domain.Recipe{}, err
		}
		fields := recipes[i]
		if fields.Categories != nil && resolveErr != nil {
			return domain.Recipe{}, resolveErr
		}
		id, err := s.ids.NextID(ctx, userID, domain.EntityRecipe)
		if err != nil {
			return domain.Recipe{}, err
		}
		written, err := s.write(ctx, userID, id, true, fields, resolution)
		return written.Recipe, err
	})

	out := PutRecipesResult{
		Recipes:    res.Values,
		FailedAdds: res.FailedIDs(),
		Errors:     res.Failed,
		Resolution: resolution,
	}
	if out.Recipes == nil {
		out.Recipes = []domain.Recipe{}
	}
	return out
}

// PatchRecipe applies a partial update to an existing recipe. Category ids to remove are
// deleted in a separate conditional write before the add/update write because one update
// expression cannot both add to and delete from the same set.
func (s *Service) PatchRecipe(ctx context.Context, userID string, id int, patch domain.RecipePatch) (Result, error) {
	if err := validID(id); err != nil {
		return Result{}, err
	}
	if err := patch.Validate(); err != nil {
		return Result{}, err
	}

	var resolution category.Resolution
	if names := patchNames(patch); names != nil {
		res, err := s.resolver.Resolve(ctx, userID, names)
		if err != nil {
			return Result{}, err
		}
		resolution = res
	}
	return s.patch(ctx, userID, id, patch, resolution)
}

func (s *Service) patch(ctx context.Context, userID string, id int, patch domain.RecipePatch, resolution category.Resolution) (Result, error) {
	key := s.key(userID, id)
	var item repository.Item

	removing := patch.Remove != nil && len(patch.Remove.Categories) > 0
	if removing {
		removed, err := s.store.Upsert(ctx, s.tables.Recipes, key, repository.Update{
			DeleteFromSet: map[string][]int{repository.AttrCategories: patch.Remove.Categories},
			RequireExists: true,
		})
		if err != nil {
			return Result{}, missing(err, "PatchRecipe", userID, id)
		}
		item = removed
	}

	update := repository.Update{RequireExists: true}
	if patch.Update != nil {
		update.Set = s.fieldValues(ctx, userID, *patch.Update)
		if patch.Update.Categories != nil {
			setCategories(&update, resolution.IDsFor(patch.Update.Categories))
		}
	}
	if patch.Add != nil {
		if ids := resolution.IDsFor(patch.Add.Categories); len(ids) > 0 {
			update.AddToSet = map[string][]int{repository.AttrCategories: ids}
		}
	}

	if !removing || patch.Update != nil || len(update.AddToSet) > 0 {
		updated, err := s.store.Upsert(ctx, s.tables.Recipes, key, update)
		if err != nil {
			return Result{}, missing(err, "PatchRecipe", userID, id)
		}
		item = updated
	}

	recipe, err := decode(item)
	if err != nil {
		return Result{}, err
	}
	s.logger.Info("recipe patched", zap.String("user_id", userID), zap.Int("recipe_id", id))
	return Result{Recipe: recipe, Resolution: resolution}, nil
}

// PatchRecipesResult reports a batch patch.
type PatchRecipesResult struct {
	FailedUpdates []int                `json:"failedUpdates,omitempty"`
	Errors        []batch.Failure[int] `json:"errors,omitempty"`
	category.Resolution
}

// Empty reports whether there is nothing to tell the caller.
func (r PatchRecipesResult) Empty() bool {
	return len(r.FailedUpdates) == 0 && len(r.Created) == 0 && len(r.Failed) == 0
}

// PatchRecipes patches every recipe independently.
func (s *Service) PatchRecipes(ctx context.Context, userID string, patches map[int]domain.RecipePatch) PatchRecipesResult {
	ids := make([]int, 0, len(patches))
	rejected := make(map[int]error)
	var names []string
	for id, p := range patches {
		ids = append(ids, id)
		if err := validatePatch(id, p); err != nil {
			rejected[id] = err
			continue
		}
		names = append(names, patchNames(p)...)
	}
	sort.Ints(ids)

	resolution, resolveErr := s.resolveAll(ctx, userID, names)

	report := batch.Apply(ctx, s.executor, ids, func(ctx context.Context, id int) error {
		if err, ok := rejected[id]; ok {
			return err
		}
		p := patches[id]
		if patchNames(p) != nil && resolveErr != nil {
			return resolveErr
		}
		_, err := s.patch(ctx, userID, id, p, resolution)
		return err
	})

	return PatchRecipesResult{
		FailedUpdates: report.FailedIDs(),
		Errors:        report.Failed,
		Resolution:    resolution,
	}
}

// GetRecipe returns one recipe.
func (s *Service) GetRecipe(ctx context.Context, userID string, id int) (domain.Recipe, error) {
	if err := validID(id); err != nil {
		return domain.Recipe{}, err
	}

	item, err := s.store.GetItem(ctx, s.tables.Recipes, s.key(userID, id))
	if err != nil {
		return domain.Recipe{}, appErrors.Wrap(err, "GetRecipe", "failed to read recipe")
	}
	if item == nil {
		return domain.Recipe{}, appErrors.NotFound(appErrors.CodeRecipeNotFound,
			fmt.Sprintf("user does not have a recipe with id %d", id)).
			WithResource("recipe").
			WithUserID(userID).
			Build()
	}
	return decode(item)
}

// ListRecipes returns all of the user's recipes. Results are not paginated.
func (s *Service) ListRecipes(ctx context.Context, userID string) ([]domain.Recipe, error) {
	items, err := s.store.Query(ctx, s.tables.Recipes, repository.UserKey(userID), repository.QueryOptions{})
	if err != nil {
		return nil, appErrors.Wrap(err, "ListRecipes", "failed to list recipes")
	}
	recipes := []domain.Recipe{}
	if err := repository.DecodeAll(items, &recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// DeleteRecipe deletes an existing recipe and its hosted image. Image removal failures
// are logged only.
func (s *Service) DeleteRecipe(ctx context.Context, userID string, id int) error {
	if err := validID(id); err != nil {
		return err
	}

	old, err := s.store.Delete(ctx, s.tables.Recipes, s.key(userID, id))
	if err != nil {
		return missing(err, "DeleteRecipe", userID, id)
	}
	s.logger.Info("recipe deleted", zap.String("user_id", userID), zap.Int("recipe_id", id))

	if recipe, err := decode(old); err == nil && recipe.ImgSrc != "" {
		if err := s.images.Remove(ctx, recipe.ImgSrc); err != nil {
			s.logger.Warn("failed to remove recipe image",
				zap.String("user_id", userID),
				zap.Int("recipe_id", id),
				zap.Error(err),
			)
		}
	}

	s.publish(ctx, domain.NewEvent(domain.EventRecipeDeleted, userID, s.clock.Now(), id))
	return nil
}

// DeleteRecipes deletes every recipe independently.
func (s *Service) DeleteRecipes(ctx context.Context, userID string, ids []int) batch.Report[int] {
	return batch.Apply(ctx, s.executor, ids, func(ctx context.Context, id int) error {
		return s.DeleteRecipe(ctx, userID, id)
	})
}

// fieldValues returns the supplied attributes of fields. The image is re-hosted first; a
// failed re-host drops the image rather than the write.
func (s *Service) fieldValues(ctx context.Context, userID string, fields domain.RecipeFields) map[string]any {
	set := make(map[string]any)
	for name, value := range map[string]string{
		"name":        fields.Name,
		"desc":        fields.Desc,
		"cookTime":    fields.CookTime,
		"yields":      fields.Yields,
		"adaptedFrom": fields.AdaptedFrom,
		"url":         fields.URL,
	} {
		if value != "" {
			set[name] = value
		}
	}
	if fields.Ingredients != nil {
		set["ingredients"] = fields.Ingredients
	}
	if fields.Instructions != nil {
		set["instructions"] = fields.Instructions
	}

	if fields.ImgSrc != "" {
		hosted, err := s.images.Rehost(ctx, fields.ImgSrc)
		if err != nil || hosted == "" {
			s.logger.Warn("image re-host failed, storing recipe without image",
				zap.String("user_id", userID),
				zap.String("img_src", fields.ImgSrc),
				zap.Error(err),
			)
		} else {
			set["imgSrc"] = hosted
		}
	}
	return set
}

func (s *Service) resolveAll(ctx context.Context, userID string, names []string) (category.Resolution, error) {
	if len(names) == 0 {
		return category.Resolution{}, nil
	}
	res, err := s.resolver.Resolve(ctx, userID, names)
	if err != nil {
		s.logger.Error("batch category resolution failed", zap.String("user_id", userID), zap.Error(err))
		return category.Resolution{}, err
	}
	return res, nil
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
	return repository.EntityKey(userID, repository.AttrRecipeID, id)
}

// setCategories replaces the category set. An empty set removes the attribute because
// the store cannot hold empty sets.
func setCategories(update *repository.Update, ids []int) {
	if len(ids) == 0 {
		update.Remove = append(update.Remove, repository.AttrCategories)
		return
	}
	if update.Set == nil {
		update.Set = make(map[string]any)
	}
	update.Set[repository.AttrCategories] = repository.NumberSet(ids)
}

func categoryNames(recipes []domain.RecipeFields) []string {
	var names []string
	for _, r := range recipes {
		names = append(names, r.Categories...)
	}
	return names
}

// patchNames returns the category names a patch needs resolved, or nil for none.
func patchNames(p domain.RecipePatch) []string {
	var names []string
	if p.Update != nil && p.Update.Categories != nil {
		names = append(names, p.Update.Categories...)
	}
	if p.Add != nil {
		names = append(names, p.Add.Categories...)
	}
	return names
}

func validatePatch(id int, p domain.RecipePatch) error {
	if err := validID(id); err != nil {
		return err
	}
	return p.Validate()
}

func decode(item repository.Item) (domain.Recipe, error) {
	var r domain.Recipe
	if err := repository.Decode(item, &r); err != nil {
		return domain.Recipe{}, err
	}
	return r, nil
}

func validID(id int) error {
	if id < 0 {
		return appErrors.Validation(appErrors.CodeInvalidID, fmt.Sprintf("%d is not a valid recipe id", id)).
			WithResource("recipe").
			Build()
	}
	return nil
}

func missing(err error, op, userID string, id int) error {
	if appErrors.IsPreconditionFailed(err) {
		return appErrors.PreconditionFailed(appErrors.CodeRecipeNotFound,
			fmt.Sprintf("user does not have a recipe with id %d", id)).
			WithOperation(op).
			WithResource("recipe").
			WithUserID(userID).
			WithCause(err).
			Build()
	}
	return appErrors.Wrap(err, op, "recipe write failed")
}
