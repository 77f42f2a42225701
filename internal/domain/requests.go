package domain

import (
	appErrors "savethespice-backend/internal/errors"
	"savethespice-backend/pkg/utils"
)

// RecipeFields are the writable attributes of a recipe. Empty strings and nil slices
// count as "not supplied" and leave the stored attribute untouched. Categories carry
// names; they are resolved to ids before the write. A non-nil empty Categories slice
// clears the recipe's category set.
type RecipeFields struct {
	Name         string   `json:"name,omitempty" validate:"omitempty,max=200"`
	Desc         string   `json:"desc,omitempty" validate:"omitempty,max=200"`
	CookTime     string   `json:"cookTime,omitempty"`
	Yields       string   `json:"yields,omitempty"`
	Ingredients  []string `json:"ingredients,omitempty"`
	Instructions []string `json:"instructions,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	AdaptedFrom  string   `json:"adaptedFrom,omitempty"`
	URL          string   `json:"url,omitempty" validate:"omitempty,max=2048"`
	ImgSrc       string   `json:"imgSrc,omitempty" validate:"omitempty,max=2048"`
}

// Validate checks the field tags. Name is required when creating.
func (f RecipeFields) Validate(create bool) error {
	if create && f.Name == "" {
		return appErrors.Validation(appErrors.CodeRecipeNameRequired, "recipe name is required").
			WithResource("recipe").
			Build()
	}
	return utils.ValidateStructAs(f, appErrors.CodeRecipeInvalid, "recipe")
}

// CategoryNames lists category names to attach to a recipe.
type CategoryNames struct {
	Categories []string `json:"categories"`
}

// CategoryIDs lists category ids to detach from a recipe.
type CategoryIDs struct {
	Categories []int `json:"categories"`
}

// RecipePatch is a partial update of an existing recipe.
type RecipePatch struct {
	Update *RecipeFields  `json:"update,omitempty"`
	Add    *CategoryNames `json:"add,omitempty"`
	Remove *CategoryIDs   `json:"remove,omitempty"`
}

// Validate rejects empty patches and patches that both replace and edit categories.
func (p RecipePatch) Validate() error {
	if p.Update == nil && p.Add == nil && p.Remove == nil {
		return appErrors.Validation(appErrors.CodeInvalidInput, "patch has no operations").
			WithResource("recipe").
			Build()
	}
	if p.Update != nil {
		if err := p.Update.Validate(false); err != nil {
			return err
		}
		if p.Update.Categories != nil && (p.addsCategories() || p.removesCategories()) {
			return appErrors.Validation(appErrors.CodeCategoryPatchClash,
				"categories cannot be updated and added or removed in one patch").
				WithResource("recipe").
				Build()
		}
	}
	return nil
}

func (p RecipePatch) addsCategories() bool {
	return p.Add != nil && len(p.Add.Categories) > 0
}

func (p RecipePatch) removesCategories() bool {
	return p.Remove != nil && len(p.Remove.Categories) > 0
}

// CategoryFields are the writable attributes of a category.
type CategoryFields struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// Validate checks the name length.
func (f CategoryFields) Validate() error {
	return utils.ValidateStructAs(f, appErrors.CodeCategoryInvalid, "category")
}

// CategoryPatch is a partial update of an existing category.
type CategoryPatch struct {
	Update CategoryFields `json:"update"`
}

// Validate checks the nested update.
func (p CategoryPatch) Validate() error {
	return utils.ValidateStructAs(p, appErrors.CodeCategoryInvalid, "category")
}

// ShareLinkRequest asks for a public copy of a recipe.
type ShareLinkRequest struct {
	RecipeID *int `json:"recipeId" validate:"required,min=0"`
}
