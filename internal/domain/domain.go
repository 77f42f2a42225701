// Package domain holds the records stored per user and the request shapes that mutate them.
//
// Recipes and categories are peers related only through the category-id set on each
// recipe. There is no reverse index; finding the recipes that reference a category
// means scanning the user's recipes.
package domain

// EntityType names a kind of entity that receives sequential per-user ids.
type EntityType string

const (
	EntityRecipe   EntityType = "recipe"
	EntityCategory EntityType = "category"
)

// CounterField returns the metadata attribute that holds the next id for the type.
func (t EntityType) CounterField() string {
	switch t {
	case EntityRecipe:
		return "nextRecipeId"
	case EntityCategory:
		return "nextCategoryId"
	default:
		return ""
	}
}

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	return t.CounterField() != ""
}

// MaxNameLength bounds category names.
const MaxNameLength = 200

// Recipe is one stored recipe.
type Recipe struct {
	UserID       string   `dynamodbav:"userId" json:"-"`
	RecipeID     int      `dynamodbav:"recipeId" json:"recipeId"`
	Name         string   `dynamodbav:"name,omitempty" json:"name,omitempty"`
	Desc         string   `dynamodbav:"desc,omitempty" json:"desc,omitempty"`
	CookTime     string   `dynamodbav:"cookTime,omitempty" json:"cookTime,omitempty"`
	Yields       string   `dynamodbav:"yields,omitempty" json:"yields,omitempty"`
	Ingredients  []string `dynamodbav:"ingredients,omitempty" json:"ingredients,omitempty"`
	Instructions []string `dynamodbav:"instructions,omitempty" json:"instructions,omitempty"`
	Categories   []int    `dynamodbav:"categories,numberset,omitempty" json:"categories,omitempty"`
	AdaptedFrom  string   `dynamodbav:"adaptedFrom,omitempty" json:"adaptedFrom,omitempty"`
	URL          string   `dynamodbav:"url,omitempty" json:"url,omitempty"`
	ImgSrc       string   `dynamodbav:"imgSrc,omitempty" json:"imgSrc,omitempty"`
	CreateTime   string   `dynamodbav:"createTime,omitempty" json:"createTime,omitempty"`
	UpdateTime   string   `dynamodbav:"updateTime,omitempty" json:"updateTime,omitempty"`
}

// HasCategory reports whether the recipe references id.
func (r Recipe) HasCategory(id int) bool {
	for _, c := range r.Categories {
		if c == id {
			return true
		}
	}
	return false
}

// Category is one stored category.
type Category struct {
	UserID     string `dynamodbav:"userId" json:"-"`
	CategoryID int    `dynamodbav:"categoryId" json:"categoryId"`
	Name       string `dynamodbav:"name" json:"name"`
	CreateTime string `dynamodbav:"createTime,omitempty" json:"createTime,omitempty"`
	UpdateTime string `dynamodbav:"updateTime,omitempty" json:"updateTime,omitempty"`
}

// UserMeta is the per-user metadata record holding the id counters.
type UserMeta struct {
	UserID         string   `dynamodbav:"userId" json:"userId"`
	NextRecipeID   int      `dynamodbav:"nextRecipeId" json:"nextRecipeId"`
	NextCategoryID int      `dynamodbav:"nextCategoryId" json:"nextCategoryId"`
	ShoppingList   []string `dynamodbav:"shoppingList" json:"shoppingList"`
	CreateTime     string   `dynamodbav:"createTime,omitempty" json:"createTime,omitempty"`
	UpdateTime     string   `dynamodbav:"updateTime,omitempty" json:"updateTime,omitempty"`
}

// SharedRecipe is a public, expiring copy of a recipe. Categories hold names, not ids.
type SharedRecipe struct {
	ShareID      string   `dynamodbav:"shareId" json:"shareId"`
	Name         string   `dynamodbav:"name,omitempty" json:"name,omitempty"`
	Desc         string   `dynamodbav:"desc,omitempty" json:"desc,omitempty"`
	CookTime     string   `dynamodbav:"cookTime,omitempty" json:"cookTime,omitempty"`
	Yields       string   `dynamodbav:"yields,omitempty" json:"yields,omitempty"`
	Ingredients  []string `dynamodbav:"ingredients,omitempty" json:"ingredients,omitempty"`
	Instructions []string `dynamodbav:"instructions,omitempty" json:"instructions,omitempty"`
	Categories   []string `dynamodbav:"categories,omitempty" json:"categories,omitempty"`
	AdaptedFrom  string   `dynamodbav:"adaptedFrom,omitempty" json:"adaptedFrom,omitempty"`
	URL          string   `dynamodbav:"url,omitempty" json:"url,omitempty"`
	ImgSrc       string   `dynamodbav:"imgSrc,omitempty" json:"imgSrc,omitempty"`
	TTL          int64    `dynamodbav:"ttl" json:"ttl"`
	CreateTime   string   `dynamodbav:"createTime,omitempty" json:"createTime,omitempty"`
	UpdateTime   string   `dynamodbav:"updateTime,omitempty" json:"updateTime,omitempty"`
}
