// Package repository defines the entity store contract used by every service.
//
// Items are kept in DynamoDB attribute-value form so that the DynamoDB adapter and the
// in-memory adapter share one data model: sets are number sets, lists are lists and
// timestamps are strings. Services convert between items and domain records with
// Decode and the attributevalue tags on the domain types.
package repository

import (
	"context"
	"slices"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names shared by all tables.
const (
	AttrUserID     = "userId"
	AttrRecipeID   = "recipeId"
	AttrCategoryID = "categoryId"
	AttrShareID    = "shareId"
	AttrCreateTime = "createTime"
	AttrUpdateTime = "updateTime"
	AttrCategories = "categories"
	AttrName       = "name"
)

// MaxTransactItems is the largest number of items one TransactUpdate call accepts.
const MaxTransactItems = 25

// Item is one stored record.
type Item map[string]types.AttributeValue

// Key identifies one record: the partition key and, for ranged tables, the sort key.
type Key map[string]types.AttributeValue

// Tables holds the physical table names.
type Tables struct {
	Recipes    string
	Categories string
	Meta       string
	Share      string
}

// Store is the entity store adapter. All operations are scoped to the key they receive;
// no operation spans partitions except TransactUpdate, which callers keep within one user.
type Store interface {
	// GetItem returns the item or nil when it does not exist. A projected read of an
	// existing item also carries the key attributes.
	GetItem(ctx context.Context, table string, key Key, projection ...string) (Item, error)

	// Query returns every item in the partition. Results are not paginated.
	Query(ctx context.Context, table string, partition Key, opts QueryOptions) ([]Item, error)

	// Upsert applies update to the keyed item, creating it unless the update carries an
	// existence condition. createTime is set only when absent and updateTime is always
	// stamped. The full item after the write is returned.
	Upsert(ctx context.Context, table string, key Key, update Update) (Item, error)

	// Delete removes the keyed item and returns its previous attributes. It fails with a
	// PRECONDITION_FAILED error when the item does not exist.
	Delete(ctx context.Context, table string, key Key) (Item, error)

	// Increment atomically adds delta to a numeric attribute and returns the value before
	// the add. A missing item or attribute counts as zero.
	Increment(ctx context.Context, table string, key Key, field string, delta int) (int, error)

	// TransactUpdate applies all updates or none. At most MaxTransactItems are accepted.
	TransactUpdate(ctx context.Context, items []TransactItem) error
}

// QueryOptions narrows a partition query.
type QueryOptions struct {
	Projection []string
	Filter     *Filter
}

// Filter keeps items whose Attribute equals one of In.
type Filter struct {
	Attribute string
	In        []any
}

// Update describes the attribute changes of one write.
type Update struct {
	// Set overwrites attributes. Values are Go values marshalled with attributevalue.
	Set map[string]any
	// AddToSet adds numbers to number-set attributes.
	AddToSet map[string][]int
	// DeleteFromSet removes numbers from number-set attributes.
	DeleteFromSet map[string][]int
	// AppendToList appends to list attributes, which must already exist.
	AppendToList map[string][]any
	// Remove deletes attributes.
	Remove []string

	// RequireExists makes the write conditional on the keyed item existing.
	RequireExists bool
	// RequireAttributes makes the write conditional on these attributes existing.
	RequireAttributes []string
}

// TransactItem is one member of a TransactUpdate.
type TransactItem struct {
	Table  string
	Key    Key
	Update Update
}

// UserKey addresses a partition-only record such as the user metadata record.
func UserKey(userID string) Key {
	return Key{AttrUserID: &types.AttributeValueMemberS{Value: userID}}
}

// EntityKey addresses a per-user entity by its numeric id attribute.
func EntityKey(userID, idAttr string, id int) Key {
	return Key{
		AttrUserID: &types.AttributeValueMemberS{Value: userID},
		idAttr:     &types.AttributeValueMemberN{Value: strconv.Itoa(id)},
	}
}

// ShareKey addresses a shared recipe copy.
func ShareKey(shareID string) Key {
	return Key{AttrShareID: &types.AttributeValueMemberS{Value: shareID}}
}

// Names returns the attribute names of the key.
func (k Key) Names() []string {
	names := make([]string, 0, len(k))
	for name := range k {
		names = append(names, name)
	}
	return names
}

// ProjectWithKey extends a projection with the key's attribute names, so a projected
// read of an existing item is never empty. An empty projection stays empty.
func ProjectWithKey(key Key, projection []string) []string {
	if len(projection) == 0 {
		return nil
	}
	names := append([]string(nil), projection...)
	keyNames := key.Names()
	sort.Strings(keyNames)
	for _, name := range keyNames {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

// NumberSet marshals to a DynamoDB number set. An empty set marshals to NULL because
// DynamoDB rejects empty sets.
type NumberSet []int

// MarshalDynamoDBAttributeValue implements attributevalue.Marshaler.
func (s NumberSet) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	if len(s) == 0 {
		return &types.AttributeValueMemberNULL{Value: true}, nil
	}
	return &types.AttributeValueMemberNS{Value: FormatNumbers(s)}, nil
}

// FormatNumbers renders ints as DynamoDB number strings.
func FormatNumbers(ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.Itoa(id)
	}
	return out
}
