package category

import (
	"context"
	"sort"
	"unicode/utf8"

	"go.uber.org/zap"

	"savethespice-backend/internal/domain"
	appErrors "savethespice-backend/internal/errors"
	"savethespice-backend/internal/repository"
)

// maxFilterNames is the most names pushed into a store-side IN filter.
const maxFilterNames = 100

// Resolution maps the category names of one recipe write to ids.
type Resolution struct {
	Existing []int             `json:"existingCategories,omitempty"`
	Created  []domain.Category `json:"newCategories,omitempty"`
	Failed   []string          `json:"categoryFailedAdds,omitempty"`

	byName map[string]int
}

// IDsFor returns the ids resolved for names, ascending. Names that failed are skipped.
func (r Resolution) IDsFor(names []string) []int {
	seen := make(map[int]struct{}, len(names))
	ids := make([]int, 0, len(names))
	for _, name := range names {
		id, ok := r.byName[name]
		if !ok {
			continue
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// IDs returns the union of existing and created ids, ascending and without duplicates.
func (r Resolution) IDs() []int {
	seen := make(map[int]struct{}, len(r.Existing)+len(r.Created))
	ids := make([]int, 0, len(r.Existing)+len(r.Created))
	add := func(id int) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, id := range r.Existing {
		add(id)
	}
	for _, c := range r.Created {
		add(c.CategoryID)
	}
	sort.Ints(ids)
	return ids
}

// Merge appends other to r.
func (r *Resolution) Merge(other Resolution) {
	r.Existing = append(r.Existing, other.Existing...)
	r.Created = append(r.Created, other.Created...)
	r.Failed = append(r.Failed, other.Failed...)
	for name, id := range other.byName {
		r.remember(name, id)
	}
}

func (r *Resolution) remember(name string, id int) {
	if r.byName == nil {
		r.byName = make(map[string]int)
	}
	r.byName[name] = id
}

// Resolve maps names to category ids, creating a category for every name the user does
// not have yet. Names are matched by exact string equality and de-duplicated, so one call
// creates at most one category per distinct name. A name whose creation fails lands in
// Failed without aborting the others. Only a failed lookup of existing categories is
// returned as an error.
//
// Two concurrent calls introducing the same new name can both create it; there is no
// name index to make the create conditional.
func (s *Service) Resolve(ctx context.Context, userID string, names []string) (Resolution, error) {
	var res Resolution

	wanted := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if n := utf8.RuneCountInString(name); n < 1 || n > domain.MaxNameLength {
			res.Failed = append(res.Failed, name)
			continue
		}
		wanted = append(wanted, name)
	}
	if len(wanted) == 0 {
		return res, nil
	}

	opts := repository.QueryOptions{
		Projection: []string{repository.AttrCategoryID, repository.AttrName},
	}
	if len(wanted) <= maxFilterNames {
		in := make([]any, len(wanted))
		for i, name := range wanted {
			in[i] = name
		}
		opts.Filter = &repository.Filter{Attribute: repository.AttrName, In: in}
	}

	items, err := s.store.Query(ctx, s.tables.Categories, repository.UserKey(userID), opts)
	if err != nil {
		return Resolution{}, appErrors.Wrap(err, "Resolve", "failed to look up categories")
	}
	var existing []domain.Category
	if err := repository.DecodeAll(items, &existing); err != nil {
		return Resolution{}, err
	}

	byName := make(map[string]int, len(existing))
	for _, c := range existing {
		if _, ok := seen[c.Name]; !ok {
			continue
		}
		if id, ok := byName[c.Name]; !ok || c.CategoryID < id {
			byName[c.Name] = c.CategoryID
		}
	}

	var missing []string
	for _, name := range wanted {
		if id, ok := byName[name]; ok {
			res.Existing = append(res.Existing, id)
			res.remember(name, id)
		} else {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return res, nil
	}

	s.logger.Info("creating categories",
		zap.String("user_id", userID),
		zap.Strings("names", missing),
	)
	for _, name := range missing {
		created, err := s.create(ctx, userID, name)
		if err != nil {
			s.logger.Warn("category creation failed",
				zap.String("user_id", userID),
				zap.String("name", name),
				zap.Error(err),
			)
			res.Failed = append(res.Failed, name)
			continue
		}
		res.Created = append(res.Created, created)
		res.remember(name, created.CategoryID)
	}

	if len(res.Created) > 0 {
		ids := make([]int, len(res.Created))
		for i, c := range res.Created {
			ids[i] = c.CategoryID
		}
		s.publish(ctx, domain.NewEvent(domain.EventCategoryCreated, userID, s.clock.Now(), ids...))
	}
	return res, nil
}
