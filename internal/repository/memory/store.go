// Package memory implements repository.Store in process memory.
//
// It reproduces the DynamoDB semantics the services depend on: conditional writes,
// if_not_exists creation stamps, atomic counters, number-set ADD/DELETE, list_append and
// all-or-nothing transactions. Faults can be injected per method for tests.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"savethespice-backend/internal/clock"
	appErrors "savethespice-backend/internal/errors"
	"savethespice-backend/internal/repository"
)

type entry struct {
	key  repository.Key
	item repository.Item
}

// Store is an in-memory entity store safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	clock  clock.Clock
	tables map[string]map[string]*entry

	errs          map[string]error
	transactFails map[int]error
	calls         map[string]int
}

var _ repository.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore(clk clock.Clock) *Store {
	return &Store{
		clock:         clk,
		tables:        make(map[string]map[string]*entry),
		errs:          make(map[string]error),
		transactFails: make(map[int]error),
		calls:         make(map[string]int),
	}
}

// ============================================================================
// FAULT INJECTION
// ============================================================================

// SetError makes every call of method fail with err until cleared with a nil err.
func (s *Store) SetError(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, method)
		return
	}
	s.errs[method] = err
}

// FailTransactionAt makes the n-th TransactUpdate call (1-based) fail with err without
// applying any of its items.
func (s *Store) FailTransactionAt(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactFails[n] = err
}

// Calls returns how many times method was invoked.
func (s *Store) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Store) begin(method string) error {
	s.calls[method]++
	return s.errs[method]
}

// ============================================================================
// STORE OPERATIONS
// ============================================================================

// GetItem returns a copy of the keyed item, projected when names are given.
func (s *Store) GetItem(_ context.Context, table string, key repository.Key, projection ...string) (repository.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("GetItem"); err != nil {
		return nil, err
	}

	e, ok := s.table(table)[encodeKey(key)]
	if !ok {
		return nil, nil
	}
	return project(e.item, repository.ProjectWithKey(key, projection)), nil
}

// Query returns every item in the partition ordered by sort key.
func (s *Store) Query(_ context.Context, table string, partition repository.Key, opts repository.QueryOptions) ([]repository.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("Query"); err != nil {
		return nil, err
	}
	if len(partition) != 1 {
		return nil, appErrors.Validation(appErrors.CodeInvalidInput, "query needs exactly one partition attribute").Build()
	}

	var partitionName string
	var partitionValue types.AttributeValue
	for name, value := range partition {
		partitionName, partitionValue = name, value
	}

	var filterValues []types.AttributeValue
	if opts.Filter != nil {
		for _, v := range opts.Filter.In {
			av, err := repository.MarshalValue(v)
			if err != nil {
				return nil, err
			}
			filterValues = append(filterValues, av)
		}
	}

	var matches []*entry
	for _, e := range s.table(table) {
		if !reflect.DeepEqual(e.key[partitionName], partitionValue) {
			continue
		}
		if opts.Filter != nil && len(filterValues) > 0 && !containsValue(filterValues, e.item[opts.Filter.Attribute]) {
			continue
		}
		matches = append(matches, e)
	}

	sort.Slice(matches, func(i, j int) bool {
		return sortValue(matches[i].key, partitionName) < sortValue(matches[j].key, partitionName)
	})

	items := make([]repository.Item, 0, len(matches))
	for _, e := range matches {
		items = append(items, project(e.item, opts.Projection))
	}
	return items, nil
}

// Upsert applies update to the keyed item.
func (s *Store) Upsert(_ context.Context, table string, key repository.Key, update repository.Update) (repository.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("Upsert"); err != nil {
		return nil, err
	}

	t := s.table(table)
	encoded := encodeKey(key)
	var current repository.Item
	if e, ok := t[encoded]; ok {
		current = e.item
	}

	next, err := s.apply(table, key, current, update, clock.Stamp(s.clock.Now()))
	if err != nil {
		return nil, err
	}
	t[encoded] = &entry{key: key, item: next}
	return copyItem(next), nil
}

// Delete removes an existing item.
func (s *Store) Delete(_ context.Context, table string, key repository.Key) (repository.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("Delete"); err != nil {
		return nil, err
	}

	t := s.table(table)
	encoded := encodeKey(key)
	e, ok := t[encoded]
	if !ok {
		return nil, conditionFailed("Delete", table)
	}
	delete(t, encoded)
	return e.item, nil
}

// Increment adds delta to a numeric attribute and returns the previous value.
func (s *Store) Increment(_ context.Context, table string, key repository.Key, field string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("Increment"); err != nil {
		return 0, err
	}

	t := s.table(table)
	encoded := encodeKey(key)
	e, ok := t[encoded]
	if !ok {
		e = &entry{key: key, item: keyItem(key)}
		t[encoded] = e
	}

	old := 0
	if n, ok := e.item[field].(*types.AttributeValueMemberN); ok {
		v, err := strconv.Atoi(n.Value)
		if err != nil {
			return 0, appErrors.Internal(appErrors.CodeMarshalFailed, "counter is not an integer").Build()
		}
		old = v
	}

	next := copyItem(e.item)
	next[field] = &types.AttributeValueMemberN{Value: strconv.Itoa(old + delta)}
	e.item = next
	return old, nil
}

// TransactUpdate applies all items or none.
func (s *Store) TransactUpdate(_ context.Context, items []repository.TransactItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("TransactUpdate"); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	if len(items) > repository.MaxTransactItems {
		return appErrors.Validation(appErrors.CodeBatchTooLarge, "too many items in one transaction").Build()
	}
	if err, ok := s.transactFails[s.calls["TransactUpdate"]]; ok {
		return err
	}

	now := clock.Stamp(s.clock.Now())
	staged := make([]*entry, len(items))
	for i, ti := range items {
		var current repository.Item
		if e, ok := s.table(ti.Table)[encodeKey(ti.Key)]; ok {
			current = e.item
		}
		next, err := s.apply(ti.Table, ti.Key, current, ti.Update, now)
		if err != nil {
			return err
		}
		staged[i] = &entry{key: ti.Key, item: next}
	}

	for i, ti := range items {
		s.table(ti.Table)[encodeKey(ti.Key)] = staged[i]
	}
	return nil
}

// ============================================================================
// UPDATE SEMANTICS
// ============================================================================

func (s *Store) apply(table string, key repository.Key, current repository.Item, update repository.Update, now string) (repository.Item, error) {
	if update.RequireExists && current == nil {
		return nil, conditionFailed("Upsert", table)
	}
	for _, attr := range update.RequireAttributes {
		if current == nil {
			return nil, conditionFailed("Upsert", table)
		}
		if _, ok := current[attr]; !ok {
			return nil, conditionFailed("Upsert", table)
		}
	}

	var next repository.Item
	if current == nil {
		next = keyItem(key)
	} else {
		next = copyItem(current)
	}

	if _, ok := next[repository.AttrCreateTime]; !ok {
		next[repository.AttrCreateTime] = &types.AttributeValueMemberS{Value: now}
	}
	next[repository.AttrUpdateTime] = &types.AttributeValueMemberS{Value: now}

	for name, value := range update.Set {
		av, err := repository.MarshalValue(value)
		if err != nil {
			return nil, err
		}
		next[name] = av
	}

	for name, values := range update.AppendToList {
		list, ok := next[name].(*types.AttributeValueMemberL)
		if !ok {
			return nil, appErrors.Validation(appErrors.CodeStoreRejected, "list_append target is not a list").
				WithDetails(name).
				Build()
		}
		appended := append([]types.AttributeValue{}, list.Value...)
		for _, v := range values {
			av, err := repository.MarshalValue(v)
			if err != nil {
				return nil, err
			}
			appended = append(appended, av)
		}
		next[name] = &types.AttributeValueMemberL{Value: appended}
	}

	for name, ids := range update.AddToSet {
		if len(ids) == 0 {
			continue
		}
		set := numberSet(next[name])
		for _, id := range ids {
			set[id] = struct{}{}
		}
		next[name] = toNS(set)
	}

	for name, ids := range update.DeleteFromSet {
		if len(ids) == 0 {
			continue
		}
		if _, ok := next[name]; !ok {
			continue
		}
		set := numberSet(next[name])
		for _, id := range ids {
			delete(set, id)
		}
		if len(set) == 0 {
			delete(next, name)
		} else {
			next[name] = toNS(set)
		}
	}

	for _, name := range update.Remove {
		delete(next, name)
	}

	return next, nil
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Store) table(name string) map[string]*entry {
	t, ok := s.tables[name]
	if !ok {
		t = make(map[string]*entry)
		s.tables[name] = t
	}
	return t
}

func conditionFailed(op, table string) error {
	return appErrors.PreconditionFailed(appErrors.CodeConditionFailed, "conditional check failed").
		WithOperation(op).
		WithResource(table).
		Build()
}

func encodeKey(key repository.Key) string {
	names := key.Names()
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+scalar(key[name]))
	}
	return strings.Join(parts, "|")
}

func scalar(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return "S:" + v.Value
	case *types.AttributeValueMemberN:
		return "N:" + v.Value
	default:
		return fmt.Sprintf("%T", av)
	}
}

func sortValue(key repository.Key, partitionName string) float64 {
	for name, av := range key {
		if name == partitionName {
			continue
		}
		if n, ok := av.(*types.AttributeValueMemberN); ok {
			v, _ := strconv.ParseFloat(n.Value, 64)
			return v
		}
	}
	return 0
}

func keyItem(key repository.Key) repository.Item {
	item := make(repository.Item, len(key))
	for name, value := range key {
		item[name] = value
	}
	return item
}

func copyItem(item repository.Item) repository.Item {
	out := make(repository.Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func project(item repository.Item, projection []string) repository.Item {
	if len(projection) == 0 {
		return copyItem(item)
	}
	out := make(repository.Item, len(projection))
	for _, name := range projection {
		if v, ok := item[name]; ok {
			out[name] = v
		}
	}
	return out
}

func containsValue(values []types.AttributeValue, av types.AttributeValue) bool {
	for _, v := range values {
		if reflect.DeepEqual(v, av) {
			return true
		}
	}
	return false
}

func numberSet(av types.AttributeValue) map[int]struct{} {
	set := make(map[int]struct{})
	if ns, ok := av.(*types.AttributeValueMemberNS); ok {
		for _, s := range ns.Value {
			if id, err := strconv.Atoi(s); err == nil {
				set[id] = struct{}{}
			}
		}
	}
	return set
}

func toNS(set map[int]struct{}) *types.AttributeValueMemberNS {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return &types.AttributeValueMemberNS{Value: repository.FormatNumbers(ids)}
}
