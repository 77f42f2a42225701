// Package ddb implements repository.Store on Amazon DynamoDB.
package ddb

import (
	"context"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"savethespice-backend/internal/clock"
	appErrors "savethespice-backend/internal/errors"
	"savethespice-backend/internal/repository"
)

// DynamoDBAPI is the subset of the DynamoDB client the store uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store is the DynamoDB-backed entity store.
type Store struct {
	client DynamoDBAPI
	clock  clock.Clock
	logger *zap.Logger
}

var _ repository.Store = (*Store)(nil)

// NewStore creates a DynamoDB store.
func NewStore(client DynamoDBAPI, clk clock.Clock, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		clock:  clk,
		logger: logger,
	}
}

// GetItem reads one item with a strongly consistent read.
func (s *Store) GetItem(ctx context.Context, table string, key repository.Key, projection ...string) (repository.Item, error) {
	input := &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	}

	if names := repository.ProjectWithKey(key, projection); len(names) > 0 {
		expr, err := expression.NewBuilder().WithProjection(projectionOf(names)).Build()
		if err != nil {
			return nil, buildError("GetItem", err)
		}
		input.ProjectionExpression = expr.Projection()
		input.ExpressionAttributeNames = expr.Names()
	}

	out, err := s.client.GetItem(ctx, input)
	if err != nil {
		return nil, mapError(err, "GetItem", table)
	}
	if out.Item == nil {
		return nil, nil
	}
	return out.Item, nil
}

// Query drains every page of a partition query.
func (s *Store) Query(ctx context.Context, table string, partition repository.Key, opts repository.QueryOptions) ([]repository.Item, error) {
	if len(partition) != 1 {
		return nil, appErrors.Validation(appErrors.CodeInvalidInput, "query needs exactly one partition attribute").Build()
	}

	var keyCond expression.KeyConditionBuilder
	for name, value := range partition {
		keyCond = expression.Key(name).Equal(expression.Value(rawValue{value}))
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if len(opts.Projection) > 0 {
		builder = builder.WithProjection(projectionOf(opts.Projection))
	}
	if opts.Filter != nil && len(opts.Filter.In) > 0 {
		builder = builder.WithFilter(inCondition(opts.Filter))
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, buildError("Query", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	}

	var items []repository.Item
	pages := 0
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapError(err, "Query", table)
		}
		pages++
		for _, item := range page.Items {
			items = append(items, item)
		}
	}

	s.logger.Debug("query complete",
		zap.String("table", table),
		zap.Int("items", len(items)),
		zap.Int("pages", pages),
	)

	return items, nil
}

// Upsert applies an update and returns the full item after the write.
func (s *Store) Upsert(ctx context.Context, table string, key repository.Key, update repository.Update) (repository.Item, error) {
	expr, err := buildUpdate(key, update, clock.Stamp(s.clock.Now()))
	if err != nil {
		return nil, err
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, mapError(err, "Upsert", table)
	}

	return out.Attributes, nil
}

// Delete removes an existing item and returns its old attributes.
func (s *Store) Delete(ctx context.Context, table string, key repository.Key) (repository.Item, error) {
	expr, err := expression.NewBuilder().WithCondition(existsCondition(sortedNames(key))).Build()
	if err != nil {
		return nil, buildError("Delete", err)
	}

	out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(table),
		Key:                      key,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
		ReturnValues:             types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, mapError(err, "Delete", table)
	}

	return out.Attributes, nil
}

// Increment performs an atomic ADD and returns the pre-increment value.
func (s *Store) Increment(ctx context.Context, table string, key repository.Key, field string, delta int) (int, error) {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Add(expression.Name(field), expression.Value(delta))).
		Build()
	if err != nil {
		return 0, buildError("Increment", err)
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedOld,
	})
	if err != nil {
		return 0, mapError(err, "Increment", table)
	}

	old, ok := out.Attributes[field].(*types.AttributeValueMemberN)
	if !ok {
		return 0, nil
	}
	value, err := strconv.Atoi(old.Value)
	if err != nil {
		return 0, appErrors.Internal(appErrors.CodeMarshalFailed, "counter is not an integer").
			WithDetails(old.Value).
			WithCause(err).
			Build()
	}
	return value, nil
}

// TransactUpdate commits up to 25 updates atomically.
func (s *Store) TransactUpdate(ctx context.Context, items []repository.TransactItem) error {
	if len(items) == 0 {
		return nil
	}
	if len(items) > repository.MaxTransactItems {
		return appErrors.Validation(appErrors.CodeBatchTooLarge, "too many items in one transaction").
			WithDetails(strconv.Itoa(len(items))).
			Build()
	}

	now := clock.Stamp(s.clock.Now())
	transactItems := make([]types.TransactWriteItem, 0, len(items))
	for _, item := range items {
		expr, err := buildUpdate(item.Key, item.Update, now)
		if err != nil {
			return err
		}
		transactItems = append(transactItems, types.TransactWriteItem{
			Update: &types.Update{
				TableName:                 aws.String(item.Table),
				Key:                       item.Key,
				UpdateExpression:          expr.Update(),
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			},
		})
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: transactItems,
	})
	if err != nil {
		return mapError(err, "TransactUpdate", aws.ToString(transactItems[0].Update.TableName))
	}

	s.logger.Debug("transaction committed", zap.Int("items", len(transactItems)))
	return nil
}

// ============================================================================
// EXPRESSION HELPERS
// ============================================================================

// rawValue passes an already-built attribute value through the expression builder.
type rawValue struct {
	av types.AttributeValue
}

func (r rawValue) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return r.av, nil
}

func buildUpdate(key repository.Key, update repository.Update, now string) (expression.Expression, error) {
	createTime := expression.Name(repository.AttrCreateTime)
	ub := expression.Set(createTime, expression.IfNotExists(createTime, expression.Value(now))).
		Set(expression.Name(repository.AttrUpdateTime), expression.Value(now))

	for _, name := range sortedKeys(update.Set) {
		ub = ub.Set(expression.Name(name), expression.Value(update.Set[name]))
	}
	for _, name := range sortedKeys(update.AppendToList) {
		ub = ub.Set(expression.Name(name),
			expression.ListAppend(expression.Name(name), expression.Value(update.AppendToList[name])))
	}
	for _, name := range sortedKeys(update.AddToSet) {
		if ids := update.AddToSet[name]; len(ids) > 0 {
			ub = ub.Add(expression.Name(name), expression.Value(numberSet(ids)))
		}
	}
	for _, name := range sortedKeys(update.DeleteFromSet) {
		if ids := update.DeleteFromSet[name]; len(ids) > 0 {
			ub = ub.Delete(expression.Name(name), expression.Value(numberSet(ids)))
		}
	}
	for _, name := range update.Remove {
		ub = ub.Remove(expression.Name(name))
	}

	builder := expression.NewBuilder().WithUpdate(ub)

	var required []string
	if update.RequireExists {
		required = append(required, sortedNames(key)...)
	}
	required = append(required, update.RequireAttributes...)
	if len(required) > 0 {
		builder = builder.WithCondition(existsCondition(required))
	}

	expr, err := builder.Build()
	if err != nil {
		return expression.Expression{}, buildError("Update", err)
	}
	return expr, nil
}

func numberSet(ids []int) rawValue {
	return rawValue{&types.AttributeValueMemberNS{Value: repository.FormatNumbers(ids)}}
}

func existsCondition(names []string) expression.ConditionBuilder {
	cond := expression.AttributeExists(expression.Name(names[0]))
	for _, name := range names[1:] {
		cond = cond.And(expression.AttributeExists(expression.Name(name)))
	}
	return cond
}

func inCondition(filter *repository.Filter) expression.ConditionBuilder {
	first := expression.Value(filter.In[0])
	rest := make([]expression.OperandBuilder, 0, len(filter.In)-1)
	for _, v := range filter.In[1:] {
		rest = append(rest, expression.Value(v))
	}
	return expression.Name(filter.Attribute).In(first, rest...)
}

func projectionOf(names []string) expression.ProjectionBuilder {
	proj := expression.NamesList(expression.Name(names[0]))
	for _, name := range names[1:] {
		proj = proj.AddNames(expression.Name(name))
	}
	return proj
}

func sortedNames(key repository.Key) []string {
	names := key.Names()
	sort.Strings(names)
	return names
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func buildError(op string, err error) error {
	return appErrors.Validation(appErrors.CodeInvalidInput, "failed to build expression").
		WithOperation(op).
		WithDetails(err.Error()).
		WithCause(err).
		Build()
}
