package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"savethespice-backend/internal/repository"
)

const tracerName = "savethespice-backend/repository"

// InstrumentedStore records metrics and a span for every store call.
type InstrumentedStore struct {
	next      repository.Store
	collector *Collector
	tracer    trace.Tracer
}

// InstrumentStore decorates next.
func InstrumentStore(next repository.Store, collector *Collector) *InstrumentedStore {
	return &InstrumentedStore{
		next:      next,
		collector: collector,
		tracer:    otel.Tracer(tracerName),
	}
}

func (s *InstrumentedStore) observe(ctx context.Context, op, table string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "store."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(attrs,
			attribute.String("db.system", "dynamodb"),
			attribute.String("db.operation", op),
			attribute.String("db.table", table),
		)...),
	)
	return ctx, func(err error) {
		s.collector.ObserveDB(op, table, err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// GetItem implements repository.Store.
func (s *InstrumentedStore) GetItem(ctx context.Context, table string, key repository.Key, projection ...string) (repository.Item, error) {
	ctx, done := s.observe(ctx, "GetItem", table)
	item, err := s.next.GetItem(ctx, table, key, projection...)
	done(err)
	return item, err
}

// Query implements repository.Store.
func (s *InstrumentedStore) Query(ctx context.Context, table string, partition repository.Key, opts repository.QueryOptions) ([]repository.Item, error) {
	ctx, done := s.observe(ctx, "Query", table, attribute.Bool("db.filtered", opts.Filter != nil))
	items, err := s.next.Query(ctx, table, partition, opts)
	done(err)
	return items, err
}

// Upsert implements repository.Store.
func (s *InstrumentedStore) Upsert(ctx context.Context, table string, key repository.Key, update repository.Update) (repository.Item, error) {
	ctx, done := s.observe(ctx, "Upsert", table, attribute.Bool("db.conditional", update.RequireExists))
	item, err := s.next.Upsert(ctx, table, key, update)
	done(err)
	return item, err
}

// Delete implements repository.Store.
func (s *InstrumentedStore) Delete(ctx context.Context, table string, key repository.Key) (repository.Item, error) {
	ctx, done := s.observe(ctx, "Delete", table)
	item, err := s.next.Delete(ctx, table, key)
	done(err)
	return item, err
}

// Increment implements repository.Store.
func (s *InstrumentedStore) Increment(ctx context.Context, table string, key repository.Key, field string, delta int) (int, error) {
	ctx, done := s.observe(ctx, "Increment", table, attribute.String("db.field", field))
	n, err := s.next.Increment(ctx, table, key, field, delta)
	done(err)
	return n, err
}

// TransactUpdate implements repository.Store. The table label is the first item's table.
func (s *InstrumentedStore) TransactUpdate(ctx context.Context, items []repository.TransactItem) error {
	table := ""
	if len(items) > 0 {
		table = items[0].Table
	}
	ctx, done := s.observe(ctx, "TransactUpdate", table, attribute.Int("db.items", len(items)))
	err := s.next.TransactUpdate(ctx, items)
	done(err)
	return err
}
