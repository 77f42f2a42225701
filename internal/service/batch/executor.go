// Package batch applies one operation per entity with bounded fan-out and itemized results.
//
// No batch is atomic across entities. Every item runs independently and an item error
// never aborts its siblings; the caller receives a Report listing successes and, for each
// failure, the error kind.
package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	appErrors "savethespice-backend/internal/errors"
)

// DefaultLimit is the fan-out used when no positive limit is configured.
const DefaultLimit = 4

// Failure describes one failed item.
type Failure[K comparable] struct {
	ID      K                   `json:"id"`
	Kind    appErrors.ErrorType `json:"kind"`
	Message string              `json:"message"`
}

// Report is the itemized outcome of a batch. Both lists keep input order.
type Report[K comparable] struct {
	Succeeded []K           `json:"succeeded"`
	Failed    []Failure[K]  `json:"failed,omitempty"`
	Duration  time.Duration `json:"-"`
}

// FailedIDs returns the ids of the failed items.
func (r Report[K]) FailedIDs() []K {
	ids := make([]K, len(r.Failed))
	for i, f := range r.Failed {
		ids[i] = f.ID
	}
	return ids
}

// OK reports whether every item succeeded.
func (r Report[K]) OK() bool {
	return len(r.Failed) == 0
}

// Result is a Report plus the values produced by the successful items.
// Values[i] belongs to Succeeded[i].
type Result[K comparable, V any] struct {
	Report[K]
	Values []V
}

// Executor bounds the number of items in flight. The limit can change at runtime; a
// change applies to batches started afterwards.
type Executor struct {
	limit  atomic.Int64
	logger *zap.Logger
}

// NewExecutor creates an executor. A limit below 1 selects DefaultLimit.
func NewExecutor(limit int, logger *zap.Logger) *Executor {
	e := &Executor{logger: logger}
	e.SetLimit(limit)
	return e
}

// SetLimit changes the fan-out. 1 runs items sequentially.
func (e *Executor) SetLimit(limit int) {
	if limit < 1 {
		limit = DefaultLimit
	}
	if old := e.limit.Swap(int64(limit)); old != 0 && old != int64(limit) {
		e.logger.Info("batch concurrency changed", zap.Int64("from", old), zap.Int("to", limit))
	}
}

// Limit returns the current fan-out.
func (e *Executor) Limit() int {
	return int(e.limit.Load())
}

// Apply runs fn once per item.
func Apply[K comparable](ctx context.Context, e *Executor, items []K, fn func(context.Context, K) error) Report[K] {
	res := Map(ctx, e, items, func(ctx context.Context, item K) (struct{}, error) {
		return struct{}{}, fn(ctx, item)
	})
	return res.Report
}

// Map runs fn once per item and keeps the values of the successful calls.
//
// Once ctx is done no further items are started; items that never ran are reported with
// kind TIMEOUT.
func Map[K comparable, V any](ctx context.Context, e *Executor, items []K, fn func(context.Context, K) (V, error)) Result[K, V] {
	start := time.Now()
	values := make([]V, len(items))
	errs := make([]error, len(items))

	var g errgroup.Group
	g.SetLimit(e.Limit())

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(items); j++ {
				errs[j] = cancelled(err)
			}
			break
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = cancelled(err)
				return nil
			}
			values[i], errs[i] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	var res Result[K, V]
	for i, item := range items {
		if errs[i] == nil {
			res.Succeeded = append(res.Succeeded, item)
			res.Values = append(res.Values, values[i])
			continue
		}
		res.Failed = append(res.Failed, Failure[K]{
			ID:      item,
			Kind:    appErrors.KindOf(errs[i]),
			Message: messageOf(errs[i]),
		})
	}
	res.Duration = time.Since(start)

	e.logger.Debug("batch complete",
		zap.Int("items", len(items)),
		zap.Int("succeeded", len(res.Succeeded)),
		zap.Int("failed", len(res.Failed)),
		zap.Int("limit", e.Limit()),
		zap.Duration("duration", res.Duration),
	)
	return res
}

func cancelled(err error) error {
	return appErrors.Timeout(appErrors.CodeTimeout, "batch cancelled before the item ran").
		WithCause(err).
		Build()
}

func messageOf(err error) string {
	var ue *appErrors.UnifiedError
	if errors.As(err, &ue) {
		return ue.Message
	}
	return err.Error()
}
