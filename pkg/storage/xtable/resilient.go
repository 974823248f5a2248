package xtable

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/omeyang/tablekit/internal/tableopt"
	"github.com/omeyang/tablekit/pkg/observability/xobs"
	"github.com/omeyang/tablekit/pkg/resilience/xretry"
)

const tableComponent = "xtable"

// category 是装饰器为每个方法静态指派的操作类别。
type category int

const (
	categoryRead category = iota
	categoryWrite
)

func (c category) String() string {
	if c == categoryWrite {
		return "write"
	}
	return "read"
}

// Resilient 是 Table 的弹性装饰器。
//
// 它组合任意一个 Table 实现，把每个点操作送入重试引擎：
// 写类别用写预算，读类别用读预算；流式 / 批量消费操作原样转发，
// 绝不重试（重试会把消费者已处理过的块再推送一遍）。
//
// 装饰器自身无跨调用状态（统计计数器除外，全部原子操作），
// 策略与分类器构造后只读，单个实例可被并发使用，无需加锁。
type Resilient[T Entity] struct {
	inner       Table[T]
	engine      *xretry.Engine
	readPolicy  xretry.Policy
	writePolicy xretry.Policy
	logger      *slog.Logger
	observer    xobs.Observer

	readCounter  tableopt.OpCounter
	writeCounter tableopt.OpCounter
}

// NewResilient 创建弹性装饰器。
//
// 尝试预算与重试间隔在此处校验：非法配置返回错误
// （xretry.ErrInvalidAttempts / xretry.ErrInvalidDelay），
// 任何操作执行之前即可发现。
func NewResilient[T Entity](inner Table[T], opts ...Option) (*Resilient[T], error) {
	if inner == nil {
		return nil, ErrNilInner
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	writePolicy, err := xretry.NewPolicy(o.WriteAttempts, o.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("xtable: write policy: %w", err)
	}
	readPolicy, err := xretry.NewPolicy(o.ReadAttempts, o.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("xtable: read policy: %w", err)
	}

	return &Resilient[T]{
		inner:       inner,
		engine:      xretry.NewEngine(xretry.WithClassifier(o.Classifier)),
		readPolicy:  readPolicy,
		writePolicy: writePolicy,
		logger:      o.Logger,
		observer:    o.Observer,
	}, nil
}

// through 按类别策略执行一次带返回值的点操作。
// 泛型辅助函数必须是包级函数（方法不能引入新的类型参数）。
func through[T Entity, R any](ctx context.Context, r *Resilient[T], cat category, op string, fn func(ctx context.Context) (R, error)) (R, error) {
	if ctx == nil {
		var zero R
		return zero, ErrNilContext
	}

	policy := r.writePolicy
	counter := &r.writeCounter
	if cat == categoryRead {
		policy = r.readPolicy
		counter = &r.readCounter
	}

	ctx, span := xobs.Begin(ctx, r.observer, xobs.Op{
		Component: tableComponent,
		Table:     r.inner.Name(),
		Operation: op,
		Category:  cat.String(),
	})

	attempts := 0
	value, err := xretry.DoWithResult(ctx, r.engine, policy, func(ctx context.Context) (R, error) {
		attempts++
		return fn(ctx)
	})

	counter.Record(attempts, err != nil)
	span.End(xobs.Result{Err: err, Attempts: attempts})

	if err != nil {
		r.logger.Warn("table operation failed",
			slog.String("table", r.inner.Name()),
			slog.String("operation", op),
			slog.String("category", cat.String()),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
	} else if attempts > 1 {
		r.logger.Info("table operation succeeded after retry",
			slog.String("table", r.inner.Name()),
			slog.String("operation", op),
			slog.Int("attempts", attempts),
		)
	}

	return value, err
}

// do 是 through 的无返回值变体。
func (r *Resilient[T]) do(ctx context.Context, cat category, op string, fn func(ctx context.Context) error) error {
	_, err := through(ctx, r, cat, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Name 透传底层实现的名称。
func (r *Resilient[T]) Name() string {
	return r.inner.Name()
}

// =============================================================================
// 点写操作（写预算重试）
// =============================================================================

func (r *Resilient[T]) Insert(ctx context.Context, entity T) error {
	return r.do(ctx, categoryWrite, "insert", func(ctx context.Context) error {
		return r.inner.Insert(ctx, entity)
	})
}

func (r *Resilient[T]) InsertBatch(ctx context.Context, entities []T) error {
	return r.do(ctx, categoryWrite, "insert_batch", func(ctx context.Context) error {
		return r.inner.InsertBatch(ctx, entities)
	})
}

func (r *Resilient[T]) InsertOrMerge(ctx context.Context, entity T) error {
	return r.do(ctx, categoryWrite, "insert_or_merge", func(ctx context.Context) error {
		return r.inner.InsertOrMerge(ctx, entity)
	})
}

func (r *Resilient[T]) InsertOrReplace(ctx context.Context, entity T) error {
	return r.do(ctx, categoryWrite, "insert_or_replace", func(ctx context.Context) error {
		return r.inner.InsertOrReplace(ctx, entity)
	})
}

func (r *Resilient[T]) Replace(ctx context.Context, entity T) error {
	return r.do(ctx, categoryWrite, "replace", func(ctx context.Context) error {
		return r.inner.Replace(ctx, entity)
	})
}

func (r *Resilient[T]) ReplaceIfMatch(ctx context.Context, entity T, version int64) error {
	return r.do(ctx, categoryWrite, "replace_if_match", func(ctx context.Context) error {
		return r.inner.ReplaceIfMatch(ctx, entity, version)
	})
}

func (r *Resilient[T]) Merge(ctx context.Context, entity T) error {
	return r.do(ctx, categoryWrite, "merge", func(ctx context.Context) error {
		return r.inner.Merge(ctx, entity)
	})
}

func (r *Resilient[T]) MergeIfMatch(ctx context.Context, entity T, version int64) error {
	return r.do(ctx, categoryWrite, "merge_if_match", func(ctx context.Context) error {
		return r.inner.MergeIfMatch(ctx, entity, version)
	})
}

func (r *Resilient[T]) Delete(ctx context.Context, entity T) error {
	return r.do(ctx, categoryWrite, "delete", func(ctx context.Context) error {
		return r.inner.Delete(ctx, entity)
	})
}

func (r *Resilient[T]) DeleteIfMatch(ctx context.Context, entity T, version int64) error {
	return r.do(ctx, categoryWrite, "delete_if_match", func(ctx context.Context) error {
		return r.inner.DeleteIfMatch(ctx, entity, version)
	})
}

func (r *Resilient[T]) DeleteIfExists(ctx context.Context, entity T) (bool, error) {
	return through(ctx, r, categoryWrite, "delete_if_exists", func(ctx context.Context) (bool, error) {
		return r.inner.DeleteIfExists(ctx, entity)
	})
}

func (r *Resilient[T]) DeleteBatch(ctx context.Context, entities []T) error {
	return r.do(ctx, categoryWrite, "delete_batch", func(ctx context.Context) error {
		return r.inner.DeleteBatch(ctx, entities)
	})
}

func (r *Resilient[T]) Apply(ctx context.Context, mutations []Mutation[T]) error {
	return r.do(ctx, categoryWrite, "apply", func(ctx context.Context) error {
		return r.inner.Apply(ctx, mutations)
	})
}

func (r *Resilient[T]) CreateIfNotExists(ctx context.Context) (bool, error) {
	return through(ctx, r, categoryWrite, "create_if_not_exists", func(ctx context.Context) (bool, error) {
		return r.inner.CreateIfNotExists(ctx)
	})
}

// =============================================================================
// 点读操作（读预算重试）
// =============================================================================

func (r *Resilient[T]) Get(ctx context.Context, partitionKey, rowKey string) (T, error) {
	return through(ctx, r, categoryRead, "get", func(ctx context.Context) (T, error) {
		return r.inner.Get(ctx, partitionKey, rowKey)
	})
}

func (r *Resilient[T]) GetPartition(ctx context.Context, partitionKey string, filter Filter[T]) ([]T, error) {
	return through(ctx, r, categoryRead, "get_partition", func(ctx context.Context) ([]T, error) {
		return r.inner.GetPartition(ctx, partitionKey, filter)
	})
}

func (r *Resilient[T]) First(ctx context.Context, partitionKey string) (T, error) {
	return through(ctx, r, categoryRead, "first", func(ctx context.Context) (T, error) {
		return r.inner.First(ctx, partitionKey)
	})
}

func (r *Resilient[T]) GetTop(ctx context.Context, partitionKey string, n int) ([]T, error) {
	return through(ctx, r, categoryRead, "get_top", func(ctx context.Context) ([]T, error) {
		return r.inner.GetTop(ctx, partitionKey, n)
	})
}

func (r *Resilient[T]) QueryTop(ctx context.Context, q Query, n int) ([]T, error) {
	return through(ctx, r, categoryRead, "query_top", func(ctx context.Context) ([]T, error) {
		return r.inner.QueryTop(ctx, q, n)
	})
}

func (r *Resilient[T]) GetByKeys(ctx context.Context, partitionKey string, rowKeys []string, pageSize int, filter Filter[T]) ([]T, error) {
	return through(ctx, r, categoryRead, "get_by_keys", func(ctx context.Context) ([]T, error) {
		return r.inner.GetByKeys(ctx, partitionKey, rowKeys, pageSize, filter)
	})
}

func (r *Resilient[T]) Exists(ctx context.Context, partitionKey, rowKey string) (bool, error) {
	return through(ctx, r, categoryRead, "exists", func(ctx context.Context) (bool, error) {
		return r.inner.Exists(ctx, partitionKey, rowKey)
	})
}

func (r *Resilient[T]) Query(ctx context.Context, q Query, filter Filter[T]) ([]T, error) {
	return through(ctx, r, categoryRead, "query", func(ctx context.Context) ([]T, error) {
		return r.inner.Query(ctx, q, filter)
	})
}

func (r *Resilient[T]) QueryE(ctx context.Context, q Query, filter func(ctx context.Context, entity T) (bool, error)) ([]T, error) {
	return through(ctx, r, categoryRead, "query_e", func(ctx context.Context) ([]T, error) {
		return r.inner.QueryE(ctx, q, filter)
	})
}

// =============================================================================
// 流式 / 批量消费操作——原样转发，永不重试
//
// 这些操作按块 / 按页调用调用方提供的消费者。在装饰层重试意味着
// 消费者会收到已经处理过的数据，或与消费者消费时产生的副作用状态
// 发生交互，因此一律透传，底层抛什么调用方就收到什么。
// =============================================================================

func (r *Resilient[T]) ScanPartition(ctx context.Context, partitionKey string, chunkSize int, fn func(ctx context.Context, chunk []T) error) error {
	return r.inner.ScanPartition(ctx, partitionKey, chunkSize, fn)
}

func (r *Resilient[T]) ScanAll(ctx context.Context, chunkSize int, fn func(ctx context.Context, chunk []T) error) error {
	return r.inner.ScanAll(ctx, chunkSize, fn)
}

func (r *Resilient[T]) FindFirst(ctx context.Context, partitionKey string, match Filter[T]) (T, error) {
	return r.inner.FindFirst(ctx, partitionKey, match)
}

func (r *Resilient[T]) Page(ctx context.Context, token string, pageSize int) (*PageResult[T], error) {
	return r.inner.Page(ctx, token, pageSize)
}

func (r *Resilient[T]) ExecuteQuery(ctx context.Context, q Query, yield func(entity T) (bool, error)) error {
	return r.inner.ExecuteQuery(ctx, q, yield)
}

func (r *Resilient[T]) EnsureTable(ctx context.Context) error {
	return r.inner.EnsureTable(ctx)
}
