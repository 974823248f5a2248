package xretry

import (
	"context"
	"errors"
	"math"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// 入参守卫错误。
var (
	// ErrNilEngine 表示引擎接收者为 nil。
	ErrNilEngine = errors.New("xretry: nil engine")

	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xretry: context must not be nil")

	// ErrNilFunc 表示传入的操作函数为 nil。
	ErrNilFunc = errors.New("xretry: fn must not be nil")
)

// Engine 是重试执行器。
//
// Engine 只持有构造时注入的分类器（以及可选的重试回调），
// 不持有任何跨调用状态；预算以 Policy 形式随每次调用传入。
type Engine struct {
	classifier Classifier
	onRetry    func(attempt int, err error)
}

// EngineOption 引擎配置选项。
type EngineOption func(*Engine)

// WithClassifier 设置错误分类器。
// 传入 nil 会被静默忽略（保持默认的 RetryAll）。
func WithClassifier(c Classifier) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.classifier = c
		}
	}
}

// WithOnRetry 设置重试回调，在每次重试等待之前被调用。
// attempt 是刚刚失败的尝试序号（从 1 开始）。
// 传入 nil 会被静默忽略。
func WithOnRetry(f func(attempt int, err error)) EngineOption {
	return func(e *Engine) {
		if f != nil {
			e.onRetry = f
		}
	}
}

// NewEngine 创建重试执行器。
// 默认分类器为 RetryAll（所有错误均可重试）。
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{classifier: RetryAll}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do 按 policy 执行 fn，失败时咨询分类器决定是否重试。
//
// 成功立即返回；ClassAbort 的错误首次出现即原样返回；
// ClassRetry 的错误在预算耗尽后原样返回最后一次的错误。
// policy 非法时返回配置错误（与 NewPolicy 相同的判定）。
func (e *Engine) Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	if e == nil {
		return ErrNilEngine
	}
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}
	if err := policy.Validate(); err != nil {
		return err
	}

	return retry.New(e.buildOptions(ctx, policy)...).Do(func() error {
		return fn(ctx)
	})
}

// DoWithResult 按 policy 执行带返回值的 fn。
//
// 这是泛型函数，必须作为包级函数使用（方法不能引入新的类型参数）。
// 语义与 Engine.Do 完全一致。
func DoWithResult[T any](ctx context.Context, e *Engine, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if e == nil {
		return zero, ErrNilEngine
	}
	if ctx == nil {
		return zero, ErrNilContext
	}
	if fn == nil {
		return zero, ErrNilFunc
	}
	if err := policy.Validate(); err != nil {
		return zero, err
	}

	return retry.NewWithData[T](e.buildOptions(ctx, policy)...).Do(func() (T, error) {
		return fn(ctx)
	})
}

// buildOptions 构建 retry-go 的选项。
//
// 设计决策: 每次调用重建选项切片。预构建不变选项可减少少量分配，
// 但 Policy 随调用传入，缓存会引入并发复杂度，收益可忽略。
func (e *Engine) buildOptions(ctx context.Context, policy Policy) []retry.Option {
	opts := make([]retry.Option, 0, 6)

	opts = append(opts, retry.Context(ctx))

	// 尝试预算是硬上限，包含首次尝试
	opts = append(opts, retry.Attempts(safeIntToUint(policy.MaxAttempts)))

	// 失败后的去留由分类器裁决。分类器返回 ClassAbort 时 retry-go
	// 不等待、不重试，直接返回该错误。
	classifier := e.classifier
	if classifier == nil {
		classifier = RetryAll
	}
	opts = append(opts, retry.RetryIf(func(err error) bool {
		return classifier(err) == ClassRetry
	}))

	// 固定间隔。不使用 retry-go 的默认 DelayType——其默认组合了随机抖动，
	// 会破坏"固定延迟"的可观测语义。
	opts = append(opts, retry.DelayType(func(_ uint, _ error, _ retry.DelayContext) time.Duration {
		return policy.Delay
	}))

	if e.onRetry != nil {
		opts = append(opts, retry.OnRetry(func(n uint, err error) {
			// retry-go 的 n 从 0 开始，转换为 1-based 的尝试序号
			e.onRetry(safeUintToInt(n)+1, err)
		}))
	}

	// 只返回最后一个错误，且不做任何包装：
	// 预算耗尽时调用方拿到的就是最后一次尝试抛出的错误本身。
	opts = append(opts, retry.LastErrorOnly(true))

	return opts
}

// Classifier 返回当前分类器。nil 接收者返回 nil。
func (e *Engine) Classifier() Classifier {
	if e == nil {
		return nil
	}
	return e.classifier
}

// safeIntToUint 将 int 安全转换为 uint，负数返回 0。
func safeIntToUint(n int) uint {
	if n <= 0 {
		return 0
	}
	return uint(n)
}

// safeUintToInt 将 uint 安全转换为 int，超过 MaxInt 的值截断到 MaxInt。
func safeUintToInt(n uint) int {
	if n > uint(math.MaxInt) {
		return math.MaxInt
	}
	return int(n)
}
