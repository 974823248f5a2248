package xobs

import "context"

// Op 描述一次被观测的表操作。
type Op struct {
	// Component 标识组件名称（如 "xtable"）。
	Component string

	// Table 表 / 集合名称。
	Table string

	// Operation 操作名称（如 "insert"、"get"）。
	Operation string

	// Category 操作类别（"read"、"write"）。
	Category string
}

// Result 表示观测结束时的结果。
type Result struct {
	// Err 操作的终态错误，成功时为 nil。
	Err error

	// Attempts 本次调用实际执行底层操作的次数（>= 1）。
	Attempts int
}

// Span 表示一次观测跨度。
type Span interface {
	// End 结束观测并记录结果。
	End(result Result)
}

// Observer 定义统一观测接口。
// 实现必须可被并发调用。
type Observer interface {
	// Begin 开始一次观测跨度。
	Begin(ctx context.Context, op Op) (context.Context, Span)
}

// NoopObserver 是空实现。
type NoopObserver struct{}

// Begin 返回 ctx 和空跨度。若 ctx 为 nil，返回 context.Background()。
func (NoopObserver) Begin(ctx context.Context, _ Op) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, NoopSpan{}
}

// NoopSpan 是空跨度实现。
type NoopSpan struct{}

// End 空实现，不做任何处理。
func (NoopSpan) End(_ Result) {}

// Begin 使用 observer 开始观测，nil observer 时返回空跨度。
//
// Begin 保证返回非 nil 的 context.Context 和非 nil 的 Span。
// 设计决策: ctx 在入口统一归一化并对返回值做兜底检查，
// 确保自定义 Observer 实现不规范时调用方也不会 panic。
func Begin(ctx context.Context, observer Observer, op Op) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, NoopSpan{}
	}
	retCtx, span := observer.Begin(ctx, op)
	if retCtx == nil {
		retCtx = ctx
	}
	if span == nil {
		span = NoopSpan{}
	}
	return retCtx, span
}
