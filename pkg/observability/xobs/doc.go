// Package xobs 提供统一观测接口（指标、追踪）及其 OpenTelemetry 实现。
//
// # 设计理念
//
// 业务包（xtable 等）只依赖 Observer 接口：每个操作调用 Begin 开启跨度，
// 结束时调用 Span.End 记录结果与实际尝试次数。后端实现在组装时注入：
//   - NoopObserver：默认，零开销；
//   - NewOTelObserver：OpenTelemetry 追踪 + 指标
//     （tablekit.operation.total / tablekit.attempt.total /
//     tablekit.operation.duration）。
//
// 包级 Begin 函数对 nil ctx / nil observer / 不规范的自定义实现做兜底，
// 调用方无需判空。
package xobs
