// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xobs: 统一观测接口（指标、追踪），含 OpenTelemetry 实现
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 业务包只依赖 Observer 接口，具体后端在组装时注入
package observability
