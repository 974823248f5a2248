// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xtable: 键分区表存储抽象层，含弹性重试装饰器、
//     MongoDB 与内存两种实现
//
// 设计原则：
//   - 提供统一的接口抽象，支持多种存储后端
//   - 内置可观测性（指标、追踪）
//   - 瞬时故障由装饰器统一吸收，调用方无需编写重试逻辑
package storage
