// Package tableopt 提供 storage 子包共享的参数校验和工具函数。
//
// 本包是 internal 包，仅供 pkg/storage 下的子包（xtable 及其实现）使用。
// 外部用户不应直接导入此包。
//
// 依赖策略: 本包作为 table 族的共享内核（shared kernel），刻意保持零第三方依赖，
// 高层 pkg（xtable）→ internal/tableopt 单向依赖，不构成循环。
//
// 主要功能：
//   - 页大小 / 块大小的验证与归一化
//   - 续传令牌（continuation token）的编解码
//   - 行键前缀的区间计算
//   - 重试统计计数器（供 Resilient 装饰器使用）
package tableopt
