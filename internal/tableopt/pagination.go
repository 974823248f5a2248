package tableopt

import "errors"

// 分页相关错误。
var (
	// ErrInvalidPageSize 表示每页大小无效（必须 >= 0，0 表示使用默认值）。
	ErrInvalidPageSize = errors.New("tableopt: invalid page size, must be >= 0")

	// ErrPageSizeTooLarge 表示每页大小超过上限 MaxPageSize。
	ErrPageSizeTooLarge = errors.New("tableopt: page size exceeds maximum")
)

// 页大小默认值与上限。
const (
	// DefaultPageSize 默认每页大小。
	DefaultPageSize = 100

	// MaxPageSize 每页大小上限。
	// 避免单次查询返回过多文档导致内存问题。
	MaxPageSize = 1000

	// DefaultChunkSize 流式扫描默认每块大小。
	DefaultChunkSize = 100
)

// ValidatePageSize 验证每页大小并返回归一化后的值。
//
// 参数：
//   - size: 每页大小，0 表示使用 DefaultPageSize
//
// 返回：
//   - 归一化后的每页大小
//   - err: ErrInvalidPageSize（负值）或 ErrPageSizeTooLarge（超过上限）
func ValidatePageSize(size int) (int, error) {
	if size < 0 {
		return 0, ErrInvalidPageSize
	}
	if size == 0 {
		return DefaultPageSize, nil
	}
	if size > MaxPageSize {
		return 0, ErrPageSizeTooLarge
	}
	return size, nil
}

// NormalizeChunkSize 归一化流式扫描的块大小。
//
// 设计决策: 与 ValidatePageSize 不同，此函数不返回错误——流式操作直接透传
// 到底层实现，不应因块大小配置在装饰层就失败。非正值回落到默认值，
// 超过上限的值被截断到 MaxPageSize。
func NormalizeChunkSize(size int) int {
	if size < 1 {
		return DefaultChunkSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}
