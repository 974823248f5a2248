package xretry

import "strconv"

// Classification 表示对单个失败的二元裁决。
type Classification int

const (
	// ClassRetry 表示失败可重试：在预算内继续重试，
	// 预算耗尽后把最后一次的错误原样返回给调用方。
	ClassRetry Classification = iota

	// ClassAbort 表示失败不可重试：立即原样返回错误，不消耗剩余预算。
	ClassAbort
)

// String 返回 Classification 的可读字符串表示，用于调试和日志输出。
func (c Classification) String() string {
	switch c {
	case ClassRetry:
		return "Retry"
	case ClassAbort:
		return "Abort"
	default:
		return "Classification(" + strconv.Itoa(int(c)) + ")"
	}
}

// Classifier 把一个失败映射为裁决。
//
// 实现必须是纯函数：无 I/O、无状态修改，裁决只取决于错误值本身，
// 与尝试次数或历史无关。err 永远非 nil——引擎只在失败后调用分类器。
type Classifier func(err error) Classification

// RetryAll 是默认分类器：所有错误均视为可重试。
func RetryAll(error) Classification {
	return ClassRetry
}

// AbortAll 把所有错误视为不可重试，等价于关闭重试。
// 主要用于测试和需要临时禁用重试的场景。
func AbortAll(error) Classification {
	return ClassAbort
}
