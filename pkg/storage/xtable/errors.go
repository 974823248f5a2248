package xtable

import (
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// 传输状态错误
// =============================================================================

// StatusError 携带传输层状态码的错误。
//
// 存储实现用它表达"请求本身有问题"类的失败（冲突、非法请求、
// 前置条件不满足等），DefaultClassifier 据此判定是否放弃重试。
type StatusError struct {
	// Code HTTP 语义的状态码。
	Code int

	// Message 人类可读的描述。
	Message string
}

// NewStatusError 创建状态错误。
func NewStatusError(code int, message string) *StatusError {
	return &StatusError{Code: code, Message: message}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("xtable: %s (status %d)", e.Message, e.Code)
}

// StatusCode 提取错误链中的传输状态码，不存在时返回 0。
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// =============================================================================
// 哨兵错误
// =============================================================================

// 状态类哨兵。存储实现在检测到对应条件时返回这些值
// （可能经 fmt.Errorf("%w: ...") 包装补充键信息），
// 调用方统一用 errors.Is 判断。
var (
	// ErrNotFound 表示目标实体不存在。
	ErrNotFound = &StatusError{Code: http.StatusNotFound, Message: "entity not found"}

	// ErrConflict 表示实体已存在（插入冲突）。
	ErrConflict = &StatusError{Code: http.StatusConflict, Message: "entity already exists"}

	// ErrPreconditionFailed 表示乐观并发版本不匹配。
	ErrPreconditionFailed = &StatusError{Code: http.StatusPreconditionFailed, Message: "version mismatch"}

	// ErrBadRequest 表示请求本身非法（空键、跨分区批次等）。
	ErrBadRequest = &StatusError{Code: http.StatusBadRequest, Message: "malformed request"}
)

// 入参守卫与配置错误。
var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xtable: context must not be nil")

	// ErrNilInner 表示被装饰的实现为 nil。
	ErrNilInner = errors.New("xtable: inner table must not be nil")

	// ErrNilCollection 表示传入的 collection 为 nil。
	ErrNilCollection = errors.New("xtable: nil collection")

	// ErrEmptyBatch 表示批量操作的实体列表为空。
	ErrEmptyBatch = errors.New("xtable: empty batch")

	// ErrReservedField 表示实体的 bson 字段与保留字段（_pk/_rk/_ver）冲突。
	ErrReservedField = errors.New("xtable: entity uses reserved field name")
)

// IsNotFound 判断错误是否为"实体不存在"。
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict 判断错误是否为"实体已存在"。
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsPreconditionFailed 判断错误是否为乐观并发版本不匹配。
func IsPreconditionFailed(err error) bool {
	return errors.Is(err, ErrPreconditionFailed)
}

// badKeysError 校验实体键，非法时返回 ErrBadRequest 包装。
func badKeysError(e Entity) error {
	if e.PartitionKey() == "" {
		return fmt.Errorf("%w: empty partition key", ErrBadRequest)
	}
	if e.RowKey() == "" {
		return fmt.Errorf("%w: empty row key", ErrBadRequest)
	}
	return nil
}
