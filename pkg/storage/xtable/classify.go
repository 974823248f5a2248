package xtable

import (
	"context"
	"errors"
	"net/http"

	"github.com/omeyang/tablekit/pkg/resilience/xretry"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// mongoWriteConflictCode 是 MongoDB 的 WriteConflict 服务端错误码。
const mongoWriteConflictCode = 112

// DefaultClassifier 是 Resilient 装饰器的默认错误分类器。
//
// 判定为放弃（不重试、立即返回）的错误：
//   - 乐观并发冲突：ErrPreconditionFailed、MongoDB WriteConflict(112)、
//     重复键错误——重试要么复现同一冲突，要么悄悄覆盖并发写入；
//   - 请求本身非法或被永久拒绝：StatusError 400 / 409 / 412；
//   - context 取消 / 超时：对一个已死的 context 重试只会烧掉预算
//     （设计决策: 取消归为放弃类；引擎本身保持中立，
//     不同意此判定的调用方可通过 WithClassifier 覆盖）。
//
// 其余错误（超时、瞬时传输失败、一般服务错误）一律可重试。
// 纯函数，无 I/O，无状态。
func DefaultClassifier(err error) xretry.Classification {
	if err == nil {
		return xretry.ClassRetry
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return xretry.ClassAbort
	}

	switch StatusCode(err) {
	case http.StatusBadRequest, http.StatusConflict, http.StatusPreconditionFailed:
		return xretry.ClassAbort
	}

	if mongo.IsDuplicateKeyError(err) {
		return xretry.ClassAbort
	}

	var srvErr mongo.ServerError
	if errors.As(err, &srvErr) && srvErr.HasErrorCode(mongoWriteConflictCode) {
		return xretry.ClassAbort
	}

	return xretry.ClassRetry
}
