package xtable

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omeyang/tablekit/pkg/resilience/xretry"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

func TestDefaultClassifier(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want xretry.Classification
	}{
		{"nil 错误", nil, xretry.ClassRetry},
		{"普通错误", errors.New("connection reset"), xretry.ClassRetry},
		{"NotFound 可重试", fmt.Errorf("%w: t/1", ErrNotFound), xretry.ClassRetry},
		{"context 取消", context.Canceled, xretry.ClassAbort},
		{"context 超时", fmt.Errorf("op: %w", context.DeadlineExceeded), xretry.ClassAbort},
		{"插入冲突", fmt.Errorf("%w: t/1", ErrConflict), xretry.ClassAbort},
		{"版本不匹配", fmt.Errorf("%w: t/1", ErrPreconditionFailed), xretry.ClassAbort},
		{"非法请求", fmt.Errorf("%w: empty partition key", ErrBadRequest), xretry.ClassAbort},
		{"自定义状态 500 可重试", NewStatusError(500, "internal"), xretry.ClassRetry},
		{"自定义状态 409 放弃", NewStatusError(409, "conflict"), xretry.ClassAbort},
		{
			"mongo 重复键",
			mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}},
			xretry.ClassAbort,
		},
		{
			"mongo 写冲突",
			mongo.CommandError{Code: mongoWriteConflictCode, Name: "WriteConflict"},
			xretry.ClassAbort,
		},
		{
			"mongo 其他服务端错误可重试",
			mongo.CommandError{Code: 11600, Name: "InterruptedAtShutdown"},
			xretry.ClassRetry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultClassifier(tt.err))
		})
	}
}

func TestDefaultClassifier_WrappedMongoError(t *testing.T) {
	err := fmt.Errorf("insert: %w", mongo.CommandError{Code: mongoWriteConflictCode})
	assert.Equal(t, xretry.ClassAbort, DefaultClassifier(err))
}
