package xretry

import (
	"errors"
	"fmt"
	"time"
)

// 配置错误。在构造时返回，任何操作执行之前即可发现。
var (
	// ErrInvalidAttempts 表示尝试预算无效（必须 >= 1）。
	ErrInvalidAttempts = errors.New("xretry: max attempts must be >= 1")

	// ErrInvalidDelay 表示重试间隔无效（必须 >= 0）。
	ErrInvalidDelay = errors.New("xretry: delay must be >= 0")
)

// 默认值。
const (
	// DefaultMaxAttempts 默认尝试预算（包含首次尝试）。
	DefaultMaxAttempts = 10

	// DefaultDelay 默认重试间隔。
	DefaultDelay = 200 * time.Millisecond
)

// Policy 是一次重试循环的预算：最大尝试次数与固定的尝试间隔。
// 构造后不可变，一个实例可被任意多的并发调用共享。
type Policy struct {
	// MaxAttempts 最大尝试次数（包含首次尝试），必须 >= 1。
	MaxAttempts int

	// Delay 两次尝试之间的固定等待时间，必须 >= 0。
	Delay time.Duration
}

// NewPolicy 创建重试策略并验证参数。
// 无效参数返回 ErrInvalidAttempts 或 ErrInvalidDelay。
func NewPolicy(maxAttempts int, delay time.Duration) (Policy, error) {
	p := Policy{MaxAttempts: maxAttempts, Delay: delay}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// DefaultPolicy 返回默认策略：10 次尝试，固定 200ms 间隔。
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultDelay}
}

// Validate 检查策略是否合法。
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidAttempts, p.MaxAttempts)
	}
	if p.Delay < 0 {
		return fmt.Errorf("%w, got %s", ErrInvalidDelay, p.Delay)
	}
	return nil
}
