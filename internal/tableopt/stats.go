package tableopt

import "sync/atomic"

// =============================================================================
// 重试统计计数器
// =============================================================================

// OpCounter 单个操作类别（读 / 写）的重试统计计数器。
// 所有字段均为原子操作，可被并发调用安全更新。
type OpCounter struct {
	calls    atomic.Int64
	attempts atomic.Int64
	retries  atomic.Int64
	failures atomic.Int64
}

// Record 记录一次完整调用的结果。
//
// attempts 是本次调用实际执行底层操作的次数（>= 1），
// failed 表示终态是否为失败。
func (c *OpCounter) Record(attempts int, failed bool) {
	c.calls.Add(1)
	c.attempts.Add(int64(attempts))
	if attempts > 1 {
		c.retries.Add(int64(attempts - 1))
	}
	if failed {
		c.failures.Add(1)
	}
}

// Snapshot 返回计数器当前值的快照。
func (c *OpCounter) Snapshot() OpStats {
	return OpStats{
		Calls:    c.calls.Load(),
		Attempts: c.attempts.Load(),
		Retries:  c.retries.Load(),
		Failures: c.failures.Load(),
	}
}

// OpStats 是 OpCounter 的只读快照。
type OpStats struct {
	// Calls 完整调用次数。
	Calls int64

	// Attempts 底层操作的累计执行次数（含首次尝试）。
	Attempts int64

	// Retries 累计重试次数（Attempts - Calls 中成功部分的差值）。
	Retries int64

	// Failures 终态为失败的调用次数。
	Failures int64
}
