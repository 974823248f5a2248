package xtable

import "github.com/omeyang/tablekit/internal/tableopt"

// OpStats 是单个操作类别的累计统计快照。
type OpStats struct {
	// Calls 操作调用总数（每次外部调用计一次，无论内部重试多少轮）。
	Calls int64

	// Attempts 底层尝试总数（含每次调用的首次尝试）。
	Attempts int64

	// Retries 重试总数（Attempts 减去 Calls 中多于一次尝试的部分）。
	Retries int64

	// Failures 最终失败的调用数。
	Failures int64
}

// Stats 是装饰器两个操作类别的统计快照。
type Stats struct {
	Read  OpStats
	Write OpStats
}

// Stats 返回当前统计快照。计数器为原子操作，可与进行中的调用并发读取。
func (r *Resilient[T]) Stats() Stats {
	return Stats{
		Read:  fromSnapshot(r.readCounter.Snapshot()),
		Write: fromSnapshot(r.writeCounter.Snapshot()),
	}
}

func fromSnapshot(s tableopt.OpStats) OpStats {
	return OpStats{
		Calls:    s.Calls,
		Attempts: s.Attempts,
		Retries:  s.Retries,
		Failures: s.Failures,
	}
}
