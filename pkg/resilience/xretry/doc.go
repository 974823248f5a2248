// Package xretry 提供按尝试预算执行的通用重试引擎。
//
// # 设计理念
//
// xretry 把"重试多少次、间隔多久"（Policy）与"这个错误值不值得重试"
// （Classifier）分离：
//   - Policy：不可变的值对象 {MaxAttempts, Delay}，构造时验证；
//   - Classifier：纯函数 error -> Classification，在构造 Engine 时注入，
//     引擎本身对错误类型零感知。
//
// 底层使用 [avast/retry-go/v5] 执行重试循环。
//
// # 语义保证
//
//   - 操作最少执行 1 次，最多执行 Policy.MaxAttempts 次；
//   - 延迟只出现在两次尝试之间，首次尝试前和终态尝试后不等待；
//   - 分类为 ClassAbort 的错误在首次出现时立即原样返回，不消耗剩余预算；
//   - 预算耗尽时返回的错误就是最后一次尝试产生的错误本身——
//     引擎从不包装、翻译或聚合错误，调用方既有的 errors.Is/As 判断不受影响。
//
// # 使用方式
//
//	engine := xretry.NewEngine(xretry.WithClassifier(myClassifier))
//	policy, err := xretry.NewPolicy(5, 100*time.Millisecond)
//	if err != nil { ... }
//
//	err = engine.Do(ctx, policy, func(ctx context.Context) error {
//	    return callRemote(ctx)
//	})
//
// 带返回值的操作使用泛型包级函数（方法不能引入新的类型参数）：
//
//	value, err := xretry.DoWithResult(ctx, engine, policy,
//	    func(ctx context.Context) (string, error) {
//	        return fetch(ctx)
//	    })
//
// # 并发
//
// Engine 在构造后只读，单个实例可被任意多的 goroutine 并发使用；
// 每次 Do 调用的重试循环都在调用方自己的 goroutine 上顺序执行，
// 引擎不管理任何内部线程，也不持有跨调用状态。
//
// [avast/retry-go/v5]: https://github.com/avast/retry-go
package xretry
