package xretry_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/omeyang/tablekit/pkg/resilience/xretry"
)

var errTemporary = errors.New("service temporarily unavailable")

func ExampleEngine_Do() {
	engine := xretry.NewEngine()
	policy, _ := xretry.NewPolicy(3, time.Millisecond)

	attempts := 0
	err := engine.Do(context.Background(), policy, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemporary
		}
		return nil
	})

	fmt.Println(err, attempts)
	// Output: <nil> 3
}

func ExampleDoWithResult() {
	errBadInput := errors.New("bad input")

	// 分类器：bad input 不值得重试
	engine := xretry.NewEngine(xretry.WithClassifier(func(err error) xretry.Classification {
		if errors.Is(err, errBadInput) {
			return xretry.ClassAbort
		}
		return xretry.ClassRetry
	}))
	policy, _ := xretry.NewPolicy(5, 0)

	attempts := 0
	_, err := xretry.DoWithResult(context.Background(), engine, policy, func(ctx context.Context) (string, error) {
		attempts++
		return "", errBadInput
	})

	fmt.Println(err, attempts)
	// Output: bad input 1
}
