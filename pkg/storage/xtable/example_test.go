package xtable

import (
	"context"
	"fmt"
	"time"
)

func ExampleNewResilient() {
	table, err := NewResilient(NewMemTable[order]("orders"),
		WithWriteAttempts(5),
		WithReadAttempts(3),
		WithRetryDelay(50*time.Millisecond),
	)
	if err != nil {
		fmt.Println("config:", err)
		return
	}

	ctx := context.Background()
	if err := table.Insert(ctx, order{Tenant: "tenant-a", ID: "order-1", Status: "new"}); err != nil {
		fmt.Println("insert:", err)
		return
	}

	got, err := table.Get(ctx, "tenant-a", "order-1")
	if err != nil {
		fmt.Println("get:", err)
		return
	}
	fmt.Println(got.Status, got.Version)
	// Output: new 1
}

func ExampleDefaultClassifier() {
	transient := fmt.Errorf("read tcp: connection reset by peer")
	conflict := fmt.Errorf("%w: tenant-a/order-1", ErrConflict)

	fmt.Println(DefaultClassifier(transient))
	fmt.Println(DefaultClassifier(conflict))
	// Output:
	// Retry
	// Abort
}
