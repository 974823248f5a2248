package xtable

import (
	"log/slog"
	"time"

	"github.com/omeyang/tablekit/pkg/observability/xobs"
	"github.com/omeyang/tablekit/pkg/resilience/xretry"
)

// Options 定义 Resilient 装饰器的配置选项。
//
// 设计决策: 与本仓库其他包的选项不同，With* 设置器不吞掉非法值——
// 尝试预算和重试间隔的合法性由 NewResilient 在构造时统一校验并报错，
// 保证配置错误在任何操作执行之前暴露。
type Options struct {
	// WriteAttempts 写类别操作的最大尝试次数（含首次），必须 >= 1。
	// 默认为 xretry.DefaultMaxAttempts（10）。
	WriteAttempts int

	// ReadAttempts 读类别操作的最大尝试次数（含首次），必须 >= 1。
	// 默认为 xretry.DefaultMaxAttempts（10）。
	ReadAttempts int

	// RetryDelay 两次尝试之间的固定等待时间，必须 >= 0。
	// 默认为 xretry.DefaultDelay（200ms）。
	RetryDelay time.Duration

	// Classifier 错误分类器。默认为 DefaultClassifier。
	Classifier xretry.Classifier

	// Logger 结构化日志。默认丢弃所有日志。
	Logger *slog.Logger

	// Observer 统一观测接口。默认为 xobs.NoopObserver。
	Observer xobs.Observer
}

// Option 定义配置 Resilient 装饰器的函数类型。
type Option func(*Options)

// defaultOptions 返回默认配置。
func defaultOptions() *Options {
	return &Options{
		WriteAttempts: xretry.DefaultMaxAttempts,
		ReadAttempts:  xretry.DefaultMaxAttempts,
		RetryDelay:    xretry.DefaultDelay,
		Classifier:    DefaultClassifier,
		Logger:        slog.New(slog.DiscardHandler),
		Observer:      xobs.NoopObserver{},
	}
}

// WithWriteAttempts 设置写类别操作的尝试预算。
func WithWriteAttempts(n int) Option {
	return func(o *Options) {
		o.WriteAttempts = n
	}
}

// WithReadAttempts 设置读类别操作的尝试预算。
func WithReadAttempts(n int) Option {
	return func(o *Options) {
		o.ReadAttempts = n
	}
}

// WithRetryDelay 设置两次尝试之间的固定等待时间。
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) {
		o.RetryDelay = d
	}
}

// WithClassifier 设置错误分类器。传入 nil 保持默认值。
func WithClassifier(c xretry.Classifier) Option {
	return func(o *Options) {
		if c != nil {
			o.Classifier = c
		}
	}
}

// WithLogger 设置结构化日志。传入 nil 保持默认值（丢弃日志）。
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithObserver 设置统一观测接口。传入 nil 保持默认值。
func WithObserver(obs xobs.Observer) Option {
	return func(o *Options) {
		if obs != nil {
			o.Observer = obs
		}
	}
}
