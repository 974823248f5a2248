package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrUnsupportedFormat 表示配置文件扩展名不受支持。
var ErrUnsupportedFormat = errors.New("xtblctl: unsupported config format, want .yaml/.yml/.json")

// config 是 xtblctl 的完整配置。
type config struct {
	Mongo mongoConfig `koanf:"mongo"`
	Retry retryConfig `koanf:"retry"`
	Log   logConfig   `koanf:"log"`
}

type mongoConfig struct {
	URI        string `koanf:"uri"`
	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`
}

type retryConfig struct {
	WriteAttempts int           `koanf:"write_attempts"`
	ReadAttempts  int           `koanf:"read_attempts"`
	Delay         time.Duration `koanf:"delay"`
}

type logConfig struct {
	// File 日志输出文件，为空输出到 stderr。
	File string `koanf:"file"`

	// Level 日志级别：debug/info/warn/error。
	Level string `koanf:"level"`

	// MaxSizeMB 单个日志文件的大小上限（MB），超过后轮转。
	MaxSizeMB int `koanf:"max_size_mb"`

	// MaxBackups 保留的轮转文件个数。
	MaxBackups int `koanf:"max_backups"`
}

// defaultConfig 返回默认配置。
func defaultConfig() config {
	return config{
		Mongo: mongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "tablekit",
			Collection: "records",
		},
		Retry: retryConfig{
			WriteAttempts: 10,
			ReadAttempts:  10,
			Delay:         200 * time.Millisecond,
		},
		Log: logConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// loadConfig 读取并解析配置文件，缺省项回落到默认值。
// path 为空时直接返回默认配置。
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	parser, err := parserFor(path)
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("xtblctl: read config: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return cfg, fmt.Errorf("xtblctl: parse config: %w", err)
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("xtblctl: unmarshal config: %w", err)
	}
	return cfg, nil
}

// parserFor 按扩展名选择解析器。
func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// newLogger 按配置构建结构化日志。
// 指定文件时经 lumberjack 轮转写入，否则输出到 stderr。
func newLogger(cfg logConfig) *slog.Logger {
	var out io.Writer = os.Stderr
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
	}

	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
