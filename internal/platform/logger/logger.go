// Package logger は zerolog のロガーを構築します。
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/platform/config"
)

// New は設定に従って標準エラー出力へ書き込むロガーを返します。
func New(cfg config.LogConfig) zerolog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter は w へ書き込むロガーを返します。
func NewWithWriter(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "hr-lifecycle").Logger()
}
