// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package llmkernel

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler silently discards all log records. Enabled returns false so
// the caller skips message formatting entirely, making disabled logging
// effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger used by the llmkernel root package and
// every sub-package that logs (bufpool, uniform, selector and runtime all
// read it through Logger).
//
// By default llmkernel produces no log output. Pass nil to restore that.
//
// Log levels:
//   - [slog.LevelDebug]: pool/cache hits and misses, variant fallbacks
//   - [slog.LevelInfo]: device/engine lifecycle (adapter selected, device ready)
//   - [slog.LevelWarn]: auto-mode validation fallbacks, perf-guard soft denials
//   - [slog.LevelError]: device loss, strict-mode validation failures
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
