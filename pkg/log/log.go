// Copyright 2025 The udplex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides key-value structured logging on top of zap.
package log

import (
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/udplex/udplex/pkg/private/serrors"
)

// Level is a logging priority. Higher levels are more important.
type Level = zapcore.Level

// Available logging levels.
const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	ErrorLevel = zapcore.ErrorLevel
)

// Logger describes the logger interface.
type Logger interface {
	New(ctx ...any) Logger
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Enabled(lvl Level) bool
}

type logger struct {
	logger *zap.Logger
}

func (l *logger) New(ctx ...any) Logger {
	return &logger{logger: l.logger.With(convertCtx(ctx)...)}
}

func (l *logger) Debug(msg string, ctx ...any) {
	l.logger.Debug(msg, convertCtx(ctx)...)
}

func (l *logger) Info(msg string, ctx ...any) {
	l.logger.Info(msg, convertCtx(ctx)...)
}

func (l *logger) Error(msg string, ctx ...any) {
	l.logger.Error(msg, convertCtx(ctx)...)
}

func (l *logger) Enabled(lvl Level) bool {
	return l.logger.Core().Enabled(lvl)
}

func convertCtx(ctx []any) []zap.Field {
	fields := make([]zap.Field, 0, len(ctx)/2)
	for i := 0; i+1 < len(ctx); i += 2 {
		fields = append(fields, zap.Any(ctx[i].(string), ctx[i+1]))
	}
	return fields
}

var root atomic.Pointer[logger]

func init() {
	l, err := newLogger(ConsoleConfig{
		Level:           DefaultConsoleLevel,
		StacktraceLevel: DefaultStacktraceLevel,
	})
	if err != nil {
		panic(err)
	}
	root.Store(l)
}

// Setup configures the package-level root logger. It must be called before
// the root logger is used for the configuration to take effect.
func Setup(cfg Config) error {
	cfg.InitDefaults()
	l, err := newLogger(cfg.Console)
	if err != nil {
		return err
	}
	root.Store(l)
	zap.ReplaceGlobals(l.logger)
	return nil
}

func newLogger(cfg ConsoleConfig) (*logger, error) {
	lvl, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var encoding string
	var encCfg zapcore.EncoderConfig
	switch strings.ToLower(cfg.Format) {
	case "", "human":
		encoding = "console"
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	case "json":
		encoding = "json"
		encCfg = zap.NewProductionEncoderConfig()
	default:
		return nil, serrors.New("unsupported log format", "format", cfg.Format)
	}
	zCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(lvl),
		DisableCaller:     true,
		DisableStacktrace: true,
		Encoding:          encoding,
		EncoderConfig:     encCfg,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	var opts []zap.Option
	if s := strings.ToLower(cfg.StacktraceLevel); s != "" && s != "none" {
		slvl, err := parseLevel(s)
		if err != nil {
			return nil, err
		}
		zCfg.DisableStacktrace = false
		opts = append(opts, zap.AddStacktrace(slvl))
	}
	zl, err := zCfg.Build(opts...)
	if err != nil {
		return nil, serrors.Wrap("creating logger", err)
	}
	return &logger{logger: zl}, nil
}

func parseLevel(s string) (Level, error) {
	if s == "" {
		s = DefaultConsoleLevel
	}
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return 0, serrors.Wrap("parsing log level", err, "level", s)
	}
	return lvl, nil
}

// Root returns the root logger. It is guaranteed to never return nil.
func Root() Logger {
	return root.Load()
}

// New creates a logger with the given context attached to the root logger.
func New(ctx ...any) Logger {
	return Root().New(ctx...)
}

// Debug logs at debug level on the root logger.
func Debug(msg string, ctx ...any) {
	Root().Debug(msg, ctx...)
}

// Info logs at info level on the root logger.
func Info(msg string, ctx ...any) {
	Root().Info(msg, ctx...)
}

// Error logs at error level on the root logger.
func Error(msg string, ctx ...any) {
	Root().Error(msg, ctx...)
}

// Flush writes out buffered log entries.
func Flush() error {
	return root.Load().logger.Sync()
}

// Discard sets the root logger to discard all entries. Useful in tests.
func Discard() {
	root.Store(&logger{logger: zap.NewNop()})
}

// HandlePanic recovers from a panic, logs it together with a stack trace and
// terminates the process. It must be deferred at the top of every goroutine.
func HandlePanic() {
	if msg := recover(); msg != nil {
		root.Load().logger.Error("Panic", zap.Any("panic", msg), zap.Stack("stack"))
		_ = Flush()
		os.Exit(255)
	}
}
