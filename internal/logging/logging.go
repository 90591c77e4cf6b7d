// Package logging builds the application slog logger and supports
// reconfiguring level, format, and file output at runtime.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for file output.
const (
	defaultMaxSizeMB  = 50
	defaultMaxBackups = 3
	defaultMaxAgeDays = 30
)

// Config describes the desired logging setup. An empty FilePath logs to
// stdout only; otherwise output goes to stdout and a rotated file.
type Config struct {
	Level          string `json:"level"`
	Format         string `json:"format"`
	FilePath       string `json:"file_path,omitempty"`
	FileMaxSizeMB  int    `json:"file_max_size_mb,omitempty"`
	FileMaxFiles   int    `json:"file_max_files,omitempty"`
	FileMaxAgeDays int    `json:"file_max_age_days,omitempty"`
}

// SwappableHandler is a slog.Handler whose delegate can be replaced
// atomically while loggers built on it stay valid.
type SwappableHandler struct {
	inner atomic.Pointer[slog.Handler]
}

// NewSwappableHandler wraps h in a SwappableHandler.
func NewSwappableHandler(h slog.Handler) *SwappableHandler {
	s := &SwappableHandler{}
	s.inner.Store(&h)
	return s
}

// Swap replaces the delegate handler.
func (s *SwappableHandler) Swap(h slog.Handler) {
	s.inner.Store(&h)
}

func (s *SwappableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*s.inner.Load()).Enabled(ctx, level)
}

func (s *SwappableHandler) Handle(ctx context.Context, r slog.Record) error {
	return (*s.inner.Load()).Handle(ctx, r)
}

func (s *SwappableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewSwappableHandler((*s.inner.Load()).WithAttrs(attrs))
}

func (s *SwappableHandler) WithGroup(name string) slog.Handler {
	return NewSwappableHandler((*s.inner.Load()).WithGroup(name))
}

// Manager owns the logger's handler chain. Level changes apply instantly
// through a LevelVar; format or file changes swap the handler in place so
// every logger derived from the original keeps working.
type Manager struct {
	level   *slog.LevelVar
	handler *SwappableHandler
	cfg     Config
	mu      sync.Mutex
	closer  io.Closer
}

// NewManager builds a Manager and the root logger for the given config.
func NewManager(cfg Config) (*Manager, *slog.Logger) {
	level := &slog.LevelVar{}
	level.Set(ParseLevel(cfg.Level))

	writer, closer := newWriter(cfg)
	handler := NewSwappableHandler(newHandler(writer, level, cfg.Format))

	m := &Manager{
		level:   level,
		handler: handler,
		cfg:     cfg,
		closer:  closer,
	}
	return m, slog.New(handler)
}

// Reconfigure applies cfg to the running logger.
func (m *Manager) Reconfigure(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.level.Set(ParseLevel(cfg.Level))

	rebuild := cfg.Format != m.cfg.Format ||
		cfg.FilePath != m.cfg.FilePath ||
		cfg.FileMaxSizeMB != m.cfg.FileMaxSizeMB ||
		cfg.FileMaxFiles != m.cfg.FileMaxFiles ||
		cfg.FileMaxAgeDays != m.cfg.FileMaxAgeDays

	if rebuild {
		if m.closer != nil {
			m.closer.Close() //nolint:errcheck
			m.closer = nil
		}
		writer, closer := newWriter(cfg)
		m.handler.Swap(newHandler(writer, m.level, cfg.Format))
		m.closer = closer
	}

	m.cfg = cfg
}

// Config returns the active configuration.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Close releases the file writer, if one is open.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closer == nil {
		return nil
	}
	err := m.closer.Close()
	m.closer = nil
	return err
}

// ParseLevel maps a level name to its slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
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

func newWriter(cfg Config) (io.Writer, io.Closer) {
	if cfg.FilePath == "" {
		return os.Stdout, nil
	}

	lj := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    orDefault(cfg.FileMaxSizeMB, defaultMaxSizeMB),
		MaxBackups: orDefault(cfg.FileMaxFiles, defaultMaxBackups),
		MaxAge:     orDefault(cfg.FileMaxAgeDays, defaultMaxAgeDays),
	}
	return io.MultiWriter(os.Stdout, lj), lj
}

func newHandler(w io.Writer, level slog.Leveler, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
