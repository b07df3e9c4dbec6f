package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// levelRouter sends records at or above split to the error handler and
// everything else to the out handler. Records below min are dropped.
type levelRouter struct {
	min   slog.Leveler
	split slog.Level
	out   slog.Handler
	err   slog.Handler
}

func newLevelRouter(min slog.Leveler, out, errOut io.Writer) *levelRouter {
	opts := &slog.HandlerOptions{Level: min}
	return &levelRouter{
		min:   min,
		split: slog.LevelError,
		out:   slog.NewTextHandler(out, opts),
		err:   slog.NewTextHandler(errOut, opts),
	}
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= lr.min.Level()
}

func (lr *levelRouter) Handle(ctx context.Context, rec slog.Record) error {
	h := lr.out
	if rec.Level >= lr.split {
		h = lr.err
	}
	return h.Handle(ctx, rec)
}

func (lr *levelRouter) derive(f func(slog.Handler) slog.Handler) *levelRouter {
	c := *lr
	c.out, c.err = f(lr.out), f(lr.err)
	return &c
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return lr.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return lr.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

// setupLogger installs the default logger: INFO and WARN on stdout, ERROR
// on stderr. A non-empty logPath also receives every record. The returned
// function closes the log file and is always safe to call.
func setupLogger(logPath string, level slog.Level) (func(), error) {
	if logPath == "" {
		slog.SetDefault(slog.New(newLevelRouter(level, os.Stdout, os.Stderr)))
		return func() {}, nil
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", logPath, err)
	}
	router := newLevelRouter(level, io.MultiWriter(os.Stdout, file), io.MultiWriter(os.Stderr, file))
	slog.SetDefault(slog.New(router))
	return func() { file.Close() }, nil
}
