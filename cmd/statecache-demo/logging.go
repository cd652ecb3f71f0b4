package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/statecache"
	"github.com/unkn0wn-root/statecache/internal/invariant"
	logruslog "github.com/unkn0wn-root/statecache/log/logrus"
	slogadapter "github.com/unkn0wn-root/statecache/log/slog"
	zaplog "github.com/unkn0wn-root/statecache/log/zap"
)

type logSetup struct {
	backend string // slog, zap or logrus
	level   string // debug, info, warn or error
	format  string // json or text
}

// newLogger builds the engine logger and the *slog.Logger the demo itself
// logs with. The returned func flushes buffered output.
func newLogger(s logSetup, out io.Writer) (statecache.Logger, *slog.Logger, func(), error) {
	level := parseLevel(s.level)
	json := strings.ToLower(s.format) != "text"

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewJSONHandler(out, opts)
	if !json {
		h = slog.NewTextHandler(out, opts)
	}
	sl := slog.New(h)

	switch strings.ToLower(s.backend) {
	case "slog", "":
		return slogadapter.New(sl), sl, func() {}, nil
	case "zap":
		enc := zap.NewProductionEncoderConfig()
		enc.TimeKey = ""
		var encoder zapcore.Encoder = zapcore.NewJSONEncoder(enc)
		if !json {
			encoder = zapcore.NewConsoleEncoder(enc)
		}
		zl := zap.New(zapcore.NewCore(encoder, zapcore.AddSync(out), zapLevel(level)))
		return zaplog.New(zl), sl, func() { _ = zl.Sync() }, nil
	case "logrus":
		ll := logrus.New()
		ll.SetOutput(out)
		ll.SetLevel(logrusLevel(level))
		if json {
			ll.SetFormatter(&logrus.JSONFormatter{DisableTimestamp: true})
		} else {
			ll.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
		}
		return logruslog.New(ll), sl, func() {}, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown logger %q (want slog, zap or logrus)", s.backend)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	invariant.Raise("demo", "unsupported_log_level", "Got an unsupported log level.", "logLevel", s)
	return slog.LevelInfo
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l <= slog.LevelDebug:
		return zapcore.DebugLevel
	case l <= slog.LevelInfo:
		return zapcore.InfoLevel
	case l <= slog.LevelWarn:
		return zapcore.WarnLevel
	}
	return zapcore.ErrorLevel
}

func logrusLevel(l slog.Level) logrus.Level {
	switch {
	case l <= slog.LevelDebug:
		return logrus.DebugLevel
	case l <= slog.LevelInfo:
		return logrus.InfoLevel
	case l <= slog.LevelWarn:
		return logrus.WarnLevel
	}
	return logrus.ErrorLevel
}

// syncWriter serializes writes from the three logging backends and the async
// hook worker.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
