package logger

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	global   zerolog.Logger
	level    = zerolog.InfoLevel
	mu       sync.Mutex
	initOnce sync.Once

	// Optional flag (users may pass -log.level=debug). If the CLI flag set
	// hasn't parsed yet when Init is invoked, we still read the raw os.Args.
	flagLevel = flag.String("log.level", "", "log level (debug, info, warn, error)")
)

// Init initializes the global logger. It is safe to call multiple times; the
// first call wins except SetLevel / UseWriter which mutate state intentionally.
func Init() {
	initOnce.Do(func() {
		lvl := detectLevel()
		mu.Lock()
		level = lvl
		global = zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
		mu.Unlock()
	})
}

// detectLevel resolves the initial log level from the command-line flag
// -log.level, defaulting to info. The core consults no environment
// variables (spec.md §6).
func detectLevel() zerolog.Level {
	if *flagLevel == "" {
		for _, arg := range os.Args[1:] {
			if strings.HasPrefix(arg, "-log.level=") {
				parts := strings.SplitN(arg, "=", 2)
				if len(parts) == 2 {
					*flagLevel = parts[1]
				}
			}
		}
	}
	if lvl, ok := parseLevel(strings.TrimSpace(*flagLevel)); ok {
		return lvl
	}
	return zerolog.InfoLevel
}

func parseLevel(s string) (zerolog.Level, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "debug":
		return zerolog.DebugLevel, true
	case "info", "":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error", "err":
		return zerolog.ErrorLevel, true
	}
	return 0, false
}

type levelError string

func (e levelError) Error() string { return "invalid log level: " + string(e) }

// SetLevel changes the runtime log level.
func SetLevel(s string) error {
	Init()
	lvl, ok := parseLevel(s)
	if !ok {
		return levelError(s)
	}
	mu.Lock()
	level = lvl
	global = global.Level(level)
	mu.Unlock()
	return nil
}

// Level returns the current runtime level as an uppercase string.
func Level() string {
	Init()
	mu.Lock()
	defer mu.Unlock()
	return strings.ToUpper(level.String())
}

// UseWriter swaps the output writer (intended for tests). Retains the current level.
func UseWriter(w io.Writer) {
	Init()
	mu.Lock()
	global = zerolog.New(w).Level(level).With().Timestamp().Logger()
	mu.Unlock()
}

// Logger returns the global logger (ensures Init was called).
func Logger() *zerolog.Logger {
	Init()
	mu.Lock()
	defer mu.Unlock()
	l := global
	return &l
}

// Convenience top-level logging functions accept alternating key/value pairs,
// mirroring the calling convention used throughout the rest of the codebase.
func Debug(msg string, kv ...any) { withFields(Logger().Debug(), kv).Msg(msg) }
func Info(msg string, kv ...any)  { withFields(Logger().Info(), kv).Msg(msg) }
func Warn(msg string, kv ...any)  { withFields(Logger().Warn(), kv).Msg(msg) }
func Error(msg string, kv ...any) { withFields(Logger().Error(), kv).Msg(msg) }

func withFields(ev *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kv[i])
		}
		ev = ev.Interface(key, kv[i+1])
	}
	return ev
}

// With attaches arbitrary structured fields to a logger, alternating key/value.
func With(l *zerolog.Logger, kv ...any) zerolog.Logger {
	ctx := l.With()
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kv[i])
		}
		ctx = ctx.Interface(key, kv[i+1])
	}
	return ctx.Logger()
}

// WithDevice attaches the stream-device identity to a logger.
func WithDevice(l *zerolog.Logger, devicePath string) zerolog.Logger {
	return l.With().Str("device", devicePath).Logger()
}

// WithComponent attaches a component name (e.g. "capture", "control", "cursor").
func WithComponent(l *zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

// WithPlugin attaches the selected plugin's identity and codec id.
func WithPlugin(l *zerolog.Logger, name string, codec uint8) zerolog.Logger {
	return l.With().Str("plugin", name).Uint8("codec", codec).Logger()
}
