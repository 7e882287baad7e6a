package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

var (
	mutex        sync.RWMutex
	globalConfig Config
	initialized  bool
	output       io.Writer = os.Stderr
	logBuffer    *RingBuffer
	logCallback  LogCallback

	// Loggers are cached per module. Their LevelVars survive Initialize so
	// package-level loggers created at import time pick up configured levels.
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	defaultLevelVar = &slog.LevelVar{}
)

// Config selects the global level, the console format and per-module level
// overrides.
type Config struct {
	Level   string            `toml:"level" env:"LOG_LEVEL"`
	Format  string            `toml:"format" env:"LOG_FORMAT"`
	Modules map[string]string `toml:"modules"`
}

// Initialize applies config to every existing and future module logger and
// starts buffering entries for the status API.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	initialized = true
	logBuffer = NewRingBuffer(defaultBufferSize)

	defaultLevelVar.Set(levelFor(""))
	for module, levelVar := range moduleLevelVars {
		levelVar.Set(levelFor(module))
		// The format may have changed, so handlers are rebuilt.
		moduleLoggers[module] = newModuleLogger(module, levelVar)
	}

	slog.SetDefault(slog.New(createHandler(config.Format, defaultLevelVar)))
}

// SetOutput redirects console log output, stderr by default. Loggers created
// afterwards and those recreated by Initialize pick it up.
func SetOutput(w io.Writer) {
	mutex.Lock()
	defer mutex.Unlock()
	output = w
}

// GetBuffer returns the ring buffer of recent entries, nil before Initialize.
func GetBuffer() *RingBuffer {
	mutex.RLock()
	defer mutex.RUnlock()
	return logBuffer
}

// SetLogCallback registers fn to receive every buffered entry. Nil removes
// it.
func SetLogCallback(fn LogCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	logCallback = fn
}

// GetLogger returns the logger for module, creating it on first use. Every
// record carries a module attribute.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	logger, ok := moduleLoggers[module]
	mutex.RUnlock()
	if ok {
		return logger
	}

	mutex.Lock()
	defer mutex.Unlock()

	if logger, ok := moduleLoggers[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(levelFor(module))
	logger = newModuleLogger(module, levelVar)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

// newModuleLogger must be called with mutex held.
func newModuleLogger(module string, level slog.Leveler) *slog.Logger {
	format := "text"
	if initialized {
		format = globalConfig.Format
	}
	return slog.New(createHandler(format, level)).With("module", module)
}

// levelFor resolves the configured level of module, falling back to the
// global level and then to info. It must be called with mutex held.
func levelFor(module string) slog.Level {
	if !initialized {
		return slog.LevelInfo
	}
	if level, ok := ParseLevel(globalConfig.Modules[module]); ok && module != "" {
		return level
	}
	if level, ok := ParseLevel(globalConfig.Level); ok {
		return level
	}
	return slog.LevelInfo
}

// createHandler builds the handler chain: console (stderr unless redirected,
// stdout carries the frame report), journal when reachable, and the ring
// buffer. The buffer handler is always present; it resolves the buffer per
// record.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var handlers fanout
	if isConsoleAvailable(output) {
		if format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(output, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(output, opts))
		}
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return handlers
}

// isConsoleAvailable reports whether w leads somewhere a reader could see:
// a terminal, pipe, socket or regular file. /dev/null is a device and is
// skipped. Writers that are not files always count.
func isConsoleAvailable(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return true
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

// ParseLevel converts a level name (debug, info, warn, warning, error; any
// case) to a slog.Level.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}
