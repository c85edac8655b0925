package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const (
	defaultBufferSize = 500
	defaultIdentifier = "ambilight"
)

// Logger is a duck-typed interface satisfied by *slog.Logger.
// Use this interface instead of *slog.Logger to decouple from the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level      string            `toml:"level"`
	Format     string            `toml:"format"`
	Modules    map[string]string `toml:"modules"`
	Identifier string            `toml:"identifier"`
	BufferSize int               `toml:"buffer_size"`
}

var (
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	globalLevelVar  = &slog.LevelVar{}
	isInitialized   bool
	mutex           sync.RWMutex
	logBuffer       *RingBuffer
	entryCallback   EntryCallback
)

// Initialize sets up the logging system. Loggers handed out earlier keep
// working: their levels are updated and their handlers rebuilt.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	if config.Identifier == "" {
		config.Identifier = defaultIdentifier
	}
	if config.BufferSize <= 0 {
		config.BufferSize = defaultBufferSize
	}
	globalConfig = config
	isInitialized = true
	logBuffer = NewRingBuffer(config.BufferSize)

	globalLevel, ok := parseLevel(config.Level)
	if !ok {
		globalLevel = slog.LevelInfo
	}
	globalLevelVar.Set(globalLevel)

	for module, levelVar := range moduleLevelVars {
		levelVar.Set(levelFor(module))
		moduleLoggers[module] = newModuleLogger(module, levelVar)
	}

	slog.SetDefault(slog.New(createHandler(config.Format, globalLevelVar)))
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if logger, exists := moduleLoggers[module]; exists {
		mutex.RUnlock()
		return logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()

	if logger, exists := moduleLoggers[module]; exists {
		return logger
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(levelFor(module))

	logger := newModuleLogger(module, levelVar)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

// SetModuleLevel changes the level of one module at runtime.
func SetModuleLevel(module, level string) error {
	parsed, ok := parseLevel(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}

	GetLogger(module)

	mutex.Lock()
	defer mutex.Unlock()
	moduleLevelVars[module].Set(parsed)
	if globalConfig.Modules == nil {
		globalConfig.Modules = make(map[string]string)
	}
	globalConfig.Modules[module] = strings.ToLower(level)
	return nil
}

// ModuleLevels returns the current level of every module logger.
func ModuleLevels() map[string]string {
	mutex.RLock()
	defer mutex.RUnlock()

	levels := make(map[string]string, len(moduleLevelVars))
	for module, levelVar := range moduleLevelVars {
		levels[module] = levelToString(levelVar.Level())
	}
	return levels
}

// GetBuffer returns the log ring buffer, or nil before Initialize.
func GetBuffer() *RingBuffer {
	mutex.RLock()
	defer mutex.RUnlock()
	return logBuffer
}

// SetEntryCallback sets a callback invoked for each buffered entry.
// Used for publishing log events to SSE clients.
func SetEntryCallback(callback EntryCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	entryCallback = callback
}

// levelFor resolves the configured level of a module (must hold lock).
func levelFor(module string) slog.Level {
	if !isInitialized {
		return slog.LevelInfo
	}
	if levelStr, exists := globalConfig.Modules[module]; exists {
		if parsed, ok := parseLevel(levelStr); ok {
			return parsed
		}
	}
	if parsed, ok := parseLevel(globalConfig.Level); ok {
		return parsed
	}
	return slog.LevelInfo
}

// newModuleLogger builds a logger tagged with module (must hold lock).
func newModuleLogger(module string, level slog.Leveler) *slog.Logger {
	format := "text"
	if isInitialized {
		format = globalConfig.Format
	}
	return slog.New(createHandler(format, level)).With("module", module)
}

// createHandler builds the handler chain: stdout when attached, the journal
// when available and always the ring buffer.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdoutHandler slog.Handler
	if format == "json" {
		stdoutHandler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdoutHandler = slog.NewTextHandler(os.Stdout, opts)
	}

	var handlers []slog.Handler
	if isStdoutAvailable() {
		handlers = append(handlers, stdoutHandler)
	}
	if isInitialized && IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(globalConfig.Identifier, level))
	}
	handlers = append(handlers, NewBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// isStdoutAvailable checks if stdout is connected to a terminal, pipe, socket, or file.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

// parseLevel converts a level name to slog.Level.
func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// levelToString converts slog.Level to a lowercase name.
func levelToString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
