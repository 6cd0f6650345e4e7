package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	globalLevelVar  = &slog.LevelVar{} // default level
	isInitialized   bool
	mutex           sync.RWMutex

	// output receives console logs. Stdout is reserved for results.
	output io.Writer = os.Stderr
)

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
	// Journal also sends records to journald when it is reachable.
	Journal bool `toml:"journal"`
}

// Initialize sets up the logging system. Loggers handed out earlier keep
// working and pick up the new levels and handlers.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	isInitialized = true

	globalLevel := parseLevel(config.Level)
	if globalLevel == nil {
		defaultLevel := slog.LevelInfo
		globalLevel = &defaultLevel
	}
	globalLevelVar.Set(*globalLevel)

	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(config, *globalLevel, module))
		moduleLoggers[module] = slog.New(createHandler(config, levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(createHandler(config, globalLevelVar)))
}

// SetLevel changes the level of one module at runtime. An empty module
// changes the global level and every module without an override.
func SetLevel(module, level string) error {
	parsed := parseLevel(level)
	if parsed == nil {
		return fmt.Errorf("unknown log level %q", level)
	}

	mutex.Lock()
	defer mutex.Unlock()

	if module == "" {
		globalConfig.Level = level
		globalLevelVar.Set(*parsed)
		for name, levelVar := range moduleLevelVars {
			if _, overridden := globalConfig.Modules[name]; !overridden {
				levelVar.Set(*parsed)
			}
		}
		return nil
	}

	if globalConfig.Modules == nil {
		globalConfig.Modules = make(map[string]string)
	}
	globalConfig.Modules[module] = level
	if levelVar, ok := moduleLevelVars[module]; ok {
		levelVar.Set(*parsed)
	}
	return nil
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

	// Double-check in case another goroutine created it
	if logger, exists := moduleLoggers[module]; exists {
		return logger
	}

	// Each module owns a LevelVar so its level can change at runtime.
	levelVar := &slog.LevelVar{}
	cfg := Config{Format: "text"}
	level := slog.LevelInfo
	if isInitialized {
		cfg = globalConfig
		level = moduleLevel(globalConfig, globalLevelVar.Level(), module)
	}
	levelVar.Set(level)

	logger := slog.New(createHandler(cfg, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

func moduleLevel(cfg Config, global slog.Level, module string) slog.Level {
	if levelStr, exists := cfg.Modules[module]; exists {
		if parsed := parseLevel(levelStr); parsed != nil {
			return *parsed
		}
	}
	return global
}

// createHandler builds the console handler and, when requested and
// available, fans out to the journal as well.
func createHandler(cfg Config, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var console slog.Handler
	if cfg.Format == "json" {
		console = slog.NewJSONHandler(output, opts)
	} else {
		console = slog.NewTextHandler(output, opts)
	}

	if cfg.Journal && IsJournalAvailable() {
		return NewMultiHandler(console, NewJournalHandler(level)).OnError(reportTo(output))
	}
	return console
}

// reportTo writes handler failures to w, one line each.
func reportTo(w io.Writer) func(error) {
	return func(err error) {
		_, _ = fmt.Fprintf(w, "logging: %v\n", err)
	}
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) *slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		l := slog.LevelDebug
		return &l
	case "info":
		l := slog.LevelInfo
		return &l
	case "warn", "warning":
		l := slog.LevelWarn
		return &l
	case "error":
		l := slog.LevelError
		return &l
	default:
		return nil
	}
}
