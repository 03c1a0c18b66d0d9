// Package logging provides config-driven categorized file-based logging for
// the document subsystem. Logs are written to <log dir>/ with one file per
// category per day. When debug mode is off, every logger is a silent no-op so
// hot paths pay only a map lookup.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category identifies a subsystem log stream.
type Category string

const (
	CategoryBoot      Category = "boot"      // startup and wiring
	CategoryWorkspace Category = "workspace" // per-session workspace lifecycle
	CategorySandbox   Category = "sandbox"   // script execution
	CategorySkills    Category = "skills"    // skill registry operations
	CategoryBuilder   Category = "builder"   // workbook and slide deck building
	CategoryArtifacts Category = "artifacts" // artifact store operations
	CategoryAPI       Category = "api"       // HTTP boundary
)

// Levels, ordered.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Settings controls the logging subsystem. It mirrors config.LoggingConfig to
// avoid an import cycle with internal/config.
type Settings struct {
	DebugMode  bool
	Dir        string
	Level      string
	JSONFormat bool
	Categories map[string]bool
}

// entry is the JSON form of a single log line.
type entry struct {
	Timestamp int64  `json:"ts"`
	Category  string `json:"cat"`
	Level     string `json:"lvl"`
	Message   string `json:"msg"`
}

// Logger writes to one category's file. A Logger with a nil inner logger is a
// no-op; every method tolerates that.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	mu       sync.RWMutex
	loggers  = make(map[Category]*Logger)
	settings Settings
	logLevel = LevelInfo
)

// Initialize applies settings and, in debug mode, creates the log directory.
// Safe to call more than once; later calls replace the settings and drop
// cached loggers so new files pick up the new directory.
func Initialize(s Settings) error {
	mu.Lock()
	settings = s
	logLevel = parseLevel(s.Level)
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
	mu.Unlock()

	if !s.DebugMode {
		return nil
	}
	if s.Dir == "" {
		return fmt.Errorf("logging: dir required in debug mode")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("logging: create dir: %w", err)
	}
	Get(CategoryBoot).Info("logging initialized: dir=%s level=%s", s.Dir, s.Level)
	return nil
}

func parseLevel(level string) int {
	switch level {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// IsCategoryEnabled reports whether a category should produce output.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if !settings.DebugMode {
		return false
	}
	if settings.Categories == nil {
		return true
	}
	enabled, ok := settings.Categories[string(category)]
	if !ok {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category. Disabled categories get
// a no-op logger.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	dir := settings.Dir
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] warning: could not open %s: %v\n", path, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func (l *Logger) write(level int, levelName, format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	mu.RLock()
	minLevel := logLevel
	jsonFormat := settings.JSONFormat
	mu.RUnlock()
	if minLevel > level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if jsonFormat {
		data, err := json.Marshal(entry{
			Timestamp: time.Now().UnixMilli(),
			Category:  string(l.category),
			Level:     levelName,
			Message:   msg,
		})
		if err == nil {
			l.logger.Printf("%s", data)
			return
		}
	}
	l.logger.Printf("[%s] %s", levelName, msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(LevelDebug, "DEBUG", format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(LevelInfo, "INFO", format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(LevelWarn, "WARN", format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(LevelError, "ERROR", format, args...)
}
