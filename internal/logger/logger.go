package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel defines log level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case INFO:
		return zerolog.InfoLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel maps a config string to a LogLevel. Unknown values yield INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Logger writes structured logs to a daily rotated file and optionally to stderr
type Logger struct {
	level  LogLevel
	file   *dailyFile
	zl     zerolog.Logger
	closed bool
	mu     sync.Mutex
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Config logger configuration
type Config struct {
	LogDir     string   // Log directory
	Level      LogLevel // Log level
	MaxDays    int      // Max days to keep logs
	ConsoleOut bool     // Output to stderr as well
}

// Init initializes the default logger
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		defaultLogger, err = NewLogger(cfg)
	})
	return err
}

// NewLogger creates a new logger instance
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = 7
	}

	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file := &dailyFile{logDir: cfg.LogDir, maxDays: cfg.MaxDays}
	if err := file.rotateIfNeeded(); err != nil {
		return nil, err
	}

	var out io.Writer = file
	if cfg.ConsoleOut {
		console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		out = zerolog.MultiLevelWriter(file, console)
	}

	zl := zerolog.New(out).
		Level(cfg.Level.zerolog()).
		With().
		Timestamp().
		Logger()

	return &Logger{
		level: cfg.Level,
		file:  file,
		zl:    zl,
	}, nil
}

// dailyFile is an io.Writer that switches to a new file each day and
// keeps only the newest maxDays files.
type dailyFile struct {
	mu          sync.Mutex
	logDir      string
	maxDays     int
	currentFile *os.File
	currentDate string
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.rotateIfNeeded(); err != nil {
		return 0, err
	}
	return d.currentFile.Write(p)
}

// rotateIfNeeded checks if log rotation is needed and performs it
func (d *dailyFile) rotateIfNeeded() error {
	today := time.Now().Format("2006-01-02")
	if d.currentDate == today && d.currentFile != nil {
		return nil
	}

	if d.currentFile != nil {
		d.currentFile.Close()
	}

	filename := filepath.Join(d.logDir, fmt.Sprintf("deepr-%s.log", today))
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	d.currentFile = f
	d.currentDate = today

	go d.cleanOldLogs()

	return nil
}

// cleanOldLogs removes log files older than maxDays
func (d *dailyFile) cleanOldLogs() {
	files, err := filepath.Glob(filepath.Join(d.logDir, "deepr-*.log"))
	if err != nil {
		return
	}

	if len(files) <= d.maxDays {
		return
	}

	// File names sort by date
	sort.Strings(files)

	for i := 0; i < len(files)-d.maxDays; i++ {
		os.Remove(files[i])
	}
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.currentFile == nil {
		return nil
	}
	err := d.currentFile.Close()
	d.currentFile = nil
	return err
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.zl.WithLevel(level.zerolog()).Msgf(format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// Component returns a structured logger tagged with the component name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zl.With().Str("component", name).Logger()
}

// Close closes the logger
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// GetWriter returns an io.Writer for the logger at the specified level
func (l *Logger) GetWriter(level LogLevel) io.Writer {
	return &logWriter{logger: l, level: level}
}

// logWriter implements io.Writer interface
type logWriter struct {
	logger *Logger
	level  LogLevel
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.logger.log(w.level, "%s", msg)
	}
	return len(p), nil
}

// Package-level functions using the default logger

// Debug logs a debug message using the default logger
func Debug(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Debug(format, args...)
	}
}

// Info logs an info message using the default logger
func Info(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Info(format, args...)
	}
}

// Warn logs a warning message using the default logger
func Warn(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Warn(format, args...)
	}
}

// Error logs an error message using the default logger
func Error(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Error(format, args...)
	}
}

// Component returns a structured logger for name from the default logger,
// or a disabled logger when none has been initialized.
func Component(name string) zerolog.Logger {
	if defaultLogger == nil {
		return zerolog.Nop()
	}
	return defaultLogger.Component(name)
}

// Close closes the default logger
func Close() error {
	if defaultLogger != nil {
		return defaultLogger.Close()
	}
	return nil
}

// GetDefault returns the default logger
func GetDefault() *Logger {
	return defaultLogger
}
