package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fatih/color"
	"github.com/kozi00/wildfire-detect/internal/config"
	"github.com/natefinch/lumberjack"
)

const flags = log.Ldate | log.Ltime | log.Lshortfile

// Logger provides leveled logging (info/warning/error) to rotated files and stdout/stderr.
type Logger struct {
	infoLog    []*log.Logger
	warningLog []*log.Logger
	errorLog   []*log.Logger
	files      []io.Closer
	logDir     string
	mu         sync.Mutex
}

// NewLogger creates a Logger writing to info.log, warning.log and error.log in
// the configured directory. Files are rotated by lumberjack.
func NewLogger(cfg *config.Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := NewConsole(os.Stdout, os.Stderr)
	l.logDir = cfg.LogDirectory

	infoFile := l.rotatingFile(cfg, "info.log")
	warningFile := l.rotatingFile(cfg, "warning.log")
	errorFile := l.rotatingFile(cfg, "error.log")

	l.infoLog = append(l.infoLog, log.New(infoFile, "INFO    ", flags))
	l.warningLog = append(l.warningLog, log.New(warningFile, "WARNING ", flags))
	l.errorLog = append(l.errorLog, log.New(errorFile, "ERROR   ", flags))

	return l, nil
}

// NewConsole creates a Logger without file outputs. Level tags are coloured
// when the output is a terminal.
func NewConsole(out, errOut io.Writer) *Logger {
	return &Logger{
		infoLog:    []*log.Logger{log.New(out, color.New(color.FgCyan).Sprint("INFO    "), flags)},
		warningLog: []*log.Logger{log.New(out, color.New(color.FgYellow).Sprint("WARNING "), flags)},
		errorLog:   []*log.Logger{log.New(errOut, color.New(color.FgRed, color.Bold).Sprint("ERROR   "), flags)},
	}
}

// rotatingFile opens a size-rotated log file under the log directory.
func (l *Logger) rotatingFile(cfg *config.Config, name string) io.Writer {
	file := &lumberjack.Logger{
		Filename:   filepath.Join(l.logDir, name),
		MaxSize:    cfg.LogMaxSizeMB, // MB
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays, // days
		Compress:   true,
	}
	l.files = append(l.files, file)
	return file
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.write(l.infoLog, format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.write(l.warningLog, format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.write(l.errorLog, format, v...)
}

// StdError returns a standard library logger that forwards to the error level,
// suitable for http.Server.ErrorLog.
func (l *Logger) StdError() *log.Logger {
	return log.New(writerFunc(func(p []byte) (int, error) {
		l.Error("%s", p)
		return len(p), nil
	}), "", 0)
}

// Close flushes and closes the rotated log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}

func (l *Logger) write(targets []*log.Logger, format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, target := range targets {
		// 3 skips write and the level method so Lshortfile names the caller.
		target.Output(3, msg)
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
