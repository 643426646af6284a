// Package logger provides the process-wide leveled logger used across
// stratofs. It is intentionally small: level filtering, printf formatting,
// and a swappable output destination.
package logger

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu           sync.Mutex
	currentLevel = LevelInfo
	out          = stdlog.New(os.Stderr, "", 0)
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// SetLevel sets the minimum level that is emitted. Unknown names keep the
// current level.
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel = LevelDebug
	case "INFO":
		currentLevel = LevelInfo
	case "WARN":
		currentLevel = LevelWarn
	case "ERROR":
		currentLevel = LevelError
	}
}

// SetOutput redirects log output, e.g. to a file or to io.Discard in tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = stdlog.New(w, "", 0)
}

func emit(level Level, format string, v ...any) {
	mu.Lock()
	defer mu.Unlock()
	if level < currentLevel {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	out.Println(fmt.Sprintf("[%s] [%s] %s", timestamp, level, fmt.Sprintf(format, v...)))
}

func Debug(format string, v ...any) { emit(LevelDebug, format, v...) }
func Info(format string, v ...any)  { emit(LevelInfo, format, v...) }
func Warn(format string, v ...any)  { emit(LevelWarn, format, v...) }
func Error(format string, v ...any) { emit(LevelError, format, v...) }
