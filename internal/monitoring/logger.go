package monitoring

import (
	"io"
	"log"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// FileLogOptions controls rotation of the log file written by NewFileLogger.
type FileLogOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileLogOptions keeps a week of compressed logs.
func DefaultFileLogOptions() FileLogOptions {
	return FileLogOptions{
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Compress:   true,
	}
}

// NewFileLogger returns a logger that writes to stderr and to a rotating file
// at path. The returned closer flushes and closes the file.
func NewFileLogger(path string, opts FileLogOptions) (*log.Logger, io.Closer) {
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
		LocalTime:  true,
	}
	return log.New(io.MultiWriter(os.Stderr, rotator), "", log.LstdFlags|log.Lmicroseconds), rotator
}

// Once reports a persistent condition a single time until it is Reset, so a
// failure that repeats every frame produces one log line instead of thousands.
type Once struct {
	mu     sync.Mutex
	logged bool
}

// Logf logs the message through the package logger if the condition has not
// been reported since the last Reset. It reports whether it logged.
func (o *Once) Logf(format string, v ...interface{}) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.logged {
		return false
	}
	o.logged = true
	Logf(format, v...)
	return true
}

// Reset re-arms the condition. It reports whether the condition had been
// logged, which callers use to emit a matching "recovered" line.
func (o *Once) Reset() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	was := o.logged
	o.logged = false
	return was
}
