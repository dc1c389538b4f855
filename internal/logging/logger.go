package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

const timestampFormat = "2006-01-02 15:04:05.000"

type Logger struct {
	// The level at which this logger logs. Any log messages intended for a higher
	// (more verbose) log level are ignored.
	Level

	// Tag used to filter and classify log messages.
	Tag string

	// fields are "key=value" pairs appended to every message this logger
	// (or a descendant derived via WithTag/WithDefaultLevel) emits, e.g.
	// the peer address a video worker is currently streaming to. Unlike
	// Tag, which picks a verbosity bucket, fields carry per-connection
	// context so a CONNECT/DISCONNECT cycle's log lines can be picked out
	// of an otherwise continuous tick-loop stream.
	fields []string

	out io.Writer

	// Mutex to prevent messages from different goroutines from interleaving.
	// Shared by all derived loggers.
	mu *sync.Mutex
}

// Write to stderr by default.
var DefaultLogger = &Logger{Level: defaultLevel, out: os.Stderr, mu: new(sync.Mutex)}

// Override the destination for this logger.
func (log *Logger) SetDestination(out io.Writer) {
	log.out = out
}

// WithTag derives a new logger scoped to tag. Its level is looked up from
// LOGLEVEL overrides and the built-in defaultTagLevels table (config.go),
// falling back to the parent's level; fields carry over unchanged.
func (log *Logger) WithTag(tag string) *Logger {
	return &Logger{
		Level:  determineLevel(tag, log.Level),
		Tag:    tag,
		fields: log.fields,
		out:    log.out,
		mu:     log.mu,
	}
}

// WithDefaultLevel derives a new logger with the given default level. This can
// still be overridden at runtime.
func (log *Logger) WithDefaultLevel(level Level) *Logger {
	return &Logger{
		Level:  determineLevel(log.Tag, level),
		Tag:    log.Tag,
		fields: log.fields,
		out:    log.out,
		mu:     log.mu,
	}
}

// WithField derives a logger that annotates every subsequent message with
// "key=value", on top of any fields already attached. Used by the video
// workers to tag log lines with the peer a connection is currently
// streaming to or from, e.g. outLog.WithField("peer", dest).
func (log *Logger) WithField(key string, value interface{}) *Logger {
	field := fmt.Sprintf("%s=%v", key, value)
	fields := make([]string, len(log.fields), len(log.fields)+1)
	copy(fields, log.fields)
	fields = append(fields, field)

	return &Logger{
		Level:  log.Level,
		Tag:    log.Tag,
		fields: fields,
		out:    log.out,
		mu:     log.mu,
	}
}

// Wrapper for []byte that implements io.Writer. Simpler and cheaper than
// bytes.Buffer.
type buffer []byte

func (b *buffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

func (b *buffer) writeString(s string) {
	*b = append(*b, s...)
}

func (b *buffer) writeByte(c byte) {
	*b = append(*b, c)
}

// A global buffer pool, shared across all loggers. Initial capacity is 256 to
// accommodate *most* log lines.
var bufPool = sync.Pool{
	New: func() interface{} {
		return make(buffer, 0, 256)
	},
}

// Log a message at the given level. Include the file and line number from
// 'calldepth' steps up the call stack.
func (log *Logger) Log(level Level, calldepth int, format string, a ...interface{}) {
	if level > log.Level {
		// Message is too verbose for this logger.
		return
	}

	// Grab an empty buffer from the pool.
	buf := bufPool.Get().(buffer)
	// When we're done, reset the buffer and return it to the pool.
	defer bufPool.Put(buf[:0])

	// Write the current timestamp.
	buf = time.Now().AppendFormat(buf, timestampFormat)
	buf.writeByte(' ')

	// Write level and tag, colored per level.color() (fatih/color, honors
	// color.NoColor when stderr isn't a terminal).
	buf.writeString(level.color().Sprintf("%c/%s", level.letter(), log.Tag))

	// Get the caller of Error()/Warn()/Info()/etc.
	_, file, line, ok := runtime.Caller(calldepth + 1)
	if !ok {
		file = "?"
	}

	// Write file and line number, then any attached fields.
	fmt.Fprintf(&buf, "[%s:%d]", filepath.Base(file), line)
	for _, field := range log.fields {
		buf.writeByte(' ')
		buf.writeString(field)
	}
	buf.writeByte(' ')

	// Write formatted log message.
	fmt.Fprintf(&buf, format, a...)

	// Append newline if necessary.
	if n := len(format); n == 0 || format[n-1] != '\n' {
		buf.writeByte('\n')
	}

	// Lock before writing to avoid interleaving of log messages.
	log.mu.Lock()
	if _, err := log.out.Write(buf); err != nil {
		panic(fmt.Sprintf("Failed to log to %v: %v", log.out, err))
	}
	log.mu.Unlock()
}

func (log *Logger) Error(format string, a ...interface{}) {
	log.Log(Error, 1, format, a...)
}

func (log *Logger) Warn(format string, a ...interface{}) {
	log.Log(Warn, 1, format, a...)
}

func (log *Logger) Info(format string, a ...interface{}) {
	log.Log(Info, 1, format, a...)
}

func (log *Logger) Debug(format string, a ...interface{}) {
	log.Log(Debug, 1, format, a...)
}

func (log *Logger) Trace(n int, format string, a ...interface{}) {
	log.Log(Level(n), 1, format, a...)
}
