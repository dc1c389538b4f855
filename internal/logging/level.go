package logging

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// Level is a logging level. Higher values indicate more verbosity.
type Level int

const (
	Error Level = iota - 2
	Warn
	Info
	Debug

	// MaxLevel is the highest numeric Trace level allowed.
	MaxLevel Level = 9
)

// defaultLevel is the level new loggers get when LOGLEVEL names no
// default, no tag-specific override, and the tag has no built-in entry in
// defaultTagLevels (config.go).
var defaultLevel = Info

func parseLevel(s string) (level Level, err error) {
	switch strings.ToUpper(s) {
	case "E", "ERROR":
		return Error, nil
	case "W", "WARN":
		return Warn, nil
	case "I", "INFO":
		return Info, nil
	case "D", "DEBUG":
		return Debug, nil
	case "T", "TRACE":
		return MaxLevel, nil
	}

	n, ierr := strconv.Atoi(s)
	if ierr != nil {
		return 0, errors.New("invalid logging level: " + s)
	}
	level = Level(n)
	if level < Error || level > MaxLevel {
		return 0, errors.New("numeric level out of range: " + s)
	}
	return level, nil
}

var levelToName = map[Level]string{
	Error: "Error",
	Warn:  "Warn",
	Info:  "Info",
	Debug: "Debug",
}

func (l Level) String() string {
	if name, ok := levelToName[l]; ok {
		return name
	}
	return fmt.Sprintf("Trace(%d)", int(l))
}

func (l Level) letter() byte {
	if l <= Debug {
		return "EWID"[l-Error]
	}
	return byte('0' + l)
}

// levelColors is built once: fatih/color attribute sets per level, in
// place of the hand-rolled ANSI escape tables the teacher logger carried.
// cmd/eyespyd already pulls in fatih/color for its own connection-state
// highlighting, so the logger rides that same dependency instead of
// maintaining a second, parallel set of escape codes. color.NoColor is
// the package-wide switch colorEnabled (config.go) flips when stderr
// isn't a terminal, so log output degrades to plain text under the same
// rule the CLI's own colored output does.
var levelColors = map[Level]*color.Color{
	Error: color.New(color.FgRed, color.Bold),
	Warn:  color.New(color.FgYellow, color.Bold),
	Info:  color.New(color.FgGreen, color.Bold),
}

var traceColor = color.New(color.FgCyan, color.Bold)

func (l Level) color() *color.Color {
	if c, ok := levelColors[l]; ok {
		return c
	}
	return traceColor
}
