package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const envVar = "LOGLEVEL"

var tagLevels []struct {
	tag   string
	level Level
}

// defaultTagLevels seeds built-in verbosity for tags whose tick loops
// would otherwise flood Info output: the outgoing/incoming video workers
// run every 30ms/100ms (spec.md §4.4/§4.5) and the capture path runs once
// per tick alongside them, so a steady-state call would log continuously
// at Info. Protocol-level tags (scp, session, discovery) are left to
// fall back to defaultLevel (Info) since SCP events are comparatively
// rare and worth seeing by default. LOGLEVEL always overrides these.
var defaultTagLevels = map[string]Level{
	"video-out": Warn,
	"video-in":  Warn,
	"capture":   Warn,
}

// colorEnabled reports whether the default destination (stderr) is an
// interactive terminal. eyespyd commonly runs under a process supervisor
// that captures stderr into a plain-text log file, where ANSI escapes
// would just show up as garbage; fatih/color's NoColor switch is flipped
// to match, so both the logger and cmd/eyespyd's own colored CLI output
// degrade together.
var colorEnabled = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

func init() {
	if !colorEnabled {
		color.NoColor = true
	}

	// Parse environment variable into comma-separated "tag=level" directives.
	// If "tag=" is absent, use the level as the default.
	for _, d := range strings.Split(os.Getenv(envVar), ",") {
		if d == "" {
			continue
		}
		v := strings.SplitN(d, "=", 2)
		levelString := v[len(v)-1]
		if level, err := parseLevel(levelString); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid %s directive '%s': %s\n", envVar, d, err)
		} else {
			if len(v) == 1 {
				defaultLevel = level
			} else {
				tagLevels = append(tagLevels, struct {
					tag   string
					level Level
				}{v[0], level})
			}
		}
	}

	DefaultLogger.Level = defaultLevel
}

func determineLevel(tag string, fallback Level) Level {
	for _, e := range tagLevels {
		if e.tag == tag {
			return e.level
		}
	}
	if level, ok := defaultTagLevels[tag]; ok {
		return level
	}
	return fallback
}
