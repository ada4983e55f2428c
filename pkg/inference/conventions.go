// Package inference determines job outcomes purely from the text logs the
// jobs left behind.
//
// Every job's log is located from its job id. A missing log is a recorded
// outcome, never an error; a present log is classified as succeeded or
// failed by a LogParser. Parsing conventions (sentinel, runtime line offset
// and prefix, noise lines) are isolated behind LogParser so they can change
// without touching aggregation.
package inference

import (
	"strconv"
	"strings"
	"time"
)

// PrefixMode selects how the runtime prefix is removed from the runtime line.
type PrefixMode string

const (
	// PrefixTrim removes the prefix only when the line starts with it.
	PrefixTrim PrefixMode = "trim_prefix"

	// PrefixStripChars removes every leading and trailing character that
	// occurs anywhere in the prefix. Kept for compatibility with logs checked
	// by earlier tooling; it also eats runtime digits if the prefix contains any.
	PrefixStripChars PrefixMode = "strip_chars"
)

// DefaultNoise is a terminal-artifact warning emitted by non-interactive
// shells; it says nothing about job outcome.
const DefaultNoise = "stty: standard input: Inappropriate ioctl for device"

// Conventions describe how job logs are laid out.
type Conventions struct {
	// SuccessMarker must appear in some line of a successful job's log.
	SuccessMarker string

	// RuntimePrefix precedes the runtime (integer seconds) on the runtime line.
	RuntimePrefix string

	// RuntimeOffset locates the runtime line among the filtered lines:
	// negative values count from the end (-3 = third to last), others index
	// from the start (0 = first).
	RuntimeOffset int

	PrefixMode PrefixMode

	// Noise lines are dropped before classification when they contain any of these.
	Noise []string
}

// DefaultConventions returns the conventions used by generated run scripts.
func DefaultConventions() Conventions {
	return Conventions{
		SuccessMarker: "JOB COMPLETED SUCCESSFULLY",
		RuntimePrefix: "runtime: ",
		RuntimeOffset: -3,
		PrefixMode:    PrefixTrim,
		Noise:         []string{DefaultNoise},
	}
}

// Verdict is what a parser concludes from one log.
type Verdict struct {
	Succeeded    bool
	Runtime      time.Duration
	RuntimeKnown bool
}

// LogParser classifies the filtered lines of one log.
type LogParser interface {
	Classify(lines []string) Verdict
}

// SentinelParser classifies logs by a success sentinel and a runtime line
// at a fixed offset from the end.
type SentinelParser struct {
	Conventions Conventions
}

// NewSentinelParser returns a parser for c.
func NewSentinelParser(c Conventions) *SentinelParser {
	return &SentinelParser{Conventions: c}
}

// Classify implements LogParser. Runtime is only reported for succeeded jobs.
func (p *SentinelParser) Classify(lines []string) Verdict {
	var v Verdict
	for _, l := range lines {
		if strings.Contains(l, p.Conventions.SuccessMarker) {
			v.Succeeded = true
			break
		}
	}
	if !v.Succeeded {
		return v
	}
	if secs, ok := p.Runtime(lines); ok {
		v.Runtime = time.Duration(secs) * time.Second
		v.RuntimeKnown = true
	}
	return v
}

// Runtime extracts the runtime in seconds, independent of success.
func (p *SentinelParser) Runtime(lines []string) (int64, bool) {
	idx := len(lines) + p.Conventions.RuntimeOffset
	if p.Conventions.RuntimeOffset >= 0 {
		idx = p.Conventions.RuntimeOffset
	}
	if idx < 0 || idx >= len(lines) {
		return 0, false
	}
	return ParseRuntime(lines[idx], p.Conventions.RuntimePrefix, p.Conventions.PrefixMode)
}

// ParseRuntime removes prefix from line according to mode and parses the
// remainder as integer seconds.
func ParseRuntime(line, prefix string, mode PrefixMode) (int64, bool) {
	var rest string
	switch mode {
	case PrefixStripChars:
		rest = strings.Trim(line, prefix)
	default:
		trimmed := strings.TrimSpace(line)
		p := strings.TrimSpace(prefix)
		if !strings.HasPrefix(trimmed, p) {
			return 0, false
		}
		rest = strings.TrimPrefix(trimmed, p)
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	return secs, true
}

// FilterNoise drops lines containing any noise pattern.
func FilterNoise(lines []string, noise []string) []string {
	if len(noise) == 0 {
		return lines
	}
	out := lines[:0:0]
	for _, l := range lines {
		drop := false
		for _, n := range noise {
			if strings.Contains(l, n) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, l)
		}
	}
	return out
}
