package inference

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fcmeyer/slurmhelper/pkg/errs"
)

const maxLogLine = 16 << 20

// ReadLines reads r line by line, trimming surrounding whitespace and
// dropping noise lines.
func ReadLines(r io.Reader, noise []string) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLogLine)

	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return FilterNoise(lines, noise), nil
}

// ReadLogFile reads a log from disk. A missing file yields a MissingLogError
// of the given kind.
func ReadLogFile(path, kind string, noise []string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errs.MissingLogError{Kind: kind, Path: path}
		}
		return nil, fmt.Errorf("open %s log: %w", kind, err)
	}
	defer func() { _ = f.Close() }()

	lines, err := ReadLines(f, noise)
	if err != nil {
		return nil, fmt.Errorf("read %s log %s: %w", kind, path, err)
	}
	return lines, nil
}
