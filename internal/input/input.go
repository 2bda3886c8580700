// Package input expands id arguments that use - (stdin) or @file syntax.
package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrStdinReused is returned when more than one argument asks for stdin.
var ErrStdinReused = errors.New("stdin can only be read once")

// ExpandArgs replaces "-" with the lines of stdin and "@path" with the lines
// of that file. Other values pass through. Blank lines and lines starting
// with # are skipped.
func ExpandArgs(values []string, stdin io.Reader) ([]string, error) {
	var (
		out       []string
		stdinUsed bool
	)
	for _, v := range values {
		switch {
		case v == "-":
			if stdinUsed {
				return nil, ErrStdinReused
			}
			stdinUsed = true
			lines, err := ReadLines(stdin)
			if err != nil {
				return nil, fmt.Errorf("read stdin: %w", err)
			}
			out = append(out, lines...)
		case strings.HasPrefix(v, "@") && len(v) > 1:
			path := v[1:]
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			lines, err := ReadLines(f)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			out = append(out, lines...)
		default:
			out = append(out, v)
		}
	}
	return out, nil
}

// ReadLines reads trimmed non-empty, non-comment lines from r.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
