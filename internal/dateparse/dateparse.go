// Package dateparse turns "since" expressions into a start time for
// filtering attempts and sessions.
package dateparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseSince parses a lower bound relative to now.
//
// Supported formats:
//   - Exact dates: "2026-03-01" (start of that day, local time)
//   - Relative: "7d", "2w", "1m", "12h" (a leading "-" is accepted)
//   - Keywords: "today", "yesterday", "week" (start of the current ISO week),
//     "month" (1st of the current month)
func ParseSince(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return time.Time{}, fmt.Errorf("empty date input")
	}

	if t, err := time.ParseInLocation("2006-01-02", input, now.Location()); err == nil {
		return t, nil
	}

	today := startOfDay(now)
	switch input {
	case "today", "hoje":
		return today, nil
	case "yesterday", "ontem":
		return today.AddDate(0, 0, -1), nil
	case "week", "semana":
		back := (int(now.Weekday()) + 6) % 7
		return today.AddDate(0, 0, -back), nil
	case "month", "mes", "mês":
		y, m, _ := now.Date()
		return time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), nil
	}

	rel := strings.TrimPrefix(input, "-")
	if len(rel) >= 2 {
		unit := rel[len(rel)-1]
		n, err := strconv.Atoi(rel[:len(rel)-1])
		if err == nil && n >= 0 {
			switch unit {
			case 'h':
				return now.Add(-time.Duration(n) * time.Hour), nil
			case 'd':
				return now.AddDate(0, 0, -n), nil
			case 'w':
				return now.AddDate(0, 0, -7*n), nil
			case 'm':
				return now.AddDate(0, -n, 0), nil
			default:
				return time.Time{}, fmt.Errorf("unknown relative unit %q in %q (use h, d, w or m)", string(unit), input)
			}
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date format: %q", input)
}

// SinceMillis is ParseSince as epoch milliseconds.
func SinceMillis(input string, now time.Time) (int64, error) {
	t, err := ParseSince(input, now)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
