package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field parsers for the two scalar string shapes the config uses: Go
// duration strings for intervals/timeouts and "HH:MM" for window boundaries.
// Durations live in the config as strings so a reload can't smuggle in a
// raw nanosecond count; both shapes are validated once at load and parsed
// again at point of use.

// ParseDurationField parses one duration-valued field. An omitted field
// (empty string) maps to zero so the caller can substitute its default;
// negative durations are rejected outright.
func ParseDurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf(`%s: %q is not a duration (want forms like "30s", "1m30s")`, path, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: %q is negative", path, raw)
	}
	return d, nil
}

// ParseDurationOrDefault resolves a duration field at point of use: omitted
// or zero takes def, anything invalid errors.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}

// ParseClock parses an "HH:MM" window boundary into minutes since midnight,
// the unit the schedule resolver works in.
func ParseClock(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time-of-day %q: want HH:MM", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hh*60 + mm, nil
}
