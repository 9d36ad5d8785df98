package phone

import (
	"fmt"
	"strconv"
	"strings"
)

// Ring pattern limits.
const (
	// maxRingRepeats bounds the repeat count.
	maxRingRepeats = 100

	// maxRingDurationMs bounds a single ring or pause segment (30 seconds).
	maxRingDurationMs = 30000
)

// RingPattern is a parsed ring cadence: alternating ring/pause durations in
// milliseconds, played Repeats times.
type RingPattern struct {
	Durations []int
	Repeats   int
}

// ParseRingPattern parses a ring pattern string.
//
// Grammar:
//   - Comma-separated durations in milliseconds: "1000,200,1000"
//   - An optional repeat suffix, either "x3" or "/3": "2500,500,500,500x3"
//
// Validation:
//   - Repeats must be between 1 and 100.
//   - Each duration must be between 1 and 30000 ms.
//   - A repeated pattern must have an even number of durations so segments
//     alternate ring/pause cleanly across iterations.
func ParseRingPattern(pattern string) (RingPattern, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return RingPattern{}, fmt.Errorf("%w: empty pattern", ErrInvalidRingPattern)
	}

	repeats := 1
	main := pattern

	// Repeat suffix: "x3" or "/3"
	if idx := strings.LastIndexByte(pattern, 'x'); idx >= 0 {
		main = pattern[:idx]
		n, err := strconv.Atoi(strings.TrimSpace(pattern[idx+1:]))
		if err != nil {
			return RingPattern{}, fmt.Errorf("%w: bad repeat count in %q", ErrInvalidRingPattern, pattern)
		}
		repeats = n
	} else if idx := strings.LastIndexByte(pattern, '/'); idx >= 0 {
		main = pattern[:idx]
		n, err := strconv.Atoi(strings.TrimSpace(pattern[idx+1:]))
		if err != nil {
			return RingPattern{}, fmt.Errorf("%w: bad repeat count in %q", ErrInvalidRingPattern, pattern)
		}
		repeats = n
	}

	if repeats < 1 || repeats > maxRingRepeats {
		return RingPattern{}, fmt.Errorf("%w: repeat count %d out of range 1..%d", ErrInvalidRingPattern, repeats, maxRingRepeats)
	}

	var durations []int
	for _, part := range strings.Split(main, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return RingPattern{}, fmt.Errorf("%w: bad duration %q", ErrInvalidRingPattern, part)
		}
		if d < 1 || d > maxRingDurationMs {
			return RingPattern{}, fmt.Errorf("%w: duration %d out of range 1..%d ms", ErrInvalidRingPattern, d, maxRingDurationMs)
		}
		durations = append(durations, d)
	}

	if len(durations) == 0 {
		return RingPattern{}, fmt.Errorf("%w: no durations in %q", ErrInvalidRingPattern, pattern)
	}

	// Repeated patterns alternate ring/pause, so the segment count must be even.
	if repeats > 1 && len(durations)%2 != 0 {
		return RingPattern{}, fmt.Errorf("%w: repeated pattern needs an even number of durations, got %d", ErrInvalidRingPattern, len(durations))
	}

	return RingPattern{Durations: durations, Repeats: repeats}, nil
}

// String renders the pattern back into the device's wire format.
func (p RingPattern) String() string {
	parts := make([]string, len(p.Durations))
	for i, d := range p.Durations {
		parts[i] = strconv.Itoa(d)
	}
	s := strings.Join(parts, ",")
	if p.Repeats > 1 {
		s += "x" + strconv.Itoa(p.Repeats)
	}
	return s
}
