package utils

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	apperrors "github.com/Skryldev/fileforge/errors"
)

func invalid(key, format string, args ...any) error {
	return apperrors.New(apperrors.KindInvalidParameters, "params."+key,
		fmt.Errorf("%w: %s", apperrors.ErrInvalidParameters, fmt.Sprintf(format, args...)))
}

// CheckKeys rejects any parameter not named in allowed.
func CheckKeys(params map[string]string, allowed ...string) error {
	unknown := lo.Filter(lo.Keys(params), func(k string, _ int) bool { return !lo.Contains(allowed, k) })
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return invalid("keys", "unknown parameter(s) %s", strings.Join(unknown, ", "))
	}
	return nil
}

// ParseSize parses "WxH".  Either side may be 0 (keep aspect) but not both.
func ParseSize(key, s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, invalid(key, "%q is not WxH", s)
	}
	w, err1 := strconv.Atoi(ws)
	h, err2 := strconv.Atoi(hs)
	if err1 != nil || err2 != nil || w < 0 || h < 0 || (w == 0 && h == 0) {
		return 0, 0, invalid(key, "%q is not WxH", s)
	}
	return w, h, nil
}

// ParseInts parses n comma-separated non-negative integers.
func ParseInts(key, s string, n int) ([]int, error) {
	fields := strings.Split(s, ",")
	if len(fields) != n {
		return nil, invalid(key, "%q: want %d comma-separated integers", s, n)
	}
	out := make([]int, n)
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || v < 0 {
			return nil, invalid(key, "%q: want %d comma-separated integers", s, n)
		}
		out[i] = v
	}
	return out, nil
}

// ParseSpan parses "start:duration" in seconds.  An empty duration means
// "to the end" and is returned as a negative value.
func ParseSpan(key, s string) (float64, float64, error) {
	ss, ds, _ := strings.Cut(strings.TrimSpace(s), ":")
	start, err := strconv.ParseFloat(ss, 64)
	if err != nil || !finite(start) || start < 0 {
		return 0, 0, invalid(key, "%q is not start:duration", s)
	}
	if ds == "" {
		return start, -1, nil
	}
	dur, err := strconv.ParseFloat(ds, 64)
	if err != nil || !finite(dur) || dur <= 0 {
		return 0, 0, invalid(key, "%q is not start:duration", s)
	}
	return start, dur, nil
}

// ParseFloat parses a finite float parameter; positive requires a value > 0.
func ParseFloat(key, s string, positive bool) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !finite(v) || (positive && v <= 0) {
		return 0, invalid(key, "%q is not a valid number", s)
	}
	return v, nil
}

// Frame rate bounds accepted for edits and slideshows.
const (
	MinFPS = 0.01
	MaxFPS = 240
)

// ParseFPS parses a frame rate within [MinFPS, MaxFPS].
func ParseFPS(key, s string) (float64, error) {
	v, err := ParseFloat(key, s, true)
	if err != nil {
		return 0, err
	}
	if v < MinFPS || v > MaxFPS {
		return 0, invalid(key, "%g fps outside %g-%d", v, MinFPS, MaxFPS)
	}
	return v, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// ParseInt parses a strictly positive integer parameter.
func ParseInt(key, s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v <= 0 {
		return 0, invalid(key, "%q is not a positive integer", s)
	}
	return v, nil
}

// ParseBool accepts the strconv spellings plus "yes"/"no".
func ParseBool(key, s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, invalid(key, "%q is not a boolean", s)
	}
	return v, nil
}

// ParseChoice returns s when it is one of choices.
func ParseChoice(key, s string, choices ...string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range choices {
		if s == c {
			return s, nil
		}
	}
	return "", invalid(key, "%q: want one of %s", s, strings.Join(choices, "|"))
}

// PageSpan is an inclusive 1-based page range.  Last is 0 for an open
// range ("3-") that runs to the final page.
type PageSpan struct {
	First, Last int
}

// ParsePageSpans checks the syntax of a page selection such as "1-3,5,7-"
// without expanding it, so it is safe before the page count is known.
func ParsePageSpans(key, s string) ([]PageSpan, error) {
	var out []PageSpan
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		first, last, isRange := strings.Cut(part, "-")
		a, err := strconv.Atoi(strings.TrimSpace(first))
		if err != nil || a < 1 {
			return nil, invalid(key, "%q is not a page range", part)
		}
		span := PageSpan{First: a, Last: a}
		if isRange {
			span.Last = 0
			if t := strings.TrimSpace(last); t != "" {
				if span.Last, err = strconv.Atoi(t); err != nil || span.Last < a {
					return nil, invalid(key, "%q is not a page range", part)
				}
			}
		}
		out = append(out, span)
	}
	if len(out) == 0 {
		return nil, invalid(key, "empty page selection")
	}
	return out, nil
}

// SelectPages expands spans against a document of n pages.  The result
// keeps the requested order.
func SelectPages(key string, spans []PageSpan, n int) ([]int, error) {
	var out []int
	for _, sp := range spans {
		last := sp.Last
		if last == 0 {
			last = n
		}
		if sp.First > n || last > n || last < sp.First {
			return nil, invalid(key, "range %d-%d outside 1-%d", sp.First, last, n)
		}
		for p := sp.First; p <= last; p++ {
			out = append(out, p)
		}
	}
	return out, nil
}
