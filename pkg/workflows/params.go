package workflows

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Params carries the caller-supplied arguments of a transition.
type Params map[string]any

// String returns the trimmed string form of key, or "" when absent.
func (p Params) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return strings.TrimSpace(s.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Float parses key as a number. ok is false when absent or unparsable.
func (p Params) Float(key string) (float64, bool) {
	v, present := p[key]
	if !present || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Time accepts time.Time values or RFC3339 / YYYY-MM-DD strings.
func (p Params) Time(key string) (time.Time, bool) {
	v, present := p[key]
	if !present || v == nil {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
		if parsed, err := time.Parse("2006-01-02", t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Clone returns a shallow copy safe to hand to observers.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
