package source

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// maxSeconds is the largest whole number of seconds a time.Duration holds.
const maxSeconds = math.MaxInt64 / int64(time.Second)

// Params holds free-form source parameters. Unknown keys are ignored.
type Params map[string]any

// Duration reads key as a duration. Plain numbers and numeric strings are
// seconds; other strings are parsed with time.ParseDuration. A missing or nil
// key yields def.
func (p Params) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}

	switch x := v.(type) {
	case time.Duration:
		return x, nil
	case int:
		return wholeSeconds(key, int64(x))
	case int64:
		return wholeSeconds(key, x)
	case uint64:
		if x > uint64(maxSeconds) {
			return 0, fmt.Errorf("param %q: %d seconds out of range", key, x)
		}
		return wholeSeconds(key, int64(x))
	case float64:
		return secondsToDuration(key, x)
	case float32:
		return secondsToDuration(key, float64(x))
	case string:
		s := strings.TrimSpace(x)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return secondsToDuration(key, f)
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("param %q: %w", key, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("param %q: unsupported type %T", key, v)
	}
}

func wholeSeconds(key string, secs int64) (time.Duration, error) {
	if secs > maxSeconds || secs < -maxSeconds {
		return 0, fmt.Errorf("param %q: %d seconds out of range", key, secs)
	}
	return time.Duration(secs) * time.Second, nil
}

func secondsToDuration(key string, secs float64) (time.Duration, error) {
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, fmt.Errorf("param %q: invalid seconds %v", key, secs)
	}
	if secs > float64(maxSeconds) || secs < -float64(maxSeconds) {
		return 0, fmt.Errorf("param %q: %v seconds out of range", key, secs)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
