package mapper

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/teamcache/teamcache/internal/model"
)

// Coercions never fail: a value of an unexpected type degrades to the zero
// value of the target.

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return x.String()
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x)
	}
	return ""
}

// asOptional returns nil for absent or empty values.
func asOptional(v any, ok bool) *string {
	if !ok {
		return nil
	}
	return model.StringPtr(asString(v))
}

func asBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "t", "1", "yes", "y":
			return true
		}
		return false
	case nil:
		return false
	}
	if f, ok := asNumber(v); ok {
		return f != 0
	}
	return false
}

func asFloat(v any) float64 {
	if f, ok := asNumber(v); ok {
		return f
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
	}
	return 0
}

func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	model.DateLayout,
}

// asTime accepts time.Time, the usual timestamp strings and unix epochs
// in seconds or milliseconds.
func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return x.UTC(), true
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return asTime(*x)
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		return time.Time{}, false
	}

	if f, ok := asNumber(v); ok && f > 0 {
		// Millisecond epochs are already past 1e11 for any date after 1973.
		if f > 1e11 {
			return time.UnixMilli(int64(f)).UTC(), true
		}
		return time.Unix(int64(f), 0).UTC(), true
	}
	return time.Time{}, false
}

// asDate returns the civil date of v as YYYY-MM-DD, or "" when v is none.
// Strings keep their written date (no zone conversion).
func asDate(v any) string {
	switch x := v.(type) {
	case string:
		d, err := model.ParseDate(x)
		if err != nil {
			return ""
		}
		return d.String()
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return model.DateOf(x).String()
	}
	if t, ok := asTime(v); ok {
		return model.DateOf(t).String()
	}
	return ""
}

// asSubscriptions accepts a list, a JSON array string or a comma-separated
// string, and returns a sorted set.
func asSubscriptions(v any) []string {
	var raw []string
	switch x := v.(type) {
	case []string:
		raw = x
	case []any:
		for _, item := range x {
			raw = append(raw, strings.TrimSpace(asString(item)))
		}
	case string:
		s := strings.TrimSpace(x)
		if strings.HasPrefix(s, "[") {
			var items []any
			if err := json.Unmarshal([]byte(s), &items); err == nil {
				return asSubscriptions(items)
			}
			return []string{}
		}
		for _, part := range strings.Split(s, ",") {
			raw = append(raw, strings.TrimSpace(part))
		}
	}
	return model.NormalizeSubscriptions(raw)
}
