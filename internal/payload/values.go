package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DecodeObject decodes raw JSON into a loosely typed object, keeping numbers as json.Number.
func DecodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("payload is not an object")
	}
	return obj, nil
}

func asObject(v any) (map[string]any, bool) {
	obj, ok := v.(map[string]any)
	return obj, ok
}

func asArray(v any) ([]any, bool) {
	arr, ok := v.([]any)
	return arr, ok
}

func lookup(obj map[string]any, path []string) any {
	var cur any = obj
	for _, key := range path {
		o, ok := asObject(cur)
		if !ok {
			return nil
		}
		cur = o[key]
	}
	return cur
}

func toString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := toString(obj[k]); ok {
			return s
		}
	}
	return ""
}

func toInt(v any) (int, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), true
		}
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = t
	case int:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	// float64(math.MaxInt) rounds up to 2^63, so the bounds are inclusive.
	switch {
	case f >= float64(math.MaxInt):
		return math.MaxInt, true
	case f <= float64(math.MinInt):
		return math.MinInt, true
	}
	return int(math.Trunc(f)), true
}

func firstInt(obj map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		if i, ok := toInt(obj[k]); ok {
			return i, true
		}
	}
	return 0, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(t), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return d, err == nil
	}
	return decimal.Zero, false
}

func firstDecimal(obj map[string]any, keys ...string) (decimal.Decimal, bool) {
	for _, k := range keys {
		if d, ok := toDecimal(obj[k]); ok {
			return d, true
		}
	}
	return decimal.Zero, false
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "si", "sí":
			return true
		}
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case float64:
		return t != 0
	}
	return false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// toTime accepts ISO-8601 strings and epoch milliseconds.
func toTime(v any) *time.Time {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				utc := parsed.UTC()
				return &utc
			}
		}
	case json.Number:
		ms, err := t.Int64()
		if err == nil && ms > 0 {
			utc := time.UnixMilli(ms).UTC()
			return &utc
		}
	}
	return nil
}

func clampMin0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// addSat adds two non-negative counts, saturating at math.MaxInt.
func addSat(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}
