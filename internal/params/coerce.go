package params

import (
	"fmt"
	"math"
	"strconv"
)

// Decoders disagree on numeric types (JSON yields float64, YAML int,
// TOML int64), so every numeric field goes through these helpers.

func toString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expected finite number, got %v", f)
	}
	return f, nil
}

// toInt bounds every integer to int32 so the result does not depend on the
// platform's int size.
func toInt(v any) (int, error) {
	var i int64
	switch n := v.(type) {
	case int:
		i = int64(n)
	case int32:
		i = int64(n)
	case int64:
		i = n
	case uint64:
		if n > math.MaxInt32 {
			return 0, fmt.Errorf("integer %d out of range", n)
		}
		i = int64(n)
	case float64, float32:
		f, err := toFloat(n)
		if err != nil {
			return 0, err
		}
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("expected integer, got %v", f)
		}
		if f < math.MinInt32 || f > math.MaxInt32 {
			return 0, fmt.Errorf("integer %v out of range", f)
		}
		i = int64(f)
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, fmt.Errorf("integer %d out of range", i)
	}
	return int(i), nil
}

func toLogitBias(v any) (map[string]int, error) {
	out := map[string]int{}
	switch m := v.(type) {
	case nil:
		return out, nil
	case map[string]int:
		for k, bias := range m {
			out[k] = bias
		}
	case map[string]any:
		for k, raw := range m {
			bias, err := toInt(raw)
			if err != nil {
				return nil, fmt.Errorf("token %s: %w", k, err)
			}
			out[k] = bias
		}
	case map[any]any:
		for rawKey, raw := range m {
			var k string
			switch key := rawKey.(type) {
			case string:
				k = key
			case int:
				k = strconv.Itoa(key)
			default:
				return nil, fmt.Errorf("unsupported token key %T", rawKey)
			}
			bias, err := toInt(raw)
			if err != nil {
				return nil, fmt.Errorf("token %s: %w", k, err)
			}
			out[k] = bias
		}
	case []any:
		// Older documents wrote an empty bias as an empty list.
		if len(m) != 0 {
			return nil, fmt.Errorf("expected mapping, got list of %d items", len(m))
		}
	default:
		return nil, fmt.Errorf("expected mapping, got %T", v)
	}
	return out, nil
}
