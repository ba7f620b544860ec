package envconfig

import (
	"fmt"
	"math"
)

// Kwargs holds free-form keyword configuration of an environment. Values
// decoded from YAML or JSON may have any numeric type; the getters
// convert them where no precision is lost.
type Kwargs map[string]any

// Has returns whether key is set
func (k Kwargs) Has(key string) bool {
	_, ok := k[key]
	return ok
}

// Float returns the float value of key, or def if key is not set
func (k Kwargs) Float(key string, def float64) (float64, error) {
	v, ok := k[key]
	if !ok {
		return def, nil
	}

	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	}
	return 0, fmt.Errorf("float: kwarg %v has type %T, expected a number",
		key, v)
}

// Int returns the integer value of key, or def if key is not set
func (k Kwargs) Int(key string, def int) (int, error) {
	v, ok := k[key]
	if !ok {
		return def, nil
	}

	switch v := v.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), nil
		}
	}
	return 0, fmt.Errorf("int: kwarg %v has type %T, expected an integer",
		key, v)
}

// Uint returns the unsigned integer value of key, or def if key is not
// set
func (k Kwargs) Uint(key string, def uint64) (uint64, error) {
	if !k.Has(key) {
		return def, nil
	}
	v, err := k.Int(key, 0)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("uint: kwarg %v = %v, expected a non-negative "+
			"integer", key, k[key])
	}
	return uint64(v), nil
}

// Bool returns the boolean value of key, or def if key is not set
func (k Kwargs) Bool(key string, def bool) (bool, error) {
	v, ok := k[key]
	if !ok {
		return def, nil
	}

	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("bool: kwarg %v has type %T, expected a "+
			"bool", key, v)
	}
	return b, nil
}

// String returns the string value of key, or def if key is not set
func (k Kwargs) String(key string, def string) (string, error) {
	v, ok := k[key]
	if !ok {
		return def, nil
	}

	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("string: kwarg %v has type %T, expected a "+
			"string", key, v)
	}
	return s, nil
}

// Floats returns the list value of key, or nil if key is not set
func (k Kwargs) Floats(key string) ([]float64, error) {
	v, ok := k[key]
	if !ok {
		return nil, nil
	}

	switch v := v.(type) {
	case []float64:
		return append([]float64(nil), v...), nil
	case []any:
		out := make([]float64, len(v))
		for i := range v {
			f, err := Kwargs{key: v[i]}.Float(key, 0)
			if err != nil {
				return nil, fmt.Errorf("floats: %w", err)
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, fmt.Errorf("floats: kwarg %v has type %T, expected a list "+
		"of numbers", key, v)
}

// clone returns a shallow copy of k
func (k Kwargs) clone() Kwargs {
	out := make(Kwargs, len(k))
	for key, v := range k {
		out[key] = v
	}
	return out
}

// only returns a shallow copy of k holding only the given keys
func (k Kwargs) only(keys ...string) Kwargs {
	out := make(Kwargs, len(keys))
	for _, key := range keys {
		if v, ok := k[key]; ok {
			out[key] = v
		}
	}
	return out
}
