package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the slice.
//   - error: non-nil if marshaling fails.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// JSONMap stores an arbitrary JSON object column (adapter configs, score breakdowns, odds lines).
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface for database serialization.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan JSONMap")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, m)
}

// String returns the string value stored under a dotted key path ("selectors.headline").
func (m JSONMap) String(path string) string {
	v, ok := m.lookup(path)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Int returns the integer stored under key, accepting JSON numbers decoded as float64.
func (m JSONMap) Int(path string) (int, bool) {
	v, ok := m.lookup(path)
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

// Bool returns the boolean stored under key.
func (m JSONMap) Bool(path string) bool {
	v, ok := m.lookup(path)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Has reports whether a non-nil value exists at key.
func (m JSONMap) Has(path string) bool {
	v, ok := m.lookup(path)
	return ok && v != nil
}

func (m JSONMap) lookup(path string) (interface{}, bool) {
	if m == nil {
		return nil, false
	}
	if v, ok := m[path]; ok {
		return v, true
	}
	// dotted path into nested objects
	var cur interface{} = map[string]interface{}(m)
	start := 0
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '.' {
			continue
		}
		obj, ok := cur.(map[string]interface{})
		if !ok {
			if jm, isJM := cur.(JSONMap); isJM {
				obj = map[string]interface{}(jm)
			} else {
				return nil, false
			}
		}
		cur, ok = obj[path[start:i]]
		if !ok {
			return nil, false
		}
		start = i + 1
	}
	return cur, true
}
