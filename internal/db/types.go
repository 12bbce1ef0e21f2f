package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringSlice is a thin wrapper around []string that implements
// sql.Scanner and driver.Valuer so it works transparently with jsonb columns.
type StringSlice []string

// Scan implements sql.Scanner
func (s *StringSlice) Scan(src interface{}) error {
	if s == nil {
		return fmt.Errorf("dbtypes: Scan on nil *StringSlice")
	}
	if src == nil {
		*s = []string{}
		return nil
	}

	switch v := src.(type) {
	case []byte:
		var out []string
		if err := json.Unmarshal(v, &out); err != nil {
			return err
		}
		*s = out
		return nil
	case string:
		var out []string
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return err
		}
		*s = out
		return nil
	default:
		return fmt.Errorf("dbtypes: cannot scan type %T into StringSlice", src)
	}
}

// Value implements driver.Valuer
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// MetricValueKind discriminates the two shapes a metric value can take.
type MetricValueKind int

const (
	// MetricNumber is a plain numeric value.
	MetricNumber MetricValueKind = iota
	// MetricObject is a structured breakdown, e.g. deal size by stage.
	MetricObject
)

// MetricValue is a tagged union stored in a jsonb column: either a single
// number or a string-keyed breakdown of numbers. Readers branch on Kind
// instead of sniffing an untyped blob.
type MetricValue struct {
	Kind   MetricValueKind
	Number float64
	Object map[string]float64
}

// Num builds a numeric metric value.
func Num(v float64) MetricValue {
	return MetricValue{Kind: MetricNumber, Number: v}
}

// Obj builds a structured metric value.
func Obj(v map[string]float64) MetricValue {
	return MetricValue{Kind: MetricObject, Object: v}
}

// Scan implements sql.Scanner
func (m *MetricValue) Scan(src interface{}) error {
	if m == nil {
		return fmt.Errorf("dbtypes: Scan on nil *MetricValue")
	}

	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = MetricValue{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case float64:
		*m = Num(v)
		return nil
	case int64:
		*m = Num(float64(v))
		return nil
	default:
		return fmt.Errorf("dbtypes: cannot scan type %T into MetricValue", src)
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		*m = Num(n)
		return nil
	}
	var obj map[string]float64
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("dbtypes: metric value is neither number nor object: %w", err)
	}
	*m = Obj(obj)
	return nil
}

// Value implements driver.Valuer
func (m MetricValue) Value() (driver.Value, error) {
	switch m.Kind {
	case MetricObject:
		b, err := json.Marshal(m.Object)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		b, err := json.Marshal(m.Number)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
}

// MarshalJSON renders the union as the bare value it holds.
func (m MetricValue) MarshalJSON() ([]byte, error) {
	if m.Kind == MetricObject {
		return json.Marshal(m.Object)
	}
	return json.Marshal(m.Number)
}

// UnmarshalJSON accepts either a number or an object of numbers.
func (m *MetricValue) UnmarshalJSON(data []byte) error {
	return m.Scan(data)
}
