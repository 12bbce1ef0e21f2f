package db

import (
	"encoding/json"
	"testing"
)

func TestStringSliceScanRoundTrip(t *testing.T) {
	t.Parallel()

	var s StringSlice
	if err := s.Scan([]byte(`["carbon-markets","technology"]`)); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(s) != 2 || s[0] != "carbon-markets" || s[1] != "technology" {
		t.Fatalf("unexpected slice: %v", s)
	}

	v, err := s.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if v.(string) != `["carbon-markets","technology"]` {
		t.Fatalf("unexpected value: %v", v)
	}
}

func TestStringSliceScanNil(t *testing.T) {
	t.Parallel()

	var s StringSlice
	if err := s.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if s == nil || len(s) != 0 {
		t.Fatalf("expected empty slice, got %v", s)
	}
}

func TestMetricValueScanNumber(t *testing.T) {
	t.Parallel()

	var m MetricValue
	if err := m.Scan([]byte(`85.5`)); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if m.Kind != MetricNumber {
		t.Fatalf("expected number kind, got %v", m.Kind)
	}
	if m.Number != 85.5 {
		t.Fatalf("expected 85.5, got %v", m.Number)
	}
}

func TestMetricValueScanObject(t *testing.T) {
	t.Parallel()

	var m MetricValue
	if err := m.Scan([]byte(`{"Seed":8500000,"Series A":25000000}`)); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if m.Kind != MetricObject {
		t.Fatalf("expected object kind, got %v", m.Kind)
	}
	if m.Object["Seed"] != 8500000 {
		t.Fatalf("unexpected object: %v", m.Object)
	}
}

func TestMetricValueScanDriverNumeric(t *testing.T) {
	t.Parallel()

	var m MetricValue
	if err := m.Scan(int64(42)); err != nil {
		t.Fatalf("scan int64: %v", err)
	}
	if m.Kind != MetricNumber || m.Number != 42 {
		t.Fatalf("unexpected value: %+v", m)
	}
}

func TestMetricValueScanRejectsGarbage(t *testing.T) {
	t.Parallel()

	var m MetricValue
	if err := m.Scan([]byte(`"not a metric"`)); err == nil {
		t.Fatal("expected error for non-numeric json string")
	}
}

func TestMetricValueJSONRendering(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(Num(12.8e9))
	if err != nil {
		t.Fatalf("marshal number: %v", err)
	}
	if string(raw) != "12800000000" {
		t.Fatalf("unexpected json: %s", raw)
	}

	raw, err = json.Marshal(Obj(map[string]float64{"Pre-seed": 2500000}))
	if err != nil {
		t.Fatalf("marshal object: %v", err)
	}
	if string(raw) != `{"Pre-seed":2500000}` {
		t.Fatalf("unexpected json: %s", raw)
	}

	var back MetricValue
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Kind != MetricObject || back.Object["Pre-seed"] != 2500000 {
		t.Fatalf("unexpected round trip: %+v", back)
	}
}

func TestMetricValueValueEncodesKind(t *testing.T) {
	t.Parallel()

	v, err := Num(2.85).Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if v.(string) != "2.85" {
		t.Fatalf("unexpected driver value: %v", v)
	}

	v, err = Obj(map[string]float64{"a": 1}).Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if v.(string) != `{"a":1}` {
		t.Fatalf("unexpected driver value: %v", v)
	}
}
