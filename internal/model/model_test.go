package model

import (
	"encoding/json"
	"testing"
)

func TestStatus_IsValid(t *testing.T) {
	for _, s := range []Status{StatusProcessing, StatusProcessed, StatusFailed} {
		if !s.IsValid() {
			t.Errorf("%q.IsValid() = false, want true", s)
		}
	}
	for _, s := range []Status{"", "pending", "PROCESSED"} {
		if s.IsValid() {
			t.Errorf("%q.IsValid() = true, want false", s)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	if !StatusProcessed.IsTerminal() {
		t.Error("processed should be terminal")
	}
	if StatusFailed.IsTerminal() || StatusProcessing.IsTerminal() {
		t.Error("only processed is terminal")
	}
}

func TestRecord_Exhausted(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"failed below budget", Record{Status: StatusFailed, Attempts: 2}, false},
		{"failed at budget", Record{Status: StatusFailed, Attempts: 3}, true},
		{"failed over budget", Record{Status: StatusFailed, Attempts: 4}, true},
		{"processing at budget", Record{Status: StatusProcessing, Attempts: 3}, false},
		{"processed at budget", Record{Status: StatusProcessed, Attempts: 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Exhausted(3); got != tt.want {
				t.Errorf("Exhausted(3) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWindowCounts_FailureRate(t *testing.T) {
	if got := (WindowCounts{}).FailureRate(); got != 0 {
		t.Errorf("empty window rate = %v, want 0", got)
	}
	if got := (WindowCounts{Total: 8, Failed: 2}).FailureRate(); got != 0.25 {
		t.Errorf("rate = %v, want 0.25", got)
	}
}

func TestEmptyStats_JSON(t *testing.T) {
	data, err := json.Marshal(EmptyStats())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"total":0,"processed":0,"failed":0,"processing":0,"exhausted":0,"recent_events":[],"recent_by_type":[]}`
	if string(data) != want {
		t.Errorf("EmptyStats JSON = %s, want %s", data, want)
	}
}

func TestRecord_JSONOmitsEmpty(t *testing.T) {
	data, err := json.Marshal(Record{EventID: "evt_1", Status: StatusProcessing, Attempts: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["last_error"]; ok {
		t.Error("last_error should be omitted when empty")
	}
	if _, ok := m["processed_at"]; ok {
		t.Error("processed_at should be omitted when nil")
	}
}
