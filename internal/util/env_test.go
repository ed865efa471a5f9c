package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"YES", false, true},
		{" on ", false, true},
		{"1", false, true},
		{"false", true, false},
		{"Off", true, false},
		{"0", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Setenv("OPSCOPILOT_TEST_BOOL", tt.value)
		if got := ParseBoolEnv("OPSCOPILOT_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestParseFloatEnv(t *testing.T) {
	tests := []struct {
		value string
		want  float64
	}{
		{"", 1},
		{"0.25", 0.25},
		{" 2 ", 2},
		{"0", 1},
		{"-1", 1},
		{"fast", 1},
	}
	for _, tt := range tests {
		t.Setenv("OPSCOPILOT_TEST_FLOAT", tt.value)
		if got := ParseFloatEnv("OPSCOPILOT_TEST_FLOAT", 1); got != tt.want {
			t.Errorf("ParseFloatEnv(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestGetEnvDefault(t *testing.T) {
	t.Setenv("OPSCOPILOT_TEST_STR", "  ")
	if got := GetEnvDefault("OPSCOPILOT_TEST_STR", "fallback"); got != "fallback" {
		t.Errorf("blank value: got %q", got)
	}
	t.Setenv("OPSCOPILOT_TEST_STR", "set")
	if got := GetEnvDefault("OPSCOPILOT_TEST_STR", "fallback"); got != "set" {
		t.Errorf("set value: got %q", got)
	}
}
