package util

import "testing"

func TestElide(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"ACGT", 10, "ACGT"},
		{"ACGTACGTACGT", 8, "ACGTA..."},
		{"ACGTACGTACGT", 3, "ACGTACGTACGT"},
		{"ACGT", 4, "ACGT"},
	}
	for _, tt := range tests {
		if got := Elide(tt.in, tt.width); got != tt.want {
			t.Errorf("Elide(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestGetTerminalWidth(t *testing.T) {
	if w := GetTerminalWidth(); w <= 0 {
		t.Errorf("GetTerminalWidth() = %d, want positive", w)
	}
}

func TestShowProgress_Quiet(t *testing.T) {
	defer SetLogLevel(GetLogLevel())
	SetQuiet(true)
	if ShowProgress() {
		t.Error("progress should be hidden in quiet mode")
	}
}
