package models

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      Timeframe
		wantError bool
	}{
		{"one hour", "1h", Timeframe1h, false},
		{"four hours", "4h", Timeframe4h, false},
		{"one day", "1d", Timeframe1d, false},
		{"one week", "1w", Timeframe1w, false},
		{"empty", "", "", true},
		{"unsupported", "15m", "", true},
		{"uppercase", "1H", "", true},
		{"whitespace", " 1h", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeframe(tt.input)
			if tt.wantError {
				if !errors.Is(err, ErrInvalidTimeframe) {
					t.Errorf("ParseTimeframe(%q) error = %v, want ErrInvalidTimeframe", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeframe(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseTimeframe(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTimeframe_Duration(t *testing.T) {
	tests := []struct {
		tf   Timeframe
		want time.Duration
	}{
		{Timeframe1h, time.Hour},
		{Timeframe4h, 4 * time.Hour},
		{Timeframe1d, 24 * time.Hour},
		{Timeframe1w, 7 * 24 * time.Hour},
		{Timeframe("bogus"), 0},
	}

	for _, tt := range tests {
		if got := tt.tf.Duration(); got != tt.want {
			t.Errorf("%s.Duration() = %v, want %v", tt.tf, got, tt.want)
		}
	}
}

func TestAllTimeframes(t *testing.T) {
	all := AllTimeframes()
	if len(all) != 4 {
		t.Fatalf("expected 4 timeframes, got %d", len(all))
	}

	// Ascending bar duration
	for i := 1; i < len(all); i++ {
		if all[i].Duration() <= all[i-1].Duration() {
			t.Errorf("timeframes not in ascending order at index %d", i)
		}
	}
}
