package exchange

import (
	"testing"
	"time"
)

func TestParseInterval(t *testing.T) {
	if got, err := ParseInterval("1h"); err != nil || got != Interval1h {
		t.Errorf("ParseInterval(1h): got %v, %v", got, err)
	}
	if got, err := ParseInterval("1d"); err != nil || got != Interval1d {
		t.Errorf("ParseInterval(1d): got %v, %v", got, err)
	}
	for _, raw := range []string{"", "5m", "1w", "1H"} {
		if _, err := ParseInterval(raw); err == nil {
			t.Errorf("ParseInterval(%q): expected error", raw)
		}
	}
}

func TestIntervalDuration(t *testing.T) {
	if Interval1h.Duration() != time.Hour {
		t.Errorf("1h duration: got %v", Interval1h.Duration())
	}
	if Interval1d.Duration() != 24*time.Hour {
		t.Errorf("1d duration: got %v", Interval1d.Duration())
	}
}
