package recommend

import (
	"math"
	"testing"
	"time"
)

func TestDecay(t *testing.T) {
	tests := []struct {
		name     string
		daysAgo  float64
		halfLife float64
		want     float64
	}{
		{"today full weight", 0, 30, 1.0},
		{"one half life", 30, 30, 0.5},
		{"two half lives", 60, 30, 0.25},
		{"views halve weekly", 7, 7, 0.5},
		{"future counts as now", -3, 30, 1.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Decay(tc.daysAgo, tc.halfLife)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Decay(%v, %v) = %v, want %v", tc.daysAgo, tc.halfLife, got, tc.want)
			}
		})
	}
}

func TestDaysSince(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if got := DaysSince(now, now.AddDate(0, 0, -14)); math.Abs(got-14) > 1e-9 {
		t.Fatalf("DaysSince 14 days ago = %v", got)
	}
	if got := DaysSince(now, time.Time{}); got != 0 {
		t.Fatalf("DaysSince zero time = %v, want 0", got)
	}
	if got := DaysSince(now, now.Add(time.Hour)); got != 0 {
		t.Fatalf("DaysSince future = %v, want 0", got)
	}
}
