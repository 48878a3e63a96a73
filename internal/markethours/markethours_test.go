package markethours

import (
	"testing"
	"time"
)

func istTime(y int, mo time.Month, d, h, m int) time.Time {
	return time.Date(y, mo, d, h, m, 0, 0, IST)
}

func TestIsMarketOpen(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"mid-session weekday", istTime(2026, time.August, 28, 11, 0), true},
		{"before open", istTime(2026, time.August, 28, 9, 14), false},
		{"at open", istTime(2026, time.August, 28, 9, 15), true},
		{"at close", istTime(2026, time.August, 28, 15, 30), false},
		{"saturday", istTime(2026, time.August, 29, 11, 0), false},
		{"sunday", istTime(2026, time.August, 30, 11, 0), false},
		{"diwali holiday", istTime(2026, time.November, 10, 11, 0), false},
		{"day after holiday", istTime(2026, time.November, 12, 11, 0), true},
	}
	for _, tc := range cases {
		if got := IsMarketOpen(tc.t); got != tc.want {
			t.Errorf("%s: IsMarketOpen = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNextOpen_SkipsWeekend(t *testing.T) {
	// Friday after close → Monday 9:15.
	fri := istTime(2026, time.August, 28, 16, 0)
	next := NextOpen(fri)
	if next.Weekday() != time.Monday || next.Hour() != 9 || next.Minute() != 15 {
		t.Errorf("expected Monday 09:15 open, got %s", next)
	}
}

func TestNextOpen_SameDayBeforeOpen(t *testing.T) {
	early := istTime(2026, time.August, 28, 8, 0)
	next := NextOpen(early)
	if !next.Equal(istTime(2026, time.August, 28, 9, 15)) {
		t.Errorf("expected same-day open, got %s", next)
	}
}
