package timesync

import (
	"testing"
	"time"
)

func offsetAt(loc *time.Location, t time.Time) int {
	_, off := t.In(loc).Zone()
	return off
}

func TestKnownRules(t *testing.T) {
	winter := time.Date(2023, 1, 15, 12, 0, 0, 0, time.UTC)
	summer := time.Date(2023, 7, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		rule           string
		winter, summer int // seconds east of UTC
	}{
		{"CET-1CEST,M3.5.0,M10.5.0/3", 1 * 3600, 2 * 3600},
		{"GMT0BST,M3.5.0/1,M10.5.0", 0, 1 * 3600},
		{"EST5EDT,M3.2.0/2,M11.1.0", -5 * 3600, -4 * 3600},
		{"UTC0", 0, 0},
		{"JST-9", 9 * 3600, 9 * 3600},
		{"IST-5:30", 19800, 19800},
	}
	for _, tc := range tests {
		loc := resolveLocation(tc.rule)
		if got := offsetAt(loc, winter); got != tc.winter {
			t.Errorf("%s: winter offset %d, want %d", tc.rule, got, tc.winter)
		}
		if got := offsetAt(loc, summer); got != tc.summer {
			t.Errorf("%s: summer offset %d, want %d", tc.rule, got, tc.summer)
		}
	}
}

func TestUnknownFixedOffsetRule(t *testing.T) {
	loc := resolveLocation("AWST-8")
	if got := offsetAt(loc, time.Now()); got != 8*3600 {
		t.Errorf("AWST-8: offset %d, want %d", got, 8*3600)
	}
}

func TestUnparseableRuleFallsBackToUTC(t *testing.T) {
	for _, rule := range []string{"", "garbage rule", "XYZ-2ABC,M3.5.0", "ABC-99"} {
		if loc := resolveLocation(rule); loc != time.UTC {
			t.Errorf("%q resolved to %v, want UTC", rule, loc)
		}
	}
}

func TestNowUnavailableBeforeFirstSync(t *testing.T) {
	s := New(nil)
	s.Configure("UTC0", "pool.ntp.org")
	if _, ok := s.Now(); ok {
		t.Error("Now should report unavailable before the first sync")
	}
	st := s.Status()
	if st.Synced || st.Server != "pool.ntp.org" {
		t.Errorf("unexpected status before sync: %+v", st)
	}
}
