package progress

import "testing"

func TestStreakTouch(t *testing.T) {
	var s Streak
	s = s.Touch("2026-03-01")
	if s.Current != 1 || s.Longest != 1 {
		t.Fatalf("first day: %+v", s)
	}
	s = s.Touch("2026-03-01")
	if s.Current != 1 {
		t.Fatalf("same day must not extend: %+v", s)
	}
	s = s.Touch("2026-03-02").Touch("2026-03-03")
	if s.Current != 3 || s.Longest != 3 {
		t.Fatalf("consecutive days: %+v", s)
	}
	s = s.Touch("2026-03-05")
	if s.Current != 1 || s.Longest != 3 {
		t.Fatalf("gap should reset: %+v", s)
	}
	s = s.Touch("2026-03-04")
	if s.LastActiveDay != "2026-03-05" {
		t.Fatalf("earlier day must be ignored: %+v", s)
	}
}

func TestStreakAcrossMonthEnd(t *testing.T) {
	s := Streak{Current: 4, Longest: 4, LastActiveDay: "2026-02-28"}.Touch("2026-03-01")
	if s.Current != 5 {
		t.Fatalf("month boundary: %+v", s)
	}
}

func TestStreakEffective(t *testing.T) {
	s := Streak{Current: 4, Longest: 6, LastActiveDay: "2026-03-10"}
	if s.Effective("2026-03-11").Current != 4 {
		t.Fatal("yesterday's activity keeps the streak")
	}
	if got := s.Effective("2026-03-12"); got.Current != 0 || got.Longest != 6 {
		t.Fatalf("lapsed streak: %+v", got)
	}
}

func TestLevel(t *testing.T) {
	cases := map[int]int{0: 1, 499: 1, 500: 2, 1250: 3, -5: 1}
	for xp, want := range cases {
		if got := Level(xp); got != want {
			t.Errorf("Level(%d) = %d, want %d", xp, got, want)
		}
	}
}
