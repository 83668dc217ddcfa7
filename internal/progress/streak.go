package progress

import "time"

const dayLayout = "2006-01-02"

// Day formats t as a calendar day in loc.
func Day(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayLayout)
}

// Touch returns the streak after activity on day. Activity on the same day
// changes nothing, the next day extends the streak, any gap restarts it at 1.
// A day earlier than the last active one is ignored.
func (s Streak) Touch(day string) Streak {
	if s.LastActiveDay == "" {
		return Streak{Current: 1, Longest: max(s.Longest, 1), LastActiveDay: day}
	}
	switch {
	case day <= s.LastActiveDay:
		return s
	case day == nextDay(s.LastActiveDay):
		s.Current++
	default:
		s.Current = 1
	}
	s.LastActiveDay = day
	s.Longest = max(s.Longest, s.Current)
	return s
}

// Effective is the streak as of today: a streak whose last activity is
// older than yesterday has lapsed even if the sweep has not run yet.
func (s Streak) Effective(today string) Streak {
	if s.LastActiveDay != "" && s.LastActiveDay < prevDay(today) {
		s.Current = 0
	}
	return s
}

func nextDay(day string) string { return shift(day, 1) }
func prevDay(day string) string { return shift(day, -1) }

func shift(day string, n int) string {
	t, err := time.Parse(dayLayout, day)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, n).Format(dayLayout)
}
