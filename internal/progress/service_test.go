package progress

import (
	"context"
	"testing"
	"time"

	"github.com/tepiprep/tepiprep/internal/db"
	"github.com/tepiprep/tepiprep/internal/lessonflow"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newService(t *testing.T) (*Service, *clock) {
	t.Helper()
	conn, err := db.OpenMemory(context.Background(), t.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	c := &clock{t: time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)}
	return NewService(conn, WithClock(c.now)), c
}

func TestRecordAttemptUpdatesStats(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	for i, ok := range []bool{true, false, true, true} {
		if _, err := s.RecordAttempt(ctx, Attempt{UserID: "u1", QuestionID: "q", Category: "grammar", Correct: ok}); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if _, err := s.RecordAttempt(ctx, Attempt{UserID: "u1", QuestionID: "q2", Category: "talks", Correct: false}); err != nil {
		t.Fatal(err)
	}

	cats, err := s.Categories(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 2 || cats[0].Category != "grammar" || cats[0].Attempts != 4 || cats[0].Correct != 3 || cats[0].Accuracy != 75 {
		t.Fatalf("unexpected stats %+v", cats)
	}
	hist, err := s.History(ctx, "u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 5 {
		t.Fatalf("history length %d", len(hist))
	}
	st, _ := s.Streak(ctx, "u1")
	if st.Current != 1 || st.LastActiveDay != "2026-03-10" {
		t.Fatalf("practice should touch the streak: %+v", st)
	}
}

func TestRecordLessonKeepsBest(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)
	c := lessonflow.Completion{UserID: "u1", LessonID: "vocab-office", Kind: "vocabulary", Percentage: 50, XP: 25}

	r, err := s.RecordLesson(ctx, c)
	if err != nil {
		t.Fatal(err)
	}
	if !r.FirstTime || r.XPGained != 25 {
		t.Fatalf("first completion %+v", r)
	}

	c.Percentage, c.XP = 25, 12
	r, _ = s.RecordLesson(ctx, c)
	if r.XPGained != 0 || r.NewBest || r.BestPercentage != 50 || r.Completions != 2 {
		t.Fatalf("worse run must not lower best: %+v", r)
	}

	c.Percentage, c.XP = 100, 60
	r, _ = s.RecordLesson(ctx, c)
	if r.XPGained != 35 || !r.NewBest || r.BestXP != 60 {
		t.Fatalf("improvement: %+v", r)
	}

	p, err := s.Profile(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalXP != 60 || p.LessonsCompleted != 1 || p.Level != 1 || p.XPForNextLevel != 440 {
		t.Fatalf("unexpected profile %+v", p)
	}
}

func TestLessonCompletedTouchesStreakOnCompletionDay(t *testing.T) {
	ctx := context.Background()
	s, clk := newService(t)
	day1 := time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		err := s.LessonCompleted(ctx, lessonflow.Completion{
			UserID: "u1", LessonID: "grammar-conditionals", Kind: "grammar",
			Percentage: 100, XP: 70, CompletedAt: day1.AddDate(0, 0, i),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	st, _ := s.Streak(ctx, "u1")
	if st.Current != 3 || st.Longest != 3 {
		t.Fatalf("three consecutive days: %+v", st)
	}

	clk.t = time.Date(2026, 3, 13, 8, 0, 0, 0, time.UTC)
	st, _ = s.Streak(ctx, "u1")
	if st.Current != 0 || st.Longest != 3 {
		t.Fatalf("lapsed streak should read as 0: %+v", st)
	}
	n, err := s.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v", n, err)
	}
	if _, err := s.Touch(ctx, "u1", clk.t); err != nil {
		t.Fatal(err)
	}
	st, _ = s.Streak(ctx, "u1")
	if st.Current != 1 || st.Longest != 3 {
		t.Fatalf("restart after sweep: %+v", st)
	}
}

func TestSweepKeepsYesterday(t *testing.T) {
	ctx := context.Background()
	s, clk := newService(t)
	if _, err := s.Touch(ctx, "active", clk.t.AddDate(0, 0, -1)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Touch(ctx, "idle", clk.t.AddDate(0, 0, -2)); err != nil {
		t.Fatal(err)
	}
	n, _ := s.Sweep(ctx)
	if n != 1 {
		t.Fatalf("only the idle user should be reset, got %d", n)
	}
	st, _ := s.Streak(ctx, "active")
	if st.Current != 1 {
		t.Fatalf("active streak %+v", st)
	}
}

func TestProfileIncludesExams(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)
	for i, total := range []int{600, 750} {
		_, err := s.db.ExecContext(ctx, `INSERT INTO toeic_results
			(id, attempt_id, user_id, listening_raw, listening_total, reading_raw, reading_total,
			 listening_scaled, reading_scaled, total_scaled, created_at)
			VALUES ($1,$2,'u1',0,100,0,100,$3,$4,$5,$6)`,
			"r"+string(rune('a'+i)), "a"+string(rune('a'+i)), total/2, total/2, total, int64(1000+i))
		if err != nil {
			t.Fatal(err)
		}
	}
	p, err := s.Profile(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.LastExams) != 2 || p.LastExams[0].TotalScaled != 750 {
		t.Fatalf("exams newest first: %+v", p.LastExams)
	}
	if p.Level != 1 || p.Streak.Current != 0 {
		t.Fatalf("empty user profile %+v", p)
	}
}

func TestNextLesson(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)
	l, err := s.NextLesson(ctx, "u1", "grammar")
	if err != nil || l == nil || l.ID != "grammar-present-perfect" {
		t.Fatalf("first suggestion %+v %v", l, err)
	}
	_ = s.LessonCompleted(ctx, lessonflow.Completion{UserID: "u1", LessonID: "grammar-present-perfect", Kind: "grammar", Percentage: 80, XP: 48})
	l, _ = s.NextLesson(ctx, "u1", "grammar")
	if l == nil || l.ID != "grammar-conditionals" {
		t.Fatalf("after passing first: %+v", l)
	}
}
