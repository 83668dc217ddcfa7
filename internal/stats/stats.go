// Package stats builds the admin dashboard numbers. Independent read queries
// run in parallel; grouping and sorting happen in memory.
package stats

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tepiprep/tepiprep/internal/cache"
	"github.com/tepiprep/tepiprep/internal/progress"
	"github.com/tepiprep/tepiprep/internal/question"
)

const (
	DailyWindow = 14
	TopUsers    = 10
	cacheKey    = "admin"
)

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type CategoryAccuracy struct {
	Category string  `json:"category"`
	Attempts int     `json:"attempts"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

type LessonCount struct {
	LessonID    string `json:"lesson_id"`
	Kind        string `json:"kind"`
	Learners    int    `json:"learners"`
	Completions int    `json:"completions"`
}

type DayCount struct {
	Day      string `json:"day"`
	Attempts int    `json:"attempts"`
	Correct  int    `json:"correct"`
}

type UserXP struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	XP          int    `json:"xp"`
	Level       int    `json:"level"`
}

type ExamSummary struct {
	Count        int     `json:"count"`
	AvgTotal     float64 `json:"avg_total"`
	AvgListening float64 `json:"avg_listening"`
	AvgReading   float64 `json:"avg_reading"`
	Best         int     `json:"best"`
}

type Stats struct {
	GeneratedAt    time.Time          `json:"generated_at"`
	Users          int                `json:"users"`
	TotalQuestions int                `json:"total_questions"`
	Questions      []CategoryCount    `json:"questions"`
	TotalAttempts  int                `json:"total_attempts"`
	Accuracy       []CategoryAccuracy `json:"accuracy"`
	Lessons        []LessonCount      `json:"lessons"`
	Daily          []DayCount         `json:"daily"`
	TopUsers       []UserXP           `json:"top_users"`
	Exams          ExamSummary        `json:"exams"`
}

// Aggregator serves Stats through a read-through TTL cache.
type Aggregator struct {
	db    *sql.DB
	cache *cache.Cache[string, Stats]
	loc   *time.Location
	now   func() time.Time
}

type Option func(*Aggregator)

func WithLocation(loc *time.Location) Option { return func(a *Aggregator) { a.loc = loc } }
func WithClock(now func() time.Time) Option  { return func(a *Aggregator) { a.now = now } }

func NewAggregator(db *sql.DB, ttl time.Duration, opts ...Option) *Aggregator {
	a := &Aggregator{db: db, loc: time.UTC, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	a.cache = cache.NewWithClock[string, Stats](ttl, a.now)
	return a
}

// Get returns cached stats when they are younger than the TTL.
func (a *Aggregator) Get(ctx context.Context) (Stats, error) {
	return a.cache.GetOrLoad(cacheKey, func() (Stats, error) { return a.Compute(ctx) })
}

// Invalidate drops the cached snapshot after content writes.
func (a *Aggregator) Invalidate() { a.cache.Delete(cacheKey) }

// Purge evicts an expired snapshot; used by the scheduler.
func (a *Aggregator) Purge() int { return a.cache.Purge() }

type userRow struct {
	id, name string
}

type lessonRow struct {
	userID, lessonID, kind string
	bestXP, completions    int
}

type examRow struct {
	listening, reading, total int
}

// Compute always queries the database.
func (a *Aggregator) Compute(ctx context.Context) (Stats, error) {
	now := a.now()
	since := now.In(a.loc).AddDate(0, 0, -(DailyWindow - 1))
	since = time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, a.loc)

	var (
		users    []userRow
		qCounts  map[string]int
		accuracy []CategoryAccuracy
		lessons  []lessonRow
		answers  []progress.Attempt
		exams    []examRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = a.users(gctx)
		return err
	})
	g.Go(func() (err error) {
		qCounts, err = a.questionCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		accuracy, err = a.categoryAccuracy(gctx)
		return err
	})
	g.Go(func() (err error) {
		lessons, err = a.lessonRows(gctx)
		return err
	})
	g.Go(func() (err error) {
		answers, err = a.answersSince(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		exams, err = a.examRows(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	st := Stats{GeneratedAt: now, Users: len(users), Accuracy: accuracy}
	st.Questions, st.TotalQuestions = groupQuestions(qCounts)
	for _, c := range accuracy {
		st.TotalAttempts += c.Attempts
	}
	st.Lessons = groupLessons(lessons)
	st.Daily = groupDaily(answers, since, a.loc)
	st.TopUsers = topUsers(lessons, users, TopUsers)
	st.Exams = summarizeExams(exams)
	return st, nil
}

func (a *Aggregator) users(ctx context.Context) ([]userRow, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT id, display_name FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []userRow
	for rows.Next() {
		var u userRow
		if err := rows.Scan(&u.id, &u.name); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (a *Aggregator) questionCounts(ctx context.Context) (map[string]int, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT category FROM questions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out[c]++
	}
	return out, rows.Err()
}

func (a *Aggregator) categoryAccuracy(ctx context.Context) ([]CategoryAccuracy, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT category, attempts, correct FROM category_stats`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	acc := map[string]*CategoryAccuracy{}
	for rows.Next() {
		var cat string
		var attempts, correct int
		if err := rows.Scan(&cat, &attempts, &correct); err != nil {
			return nil, err
		}
		c, ok := acc[cat]
		if !ok {
			c = &CategoryAccuracy{Category: cat}
			acc[cat] = c
		}
		c.Attempts += attempts
		c.Correct += correct
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]CategoryAccuracy, 0, len(acc))
	for _, c := range acc {
		c.Accuracy = percent(c.Correct, c.Attempts)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return categoryLess(out[i].Category, out[j].Category) })
	return out, nil
}

func (a *Aggregator) lessonRows(ctx context.Context) ([]lessonRow, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT user_id, lesson_id, kind, best_xp, completions FROM lesson_progress`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []lessonRow
	for rows.Next() {
		var r lessonRow
		if err := rows.Scan(&r.userID, &r.lessonID, &r.kind, &r.bestXP, &r.completions); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (a *Aggregator) answersSince(ctx context.Context, since time.Time) ([]progress.Attempt, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT is_correct, answered_at FROM user_progress WHERE answered_at >= $1`, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []progress.Attempt
	for rows.Next() {
		var correct int
		var at int64
		if err := rows.Scan(&correct, &at); err != nil {
			return nil, err
		}
		out = append(out, progress.Attempt{Correct: correct != 0, AnsweredAt: time.Unix(at, 0)})
	}
	return out, rows.Err()
}

func (a *Aggregator) examRows(ctx context.Context) ([]examRow, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT listening_scaled, reading_scaled, total_scaled FROM toeic_results`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []examRow
	for rows.Next() {
		var r examRow
		if err := rows.Scan(&r.listening, &r.reading, &r.total); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// groupQuestions lists every known category, including empty ones, in
// exam order. Unknown categories follow alphabetically.
func groupQuestions(counts map[string]int) ([]CategoryCount, int) {
	out := make([]CategoryCount, 0, len(counts))
	total := 0
	seen := map[string]bool{}
	for _, c := range question.Categories() {
		n := counts[string(c)]
		out = append(out, CategoryCount{Category: string(c), Count: n})
		seen[string(c)] = true
		total += n
	}
	var extra []string
	for c := range counts {
		if !seen[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	for _, c := range extra {
		out = append(out, CategoryCount{Category: c, Count: counts[c]})
		total += counts[c]
	}
	return out, total
}

func groupLessons(rows []lessonRow) []LessonCount {
	byID := map[string]*LessonCount{}
	for _, r := range rows {
		lc, ok := byID[r.lessonID]
		if !ok {
			lc = &LessonCount{LessonID: r.lessonID, Kind: r.kind}
			byID[r.lessonID] = lc
		}
		lc.Learners++
		lc.Completions += r.completions
	}
	out := make([]LessonCount, 0, len(byID))
	for _, lc := range byID {
		out = append(out, *lc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Completions != out[j].Completions {
			return out[i].Completions > out[j].Completions
		}
		return out[i].LessonID < out[j].LessonID
	})
	return out
}

// groupDaily returns one bucket per day from since to since+DailyWindow-1,
// zero-filled.
func groupDaily(answers []progress.Attempt, since time.Time, loc *time.Location) []DayCount {
	out := make([]DayCount, DailyWindow)
	index := make(map[string]int, DailyWindow)
	for i := range out {
		d := progress.Day(since.AddDate(0, 0, i), loc)
		out[i].Day = d
		index[d] = i
	}
	for _, a := range answers {
		i, ok := index[progress.Day(a.AnsweredAt, loc)]
		if !ok {
			continue
		}
		out[i].Attempts++
		if a.Correct {
			out[i].Correct++
		}
	}
	return out
}

func topUsers(rows []lessonRow, users []userRow, n int) []UserXP {
	xp := map[string]int{}
	for _, r := range rows {
		xp[r.userID] += r.bestXP
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.id] = u.name
	}
	out := make([]UserXP, 0, len(xp))
	for id, total := range xp {
		if total <= 0 {
			continue
		}
		out = append(out, UserXP{UserID: id, DisplayName: names[id], XP: total, Level: progress.Level(total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].XP != out[j].XP {
			return out[i].XP > out[j].XP
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func summarizeExams(rows []examRow) ExamSummary {
	s := ExamSummary{Count: len(rows)}
	if len(rows) == 0 {
		return s
	}
	var l, r, t int
	for _, e := range rows {
		l += e.listening
		r += e.reading
		t += e.total
		if e.total > s.Best {
			s.Best = e.total
		}
	}
	n := float64(len(rows))
	s.AvgListening = round1(float64(l) / n)
	s.AvgReading = round1(float64(r) / n)
	s.AvgTotal = round1(float64(t) / n)
	return s
}

func categoryLess(a, b string) bool {
	ia, ib := categoryIndex(a), categoryIndex(b)
	if ia != ib {
		return ia < ib
	}
	return a < b
}

func categoryIndex(c string) int {
	for i, k := range question.Categories() {
		if string(k) == c {
			return i
		}
	}
	return len(question.Categories())
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round1(100 * float64(part) / float64(whole))
}

func round1(f float64) float64 { return float64(int(f*10+0.5)) / 10 }
