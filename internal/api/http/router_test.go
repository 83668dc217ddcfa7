package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tepiprep/tepiprep/internal/auth"
	authmw "github.com/tepiprep/tepiprep/internal/auth/middleware"
	"github.com/tepiprep/tepiprep/internal/db"
	"github.com/tepiprep/tepiprep/internal/exam"
	"github.com/tepiprep/tepiprep/internal/lessonflow"
	"github.com/tepiprep/tepiprep/internal/progress"
	"github.com/tepiprep/tepiprep/internal/question"
	"github.com/tepiprep/tepiprep/internal/stats"
	"github.com/tepiprep/tepiprep/internal/storage"
	syncx "github.com/tepiprep/tepiprep/internal/sync"
)

type testServer struct {
	h        http.Handler
	accounts *auth.Accounts
	events   *syncx.EventRepo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	conn, err := db.OpenMemory(ctx, t.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	log := zap.NewNop()
	fs, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	qs := question.NewSQLStore(conn)
	prog := progress.NewService(conn)
	events := syncx.NewEventRepo(conn, "test")
	accounts := auth.NewAccounts(conn, auth.WithBcryptCost(bcrypt.MinCost))
	flow := lessonflow.NewService(lessonflow.NewRegistry(time.Hour), log,
		lessonflow.WithReporter(prog),
		lessonflow.WithReporter(lessonflow.EventReporter(events, syncx.TypeLessonCompleted)))
	exams := exam.NewService(exam.NewSQLStore(conn), qs, log,
		exam.WithBlueprint(exam.NewBlueprint(7, time.Hour)),
		exam.WithActivity(prog),
		exam.WithEvents(events, syncx.TypeExamSubmitted))

	h := NewRouter(Deps{
		DB:        conn,
		Log:       log,
		Tokens:    authmw.NewAuthService("test-secret", time.Hour),
		Accounts:  accounts,
		Questions: qs,
		Progress:  prog,
		Lessons:   flow,
		Exams:     exams,
		Stats:     stats.NewAggregator(conn, time.Minute),
		Buckets:   storage.NewBuckets(fs, "http://example.test"),
		Events:    events,
	})
	return &testServer{h: h, accounts: accounts, events: events}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, status, rec.Body.String())
	}
}

func (s *testServer) signUp(t *testing.T, email string) string {
	t.Helper()
	rec := s.do(t, "POST", "/auth/signup", "", map[string]string{"email": email, "password": "motdepasse", "display_name": "Élève"})
	expect(t, rec, http.StatusCreated)
	return decode[sessionResp](t, rec).Token
}

func (s *testServer) admin(t *testing.T) string {
	t.Helper()
	if _, err := s.accounts.EnsureAdmin(context.Background(), "admin@example.fr", "adminpass"); err != nil {
		t.Fatal(err)
	}
	rec := s.do(t, "POST", "/auth/login", "", map[string]string{"email": "admin@example.fr", "password": "adminpass"})
	expect(t, rec, http.StatusOK)
	return decode[sessionResp](t, rec).Token
}

func grammarQuestion(text string) map[string]any {
	return map[string]any{
		"category":      "grammar",
		"question_text": text,
		"choices": []map[string]any{
			{"option": "A", "text": "has been", "is_correct": true},
			{"option": "B", "text": "is being"},
		},
		"explanation": "Present perfect avec since.",
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "eleve@example.fr")

	rec := s.do(t, "GET", "/auth/session", token, nil)
	expect(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "eleve@example.fr") {
		t.Fatalf("session body %s", rec.Body.String())
	}

	rec = s.do(t, "POST", "/auth/signup", "", map[string]string{"email": "eleve@example.fr", "password": "motdepasse"})
	expect(t, rec, http.StatusConflict)

	rec = s.do(t, "POST", "/auth/login", "", map[string]string{"email": "eleve@example.fr", "password": "mauvais!!"})
	expect(t, rec, http.StatusUnauthorized)
	if msg := decode[map[string]string](t, rec)["error"]; msg != "Email ou mot de passe incorrect." {
		t.Fatalf("error message %q", msg)
	}

	rec = s.do(t, "POST", "/auth/login", "", map[string]string{"email": "", "password": ""})
	expect(t, rec, http.StatusBadRequest)

	rec = s.do(t, "POST", "/auth/signup", "", map[string]string{"email": "long@example.fr", "password": strings.Repeat("p", 73)})
	expect(t, rec, http.StatusBadRequest)

	rec = s.do(t, "GET", "/auth/session", "", nil)
	expect(t, rec, http.StatusUnauthorized)

	rec = s.do(t, "POST", "/auth/password/change", token, map[string]string{"old_password": "mauvais!!", "new_password": "nouveaumdp"})
	expect(t, rec, http.StatusForbidden)
	rec = s.do(t, "POST", "/auth/password/change", token, map[string]string{"old_password": "motdepasse", "new_password": "nouveaumdp"})
	expect(t, rec, http.StatusNoContent)

	rec = s.do(t, "POST", "/auth/password/reset", "", map[string]string{"email": "inconnu@example.fr"})
	expect(t, rec, http.StatusAccepted)
	rec = s.do(t, "POST", "/auth/password/confirm", "", map[string]string{"token": "bogus", "password": "encoreunautre"})
	expect(t, rec, http.StatusBadRequest)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	student := s.signUp(t, "eleve@example.fr")

	rec := s.do(t, "POST", "/admin/questions", student, grammarQuestion("She ___ here since May."))
	expect(t, rec, http.StatusForbidden)
	rec = s.do(t, "GET", "/admin/stats", student, nil)
	expect(t, rec, http.StatusForbidden)
}

func TestQuestionPracticeFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.admin(t)
	student := s.signUp(t, "eleve@example.fr")

	rec := s.do(t, "POST", "/admin/questions", admin, map[string]any{"category": "grammar"})
	expect(t, rec, http.StatusBadRequest)

	rec = s.do(t, "POST", "/admin/questions", admin, grammarQuestion("She ___ here since May."))
	expect(t, rec, http.StatusCreated)
	created := decode[question.Question](t, rec)

	rec = s.do(t, "POST", "/admin/questions", admin, []any{
		grammarQuestion("They ___ friends since school."),
		grammarQuestion("He ___ at the firm since 2019."),
	})
	expect(t, rec, http.StatusCreated)

	rec = s.do(t, "POST", "/admin/questions", admin, []any{
		grammarQuestion("We ___ here for years."),
		map[string]any{"category": "grammar"},
	})
	expect(t, rec, http.StatusBadRequest)
	if msg := decode[map[string]string](t, rec)["error"]; !strings.HasPrefix(msg, "Question 2 : ") {
		t.Fatalf("bulk error should name the failing item, got %q", msg)
	}

	rec = s.do(t, "GET", "/questions?category=grammar", student, nil)
	expect(t, rec, http.StatusOK)
	list := decode[[]question.Question](t, rec)
	if len(list) != 3 {
		t.Fatalf("listed %d questions", len(list))
	}
	for _, q := range list {
		for _, c := range q.Choices {
			if c.IsCorrect {
				t.Fatal("answer key leaked to students")
			}
		}
	}

	rec = s.do(t, "POST", "/questions/"+created.ID+"/answer", student, map[string]string{"option": "A"})
	expect(t, rec, http.StatusOK)
	res := decode[answerResp](t, rec)
	if !res.Correct || res.Streak.Current != 1 {
		t.Fatalf("answer result %+v", res)
	}
	rec = s.do(t, "POST", "/questions/"+created.ID+"/answer", student, map[string]string{})
	expect(t, rec, http.StatusBadRequest)

	rec = s.do(t, "GET", "/me/profile", student, nil)
	expect(t, rec, http.StatusOK)
	var prof struct {
		Profile progress.Profile `json:"profile"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &prof); err != nil {
		t.Fatal(err)
	}
	if len(prof.Profile.Categories) != 1 || prof.Profile.Categories[0].Correct != 1 {
		t.Fatalf("profile %+v", prof.Profile)
	}

	rec = s.do(t, "GET", "/me/progress.csv", student, nil)
	expect(t, rec, http.StatusOK)
	if !strings.HasPrefix(rec.Body.String(), "Date;Catégorie;Question;Résultat\n") || !strings.Contains(rec.Body.String(), ";Correct\n") {
		t.Fatalf("csv body %q", rec.Body.String())
	}

	rec = s.do(t, "GET", "/admin/stats", admin, nil)
	expect(t, rec, http.StatusOK)
	st := decode[stats.Stats](t, rec)
	if st.TotalQuestions != 3 || st.Users != 2 || st.TotalAttempts != 1 {
		t.Fatalf("stats %+v", st)
	}

	evs, err := s.events.Recent(context.Background(), syncx.TypeQuestionCreated, 10)
	if err != nil || len(evs) != 3 {
		t.Fatalf("question events %d %v", len(evs), err)
	}
}

func TestLessonSessionFlow(t *testing.T) {
	s := newTestServer(t)
	student := s.signUp(t, "eleve@example.fr")

	rec := s.do(t, "GET", "/lessons?kind=conjugation", student, nil)
	expect(t, rec, http.StatusOK)
	if got := decode[[]lessonSummary](t, rec); len(got) != 2 {
		t.Fatalf("conjugation lessons %d", len(got))
	}
	rec = s.do(t, "GET", "/lessons?kind=cooking", student, nil)
	expect(t, rec, http.StatusBadRequest)

	rec = s.do(t, "POST", "/lessons/conjugation-passive/sessions", student, nil)
	expect(t, rec, http.StatusCreated)
	sv := decode[sessionView](t, rec)
	if sv.Lesson == nil || sv.Lesson.Exercises[0].CorrectAnswer != "" {
		t.Fatal("lesson must be sent without answers")
	}
	path := "/sessions/" + sv.Session.ID + "/actions"

	rec = s.do(t, "POST", path, student, lessonflow.Action{Type: lessonflow.ActionAnswer, Value: "x"})
	expect(t, rec, http.StatusConflict)

	for _, a := range []lessonflow.Action{
		{Type: lessonflow.ActionStart},
		{Type: lessonflow.ActionBeginExercises, Force: true},
	} {
		rec = s.do(t, "POST", path, student, a)
		expect(t, rec, http.StatusOK)
	}

	// a number is not an answer to a choice exercise
	rec = s.do(t, "POST", path, student, map[string]any{"type": "answer", "value": 3})
	expect(t, rec, http.StatusBadRequest)
	if msg := decode[map[string]string](t, rec)["error"]; msg != "Réponse invalide." {
		t.Fatalf("error message %q", msg)
	}
	rec = s.do(t, "POST", path, student, map[string]any{"type": "answer"})
	expect(t, rec, http.StatusBadRequest)

	for _, a := range []lessonflow.Action{
		{Type: lessonflow.ActionAnswer, Value: "was signed"},
		{Type: lessonflow.ActionAnswer, Value: "be"},
		{Type: lessonflow.ActionAnswer, Value: "The office is cleaned every evening."},
	} {
		rec = s.do(t, "POST", path, student, a)
		expect(t, rec, http.StatusOK)
	}
	done := decode[sessionView](t, rec)
	if !done.Feedback.Finished || done.Session.Completion == nil || done.Session.Completion.Percentage != 100 {
		t.Fatalf("final view %+v", done)
	}

	rec = s.do(t, "GET", "/me/profile", student, nil)
	var prof struct {
		Profile progress.Profile `json:"profile"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &prof)
	if prof.Profile.LessonsCompleted != 1 || prof.Profile.TotalXP == 0 {
		t.Fatalf("lesson completion not recorded: %+v", prof.Profile)
	}

	rec = s.do(t, "GET", "/sessions/"+sv.Session.ID, s.signUp(t, "autre@example.fr"), nil)
	expect(t, rec, http.StatusNotFound)
}

func TestExamFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.admin(t)
	student := s.signUp(t, "eleve@example.fr")

	rec := s.do(t, "POST", "/exam/attempts", student, nil)
	expect(t, rec, http.StatusConflict)

	q := grammarQuestion("The report ___ yesterday.")
	q["category"] = "incomplete_sentences"
	rec = s.do(t, "POST", "/admin/questions", admin, q)
	expect(t, rec, http.StatusCreated)
	qid := decode[question.Question](t, rec).ID

	rec = s.do(t, "POST", "/exam/attempts", student, nil)
	expect(t, rec, http.StatusCreated)
	v := decode[exam.View](t, rec)
	if len(v.Questions) != 1 || v.RemainingSec <= 0 {
		t.Fatalf("attempt view %+v", v)
	}
	base := "/exam/attempts/" + v.ID

	rec = s.do(t, "POST", base+"/answers", student, map[string]string{"question_id": qid, "option": "A"})
	expect(t, rec, http.StatusOK)
	rec = s.do(t, "POST", base+"/answers", student, map[string]string{"question_id": "nope", "option": "A"})
	expect(t, rec, http.StatusBadRequest)
	rec = s.do(t, "POST", base+"/advance", student, map[string]string{"reason": "blur"})
	expect(t, rec, http.StatusOK)
	if decode[exam.View](t, rec).BlurCount != 1 {
		t.Fatal("blur should be counted")
	}

	rec = s.do(t, "POST", base+"/submit", student, nil)
	expect(t, rec, http.StatusOK)
	final := decode[exam.View](t, rec)
	if final.Status != exam.StatusSubmitted || final.Result == nil || final.Result.ReadingRaw != 1 {
		t.Fatalf("final %+v", final)
	}

	rec = s.do(t, "POST", base+"/answers", student, map[string]string{"question_id": qid, "option": "B"})
	expect(t, rec, http.StatusConflict)

	rec = s.do(t, "GET", base, s.signUp(t, "autre@example.fr"), nil)
	expect(t, rec, http.StatusNotFound)
}

func TestUploadAndServe(t *testing.T) {
	s := newTestServer(t)
	admin := s.admin(t)

	upload := func(bucket, name string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, _ := mw.CreateFormFile("file", name)
		_, _ = fw.Write([]byte("ID3fake-mp3"))
		_ = mw.Close()
		req := httptest.NewRequest("POST", "/admin/uploads/"+bucket, &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+admin)
		rec := httptest.NewRecorder()
		s.h.ServeHTTP(rec, req)
		return rec
	}

	rec := upload(storage.BucketAudio, "part1.exe")
	expect(t, rec, http.StatusBadRequest)
	rec = upload("secrets", "part1.mp3")
	expect(t, rec, http.StatusNotFound)

	rec = upload(storage.BucketAudio, "part1.mp3")
	expect(t, rec, http.StatusCreated)
	obj := decode[storage.Object](t, rec)
	if !strings.HasPrefix(obj.PublicURL, "http://example.test/storage/question-audio/") {
		t.Fatalf("public url %q", obj.PublicURL)
	}

	rec = s.do(t, "GET", "/storage/"+obj.Bucket+"/"+obj.Key, "", nil)
	expect(t, rec, http.StatusOK)
	if rec.Header().Get("Content-Type") != "audio/mpeg" || rec.Body.String() != "ID3fake-mp3" {
		t.Fatalf("served %q as %q", rec.Body.String(), rec.Header().Get("Content-Type"))
	}
	rec = s.do(t, "GET", "/storage/"+obj.Bucket+"/missing.mp3", "", nil)
	expect(t, rec, http.StatusNotFound)
}
