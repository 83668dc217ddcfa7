package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/tepiprep/tepiprep/internal/progress"
	"github.com/tepiprep/tepiprep/internal/stats"
)

func TestWriteProgressCSV(t *testing.T) {
	at := time.Date(2026, 2, 3, 9, 30, 0, 0, time.UTC)
	rows := []progress.Attempt{
		{QuestionID: "q1", Category: "grammar", Correct: true, AnsweredAt: at},
		{QuestionID: "q;2", Category: "talks", Correct: false, AnsweredAt: at.Add(time.Hour)},
	}
	var buf bytes.Buffer
	if err := WriteProgressCSV(&buf, rows, nil); err != nil {
		t.Fatal(err)
	}
	want := "Date;Catégorie;Question;Résultat\n" +
		"2026-02-03 09:30;grammar;q1;Correct\n" +
		"2026-02-03 10:30;talks;\"q;2\";Incorrect\n"
	if buf.String() != want {
		t.Fatalf("got\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestWriteStatsCSV(t *testing.T) {
	st := stats.Stats{
		GeneratedAt:    time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
		Users:          4,
		TotalQuestions: 2,
		Questions:      []stats.CategoryCount{{Category: "grammar", Count: 2}},
		Accuracy:       []stats.CategoryAccuracy{{Category: "grammar", Attempts: 3, Correct: 2, Accuracy: 66.7}},
		TopUsers:       []stats.UserXP{{DisplayName: "Alice", XP: 120}},
		Exams:          stats.ExamSummary{Count: 1, AvgTotal: 745, Best: 745},
	}
	var buf bytes.Buffer
	if err := WriteStatsCSV(&buf, st); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, line := range []string{
		"Indicateur;Valeur",
		"Utilisateurs;4",
		"Questions - grammar;2",
		"Précision (%) - grammar;66,7",
		"Classement XP 1 - Alice;120",
		"Score moyen;745,0",
	} {
		if !strings.Contains(out, line+"\n") {
			t.Errorf("missing line %q in\n%s", line, out)
		}
	}
}
