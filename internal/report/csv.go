// Package report renders CSV exports with French headers. Fields are
// separated by semicolons so spreadsheet software set to a French locale
// opens them without an import wizard.
package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tepiprep/tepiprep/internal/progress"
	"github.com/tepiprep/tepiprep/internal/stats"
)

const Separator = ';'

var progressHeader = []string{"Date", "Catégorie", "Question", "Résultat"}

func newWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = Separator
	return cw
}

// WriteProgressCSV writes one line per answered question, in the order given.
func WriteProgressCSV(w io.Writer, rows []progress.Attempt, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	cw := newWriter(w)
	if err := cw.Write(progressHeader); err != nil {
		return err
	}
	for _, r := range rows {
		result := "Incorrect"
		if r.Correct {
			result = "Correct"
		}
		rec := []string{r.AnsweredAt.In(loc).Format("2006-01-02 15:04"), r.Category, r.QuestionID, result}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteStatsCSV flattens the admin dashboard into indicator/value lines.
func WriteStatsCSV(w io.Writer, st stats.Stats) error {
	cw := newWriter(w)
	rows := [][]string{
		{"Indicateur", "Valeur"},
		{"Généré le", st.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Utilisateurs", itoa(st.Users)},
		{"Questions", itoa(st.TotalQuestions)},
	}
	for _, q := range st.Questions {
		rows = append(rows, []string{"Questions - " + q.Category, itoa(q.Count)})
	}
	rows = append(rows, []string{"Réponses", itoa(st.TotalAttempts)})
	for _, a := range st.Accuracy {
		rows = append(rows, []string{"Précision (%) - " + a.Category, ftoa(a.Accuracy)})
	}
	for _, l := range st.Lessons {
		rows = append(rows, []string{"Leçons terminées - " + l.LessonID, itoa(l.Completions)})
	}
	for _, d := range st.Daily {
		rows = append(rows, []string{"Réponses du " + d.Day, itoa(d.Attempts)})
	}
	for i, u := range st.TopUsers {
		rows = append(rows, []string{"Classement XP " + itoa(i+1) + " - " + u.DisplayName, itoa(u.XP)})
	}
	rows = append(rows,
		[]string{"Examens blancs", itoa(st.Exams.Count)},
		[]string{"Score moyen", ftoa(st.Exams.AvgTotal)},
		[]string{"Meilleur score", itoa(st.Exams.Best)},
	)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func itoa(n int) string { return strconv.Itoa(n) }

// ftoa uses a decimal comma.
func ftoa(f float64) string {
	return strings.Replace(strconv.FormatFloat(f, 'f', 1, 64), ".", ",", 1)
}
