package question

import (
	"regexp"
	"slices"
	"strings"

	"github.com/tepiprep/tepiprep/internal/apperr"
)

var gapRe = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Gaps returns the gap ids in text in order of appearance, without duplicates.
func Gaps(text string) []string {
	var out []string
	for _, m := range gapRe.FindAllStringSubmatch(text, -1) {
		if !slices.Contains(out, m[1]) {
			out = append(out, m[1])
		}
	}
	return out
}

// Validate applies the admin form rules. Errors are apperr validation errors
// with a French message.
func (q *Question) Validate() error {
	q.trim()
	if q.Category == "" {
		return apperr.Validation(apperr.MsgRequiredFields)
	}
	if !q.Category.Valid() {
		return apperr.Validation("Catégorie inconnue.")
	}
	if q.QuestionText == "" && q.AudioURL == "" && q.ImageURL == "" && q.TextWithGaps == "" {
		return apperr.Validation("Ajoutez un énoncé, un audio, une image ou un texte à trous.")
	}
	if q.PassageID != "" && q.QuestionNumber <= 0 {
		return apperr.Validation("Le numéro de question est obligatoire pour un passage.")
	}
	if q.IsGapQuestion() {
		return q.validateGaps()
	}
	return q.validateChoices()
}

func (q *Question) validateChoices() error {
	if len(q.Choices) < 2 || len(q.Choices) > 4 {
		return apperr.Validation("Une question doit avoir entre 2 et 4 choix.")
	}
	seen := map[string]bool{}
	correct := 0
	for _, c := range q.Choices {
		if !isOptionLetter(c.Option) || seen[c.Option] {
			return apperr.Validation("Les options doivent être des lettres A à D distinctes.")
		}
		seen[c.Option] = true
		// part 2 choices are only heard, so their text may be empty
		if c.Text == "" && q.Category != CatQuestionResponse && q.Category != CatPhotographs {
			return apperr.Validation(apperr.MsgRequiredFields)
		}
		if c.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return apperr.Validation("Indiquez exactement une bonne réponse.")
	}
	return nil
}

func (q *Question) validateGaps() error {
	gaps := Gaps(q.TextWithGaps)
	if len(gaps) == 0 {
		return apperr.Validation("Le texte à trous ne contient aucun trou {{n}}.")
	}
	for _, g := range gaps {
		choices := q.GapChoices[g]
		if len(choices) < 2 {
			return apperr.Validation("Chaque trou doit proposer au moins deux choix.")
		}
		answer, ok := q.GapAnswers[g]
		if !ok || !slices.Contains(choices, answer) {
			return apperr.Validation("La réponse de chaque trou doit figurer parmi ses choix.")
		}
	}
	for g := range q.GapAnswers {
		if !slices.Contains(gaps, g) {
			return apperr.Validation("Une réponse correspond à un trou absent du texte.")
		}
	}
	return nil
}

func isOptionLetter(s string) bool {
	return len(s) == 1 && s[0] >= 'A' && s[0] <= 'D'
}

func (q *Question) trim() {
	q.Category = Category(strings.TrimSpace(string(q.Category)))
	q.QuestionText = strings.TrimSpace(q.QuestionText)
	q.AudioURL = strings.TrimSpace(q.AudioURL)
	q.ImageURL = strings.TrimSpace(q.ImageURL)
	q.TextWithGaps = strings.TrimSpace(q.TextWithGaps)
	q.PassageID = strings.TrimSpace(q.PassageID)
	q.Explanation = strings.TrimSpace(q.Explanation)
	for i := range q.Choices {
		q.Choices[i].Option = strings.ToUpper(strings.TrimSpace(q.Choices[i].Option))
		q.Choices[i].Text = strings.TrimSpace(q.Choices[i].Text)
	}
}
