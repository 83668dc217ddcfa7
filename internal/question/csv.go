package question

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSV import columns. Only category is required; the others may be absent
// from the header. Gap columns use "1=a|b|c;2=x|y" for choices and
// "1=a;2=x" for answers.
var csvColumns = []string{
	"category", "question_text", "audio_url", "image_url",
	"choice_a", "choice_b", "choice_c", "choice_d", "correct",
	"text_with_gaps", "gap_choices", "gap_answers",
	"passage_id", "question_number", "explanation",
}

// ParseCSV reads questions from a CSV with a header row. Rows are not
// validated here; CreateAll does that before writing anything.
func ParseCSV(r io.Reader) ([]Question, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	hdr, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := idx["category"]; !ok {
		return nil, errors.New("missing column: category")
	}

	var out []Question
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		if get("category") == "" && get("question_text") == "" && get("text_with_gaps") == "" {
			continue // blank line
		}
		q := Question{
			Category:     Category(strings.ToLower(get("category"))),
			QuestionText: get("question_text"),
			AudioURL:     get("audio_url"),
			ImageURL:     get("image_url"),
			TextWithGaps: get("text_with_gaps"),
			PassageID:    get("passage_id"),
			Explanation:  get("explanation"),
		}
		if n := get("question_number"); n != "" {
			if q.QuestionNumber, err = strconv.Atoi(n); err != nil {
				return nil, fmt.Errorf("line %d: question_number %q", line, n)
			}
		}
		correct := strings.ToUpper(get("correct"))
		for _, opt := range []string{"A", "B", "C", "D"} {
			col := "choice_" + strings.ToLower(opt)
			if _, ok := idx[col]; !ok {
				continue
			}
			text := get(col)
			if text == "" && opt != "A" && opt != "B" && correct != opt {
				continue
			}
			q.Choices = append(q.Choices, Choice{Option: opt, Text: text, IsCorrect: correct == opt})
		}
		if q.TextWithGaps != "" {
			q.Choices = nil
			if q.GapChoices, err = parseGapChoices(get("gap_choices")); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			if q.GapAnswers, err = parseGapAnswers(get("gap_answers")); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		out = append(out, q)
	}
	return out, nil
}

func splitPairs(s string) ([][2]string, error) {
	var out [][2]string
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("malformed gap entry %q", part)
		}
		out = append(out, [2]string{strings.TrimSpace(k), strings.TrimSpace(v)})
	}
	return out, nil
}

func parseGapChoices(s string) (map[string][]string, error) {
	pairs, err := splitPairs(s)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(pairs))
	for _, p := range pairs {
		for _, c := range strings.Split(p[1], "|") {
			if c = strings.TrimSpace(c); c != "" {
				out[p[0]] = append(out[p[0]], c)
			}
		}
	}
	return out, nil
}

func parseGapAnswers(s string) (map[string]string, error) {
	pairs, err := splitPairs(s)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[p[0]] = p[1]
	}
	return out, nil
}
