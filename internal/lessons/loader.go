package lessons

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"slices"
)

//go:embed data/*.json
var lessonData embed.FS

func init() {
	ls, err := LoadFS(lessonData)
	if err != nil {
		panic(fmt.Sprintf("tepiprep: load lessons: %v", err))
	}
	Register(ls)
}

// LoadFS parses and validates every JSON file under data/ in fsys. Each file
// holds one lesson.
func LoadFS(fsys fs.FS) ([]*Lesson, error) {
	entries, err := fs.ReadDir(fsys, "data")
	if err != nil {
		return nil, err
	}

	seen := map[string]string{}
	var out []*Lesson
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := fs.ReadFile(fsys, "data/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		var l Lesson
		if err := json.Unmarshal(data, &l); err != nil {
			return nil, fmt.Errorf("parse %s: %w", entry.Name(), err)
		}
		if err := Validate(&l); err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		if prev, dup := seen[l.ID]; dup {
			return nil, fmt.Errorf("%s: lesson id %q already defined in %s", entry.Name(), l.ID, prev)
		}
		seen[l.ID] = entry.Name()
		out = append(out, &l)
	}
	return out, nil
}

// Validate checks the shape rules every lesson must satisfy.
func Validate(l *Lesson) error {
	if l.ID == "" {
		return errors.New("lesson id is required")
	}
	if !l.Kind.Valid() {
		return fmt.Errorf("lesson %s: unknown kind %q", l.ID, l.Kind)
	}
	if len(l.Items) == 0 {
		return fmt.Errorf("lesson %s: no items", l.ID)
	}
	if len(l.Exercises) == 0 {
		return fmt.Errorf("lesson %s: no exercises", l.ID)
	}
	ids := map[string]bool{}
	for _, it := range l.Items {
		if it.ID == "" || ids[it.ID] {
			return fmt.Errorf("lesson %s: missing or duplicate item id %q", l.ID, it.ID)
		}
		ids[it.ID] = true
	}
	for _, e := range l.Exercises {
		if e.ID == "" || ids[e.ID] {
			return fmt.Errorf("lesson %s: missing or duplicate exercise id %q", l.ID, e.ID)
		}
		ids[e.ID] = true
		switch e.Type {
		case ExerciseMultipleChoice:
			if len(e.Options) < 2 || !slices.Contains(e.Options, e.CorrectAnswer) {
				return fmt.Errorf("lesson %s exercise %s: correct answer must be one of the options", l.ID, e.ID)
			}
		case ExerciseFillBlank, ExerciseTranslation:
			if e.CorrectAnswer == "" {
				return fmt.Errorf("lesson %s exercise %s: correct answer is required", l.ID, e.ID)
			}
		case ExerciseMatching:
			if len(e.Pairs) < 2 {
				return fmt.Errorf("lesson %s exercise %s: matching needs at least 2 pairs", l.ID, e.ID)
			}
			lefts := map[string]bool{}
			for _, p := range e.Pairs {
				if p.Left == "" || p.Right == "" || lefts[p.Left] {
					return fmt.Errorf("lesson %s exercise %s: bad pair %q", l.ID, e.ID, p.Left)
				}
				lefts[p.Left] = true
			}
		default:
			return fmt.Errorf("lesson %s exercise %s: unknown type %q", l.ID, e.ID, e.Type)
		}
	}
	return nil
}
