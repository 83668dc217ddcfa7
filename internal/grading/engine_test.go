package grading

import (
	"context"
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  Hello,   World! ": "hello world",
		"I don't know.":      "i don't know",
		"It’s fine":          "it's fine",
		"'quoted'":           "quoted",
		"RÉSUMÉ":             "résumé",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	if d := levenshtein("kitten", "sitting"); d != 3 {
		t.Fatalf("got %d", d)
	}
	if d := levenshtein("", "abc"); d != 3 {
		t.Fatalf("got %d", d)
	}
}

func TestMCQSingle(t *testing.T) {
	g := NewDefaultGrader()
	q := Q{Type: TypeMCQSingle, Points: 1, AnswerKey: []string{"B"}}
	r, err := g.Grade(context.Background(), q, "b")
	if err != nil || !r.Correct() {
		t.Fatalf("want correct, got %+v %v", r, err)
	}
	r, _ = g.Grade(context.Background(), q, "C")
	if r.AutoPoints != 0 {
		t.Fatalf("want 0, got %v", r.AutoPoints)
	}
	if _, err := g.Grade(context.Background(), q, 3); !errors.Is(err, ErrResponseType) {
		t.Fatalf("want ErrResponseType, got %v", err)
	}
}

func TestShortWordFuzzy(t *testing.T) {
	g := NewDefaultGrader()
	q := Q{Type: TypeShortWord, Points: 2, AnswerKey: []string{"receive"}}

	r, _ := g.Grade(context.Background(), q, "Receive.")
	if r.AutoPoints != 2 {
		t.Fatalf("exact: got %v", r.AutoPoints)
	}
	r, _ = g.Grade(context.Background(), q, "recieve")
	if r.AutoPoints != 0 {
		// two substitutions, outside the window
		t.Fatalf("transposition should not be close: got %v", r.AutoPoints)
	}
	r, _ = g.Grade(context.Background(), q, "receve")
	if r.AutoPoints != 1 {
		t.Fatalf("one edit: got %v", r.AutoPoints)
	}

	strict := NewDefaultGrader(WithMaxEditDistance(0))
	r, _ = strict.Grade(context.Background(), q, "receve")
	if r.AutoPoints != 0 {
		t.Fatalf("strict grader gave %v", r.AutoPoints)
	}
}

func TestFillGapsPartial(t *testing.T) {
	g := NewDefaultGrader()
	q := Q{Type: TypeFillGaps, Points: 4, Gaps: map[string]string{"1": "has", "2": "been", "3": "since", "4": "for"}}

	r, err := g.Grade(context.Background(), q, map[string]interface{}{"1": "has", "2": "Been", "3": "for"})
	if err != nil {
		t.Fatal(err)
	}
	if r.AutoPoints != 2 {
		t.Fatalf("want 2, got %v", r.AutoPoints)
	}

	allOrNothing := NewDefaultGrader(WithPartialGaps(false))
	r, _ = allOrNothing.Grade(context.Background(), q, map[string]string{"1": "has"})
	if r.AutoPoints != 0 {
		t.Fatalf("want 0, got %v", r.AutoPoints)
	}
}

func TestMatching(t *testing.T) {
	g := NewDefaultGrader()
	q := Q{Type: TypeMatching, Points: 1, Pairs: map[string]string{"apple": "pomme", "dog": "chien"}}

	r, _ := g.Grade(context.Background(), q, map[string]string{"apple": "pomme", "dog": "chien"})
	if !r.Correct() {
		t.Fatalf("want correct, got %+v", r)
	}
	r, _ = g.Grade(context.Background(), q, map[string]string{"apple": "pomme", "dog": "chat"})
	if r.AutoPoints != 0.5 {
		t.Fatalf("want 0.5, got %v", r.AutoPoints)
	}
	r, _ = g.Grade(context.Background(), q, map[string]string{"apple": "pomme", "dog": "chien", "cat": "chat"})
	if r.Correct() {
		t.Fatal("extra pairs must not be full credit")
	}
}

func TestUnknownType(t *testing.T) {
	g := NewDefaultGrader()
	if _, err := g.Grade(context.Background(), Q{Type: "essay", Points: 1}, "x"); err == nil {
		t.Fatal("expected error for unknown type")
	}
}
