package exam

import (
	"testing"
	"time"
)

func TestTOEICScaleBounds(t *testing.T) {
	s := ScaleFor("toeic.v1")
	if got := s.Scale(Raw{}); got.Listening != 5 || got.Reading != 5 || got.Total != 10 {
		t.Fatalf("empty exam: %+v", got)
	}
	full := s.Scale(Raw{ListeningCorrect: 100, ListeningTotal: 100, ReadingCorrect: 100, ReadingTotal: 100})
	if full.Total != 990 {
		t.Fatalf("perfect exam: %+v", full)
	}
	half := s.Scale(Raw{ListeningCorrect: 50, ListeningTotal: 100, ReadingCorrect: 73, ReadingTotal: 100})
	if half.Listening != 250 || half.Reading%5 != 0 || half.Reading <= half.Listening {
		t.Fatalf("unexpected %+v", half)
	}
}

func TestBlueprintScales(t *testing.T) {
	full := NewBlueprint(0, 0)
	if full.Total() != 200 || full.TimeLimit != 120*time.Minute {
		t.Fatalf("full blueprint %+v", full)
	}
	if full.Parts[2].Count != 39 || full.Parts[6].Count != 54 {
		t.Fatalf("full quotas changed: %+v", full.Parts)
	}
	for _, n := range []int{7, 20, 50, 99} {
		b := NewBlueprint(n, time.Hour)
		if b.Total() != n {
			t.Errorf("NewBlueprint(%d) sums to %d", n, b.Total())
		}
	}
	small := NewBlueprint(20, time.Hour)
	// reading comprehension is the largest part and keeps the largest share
	if small.Parts[6].Count < small.Parts[0].Count {
		t.Fatalf("shares not proportional: %+v", small.Parts)
	}
}
