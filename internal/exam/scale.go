package exam

import "math"

// Raw section counts fed to a ScaleMapper.
type Raw struct {
	ListeningCorrect int
	ListeningTotal   int
	ReadingCorrect   int
	ReadingTotal     int
}

type Scaled struct {
	Listening int
	Reading   int
	Total     int
}

// ScaleMapper converts raw section counts to reported scores.
type ScaleMapper interface {
	Scale(raw Raw) Scaled
}

var scaleRegistry = map[string]ScaleMapper{}

// RegisterScale binds a mapper to a key like "toeic.v1".
func RegisterScale(key string, m ScaleMapper) { scaleRegistry[key] = m }

// ScaleFor returns the mapper registered under key, or the TOEIC scale.
func ScaleFor(key string) ScaleMapper {
	if m, ok := scaleRegistry[key]; ok && m != nil {
		return m
	}
	return TOEICScale{}
}

func init() {
	RegisterScale("toeic.v1", TOEICScale{})
}

const (
	sectionMin  = 5
	sectionMax  = 495
	sectionStep = 5
)

// TOEICScale maps each section linearly from 5 to 495 in steps of 5, based
// on the share of correct answers. An empty section scores the minimum.
type TOEICScale struct{}

func (TOEICScale) Scale(raw Raw) Scaled {
	l := scaleSection(raw.ListeningCorrect, raw.ListeningTotal)
	r := scaleSection(raw.ReadingCorrect, raw.ReadingTotal)
	return Scaled{Listening: l, Reading: r, Total: l + r}
}

func scaleSection(correct, total int) int {
	if total <= 0 || correct <= 0 {
		return sectionMin
	}
	if correct > total {
		correct = total
	}
	steps := math.Round(float64(correct) / float64(total) * (sectionMax - sectionMin) / sectionStep)
	return sectionMin + int(steps)*sectionStep
}
