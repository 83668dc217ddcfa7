package exam

import (
	"sort"
	"time"

	"github.com/tepiprep/tepiprep/internal/question"
)

const (
	FullExamQuestions = 200
	DefaultTimeLimit  = 120 * time.Minute
)

// PartQuota is how many questions of one TOEIC part an exam draws.
type PartQuota struct {
	Category question.Category `json:"category"`
	Count    int               `json:"count"`
}

// fullQuotas is the split of the real 200-question test.
var fullQuotas = []PartQuota{
	{question.CatPhotographs, 6},
	{question.CatQuestionResponse, 25},
	{question.CatConversations, 39},
	{question.CatTalks, 30},
	{question.CatIncompleteSentences, 30},
	{question.CatTextCompletion, 16},
	{question.CatReadingComprehension, 54},
}

type Blueprint struct {
	Parts     []PartQuota   `json:"parts"`
	TimeLimit time.Duration `json:"time_limit"`
}

// NewBlueprint scales the full-test quotas to total questions using largest
// remainders, so the parts always add up to total.
func NewBlueprint(total int, limit time.Duration) Blueprint {
	if total <= 0 {
		total = FullExamQuestions
	}
	if limit <= 0 {
		limit = DefaultTimeLimit
	}
	type share struct {
		idx  int
		rest float64
	}
	parts := make([]PartQuota, len(fullQuotas))
	shares := make([]share, len(fullQuotas))
	assigned := 0
	for i, q := range fullQuotas {
		exact := float64(q.Count) * float64(total) / FullExamQuestions
		parts[i] = PartQuota{Category: q.Category, Count: int(exact)}
		shares[i] = share{idx: i, rest: exact - float64(int(exact))}
		assigned += parts[i].Count
	}
	sort.SliceStable(shares, func(i, j int) bool { return shares[i].rest > shares[j].rest })
	for i := 0; assigned < total; i++ {
		parts[shares[i%len(shares)].idx].Count++
		assigned++
	}
	return Blueprint{Parts: parts, TimeLimit: limit}
}

func (b Blueprint) Total() int {
	n := 0
	for _, p := range b.Parts {
		n += p.Count
	}
	return n
}
