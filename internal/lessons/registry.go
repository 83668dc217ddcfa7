package lessons

import (
	"sort"
	"sync"
)

var (
	mu     sync.RWMutex
	byKind = make(map[Kind][]*Lesson)
	byID   = make(map[string]*Lesson)
)

// Register adds lessons to the global registry, replacing any lesson with
// the same id. Called from init() by the embedded content loader.
func Register(ls []*Lesson) {
	mu.Lock()
	defer mu.Unlock()

	for _, l := range ls {
		if old, ok := byID[l.ID]; ok {
			byKind[old.Kind] = remove(byKind[old.Kind], old.ID)
		}
		byID[l.ID] = l
		byKind[l.Kind] = append(byKind[l.Kind], l)
	}
	for k := range byKind {
		sort.SliceStable(byKind[k], func(i, j int) bool {
			return byKind[k][i].Order < byKind[k][j].Order
		})
	}
}

func remove(ls []*Lesson, id string) []*Lesson {
	out := ls[:0]
	for _, l := range ls {
		if l.ID != id {
			out = append(out, l)
		}
	}
	return out
}

// Kinds returns the kinds that have at least one lesson.
func Kinds() []Kind {
	mu.RLock()
	defer mu.RUnlock()

	var out []Kind
	for k, ls := range byKind {
		if len(ls) > 0 {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// All returns the lessons of a kind sorted by order. An empty kind returns
// every lesson, grouped by kind.
func All(kind Kind) []*Lesson {
	mu.RLock()
	defer mu.RUnlock()

	if kind != "" {
		return append([]*Lesson(nil), byKind[kind]...)
	}
	kinds := make([]Kind, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	var out []*Lesson
	for _, k := range kinds {
		out = append(out, byKind[k]...)
	}
	return out
}

// Get returns a lesson by id, or nil.
func Get(id string) *Lesson {
	mu.RLock()
	defer mu.RUnlock()
	return byID[id]
}

// Next returns the lesson that follows id within its kind, or nil.
func Next(id string) *Lesson {
	mu.RLock()
	defer mu.RUnlock()

	cur, ok := byID[id]
	if !ok {
		return nil
	}
	ls := byKind[cur.Kind]
	for i, l := range ls {
		if l.ID == id && i+1 < len(ls) {
			return ls[i+1]
		}
	}
	return nil
}
