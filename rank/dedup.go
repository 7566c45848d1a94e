package rank

import (
	"strings"
	"unicode"

	"adaptive_task_generator/task"
)

// minContainedTitle is the shortest normalized title that substring containment applies to.
const minContainedTitle = 12

// tokenize splits text into lowercase word tokens, removing punctuation.
func tokenize(text string) map[string]int {
	tokens := make(map[string]int)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	for _, w := range words {
		if len(w) > 1 {
			tokens[w]++
		}
	}
	return tokens
}

// jaccard is the multiset Jaccard similarity of two token bags.
func jaccard(a, b map[string]int) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter, union := 0, 0
	for tok, ca := range a {
		cb := b[tok]
		inter += min(ca, cb)
		union += max(ca, cb)
	}
	for tok, cb := range b {
		if _, ok := a[tok]; !ok {
			union += cb
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func normalizeTitle(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

type entry struct {
	t      task.Task
	title  string
	tokens map[string]int
}

func newEntry(t task.Task) entry {
	return entry{t: t, title: normalizeTitle(t.Title), tokens: tokenize(t.Title + " " + t.Description)}
}

func (e entry) duplicates(o entry, threshold float64) bool {
	if e.title == o.title {
		return true
	}
	short, long := e.title, o.title
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) >= minContainedTitle && strings.Contains(long, short) {
		return true
	}
	return jaccard(e.tokens, o.tokens) >= threshold
}

// better reports whether a should replace b as the surviving copy.
func better(a, b task.Task) bool {
	if a.Source.Priority() != b.Source.Priority() {
		return a.Source.Priority() > b.Source.Priority()
	}
	return a.Priority > b.Priority
}

// Dedup drops near-duplicates, keeping the copy from the higher-priority source
// at the position of the first one seen. Inputs are not modified.
func Dedup(ts []task.Task, threshold float64) []task.Task {
	kept := make([]entry, 0, len(ts))
	for _, t := range ts {
		e := newEntry(t.Clone())
		dup := false
		for i := range kept {
			if kept[i].duplicates(e, threshold) {
				dup = true
				if better(e.t, kept[i].t) {
					kept[i] = e
				}
				break
			}
		}
		if !dup {
			kept = append(kept, e)
		}
	}
	out := make([]task.Task, len(kept))
	for i, e := range kept {
		out[i] = e.t
	}
	return out
}
