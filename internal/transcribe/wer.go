package transcribe

import (
	"strings"
	"unicode"
)

// WordErrors is the alignment of a hypothesis transcript against a reference.
type WordErrors struct {
	Substitutions int
	Insertions    int
	Deletions     int
	RefWords      int
}

// Rate returns (S+I+D)/N, or 0 for an empty reference.
func (w WordErrors) Rate() float64 {
	if w.RefWords == 0 {
		return 0
	}
	return float64(w.Substitutions+w.Insertions+w.Deletions) / float64(w.RefWords)
}

// edit is one cell of the alignment table.
type edit struct {
	cost, subs, ins, dels int
}

func (e edit) plus(subs, ins, dels int) edit {
	return edit{
		cost: e.cost + subs + ins + dels,
		subs: e.subs + subs,
		ins:  e.ins + ins,
		dels: e.dels + dels,
	}
}

// CompareWords aligns hypothesis against reference after lowercasing,
// dropping punctuation and splitting on whitespace. Ties prefer a
// substitution, then a deletion, then an insertion.
func CompareWords(reference, hypothesis string) WordErrors {
	ref := words(reference)
	hyp := words(hypothesis)

	prev := make([]edit, len(hyp)+1)
	cur := make([]edit, len(hyp)+1)
	for j := 1; j <= len(hyp); j++ {
		prev[j] = prev[j-1].plus(0, 1, 0)
	}

	for i := 1; i <= len(ref); i++ {
		cur[0] = prev[0].plus(0, 0, 1)
		for j := 1; j <= len(hyp); j++ {
			if ref[i-1] == hyp[j-1] {
				cur[j] = prev[j-1]
				continue
			}
			best := prev[j-1].plus(1, 0, 0)
			if del := prev[j].plus(0, 0, 1); del.cost < best.cost {
				best = del
			}
			if ins := cur[j-1].plus(0, 1, 0); ins.cost < best.cost {
				best = ins
			}
			cur[j] = best
		}
		prev, cur = cur, prev
	}

	last := prev[len(hyp)]
	return WordErrors{
		Substitutions: last.subs,
		Insertions:    last.ins,
		Deletions:     last.dels,
		RefWords:      len(ref),
	}
}

func words(s string) []string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Fields(s)
}
