// internal/ril/plan.go
package ril

import (
	"iter"

	"golang.org/x/exp/slices"
)

// SlotState is everything scoring needs to know about one slot.
type SlotState struct {
	Usable    bool // radio online and SIM present
	Requested Mode
	Cap       RadioCapability
}

// Score rates giving rc to slot s. Unusable slots are penalised by what they
// would waste; a slot with a request gains or loses the requested modes
// depending on whether rc covers them; anything else is indifferent.
func Score(s SlotState, rc *RadioCapability) int {
	modes := rc.Modes()
	switch {
	case !s.Usable:
		return -int(modes)
	case s.Requested != 0:
		if modes.Contains(s.Requested) {
			return int(s.Requested)
		}
		return -int(s.Requested)
	}
	return 0
}

// Permutations yields every ordering of 0..n-1 using Heap's algorithm,
// identity first. The yielded slice is reused between iterations.
func Permutations(n int) iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		p := make([]int, n)
		for i := range p {
			p[i] = i
		}
		if !yield(p) {
			return
		}
		c := make([]int, n)
		for i := 0; i < n; {
			if c[i] < i {
				if i%2 == 0 {
					p[0], p[i] = p[i], p[0]
				} else {
					p[c[i]], p[i] = p[i], p[c[i]]
				}
				if !yield(p) {
					return
				}
				c[i]++
				i = 0
			} else {
				c[i] = 0
				i++
			}
		}
	}
}

// Assignment is the outcome of BestAssignment. Perm[k] names the slot whose
// capability slot k should receive.
type Assignment struct {
	Perm          []int
	Score         int
	IdentityScore int
}

// Better reports whether the assignment beats leaving things as they are.
func (a Assignment) Better() bool { return a.Score > a.IdentityScore }

// BestAssignment scores every permutation. The identity is the baseline and
// only a strictly higher total replaces it; among equal totals the first one
// enumerated wins.
func BestAssignment(slots []SlotState) Assignment {
	var best Assignment
	first := true
	for p := range Permutations(len(slots)) {
		total := 0
		for k, s := range slots {
			total += Score(s, &slots[p[k]].Cap)
		}
		if first {
			best = Assignment{Perm: slices.Clone(p), Score: total, IdentityScore: total}
			first = false
			continue
		}
		if total > best.Score {
			best.Perm = slices.Clone(p)
			best.Score = total
		}
	}
	return best
}
