// internal/ril/plan_test.go
package ril

import (
	"fmt"
	"slices"
	"testing"
)

func TestPermutations(t *testing.T) {
	for n, want := range []int{1, 1, 2, 6, 24} {
		seen := map[string]bool{}
		first := true
		for p := range Permutations(n) {
			if first {
				for i, v := range p {
					if i != v {
						t.Fatalf("n=%d: first permutation must be the identity, got %v", n, p)
					}
				}
				first = false
			}
			seen[fmt.Sprint(p)] = true
		}
		if len(seen) != want {
			t.Fatalf("n=%d: expected %d distinct permutations, got %d", n, want, len(seen))
		}
	}
}

func TestPermutations_StopsEarly(t *testing.T) {
	n := 0
	for range Permutations(4) {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Fatalf("expected 3 iterations, got %d", n)
	}
}

func TestScore(t *testing.T) {
	lte := &RadioCapability{RAF: rafFull}
	gsm := &RadioCapability{RAF: rafGSMOnly}

	cases := []struct {
		name string
		s    SlotState
		rc   *RadioCapability
		want int
	}{
		{"unusable wastes modes", SlotState{}, lte, -7},
		{"unusable gsm", SlotState{}, gsm, -1},
		{"request met", SlotState{Usable: true, Requested: ModeLTE}, lte, 4},
		{"request missed", SlotState{Usable: true, Requested: ModeLTE}, gsm, -4},
		{"request needs every mode", SlotState{Usable: true, Requested: ModeLTE | ModeGSM}, &RadioCapability{RAF: RAFLTE}, -5},
		{"indifferent", SlotState{Usable: true}, lte, 0},
		{"unusable ignores request", SlotState{Requested: ModeGSM}, gsm, -1},
	}
	for _, c := range cases {
		if got := Score(c.s, c.rc); got != c.want {
			t.Errorf("%s: expected %d, got %d", c.name, c.want, got)
		}
	}
}

func TestBestAssignment(t *testing.T) {
	slots := []SlotState{
		{Usable: true, Cap: RadioCapability{RAF: rafGSMOnly}},
		{Usable: false, Cap: RadioCapability{RAF: rafFull}},
	}
	a := BestAssignment(slots)
	if !a.Better() || !slices.Equal(a.Perm, []int{1, 0}) {
		t.Fatalf("expected swap, got %+v", a)
	}
	if a.IdentityScore != -7 || a.Score != -1 {
		t.Fatalf("unexpected scores %+v", a)
	}
}

func TestBestAssignment_TiesKeepIdentity(t *testing.T) {
	slots := []SlotState{
		{Usable: true, Cap: RadioCapability{RAF: rafFull}},
		{Usable: true, Cap: RadioCapability{RAF: rafGSMOnly}},
		{Usable: true, Cap: RadioCapability{RAF: RAFUMTS}},
	}
	for range 3 {
		a := BestAssignment(slots)
		if a.Better() || !slices.Equal(a.Perm, []int{0, 1, 2}) {
			t.Fatalf("equal totals must keep the identity, got %+v", a)
		}
	}
}

func TestBestAssignment_Deterministic(t *testing.T) {
	slots := []SlotState{
		{Usable: true, Requested: ModeUMTS, Cap: RadioCapability{RAF: rafGSMOnly}},
		{Usable: true, Cap: RadioCapability{RAF: rafFull}},
		{Usable: true, Cap: RadioCapability{RAF: RAFUMTS}},
	}
	first := BestAssignment(slots)
	if !first.Better() || first.Score != 2 {
		t.Fatalf("expected a better assignment scoring 2, got %+v", first)
	}
	for range 10 {
		if got := BestAssignment(slots); !slices.Equal(got.Perm, first.Perm) {
			t.Fatalf("assignment changed between runs: %v vs %v", got.Perm, first.Perm)
		}
	}
}
