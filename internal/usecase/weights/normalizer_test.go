package weights

import "testing"

func sum(ws []Weight) int {
	var total int
	for _, w := range ws {
		total += w.Weight
	}
	return total
}

func TestNormalize_SumAtMost1000(t *testing.T) {
	scores := map[int]float64{1: 0.3, 2: 0.5, 3: 0.7, 4: 0.011, 5: 0.13}

	got := New(400).Normalize(scores)

	if s := sum(got); s > 1000 {
		t.Errorf("weights sum %d exceeds 1000", s)
	}
	if len(got) != 5 {
		t.Errorf("expected 5 entries, got %d", len(got))
	}
}

func TestNormalize_CutsToMaxAllowed(t *testing.T) {
	scores := map[int]float64{}
	for uid := 0; uid < 50; uid++ {
		scores[uid] = float64(uid + 1)
	}

	got := New(10).Normalize(scores)

	if len(got) != 10 {
		t.Fatalf("expected 10 entries after cut, got %d", len(got))
	}
	// Highest scores survive the cut.
	for _, w := range got {
		if w.UID < 40 {
			t.Errorf("uid %d should have been cut", w.UID)
		}
	}
}

func TestNormalize_EmptyMap(t *testing.T) {
	if got := New(400).Normalize(nil); len(got) != 0 {
		t.Errorf("expected empty allocation, got %v", got)
	}
}

func TestNormalize_SingleEntry(t *testing.T) {
	got := New(400).Normalize(map[int]float64{7: 0.42})

	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].UID != 7 || got[0].Weight != 1000 {
		t.Errorf("expected uid 7 with weight 1000, got %+v", got[0])
	}
}

func TestNormalize_ZeroWeightsKeptByDefault(t *testing.T) {
	scores := map[int]float64{1: 10000, 2: 0.001}

	got := New(400).Normalize(scores)

	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	var sawZero bool
	for _, w := range got {
		if w.Weight == 0 {
			sawZero = true
		}
	}
	if !sawZero {
		t.Error("expected the negligible score to round down to an explicit zero vote")
	}
}

func TestNormalize_DropZeroPolicy(t *testing.T) {
	scores := map[int]float64{1: 10000, 2: 0.001}

	got := New(400).WithDropZero(true).Normalize(scores)

	if len(got) != 1 {
		t.Fatalf("expected 1 entry with drop-zero policy, got %d", len(got))
	}
	if got[0].UID != 1 {
		t.Errorf("expected uid 1, got %d", got[0].UID)
	}
}

func TestNormalize_NegativeScoresClampToZero(t *testing.T) {
	scores := map[int]float64{1: 0.5, 2: -5.0}

	got := New(400).Normalize(scores)

	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	for _, w := range got {
		if w.Weight < 0 {
			t.Errorf("uid %d got negative weight %d", w.UID, w.Weight)
		}
		if w.UID == 2 && w.Weight != 0 {
			t.Errorf("punished uid 2 should weigh 0, got %d", w.Weight)
		}
	}
}

func TestNormalize_TieBreakDeterministic(t *testing.T) {
	scores := map[int]float64{3: 0.5, 1: 0.5, 2: 0.5}

	first := New(2).Normalize(scores)
	second := New(2).Normalize(scores)

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 entries, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("tie-break not deterministic: %+v vs %+v", first[i], second[i])
		}
	}
	if first[0].UID != 1 || first[1].UID != 2 {
		t.Errorf("expected ascending-uid tie break [1 2], got [%d %d]", first[0].UID, first[1].UID)
	}
}
