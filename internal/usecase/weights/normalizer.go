// Package weights converts raw miner scores into the integer weight
// allocation submitted to the ledger.
package weights

import "sort"

// Weight is one miner's integer share of the round's reward.
type Weight struct {
	UID    int
	Weight int
}

// Normalizer caps and normalizes score maps. Zero value is not usable; create
// via New.
type Normalizer struct {
	maxAllowed  int
	dropZero    bool
	totalWeight int
}

// New creates a normalizer keeping at most maxAllowed entries.
func New(maxAllowed int) *Normalizer {
	return &Normalizer{maxAllowed: maxAllowed, totalWeight: 1000}
}

// WithDropZero drops zero-weight entries from the allocation instead of
// submitting them as explicit zero votes.
func (n *Normalizer) WithDropZero(drop bool) *Normalizer {
	n.dropZero = drop
	return n
}

// Normalize cuts the score map to the highest-scoring maxAllowed entries and
// converts them to integer weights summing to at most totalWeight. Negative
// scores (punishments) are clamped to zero before normalization. Ties are
// broken by ascending UID so the cut is deterministic. An empty input yields
// an empty allocation.
func (n *Normalizer) Normalize(scores map[int]float64) []Weight {
	if len(scores) == 0 {
		return nil
	}

	kept := make([]Weight, 0, len(scores))
	type entry struct {
		uid   int
		score float64
	}
	entries := make([]entry, 0, len(scores))
	for uid, score := range scores {
		if score < 0 {
			score = 0
		}
		entries = append(entries, entry{uid: uid, score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].uid < entries[j].uid
	})
	if len(entries) > n.maxAllowed {
		entries = entries[:n.maxAllowed]
	}

	var total float64
	for _, e := range entries {
		total += e.score
	}
	if total == 0 {
		return nil
	}

	for _, e := range entries {
		w := int(e.score / total * float64(n.totalWeight))
		if n.dropZero && w == 0 {
			continue
		}
		kept = append(kept, Weight{UID: e.uid, Weight: w})
	}
	return kept
}
