package scoring

import "github.com/omegavid/validator/internal/domain"

// LocalNoveltyScores computes per-item novelty within one batch: one minus the
// maximum cosine similarity against all later items. The last item has nothing
// to compare against and is fully novel. Index order matters and must match
// the dedup convention.
func LocalNoveltyScores(batch domain.EmbeddingBatch) []float64 {
	n := batch.Len()
	if n == 0 {
		return nil
	}
	scores := make([]float64, n)
	for i := 0; i < n-1; i++ {
		maxSim := -1.0
		for j := i + 1; j < n; j++ {
			if sim := domain.CosineSimilarity(batch.Video[i], batch.Video[j]); sim > maxSim {
				maxSim = sim
			}
		}
		scores[i] = 1 - maxSim
	}
	scores[n-1] = 1.0
	return scores
}

// FinalNoveltyScore sums the novelty of items clearing the difference
// threshold. A sum, not an average: longer surviving batches contribute more.
func FinalNoveltyScore(trueNovelty []float64) float64 {
	var total float64
	for _, score := range trueNovelty {
		if score >= domain.DifferenceThreshold {
			total += score
		}
	}
	return total
}
