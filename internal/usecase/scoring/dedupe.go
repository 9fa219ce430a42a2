package scoring

import "github.com/omegavid/validator/internal/domain"

// DuplicateMask flags items whose video embedding is too similar to any item
// with a higher index. The check is directional: among a cluster of
// near-duplicates only the last-occurring survives.
func DuplicateMask(batch domain.EmbeddingBatch) []bool {
	n := batch.Len()
	dup := make([]bool, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if domain.CosineSimilarity(batch.Video[i], batch.Video[j]) > domain.SimilarityThreshold {
				dup[i] = true
				break
			}
		}
	}
	return dup
}

func negate(mask []bool) []bool {
	out := make([]bool, len(mask))
	for i, v := range mask {
		out[i] = !v
	}
	return out
}
