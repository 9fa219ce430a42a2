package domain

import "time"

// Reference scoring parameters of the subnet. Thresholds are dimensionless
// cosine similarities; lengths are seconds.
const (
	MinVideoLength = 5
	MaxVideoLength = 120

	// CheckProbability gates the per-submission media audit.
	CheckProbability = 0.1

	// SimilarityThreshold is the loose pass/fail bound for audit verification
	// and intra-batch deduplication.
	SimilarityThreshold = 0.95

	// DifferenceThreshold is the minimum novelty an item needs to survive.
	DifferenceThreshold = 0.1

	// StrictSimilarityTolerance bounds the diagnostic near-equality check.
	// It never gates the audit outcome.
	StrictSimilarityTolerance = 1e-4

	// MinScore is the floor for any scored submission.
	MinScore = 0.005

	// FakeVideoPunishment is assigned when an audit detects fabrication.
	FakeVideoPunishment = -5.0

	// NoResponseMinimum is granted to sampled miners that did not answer, so
	// total silence never fully zeroes a weight.
	NoResponseMinimum = 0.005
)

// VideoDownloadTimeout bounds a single audit download attempt.
const VideoDownloadTimeout = 10 * time.Second
