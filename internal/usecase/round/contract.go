package round

import (
	"context"

	"github.com/omegavid/validator/internal/domain"
	"github.com/omegavid/validator/internal/usecase/weights"
)

// Scorer runs the audit-and-score pipeline for one submission. A non-nil
// error means the submission is unscored and must be omitted from the reward
// map without penalty.
type Scorer interface {
	Score(ctx context.Context, req domain.VideoRequest, sub *domain.Submission) (float64, error)
}

// MinerClient dispatches the round request to one miner.
type MinerClient interface {
	Generate(ctx context.Context, miner domain.Miner, req domain.VideoRequest) (*domain.Submission, error)
}

// Ledger resolves the registered module set and submits vote weights.
type Ledger interface {
	RegisteredModules(ctx context.Context, netuid int) ([]domain.Miner, error)
	Vote(ctx context.Context, netuid int, allocation []weights.Weight) error
}

// TopicSource picks the topic to query miners with.
type TopicSource interface {
	GetTopic(ctx context.Context) (string, error)
}

// Normalizer converts the round's score map into a ledger allocation.
type Normalizer interface {
	Normalize(scores map[int]float64) []weights.Weight
}

// VersionSource reports whether the running build is the latest release.
type VersionSource interface {
	IsLatest(ctx context.Context) (bool, error)
}
