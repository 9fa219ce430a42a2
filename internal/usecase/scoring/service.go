// Package scoring turns one miner submission into a trust-weighted score:
// duration filtering, probabilistic audit, intra-batch deduplication, novelty
// and relevance scoring.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"

	"go.uber.org/zap"

	"github.com/omegavid/validator/internal/domain"
	"github.com/omegavid/validator/internal/metrics"
	"github.com/omegavid/validator/internal/usecase/embedding"
)

// Service scores submissions. Safe for concurrent use across submissions; all
// encoder access serializes through the shared gate.
type Service struct {
	embedder domain.Embedder
	encoder  domain.MediaEncoder
	gate     *embedding.Gate
	media    MediaSource
	index    NoveltyIndex
	uploader Uploader
	proxy    ProxySource
	logger   *zap.Logger

	checkProbability float64
	randFloat        func() float64
	randIntN         func(n int) int
}

// New creates a scoring service.
func New(
	embedder domain.Embedder,
	encoder domain.MediaEncoder,
	gate *embedding.Gate,
	media MediaSource,
	index NoveltyIndex,
	uploader Uploader,
	proxy ProxySource,
	logger *zap.Logger,
) *Service {
	return &Service{
		embedder:         embedder,
		encoder:          encoder,
		gate:             gate,
		media:            media,
		index:            index,
		uploader:         uploader,
		proxy:            proxy,
		logger:           logger,
		checkProbability: domain.CheckProbability,
		randFloat:        rand.Float64,
		randIntN:         rand.Intn,
	}
}

// WithCheckProbability overrides the audit gate probability.
func (s *Service) WithCheckProbability(p float64) *Service {
	s.checkProbability = p
	return s
}

// WithRandSource overrides the random sources. Test hook.
func (s *Service) WithRandSource(randFloat func() float64, randIntN func(int) int) *Service {
	s.randFloat = randFloat
	s.randIntN = randIntN
	return s
}

// Score runs the full audit-and-score pipeline for one submission and returns
// its reward. A non-nil error means the submission is unscored: the caller
// must omit it from the reward map without penalizing the miner.
func (s *Service) Score(
	ctx context.Context, req domain.VideoRequest, sub *domain.Submission,
) (float64, error) {
	// Malformed ids fail the whole submission before the probabilistic gate.
	for _, item := range sub.Metadata {
		if !s.media.IsValidID(item.VideoID) {
			metrics.AuditsTotal.WithLabelValues("invalid_id").Inc()
			metrics.SubmissionsTotal.WithLabelValues("punished").Inc()
			s.logger.Warn("Invalid video id in submission, punishing miner",
				zap.String("video_id", item.VideoID))
			return domain.FakeVideoPunishment, nil
		}
	}

	metadata := FilterByDuration(sub.Metadata)
	if len(metadata) > req.NumVideos {
		metadata = metadata[:req.NumVideos]
	}
	if len(metadata) < len(sub.Metadata) {
		s.logger.Debug("Filtered submission by duration",
			zap.Int("before", len(sub.Metadata)), zap.Int("after", len(metadata)))
	}
	if len(metadata) == 0 {
		metrics.SubmissionsTotal.WithLabelValues("min_score").Inc()
		return domain.MinScore, nil
	}

	checkVideo := s.checkProbability > s.randFloat()
	pick, err := s.selectRandomVideo(ctx, metadata, checkVideo)
	if errors.Is(err, domain.ErrFakeVideo) {
		metrics.AuditsTotal.WithLabelValues("failed").Inc()
		metrics.SubmissionsTotal.WithLabelValues("punished").Inc()
		return domain.FakeVideoPunishment, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select audit video: %w", err)
	}

	// Verification and query encoding share one gate acquisition; the encoder
	// serves a single request at a time across the whole process.
	var (
		passed   bool
		queryEmb []float32
	)
	err = func() error {
		release := s.gate.Acquire()
		defer release()

		var verifyErr error
		passed, verifyErr = s.verifyClaims(ctx, pick)
		if verifyErr != nil {
			return fmt.Errorf("audit verification: %w", verifyErr)
		}
		if !passed {
			return nil
		}
		res, embErr := s.embedder.Embed(ctx, req.Query)
		if embErr != nil {
			return fmt.Errorf("embed query: %w", embErr)
		}
		queryEmb = res.Embedding
		return nil
	}()
	if pick.media != nil && pick.media.Path != "" {
		if rmErr := os.Remove(pick.media.Path); rmErr != nil {
			s.logger.Warn("Failed to remove downloaded clip",
				zap.String("path", pick.media.Path), zap.Error(rmErr))
		}
	}
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("unscored").Inc()
		return 0, err
	}
	if !passed {
		metrics.AuditsTotal.WithLabelValues("failed").Inc()
		metrics.SubmissionsTotal.WithLabelValues("punished").Inc()
		return domain.FakeVideoPunishment, nil
	}
	if checkVideo {
		metrics.AuditsTotal.WithLabelValues("passed").Inc()
	} else {
		metrics.AuditsTotal.WithLabelValues("skipped").Inc()
	}

	batch := domain.StackEmbeddings(metadata)

	// Deduplicate within the batch; the later of two near-duplicates survives.
	keep := negate(DuplicateMask(batch))
	deduped := domain.FilterMetadata(metadata, keep)
	batch = batch.Filter(keep)
	if len(deduped) < len(metadata) {
		s.logger.Debug("Deduplicated submission",
			zap.Int("before", len(metadata)), zap.Int("after", len(deduped)))
	}
	metadata = deduped
	if len(metadata) == 0 {
		metrics.SubmissionsTotal.WithLabelValues("min_score").Inc()
		return domain.MinScore, nil
	}

	trueNovelty, err := s.trueNoveltyScores(ctx, metadata, batch)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("unscored").Inc()
		return 0, err
	}

	// Drop items the index already knows about.
	keep = make([]bool, len(trueNovelty))
	for i, score := range trueNovelty {
		keep[i] = score >= domain.DifferenceThreshold
	}
	survivors := domain.FilterMetadata(metadata, keep)
	batch = batch.Filter(keep)
	if len(survivors) < len(metadata) {
		s.logger.Debug("Dropped items too similar to the index",
			zap.Int("before", len(metadata)), zap.Int("after", len(survivors)))
	}
	metadata = survivors
	if len(metadata) == 0 {
		metrics.SubmissionsTotal.WithLabelValues("min_score").Inc()
		return domain.MinScore, nil
	}

	noveltyScore := FinalNoveltyScore(trueNovelty)

	descriptionRelevance := make([]float64, batch.Len())
	queryRelevance := make([]float64, batch.Len())
	var descSum, querySum float64
	for i := 0; i < batch.Len(); i++ {
		descriptionRelevance[i] = domain.CosineSimilarity(batch.Video[i], batch.Description[i])
		queryRelevance[i] = domain.CosineSimilarity(batch.Video[i], queryEmb)
		descSum += descriptionRelevance[i]
		querySum += queryRelevance[i]
	}

	score := (descSum + querySum + noveltyScore) / 3 / float64(req.NumVideos)
	if score < domain.MinScore {
		score = domain.MinScore
	}

	s.logger.Info("Submission scored",
		zap.Int("unique_videos", len(metadata)),
		zap.Float64s("description_relevance", descriptionRelevance),
		zap.Float64s("query_relevance", queryRelevance),
		zap.Float64("novelty_score", noveltyScore),
		zap.Float64("score", score),
	)

	if err := s.uploader.UploadMetadata(ctx, metadata, descriptionRelevance, queryRelevance, sub.Query); err != nil {
		s.logger.Error("Failed to upload video metadata", zap.Error(err))
	} else {
		s.logger.Info("Uploaded video metadata")
	}

	metrics.SubmissionsTotal.WithLabelValues("scored").Inc()
	return score, nil
}

// trueNoveltyScores combines local batch novelty with the cross-submission
// signal from the index. Items already flagged as near-duplicates locally are
// not sent; their local score stands (and drops them downstream).
func (s *Service) trueNoveltyScores(
	ctx context.Context, metadata []domain.VideoMetadata, batch domain.EmbeddingBatch,
) ([]float64, error) {
	local := LocalNoveltyScores(batch)
	s.logger.Debug("Local novelty scores", zap.Float64s("scores", local))

	var (
		toCheck  []domain.VideoMetadata
		checkIdx []int
	)
	for i, score := range local {
		if score >= domain.DifferenceThreshold {
			toCheck = append(toCheck, metadata[i])
			checkIdx = append(checkIdx, i)
		}
	}

	trueNovelty := make([]float64, len(local))
	copy(trueNovelty, local)

	if len(toCheck) == 0 {
		return trueNovelty, nil
	}

	global, err := s.index.GetNoveltyScores(ctx, toCheck)
	if err != nil {
		return nil, fmt.Errorf("get novelty scores: %w", err)
	}
	if len(global) != len(toCheck) {
		return nil, fmt.Errorf("%w: sent %d items, got %d scores",
			domain.ErrNoveltyUnavailable, len(toCheck), len(global))
	}
	s.logger.Debug("Global novelty scores", zap.Float64s("scores", global))

	for k, i := range checkIdx {
		if global[k] < trueNovelty[i] {
			trueNovelty[i] = global[k]
		}
	}
	return trueNovelty, nil
}
