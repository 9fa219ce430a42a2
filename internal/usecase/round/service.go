// Package round orchestrates one validation round: sample registered miners,
// collect their submissions, score them, and submit the resulting weight
// allocation to the ledger.
package round

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omegavid/validator/internal/domain"
	"github.com/omegavid/validator/internal/metrics"
)

// Settings carries the tunables of the round loop.
type Settings struct {
	Netuid              int
	ValidatorKey        string
	ModuleNamePrefix    string
	SampleSize          int
	NumVideos           int
	DispatchWidth       int
	CallTimeout         time.Duration
	IterationInterval   time.Duration
	UpdateCheckInterval time.Duration
}

// Service drives validation rounds end to end.
type Service struct {
	ledger     Ledger
	miners     MinerClient
	topics     TopicSource
	scorer     Scorer
	normalizer Normalizer
	versions   VersionSource
	logger     *zap.Logger

	settings Settings

	lastUpdateCheck time.Time
	randPerm        func(n int) []int
}

// New creates a round service. versions may be nil, in which case the loop
// never requests a restart.
func New(
	ledger Ledger,
	miners MinerClient,
	topics TopicSource,
	scorer Scorer,
	normalizer Normalizer,
	versions VersionSource,
	settings Settings,
	logger *zap.Logger,
) *Service {
	if settings.DispatchWidth <= 0 {
		settings.DispatchWidth = 8
	}
	return &Service{
		ledger:     ledger,
		miners:     miners,
		topics:     topics,
		scorer:     scorer,
		normalizer: normalizer,
		versions:   versions,
		settings:   settings,
		logger:     logger,
		randPerm:   rand.Perm,
	}
}

// WithRandSource overrides the permutation source used for miner sampling.
func (s *Service) WithRandSource(perm func(n int) []int) *Service {
	s.randPerm = perm
	return s
}

// RunRound executes a single validation round. It returns
// domain.ErrNotRegistered when the validator key is absent from the subnet
// and domain.ErrEmptyScoreMap when no submission produced a score.
func (s *Service) RunRound(ctx context.Context) error {
	start := time.Now()
	log := s.logger.With(zap.String("round_id", uuid.NewString()))

	modules, err := s.ledger.RegisteredModules(ctx, s.settings.Netuid)
	if err != nil {
		metrics.RoundsTotal.WithLabelValues("aborted").Inc()
		return fmt.Errorf("resolving registered modules: %w", err)
	}

	registered := false
	for _, m := range modules {
		if m.Key == s.settings.ValidatorKey {
			registered = true
			break
		}
	}
	if !registered {
		metrics.RoundsTotal.WithLabelValues("aborted").Inc()
		return fmt.Errorf("validator key on subnet %d: %w", s.settings.Netuid, domain.ErrNotRegistered)
	}

	miners := s.filterMiners(modules)
	if len(miners) == 0 {
		metrics.RoundsTotal.WithLabelValues("aborted").Inc()
		return fmt.Errorf("no %q modules registered on subnet %d", s.settings.ModuleNamePrefix, s.settings.Netuid)
	}
	sampled := s.sample(miners)

	topic, err := s.topics.GetTopic(ctx)
	if err != nil {
		metrics.RoundsTotal.WithLabelValues("aborted").Inc()
		return fmt.Errorf("fetching round topic: %w", err)
	}
	req := domain.VideoRequest{Query: topic, NumVideos: s.settings.NumVideos}
	log.Info("starting round",
		zap.String("topic", topic),
		zap.Int("sampled_miners", len(sampled)),
	)

	submissions := s.dispatch(ctx, log, sampled, req)

	scores := s.scoreAll(ctx, log, req, sampled, submissions)
	if len(scores) == 0 {
		metrics.RoundsTotal.WithLabelValues("aborted").Inc()
		return domain.ErrEmptyScoreMap
	}

	allocation := s.normalizer.Normalize(scores)
	if err := s.ledger.Vote(ctx, s.settings.Netuid, allocation); err != nil {
		metrics.RoundsTotal.WithLabelValues("aborted").Inc()
		return fmt.Errorf("submitting weights: %w", err)
	}
	metrics.WeightsSubmittedTotal.Add(float64(len(allocation)))
	metrics.RoundsTotal.WithLabelValues("completed").Inc()
	metrics.RoundDuration.Observe(time.Since(start).Seconds())
	log.Info("round completed",
		zap.Int("scored_miners", len(scores)),
		zap.Int("weights", len(allocation)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (s *Service) filterMiners(modules []domain.Miner) []domain.Miner {
	miners := make([]domain.Miner, 0, len(modules))
	for _, m := range modules {
		if m.Key == s.settings.ValidatorKey {
			continue
		}
		if s.settings.ModuleNamePrefix != "" && !strings.HasPrefix(m.Name, s.settings.ModuleNamePrefix) {
			continue
		}
		miners = append(miners, m)
	}
	return miners
}

func (s *Service) sample(miners []domain.Miner) []domain.Miner {
	k := s.settings.SampleSize
	if k >= len(miners) {
		return miners
	}
	perm := s.randPerm(len(miners))
	sampled := make([]domain.Miner, 0, k)
	for _, idx := range perm[:k] {
		sampled = append(sampled, miners[idx])
	}
	return sampled
}

// dispatch queries the sampled miners over a bounded worker pool. The
// returned slice is aligned with the sampled set; a nil entry means the miner
// did not answer.
func (s *Service) dispatch(ctx context.Context, log *zap.Logger, sampled []domain.Miner, req domain.VideoRequest) []*domain.Submission {
	results := make([]*domain.Submission, len(sampled))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < s.settings.DispatchWidth; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				callCtx, cancel := context.WithTimeout(ctx, s.settings.CallTimeout)
				sub, err := s.miners.Generate(callCtx, sampled[i], req)
				cancel()
				if err != nil {
					metrics.MinerRequestsTotal.WithLabelValues("no_response").Inc()
					log.Info("miner did not answer",
						zap.Int("uid", sampled[i].UID),
						zap.Error(err),
					)
					continue
				}
				if sub == nil || sub.Metadata == nil {
					metrics.MinerRequestsTotal.WithLabelValues("no_response").Inc()
					log.Info("miner returned an empty response", zap.Int("uid", sampled[i].UID))
					continue
				}
				metrics.MinerRequestsTotal.WithLabelValues("answered").Inc()
				results[i] = sub
			}
		}()
	}
	for i := range sampled {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

// scoreAll scores responders concurrently and floors the non-responders at
// the minimum reward. Responders whose submission could not be scored are
// omitted from the map entirely.
func (s *Service) scoreAll(ctx context.Context, log *zap.Logger, req domain.VideoRequest, sampled []domain.Miner, submissions []*domain.Submission) map[int]float64 {
	scores := make(map[int]float64, len(sampled))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, sub := range submissions {
		if sub == nil {
			continue
		}
		wg.Add(1)
		go func(uid int, sub *domain.Submission) {
			defer wg.Done()
			score, err := s.scorer.Score(ctx, req, sub)
			if err != nil {
				log.Warn("submission left unscored",
					zap.Int("uid", uid),
					zap.Error(err),
				)
				return
			}
			if score > 1 {
				log.Panic("submission score exceeds 1.0",
					zap.Int("uid", uid),
					zap.Float64("score", score),
				)
			}
			mu.Lock()
			scores[uid] = score
			mu.Unlock()
		}(sampled[i].UID, sub)
	}
	wg.Wait()

	for i, sub := range submissions {
		if sub != nil {
			continue
		}
		uid := sampled[i].UID
		scores[uid] = domain.NoResponseMinimum
		log.Info("penalizing unresponsive miner",
			zap.Int("uid", uid),
			zap.Float64("score", domain.NoResponseMinimum),
		)
	}
	return scores
}
