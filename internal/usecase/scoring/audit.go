package scoring

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/omegavid/validator/internal/domain"
	"github.com/omegavid/validator/internal/metrics"
)

// auditPick is the item selected for audit verification, with the downloaded
// clip when one was obtained.
type auditPick struct {
	item  domain.VideoMetadata
	media *domain.MediaFile
}

// selectRandomVideo picks one item for audit. When checkVideo is false the
// pick carries no media and verification falls back to description only.
// Otherwise candidates are popped uniformly at random and downloaded until one
// succeeds or the pool is exhausted. A blocked source keeps the pick without
// media; a confirmed fake fails the selection with domain.ErrFakeVideo.
func (s *Service) selectRandomVideo(
	ctx context.Context, items []domain.VideoMetadata, checkVideo bool,
) (auditPick, error) {
	if !checkVideo {
		return auditPick{item: items[s.randIntN(len(items))]}, nil
	}

	remaining := make([]domain.VideoMetadata, len(items))
	copy(remaining, items)

	var last domain.VideoMetadata
	for len(remaining) > 0 {
		idx := s.randIntN(len(remaining))
		last = remaining[idx]
		remaining = append(remaining[:idx], remaining[idx+1:]...)

		proxyURL, err := s.proxy.GetProxyURL(ctx)
		if err != nil {
			s.logger.Info("No proxy available, downloading directly", zap.Error(err))
			proxyURL = ""
		}

		media, err := s.media.Download(ctx, last.VideoID, last.StartTime, last.EndTime, proxyURL)
		switch {
		case err == nil:
			metrics.VideoDownloadsTotal.WithLabelValues("ok").Inc()
			return auditPick{item: last, media: &media}, nil
		case errors.Is(err, domain.ErrSourceBlocked):
			// Cannot see the source at all; verify the description instead.
			metrics.VideoDownloadsTotal.WithLabelValues("blocked").Inc()
			s.logger.Warn("Source blocked, checking description only",
				zap.String("video_id", last.VideoID))
			return auditPick{item: last}, nil
		case errors.Is(err, domain.ErrFakeVideo):
			metrics.VideoDownloadsTotal.WithLabelValues("fake").Inc()
			s.logger.Warn("Video confirmed fake, punishing miner",
				zap.String("video_id", last.VideoID))
			return auditPick{}, domain.ErrFakeVideo
		case errors.Is(err, context.DeadlineExceeded):
			metrics.VideoDownloadsTotal.WithLabelValues("timeout").Inc()
			continue
		default:
			metrics.VideoDownloadsTotal.WithLabelValues("error").Inc()
			s.logger.Debug("Download attempt failed, trying another candidate",
				zap.String("video_id", last.VideoID), zap.Error(err))
			continue
		}
	}

	// No clip obtained and no proof of fabrication; don't punish, check the
	// description of the last attempted candidate.
	return auditPick{item: last}, nil
}

// verifyClaims recomputes embeddings for the audited item and compares them to
// the claimed vectors with the loose cosine check. The strict near-equality
// check is logged for diagnostics only. Callers must hold the encoder gate.
func (s *Service) verifyClaims(ctx context.Context, pick auditPick) (bool, error) {
	if pick.media == nil {
		res, err := s.embedder.Embed(ctx, pick.item.Description)
		if err != nil {
			return false, fmt.Errorf("embed description: %w", err)
		}
		passed := domain.CosineSimilarity(res.Embedding, pick.item.DescriptionEmb) > domain.SimilarityThreshold
		strict := domain.NearlyEqual(res.Embedding, pick.item.DescriptionEmb, domain.StrictSimilarityTolerance)
		s.logger.Debug("Description similarity check",
			zap.String("video_id", pick.item.VideoID),
			zap.Bool("passed", passed),
			zap.Bool("strict", strict),
		)
		return passed, nil
	}

	clip, err := s.encoder.EmbedMedia(ctx, pick.item.Description, *pick.media)
	if err != nil {
		return false, fmt.Errorf("embed media: %w", err)
	}

	passed := domain.CosineSimilarity(clip.Video, pick.item.VideoEmb) > domain.SimilarityThreshold &&
		domain.CosineSimilarity(clip.Audio, pick.item.AudioEmb) > domain.SimilarityThreshold &&
		domain.CosineSimilarity(clip.Description, pick.item.DescriptionEmb) > domain.SimilarityThreshold
	strict := domain.NearlyEqual(clip.Video, pick.item.VideoEmb, domain.StrictSimilarityTolerance) &&
		domain.NearlyEqual(clip.Audio, pick.item.AudioEmb, domain.StrictSimilarityTolerance) &&
		domain.NearlyEqual(clip.Description, pick.item.DescriptionEmb, domain.StrictSimilarityTolerance)
	s.logger.Debug("Full similarity check",
		zap.String("video_id", pick.item.VideoID),
		zap.Bool("passed", passed),
		zap.Bool("strict", strict),
	)
	return passed, nil
}
