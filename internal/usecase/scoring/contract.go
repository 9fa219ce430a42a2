package scoring

import (
	"context"

	"github.com/omegavid/validator/internal/domain"
)

// MediaSource fetches clipped source media for audit verification. Download
// enforces its own concurrency cap and per-attempt timeout.
type MediaSource interface {
	Download(ctx context.Context, videoID string, start, end int, proxyURL string) (domain.MediaFile, error)
	IsValidID(videoID string) bool
}

// NoveltyIndex returns cross-submission novelty scores, one per item sent.
type NoveltyIndex interface {
	GetNoveltyScores(ctx context.Context, items []domain.VideoMetadata) ([]float64, error)
}

// Uploader persists scored metadata and relevance arrays. Best effort; a
// failure never changes the score.
type Uploader interface {
	UploadMetadata(
		ctx context.Context,
		items []domain.VideoMetadata,
		descriptionRelevance, queryRelevance []float64,
		query string,
	) error
}

// ProxySource hands out a proxy URL for audit downloads, empty when none is
// available.
type ProxySource interface {
	GetProxyURL(ctx context.Context) (string, error)
}
