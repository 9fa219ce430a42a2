package domain

import "errors"

var (
	// ErrSourceBlocked signals the media source refused access (upstream IP block).
	ErrSourceBlocked = errors.New("source access blocked")
	// ErrFakeVideo signals a confirmed fabricated or nonexistent video id.
	ErrFakeVideo = errors.New("fabricated video")
	// ErrDownloadFailed signals a generic media fetch failure.
	ErrDownloadFailed = errors.New("video download failed")
	// ErrNoveltyUnavailable signals the novelty index returned no scores.
	ErrNoveltyUnavailable = errors.New("novelty index unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmptyScoreMap signals that a round produced no scores at all.
	ErrEmptyScoreMap = errors.New("empty score map")
	// ErrNotRegistered signals the validator key is not registered on the subnet.
	ErrNotRegistered = errors.New("validator key not registered")
	// ErrRestartRequired signals the running build is stale and the process
	// should exit for an external restart.
	ErrRestartRequired = errors.New("restart required")
)
