// Package ytdlp fetches clipped source video via the yt-dlp binary for audit
// verification.
package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omegavid/validator/internal/domain"
)

var videoIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// Downloader shells out to yt-dlp. A semaphore caps concurrent downloads and
// every attempt carries its own timeout so one stuck fetch never blocks the
// audit of other submissions.
type Downloader struct {
	binPath string
	workDir string
	timeout time.Duration
	sem     chan struct{}
	logger  *zap.Logger
}

// Config holds downloader settings.
type Config struct {
	BinPath     string
	WorkDir     string
	Concurrency int
	Timeout     time.Duration
	Logger      *zap.Logger
}

// NewDownloader creates a yt-dlp downloader.
func NewDownloader(cfg *Config) *Downloader {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = domain.VideoDownloadTimeout
	}
	return &Downloader{
		binPath: cfg.BinPath,
		workDir: cfg.WorkDir,
		timeout: timeout,
		sem:     make(chan struct{}, concurrency),
		logger:  cfg.Logger,
	}
}

// IsValidID reports whether videoID has the canonical 11-character shape.
func (d *Downloader) IsValidID(videoID string) bool {
	return videoIDPattern.MatchString(videoID)
}

// Download fetches the [start, end] clip of the given video. It returns
// domain.ErrSourceBlocked when the source refuses access,
// domain.ErrFakeVideo when the video provably does not exist, and
// context.DeadlineExceeded when the attempt timed out.
func (d *Downloader) Download(ctx context.Context, videoID string, start, end int, proxyURL string) (domain.MediaFile, error) {
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return domain.MediaFile{}, ctx.Err()
	}
	defer func() { <-d.sem }()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	outPath := filepath.Join(d.workDir, fmt.Sprintf("audit-%s.mp4", uuid.NewString()))
	args := []string{
		"https://www.youtube.com/watch?v=" + videoID,
		"--download-sections", fmt.Sprintf("*%d-%d", start, end),
		"-f", "worst[ext=mp4]/worst",
		"-o", outPath,
		"--quiet",
		"--no-warnings",
		"--no-playlist",
	}
	if proxyURL != "" {
		args = append(args, "--proxy", proxyURL)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.binPath, args...)
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return domain.MediaFile{Path: outPath}, nil
	}

	// The attempt failed; never leave a partial clip behind.
	_ = os.Remove(outPath)

	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		return domain.MediaFile{}, context.DeadlineExceeded
	}
	if classified := classifyStderr(stderr.String()); classified != nil {
		d.logger.Debug("yt-dlp refused download",
			zap.String("video_id", videoID), zap.Error(classified))
		return domain.MediaFile{}, classified
	}
	return domain.MediaFile{}, fmt.Errorf("%w: %s", domain.ErrDownloadFailed, firstLine(stderr.String()))
}

// classifyStderr maps known yt-dlp failure messages to domain errors.
func classifyStderr(stderr string) error {
	switch {
	case strings.Contains(stderr, "Sign in to confirm"),
		strings.Contains(stderr, "blocked it in your country"),
		strings.Contains(stderr, "HTTP Error 403"):
		return domain.ErrSourceBlocked
	case strings.Contains(stderr, "Video unavailable"),
		strings.Contains(stderr, "This video is not available"),
		strings.Contains(stderr, "Incomplete YouTube ID"):
		return domain.ErrFakeVideo
	default:
		return nil
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
