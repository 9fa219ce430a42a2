// Package encoder calls the multimodal encoding service that recomputes
// video, audio and description embeddings for a downloaded clip.
package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/omegavid/validator/internal/domain"
	"github.com/omegavid/validator/internal/metrics"
)

// Client is an HTTP client for the clip encoder service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// Config holds encoder client settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates an encoder client.
func NewClient(cfg *Config) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

type embedResponse struct {
	VideoEmb       []float32 `json:"video_emb"`
	AudioEmb       []float32 `json:"audio_emb"`
	DescriptionEmb []float32 `json:"description_emb"`
}

// EmbedMedia implements domain.MediaEncoder. The clip is uploaded as
// multipart form data together with the claimed description.
func (c *Client) EmbedMedia(ctx context.Context, description string, media domain.MediaFile) (domain.ClipEmbeddings, error) {
	file, err := os.Open(media.Path)
	if err != nil {
		return domain.ClipEmbeddings{}, fmt.Errorf("open clip: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("video", filepath.Base(media.Path))
	if err != nil {
		return domain.ClipEmbeddings{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return domain.ClipEmbeddings{}, fmt.Errorf("copy clip into form: %w", err)
	}
	if err := form.WriteField("description", description); err != nil {
		return domain.ClipEmbeddings{}, fmt.Errorf("write description field: %w", err)
	}
	if err := form.Close(); err != nil {
		return domain.ClipEmbeddings{}, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", &body)
	if err != nil {
		return domain.ClipEmbeddings{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("encoder", "media", "error").Inc()
		return domain.ClipEmbeddings{}, fmt.Errorf("encoder request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.EmbeddingRequestsTotal.WithLabelValues("encoder", "media", "error").Inc()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.ClipEmbeddings{}, fmt.Errorf("encoder returned %d: %s: %w",
			resp.StatusCode, detail, domain.ErrEmbeddingProviderError)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("encoder", "media", "error").Inc()
		return domain.ClipEmbeddings{}, fmt.Errorf("decode encoder response: %w", err)
	}
	if len(parsed.VideoEmb) == 0 || len(parsed.AudioEmb) == 0 || len(parsed.DescriptionEmb) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues("encoder", "media", "error").Inc()
		return domain.ClipEmbeddings{}, fmt.Errorf("incomplete encoder response: %w", domain.ErrEmbeddingProviderError)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("encoder", "media", "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues("encoder", "media").Observe(time.Since(start).Seconds())

	return domain.ClipEmbeddings{
		Video:       parsed.VideoEmb,
		Audio:       parsed.AudioEmb,
		Description: parsed.DescriptionEmb,
	}, nil
}

// HealthCheck verifies encoder availability.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("encoder health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("encoder health check returned %d", resp.StatusCode)
	}
	return nil
}
