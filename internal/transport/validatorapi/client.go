// Package validatorapi is the HTTP client for the subnet owner API: round
// topics, the cross-submission novelty index, audit proxies and metadata
// upload.
package validatorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/omegavid/validator/internal/domain"
	"github.com/omegavid/validator/internal/identity"
)

// Client calls the subnet owner API. Requests are authenticated with the
// validator key and its signature as HTTP basic auth.
type Client struct {
	baseURL string
	signer  *identity.Signer
	http    *http.Client
	logger  *zap.Logger
}

// Config holds validator API client settings.
type Config struct {
	BaseURL string
	Signer  *identity.Signer
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a validator API client.
func NewClient(cfg *Config) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		signer:  cfg.Signer,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	key := c.signer.Key()
	req.SetBasicAuth(key, c.signer.Sign([]byte(key)))
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s returned %d: %s", req.Method, req.URL.Path, resp.StatusCode, detail)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// GetTopic returns a random topic for the next round.
func (c *Client) GetTopic(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/topic", nil)
	if err != nil {
		return "", err
	}
	var topic string
	if err := c.do(req, &topic); err != nil {
		return "", err
	}
	if topic == "" {
		return "", fmt.Errorf("empty topic from api")
	}
	return topic, nil
}

// GetNoveltyScores returns one cross-submission novelty score per item sent.
func (c *Client) GetNoveltyScores(ctx context.Context, items []domain.VideoMetadata) ([]float64, error) {
	payload, err := json.Marshal(map[string]any{"metadata": items})
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/get_pinecone_novelty", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	var scores []float64
	if err := c.do(req, &scores); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoveltyUnavailable, err)
	}
	return scores, nil
}

// GetProxyURL returns a proxy for audit downloads, or an error when none is
// available.
func (c *Client) GetProxyURL(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/get_proxy_url", nil)
	if err != nil {
		return "", err
	}
	var proxyURL string
	if err := c.do(req, &proxyURL); err != nil {
		return "", err
	}
	return proxyURL, nil
}

type uploadRequest struct {
	Metadata             []domain.VideoMetadata `json:"metadata"`
	DescriptionRelevance []float64              `json:"description_relevance_scores"`
	QueryRelevance       []float64              `json:"query_relevance_scores"`
	TopicQuery           string                 `json:"topic_query"`
}

// UploadMetadata persists scored metadata and relevance arrays. Best effort;
// callers log failures and move on.
func (c *Client) UploadMetadata(
	ctx context.Context,
	items []domain.VideoMetadata,
	descriptionRelevance, queryRelevance []float64,
	query string,
) error {
	payload, err := json.Marshal(uploadRequest{
		Metadata:             items,
		DescriptionRelevance: descriptionRelevance,
		QueryRelevance:       queryRelevance,
		TopicQuery:           query,
	})
	if err != nil {
		return fmt.Errorf("marshal upload: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/upload_video_metadata", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// LatestVersion returns the latest released validator version string.
func (c *Client) LatestVersion(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/latest_version", nil)
	if err != nil {
		return "", err
	}
	var v string
	if err := c.do(req, &v); err != nil {
		return "", err
	}
	return v, nil
}
