// Package miner dispatches round requests to miner modules over HTTP.
package miner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/omegavid/validator/internal/domain"
	"github.com/omegavid/validator/internal/identity"
)

// Client calls miner generate endpoints. Per-call deadlines come from the
// caller's context; the underlying HTTP client carries no timeout of its own.
type Client struct {
	signer *identity.Signer
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a miner client.
func NewClient(signer *identity.Signer, logger *zap.Logger) *Client {
	return &Client{
		signer: signer,
		http:   &http.Client{},
		logger: logger,
	}
}

// Generate asks one miner to produce a submission for the round query.
func (c *Client) Generate(ctx context.Context, m domain.Miner, vreq domain.VideoRequest) (*domain.Submission, error) {
	payload, err := json.Marshal(vreq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("http://%s/method/generate", m.Address)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.signHeaders(req, payload)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("miner %d: %w", m.UID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("miner %d returned %d: %s", m.UID, resp.StatusCode, detail)
	}

	var sub domain.Submission
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return nil, fmt.Errorf("miner %d: decode submission: %w", m.UID, err)
	}
	return &sub, nil
}

// signHeaders attaches the validator identity so miners can verify the
// request origin. The signature covers the body and the timestamp.
func (c *Client) signHeaders(req *http.Request, payload []byte) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	msg := append(append([]byte{}, payload...), []byte(ts)...)
	req.Header.Set("X-Key", c.signer.Key())
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", c.signer.Sign(msg))
}
