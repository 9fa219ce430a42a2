// Package ledger talks to the chain gateway: registered module discovery and
// weight voting.
package ledger

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
	"github.com/omegavid/validator/internal/usecase/weights"
)

// Client is an HTTP client for the chain gateway.
type Client struct {
	baseURL string
	signer  *identity.Signer
	http    *http.Client
	logger  *zap.Logger
}

// Config holds ledger client settings.
type Config struct {
	BaseURL string
	Signer  *identity.Signer
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a ledger client.
func NewClient(cfg *Config) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		signer:  cfg.Signer,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

type moduleDTO struct {
	UID     int    `json:"uid"`
	Key     string `json:"key"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// RegisteredModules returns all modules registered on the subnet.
func (c *Client) RegisteredModules(ctx context.Context, netuid int) ([]domain.Miner, error) {
	url := fmt.Sprintf("%s/modules?netuid=%d", c.baseURL, netuid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch modules: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("modules request returned %d: %s", resp.StatusCode, detail)
	}

	var dtos []moduleDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, fmt.Errorf("decode modules: %w", err)
	}

	miners := make([]domain.Miner, len(dtos))
	for i, d := range dtos {
		miners[i] = domain.Miner{UID: d.UID, Key: d.Key, Name: d.Name, Address: d.Address}
	}
	return miners, nil
}

type voteRequest struct {
	Netuid    int    `json:"netuid"`
	UIDs      []int  `json:"uids"`
	Weights   []int  `json:"weights"`
	Key       string `json:"key"`
	Signature string `json:"signature"`
}

// Vote submits the weight allocation for the subnet. The signature covers the
// serialized uid and weight arrays.
func (c *Client) Vote(ctx context.Context, netuid int, allocation []weights.Weight) error {
	uids := make([]int, len(allocation))
	ws := make([]int, len(allocation))
	for i, w := range allocation {
		uids[i] = w.UID
		ws[i] = w.Weight
	}

	unsigned, err := json.Marshal(map[string]any{"netuid": netuid, "uids": uids, "weights": ws})
	if err != nil {
		return fmt.Errorf("marshal vote: %w", err)
	}

	payload, err := json.Marshal(voteRequest{
		Netuid:    netuid,
		UIDs:      uids,
		Weights:   ws,
		Key:       c.signer.Key(),
		Signature: c.signer.Sign(unsigned),
	})
	if err != nil {
		return fmt.Errorf("marshal vote request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/vote", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("submit vote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("vote returned %d: %s", resp.StatusCode, detail)
	}
	c.logger.Info("Vote accepted by ledger", zap.Int("entries", len(allocation)))
	return nil
}
