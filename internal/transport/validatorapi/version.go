package validatorapi

import (
	"context"
	"fmt"
)

// VersionChecker reports whether the running build matches the latest
// released version announced by the API.
type VersionChecker struct {
	client  *Client
	current string
}

// NewVersionChecker creates a checker for the given build version.
func NewVersionChecker(client *Client, current string) *VersionChecker {
	return &VersionChecker{client: client, current: current}
}

// IsLatest implements the round loop's version source. Dev builds are always
// considered latest so local runs never restart-loop.
func (v *VersionChecker) IsLatest(ctx context.Context) (bool, error) {
	if v.current == "" || v.current == "dev" {
		return true, nil
	}
	latest, err := v.client.LatestVersion(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch latest version: %w", err)
	}
	return latest == "" || latest == v.current, nil
}
