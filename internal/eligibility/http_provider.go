package eligibility

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lockerbid/bidding-engine/internal/models"
)

// HTTPProvider consumes the verification service's REST API.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates a provider for the verification service at
// baseURL, e.g. "http://verification:8090".
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Eligibility fetches GET {base}/bidders/{id}/verification.
func (p *HTTPProvider) Eligibility(ctx context.Context, bidderID string) (models.Eligibility, error) {
	endpoint := fmt.Sprintf("%s/bidders/%s/verification", p.baseURL, url.PathEscape(bidderID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Eligibility{}, fmt.Errorf("build verification request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return models.Eligibility{}, fmt.Errorf("call verification service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Eligibility{}, fmt.Errorf("verification service returned %d for bidder %s", resp.StatusCode, bidderID)
	}

	var snap models.Eligibility
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return models.Eligibility{}, fmt.Errorf("decode verification response: %w", err)
	}
	snap.BidderID = bidderID

	return snap, nil
}
