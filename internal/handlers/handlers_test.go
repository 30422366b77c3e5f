package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockerbid/bidding-engine/internal/admission"
	"github.com/lockerbid/bidding-engine/internal/bidcheck"
	"github.com/lockerbid/bidding-engine/internal/clock"
	"github.com/lockerbid/bidding-engine/internal/eligibility"
	"github.com/lockerbid/bidding-engine/internal/models"
	"github.com/lockerbid/bidding-engine/internal/store"
)

type stubProvider struct {
	snap models.Eligibility
}

func (s stubProvider) Eligibility(ctx context.Context, bidderID string) (models.Eligibility, error) {
	return s.snap, nil
}

type noopViews struct{}

func (noopViews) PublishView(ctx context.Context, view *models.SessionView) error { return nil }

type noopOutcomes struct{}

func (noopOutcomes) PublishOutcome(ctx context.Context, event *models.OutcomeEvent) error {
	return nil
}

func newTestRouter(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()

	mem := store.NewMemory()
	clk := clock.Clock{Window: 5 * time.Minute, Extension: 5 * time.Minute}
	gate := eligibility.NewGate(stubProvider{snap: models.Eligibility{
		IdentityVerified: true,
		ContactVerified:  true,
		PaymentVerified:  true,
		AddressVerified:  true,
	}})
	validator := bidcheck.New(clk, gate)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	controller := admission.NewController(mem, validator, noopViews{}, noopOutcomes{}, time.Second, log)
	handler := NewHandler(controller, mem, nil, gate, clk, log)

	srv := httptest.NewServer(handler.SetupRoutes())
	t.Cleanup(srv.Close)

	return srv, mem
}

func createItem(t *testing.T, srv *httptest.Server, startingPrice int64, deadline time.Time) models.AuctionItem {
	t.Helper()

	body := map[string]any{
		"title":          "signed match ball",
		"starting_price": startingPrice,
		"deadline":       deadline.Format(time.RFC3339),
	}
	resp := postJSON(t, srv.URL+"/api/v1/items", body)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var item models.AuctionItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&item))
	return item
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func TestCreateAndGetAuctionState(t *testing.T) {
	srv, _ := newTestRouter(t)
	deadline := time.Now().UTC().Add(time.Hour)
	item := createItem(t, srv, 10_000, deadline)

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/items/%s", srv.URL, item.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view models.SessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, item.ID, view.ItemID)
	assert.Equal(t, int64(10_000), view.CurrentBid)
	assert.Equal(t, int64(10_000), view.MinNextBid, "first bid may match the starting price")
	assert.Equal(t, "open", view.Status)
	assert.Positive(t, view.RemainingMS)
}

func TestCreateItemValidation(t *testing.T) {
	srv, _ := newTestRouter(t)

	resp := postJSON(t, srv.URL+"/api/v1/items", map[string]any{"starting_price": 100})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/v1/items", map[string]any{
		"title":          "expired listing",
		"starting_price": 100,
		"deadline":       time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitBidLifecycle(t *testing.T) {
	srv, _ := newTestRouter(t)
	item := createItem(t, srv, 10_000, time.Now().UTC().Add(time.Hour))
	bidURL := fmt.Sprintf("%s/api/v1/items/%s/bids", srv.URL, item.ID)

	// Accepted first bid.
	resp := postJSON(t, bidURL, map[string]any{"bidder_id": "bidder-a", "amount": 10_000})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result models.SubmitResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Accepted)
	assert.Equal(t, int64(11_000), result.MinNextBid)

	// Under the floor: a business outcome, not an HTTP error.
	resp = postJSON(t, bidURL, map[string]any{"bidder_id": "bidder-b", "amount": 10_500})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.False(t, result.Accepted)
	assert.Equal(t, models.RejectBelowMinimum, result.Reason)
	assert.Equal(t, int64(11_000), result.MinNextBid)

	// Missing bidder identity never reaches admission.
	resp = postJSON(t, bidURL, map[string]any{"amount": 11_000})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitBidUnknownItem(t *testing.T) {
	srv, _ := newTestRouter(t)

	resp := postJSON(t, srv.URL+"/api/v1/items/nope/bids", map[string]any{"bidder_id": "b", "amount": 100})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListBids(t *testing.T) {
	srv, _ := newTestRouter(t)
	item := createItem(t, srv, 4_000, time.Now().UTC().Add(time.Hour))
	bidURL := fmt.Sprintf("%s/api/v1/items/%s/bids", srv.URL, item.ID)

	for _, amount := range []int64{4_000, 4_250, 4_100} {
		resp := postJSON(t, bidURL, map[string]any{"bidder_id": "bidder-a", "amount": amount})
		resp.Body.Close()
	}

	resp, err := http.Get(bidURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var accepted []models.Bid
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	assert.Len(t, accepted, 2)

	resp, err = http.Get(bidURL + "?all=1")
	require.NoError(t, err)
	defer resp.Body.Close()

	var all []models.Bid
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	assert.Len(t, all, 3)
}

func TestGetEligibility(t *testing.T) {
	srv, _ := newTestRouter(t)

	resp, err := http.Get(srv.URL + "/api/v1/bidders/bidder-a/eligibility")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Eligible bool `json:"eligible"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.True(t, payload.Eligible)
}
