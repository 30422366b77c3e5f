package eligibility

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockerbid/bidding-engine/internal/models"
)

type stubProvider struct {
	snap models.Eligibility
	err  error
}

func (s stubProvider) Eligibility(ctx context.Context, bidderID string) (models.Eligibility, error) {
	return s.snap, s.err
}

func TestGateRequiresAllFourSteps(t *testing.T) {
	full := models.Eligibility{
		IdentityVerified: true,
		ContactVerified:  true,
		PaymentVerified:  true,
		AddressVerified:  true,
	}

	gate := NewGate(stubProvider{snap: full})
	_, ok, err := gate.Check(context.Background(), "bidder-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Dropping any single step makes the bidder ineligible.
	for i := 0; i < 4; i++ {
		partial := full
		switch i {
		case 0:
			partial.IdentityVerified = false
		case 1:
			partial.ContactVerified = false
		case 2:
			partial.PaymentVerified = false
		case 3:
			partial.AddressVerified = false
		}

		gate := NewGate(stubProvider{snap: partial})
		_, ok, err := gate.Check(context.Background(), "bidder-1")
		require.NoError(t, err)
		assert.False(t, ok, "step %d missing", i+1)
	}
}

func TestGateProviderErrorIsNotIneligibility(t *testing.T) {
	gate := NewGate(stubProvider{err: errors.New("connection refused")})

	_, ok, err := gate.Check(context.Background(), "bidder-1")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestHTTPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bidders/bidder-7/verification", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"identity_verified":true,"contact_verified":true,"payment_verified":false,"address_verified":true}`)
	}))
	defer srv.Close()

	provider := NewHTTPProvider(srv.URL, time.Second)
	snap, err := provider.Eligibility(context.Background(), "bidder-7")
	require.NoError(t, err)

	assert.Equal(t, "bidder-7", snap.BidderID)
	assert.True(t, snap.IdentityVerified)
	assert.False(t, snap.PaymentVerified)
	assert.False(t, snap.Complete())
}

func TestHTTPProviderNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	provider := NewHTTPProvider(srv.URL, time.Second)
	_, err := provider.Eligibility(context.Background(), "bidder-7")
	assert.Error(t, err)
}
