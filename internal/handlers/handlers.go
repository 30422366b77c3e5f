// Package handlers exposes the bidding engine over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/lockerbid/bidding-engine/internal/admission"
	"github.com/lockerbid/bidding-engine/internal/clock"
	"github.com/lockerbid/bidding-engine/internal/eligibility"
	"github.com/lockerbid/bidding-engine/internal/models"
	"github.com/lockerbid/bidding-engine/internal/session"
	"github.com/lockerbid/bidding-engine/internal/store"
)

// ViewReader reads cached session views. A nil reader or a cache miss
// falls back to the authoritative store.
type ViewReader interface {
	GetView(ctx context.Context, itemID string) (*models.SessionView, error)
}

// Handler contains the HTTP request handlers.
type Handler struct {
	controller *admission.Controller
	store      store.Store
	views      ViewReader
	gate       *eligibility.Gate
	clk        clock.Clock
	validate   *validator.Validate
	log        logrus.FieldLogger
}

// NewHandler creates the HTTP handler set.
func NewHandler(controller *admission.Controller, st store.Store, views ViewReader, gate *eligibility.Gate, clk clock.Clock, log logrus.FieldLogger) *Handler {
	return &Handler{
		controller: controller,
		store:      st,
		views:      views,
		gate:       gate,
		clk:        clk,
		validate:   validator.New(),
		log:        log,
	}
}

// SetupRoutes configures all HTTP routes.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/items", h.CreateItem).Methods("POST")
	api.HandleFunc("/items/{id}", h.GetAuctionState).Methods("GET")
	api.HandleFunc("/items/{id}/bids", h.ListBids).Methods("GET")
	api.HandleFunc("/items/{id}/bids", h.SubmitBid).Methods("POST")
	api.HandleFunc("/bidders/{id}/eligibility", h.GetEligibility).Methods("GET")

	router.Use(h.loggingMiddleware)
	router.Use(corsMiddleware)

	return router
}

// HealthCheck returns service health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "api-server",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateItemRequest lists an item for bidding.
type CreateItemRequest struct {
	Title         string    `json:"title" validate:"required"`
	Description   string    `json:"description"`
	StartingPrice int64     `json:"starting_price" validate:"required,gt=0"`
	Deadline      time.Time `json:"deadline" validate:"required"`
}

// CreateItem lists a new item for bidding.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	if !req.Deadline.After(now) {
		respondError(w, http.StatusBadRequest, "Deadline must be in the future")
		return
	}

	item := &models.AuctionItem{
		ID:            uuid.New().String(),
		Title:         req.Title,
		Description:   req.Description,
		StartingPrice: req.StartingPrice,
		CurrentBid:    req.StartingPrice,
		Deadline:      req.Deadline.UTC(),
		Status:        models.ItemStatusOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.store.CreateItem(r.Context(), item); err != nil {
		h.log.WithError(err).Error("failed to create item")
		respondError(w, http.StatusServiceUnavailable, "Failed to create item")
		return
	}

	respondJSON(w, http.StatusCreated, item)
}

// GetAuctionState returns the session view for an item. The cached
// snapshot is preferred; remaining time and phase are recomputed from
// the deadline at read time so the countdown is always current.
func (h *Handler) GetAuctionState(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	now := time.Now().UTC()

	if h.views != nil {
		if view, err := h.views.GetView(r.Context(), itemID); err == nil {
			h.refreshDerived(view, now)
			respondJSON(w, http.StatusOK, view)
			return
		} else if !errors.Is(err, session.ErrViewNotCached) {
			h.log.WithError(err).WithField("item_id", itemID).Warn("session view cache unavailable")
		}
	}

	item, err := h.store.GetItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			respondError(w, http.StatusNotFound, "Item not found")
			return
		}
		h.log.WithError(err).WithField("item_id", itemID).Error("failed to get item")
		respondError(w, http.StatusServiceUnavailable, "Failed to retrieve item")
		return
	}

	respondJSON(w, http.StatusOK, session.ViewOf(item, h.clk, now))
}

func (h *Handler) refreshDerived(view *models.SessionView, now time.Time) {
	if view.Status == string(clock.PhaseFinished) {
		view.RemainingMS = 0
		return
	}
	view.Status = string(h.clk.Phase(view.Deadline, now))
	view.RemainingMS = 0
	if remaining, ok := h.clk.Remaining(view.Deadline, now); ok {
		view.RemainingMS = remaining.Milliseconds()
	}
}

// SubmitBidRequest is the bid submission payload. Amount is deliberately
// not range-checked here: a malformed amount is a business outcome
// (invalid_amount) adjudicated and audited by admission, not a 400.
type SubmitBidRequest struct {
	BidderID string `json:"bidder_id" validate:"required"`
	Amount   int64  `json:"amount"`
}

// SubmitBid handles bid placement.
func (h *Handler) SubmitBid(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]

	var req SubmitBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.controller.Submit(r.Context(), itemID, req.BidderID, req.Amount)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			respondError(w, http.StatusNotFound, "Item not found")
			return
		}
		// Lock wait timeouts, store failures, and verification
		// outages are all retryable; the client must re-read state
		// first since the floor may have moved.
		h.log.WithError(err).WithFields(logrus.Fields{
			"item_id":   itemID,
			"bidder_id": req.BidderID,
		}).Warn("bid submission failed transiently")
		respondError(w, http.StatusServiceUnavailable, "Submission failed, retry with fresh state")
		return
	}

	status := http.StatusOK
	if result.Accepted {
		status = http.StatusCreated
	}
	respondJSON(w, status, result)
}

// ListBids returns an item's bid history, newest first. Rejected bids
// are included with ?all=1.
func (h *Handler) ListBids(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	includeRejected := r.URL.Query().Get("all") == "1"

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	if _, err := h.store.GetItem(r.Context(), itemID); err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			respondError(w, http.StatusNotFound, "Item not found")
			return
		}
		respondError(w, http.StatusServiceUnavailable, "Failed to retrieve item")
		return
	}

	bids, err := h.store.ListBids(r.Context(), itemID, includeRejected, limit)
	if err != nil {
		h.log.WithError(err).WithField("item_id", itemID).Error("failed to list bids")
		respondError(w, http.StatusServiceUnavailable, "Failed to retrieve bids")
		return
	}
	if bids == nil {
		bids = []*models.Bid{}
	}

	respondJSON(w, http.StatusOK, bids)
}

// GetEligibility proxies the bidder's verification snapshot.
func (h *Handler) GetEligibility(w http.ResponseWriter, r *http.Request) {
	bidderID := mux.Vars(r)["id"]

	snap, eligible, err := h.gate.Check(r.Context(), bidderID)
	if err != nil {
		h.log.WithError(err).WithField("bidder_id", bidderID).Warn("eligibility lookup failed")
		respondError(w, http.StatusServiceUnavailable, "Verification service unavailable")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"eligibility": snap,
		"eligible":    eligible,
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// loggingMiddleware logs all HTTP requests.
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		h.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.RequestURI,
			"duration": time.Since(start).String(),
		}).Info("request handled")
	})
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
