// Package api provides the HTTP handlers for the reconciliation service:
// trigger and teardown endpoints, the read-only tracking dashboard, and the
// delegated-mode OAuth login flow.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"crewsync/internal/domain"
)

// Reconciler is the engine surface the handlers need.
type Reconciler interface {
	Reconcile(ctx context.Context, trigger time.Time) (*domain.ReconciliationReport, error)
	TeardownAll(ctx context.Context) (int, error)
}

// TripStore combines trip reads with the dev-only seeding write.
type TripStore interface {
	Get(ctx context.Context, id string) (*domain.Trip, error)
	Upsert(ctx context.Context, trip *domain.Trip) error
}

// Handler serves the service's REST endpoints.
type Handler struct {
	reconciler Reconciler
	store      domain.TrackingStore
	trips      TripStore
	logger     *slog.Logger
}

// NewHandler creates a Handler with its service dependencies.
func NewHandler(reconciler Reconciler, store domain.TrackingStore, trips TripStore, logger *slog.Logger) *Handler {
	return &Handler{
		reconciler: reconciler,
		store:      store,
		trips:      trips,
		logger:     logger.With("component", "api"),
	}
}

// RouterConfig selects which route groups are exposed and how they are
// guarded.
type RouterConfig struct {
	// Auth wraps the dashboard routes; nil leaves them open (dev mode).
	Auth func(http.Handler) http.Handler
	// Trigger wraps the reconcile/teardown trigger routes.
	Trigger func(http.Handler) http.Handler
	// DevEndpoints exposes the trip seeding and teardown endpoints.
	DevEndpoints bool
}

// Routes mounts the handler onto a fresh chi router.
func (h *Handler) Routes(oauth *OAuthHandler, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", h.handleHealth)

	if oauth != nil {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/login", oauth.handleLogin)
			r.Get("/callback", oauth.handleCallback)
			r.Get("/consent", oauth.handleConsent)
		})
	}

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.Trigger != nil {
				r.Use(cfg.Trigger)
			}
			r.Post("/reconcile", h.handleReconcile)
			if cfg.DevEndpoints {
				r.Post("/teardown", h.handleTeardown)
				r.Post("/trips", h.handleSeedTrip)
			}
		})

		r.Group(func(r chi.Router) {
			if cfg.Auth != nil {
				r.Use(cfg.Auth)
			}
			r.Get("/tracked-groups", h.handleListGroups)
			r.Get("/tracked-groups/{groupID}", h.handleGetGroup)
			r.Get("/trips/{tripID}", h.handleGetTrip)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReconcile runs one reconciliation cycle. The trigger time defaults
// to now and can be overridden with ?trigger_time=RFC3339 for replaying and
// testing specific windows.
func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	trigger := time.Now().UTC()
	if raw := r.URL.Query().Get("trigger_time"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeErrorCode(w, http.StatusBadRequest, "trigger_time must be RFC3339")
			return
		}
		trigger = parsed.UTC()
	}

	report, err := h.reconciler.Reconcile(r.Context(), trigger)
	if err != nil {
		h.logger.Error("reconciliation failed", "trigger_time", trigger, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleTeardown(w http.ResponseWriter, r *http.Request) {
	removed, err := h.reconciler.TeardownAll(r.Context())
	if err != nil {
		h.logger.Error("teardown failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// handleListGroups returns all tracking records, optionally filtered with
// ?active=true|false.
func (h *Handler) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.store.ListAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	if raw := r.URL.Query().Get("active"); raw != "" {
		wantActive, err := strconv.ParseBool(raw)
		if err != nil {
			writeErrorCode(w, http.StatusBadRequest, "active must be true or false")
			return
		}
		filtered := make([]domain.TrackedGroup, 0, len(groups))
		for _, g := range groups {
			if g.Active() == wantActive {
				filtered = append(filtered, g)
			}
		}
		groups = filtered
	}

	if groups == nil {
		groups = []domain.TrackedGroup{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracked_groups": groups})
}

func (h *Handler) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.store.GetByGroup(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h *Handler) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := h.trips.Get(r.Context(), chi.URLParam(r, "tripID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// handleSeedTrip upserts a trip record. Dev environments only; production
// deployments read trips from the operational feed instead.
func (h *Handler) handleSeedTrip(w http.ResponseWriter, r *http.Request) {
	var trip domain.Trip
	if err := json.NewDecoder(r.Body).Decode(&trip); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid trip body: "+err.Error())
		return
	}
	if err := h.trips.Upsert(r.Context(), &trip); err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("trip seeded", "trip_id", trip.ID, "departure_time", trip.DepartureTime)
	writeJSON(w, http.StatusCreated, trip)
}
