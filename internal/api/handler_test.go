package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewsync/internal/domain"
	"crewsync/internal/middleware"
)

// Stubs panic on unexpected calls so tests state exactly what they use.

type stubReconciler struct {
	reconcileFn func(ctx context.Context, trigger time.Time) (*domain.ReconciliationReport, error)
	teardownFn  func(ctx context.Context) (int, error)
}

func (s *stubReconciler) Reconcile(ctx context.Context, trigger time.Time) (*domain.ReconciliationReport, error) {
	if s.reconcileFn == nil {
		panic("unexpected Reconcile call")
	}
	return s.reconcileFn(ctx, trigger)
}

func (s *stubReconciler) TeardownAll(ctx context.Context) (int, error) {
	if s.teardownFn == nil {
		panic("unexpected TeardownAll call")
	}
	return s.teardownFn(ctx)
}

type stubTracking struct {
	listAllFn    func(ctx context.Context) ([]domain.TrackedGroup, error)
	getByGroupFn func(ctx context.Context, groupID string) (*domain.TrackedGroup, error)
}

func (s *stubTracking) Upsert(context.Context, *domain.TrackedGroup) error { panic("unexpected") }
func (s *stubTracking) Delete(context.Context, string) error               { panic("unexpected") }
func (s *stubTracking) GetByTrip(context.Context, string) (*domain.TrackedGroup, error) {
	panic("unexpected")
}
func (s *stubTracking) FindActiveCreatedBefore(context.Context, time.Time) ([]domain.TrackedGroup, error) {
	panic("unexpected")
}
func (s *stubTracking) ListAll(ctx context.Context) ([]domain.TrackedGroup, error) {
	if s.listAllFn == nil {
		panic("unexpected ListAll call")
	}
	return s.listAllFn(ctx)
}
func (s *stubTracking) GetByGroup(ctx context.Context, groupID string) (*domain.TrackedGroup, error) {
	if s.getByGroupFn == nil {
		panic("unexpected GetByGroup call")
	}
	return s.getByGroupFn(ctx, groupID)
}

type stubTrips struct {
	getFn    func(ctx context.Context, id string) (*domain.Trip, error)
	upsertFn func(ctx context.Context, trip *domain.Trip) error
}

func (s *stubTrips) Get(ctx context.Context, id string) (*domain.Trip, error) {
	if s.getFn == nil {
		panic("unexpected Get call")
	}
	return s.getFn(ctx, id)
}
func (s *stubTrips) Upsert(ctx context.Context, trip *domain.Trip) error {
	if s.upsertFn == nil {
		panic("unexpected Upsert call")
	}
	return s.upsertFn(ctx, trip)
}

func testHandler(rec Reconciler, store domain.TrackingStore, trips TripStore) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(rec, store, trips, logger)
}

func TestHealthz(t *testing.T) {
	h := testHandler(&stubReconciler{}, &stubTracking{}, &stubTrips{})
	router := h.Routes(nil, RouterConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestReconcile_ExplicitTriggerTime(t *testing.T) {
	want := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	var got time.Time
	rec := &stubReconciler{
		reconcileFn: func(_ context.Context, trigger time.Time) (*domain.ReconciliationReport, error) {
			got = trigger
			return &domain.ReconciliationReport{TriggerTime: trigger, Created: 2}, nil
		},
	}
	h := testHandler(rec, &stubTracking{}, &stubTrips{})
	router := h.Routes(nil, RouterConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost,
		"/v1/reconcile?trigger_time=2026-07-01T12:00:00Z", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, got.Equal(want))

	var report domain.ReconciliationReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 2, report.Created)
}

func TestReconcile_DefaultsTriggerToNow(t *testing.T) {
	var got time.Time
	rec := &stubReconciler{
		reconcileFn: func(_ context.Context, trigger time.Time) (*domain.ReconciliationReport, error) {
			got = trigger
			return &domain.ReconciliationReport{TriggerTime: trigger}, nil
		},
	}
	h := testHandler(rec, &stubTracking{}, &stubTrips{})
	router := h.Routes(nil, RouterConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/reconcile", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.WithinDuration(t, time.Now().UTC(), got, 5*time.Second)
}

func TestReconcile_RejectsBadTriggerTime(t *testing.T) {
	h := testHandler(&stubReconciler{}, &stubTracking{}, &stubTrips{})
	router := h.Routes(nil, RouterConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/reconcile?trigger_time=tomorrow", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReconcile_RequiresTriggerSecret(t *testing.T) {
	rec := &stubReconciler{
		reconcileFn: func(_ context.Context, trigger time.Time) (*domain.ReconciliationReport, error) {
			return &domain.ReconciliationReport{TriggerTime: trigger}, nil
		},
	}
	h := testHandler(rec, &stubTracking{}, &stubTrips{})
	router := h.Routes(nil, RouterConfig{Trigger: middleware.TriggerAuth("hunter2")})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/reconcile", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/reconcile", nil)
	req.Header.Set("X-Trigger-Secret", "hunter2")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListGroups(t *testing.T) {
	archival := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &stubTracking{
		listAllFn: func(context.Context) ([]domain.TrackedGroup, error) {
			return []domain.TrackedGroup{
				{GroupID: "g1", TripID: "TR-1", CreationTime: archival.Add(-time.Hour)},
				{GroupID: "g2", TripID: "TR-2", CreationTime: archival.Add(-time.Hour), ArchivalTime: &archival},
			}, nil
		},
	}
	h := testHandler(&stubReconciler{}, store, &stubTrips{})
	router := h.Routes(nil, RouterConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/tracked-groups", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		TrackedGroups []domain.TrackedGroup `json:"tracked_groups"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.TrackedGroups, 2)
	assert.Equal(t, "g1", body.TrackedGroups[0].GroupID)
	require.NotNil(t, body.TrackedGroups[1].ArchivalTime)
}

func TestListGroups_ActiveFilter(t *testing.T) {
	archival := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &stubTracking{
		listAllFn: func(context.Context) ([]domain.TrackedGroup, error) {
			return []domain.TrackedGroup{
				{GroupID: "g1", TripID: "TR-1"},
				{GroupID: "g2", TripID: "TR-2", ArchivalTime: &archival},
			}, nil
		},
	}
	h := testHandler(&stubReconciler{}, store, &stubTrips{})
	router := h.Routes(nil, RouterConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/tracked-groups?active=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		TrackedGroups []domain.TrackedGroup `json:"tracked_groups"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.TrackedGroups, 1)
	assert.Equal(t, "g1", body.TrackedGroups[0].GroupID)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/tracked-groups?active=banana", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListGroups_EmptyIsArrayNotNull(t *testing.T) {
	store := &stubTracking{
		listAllFn: func(context.Context) ([]domain.TrackedGroup, error) { return nil, nil },
	}
	h := testHandler(&stubReconciler{}, store, &stubTrips{})
	router := h.Routes(nil, RouterConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/tracked-groups", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tracked_groups":[]}`, w.Body.String())
}

func TestGetGroup_NotFound(t *testing.T) {
	store := &stubTracking{
		getByGroupFn: func(_ context.Context, groupID string) (*domain.TrackedGroup, error) {
			return nil, domain.ErrNotFound("group %s not tracked", groupID)
		},
	}
	h := testHandler(&stubReconciler{}, store, &stubTrips{})
	router := h.Routes(nil, RouterConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/tracked-groups/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTrip(t *testing.T) {
	trips := &stubTrips{
		getFn: func(_ context.Context, id string) (*domain.Trip, error) {
			return &domain.Trip{ID: id, DepartureTime: time.Date(2026, 7, 4, 9, 0, 0, 0, time.UTC)}, nil
		},
	}
	h := testHandler(&stubReconciler{}, &stubTracking{}, trips)
	router := h.Routes(nil, RouterConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/trips/TR-9", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var trip domain.Trip
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trip))
	assert.Equal(t, "TR-9", trip.ID)
}

func TestSeedTrip(t *testing.T) {
	var seeded *domain.Trip
	trips := &stubTrips{
		upsertFn: func(_ context.Context, trip *domain.Trip) error {
			seeded = trip
			return nil
		},
	}
	h := testHandler(&stubReconciler{}, &stubTracking{}, trips)
	router := h.Routes(nil, RouterConfig{DevEndpoints: true})

	body := `{
		"id": "TR-1",
		"departure_time": "2026-07-04T09:00:00Z",
		"flights": [{"flight_number":"101","origin":"JFK","destination":"LHR"}],
		"crew": [{"principal_name":"alice@example.com"}]
	}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/trips", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, seeded)
	assert.Equal(t, "TR-1", seeded.ID)
	assert.Len(t, seeded.Crew, 1)
}

func TestSeedTrip_DisabledWithoutDevEndpoints(t *testing.T) {
	h := testHandler(&stubReconciler{}, &stubTracking{}, &stubTrips{})
	router := h.Routes(nil, RouterConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/trips", strings.NewReader("{}")))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTeardown(t *testing.T) {
	rec := &stubReconciler{
		teardownFn: func(context.Context) (int, error) { return 3, nil },
	}
	h := testHandler(rec, &stubTracking{}, &stubTrips{})
	router := h.Routes(nil, RouterConfig{DevEndpoints: true})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/teardown", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":3}`, w.Body.String())
}
