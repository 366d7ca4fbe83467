/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Period lifecycle over HTTP (register, allocate, distribute, claim)
- Error mapping (400/401/403/404/409)
- Energy, ownership and maintenance routes
- JWT authentication
- Recovery scheduler sweep
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/solar-credits/api"
	"github.com/warp/solar-credits/auth"
	"github.com/warp/solar-credits/calendar"
	"github.com/warp/solar-credits/credit"
	"github.com/warp/solar-credits/credit/store"
	"github.com/warp/solar-credits/energy"
	"github.com/warp/solar-credits/maintenance"
	"github.com/warp/solar-credits/ownership"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const admin = "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"

var july1 = time.Date(2023, time.July, 1, 9, 0, 0, 0, time.UTC)

type testServer struct {
	router    *chi.Mux
	services  api.Services
	clock     *calendar.FixedClock
	scheduler *api.RecoveryScheduler
}

func newTestServer(t *testing.T, secret []byte) *testServer {
	t.Helper()
	clock := calendar.NewFixedClock(july1)
	credits := store.NewMemory()
	registry := ownership.NewRegistry(ownership.NewMemoryStore(), admin, nil)
	ledger := energy.NewLedger(energy.NewMemoryStore(), clock, nil)

	opts := []credit.Option{
		credit.WithClock(clock),
		credit.WithAuthorizer(credit.OwnerAuthorizer{ContractOwner: admin}),
	}
	periods := credit.NewPeriods(credits, ledger, opts...)
	finalizer := credit.NewFinalizer(credits, periods, opts...)
	services := api.Services{
		Periods:   periods,
		Engine:    credit.NewEngine(credits, registry, opts...),
		Finalizer: finalizer,
		Ledger:    ledger,
		Registry:  registry,
		Fund:      maintenance.NewFund(maintenance.NewTxMemory(), admin, clock, nil),
	}
	h := api.NewHandler(services, clock, nil)
	return &testServer{
		router:    api.NewRouter(h, api.RouterConfig{JWTSecret: secret, Scenarios: true}),
		services:  services,
		clock:     clock,
		scheduler: api.NewRecoveryScheduler(finalizer, admin, clock, nil),
	}
}

// do sends a request as caller (X-Caller header) and returns the recorder.
func (s *testServer) do(t *testing.T, method, path, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(auth.DevCallerHeader, caller)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func (s *testServer) registerJune(t *testing.T, credits int64) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/periods", admin, api.RegisterPeriodRequest{
		ID:           1,
		StartDate:    "2023-06-01",
		EndDate:      "20230630",
		TotalEnergy:  ptr(int64(750000)),
		TotalCredits: credits,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func ptr[T any](v T) *T { return &v }

// =============================================================================
// PERIOD LIFECYCLE
// =============================================================================

func TestPeriodLifecycle(t *testing.T) {
	// GIVEN: a registered June period with 100000 credits
	s := newTestServer(t, nil)
	s.registerJune(t, 100000)

	// WHEN: alice gets 25%, bob asks for more than what is left
	rec := s.do(t, http.MethodPost, "/api/periods/1/allocations", admin,
		api.AllocateRequest{OwnerID: "alice", OwnershipPercentage: ptr(25)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(25000), decodeBody[api.AllocateResponse](t, rec).Credits["alice"])

	rec = s.do(t, http.MethodPost, "/api/periods/1/allocations", admin,
		api.AllocateRequest{OwnerID: "bob", OwnershipPercentage: ptr(80)})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// THEN: claims are refused until distribution
	rec = s.do(t, http.MethodPost, "/api/periods/1/claim", "alice", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/periods/1/distribute", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	period := decodeBody[api.PeriodDTO](t, rec)
	assert.Equal(t, "distributed", period.Status)
	assert.Equal(t, uint64(credit.MarkerAt(july1)), period.DistributionDate)

	// THEN: allocations are locked
	rec = s.do(t, http.MethodPost, "/api/periods/1/allocations", admin,
		api.AllocateRequest{OwnerID: "bob", OwnershipPercentage: ptr(10)})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// THEN: only alice may claim her credits, once
	rec = s.do(t, http.MethodPost, "/api/periods/1/claim", "bob", api.ClaimRequest{OwnerID: "alice"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/periods/1/claim", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(25000), decodeBody[api.ClaimResponse](t, rec).Credits)

	rec = s.do(t, http.MethodPost, "/api/periods/1/claim", "alice", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/periods/1/summary", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeBody[api.SummaryDTO](t, rec)
	assert.Equal(t, int64(25000), summary.ClaimedCredits)
	assert.Equal(t, int64(75000), summary.Unallocated)
	assert.Equal(t, 1, summary.Claims)

	rec = s.do(t, http.MethodGet, "/api/periods/1/allocations/alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	alloc := decodeBody[api.AllocationDTO](t, rec)
	assert.True(t, alloc.Claimed)
	assert.Equal(t, uint64(credit.MarkerAt(july1)), alloc.ClaimDate)
}

func TestPeriodErrors(t *testing.T) {
	s := newTestServer(t, nil)
	s.registerJune(t, 100000)

	tests := []struct {
		name   string
		method string
		path   string
		caller string
		body   any
		want   int
	}{
		{"unknown period", http.MethodGet, "/api/periods/9", "", nil, http.StatusNotFound},
		{"bad period id", http.MethodGet, "/api/periods/abc", "", nil, http.StatusBadRequest},
		{"anonymous mutation", http.MethodPost, "/api/periods/1/finalize", "", nil, http.StatusUnauthorized},
		{"non-owner finalize", http.MethodPost, "/api/periods/1/finalize", "alice", nil, http.StatusForbidden},
		{"duplicate id", http.MethodPost, "/api/periods", admin,
			api.RegisterPeriodRequest{ID: 1, StartDate: "2023-07-01", EndDate: "2023-07-31"}, http.StatusConflict},
		{"reversed range", http.MethodPost, "/api/periods", admin,
			api.RegisterPeriodRequest{StartDate: "2023-07-31", EndDate: "2023-07-01"}, http.StatusBadRequest},
		{"bad date", http.MethodPost, "/api/periods", admin,
			api.RegisterPeriodRequest{StartDate: "2023-02-30", EndDate: "2023-03-01"}, http.StatusBadRequest},
		{"percentage above 100", http.MethodPost, "/api/periods/1/allocations", admin,
			api.AllocateRequest{OwnerID: "alice", OwnershipPercentage: ptr(101)}, http.StatusBadRequest},
		{"mark distributed while open", http.MethodPost, "/api/periods/1/mark-distributed", admin, nil, http.StatusConflict},
		{"missing allocation", http.MethodGet, "/api/periods/1/allocations/zoe", "", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.caller, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			if rec.Code >= 400 {
				assert.NotEmpty(t, decodeBody[api.ErrorResponse](t, rec).Error)
			}
		})
	}
}

func TestRegisterFromEnergy(t *testing.T) {
	// GIVEN: thirty sunny days on panel 1
	s := newTestServer(t, nil)
	for d := calendar.Date(20230601); d <= 20230630; d = d.AddDays(1) {
		rec := s.do(t, http.MethodPost, "/api/panels/1/production", admin,
			api.RecordProductionRequest{Date: d.String(), Energy: 25000, Weather: "sunny"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	// WHEN: the period is registered from the ledger
	rec := s.do(t, http.MethodPost, "/api/periods", admin, api.RegisterPeriodRequest{
		StartDate:    "2023-06-01",
		EndDate:      "2023-06-30",
		TotalCredits: 1000,
		Panels:       []uint64{1},
	})

	// THEN
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decodeBody[api.PeriodDTO](t, rec)
	assert.Equal(t, uint64(1), p.ID)
	assert.Equal(t, int64(750000), p.TotalEnergy)
	assert.Equal(t, "open", p.Status)
}

// =============================================================================
// OWNERSHIP + REGISTRY ALLOCATION
// =============================================================================

func TestOwnershipAndRegistryAllocation(t *testing.T) {
	s := newTestServer(t, nil)
	s.registerJune(t, 100000)

	// GIVEN: an ownership table set by the admin
	table := []api.ShareDTO{{OwnerID: "alice", Percentage: 60}, {OwnerID: "bob", Percentage: 40}}
	rec := s.do(t, http.MethodPut, "/api/ownership", "alice", table)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodPut, "/api/ownership", admin, []api.ShareDTO{{OwnerID: "alice", Percentage: 60}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPut, "/api/ownership", admin, table)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/ownership/transfer", admin,
		api.TransferRequest{From: "alice", To: "carol", Percentage: 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/ownership/carol", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, decodeBody[api.ShareDTO](t, rec).Percentage)

	// WHEN: alice is allocated without an explicit percentage
	rec = s.do(t, http.MethodPost, "/api/periods/1/allocations", admin, api.AllocateRequest{OwnerID: "alice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(50000), decodeBody[api.AllocateResponse](t, rec).Credits["alice"])

	// WHEN: everyone else follows from the registry
	rec = s.do(t, http.MethodPost, "/api/periods/1/allocations/registry", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[api.AllocateResponse](t, rec).Credits

	// THEN
	assert.Equal(t, map[string]int64{"alice": 50000, "bob": 40000, "carol": 10000}, got)

	rec = s.do(t, http.MethodGet, "/api/periods/1/allocations", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]api.AllocationDTO](t, rec), 3)

	rec = s.do(t, http.MethodPost, "/api/periods/1/allocations", admin, api.AllocateRequest{OwnerID: "zoe"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegistryAllocationIsAllOrNothing(t *testing.T) {
	// GIVEN: dave holds 30% outside a 50/50 ownership table
	s := newTestServer(t, nil)
	s.registerJune(t, 100000)
	rec := s.do(t, http.MethodPost, "/api/periods/1/allocations", admin,
		api.AllocateRequest{OwnerID: "dave", OwnershipPercentage: ptr(30)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPut, "/api/ownership", admin,
		[]api.ShareDTO{{OwnerID: "alice", Percentage: 50}, {OwnerID: "bob", Percentage: 50}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN
	rec = s.do(t, http.MethodPost, "/api/periods/1/allocations/registry", admin, nil)

	// THEN: rejected, and alice's share was not kept
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/periods/1/summary", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, decodeBody[api.SummaryDTO](t, rec).AllocatedPercentage)
	rec = s.do(t, http.MethodGet, "/api/periods/1/allocations", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]api.AllocationDTO](t, rec), 1)
}

// =============================================================================
// ENERGY
// =============================================================================

func TestEnergyRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/panels/1/production", "meter-1",
		api.RecordProductionRequest{Date: "2023-06-01", Energy: 25000, Weather: "sunny"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "meter-1", decodeBody[api.ReadingDTO](t, rec).RecordedBy)

	rec = s.do(t, http.MethodPost, "/api/panels/1/production", "meter-1",
		api.RecordProductionRequest{Date: "2023-06-01", Energy: 1, Weather: "rainy"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/panels/1/production", "meter-1",
		api.RecordProductionRequest{Date: "2023-06-02", Energy: 1, Weather: "hail"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/panels/1/production", "meter-1",
		api.RecordProductionRequest{Date: "2023-06-02", Energy: -1, Weather: "cloudy"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/panels/1/production/20230601", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sunny", decodeBody[api.ReadingDTO](t, rec).Weather)

	rec = s.do(t, http.MethodGet, "/api/panels/1/production/2023-06-05", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/panels/1/monthly/2023/6", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	monthly := decodeBody[api.MonthlyTotalDTO](t, rec)
	assert.Equal(t, int64(25000), monthly.TotalEnergy)
	assert.Equal(t, 1, monthly.DaysReported)

	rec = s.do(t, http.MethodGet, "/api/panels/1/monthly/2023/13", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/panels/1/annual/2023", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[api.AnnualTotalDTO](t, rec).MonthsReported)
}

// =============================================================================
// MAINTENANCE
// =============================================================================

func TestMaintenanceRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	// GIVEN: a funded pool and a proposal
	rec := s.do(t, http.MethodPost, "/api/maintenance/contributions", "alice", api.ContributeRequest{Amount: 100000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(100000), decodeBody[api.BalanceDTO](t, rec).Balance)

	rec = s.do(t, http.MethodPost, "/api/maintenance/records", "alice",
		api.ProposeRequest{Description: "Inverter replacement", EstimatedCost: 50000, Contractor: "SolarFix"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	record := decodeBody[api.RecordDTO](t, rec)
	assert.Equal(t, uint64(1), record.ID)
	assert.Equal(t, "proposed", record.Status)

	// WHEN: only the owner moves it through the lifecycle
	rec = s.do(t, http.MethodPost, "/api/maintenance/records/1/approve", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/maintenance/records/1/complete", admin, api.CompleteRequest{ActualCost: 45000})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/maintenance/records/1/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, "/api/maintenance/records/1/start", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, "/api/maintenance/records/1/complete", admin, api.CompleteRequest{ActualCost: 45000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN
	done := decodeBody[api.RecordDTO](t, rec)
	assert.Equal(t, "completed", done.Status)
	assert.NotEmpty(t, done.CompletedAt)

	rec = s.do(t, http.MethodGet, "/api/maintenance/balance", "", nil)
	assert.Equal(t, int64(55000), decodeBody[api.BalanceDTO](t, rec).Balance)

	rec = s.do(t, http.MethodGet, "/api/maintenance/contributions/alice/2023/7", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(100000), decodeBody[api.ContributionDTO](t, rec).Amount)

	rec = s.do(t, http.MethodGet, "/api/maintenance/records/2", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMaintenanceRate(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/maintenance/rate", "", nil)
	assert.Equal(t, maintenance.DefaultContributionRate, decodeBody[api.RateDTO](t, rec).Rate)

	rec = s.do(t, http.MethodPut, "/api/maintenance/rate", admin, api.RateDTO{Rate: 101})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPut, "/api/maintenance/rate", admin, api.RateDTO{Rate: 15})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/maintenance/required?credits=333", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(49), decodeBody[map[string]int64](t, rec)["required"])
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func TestJWTAuthentication(t *testing.T) {
	secret := []byte("test-secret")
	s := newTestServer(t, secret)
	body := api.RegisterPeriodRequest{StartDate: "2023-06-01", EndDate: "2023-06-30", TotalCredits: 10}

	send := func(authz string, caller string) int {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		req := httptest.NewRequest(http.MethodPost, "/api/periods", &buf)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		if caller != "" {
			req.Header.Set(auth.DevCallerHeader, caller)
		}
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec.Code
	}

	adminToken, err := auth.IssueToken(admin, secret, time.Hour)
	require.NoError(t, err)
	aliceToken, err := auth.IssueToken("alice", secret, time.Hour)
	require.NoError(t, err)
	forged, err := auth.IssueToken(admin, []byte("other"), time.Hour)
	require.NoError(t, err)

	// The dev header is ignored once a secret is configured.
	assert.Equal(t, http.StatusUnauthorized, send("", admin))
	assert.Equal(t, http.StatusUnauthorized, send("Bearer "+forged, ""))
	assert.Equal(t, http.StatusForbidden, send("Bearer "+aliceToken, ""))
	assert.Equal(t, http.StatusCreated, send("Bearer "+adminToken, ""))

	// A rejected token gets the same JSON error body as every other failure.
	req := httptest.NewRequest(http.MethodGet, "/api/periods", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	errBody := decodeBody[api.ErrorResponse](t, rec)
	assert.Equal(t, "Invalid token", errBody.Error)
	assert.NotEmpty(t, errBody.Details)
}

// =============================================================================
// OPERATIONS
// =============================================================================

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoverySchedulerCompletesFinalizingPeriods(t *testing.T) {
	// GIVEN: a period stuck in FINALIZING after a crash
	ctx := context.Background()
	s := newTestServer(t, nil)
	s.registerJune(t, 100000)
	require.NoError(t, s.services.Finalizer.Finalize(ctx, admin, 1))

	// WHEN: a sweep runs an hour later
	s.clock.Advance(time.Hour)
	ids := s.scheduler.RunOnce(ctx)

	// THEN: the period is distributed with the sweep's marker
	assert.Equal(t, []credit.PeriodID{1}, ids)
	p, err := s.services.Periods.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, credit.StatusDistributed, p.Status)
	assert.Equal(t, credit.MarkerAt(july1.Add(time.Hour)), p.DistributionDate)

	assert.Empty(t, s.scheduler.RunOnce(ctx))
}

func TestRecoverySchedulerRejectsBadSchedule(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Error(t, s.scheduler.Start("every tuesday"))

	require.NoError(t, s.scheduler.Start("@every 1h"))
	assert.Error(t, s.scheduler.Start("@every 1h"))
	s.scheduler.Stop()
}
