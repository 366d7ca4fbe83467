/*
handlers.go - HTTP API handlers for the solar credit ledger

PURPOSE:
  Exposes the credit engine, the energy ledger, the ownership registry and
  the maintenance fund via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Periods:
    POST   /api/periods                          Register period
    GET    /api/periods                          List periods
    GET    /api/periods/{id}                     Get period
    GET    /api/periods/{id}/summary             Pool split
    POST   /api/periods/{id}/finalize            OPEN -> FINALIZING
    POST   /api/periods/{id}/distribute          Finalize + mark distributed
    POST   /api/periods/{id}/mark-distributed    FINALIZING -> DISTRIBUTED
    POST   /api/periods/recover                  Complete stuck FINALIZING periods

  Allocations:
    POST   /api/periods/{id}/allocations          Allocate (percentage optional)
    POST   /api/periods/{id}/allocations/registry Allocate every registered owner
    GET    /api/periods/{id}/allocations          List allocations
    GET    /api/periods/{id}/allocations/{owner}  Get allocation
    POST   /api/periods/{id}/claim                Claim

  Energy:
    POST   /api/panels/{panel}/production                Record reading
    GET    /api/panels/{panel}/production/{date}         Get reading
    GET    /api/panels/{panel}/monthly/{year}/{month}    Monthly total
    GET    /api/panels/{panel}/annual/{year}             Annual total

  Ownership:
    GET    /api/ownership               Ownership table
    PUT    /api/ownership               Replace table
    POST   /api/ownership/transfer      Transfer points
    GET    /api/ownership/{owner}       One owner's share

  Maintenance:
    POST   /api/maintenance/contributions                       Contribute
    GET    /api/maintenance/contributions/{contributor}/{y}/{m} Monthly total
    POST   /api/maintenance/records                             Propose
    GET    /api/maintenance/records/{id}                        Get record
    POST   /api/maintenance/records/{id}/approve|start|complete Lifecycle
    GET    /api/maintenance/balance                             Balance
    GET    /api/maintenance/rate                                Rate
    PUT    /api/maintenance/rate                                Update rate
    GET    /api/maintenance/required?credits=N                  Expected contribution

ERROR HANDLING:
  Errors are returned as JSON {"error", "details"} with HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing caller on a mutating route
  - 403: Caller not allowed
  - 404: Resource not found
  - 409: Conflict with current state (locked, claimed, over-allocated)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - auth/auth.go: Caller identity
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/solar-credits/auth"
	"github.com/warp/solar-credits/calendar"
	"github.com/warp/solar-credits/credit"
	"github.com/warp/solar-credits/energy"
	"github.com/warp/solar-credits/maintenance"
	"github.com/warp/solar-credits/ownership"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Services are the domain services behind the API.
type Services struct {
	Periods   *credit.Periods
	Engine    *credit.Engine
	Finalizer *credit.Finalizer
	Ledger    *energy.Ledger
	Registry  *ownership.Registry
	Fund      *maintenance.Fund
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Services
	clock    calendar.Clock
	logger   *zap.Logger
	resetter Resetter
}

// NewHandler creates a handler. A nil clock uses the system clock and a nil
// logger discards output.
func NewHandler(s Services, clock calendar.Clock, logger *zap.Logger) *Handler {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Services: s, clock: clock, logger: logger}
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

// RegisterPeriod registers a production period.
func (h *Handler) RegisterPeriod(w http.ResponseWriter, r *http.Request) {
	var req RegisterPeriodRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}
	end, err := calendar.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date", err)
		return
	}

	ctx := r.Context()
	caller := credit.Caller(callerOf(r))
	var id credit.PeriodID
	if req.TotalEnergy == nil && len(req.Panels) > 0 {
		panels := make([]energy.PanelID, len(req.Panels))
		for i, p := range req.Panels {
			panels[i] = energy.PanelID(p)
		}
		id, err = h.Periods.RegisterFromEnergy(ctx, caller, credit.PeriodID(req.ID), start, end, req.TotalCredits, panels)
	} else {
		var total int64
		if req.TotalEnergy != nil {
			total = *req.TotalEnergy
		}
		id, err = h.Periods.Register(ctx, caller, credit.PeriodID(req.ID), start, end, total, req.TotalCredits)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	p, err := h.Periods.Get(ctx, id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPeriodDTO(p))
}

// ListPeriods returns every period in id order.
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Periods.List(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toPeriodDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPeriod returns one period.
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	id, ok := periodParam(w, r)
	if !ok {
		return
	}
	p, err := h.Periods.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

// GetSummary reports how a period's pool is split.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := periodParam(w, r)
	if !ok {
		return
	}
	s, err := h.Engine.Summary(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(s))
}

// Finalize locks a period against further allocations.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := periodParam(w, r)
	if !ok {
		return
	}
	if err := h.Finalizer.Finalize(r.Context(), credit.Caller(callerOf(r)), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writePeriod(w, r, id)
}

// Distribute finalizes and marks a period distributed in one call.
func (h *Handler) Distribute(w http.ResponseWriter, r *http.Request) {
	id, ok := periodParam(w, r)
	if !ok {
		return
	}
	date, ok := h.distributionDate(w, r)
	if !ok {
		return
	}
	if err := h.Finalizer.Distribute(r.Context(), credit.Caller(callerOf(r)), id, date); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writePeriod(w, r, id)
}

// MarkDistributed opens a finalized period for claims.
func (h *Handler) MarkDistributed(w http.ResponseWriter, r *http.Request) {
	id, ok := periodParam(w, r)
	if !ok {
		return
	}
	date, ok := h.distributionDate(w, r)
	if !ok {
		return
	}
	if err := h.Periods.MarkDistributed(r.Context(), credit.Caller(callerOf(r)), id, date); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writePeriod(w, r, id)
}

// RecoverPeriods completes every period left in FINALIZING.
func (h *Handler) RecoverPeriods(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ids, err := h.Finalizer.Recover(ctx, credit.Caller(callerOf(r)), credit.MarkerAt(h.clock.Now(ctx)))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	resp := RecoverResponse{Recovered: make([]uint64, len(ids))}
	for i, id := range ids {
		resp.Recovered[i] = uint64(id)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writePeriod(w http.ResponseWriter, r *http.Request, id credit.PeriodID) {
	p, err := h.Periods.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

// distributionDate reads the optional marker from the body, defaulting to now.
func (h *Handler) distributionDate(w http.ResponseWriter, r *http.Request) (credit.Marker, bool) {
	var req DistributeRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return 0, false
	}
	if req.DistributionDate != 0 {
		return credit.Marker(req.DistributionDate), true
	}
	return credit.MarkerAt(h.clock.Now(r.Context())), true
}

// =============================================================================
// ALLOCATION HANDLERS
// =============================================================================

// Allocate records one owner's percentage. Without a percentage the owner's
// registry share is used.
func (h *Handler) Allocate(w http.ResponseWriter, r *http.Request) {
	id, ok := periodParam(w, r)
	if !ok {
		return
	}
	var req AllocateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	caller := credit.Caller(callerOf(r))
	owner := credit.OwnerID(req.OwnerID)
	var (
		credits int64
		err     error
	)
	if req.OwnershipPercentage == nil {
		credits, err = h.Engine.AllocateFromRegistry(ctx, caller, id, owner)
	} else {
		credits, err = h.Engine.Allocate(ctx, caller, id, owner, *req.OwnershipPercentage)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AllocateResponse{
		PeriodID: uint64(id),
		Credits:  map[string]int64{req.OwnerID: credits},
	})
}

// AllocateAll allocates every owner in the registry.
func (h *Handler) AllocateAll(w http.ResponseWriter, r *http.Request) {
	id, ok := periodParam(w, r)
	if !ok {
		return
	}
	got, err := h.Engine.AllocateAll(r.Context(), credit.Caller(callerOf(r)), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	resp := AllocateResponse{PeriodID: uint64(id), Credits: make(map[string]int64, len(got))}
	for owner, credits := range got {
		resp.Credits[string(owner)] = credits
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListAllocations returns a period's allocations in owner order.
func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	id, ok := periodParam(w, r)
	if !ok {
		return
	}
	allocs, err := h.Engine.Allocations(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]AllocationDTO, len(allocs))
	for i, a := range allocs {
		dtos[i] = toAllocationDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAllocation returns one owner's allocation.
func (h *Handler) GetAllocation(w http.ResponseWriter, r *http.Request) {
	id, ok := periodParam(w, r)
	if !ok {
		return
	}
	a, err := h.Engine.GetAllocation(r.Context(), id, credit.OwnerID(chi.URLParam(r, "owner")))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTO(a))
}

// Claim hands out an allocation once. The owner defaults to the caller.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	id, ok := periodParam(w, r)
	if !ok {
		return
	}
	var req ClaimRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	caller := callerOf(r)
	owner := req.OwnerID
	if owner == "" {
		owner = caller
	}

	credits, err := h.Engine.Claim(r.Context(), credit.Caller(caller), id, credit.OwnerID(owner))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClaimResponse{PeriodID: uint64(id), OwnerID: owner, Credits: credits})
}

// =============================================================================
// ENERGY HANDLERS
// =============================================================================

// RecordProduction stores one day's reading for a panel.
func (h *Handler) RecordProduction(w http.ResponseWriter, r *http.Request) {
	panel, ok := panelParam(w, r)
	if !ok {
		return
	}
	var req RecordProductionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	weather, err := energy.ParseWeather(req.Weather)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid weather", err)
		return
	}

	ctx := r.Context()
	if err := h.Ledger.RecordProduction(ctx, callerOf(r), panel, date, req.Energy, weather); err != nil {
		h.writeDomainError(w, err)
		return
	}
	reading, err := h.Ledger.DailyProduction(ctx, panel, date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReadingDTO(reading))
}

// GetProduction returns one day's reading.
func (h *Handler) GetProduction(w http.ResponseWriter, r *http.Request) {
	panel, ok := panelParam(w, r)
	if !ok {
		return
	}
	date, err := calendar.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	reading, err := h.Ledger.DailyProduction(r.Context(), panel, date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReadingDTO(reading))
}

// GetMonthlyTotal sums a calendar month.
func (h *Handler) GetMonthlyTotal(w http.ResponseWriter, r *http.Request) {
	panel, ok := panelParam(w, r)
	if !ok {
		return
	}
	year, ok := intParam(w, r, "year")
	if !ok {
		return
	}
	month, ok := intParam(w, r, "month")
	if !ok {
		return
	}
	total, err := h.Ledger.MonthlyTotal(r.Context(), panel, year, time.Month(month))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MonthlyTotalDTO{
		PanelID:      uint64(panel),
		Year:         year,
		Month:        month,
		TotalEnergy:  total.TotalEnergy,
		DaysReported: total.DaysReported,
	})
}

// GetAnnualTotal sums a calendar year.
func (h *Handler) GetAnnualTotal(w http.ResponseWriter, r *http.Request) {
	panel, ok := panelParam(w, r)
	if !ok {
		return
	}
	year, ok := intParam(w, r, "year")
	if !ok {
		return
	}
	total, err := h.Ledger.AnnualTotal(r.Context(), panel, year)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AnnualTotalDTO{
		PanelID:        uint64(panel),
		Year:           year,
		TotalEnergy:    total.TotalEnergy,
		MonthsReported: total.MonthsReported,
	})
}

// =============================================================================
// OWNERSHIP HANDLERS
// =============================================================================

// ListOwners returns the ownership table.
func (h *Handler) ListOwners(w http.ResponseWriter, r *http.Request) {
	shares, err := h.Registry.Owners(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShareDTOs(shares))
}

// AssignOwnership replaces the ownership table.
func (h *Handler) AssignOwnership(w http.ResponseWriter, r *http.Request) {
	var req []ShareDTO
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	shares := make(map[ownership.OwnerID]int, len(req))
	for _, s := range req {
		if _, dup := shares[ownership.OwnerID(s.OwnerID)]; dup {
			writeError(w, http.StatusBadRequest, "Duplicate owner", fmt.Errorf("%s listed twice", s.OwnerID))
			return
		}
		shares[ownership.OwnerID(s.OwnerID)] = s.Percentage
	}
	if err := h.Registry.Assign(r.Context(), callerOf(r), shares); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.ListOwners(w, r)
}

// TransferOwnership moves percentage points from one owner to another.
func (h *Handler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	err := h.Registry.Transfer(r.Context(), callerOf(r),
		ownership.OwnerID(req.From), ownership.OwnerID(req.To), req.Percentage)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.ListOwners(w, r)
}

// GetOwner returns one owner's share.
func (h *Handler) GetOwner(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	pct, err := h.Registry.Percentage(r.Context(), ownership.OwnerID(owner))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ShareDTO{OwnerID: owner, Percentage: pct})
}

// =============================================================================
// MAINTENANCE HANDLERS
// =============================================================================

// Contribute adds the caller's payment to the fund.
func (h *Handler) Contribute(w http.ResponseWriter, r *http.Request) {
	var req ContributeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Fund.Contribute(r.Context(), callerOf(r), req.Amount); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.GetBalance(w, r)
}

// GetContribution returns a member's total for one month.
func (h *Handler) GetContribution(w http.ResponseWriter, r *http.Request) {
	year, ok := intParam(w, r, "year")
	if !ok {
		return
	}
	month, ok := intParam(w, r, "month")
	if !ok {
		return
	}
	key := maintenance.ContributionKey{
		Contributor: chi.URLParam(r, "contributor"),
		Year:        year,
		Month:       time.Month(month),
	}
	c, err := h.Fund.Contribution(r.Context(), key)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ContributionDTO{
		Contributor: key.Contributor,
		Year:        year,
		Month:       month,
		Amount:      c.Amount,
		Date:        c.Date.Format(time.RFC3339),
	})
}

// ProposeMaintenance records a proposal.
func (h *Handler) ProposeMaintenance(w http.ResponseWriter, r *http.Request) {
	var req ProposeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ctx := r.Context()
	id, err := h.Fund.Propose(ctx, callerOf(r), req.Description, req.EstimatedCost, req.Contractor)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	rec, err := h.Fund.Record(ctx, id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordDTO(rec))
}

// GetMaintenanceRecord returns one record.
func (h *Handler) GetMaintenanceRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordParam(w, r)
	if !ok {
		return
	}
	rec, err := h.Fund.Record(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// ApproveMaintenance approves a proposal.
func (h *Handler) ApproveMaintenance(w http.ResponseWriter, r *http.Request) {
	h.recordTransition(w, r, h.Fund.Approve)
}

// StartMaintenance starts approved work.
func (h *Handler) StartMaintenance(w http.ResponseWriter, r *http.Request) {
	h.recordTransition(w, r, h.Fund.Start)
}

// CompleteMaintenance completes work and pays its actual cost.
func (h *Handler) CompleteMaintenance(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	h.recordTransition(w, r, func(ctx context.Context, caller string, id maintenance.RecordID) error {
		return h.Fund.Complete(ctx, caller, id, req.ActualCost)
	})
}

func (h *Handler) recordTransition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, maintenance.RecordID) error) {
	id, ok := recordParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if err := fn(ctx, callerOf(r), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	rec, err := h.Fund.Record(ctx, id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// GetBalance returns the fund balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.Fund.Balance(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{Balance: balance})
}

// GetRate returns the contribution rate.
func (h *Handler) GetRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.Fund.ContributionRate(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RateDTO{Rate: rate})
}

// UpdateRate changes the contribution rate.
func (h *Handler) UpdateRate(w http.ResponseWriter, r *http.Request) {
	var req RateDTO
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Fund.UpdateContributionRate(r.Context(), callerOf(r), req.Rate); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.GetRate(w, r)
}

// GetRequiredContribution returns the expected contribution for ?credits=N.
func (h *Handler) GetRequiredContribution(w http.ResponseWriter, r *http.Request) {
	credits, err := strconv.ParseInt(r.URL.Query().Get("credits"), 10, 64)
	if err != nil || credits < 0 {
		writeError(w, http.StatusBadRequest, "Invalid credits", err)
		return
	}
	amount, err := h.Fund.RequiredContribution(r.Context(), credits)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"credits": credits, "required": amount})
}

// =============================================================================
// HELPERS
// =============================================================================

func callerOf(r *http.Request) string {
	return auth.CallerFromContext(r.Context())
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// decodeOptional accepts an empty body.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return decode(r, v)
}

func periodParam(w http.ResponseWriter, r *http.Request) (credit.PeriodID, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "Invalid period id", err)
		return 0, false
	}
	return credit.PeriodID(id), true
}

func panelParam(w http.ResponseWriter, r *http.Request) (energy.PanelID, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "panel"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "Invalid panel id", err)
		return 0, false
	}
	return energy.PanelID(id), true
}

func recordParam(w http.ResponseWriter, r *http.Request) (maintenance.RecordID, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "Invalid record id", err)
		return 0, false
	}
	return maintenance.RecordID(id), true
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name, err)
		return 0, false
	}
	return n, true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, credit.ErrUnauthorized),
		errors.Is(err, ownership.ErrUnauthorized),
		errors.Is(err, maintenance.ErrUnauthorized):
		return http.StatusForbidden
	case credit.IsNotFound(err),
		errors.Is(err, energy.ErrNotFound),
		errors.Is(err, ownership.ErrOwnerNotFound),
		errors.Is(err, maintenance.ErrNotFound):
		return http.StatusNotFound
	case credit.IsConflict(err),
		errors.Is(err, energy.ErrAlreadyRecorded),
		errors.Is(err, ownership.ErrInsufficientShare),
		errors.Is(err, maintenance.ErrInvalidStatus),
		errors.Is(err, maintenance.ErrInsufficientFunds):
		return http.StatusConflict
	case credit.IsClientError(err),
		errors.Is(err, calendar.ErrInvalidDate),
		errors.Is(err, energy.ErrInvalidEnergy),
		errors.Is(err, energy.ErrInvalidWeather),
		errors.Is(err, energy.ErrInvalidDate),
		errors.Is(err, energy.ErrInvalidPanel),
		errors.Is(err, ownership.ErrInvalidShares),
		errors.Is(err, maintenance.ErrInvalidAmount),
		errors.Is(err, maintenance.ErrInvalidRecord),
		errors.Is(err, maintenance.ErrInvalidRate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeError(w, status, http.StatusText(status), err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
