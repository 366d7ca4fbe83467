/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
	Provides pre-built scenarios that populate the ledger with realistic
	cooperative data. Each scenario drives the domain services exactly as
	API clients would, so every invariant still applies.

AVAILABLE SCENARIOS:

	june-distribution: three members, two panels, June 2023 distributed and claimable
	open-period:       July 2023 registered with a partial allocation
	stuck-finalizing:  a period left in FINALIZING for the recovery scheduler
	maintenance-fund:  member contributions and one approved repair

HOW SCENARIOS WORK:
 1. Reset the store when it supports it
 2. Set the ownership table
 3. Record panel production
 4. Register periods and allocate from the registry
 5. Optionally finalize/distribute and fund maintenance

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "june-distribution"}

	Loading acts as the caller; administrative steps need the contract owner.

NOTE:

	Scenarios reset the database. Only use in development/demo environments.
	Without a resetter, loading the same scenario twice fails on duplicate
	readings.

SEE ALSO:
  - handlers.go: domain handlers the scenarios mirror
  - store/sqlite/sqlite.go: Reset
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/solar-credits/calendar"
	"github.com/warp/solar-credits/credit"
	"github.com/warp/solar-credits/energy"
	"github.com/warp/solar-credits/ownership"
)

// Resetter clears all persisted state.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenarioLoader func(h *Handler, ctx context.Context, caller string) error

var scenarios = []ScenarioDTO{
	{
		ID:          "june-distribution",
		Name:        "June Distribution",
		Description: "Three members, two panels; June 2023 allocated from the registry and distributed",
	},
	{
		ID:          "open-period",
		Name:        "Open Period",
		Description: "July 2023 registered with only one member allocated",
	},
	{
		ID:          "stuck-finalizing",
		Name:        "Stuck Finalization",
		Description: "A fully allocated period left in FINALIZING, waiting for recovery",
	},
	{
		ID:          "maintenance-fund",
		Name:        "Maintenance Fund",
		Description: "Monthly contributions and an approved inverter repair",
	},
}

var scenarioLoaders = map[string]scenarioLoader{
	"june-distribution": (*Handler).loadJuneDistribution,
	"open-period":       (*Handler).loadOpenPeriod,
	"stuck-finalizing":  (*Handler).loadStuckFinalizing,
	"maintenance-fund":  (*Handler).loadMaintenanceFund,
}

// demoShares is the ownership table every scenario starts from.
var demoShares = map[ownership.OwnerID]int{"alice": 50, "bob": 30, "carol": 20}

// demoWeather cycles through a week of conditions.
var demoWeather = []struct {
	weather energy.Weather
	energy  int64
}{
	{energy.WeatherSunny, 25000},
	{energy.WeatherSunny, 24000},
	{energy.WeatherPartlyCloudy, 18000},
	{energy.WeatherCloudy, 11000},
	{energy.WeatherRainy, 6000},
	{energy.WeatherPartlyCloudy, 17000},
	{energy.WeatherSunny, 23000},
}

// WithResetter lets LoadScenario clear the store first.
func (h *Handler) WithResetter(r Resetter) *Handler {
	h.resetter = r
	return h
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("%q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	if h.resetter != nil {
		if err := h.resetter.Reset(ctx); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
			return
		}
	}
	if err := load(h, ctx, callerOf(r)); err != nil {
		h.writeDomainError(w, fmt.Errorf("load scenario %s: %w", req.ScenarioID, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadJuneDistribution(ctx context.Context, caller string) error {
	id, err := h.seedMonth(ctx, caller, 2023, 6, 100000)
	if err != nil {
		return err
	}
	if _, err := h.Engine.AllocateAll(ctx, credit.Caller(caller), id); err != nil {
		return err
	}
	return h.Finalizer.Distribute(ctx, credit.Caller(caller), id, credit.MarkerAt(h.clock.Now(ctx)))
}

func (h *Handler) loadOpenPeriod(ctx context.Context, caller string) error {
	id, err := h.seedMonth(ctx, caller, 2023, 7, 80000)
	if err != nil {
		return err
	}
	_, err = h.Engine.AllocateFromRegistry(ctx, credit.Caller(caller), id, "alice")
	return err
}

func (h *Handler) loadStuckFinalizing(ctx context.Context, caller string) error {
	id, err := h.seedMonth(ctx, caller, 2023, 8, 90000)
	if err != nil {
		return err
	}
	if _, err := h.Engine.AllocateAll(ctx, credit.Caller(caller), id); err != nil {
		return err
	}
	return h.Finalizer.Finalize(ctx, credit.Caller(caller), id)
}

func (h *Handler) loadMaintenanceFund(ctx context.Context, caller string) error {
	for owner, pct := range demoShares {
		if err := h.Fund.Contribute(ctx, string(owner), int64(pct)*1000); err != nil {
			return err
		}
	}
	id, err := h.Fund.Propose(ctx, "alice", "Replace inverter on panel string 2", 40000, "SunServ Ltd")
	if err != nil {
		return err
	}
	return h.Fund.Approve(ctx, caller, id)
}

// seedMonth sets the demo ownership table, records one month of production
// on panels 1 and 2, and registers the month as a period.
func (h *Handler) seedMonth(ctx context.Context, caller string, year int, month time.Month, credits int64) (credit.PeriodID, error) {
	if err := h.Registry.Assign(ctx, caller, demoShares); err != nil {
		return 0, err
	}
	start := calendar.StartOfMonth(year, month)
	end := calendar.EndOfMonth(year, month)
	panels := []energy.PanelID{1, 2}
	for _, panel := range panels {
		i := int(panel)
		for d := start; !d.After(end); d = d.AddDays(1) {
			day := demoWeather[i%len(demoWeather)]
			i++
			if err := h.Ledger.RecordProduction(ctx, caller, panel, d, day.energy, day.weather); err != nil {
				return 0, err
			}
		}
	}
	return h.Periods.RegisterFromEnergy(ctx, credit.Caller(caller), 0, start, end, credits, panels)
}
