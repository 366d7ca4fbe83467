/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Periods:      PeriodDTO, RegisterPeriodRequest, SummaryDTO
  Allocations:  AllocationDTO, AllocateRequest, ClaimRequest, DistributeRequest
  Energy:       ReadingDTO, RecordProductionRequest, MonthlyTotalDTO, AnnualTotalDTO
  Ownership:    ShareDTO, TransferRequest
  Maintenance:  RecordDTO, ContributeRequest, ProposeRequest, CompleteRequest,
                ContributionDTO, RateDTO, BalanceDTO

DATES:
  Calendar days are accepted as "2023-06-01" or "20230601" and always
  returned as "2023-06-01". Distribution and claim markers are unix seconds.

VALIDATION:
  Validation is done in handlers and the domain packages, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/solar-credits/credit"
	"github.com/warp/solar-credits/energy"
	"github.com/warp/solar-credits/maintenance"
	"github.com/warp/solar-credits/ownership"
)

// =============================================================================
// PERIODS
// =============================================================================

// PeriodDTO represents a production period in API responses.
type PeriodDTO struct {
	ID                  uint64 `json:"id"`
	StartDate           string `json:"start_date"`
	EndDate             string `json:"end_date"`
	TotalEnergy         int64  `json:"total_energy"`
	TotalCredits        int64  `json:"total_credits"`
	Status              string `json:"status"`
	DistributionDate    uint64 `json:"distribution_date,omitempty"`
	AllocatedPercentage int    `json:"allocated_percentage"`
	AllocatedCredits    int64  `json:"allocated_credits"`
	RegisteredBy        string `json:"registered_by,omitempty"`
}

// RegisterPeriodRequest registers a period. When TotalEnergy is omitted and
// Panels is set, the total is summed from the energy ledger.
type RegisterPeriodRequest struct {
	ID           uint64   `json:"id"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	TotalEnergy  *int64   `json:"total_energy,omitempty"`
	TotalCredits int64    `json:"total_credits"`
	Panels       []uint64 `json:"panels,omitempty"`
}

// SummaryDTO reports how a period's pool is split.
type SummaryDTO struct {
	PeriodID            uint64 `json:"period_id"`
	Status              string `json:"status"`
	TotalCredits        int64  `json:"total_credits"`
	AllocatedPercentage int    `json:"allocated_percentage"`
	AllocatedCredits    int64  `json:"allocated_credits"`
	ClaimedCredits      int64  `json:"claimed_credits"`
	Unallocated         int64  `json:"unallocated"`
	Owners              int    `json:"owners"`
	Claims              int    `json:"claims"`
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

// AllocationDTO represents one owner's allocation.
type AllocationDTO struct {
	PeriodID            uint64 `json:"period_id"`
	OwnerID             string `json:"owner_id"`
	OwnershipPercentage int    `json:"ownership_percentage"`
	CreditsAllocated    int64  `json:"credits_allocated"`
	Claimed             bool   `json:"claimed"`
	ClaimDate           uint64 `json:"claim_date,omitempty"`
	AllocatedBy         string `json:"allocated_by,omitempty"`
}

// AllocateRequest allocates to one owner. A missing percentage is read from
// the ownership registry.
type AllocateRequest struct {
	OwnerID             string `json:"owner_id"`
	OwnershipPercentage *int   `json:"ownership_percentage,omitempty"`
}

// AllocateResponse is returned by the allocation endpoints.
type AllocateResponse struct {
	PeriodID uint64           `json:"period_id"`
	Credits  map[string]int64 `json:"credits"`
}

// ClaimRequest claims an allocation. OwnerID defaults to the caller.
type ClaimRequest struct {
	OwnerID string `json:"owner_id,omitempty"`
}

// ClaimResponse reports the credits handed out.
type ClaimResponse struct {
	PeriodID uint64 `json:"period_id"`
	OwnerID  string `json:"owner_id"`
	Credits  int64  `json:"credits"`
}

// DistributeRequest carries an optional distribution marker. Zero means now.
type DistributeRequest struct {
	DistributionDate uint64 `json:"distribution_date,omitempty"`
}

// RecoverResponse lists the periods a recovery run completed.
type RecoverResponse struct {
	Recovered []uint64 `json:"recovered"`
}

// =============================================================================
// ENERGY
// =============================================================================

// RecordProductionRequest records one day's reading for a panel.
type RecordProductionRequest struct {
	Date    string `json:"date"`
	Energy  int64  `json:"energy"`
	Weather string `json:"weather"`
}

// ReadingDTO represents a stored reading.
type ReadingDTO struct {
	PanelID    uint64 `json:"panel_id"`
	Date       string `json:"date"`
	Energy     int64  `json:"energy"`
	Weather    string `json:"weather"`
	RecordedBy string `json:"recorded_by,omitempty"`
	RecordedAt string `json:"recorded_at"`
}

// MonthlyTotalDTO aggregates a calendar month.
type MonthlyTotalDTO struct {
	PanelID      uint64 `json:"panel_id"`
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	TotalEnergy  int64  `json:"total_energy"`
	DaysReported int    `json:"days_reported"`
}

// AnnualTotalDTO aggregates a calendar year.
type AnnualTotalDTO struct {
	PanelID        uint64 `json:"panel_id"`
	Year           int    `json:"year"`
	TotalEnergy    int64  `json:"total_energy"`
	MonthsReported int    `json:"months_reported"`
}

// =============================================================================
// OWNERSHIP
// =============================================================================

// ShareDTO is one row of the ownership table.
type ShareDTO struct {
	OwnerID    string `json:"owner_id"`
	Percentage int    `json:"percentage"`
}

// TransferRequest moves percentage points between owners.
type TransferRequest struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Percentage int    `json:"percentage"`
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// ContributeRequest adds to the maintenance fund.
type ContributeRequest struct {
	Amount int64 `json:"amount"`
}

// ContributionDTO is a member's total for one month.
type ContributionDTO struct {
	Contributor string `json:"contributor"`
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	Amount      int64  `json:"amount"`
	Date        string `json:"date"`
}

// ProposeRequest proposes maintenance work.
type ProposeRequest struct {
	Description   string `json:"description"`
	EstimatedCost int64  `json:"estimated_cost"`
	Contractor    string `json:"contractor"`
}

// CompleteRequest completes maintenance work at its actual cost.
type CompleteRequest struct {
	ActualCost int64 `json:"actual_cost"`
}

// RecordDTO represents a maintenance record.
type RecordDTO struct {
	ID            uint64 `json:"id"`
	Description   string `json:"description"`
	EstimatedCost int64  `json:"estimated_cost"`
	ActualCost    int64  `json:"actual_cost"`
	Contractor    string `json:"contractor"`
	Status        string `json:"status"`
	ProposedBy    string `json:"proposed_by"`
	ProposedAt    string `json:"proposed_at"`
	CompletedAt   string `json:"completed_at,omitempty"`
}

// RateDTO carries the contribution rate in percent.
type RateDTO struct {
	Rate int `json:"rate"`
}

// BalanceDTO carries the fund balance.
type BalanceDTO struct {
	Balance int64 `json:"balance"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toPeriodDTO(p credit.ProductionPeriod) PeriodDTO {
	return PeriodDTO{
		ID:                  uint64(p.ID),
		StartDate:           p.StartDate.String(),
		EndDate:             p.EndDate.String(),
		TotalEnergy:         p.TotalEnergy,
		TotalCredits:        p.TotalCredits,
		Status:              p.Status.String(),
		DistributionDate:    uint64(p.DistributionDate),
		AllocatedPercentage: p.AllocatedPercentage,
		AllocatedCredits:    p.AllocatedCredits,
		RegisteredBy:        string(p.RegisteredBy),
	}
}

func toAllocationDTO(a credit.CreditAllocation) AllocationDTO {
	return AllocationDTO{
		PeriodID:            uint64(a.PeriodID),
		OwnerID:             string(a.OwnerID),
		OwnershipPercentage: a.OwnershipPercentage,
		CreditsAllocated:    a.CreditsAllocated,
		Claimed:             a.Claimed,
		ClaimDate:           uint64(a.ClaimDate),
		AllocatedBy:         string(a.AllocatedBy),
	}
}

func toSummaryDTO(s credit.Summary) SummaryDTO {
	return SummaryDTO{
		PeriodID:            uint64(s.PeriodID),
		Status:              s.Status.String(),
		TotalCredits:        s.TotalCredits,
		AllocatedPercentage: s.AllocatedPercentage,
		AllocatedCredits:    s.AllocatedCredits,
		ClaimedCredits:      s.ClaimedCredits,
		Unallocated:         s.Unallocated,
		Owners:              s.Owners,
		Claims:              s.Claims,
	}
}

func toReadingDTO(r energy.Reading) ReadingDTO {
	return ReadingDTO{
		PanelID:    uint64(r.PanelID),
		Date:       r.Date.String(),
		Energy:     r.Energy,
		Weather:    r.Weather.String(),
		RecordedBy: r.RecordedBy,
		RecordedAt: r.RecordedAt.Format(time.RFC3339),
	}
}

func toShareDTOs(shares []ownership.Share) []ShareDTO {
	out := make([]ShareDTO, len(shares))
	for i, s := range shares {
		out[i] = ShareDTO{OwnerID: string(s.OwnerID), Percentage: s.Percentage}
	}
	return out
}

func toRecordDTO(r maintenance.Record) RecordDTO {
	dto := RecordDTO{
		ID:            uint64(r.ID),
		Description:   r.Description,
		EstimatedCost: r.EstimatedCost,
		ActualCost:    r.ActualCost,
		Contractor:    r.Contractor,
		Status:        r.Status.String(),
		ProposedBy:    r.ProposedBy,
		ProposedAt:    r.ProposedAt.Format(time.RFC3339),
	}
	if !r.CompletedAt.IsZero() {
		dto.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return dto
}
