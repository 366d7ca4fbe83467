/*
types.go - Core types for credit distribution

PURPOSE:
  A production period aggregates the array's output and the monetary
  credits it earned. Credits are split among owners by percentage into
  allocations, the period is finalized, and owners then claim.

LIFECYCLE:

    OPEN ──finalize──► FINALIZING ──mark distributed──► DISTRIBUTED
     │                     │                                 │
     allocate/correct      allocations frozen                claim (once per owner)

  Status never moves backwards. A DISTRIBUTED period is immutable except
  for the claim flag of its allocations.

ARITHMETIC:
  credits = floor(TotalCredits × percentage / 100), computed exactly.
  The sum of allocated credits never exceeds TotalCredits; the rounding
  remainder stays unallocated for good.

SEE ALSO:
  - periods.go: registration and the DISTRIBUTED transition
  - engine.go: allocation and claims
  - finalizer.go: FINALIZING transition and recovery
  - store.go: persistence contract
*/
package credit

import (
	"time"

	"github.com/warp/solar-credits/calendar"
	"github.com/warp/solar-credits/ownership"
)

// PeriodID is a sequential period number starting at 1.
type PeriodID uint64

// OwnerID identifies a cooperative member.
type OwnerID = ownership.OwnerID

// Date is a calendar day encoded YYYYMMDD.
type Date = calendar.Date

// Caller is the identity performing a mutation.
type Caller string

// Marker is a monotonic point in time recorded on distribution and claim
// (unix seconds).
type Marker uint64

// MarkerAt converts a wall-clock time to a Marker.
func MarkerAt(t time.Time) Marker {
	if t.Unix() < 0 {
		return 0
	}
	return Marker(t.Unix())
}

// Time converts the marker back to UTC wall-clock time.
func (m Marker) Time() time.Time { return time.Unix(int64(m), 0).UTC() }

// Status is the period lifecycle state.
type Status int

const (
	StatusOpen        Status = 0
	StatusFinalizing  Status = 1
	StatusDistributed Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusFinalizing:
		return "finalizing"
	case StatusDistributed:
		return "distributed"
	default:
		return "unknown"
	}
}

// ProductionPeriod is a span of production with its credit pool.
type ProductionPeriod struct {
	ID               PeriodID
	StartDate        Date
	EndDate          Date
	TotalEnergy      int64
	TotalCredits     int64
	Status           Status
	DistributionDate Marker // zero until DISTRIBUTED

	// Running totals over current allocations.
	AllocatedPercentage int
	AllocatedCredits    int64

	RegisteredBy Caller
}

// Unallocated is the part of the pool no allocation holds.
func (p ProductionPeriod) Unallocated() int64 {
	return p.TotalCredits - p.AllocatedCredits
}

// CreditAllocation is one owner's share of one period.
type CreditAllocation struct {
	PeriodID            PeriodID
	OwnerID             OwnerID
	OwnershipPercentage int
	CreditsAllocated    int64
	Claimed             bool
	ClaimDate           Marker // zero until claimed
	AllocatedBy         Caller
}

// Summary reports how a period's pool is split.
type Summary struct {
	PeriodID            PeriodID
	Status              Status
	TotalCredits        int64
	AllocatedPercentage int
	AllocatedCredits    int64
	ClaimedCredits      int64
	Unallocated         int64
	Owners              int
	Claims              int
}
