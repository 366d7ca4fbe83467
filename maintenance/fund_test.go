package maintenance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/solar-credits/calendar"
	"github.com/warp/solar-credits/maintenance"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	fundOwner  = "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"
	member     = "ST2PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"
	contractor = "ST3PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"
)

var june15 = time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC)

func newFund(t *testing.T) (*maintenance.Fund, *calendar.FixedClock) {
	t.Helper()
	clock := calendar.NewFixedClock(june15)
	return maintenance.NewFund(maintenance.NewTxMemory(), fundOwner, clock, nil), clock
}

// =============================================================================
// CONTRIBUTIONS
// =============================================================================

func TestContribute_AccumulatesPerMonth(t *testing.T) {
	// GIVEN: two June contributions and one in July
	ctx := context.Background()
	fund, clock := newFund(t)

	require.NoError(t, fund.Contribute(ctx, member, 5000))
	require.NoError(t, fund.Contribute(ctx, member, 2500))
	clock.Set(time.Date(2023, time.July, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, fund.Contribute(ctx, member, 100))

	// THEN: June holds both amounts, the balance holds all three
	june, err := fund.Contribution(ctx, maintenance.ContributionKey{Contributor: member, Year: 2023, Month: time.June})
	require.NoError(t, err)
	assert.Equal(t, int64(7500), june.Amount)
	assert.Equal(t, june15, june.Date)

	balance, err := fund.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7600), balance)

	_, err = fund.Contribution(ctx, maintenance.ContributionKey{Contributor: member, Year: 2023, Month: time.May})
	assert.ErrorIs(t, err, maintenance.ErrNotFound)
}

func TestContribute_RejectsNonPositive(t *testing.T) {
	fund, _ := newFund(t)
	assert.ErrorIs(t, fund.Contribute(context.Background(), member, 0), maintenance.ErrInvalidAmount)
	assert.ErrorIs(t, fund.Contribute(context.Background(), member, -5), maintenance.ErrInvalidAmount)
}

// =============================================================================
// RECORD LIFECYCLE
// =============================================================================

func TestLifecycle_ProposeApproveStartComplete(t *testing.T) {
	// GIVEN: a fund holding $1000
	ctx := context.Background()
	fund, clock := newFund(t)
	require.NoError(t, fund.Contribute(ctx, member, 100000))

	// WHEN: cleaning is proposed at $500 and completed at $450
	id, err := fund.Propose(ctx, member, "Annual panel cleaning and inspection", 50000, contractor)
	require.NoError(t, err)
	assert.Equal(t, maintenance.RecordID(1), id)

	require.NoError(t, fund.Approve(ctx, fundOwner, id))
	require.NoError(t, fund.Start(ctx, fundOwner, id))
	clock.Advance(48 * time.Hour)
	require.NoError(t, fund.Complete(ctx, fundOwner, id, 45000))

	// THEN: the record is completed and only the actual cost is deducted
	r, err := fund.Record(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, maintenance.StatusCompleted, r.Status)
	assert.Equal(t, int64(50000), r.EstimatedCost)
	assert.Equal(t, int64(45000), r.ActualCost)
	assert.Equal(t, contractor, r.Contractor)
	assert.Equal(t, june15, r.ProposedAt)
	assert.Equal(t, june15.Add(48*time.Hour), r.CompletedAt)

	balance, err := fund.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(55000), balance)
}

func TestPropose_SequentialIDs(t *testing.T) {
	ctx := context.Background()
	fund, _ := newFund(t)

	for want := maintenance.RecordID(1); want <= 3; want++ {
		id, err := fund.Propose(ctx, member, "inverter check", 100, contractor)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}

	_, err := fund.Propose(ctx, member, "", 100, contractor)
	assert.ErrorIs(t, err, maintenance.ErrInvalidRecord)
	_, err = fund.Propose(ctx, member, "x", -1, contractor)
	assert.ErrorIs(t, err, maintenance.ErrInvalidAmount)
}

func TestApprove_RequiresFunds(t *testing.T) {
	ctx := context.Background()
	fund, _ := newFund(t)
	require.NoError(t, fund.Contribute(ctx, member, 1000))
	id, err := fund.Propose(ctx, member, "new inverter", 5000, contractor)
	require.NoError(t, err)

	err = fund.Approve(ctx, fundOwner, id)

	assert.ErrorIs(t, err, maintenance.ErrInsufficientFunds)
	var short *maintenance.InsufficientFundsError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, int64(1000), short.Balance)
	assert.Equal(t, int64(5000), short.Required)

	r, err := fund.Record(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, maintenance.StatusProposed, r.Status, "failed approval leaves the record untouched")
}

func TestComplete_RollsBackOnShortfall(t *testing.T) {
	// GIVEN: approved work whose actual cost exceeds the balance
	ctx := context.Background()
	fund, _ := newFund(t)
	require.NoError(t, fund.Contribute(ctx, member, 1000))
	id, err := fund.Propose(ctx, member, "roof repair", 1000, contractor)
	require.NoError(t, err)
	require.NoError(t, fund.Approve(ctx, fundOwner, id))

	// WHEN
	err = fund.Complete(ctx, fundOwner, id, 1500)

	// THEN: nothing changed
	assert.ErrorIs(t, err, maintenance.ErrInsufficientFunds)
	r, err := fund.Record(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, maintenance.StatusApproved, r.Status)
	balance, err := fund.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)
}

func TestIllegalStatusMoves(t *testing.T) {
	ctx := context.Background()
	fund, _ := newFund(t)
	require.NoError(t, fund.Contribute(ctx, member, 1000))
	id, err := fund.Propose(ctx, member, "wiring", 10, contractor)
	require.NoError(t, err)

	assert.ErrorIs(t, fund.Start(ctx, fundOwner, id), maintenance.ErrInvalidStatus)
	assert.ErrorIs(t, fund.Complete(ctx, fundOwner, id, 10), maintenance.ErrInvalidStatus)

	require.NoError(t, fund.Approve(ctx, fundOwner, id))
	assert.ErrorIs(t, fund.Approve(ctx, fundOwner, id), maintenance.ErrInvalidStatus)

	require.NoError(t, fund.Complete(ctx, fundOwner, id, 10))
	assert.ErrorIs(t, fund.Start(ctx, fundOwner, id), maintenance.ErrInvalidStatus)
	assert.ErrorIs(t, fund.Complete(ctx, fundOwner, id, 10), maintenance.ErrInvalidStatus)

	assert.ErrorIs(t, fund.Approve(ctx, fundOwner, 99), maintenance.ErrNotFound)
}

func TestOwnerOnlyOperations(t *testing.T) {
	ctx := context.Background()
	fund, _ := newFund(t)
	id, err := fund.Propose(ctx, member, "wiring", 0, contractor)
	require.NoError(t, err)

	assert.ErrorIs(t, fund.Approve(ctx, member, id), maintenance.ErrUnauthorized)
	assert.ErrorIs(t, fund.Start(ctx, member, id), maintenance.ErrUnauthorized)
	assert.ErrorIs(t, fund.Complete(ctx, member, id, 0), maintenance.ErrUnauthorized)
	assert.ErrorIs(t, fund.UpdateContributionRate(ctx, member, 15), maintenance.ErrUnauthorized)
}

// =============================================================================
// CONTRIBUTION RATE
// =============================================================================

func TestContributionRate(t *testing.T) {
	ctx := context.Background()
	fund, _ := newFund(t)

	rate, err := fund.ContributionRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, maintenance.DefaultContributionRate, rate)

	required, err := fund.RequiredContribution(ctx, 25000)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), required)

	require.NoError(t, fund.UpdateContributionRate(ctx, fundOwner, 15))
	required, err = fund.RequiredContribution(ctx, 333)
	require.NoError(t, err)
	assert.Equal(t, int64(49), required, "floor(333 * 15 / 100)")

	assert.ErrorIs(t, fund.UpdateContributionRate(ctx, fundOwner, 101), maintenance.ErrInvalidRate)
	assert.ErrorIs(t, fund.UpdateContributionRate(ctx, fundOwner, -1), maintenance.ErrInvalidRate)
}
