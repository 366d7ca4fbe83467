package ownership_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/solar-credits/ownership"
)

const admin = "coop-admin"

func newRegistry(t *testing.T) *ownership.Registry {
	t.Helper()
	r := ownership.NewRegistry(ownership.NewMemoryStore(), admin, nil)
	require.NoError(t, r.Assign(context.Background(), admin, map[ownership.OwnerID]int{
		"alice": 25,
		"bob":   60,
		"carol": 15,
	}))
	return r
}

func TestAssign_TableIsSortedAndQueryable(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	owners, err := r.Owners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ownership.Share{
		{OwnerID: "alice", Percentage: 25},
		{OwnerID: "bob", Percentage: 60},
		{OwnerID: "carol", Percentage: 15},
	}, owners)

	pct, err := r.Percentage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 25, pct)

	_, err = r.Percentage(ctx, "dave")
	assert.ErrorIs(t, err, ownership.ErrOwnerNotFound)
}

func TestAssign_RejectsTablesNotSummingTo100(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	cases := []map[ownership.OwnerID]int{
		{"alice": 50, "bob": 49},
		{"alice": 50, "bob": 51},
		{"alice": 100, "bob": 0},
		{"": 100},
		{},
	}
	for _, shares := range cases {
		assert.ErrorIs(t, r.Assign(ctx, admin, shares), ownership.ErrInvalidShares, "%v", shares)
	}

	// Original table survives the rejected writes.
	pct, err := r.Percentage(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 60, pct)
}

func TestAssign_OnlyAdmin(t *testing.T) {
	r := newRegistry(t)
	err := r.Assign(context.Background(), "mallory", map[ownership.OwnerID]int{"mallory": 100})
	assert.ErrorIs(t, err, ownership.ErrUnauthorized)
}

func TestTransfer_KeepsTotalAt100(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	require.NoError(t, r.Transfer(ctx, admin, "carol", "dave", 15))

	owners, err := r.Owners(ctx)
	require.NoError(t, err)
	total := 0
	for _, s := range owners {
		total += s.Percentage
	}
	assert.Equal(t, 100, total)

	_, err = r.Percentage(ctx, "carol")
	assert.ErrorIs(t, err, ownership.ErrOwnerNotFound, "owner with nothing left is dropped")
	pct, err := r.Percentage(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, 15, pct)
}

func TestTransfer_Errors(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	assert.ErrorIs(t, r.Transfer(ctx, admin, "alice", "bob", 26), ownership.ErrInsufficientShare)
	assert.ErrorIs(t, r.Transfer(ctx, admin, "zed", "bob", 1), ownership.ErrOwnerNotFound)
	assert.ErrorIs(t, r.Transfer(ctx, admin, "alice", "alice", 1), ownership.ErrInvalidShares)
	assert.ErrorIs(t, r.Transfer(ctx, admin, "alice", "bob", 0), ownership.ErrInvalidShares)
}
