// Package store provides in-memory credit.TxStore implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/warp/solar-credits/credit"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	periods     map[credit.PeriodID]credit.ProductionPeriod
	allocations map[credit.PeriodID]map[credit.OwnerID]credit.CreditAllocation
	lastID      credit.PeriodID

	// One mutex per period, created on first use.
	locks *xsync.Map[credit.PeriodID, *sync.Mutex]
}

func NewMemory() *Memory {
	return &Memory{
		periods:     make(map[credit.PeriodID]credit.ProductionPeriod),
		allocations: make(map[credit.PeriodID]map[credit.OwnerID]credit.CreditAllocation),
		locks:       xsync.NewMap[credit.PeriodID, *sync.Mutex](),
	}
}

func (m *Memory) InsertPeriod(_ context.Context, p credit.ProductionPeriod) (credit.PeriodID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == 0 {
		p.ID = m.lastID + 1
	}
	if _, ok := m.periods[p.ID]; ok {
		return 0, fmt.Errorf("%w: %d", credit.ErrDuplicateID, p.ID)
	}
	m.periods[p.ID] = p
	if p.ID > m.lastID {
		m.lastID = p.ID
	}
	return p.ID, nil
}

func (m *Memory) LoadPeriod(_ context.Context, id credit.PeriodID) (credit.ProductionPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.periods[id]
	if !ok {
		return credit.ProductionPeriod{}, fmt.Errorf("%w: period %d", credit.ErrNotFound, id)
	}
	return p, nil
}

func (m *Memory) SavePeriod(_ context.Context, p credit.ProductionPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.savePeriodLocked(p)
}

func (m *Memory) ListPeriods(context.Context) ([]credit.ProductionPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]credit.ProductionPeriod, 0, len(m.periods))
	for _, p := range m.periods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) LoadAllocation(_ context.Context, period credit.PeriodID, owner credit.OwnerID) (credit.CreditAllocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.allocations[period][owner]
	if !ok {
		return credit.CreditAllocation{}, fmt.Errorf("%w: allocation %d/%s", credit.ErrNotFound, period, owner)
	}
	return a, nil
}

func (m *Memory) SaveAllocation(_ context.Context, a credit.CreditAllocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveAllocationLocked(a)
}

func (m *Memory) ListAllocations(_ context.Context, period credit.PeriodID) ([]credit.CreditAllocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]credit.CreditAllocation, 0, len(m.allocations[period]))
	for _, a := range m.allocations[period] {
		out = append(out, a)
	}
	sortAllocations(out)
	return out, nil
}

func (m *Memory) savePeriodLocked(p credit.ProductionPeriod) error {
	if _, ok := m.periods[p.ID]; !ok {
		return fmt.Errorf("%w: period %d", credit.ErrNotFound, p.ID)
	}
	m.periods[p.ID] = p
	return nil
}

func (m *Memory) saveAllocationLocked(a credit.CreditAllocation) error {
	if _, ok := m.periods[a.PeriodID]; !ok {
		return fmt.Errorf("%w: period %d", credit.ErrNotFound, a.PeriodID)
	}
	byOwner := m.allocations[a.PeriodID]
	if byOwner == nil {
		byOwner = make(map[credit.OwnerID]credit.CreditAllocation)
		m.allocations[a.PeriodID] = byOwner
	}
	byOwner[a.OwnerID] = a
	return nil
}

// =============================================================================
// PER-PERIOD TRANSACTIONS
// =============================================================================

// WithPeriod holds the period's mutex while fn runs. Writes are buffered in
// the view and applied together under the store lock when fn succeeds.
func (m *Memory) WithPeriod(_ context.Context, id credit.PeriodID, fn func(credit.Store) error) error {
	lock, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	lock.Lock()
	defer lock.Unlock()

	view := &periodView{
		parent:      m,
		id:          id,
		allocations: make(map[credit.OwnerID]credit.CreditAllocation),
	}
	if err := fn(view); err != nil {
		return err
	}
	return view.commit()
}

// periodView reads through to the parent and buffers writes for one period.
type periodView struct {
	parent      *Memory
	id          credit.PeriodID
	period      *credit.ProductionPeriod
	allocations map[credit.OwnerID]credit.CreditAllocation
}

func (v *periodView) InsertPeriod(ctx context.Context, p credit.ProductionPeriod) (credit.PeriodID, error) {
	return v.parent.InsertPeriod(ctx, p)
}

func (v *periodView) LoadPeriod(ctx context.Context, id credit.PeriodID) (credit.ProductionPeriod, error) {
	if id == v.id && v.period != nil {
		return *v.period, nil
	}
	return v.parent.LoadPeriod(ctx, id)
}

func (v *periodView) SavePeriod(_ context.Context, p credit.ProductionPeriod) error {
	if err := v.inScope(p.ID); err != nil {
		return err
	}
	v.period = &p
	return nil
}

func (v *periodView) ListPeriods(ctx context.Context) ([]credit.ProductionPeriod, error) {
	out, err := v.parent.ListPeriods(ctx)
	if err != nil || v.period == nil {
		return out, err
	}
	for i := range out {
		if out[i].ID == v.id {
			out[i] = *v.period
		}
	}
	return out, nil
}

func (v *periodView) LoadAllocation(ctx context.Context, period credit.PeriodID, owner credit.OwnerID) (credit.CreditAllocation, error) {
	if period == v.id {
		if a, ok := v.allocations[owner]; ok {
			return a, nil
		}
	}
	return v.parent.LoadAllocation(ctx, period, owner)
}

func (v *periodView) SaveAllocation(_ context.Context, a credit.CreditAllocation) error {
	if err := v.inScope(a.PeriodID); err != nil {
		return err
	}
	v.allocations[a.OwnerID] = a
	return nil
}

func (v *periodView) ListAllocations(ctx context.Context, period credit.PeriodID) ([]credit.CreditAllocation, error) {
	out, err := v.parent.ListAllocations(ctx, period)
	if err != nil || period != v.id || len(v.allocations) == 0 {
		return out, err
	}
	merged := make(map[credit.OwnerID]credit.CreditAllocation, len(out)+len(v.allocations))
	for _, a := range out {
		merged[a.OwnerID] = a
	}
	for owner, a := range v.allocations {
		merged[owner] = a
	}
	out = out[:0]
	for _, a := range merged {
		out = append(out, a)
	}
	sortAllocations(out)
	return out, nil
}

func (v *periodView) inScope(id credit.PeriodID) error {
	if id != v.id {
		return fmt.Errorf("write to period %d inside transaction for period %d", id, v.id)
	}
	return nil
}

func (v *periodView) commit() error {
	if v.period == nil && len(v.allocations) == 0 {
		return nil
	}
	m := v.parent
	m.mu.Lock()
	defer m.mu.Unlock()

	if v.period != nil {
		if err := m.savePeriodLocked(*v.period); err != nil {
			return err
		}
	}
	for _, a := range v.allocations {
		if err := m.saveAllocationLocked(a); err != nil {
			return err
		}
	}
	return nil
}

func sortAllocations(allocs []credit.CreditAllocation) {
	sort.Slice(allocs, func(i, j int) bool { return allocs[i].OwnerID < allocs[j].OwnerID })
}
