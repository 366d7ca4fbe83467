package maintenance

import (
	"context"
	"sync"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu            sync.RWMutex
	state         *State
	records       map[RecordID]Record
	contributions map[ContributionKey]Contribution
}

func NewMemory() *Memory {
	return &Memory{
		records:       make(map[RecordID]Record),
		contributions: make(map[ContributionKey]Contribution),
	}
}

func (m *Memory) LoadState(context.Context) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadStateLocked()
}

func (m *Memory) SaveState(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = &s
	return nil
}

func (m *Memory) LoadRecord(_ context.Context, id RecordID) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadRecordLocked(id)
}

func (m *Memory) SaveRecord(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = r
	return nil
}

func (m *Memory) LoadContribution(_ context.Context, key ContributionKey) (Contribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadContributionLocked(key)
}

func (m *Memory) SaveContribution(_ context.Context, key ContributionKey, c Contribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contributions[key] = c
	return nil
}

func (m *Memory) loadStateLocked() (State, error) {
	if m.state == nil {
		return State{}, ErrNotFound
	}
	return *m.state, nil
}

func (m *Memory) loadRecordLocked(id RecordID) (Record, error) {
	r, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) loadContributionLocked(key ContributionKey) (Contribution, error) {
	c, ok := m.contributions[key]
	if !ok {
		return Contribution{}, ErrNotFound
	}
	return c, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn under the write lock. Writes go straight to the maps
// and are undone from a snapshot when fn fails.
func (tm *TxMemory) WithTx(_ context.Context, fn func(Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snap := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	state         *State
	records       map[RecordID]Record
	contributions map[ContributionKey]Contribution
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		records:       make(map[RecordID]Record, len(tm.records)),
		contributions: make(map[ContributionKey]Contribution, len(tm.contributions)),
	}
	if tm.state != nil {
		st := *tm.state
		s.state = &st
	}
	for k, v := range tm.records {
		s.records[k] = v
	}
	for k, v := range tm.contributions {
		s.contributions[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.state = s.state
	tm.records = s.records
	tm.contributions = s.contributions
}

// txMemoryView accesses the parent maps without locking; WithTx holds the lock.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) LoadState(context.Context) (State, error) {
	return tv.parent.loadStateLocked()
}

func (tv *txMemoryView) SaveState(_ context.Context, s State) error {
	tv.parent.state = &s
	return nil
}

func (tv *txMemoryView) LoadRecord(_ context.Context, id RecordID) (Record, error) {
	return tv.parent.loadRecordLocked(id)
}

func (tv *txMemoryView) SaveRecord(_ context.Context, r Record) error {
	tv.parent.records[r.ID] = r
	return nil
}

func (tv *txMemoryView) LoadContribution(_ context.Context, key ContributionKey) (Contribution, error) {
	return tv.parent.loadContributionLocked(key)
}

func (tv *txMemoryView) SaveContribution(_ context.Context, key ContributionKey, c Contribution) error {
	tv.parent.contributions[key] = c
	return nil
}
