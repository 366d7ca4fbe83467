package energy

import (
	"context"
	"sort"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/warp/solar-credits/calendar"
)

type readingKey struct {
	Panel PanelID
	Date  calendar.Date
}

// MemoryStore keeps readings in a concurrent map (for testing/dev).
type MemoryStore struct {
	readings *xsync.Map[readingKey, Reading]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{readings: xsync.NewMap[readingKey, Reading]()}
}

func (m *MemoryStore) InsertReading(_ context.Context, r Reading) error {
	k := readingKey{Panel: r.PanelID, Date: r.Date}
	if _, loaded := m.readings.LoadOrStore(k, r); loaded {
		return &DuplicateReadingError{PanelID: r.PanelID, Date: r.Date}
	}
	return nil
}

func (m *MemoryStore) LoadReading(_ context.Context, panel PanelID, date calendar.Date) (Reading, error) {
	r, ok := m.readings.Load(readingKey{Panel: panel, Date: date})
	if !ok {
		return Reading{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) ReadingsInRange(_ context.Context, panel PanelID, from, to calendar.Date) ([]Reading, error) {
	var out []Reading
	m.readings.Range(func(k readingKey, r Reading) bool {
		if k.Panel == panel && !k.Date.Before(from) && !k.Date.After(to) {
			out = append(out, r)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}
