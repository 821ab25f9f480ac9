package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"espacios/internal/models"
)

// MemoryRepository is a mutex-guarded in-memory Repository. It honors
// the same contract as the SQLite store: Insert and Update re-check
// overlap atomically and return ErrSlotTaken on a race, so of two
// concurrent writes for the same group at most one wins. Used for
// tests and ephemeral deployments.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]models.Reservation
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1, items: make(map[int64]models.Reservation)}
}

// Preload loads records verbatim, bypassing overlap checks. Meant for
// legacy or imported data that predates the invariant.
func (m *MemoryRepository) Preload(reservations ...models.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range reservations {
		if r.ID == 0 {
			r.ID = m.nextID
		}
		if r.ID >= m.nextID {
			m.nextID = r.ID + 1
		}
		m.items[r.ID] = r
	}
}

func (m *MemoryRepository) Insert(_ context.Context, r *models.Reservation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.groupHasOverlap(r, 0) {
		return 0, ErrSlotTaken
	}

	id := m.nextID
	m.nextID++
	stored := *r
	stored.ID = id
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.items[id] = stored
	return id, nil
}

func (m *MemoryRepository) Update(_ context.Context, r *models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[r.ID]; !ok {
		return ErrNotFound
	}
	if m.groupHasOverlap(r, r.ID) {
		return ErrSlotTaken
	}

	stored := *r
	stored.UpdatedAt = time.Now()
	m.items[r.ID] = stored
	return nil
}

func (m *MemoryRepository) groupHasOverlap(r *models.Reservation, excludeID int64) bool {
	candidate := r.Interval()
	for id, existing := range m.items {
		if id == excludeID || existing.Date != r.Date || existing.Resource != r.Resource {
			continue
		}
		if candidate.Overlaps(existing.Interval()) || existing.StartTime == r.StartTime {
			return true
		}
	}
	return false
}

func (m *MemoryRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id int64) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

// ListAll returns every reservation, newest first, matching the SQLite
// store's listing order.
func (m *MemoryRepository) ListAll(_ context.Context) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Reservation, 0, len(m.items))
	for _, r := range m.items {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// ListByDateAndResource returns the group in ascending id order.
func (m *MemoryRepository) ListByDateAndResource(_ context.Context, date, resource string, excludeID int64) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Reservation
	for id, r := range m.items {
		if id == excludeID || r.Date != date || r.Resource != resource {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) CountAll(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

func (m *MemoryRepository) CountByDate(_ context.Context, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, r := range m.items {
		if r.Date == date {
			count++
		}
	}
	return count, nil
}
