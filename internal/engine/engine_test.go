package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"espacios/internal/models"
)

func roomA(startTime string, duration int) Candidate {
	return Candidate{
		Name:            "Ana",
		Surname:         "García",
		NationalID:      "1234567",
		Role:            "teacher",
		Date:            "2025-03-01",
		StartTime:       startTime,
		DurationMinutes: duration,
		Resource:        "A",
	}
}

func TestTryCreate_ConflictScenario(t *testing.T) {
	eng := New(NewMemoryRepository(), nil)
	ctx := context.Background()

	// R1: 09:00 for 60 min -> [540, 600)
	first, err := eng.TryCreate(ctx, roomA("09:00", 60))
	require.NoError(t, err)
	require.NotNil(t, first.Created)

	// 09:30 for 30 min -> [570, 600) overlaps R1.
	res, err := eng.TryCreate(ctx, roomA("09:30", 30))
	require.NoError(t, err)
	require.NotNil(t, res.Conflict)
	assert.Nil(t, res.Created)
	assert.Equal(t, first.Created.ID, res.Conflict.ID)
	assert.Equal(t, "09:00", res.Conflict.StartTime)
	assert.Equal(t, models.Interval{Start: 570, End: 600}, res.Conflict.Window())

	// 10:00 for 30 min -> [600, 630) touches R1 and must succeed.
	res, err = eng.TryCreate(ctx, roomA("10:00", 30))
	require.NoError(t, err)
	assert.Nil(t, res.Conflict)
	require.NotNil(t, res.Created)
	assert.NotZero(t, res.Created.ID)
}

func TestTryCreate_DifferentGroupNeverConflicts(t *testing.T) {
	eng := New(NewMemoryRepository(), nil)
	ctx := context.Background()

	_, err := eng.TryCreate(ctx, roomA("09:00", 60))
	require.NoError(t, err)

	otherRoom := roomA("09:00", 60)
	otherRoom.Resource = "B"
	res, err := eng.TryCreate(ctx, otherRoom)
	require.NoError(t, err)
	assert.NotNil(t, res.Created)

	otherDay := roomA("09:00", 60)
	otherDay.Date = "2025-03-02"
	res, err = eng.TryCreate(ctx, otherDay)
	require.NoError(t, err)
	assert.NotNil(t, res.Created)
}

func TestTryCreate_DurationBounds(t *testing.T) {
	eng := New(NewMemoryRepository(), nil)
	ctx := context.Background()

	for _, duration := range []int{9, 481} {
		res, err := eng.TryCreate(ctx, roomA("09:00", duration))
		require.NoError(t, err)
		require.NotNil(t, res.Invalid, "duration %d must be rejected", duration)
		assert.Equal(t, "duration_minutes", res.Invalid.Field)
	}

	short := roomA("06:00", 10)
	res, err := eng.TryCreate(ctx, short)
	require.NoError(t, err)
	assert.NotNil(t, res.Created)

	long := roomA("08:00", 480)
	long.Date = "2025-04-01"
	res, err = eng.TryCreate(ctx, long)
	require.NoError(t, err)
	assert.NotNil(t, res.Created)
}

func TestTryCreate_Validation(t *testing.T) {
	eng := New(NewMemoryRepository(), nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		mut   func(*Candidate)
		field string
	}{
		{"missing name", func(c *Candidate) { c.Name = "  " }, "name"},
		{"missing resource", func(c *Candidate) { c.Resource = "" }, "resource"},
		{"bad date pattern", func(c *Candidate) { c.Date = "01/03/2025" }, "date"},
		{"impossible date", func(c *Candidate) { c.Date = "2025-13-40" }, "date"},
		{"bad time pattern", func(c *Candidate) { c.StartTime = "9:00" }, "start_time"},
		{"impossible time", func(c *Candidate) { c.StartTime = "25:99" }, "start_time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := roomA("09:00", 60)
			tt.mut(&cand)
			res, err := eng.TryCreate(ctx, cand)
			require.NoError(t, err)
			require.NotNil(t, res.Invalid)
			assert.Equal(t, tt.field, res.Invalid.Field)
		})
	}
}

func TestTryCreate_NormalizesInput(t *testing.T) {
	eng := New(NewMemoryRepository(), nil)

	cand := roomA("09:00", 60)
	cand.Name = "  Ana "
	cand.NationalID = "12.345.678"
	res, err := eng.TryCreate(context.Background(), cand)
	require.NoError(t, err)
	require.NotNil(t, res.Created)
	assert.Equal(t, "Ana", res.Created.Name)
	assert.Equal(t, "12345678", res.Created.NationalID)
}

func TestTryUpdate_SelfExclusion(t *testing.T) {
	eng := New(NewMemoryRepository(), nil)
	ctx := context.Background()

	created, err := eng.TryCreate(ctx, roomA("09:00", 60))
	require.NoError(t, err)
	require.NotNil(t, created.Created)

	// Re-submitting the exact same slot must not conflict with itself.
	res, err := eng.TryUpdate(ctx, created.Created.ID, roomA("09:00", 60))
	require.NoError(t, err)
	assert.Nil(t, res.Conflict)
	require.NotNil(t, res.Updated)
	assert.Equal(t, created.Created.ID, res.Updated.ID)
}

func TestTryUpdate_ConflictAndNotFound(t *testing.T) {
	eng := New(NewMemoryRepository(), nil)
	ctx := context.Background()

	first, err := eng.TryCreate(ctx, roomA("09:00", 60))
	require.NoError(t, err)
	second, err := eng.TryCreate(ctx, roomA("11:00", 60))
	require.NoError(t, err)

	// Moving the second on top of the first is refused.
	res, err := eng.TryUpdate(ctx, second.Created.ID, roomA("09:30", 60))
	require.NoError(t, err)
	require.NotNil(t, res.Conflict)
	assert.Equal(t, first.Created.ID, res.Conflict.ID)

	res, err = eng.TryUpdate(ctx, 9999, roomA("15:00", 60))
	require.NoError(t, err)
	assert.True(t, res.NotFound)
}

func TestDelete(t *testing.T) {
	eng := New(NewMemoryRepository(), nil)
	ctx := context.Background()

	created, err := eng.TryCreate(ctx, roomA("09:00", 60))
	require.NoError(t, err)

	require.NoError(t, eng.Delete(ctx, created.Created.ID))
	assert.ErrorIs(t, eng.Delete(ctx, created.Created.ID), ErrNotFound)

	// Deleting frees the slot.
	res, err := eng.TryCreate(ctx, roomA("09:00", 60))
	require.NoError(t, err)
	assert.NotNil(t, res.Created)
}

func TestInvariantPreservedAcrossWrites(t *testing.T) {
	repo := NewMemoryRepository()
	eng := New(repo, nil)
	ctx := context.Background()

	candidates := []Candidate{
		roomA("09:00", 60),
		roomA("09:30", 30), // refused
		roomA("10:00", 45),
		roomA("10:15", 30), // refused
		roomA("11:00", 60),
	}
	for _, cand := range candidates {
		_, err := eng.TryCreate(ctx, cand)
		require.NoError(t, err)
	}

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Empty(t, ScanAllConflicts(all))
}

func TestConcurrentCreate_AtMostOneWins(t *testing.T) {
	eng := New(NewMemoryRepository(), nil)
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	results := make([]CreateResult, attempts)
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = eng.TryCreate(ctx, roomA("09:00", 60))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	created, conflicts := 0, 0
	for _, res := range results {
		switch {
		case res.Created != nil:
			created++
		case res.Conflict != nil:
			conflicts++
		}
	}
	// The store's atomic re-check is the authority: exactly one write
	// commits no matter how the advisory checks interleave.
	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, conflicts)
}

func TestListWithStatus(t *testing.T) {
	repo := NewMemoryRepository()
	eng := New(repo, nil)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local)
	repo.Preload(
		models.Reservation{ID: 1, Date: "2025-03-01", StartTime: "09:00", DurationMinutes: 60, Resource: "A"},
		models.Reservation{ID: 2, Date: "2025-03-01", StartTime: "14:00", DurationMinutes: 60, Resource: "A"},
		models.Reservation{ID: 3, Date: "2025-03-01", StartTime: "10:00", DurationMinutes: 60, Resource: "B"},
	)

	pending, expired, err := eng.ListWithStatus(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(2), pending[0].ID)
	require.Len(t, expired, 2)
	// Store order (newest first) is preserved within the bucket.
	assert.Equal(t, int64(3), expired[0].ID)
	assert.Equal(t, int64(1), expired[1].ID)
}

type capturingBus struct {
	mu     sync.Mutex
	events []string
}

func (b *capturingBus) Publish(eventType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, eventType)
}

func TestLifecycleEvents(t *testing.T) {
	bus := &capturingBus{}
	eng := New(NewMemoryRepository(), bus)
	ctx := context.Background()

	created, err := eng.TryCreate(ctx, roomA("09:00", 60))
	require.NoError(t, err)
	_, err = eng.TryCreate(ctx, roomA("09:30", 30))
	require.NoError(t, err)
	_, err = eng.TryUpdate(ctx, created.Created.ID, roomA("16:00", 60))
	require.NoError(t, err)
	require.NoError(t, eng.Delete(ctx, created.Created.ID))

	assert.Equal(t, []string{
		EventReservationCreated,
		EventConflictRejected,
		EventReservationUpdated,
		EventReservationDeleted,
	}, bus.events)
}
