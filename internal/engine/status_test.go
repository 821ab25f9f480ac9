package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"espacios/internal/models"
)

func TestPartitionByStatus_Stable(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local)

	input := []models.Reservation{
		reservation(1, "2025-03-01", "08:00", 60, "A"), // expired
		reservation(2, "2025-03-01", "15:00", 60, "A"), // pending
		reservation(3, "2025-03-01", "09:00", 60, "B"), // expired
	}

	pending, expired := PartitionByStatus(input, now)

	require.Len(t, pending, 1)
	assert.Equal(t, int64(2), pending[0].ID)

	// Expired entries keep their input order.
	require.Len(t, expired, 2)
	assert.Equal(t, int64(1), expired[0].ID)
	assert.Equal(t, int64(3), expired[1].ID)
}

func TestPartitionByStatus_BoundaryIsPending(t *testing.T) {
	// Ends at exactly 12:00; now == end instant is not yet expired.
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local)
	r := reservation(1, "2025-03-01", "11:00", 60, "A")

	pending, expired := PartitionByStatus([]models.Reservation{r}, now)
	assert.Len(t, pending, 1)
	assert.Empty(t, expired)
}

func TestPartitionByStatus_CurrentlyRunningIsPending(t *testing.T) {
	now := time.Date(2025, 3, 1, 11, 30, 0, 0, time.Local)
	r := reservation(1, "2025-03-01", "11:00", 60, "A")

	pending, _ := PartitionByStatus([]models.Reservation{r}, now)
	assert.Len(t, pending, 1)
}

func TestPartitionByStatus_Empty(t *testing.T) {
	pending, expired := PartitionByStatus(nil, time.Now())
	assert.Empty(t, pending)
	assert.Empty(t, expired)
}
