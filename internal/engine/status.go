package engine

import (
	"time"

	"espacios/internal/models"
)

// PartitionByStatus splits reservations into pending and expired
// relative to now. A record is expired once now is past its end
// instant. The partition is stable: each bucket keeps the input's
// relative order, and listings show pending first.
func PartitionByStatus(reservations []models.Reservation, now time.Time) (pending, expired []models.Reservation) {
	for _, r := range reservations {
		if r.ExpiredAt(now) {
			expired = append(expired, r)
		} else {
			pending = append(pending, r)
		}
	}
	return pending, expired
}
