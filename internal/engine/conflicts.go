package engine

import (
	"context"
	"fmt"

	"espacios/internal/models"
)

// FindConflict returns the first existing reservation in the
// candidate's (date, resource) group whose interval overlaps the
// candidate's, or nil when the slot is free. "First" follows the
// store's ascending-id iteration. excludeID, when positive, skips the
// record being updated.
func (e *Engine) FindConflict(ctx context.Context, cand Candidate, excludeID int64) (*models.ConflictDetail, error) {
	return e.scanGroup(ctx, cand, excludeID, false)
}

// ExistsConflict is the boolean variant of FindConflict. It applies
// one extra rule: an identical (date, startTime, resource) tuple is
// always a conflict, regardless of duration, so even a degenerate
// zero-width duplicate is caught.
func (e *Engine) ExistsConflict(ctx context.Context, cand Candidate, excludeID int64) (bool, error) {
	detail, err := e.scanGroup(ctx, cand, excludeID, true)
	return detail != nil, err
}

// scanGroup fetches the candidate's group and returns the first
// conflicting record. With duplicateRule set, an equal start time
// matches even when the intervals would not overlap.
func (e *Engine) scanGroup(ctx context.Context, cand Candidate, excludeID int64, duplicateRule bool) (*models.ConflictDetail, error) {
	group, err := e.repo.ListByDateAndResource(ctx, cand.Date, cand.Resource, excludeID)
	if err != nil {
		return nil, fmt.Errorf("list group %s/%s: %w", cand.Date, cand.Resource, err)
	}

	start := models.MinuteOfDay(cand.StartTime)
	candidate := models.Interval{Start: start, End: start + cand.DurationMinutes}

	for i := range group {
		existing := group[i].Interval()
		if candidate.Overlaps(existing) || (duplicateRule && group[i].StartTime == cand.StartTime) {
			return &models.ConflictDetail{
				ID:              group[i].ID,
				StartTime:       group[i].StartTime,
				DurationMinutes: group[i].EffectiveDuration(),
				ExistingStart:   existing.Start,
				ExistingEnd:     existing.End,
				CandidateStart:  candidate.Start,
				CandidateEnd:    candidate.End,
			}, nil
		}
	}
	return nil, nil
}

// ScanAllConflicts groups the full reservation set by (date, resource)
// and reports every overlapping pair. Comparison is all-pairs within
// each group; group sizes are bookings per space per day, small in
// practice.
func ScanAllConflicts(reservations []models.Reservation) []models.ConflictPair {
	groups := make(map[string][]models.Reservation)
	var order []string
	for _, r := range reservations {
		key := r.GroupKey()
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}

	var pairs []models.ConflictPair
	for _, key := range order {
		items := groups[key]
		for i := 0; i < len(items); i++ {
			for j := i + 1; j < len(items); j++ {
				if !items[i].Interval().Overlaps(items[j].Interval()) {
					continue
				}
				pair := models.ConflictPair{
					Date:           items[i].Date,
					Resource:       items[i].Resource,
					FirstID:        items[i].ID,
					FirstStart:     items[i].StartTime,
					FirstDuration:  items[i].EffectiveDuration(),
					SecondID:       items[j].ID,
					SecondStart:    items[j].StartTime,
					SecondDuration: items[j].EffectiveDuration(),
				}
				pair.MoveID, pair.SuggestedStart = Suggest(&items[i], &items[j])
				pairs = append(pairs, pair)
			}
		}
	}
	return pairs
}

// Suggest proposes a non-overlapping start for the later of two
// conflicting reservations: the earlier one's end minute, formatted
// HH:MM. Equal starts break by id, lower id counted as earlier. The
// suggestion only considers this pair; it is not validated against
// other reservations.
func Suggest(a, b *models.Reservation) (moveID int64, suggestedStart string) {
	earlier, later := a, b
	ia, ib := a.Interval(), b.Interval()
	if ib.Start < ia.Start || (ib.Start == ia.Start && b.ID < a.ID) {
		earlier, later = b, a
	}
	return later.ID, models.FormatMinute(earlier.Interval().End)
}
