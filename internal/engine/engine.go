// Package engine implements the booking conflict engine: candidate
// validation, overlap detection against the reservation store, the
// global conflict scan used by dashboards, and the pending/expired
// lifecycle partition. The engine does no logging and no presentation;
// it returns discriminated results and leaves both to the boundary
// layer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"espacios/internal/models"
)

// Store-level outcomes the engine distinguishes from plain
// infrastructure failures. The SQLite store returns ErrSlotTaken when
// its transactional overlap re-check rejects a racing write.
var (
	ErrNotFound  = errors.New("reservation not found")
	ErrSlotTaken = errors.New("slot already taken")
)

// Repository is the reservation store boundary the engine is written
// against. ListByDateAndResource must iterate in ascending id order so
// "first conflict" is deterministic; excludeID <= 0 means no exclusion.
type Repository interface {
	Insert(ctx context.Context, r *models.Reservation) (int64, error)
	Update(ctx context.Context, r *models.Reservation) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*models.Reservation, error)
	ListAll(ctx context.Context) ([]models.Reservation, error)
	ListByDateAndResource(ctx context.Context, date, resource string, excludeID int64) ([]models.Reservation, error)
	CountAll(ctx context.Context) (int, error)
	CountByDate(ctx context.Context, date string) (int, error)
}

// EventPublisher receives lifecycle notifications after successful
// writes. May be nil.
type EventPublisher interface {
	Publish(eventType string, payload interface{})
}

// Event types published by the engine.
const (
	EventReservationCreated = "reservation.created"
	EventReservationUpdated = "reservation.updated"
	EventReservationDeleted = "reservation.deleted"
	EventConflictRejected   = "reservation.conflict"
)

// Engine coordinates validation, conflict checks and store writes.
type Engine struct {
	repo   Repository
	events EventPublisher
}

// New builds an engine over the given store. events may be nil.
func New(repo Repository, events EventPublisher) *Engine {
	return &Engine{repo: repo, events: events}
}

// Candidate carries the validated-from-input fields of a reservation
// to be created or updated.
type Candidate struct {
	Name            string `json:"name"`
	Surname         string `json:"surname"`
	NationalID      string `json:"national_id"`
	Role            string `json:"role"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Resource        string `json:"resource"`
}

// ValidationError names the field that failed pre-store validation.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// CreateResult is the discriminated outcome of TryCreate. Exactly one
// field is set.
type CreateResult struct {
	Created  *models.Reservation
	Conflict *models.ConflictDetail
	Invalid  *ValidationError
}

// UpdateResult is the discriminated outcome of TryUpdate.
type UpdateResult struct {
	Updated  *models.Reservation
	Conflict *models.ConflictDetail
	Invalid  *ValidationError
	NotFound bool
}

// TryCreate validates the candidate, runs the advisory conflict check
// and persists the reservation. The store's transactional re-check is
// the actual invariant authority: if a racing write slips past the
// advisory check, Insert returns ErrSlotTaken and the finder is re-run
// to produce the detail.
func (e *Engine) TryCreate(ctx context.Context, cand Candidate) (CreateResult, error) {
	cand.normalize()
	if verr := cand.validate(); verr != nil {
		return CreateResult{Invalid: verr}, nil
	}

	detail, err := e.scanGroup(ctx, cand, 0, true)
	if err != nil {
		return CreateResult{}, fmt.Errorf("conflict check: %w", err)
	}
	if detail != nil {
		e.publish(EventConflictRejected, detail)
		return CreateResult{Conflict: detail}, nil
	}

	now := time.Now()
	r := cand.toReservation(0, now, now)
	id, err := e.repo.Insert(ctx, r)
	if errors.Is(err, ErrSlotTaken) {
		return e.conflictAfterRace(ctx, cand, 0)
	}
	if err != nil {
		return CreateResult{}, fmt.Errorf("insert reservation: %w", err)
	}
	r.ID = id

	e.publish(EventReservationCreated, r)
	return CreateResult{Created: r}, nil
}

// TryUpdate re-runs the same check with the record's own id excluded,
// so a reservation never conflicts with its prior state.
func (e *Engine) TryUpdate(ctx context.Context, id int64, cand Candidate) (UpdateResult, error) {
	cand.normalize()
	if verr := cand.validate(); verr != nil {
		return UpdateResult{Invalid: verr}, nil
	}

	existing, err := e.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return UpdateResult{NotFound: true}, nil
	}
	if err != nil {
		return UpdateResult{}, fmt.Errorf("load reservation %d: %w", id, err)
	}

	detail, err := e.scanGroup(ctx, cand, id, true)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("conflict check: %w", err)
	}
	if detail != nil {
		e.publish(EventConflictRejected, detail)
		return UpdateResult{Conflict: detail}, nil
	}

	r := cand.toReservation(id, existing.CreatedAt, time.Now())
	err = e.repo.Update(ctx, r)
	switch {
	case errors.Is(err, ErrSlotTaken):
		res, ferr := e.conflictAfterRace(ctx, cand, id)
		return UpdateResult{Conflict: res.Conflict}, ferr
	case errors.Is(err, ErrNotFound):
		return UpdateResult{NotFound: true}, nil
	case err != nil:
		return UpdateResult{}, fmt.Errorf("update reservation %d: %w", id, err)
	}

	e.publish(EventReservationUpdated, r)
	return UpdateResult{Updated: r}, nil
}

// Delete removes a reservation unconditionally; dropping a record can
// only reduce overlaps, so there is no invariant check.
func (e *Engine) Delete(ctx context.Context, id int64) error {
	if err := e.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete reservation %d: %w", id, err)
	}
	e.publish(EventReservationDeleted, id)
	return nil
}

// Get returns a single reservation by id, or ErrNotFound.
func (e *Engine) Get(ctx context.Context, id int64) (*models.Reservation, error) {
	return e.repo.GetByID(ctx, id)
}

// ListWithStatus returns all reservations partitioned into pending
// and expired relative to now, each bucket preserving store order.
func (e *Engine) ListWithStatus(ctx context.Context, now time.Time) (pending, expired []models.Reservation, err error) {
	all, err := e.repo.ListAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list reservations: %w", err)
	}
	pending, expired = PartitionByStatus(all, now)
	return pending, expired, nil
}

// ListConflicts runs the global all-pairs scan over the whole
// reservation set.
func (e *Engine) ListConflicts(ctx context.Context) ([]models.ConflictPair, error) {
	all, err := e.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return ScanAllConflicts(all), nil
}

// Stats reports the dashboard counters: total reservations and, when
// date is non-empty, the count for that date.
func (e *Engine) Stats(ctx context.Context, date string) (total, forDate int, err error) {
	total, err = e.repo.CountAll(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("count reservations: %w", err)
	}
	if date != "" {
		forDate, err = e.repo.CountByDate(ctx, date)
		if err != nil {
			return 0, 0, fmt.Errorf("count reservations for %s: %w", date, err)
		}
	}
	return total, forDate, nil
}

// conflictAfterRace rebuilds a ConflictDetail after the store rejected
// a racing write. The winning row is committed by then, so the finder
// sees it.
func (e *Engine) conflictAfterRace(ctx context.Context, cand Candidate, excludeID int64) (CreateResult, error) {
	detail, err := e.scanGroup(ctx, cand, excludeID, true)
	if err != nil {
		return CreateResult{}, fmt.Errorf("conflict check after rejected write: %w", err)
	}
	if detail == nil {
		// The winner was deleted in between; the caller may simply retry.
		return CreateResult{}, fmt.Errorf("insert reservation: %w", ErrSlotTaken)
	}
	e.publish(EventConflictRejected, detail)
	return CreateResult{Conflict: detail}, nil
}

func (e *Engine) publish(eventType string, payload interface{}) {
	if e.events != nil {
		e.events.Publish(eventType, payload)
	}
}

func (c Candidate) toReservation(id int64, createdAt, updatedAt time.Time) *models.Reservation {
	return &models.Reservation{
		ID:              id,
		Name:            c.Name,
		Surname:         c.Surname,
		NationalID:      c.NationalID,
		Role:            c.Role,
		Date:            c.Date,
		StartTime:       c.StartTime,
		DurationMinutes: c.DurationMinutes,
		Resource:        c.Resource,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}
}
