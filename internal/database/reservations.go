package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"espacios/internal/engine"
	"espacios/internal/models"
)

// Insert persists a new reservation. The overlap check runs inside the
// same transaction as the write, so of two racing inserts for the same
// (date, resource) group at most one commits; the loser gets
// engine.ErrSlotTaken.
func (db *DB) Insert(ctx context.Context, r *models.Reservation) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	taken, err := groupHasOverlap(ctx, tx, r, 0)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, engine.ErrSlotTaken
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO reservations (
			name, surname, national_id, role, date, start_time,
			duration_minutes, resource, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Name, r.Surname, r.NationalID, r.Role, r.Date, r.StartTime,
		r.DurationMinutes, r.Resource, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	r.CreatedAt = now
	r.UpdatedAt = now
	return id, nil
}

// Update overwrites all mutable fields of the reservation, re-checking
// overlap (excluding the record itself) inside the same transaction.
func (db *DB) Update(ctx context.Context, r *models.Reservation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	taken, err := groupHasOverlap(ctx, tx, r, r.ID)
	if err != nil {
		return err
	}
	if taken {
		return engine.ErrSlotTaken
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE reservations
		SET name = ?, surname = ?, national_id = ?, role = ?,
		    date = ?, start_time = ?, duration_minutes = ?, resource = ?,
		    updated_at = ?
		WHERE id = ?`,
		r.Name, r.Surname, r.NationalID, r.Role,
		r.Date, r.StartTime, r.DurationMinutes, r.Resource,
		time.Now(), r.ID,
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return engine.ErrNotFound
	}

	return tx.Commit()
}

// groupHasOverlap scans the (date, resource) group within tx for any
// interval overlapping r's, or an identical start time. Arithmetic
// matches the engine's half-open minute intervals.
func groupHasOverlap(ctx context.Context, tx *sql.Tx, r *models.Reservation, excludeID int64) (bool, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT start_time, duration_minutes FROM reservations
		WHERE date = ? AND resource = ? AND id <> ?`,
		r.Date, r.Resource, excludeID,
	)
	if err != nil {
		return false, fmt.Errorf("scan group: %w", err)
	}
	defer rows.Close()

	candidate := r.Interval()
	for rows.Next() {
		var startTime string
		var duration int
		if err := rows.Scan(&startTime, &duration); err != nil {
			return false, fmt.Errorf("scan row: %w", err)
		}
		existing := (&models.Reservation{StartTime: startTime, DurationMinutes: duration}).Interval()
		if candidate.Overlaps(existing) || startTime == r.StartTime {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Delete removes a reservation by id.
func (db *DB) Delete(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, "DELETE FROM reservations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return engine.ErrNotFound
	}
	return nil
}

// GetByID returns a single reservation, or engine.ErrNotFound.
func (db *DB) GetByID(ctx context.Context, id int64) (*models.Reservation, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, surname, national_id, role, date, start_time,
		       duration_minutes, resource, created_at, updated_at
		FROM reservations WHERE id = ?`, id)

	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation %d: %w", id, err)
	}
	return r, nil
}

// ListAll returns every reservation, newest first, matching the
// listing order of the admin views.
func (db *DB) ListAll(ctx context.Context) ([]models.Reservation, error) {
	return db.list(ctx, `
		SELECT id, name, surname, national_id, role, date, start_time,
		       duration_minutes, resource, created_at, updated_at
		FROM reservations ORDER BY id DESC`)
}

// ListByDateAndResource returns the (date, resource) group in
// ascending id order, so the first reported conflict is deterministic.
// excludeID <= 0 means no exclusion.
func (db *DB) ListByDateAndResource(ctx context.Context, date, resource string, excludeID int64) ([]models.Reservation, error) {
	return db.list(ctx, `
		SELECT id, name, surname, national_id, role, date, start_time,
		       duration_minutes, resource, created_at, updated_at
		FROM reservations
		WHERE date = ? AND resource = ? AND id <> ?
		ORDER BY id ASC`,
		date, resource, excludeID)
}

// CountAll returns the total number of reservations.
func (db *DB) CountAll(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reservations").Scan(&count)
	return count, err
}

// CountByDate returns the number of reservations on a date.
func (db *DB) CountByDate(ctx context.Context, date string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reservations WHERE date = ?", date).Scan(&count)
	return count, err
}

func (db *DB) list(ctx context.Context, query string, args ...interface{}) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var r models.Reservation
	var surname, nationalID, role sql.NullString
	err := row.Scan(
		&r.ID, &r.Name, &surname, &nationalID, &role, &r.Date, &r.StartTime,
		&r.DurationMinutes, &r.Resource, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Surname = surname.String
	r.NationalID = nationalID.String
	r.Role = role.String
	return &r, nil
}
