package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"espacios/internal/engine"
	"espacios/internal/export"
	"espacios/internal/metrics"
	"espacios/internal/models"
)

const conflictsCacheKey = "dashboard:conflicts"

// ListResponse is the payload of GET /api/reservations: pending first,
// then expired, each preserving store order, plus the ids currently
// involved in a conflict so rows can be badged.
type ListResponse struct {
	Pending     []models.Reservation `json:"pending"`
	Expired     []models.Reservation `json:"expired"`
	ConflictIDs []int64              `json:"conflict_ids"`
}

// ConflictResponse is returned with 409 when a write is refused.
type ConflictResponse struct {
	Error    string                 `json:"error"`
	Conflict *models.ConflictDetail `json:"conflict"`
}

// handleReservations serves GET (listing) and POST (create) on
// /api/reservations.
func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listReservations(w, r)
	case http.MethodPost:
		s.createReservation(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) listReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_list")

	pending, expired, err := s.engine.ListWithStatus(r.Context(), time.Now())
	if err != nil {
		s.serverError(w, err)
		return
	}

	pairs, err := s.engine.ListConflicts(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}

	seen := make(map[int64]bool)
	conflictIDs := make([]int64, 0)
	for _, p := range pairs {
		for _, id := range []int64{p.FirstID, p.SecondID} {
			if !seen[id] {
				seen[id] = true
				conflictIDs = append(conflictIDs, id)
			}
		}
	}

	if pending == nil {
		pending = []models.Reservation{}
	}
	if expired == nil {
		expired = []models.Reservation{}
	}
	writeJSON(w, http.StatusOK, ListResponse{
		Pending:     pending,
		Expired:     expired,
		ConflictIDs: conflictIDs,
	})
}

func (s *HTTPServer) createReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_create")

	var cand engine.Candidate
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cand); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.engine.TryCreate(r.Context(), cand)
	if err != nil {
		s.serverError(w, err)
		return
	}

	switch {
	case result.Invalid != nil:
		writeError(w, http.StatusBadRequest, result.Invalid.Error())
	case result.Conflict != nil:
		metrics.IncConflictRejected()
		writeJSON(w, http.StatusConflict, ConflictResponse{
			Error:    result.Conflict.String(),
			Conflict: result.Conflict,
		})
	default:
		metrics.IncReservationCreated()
		s.cache.Invalidate(r.Context(), conflictsCacheKey)
		writeJSON(w, http.StatusCreated, result.Created)
	}
}

// handleReservationByID serves GET, PUT and DELETE on
// /api/reservations/{id}.
func (s *HTTPServer) handleReservationByID(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/reservations/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getReservation(w, r, id)
	case http.MethodPut:
		s.updateReservation(w, r, id)
	case http.MethodDelete:
		s.deleteReservation(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) getReservation(w http.ResponseWriter, r *http.Request, id int64) {
	metrics.IncHTTP("reservations_get")

	res, err := s.engine.Get(r.Context(), id)
	if errors.Is(err, engine.ErrNotFound) {
		writeError(w, http.StatusNotFound, "reservation not found")
		return
	}
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) updateReservation(w http.ResponseWriter, r *http.Request, id int64) {
	metrics.IncHTTP("reservations_update")

	var cand engine.Candidate
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cand); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.engine.TryUpdate(r.Context(), id, cand)
	if err != nil {
		s.serverError(w, err)
		return
	}

	switch {
	case result.NotFound:
		writeError(w, http.StatusNotFound, "reservation not found")
	case result.Invalid != nil:
		writeError(w, http.StatusBadRequest, result.Invalid.Error())
	case result.Conflict != nil:
		metrics.IncConflictRejected()
		writeJSON(w, http.StatusConflict, ConflictResponse{
			Error:    result.Conflict.String(),
			Conflict: result.Conflict,
		})
	default:
		metrics.IncReservationUpdated()
		s.cache.Invalidate(r.Context(), conflictsCacheKey)
		writeJSON(w, http.StatusOK, result.Updated)
	}
}

func (s *HTTPServer) deleteReservation(w http.ResponseWriter, r *http.Request, id int64) {
	metrics.IncHTTP("reservations_delete")

	err := s.engine.Delete(r.Context(), id)
	if errors.Is(err, engine.ErrNotFound) {
		writeError(w, http.StatusNotFound, "reservation not found")
		return
	}
	if err != nil {
		s.serverError(w, err)
		return
	}
	metrics.IncReservationDeleted()
	s.cache.Invalidate(r.Context(), conflictsCacheKey)
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// handleConflicts serves the dashboard scan on GET /api/conflicts,
// cached in Redis when configured.
func (s *HTTPServer) handleConflicts(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("conflicts")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var pairs []models.ConflictPair
	if !s.cache.Get(r.Context(), conflictsCacheKey, &pairs) {
		var err error
		pairs, err = s.engine.ListConflicts(r.Context())
		if err != nil {
			s.serverError(w, err)
			return
		}
		s.cache.Set(r.Context(), conflictsCacheKey, pairs)
	}

	if pairs == nil {
		pairs = []models.ConflictPair{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conflicts": pairs,
		"count":     len(pairs),
	})
}

// handleStats serves the dashboard counters on
// GET /api/stats?date=YYYY-MM-DD.
func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("stats")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	date := r.URL.Query().Get("date")
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
	}

	total, forDate, err := s.engine.Stats(r.Context(), date)
	if err != nil {
		s.serverError(w, err)
		return
	}

	payload := map[string]interface{}{"total": total}
	if date != "" {
		payload["date"] = date
		payload["for_date"] = forDate
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleExport streams the xlsx report on GET /api/reservations/export.
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pending, expired, err := s.engine.ListWithStatus(r.Context(), time.Now())
	if err != nil {
		s.serverError(w, err)
		return
	}
	pairs, err := s.engine.ListConflicts(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}

	filename := fmt.Sprintf("reservations_%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	report := export.Report{
		Reservations: append(pending, expired...),
		Conflicts:    pairs,
	}
	if err := export.WriteXLSX(w, report); err != nil && s.logger != nil {
		s.logger.Error().Err(err).Msg("export failed")
	}
}

func (s *HTTPServer) serverError(w http.ResponseWriter, err error) {
	if s.logger != nil {
		s.logger.Error().Err(err).Msg("internal error")
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}
