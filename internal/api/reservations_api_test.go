package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"espacios/internal/engine"
	"espacios/internal/models"
)

func newTestServer() *HTTPServer {
	logger := zerolog.New(io.Discard)
	eng := engine.New(engine.NewMemoryRepository(), nil)
	// Rate limiting disabled, no cache.
	return NewHTTPServer(eng, nil, &logger, 0, 0)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func candidateBody(startTime string, duration int) map[string]interface{} {
	return map[string]interface{}{
		"name":             "Ana",
		"surname":          "García",
		"national_id":      "1234567",
		"role":             "teacher",
		"date":             "2025-03-01",
		"start_time":       startTime,
		"duration_minutes": duration,
		"resource":         "A",
	}
}

func TestCreateReservationEndpoint(t *testing.T) {
	handler := newTestServer().Routes()

	rec := doJSON(t, handler, http.MethodPost, "/api/reservations", candidateBody("09:00", 60))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, "09:00", created.StartTime)

	// Overlapping slot is refused with the conflicting record's detail.
	rec = doJSON(t, handler, http.MethodPost, "/api/reservations", candidateBody("09:30", 30))
	require.Equal(t, http.StatusConflict, rec.Code)

	var conflict ConflictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conflict))
	require.NotNil(t, conflict.Conflict)
	assert.Equal(t, created.ID, conflict.Conflict.ID)
	assert.Contains(t, conflict.Error, "between 09:00 and 10:00")

	// Back-to-back booking succeeds.
	rec = doJSON(t, handler, http.MethodPost, "/api/reservations", candidateBody("10:00", 30))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateReservation_Validation(t *testing.T) {
	handler := newTestServer().Routes()

	body := candidateBody("09:00", 5)
	rec := doJSON(t, handler, http.MethodPost, "/api/reservations", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body = candidateBody("9am", 60)
	rec = doJSON(t, handler, http.MethodPost, "/api/reservations", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/reservations", map[string]interface{}{"unknown_field": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateReservationEndpoint(t *testing.T) {
	handler := newTestServer().Routes()

	rec := doJSON(t, handler, http.MethodPost, "/api/reservations", candidateBody("09:00", 60))
	require.Equal(t, http.StatusCreated, rec.Code)

	// Same slot, own id excluded: no self-conflict.
	rec = doJSON(t, handler, http.MethodPut, "/api/reservations/1", candidateBody("09:00", 60))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPut, "/api/reservations/42", candidateBody("09:00", 60))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteReservationEndpoint(t *testing.T) {
	handler := newTestServer().Routes()

	rec := doJSON(t, handler, http.MethodPost, "/api/reservations", candidateBody("09:00", 60))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, http.MethodDelete, "/api/reservations/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodDelete, "/api/reservations/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, handler, http.MethodDelete, "/api/reservations/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListReservationsEndpoint(t *testing.T) {
	handler := newTestServer().Routes()

	// One far-future booking and one overlap refusal.
	body := candidateBody("09:00", 60)
	body["date"] = "2099-01-01"
	rec := doJSON(t, handler, http.MethodPost, "/api/reservations", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/reservations", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Pending, 1)
	assert.Empty(t, list.Expired)
	assert.Empty(t, list.ConflictIDs)
}

func TestConflictsEndpoint(t *testing.T) {
	handler := newTestServer().Routes()

	rec := doJSON(t, handler, http.MethodGet, "/api/conflicts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Conflicts []models.ConflictPair `json:"conflicts"`
		Count     int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Zero(t, payload.Count)
	assert.NotNil(t, payload.Conflicts)

	rec = doJSON(t, handler, http.MethodPost, "/api/conflicts", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	handler := newTestServer().Routes()

	rec := doJSON(t, handler, http.MethodPost, "/api/reservations", candidateBody("09:00", 60))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/stats?date=2025-03-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		Total   int    `json:"total"`
		Date    string `json:"date"`
		ForDate int    `json:"for_date"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ForDate)

	rec = doJSON(t, handler, http.MethodGet, "/api/stats?date=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportEndpoint(t *testing.T) {
	handler := newTestServer().Routes()

	rec := doJSON(t, handler, http.MethodPost, "/api/reservations", candidateBody("09:00", 60))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/reservations/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotZero(t, rec.Body.Len())
}

func TestRequestIDHeader(t *testing.T) {
	handler := newTestServer().Routes()
	rec := doJSON(t, handler, http.MethodGet, "/api/conflicts", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	logger := zerolog.New(io.Discard)
	eng := engine.New(engine.NewMemoryRepository(), nil)
	server := NewHTTPServer(eng, nil, &logger, 1, 1)
	handler := server.Routes()

	first := doJSON(t, handler, http.MethodGet, "/api/conflicts", nil)
	assert.Equal(t, http.StatusOK, first.Code)

	// Burst of 1 exhausted; the second immediate request is throttled.
	second := doJSON(t, handler, http.MethodGet, "/api/conflicts", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
