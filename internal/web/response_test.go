// internal/web/response_test.go
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/fault"
)

func TestStatusForKind(t *testing.T) {
	cases := map[fault.Kind]int{
		fault.KindValidation:     http.StatusBadRequest,
		fault.KindStockExhausted: http.StatusBadRequest,
		fault.KindNotFound:       http.StatusNotFound,
		fault.KindConflict:       http.StatusConflict,
		fault.KindUnauthorized:   http.StatusUnauthorized,
		fault.KindRateLimited:    http.StatusTooManyRequests,
		fault.KindPersistence:    http.StatusInternalServerError,
		fault.KindUnknown:        http.StatusInternalServerError,
	}

	for kind, want := range cases {
		assert.Equal(t, want, StatusForKind(kind), "kind %s", kind)
	}
}

func TestErrorWritesClassifiedMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, fault.NotFound("book"), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var env Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Equal(t, "book not found", env.Message)
}

func TestErrorMasksInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, fault.Persistence("insert book", errors.New("pq: secret table missing")), nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var env Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Equal(t, "internal server error", env.Message)
	assert.NotContains(t, rec.Body.String(), "secret table")
}

func TestErrorSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("create loan: %w", fault.StockExhausted())
	rec := httptest.NewRecorder()
	Error(rec, wrapped, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessageEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Message(rec, http.StatusCreated, "book added successfully", map[string]int{"stock": 5}, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var env struct {
		Message string         `json:"message"`
		Data    map[string]int `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Equal(t, "book added successfully", env.Message)
	assert.Equal(t, 5, env.Data["stock"])
}

func TestMessageOmitsEmptyData(t *testing.T) {
	rec := httptest.NewRecorder()
	Message(rec, http.StatusOK, "loan deleted successfully", nil, nil)
	assert.NotContains(t, rec.Body.String(), `"data"`)
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Title string `json:"title"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title": "Dune"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "Dune", dst.Title)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{broken`))
	err := DecodeJSON(req, &dst)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindValidation))
}

func TestCheckStruct(t *testing.T) {
	type req struct {
		Email string `json:"email" validate:"required,email"`
	}
	v := validator.New()

	require.NoError(t, CheckStruct(v, req{Email: "a@example.com"}))

	err := CheckStruct(v, req{})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindValidation))
	assert.Contains(t, err.Error(), "required")

	err = CheckStruct(v, req{Email: "not-an-email"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
}
