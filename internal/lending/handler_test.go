// internal/lending/handler_test.go
package lending

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/fault"
)

// stubService scripts service responses for handler tests.
type stubService struct {
	createFn func(ctx context.Context, input CreateLoanInput) (*Loan, error)
	getFn    func(ctx context.Context, id uuid.UUID) (*Loan, error)
	listFn   func(ctx context.Context, filter ListFilter) ([]*Loan, error)
	setFn    func(ctx context.Context, id uuid.UUID, returnDate *string) (*Loan, error)
	deleteFn func(ctx context.Context, id uuid.UUID) error
}

func (s *stubService) Create(ctx context.Context, input CreateLoanInput) (*Loan, error) {
	return s.createFn(ctx, input)
}

func (s *stubService) Get(ctx context.Context, id uuid.UUID) (*Loan, error) {
	return s.getFn(ctx, id)
}

func (s *stubService) List(ctx context.Context, filter ListFilter) ([]*Loan, error) {
	return s.listFn(ctx, filter)
}

func (s *stubService) SetReturnDate(ctx context.Context, id uuid.UUID, returnDate *string) (*Loan, error) {
	return s.setFn(ctx, id, returnDate)
}

func (s *stubService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.deleteFn(ctx, id)
}

func newTestRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	NewHandler(svc, validator.New(), logger).Register(r)
	return r
}

func TestHandleCreateLoan(t *testing.T) {
	loan := &Loan{
		ID:       uuid.New(),
		BookID:   uuid.New(),
		UserID:   uuid.New(),
		LoanDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	svc := &stubService{
		createFn: func(ctx context.Context, input CreateLoanInput) (*Loan, error) {
			assert.Equal(t, loan.BookID.String(), input.BookID)
			assert.Equal(t, loan.UserID.String(), input.UserID)
			return loan, nil
		},
	}
	router := newTestRouter(svc)

	body, _ := json.Marshal(map[string]string{
		"book_id":   loan.BookID.String(),
		"user_id":   loan.UserID.String(),
		"loan_date": "2024-03-01",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/loans/", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Message string `json:"message"`
		Data    *Loan  `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "loan created successfully", resp.Message)
	require.NotNil(t, resp.Data)
	assert.Equal(t, loan.ID, resp.Data.ID)
}

func TestHandleCreateLoanErrors(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{"malformed body", `{not json`, nil, http.StatusBadRequest},
		{"missing fields", `{"book_id": ""}`, nil, http.StatusBadRequest},
		{"stock exhausted", validCreateBody(), fault.StockExhausted(), http.StatusBadRequest},
		{"unknown book", validCreateBody(), fault.NotFound("book"), http.StatusNotFound},
		{"storage failure", validCreateBody(), fault.Persistence("insert loan", assert.AnError), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{
				createFn: func(ctx context.Context, input CreateLoanInput) (*Loan, error) {
					return nil, tc.serviceErr
				},
			}
			router := newTestRouter(svc)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/loans/", bytes.NewBufferString(tc.body)))
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestHandleCreateLoanMasksInternalErrors(t *testing.T) {
	svc := &stubService{
		createFn: func(ctx context.Context, input CreateLoanInput) (*Loan, error) {
			return nil, fault.Persistence("insert loan", assert.AnError)
		},
	}
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/loans/", bytes.NewBufferString(validCreateBody())))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "internal server error", resp.Message)
}

func TestHandleGetLoan(t *testing.T) {
	loan := &Loan{ID: uuid.New(), LoanDate: time.Now().UTC()}
	svc := &stubService{
		getFn: func(ctx context.Context, id uuid.UUID) (*Loan, error) {
			if id == loan.ID {
				return loan, nil
			}
			return nil, fault.NotFound("loan")
		},
	}
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/loans/"+loan.ID.String()+"/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got Loan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, loan.ID, got.ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/loans/"+uuid.NewString()+"/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/loans/not-a-uuid/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListLoansParsesFilters(t *testing.T) {
	bookID := uuid.New()
	var seen ListFilter
	svc := &stubService{
		listFn: func(ctx context.Context, filter ListFilter) ([]*Loan, error) {
			seen = filter
			return []*Loan{}, nil
		},
	}
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/loans/?book_id="+bookID.String()+"&status=open", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen.BookID)
	assert.Equal(t, bookID, *seen.BookID)
	assert.Equal(t, StatusOpen, seen.Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/loans/?book_id=garbage", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUpdateLoanPassesReturnDate(t *testing.T) {
	loanID := uuid.New()
	var seen *string
	svc := &stubService{
		setFn: func(ctx context.Context, id uuid.UUID, returnDate *string) (*Loan, error) {
			seen = returnDate
			return &Loan{ID: id}, nil
		},
	}
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/loans/"+loanID.String()+"/",
		bytes.NewBufferString(`{"return_date": "2024-03-15"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "2024-03-15", *seen)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/loans/"+loanID.String()+"/",
		bytes.NewBufferString(`{"return_date": null}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, seen, "explicit null clears the return date")
}

func TestHandleDeleteLoan(t *testing.T) {
	loanID := uuid.New()
	svc := &stubService{
		deleteFn: func(ctx context.Context, id uuid.UUID) error {
			if id == loanID {
				return nil
			}
			return fault.NotFound("loan")
		},
	}
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/loans/"+loanID.String()+"/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "loan deleted successfully", resp.Message)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/loans/"+uuid.NewString()+"/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func validCreateBody() string {
	body, _ := json.Marshal(map[string]string{
		"book_id":   uuid.NewString(),
		"user_id":   uuid.NewString(),
		"loan_date": "2024-03-01",
	})
	return string(body)
}
