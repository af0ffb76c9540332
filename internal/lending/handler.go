// internal/lending/handler.go
package lending

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"libris/internal/fault"
	"libris/internal/web"
)

type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(service Service, validate *validator.Validate, logger *slog.Logger) *Handler {
	return &Handler{service: service, validate: validate, logger: logger}
}

// Register mounts the loan routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/loans", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Route("/{loanID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Put("/", h.handleUpdate)
			r.Delete("/", h.handleDelete)
		})
	})
}

type createLoanRequest struct {
	BookID     string  `json:"book_id" validate:"required"`
	UserID     string  `json:"user_id" validate:"required"`
	LoanDate   string  `json:"loan_date" validate:"required"`
	ReturnDate *string `json:"return_date"`
}

type updateLoanRequest struct {
	ReturnDate *string `json:"return_date"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Error(w, err, h.logger)
		return
	}
	if err := web.CheckStruct(h.validate, req); err != nil {
		web.Error(w, err, h.logger)
		return
	}

	loan, err := h.service.Create(r.Context(), CreateLoanInput{
		BookID:     req.BookID,
		UserID:     req.UserID,
		LoanDate:   req.LoanDate,
		ReturnDate: req.ReturnDate,
	})
	if err != nil {
		web.Error(w, err, h.logger)
		return
	}

	web.Message(w, http.StatusCreated, "loan created successfully", loan, h.logger)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Status: r.URL.Query().Get("status")}

	if raw := r.URL.Query().Get("book_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			web.Error(w, fault.Validation("invalid book_id filter"), h.logger)
			return
		}
		filter.BookID = &id
	}
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			web.Error(w, fault.Validation("invalid user_id filter"), h.logger)
			return
		}
		filter.UserID = &id
	}

	loans, err := h.service.List(r.Context(), filter)
	if err != nil {
		web.Error(w, err, h.logger)
		return
	}
	web.JSON(w, http.StatusOK, loans, h.logger)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		web.Error(w, err, h.logger)
		return
	}

	loan, err := h.service.Get(r.Context(), id)
	if err != nil {
		web.Error(w, err, h.logger)
		return
	}
	web.JSON(w, http.StatusOK, loan, h.logger)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		web.Error(w, err, h.logger)
		return
	}

	var req updateLoanRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Error(w, err, h.logger)
		return
	}

	loan, err := h.service.SetReturnDate(r.Context(), id, req.ReturnDate)
	if err != nil {
		web.Error(w, err, h.logger)
		return
	}

	web.Message(w, http.StatusOK, "loan updated successfully", loan, h.logger)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		web.Error(w, err, h.logger)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		web.Error(w, err, h.logger)
		return
	}

	web.Message(w, http.StatusOK, "loan deleted successfully", nil, h.logger)
}

func loanID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "loanID"))
	if err != nil {
		return uuid.Nil, fault.Validation("invalid loan ID")
	}
	return id, nil
}
