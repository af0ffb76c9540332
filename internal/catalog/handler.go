// internal/catalog/handler.go
package catalog

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

// Register mounts the catalog routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/books", func(r chi.Router) {
		r.Post("/", h.handleAddBook)
		r.Get("/", h.handleListBooks)
		r.Route("/{bookID}", func(r chi.Router) {
			r.Get("/", h.handleGetBook)
			r.Put("/", h.handleUpdateBook)
			r.Delete("/", h.handleRemoveBook)
		})
	})
}

type addBookRequest struct {
	ISBN      string `json:"isbn" validate:"required"`
	Title     string `json:"title" validate:"required"`
	Author    string `json:"author" validate:"required"`
	Publisher string `json:"publisher"`
	Stock     int    `json:"stock" validate:"gte=0"`
}

type updateBookRequest struct {
	ISBN      *string `json:"isbn"`
	Title     *string `json:"title"`
	Author    *string `json:"author"`
	Publisher *string `json:"publisher"`
	Stock     *int    `json:"stock" validate:"omitempty,gte=0"`
}

func (h *Handler) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var req addBookRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Error(w, err, h.logger)
		return
	}
	if err := web.CheckStruct(h.validate, req); err != nil {
		web.Error(w, err, h.logger)
		return
	}

	book, err := h.service.AddBook(r.Context(), req.ISBN, req.Title, req.Author, req.Publisher, req.Stock)
	if err != nil {
		web.Error(w, err, h.logger)
		return
	}

	web.Message(w, http.StatusCreated, "book added", book, h.logger)
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListBooks(r.Context())
	if err != nil {
		web.Error(w, err, h.logger)
		return
	}
	web.JSON(w, http.StatusOK, books, h.logger)
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		web.Error(w, err, h.logger)
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		web.Error(w, err, h.logger)
		return
	}
	web.JSON(w, http.StatusOK, book, h.logger)
}

func (h *Handler) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		web.Error(w, err, h.logger)
		return
	}

	var req updateBookRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Error(w, err, h.logger)
		return
	}
	if err := web.CheckStruct(h.validate, req); err != nil {
		web.Error(w, err, h.logger)
		return
	}

	book, err := h.service.UpdateBook(r.Context(), id, BookUpdate{
		ISBN:      req.ISBN,
		Title:     req.Title,
		Author:    req.Author,
		Publisher: req.Publisher,
		Stock:     req.Stock,
	})
	if err != nil {
		web.Error(w, err, h.logger)
		return
	}

	web.Message(w, http.StatusOK, "book updated", book, h.logger)
}

func (h *Handler) handleRemoveBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		web.Error(w, err, h.logger)
		return
	}

	if err := h.service.RemoveBook(r.Context(), id); err != nil {
		web.Error(w, err, h.logger)
		return
	}

	web.Message(w, http.StatusOK, "book deleted", nil, h.logger)
}

func bookID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "bookID"))
	if err != nil {
		return uuid.Nil, fault.Validation("invalid book ID")
	}
	return id, nil
}
