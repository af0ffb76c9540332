// internal/identity/handler.go
package identity

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

// Register mounts the identity routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.handleListUsers)
		r.Get("/{userID}", h.handleGetUser)
	})
}

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type loginResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Error(w, err, h.logger)
		return
	}
	if err := web.CheckStruct(h.validate, req); err != nil {
		web.Error(w, err, h.logger)
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		web.Error(w, err, h.logger)
		return
	}

	web.Message(w, http.StatusCreated, "user registered successfully", user, h.logger)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Error(w, err, h.logger)
		return
	}
	if err := web.CheckStruct(h.validate, req); err != nil {
		web.Error(w, err, h.logger)
		return
	}

	_, token, err := h.service.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		web.Error(w, err, h.logger)
		return
	}

	web.JSON(w, http.StatusOK, loginResponse{
		Message:     "logged in successfully",
		AccessToken: token,
	}, h.logger)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		web.Error(w, err, h.logger)
		return
	}
	web.JSON(w, http.StatusOK, users, h.logger)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		web.Error(w, fault.Validation("invalid user ID"), h.logger)
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		web.Error(w, err, h.logger)
		return
	}
	web.JSON(w, http.StatusOK, user, h.logger)
}
