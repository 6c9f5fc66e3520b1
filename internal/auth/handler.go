package auth

import (
	"context"
	"errors"
	"net/http"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/jogardn/storefront/internal/apperr"
	"github.com/jogardn/storefront/internal/httpx"
	"github.com/jogardn/storefront/internal/store"
	"github.com/jogardn/storefront/internal/validation"
	"github.com/jogardn/storefront/pkg/models"
	"github.com/sirupsen/logrus"
)

type UserLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type Handler struct {
	users    UserLookup
	issuer   *TokenIssuer
	validate *validatorv10.Validate
	logger   *logrus.Logger
}

func NewHandler(users UserLookup, issuer *TokenIssuer, validate *validatorv10.Validate, logger *logrus.Logger) *Handler {
	return &Handler{
		users:    users,
		issuer:   issuer,
		validate: validate,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/auth/login", h.Login).Methods("POST")
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req validation.LoginRequest
	if err := validation.Bind(r, h.validate, &req); err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	if user == nil || !CheckPassword(user.PasswordHash, req.Password) {
		h.logger.WithField("email", req.Email).Warn("Login failed")
		httpx.RespondWithError(w, r, h.logger, apperr.ErrUnauthorized)
		return
	}

	token, err := h.issuer.Issue(user)
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	h.logger.WithField("user_id", user.ID).Info("User logged in")
	httpx.RespondWithJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}
