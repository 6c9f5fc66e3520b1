package customers

import (
	"context"
	"net/http"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/jogardn/storefront/internal/auth"
	"github.com/jogardn/storefront/internal/httpx"
	"github.com/jogardn/storefront/internal/validation"
	"github.com/jogardn/storefront/pkg/models"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	service  *Service
	validate *validatorv10.Validate
	logger   *logrus.Logger
}

func NewHandler(service *Service, validate *validatorv10.Validate, logger *logrus.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validate,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/customers", h.ListCustomers).Methods("GET")
	r.HandleFunc("/customers", h.CreateCustomer).Methods("POST")
	r.HandleFunc("/customers/{id}", h.GetCustomer).Methods("GET")
	r.HandleFunc("/customers/{id}", h.UpdateCustomer).Methods("PATCH")
	r.HandleFunc("/customers/{id}", h.DeleteCustomer).Methods("DELETE")
}

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Find(r.Context())
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	httpx.RespondWithJSON(w, http.StatusOK, list)
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req validation.CreateCustomerRequest
	if err := validation.Bind(r, h.validate, &req); err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	in := NewCustomer{
		Profile: Profile{Name: req.Name, LastName: req.LastName, Phone: req.Phone},
		UserID:  req.UserID,
	}
	if req.User != nil {
		in.User = &NewUser{Email: req.User.Email, Password: req.User.Password, Role: req.User.Role}
	}

	customer, err := h.service.Create(r.Context(), in)
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	httpx.RespondWithJSON(w, http.StatusCreated, customer)
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	customer, err := h.service.FindOne(r.Context(), id)
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	httpx.RespondWithJSON(w, http.StatusOK, customer)
}

func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	var req validation.UpdateCustomerRequest
	if err := validation.Bind(r, h.validate, &req); err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	customer, err := h.service.Update(r.Context(), id, Changes{
		Name:     req.Name,
		LastName: req.LastName,
		Phone:    req.Phone,
		UserID:   req.UserID,
	})
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	httpx.RespondWithJSON(w, http.StatusOK, customer)
}

func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	httpx.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Customer deleted",
	})
}

// OrderFinder lists the orders owned by a user.
type OrderFinder interface {
	FindByUser(ctx context.Context, userID int) ([]models.Order, error)
}

// ProfileHandler serves the caller-scoped endpoints under /profile. It must be
// mounted behind auth.Middleware.
type ProfileHandler struct {
	service  *Service
	orders   OrderFinder
	validate *validatorv10.Validate
	logger   *logrus.Logger
}

func NewProfileHandler(service *Service, orders OrderFinder, validate *validatorv10.Validate, logger *logrus.Logger) *ProfileHandler {
	return &ProfileHandler{
		service:  service,
		orders:   orders,
		validate: validate,
		logger:   logger,
	}
}

func (h *ProfileHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/profile/my-user", h.MyUser).Methods("GET")
	r.HandleFunc("/profile/my-orders", h.MyOrders).Methods("GET")
	r.HandleFunc("/profile/create-customer", h.CreateCustomer).Methods("POST")
}

type existingProfileResponse struct {
	Message  string           `json:"message"`
	Customer *models.Customer `json:"customer"`
}

func (h *ProfileHandler) MyUser(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.SubjectFrom(r.Context())
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	user, err := h.service.Me(r.Context(), userID)
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	httpx.RespondWithJSON(w, http.StatusOK, user)
}

func (h *ProfileHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.SubjectFrom(r.Context())
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	list, err := h.orders.FindByUser(r.Context(), userID)
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	httpx.RespondWithJSON(w, http.StatusOK, list)
}

func (h *ProfileHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.SubjectFrom(r.Context())
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	var req validation.ProfileCustomerRequest
	if err := validation.Bind(r, h.validate, &req); err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	customer, created, err := h.service.EnsureProfile(r.Context(), userID, Profile{
		Name:     req.Name,
		LastName: req.LastName,
		Phone:    req.Phone,
	})
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	if !created {
		httpx.RespondWithJSON(w, http.StatusOK, existingProfileResponse{
			Message:  "User already has a customer profile",
			Customer: customer,
		})
		return
	}
	httpx.RespondWithJSON(w, http.StatusCreated, customer)
}
