package orders

import (
	"net/http"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/jogardn/storefront/internal/httpx"
	"github.com/jogardn/storefront/internal/validation"
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

// RegisterRoutes mounts the order endpoints on r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/orders", h.CreateOrder).Methods("POST")
	r.HandleFunc("/orders/with-products", h.CreateOrderWithProducts).Methods("POST")
	r.HandleFunc("/orders/add-item", h.AddItem).Methods("POST")
	r.HandleFunc("/orders", h.ListOrders).Methods("GET")
	r.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET")
	r.HandleFunc("/orders/{id}", h.UpdateOrder).Methods("PATCH")
	r.HandleFunc("/orders/{id}", h.DeleteOrder).Methods("DELETE")
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req validation.CreateOrderRequest
	if err := validation.Bind(r, h.validate, &req); err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	order, err := h.service.CreateSimple(r.Context(), req.CustomerID)
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	httpx.RespondWithJSON(w, http.StatusCreated, order)
}

func (h *Handler) CreateOrderWithProducts(w http.ResponseWriter, r *http.Request) {
	var req validation.CreateOrderWithProductsRequest
	if err := validation.Bind(r, h.validate, &req); err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	lines := make([]Line, 0, len(req.Products))
	for _, p := range req.Products {
		lines = append(lines, Line{ProductID: p.ProductID, Amount: p.Amount})
	}

	order, err := h.service.CreateWithProducts(r.Context(), req.CustomerID, lines)
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	httpx.RespondWithJSON(w, http.StatusCreated, order)
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req validation.AddItemRequest
	if err := validation.Bind(r, h.validate, &req); err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	item, err := h.service.AddItem(r.Context(), req.OrderID, req.ProductID, req.Amount)
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	httpx.RespondWithJSON(w, http.StatusCreated, item)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	h.logger.WithField("count", len(orders)).Info("Retrieved orders")
	httpx.RespondWithJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	order, err := h.service.FindOne(r.Context(), id)
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	httpx.RespondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	var req validation.UpdateOrderRequest
	if err := validation.Bind(r, h.validate, &req); err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	order, err := h.service.Update(r.Context(), id, req.CustomerID)
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	httpx.RespondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
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
		"message": "Order deleted",
	})
}
