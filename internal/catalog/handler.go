package catalog

import (
	"net/http"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/jogardn/storefront/internal/httpx"
	"github.com/jogardn/storefront/internal/store"
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

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/products", h.ListProducts).Methods("GET")
	r.HandleFunc("/products", h.CreateProduct).Methods("POST")
	r.HandleFunc("/products/{id}", h.GetProduct).Methods("GET")
	r.HandleFunc("/categories", h.ListCategories).Methods("GET")
	r.HandleFunc("/categories", h.CreateCategory).Methods("POST")
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	var q validation.ProductQuery
	var err error
	if q.CategoryID, err = httpx.QueryInt(r, "categoryId"); err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	if q.Limit, err = httpx.QueryInt(r, "limit"); err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	if q.Offset, err = httpx.QueryInt(r, "offset"); err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	if err := validation.Check(h.validate, &q); err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	products, err := h.service.Products(r.Context(), store.ProductFilter{
		CategoryID: q.CategoryID,
		Limit:      q.Limit,
		Offset:     q.Offset,
	})
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	httpx.RespondWithJSON(w, http.StatusOK, products)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	product, err := h.service.Product(r.Context(), id)
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	httpx.RespondWithJSON(w, http.StatusOK, product)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req validation.CreateProductRequest
	if err := validation.Bind(r, h.validate, &req); err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), NewProduct{
		Name:        req.Name,
		Price:       req.Price,
		Image:       req.Image,
		Description: req.Description,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	httpx.RespondWithJSON(w, http.StatusCreated, product)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	httpx.RespondWithJSON(w, http.StatusOK, categories)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req validation.CreateCategoryRequest
	if err := validation.Bind(r, h.validate, &req); err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}

	category, err := h.service.CreateCategory(r.Context(), req.Name, req.Image)
	if err != nil {
		httpx.RespondWithError(w, r, h.logger, err)
		return
	}
	httpx.RespondWithJSON(w, http.StatusCreated, category)
}
