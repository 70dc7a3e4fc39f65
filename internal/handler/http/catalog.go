package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Swiftdaops/QuickClean/internal/domain"
	"github.com/Swiftdaops/QuickClean/internal/service"
	apperrors "github.com/Swiftdaops/QuickClean/pkg/errors"
	"github.com/Swiftdaops/QuickClean/pkg/httputil"
)

// CatalogHandler proxies the backend catalog to the browser.
type CatalogHandler struct {
	catalog service.Catalog
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(catalog service.Catalog, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// ListStores handles GET /api/v1/catalog/stores
func (h *CatalogHandler) ListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.catalog.ListStores(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if stores == nil {
		stores = []domain.Store{}
	}
	httputil.WriteData(w, http.StatusOK, stores)
}

// ListProducts handles GET /api/v1/catalog/stores/{storeId}/products
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	storeID := strings.TrimSpace(chi.URLParam(r, "storeId"))
	if storeID == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("storeId is required"), h.logger)
		return
	}

	products, err := h.catalog.ListProducts(r.Context(), storeID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	httputil.WriteData(w, http.StatusOK, products)
}

// ListServices handles GET /api/v1/catalog/services
func (h *CatalogHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.catalog.ListServices(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if services == nil {
		services = []domain.ServiceOffering{}
	}
	httputil.WriteData(w, http.StatusOK, services)
}
