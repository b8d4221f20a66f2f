package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kinder-supplies/api/internal/catalog"
	"github.com/kinder-supplies/api/internal/enum"
)

// CatalogLookup resolves the active products of an age group.
// Satisfied by *catalog.Lookup.
type CatalogLookup interface {
	ActiveProductsForAgeGroup(ctx context.Context, ageGroup int16) ([]catalog.Product, error)
}

// CatalogHandler serves the order form's product lists.
type CatalogHandler struct {
	lookup CatalogLookup
}

func NewCatalogHandler(lookup CatalogLookup) *CatalogHandler {
	return &CatalogHandler{lookup: lookup}
}

func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/catalog/age-groups", h.AgeGroups)
	r.Get("/catalog/age-groups/{ag}/products", h.Products)
}

type ageGroupResponse struct {
	AgeGroup int16  `json:"age_group"`
	Label    string `json:"label"`
}

// AgeGroups handles GET /catalog/age-groups.
func (h *CatalogHandler) AgeGroups(w http.ResponseWriter, r *http.Request) {
	resp := make([]ageGroupResponse, len(enum.AgeGroups))
	for i, ag := range enum.AgeGroups {
		resp[i] = ageGroupResponse{AgeGroup: ag, Label: enum.AgeGroupLabel(ag)}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Products handles GET /catalog/age-groups/{ag}/products.
func (h *CatalogHandler) Products(w http.ResponseWriter, r *http.Request) {
	ag, err := strconv.ParseInt(chi.URLParam(r, "ag"), 10, 16)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid age group"})
		return
	}

	products, err := h.lookup.ActiveProductsForAgeGroup(r.Context(), int16(ag))
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidAgeGroup) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid age group"})
			return
		}
		log.Printf("ERROR: list catalog: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"age_group": ag,
		"label":     enum.AgeGroupLabel(int16(ag)),
		"products":  products,
	})
}
