package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/slotline/slotline/internal/storage"
)

type CatalogHandler struct {
	catalog *storage.CatalogRepository
	logger  *slog.Logger
}

func NewCatalogHandler(catalog *storage.CatalogRepository, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

type providerItem struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Timezone    string `json:"timezone"`
	IsOperator  bool   `json:"is_operator"`
}

type serviceItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
}

type addOnItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

func (h *CatalogHandler) Providers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	providers, err := h.catalog.ListProviders(r.Context())
	if err != nil {
		http.Error(w, "failed to list providers", http.StatusInternalServerError)
		return
	}
	items := make([]providerItem, 0, len(providers))
	for _, p := range providers {
		items = append(items, providerItem{ID: p.ID, DisplayName: p.DisplayName, Timezone: p.Timezone, IsOperator: p.IsOperator})
	}
	writeJSON(w, http.StatusOK, items)
}

// Services lists a provider's active services, the entries offered on the
// first wizard step.
func (h *CatalogHandler) Services(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	if providerID == "" {
		http.Error(w, "provider_id required", http.StatusBadRequest)
		return
	}
	services, err := h.catalog.ListServices(r.Context(), providerID)
	if err != nil {
		http.Error(w, "failed to list services", http.StatusInternalServerError)
		return
	}
	items := make([]serviceItem, 0, len(services))
	for _, s := range services {
		items = append(items, serviceItem{ID: s.ID, Name: s.Name, DurationMinutes: s.DurationMinutes, PriceCents: s.PriceCents})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *CatalogHandler) AddOns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	if providerID == "" {
		http.Error(w, "provider_id required", http.StatusBadRequest)
		return
	}
	addOns, err := h.catalog.ListAddOns(r.Context(), providerID, nil)
	if err != nil {
		http.Error(w, "failed to list add-ons", http.StatusInternalServerError)
		return
	}
	items := make([]addOnItem, 0, len(addOns))
	for _, ao := range addOns {
		items = append(items, addOnItem{ID: ao.ID, Name: ao.Name, PriceCents: ao.PriceCents})
	}
	writeJSON(w, http.StatusOK, items)
}
