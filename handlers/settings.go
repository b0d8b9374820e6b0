package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"sunnymovies/config"
)

// catalogReloader is the slice of the catalog service a settings change
// needs for hot reloading.
type catalogReloader interface {
	UpdateAPIKey(apiKey string)
}

// SettingsHandler exposes the runtime settings endpoints.
type SettingsHandler struct {
	manager *config.Manager
	catalog catalogReloader
}

// NewSettingsHandler creates a settings handler. catalog may be nil when hot
// reload is not wanted.
func NewSettingsHandler(manager *config.Manager, catalog catalogReloader) *SettingsHandler {
	return &SettingsHandler{manager: manager, catalog: catalog}
}

// GetSettings returns the current settings.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Get())
}

// UpdateSettings replaces the settings, persists them, and hot reloads the
// catalog when the TMDB key changed. Fields omitted from the body keep their
// current values. Port and identity scheme changes take effect on restart.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	prev := h.manager.Get()

	body := prev
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request"})
		return
	}

	if err := h.manager.Update(func(s *config.Settings) { *s = body }); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	updated := h.manager.Get()
	if h.catalog != nil && updated.TMDBAPIKey != prev.TMDBAPIKey {
		h.catalog.UpdateAPIKey(updated.TMDBAPIKey)
		log.Printf("[settings] reloaded catalog with new TMDB API key")
	}

	writeJSON(w, http.StatusOK, updated)
}
