package admin

import (
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/rosterops/rostergate/internal/config"
)

// handleExportConfig returns the running configuration as YAML, with key
// hashes redacted.
// GET /api/config/export
func (h *APIHandler) handleExportConfig(w http.ResponseWriter, r *http.Request) {
	if h.cfg == nil {
		h.respondError(w, http.StatusInternalServerError, "config not available")
		return
	}

	data, err := yaml.Marshal(redactConfig(*h.cfg))
	if err != nil {
		h.logger.Error("failed to marshal config", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to export config")
		return
	}

	w.Header().Set("Content-Type", "application/x-yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// redactConfig copies the config with admin key hashes blanked, so the
// export never leaks credential material.
func redactConfig(cfg config.Config) config.Config {
	if len(cfg.Auth.AdminKeys) == 0 {
		return cfg
	}
	keys := make([]config.AdminKeyConfig, len(cfg.Auth.AdminKeys))
	for i, k := range cfg.Auth.AdminKeys {
		keys[i] = config.AdminKeyConfig{ID: k.ID, KeyHash: "REDACTED"}
	}
	cfg.Auth.AdminKeys = keys
	return cfg
}
