package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bashirn3/cursor-azure-claude/internal/config"
)

// InfoHandler serves the root service banner and rejects unmatched paths
// with the standard envelope.
type InfoHandler struct {
	cfg     config.Config
	version string
}

func NewInfoHandler(cfg config.Config, version string) *InfoHandler {
	return &InfoHandler{cfg: cfg, version: version}
}

func (h *InfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		WriteError(w, http.StatusNotFound, ErrTypeNotFound, "no such endpoint: "+r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, ErrTypeInvalidRequest, "method not allowed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"service": "cursor-azure-claude",
		"version": h.version,
		"endpoints": []string{
			"GET /health",
			"POST /chat/completions",
			"POST /v1/chat/completions",
			"POST /v1/messages",
		},
	})
}

// HealthHandler reports liveness and which upstreams are usable.
type HealthHandler struct {
	cfg config.Config
}

func NewHealthHandler(cfg config.Config) *HealthHandler {
	return &HealthHandler{cfg: cfg}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, ErrTypeInvalidRequest, "method not allowed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":            "ok",
		"claude_configured": h.cfg.ClaudeConfigured(),
		"openai_configured": h.cfg.OpenAIConfigured(),
		"openai_mode":       h.cfg.OpenAIMode,
		"auth_enabled":      h.cfg.AuthEnabled(),
	})
}
