package handlers

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/bashirn3/cursor-azure-claude/internal/config"
)

// MessagesHandler forwards native messages-API requests to the Claude
// upstream without transcoding. Clients that already speak the vendor shape
// use this to share the proxy's credentials and network position.
type MessagesHandler struct {
	cfg    config.Config
	client *http.Client
	logger *slog.Logger
}

func NewMessagesHandler(cfg config.Config, logger *slog.Logger) *MessagesHandler {
	return &MessagesHandler{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.UpstreamTimeout},
		logger: logger,
	}
}

func (h *MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, ErrTypeInvalidRequest, "method not allowed")
		return
	}

	if !h.cfg.ClaudeConfigured() {
		WriteError(w, http.StatusInternalServerError, ErrTypeConfiguration, "claude upstream is not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrTypeInvalidRequest, "failed to read request body")
		return
	}

	outReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.cfg.ClaudeEndpoint, bytes.NewReader(body))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrTypeProxy, "failed to build upstream request")
		return
	}
	outReq.Header.Set("Content-Type", "application/json")
	outReq.Header.Set("x-api-key", h.cfg.ClaudeAPIKey)
	outReq.Header.Set("anthropic-version", h.cfg.ClaudeAPIVersion)
	if accept := r.Header.Get("Accept"); accept != "" {
		outReq.Header.Set("Accept", accept)
	}

	resp, err := h.client.Do(outReq)
	if err != nil {
		h.logger.Error("messages passthrough failed", "error", err)
		WriteError(w, http.StatusServiceUnavailable, ErrTypeConnection, "failed to reach claude upstream")
		return
	}
	defer resp.Body.Close()

	for _, header := range []string{"Content-Type", "Content-Encoding", "Cache-Control"} {
		if v := resp.Header.Get(header); v != "" {
			w.Header().Set(header, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				h.logger.Warn("messages passthrough ended abnormally", "error", err)
			}
			return
		}
	}
}
