package handlers

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/pkoukk/tiktoken-go"

	"github.com/bashirn3/cursor-azure-claude/internal/config"
	"github.com/bashirn3/cursor-azure-claude/internal/providers"
	"github.com/bashirn3/cursor-azure-claude/internal/router"
)

// maxBodyBytes caps inbound request bodies.
const maxBodyBytes = 1 << 20

// scanBufferSize sizes the SSE scanner buffer; vendor deltas can carry large
// partial-JSON fragments on a single line.
const scanBufferSize = 256 * 1024

// ProxyHandler serves the chat-completions surface. It routes each request
// by model name, transcodes it for the selected vendor, and relays or
// re-chunks the vendor response.
type ProxyHandler struct {
	cfg      config.Config
	registry *providers.Registry
	client   *http.Client
	logger   *slog.Logger
}

func NewProxyHandler(cfg config.Config, registry *providers.Registry, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		cfg:      cfg,
		registry: registry,
		client:   &http.Client{Timeout: cfg.UpstreamTimeout},
		logger:   logger,
	}
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, ErrTypeInvalidRequest, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrTypeInvalidRequest, "failed to read request body")
		return
	}

	var req providers.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrTypeInvalidRequest, "request body is not valid JSON")
		return
	}

	vendor := router.Route(req.Model)
	provider, ok := h.registry.Get(vendor)
	if !ok {
		WriteError(w, http.StatusInternalServerError, ErrTypeProxy, fmt.Sprintf("no provider for vendor %q", vendor))
		return
	}

	endpoint, err := provider.Endpoint(h.cfg)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrTypeConfiguration,
			fmt.Sprintf("%s upstream is not configured", provider.Name()))
		return
	}

	outBody, err := provider.TransformRequest(body, h.cfg, req.Stream)
	if err != nil {
		status, errType := classifyTransformError(err)
		WriteError(w, status, errType, err.Error())
		return
	}

	if h.logger.Enabled(r.Context(), slog.LevelDebug) {
		h.logger.Debug("proxying request",
			"provider", provider.Name(),
			"model", req.Model,
			"stream", req.Stream,
			"input_tokens", countInputTokens(body),
		)
	}

	outReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, endpoint, bytes.NewReader(outBody))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrTypeProxy, "failed to build upstream request")
		return
	}
	outReq.Header.Set("Content-Type", "application/json")
	if req.Stream {
		outReq.Header.Set("Accept", "text/event-stream")
	}
	provider.Authenticate(outReq, h.cfg)

	resp, err := h.client.Do(outReq)
	if err != nil {
		h.logger.Error("upstream request failed", "provider", provider.Name(), "error", err)
		WriteError(w, http.StatusServiceUnavailable, ErrTypeConnection,
			fmt.Sprintf("failed to reach %s upstream: %v", provider.Name(), err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.relayUpstreamError(w, provider.Name(), resp)
		return
	}

	if req.Stream && provider.IsStreaming(resp.Header) {
		h.streamResponse(w, provider, resp)
		return
	}

	h.bufferedResponse(w, provider, resp, body)
}

// classifyTransformError keeps malformed-input failures in the 4xx family.
func classifyTransformError(err error) (int, string) {
	if errors.Is(err, providers.ErrInvalidRequestFormat) || errors.Is(err, providers.ErrEmptyMessageSet) {
		return http.StatusBadRequest, ErrTypeInvalidRequest
	}
	return http.StatusBadRequest, ErrTypeTransform
}

// relayUpstreamError forwards a vendor failure with its original status. A
// body already carrying our envelope shape is relayed verbatim; anything
// else is wrapped as an api_error.
func (h *ProxyHandler) relayUpstreamError(w http.ResponseWriter, name string, resp *http.Response) {
	body, err := readDecompressed(resp)
	if err != nil {
		body = nil
	}

	h.logger.Warn("upstream returned error",
		"provider", name,
		"status", resp.StatusCode,
		"body_bytes", len(body),
	)

	var envelope errorBody
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		_ = json.NewEncoder(w).Encode(envelope)
		return
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("%s upstream returned status %d", name, resp.StatusCode)
	}
	WriteError(w, resp.StatusCode, ErrTypeAPI, msg)
}

// bufferedResponse reads the whole upstream body and transcodes it, unless
// the provider is in passthrough mode. requestBody is the caller's original
// payload, kept for prompt-token estimation.
func (h *ProxyHandler) bufferedResponse(w http.ResponseWriter, provider providers.Provider, resp *http.Response, requestBody []byte) {
	body, err := readDecompressed(resp)
	if err != nil {
		WriteError(w, http.StatusBadGateway, ErrTypeAPI, "failed to read upstream response")
		return
	}

	out := body
	if !provider.Passthrough(h.cfg) {
		out, err = provider.TransformResponse(body)
		if err != nil {
			h.logger.Error("response transform failed", "provider", provider.Name(), "error", err)
			WriteError(w, http.StatusInternalServerError, ErrTypeTransform, err.Error())
			return
		}
		out = h.backfillPromptTokens(out, requestBody)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// backfillPromptTokens estimates prompt_tokens from the caller's payload
// when the vendor reported none. Vendor-supplied usage always wins.
func (h *ProxyHandler) backfillPromptTokens(out, requestBody []byte) []byte {
	var resp providers.ChatCompletion
	if err := json.Unmarshal(out, &resp); err != nil || resp.Usage.PromptTokens > 0 {
		return out
	}

	counted := countInputTokens(requestBody)
	if counted == 0 {
		return out
	}

	resp.Usage = providers.NewUsage(counted, resp.Usage.CompletionTokens)

	patched, err := json.Marshal(resp)
	if err != nil {
		return out
	}
	return patched
}

// streamResponse relays the upstream event stream. In passthrough mode bytes
// are copied as-is with per-chunk flushing; otherwise each data line is fed
// through the provider's re-chunker.
func (h *ProxyHandler) streamResponse(w http.ResponseWriter, provider providers.Provider, resp *http.Response) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	if provider.Passthrough(h.cfg) {
		h.copyStream(w, flusher, resp.Body)
		return
	}

	state := providers.NewStreamState(
		h.registry.IDs().CompletionID(),
		h.cfg.OpenAIModel,
		time.Now().Unix(),
	)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, scanBufferSize), scanBufferSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") || strings.HasPrefix(line, "event:") {
			continue
		}

		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)

		if data == "[DONE]" {
			h.writeStream(w, flusher, []byte("data: [DONE]\n\n"))
			break
		}

		out, err := provider.TransformStream([]byte(data), state)
		if err != nil {
			h.logger.Warn("skipping malformed stream event", "provider", provider.Name(), "error", err)
			continue
		}
		if len(out) > 0 {
			h.writeStream(w, flusher, out)
		}

		if state.Done {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		h.logger.Warn("upstream stream ended abnormally", "provider", provider.Name(), "error", err)
	}
}

func (h *ProxyHandler) copyStream(w http.ResponseWriter, flusher http.Flusher, body io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			h.writeStream(w, flusher, buf[:n])
		}
		if err != nil {
			if err != io.EOF {
				h.logger.Warn("stream copy ended abnormally", "error", err)
			}
			return
		}
	}
}

func (h *ProxyHandler) writeStream(w http.ResponseWriter, flusher http.Flusher, b []byte) {
	if _, err := w.Write(b); err != nil {
		return
	}
	if flusher != nil {
		flusher.Flush()
	}
}

// readDecompressed reads the full body, inflating gzip and brotli encodings
// the vendor gateways apply regardless of Accept-Encoding.
func readDecompressed(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body

	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	return io.ReadAll(reader)
}

// countInputTokens estimates prompt size from the raw payload. Zero on any
// failure; the count is advisory only.
func countInputTokens(body []byte) int {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return 0
	}
	return len(enc.Encode(string(body), nil, nil))
}
