// Package providers implements the bidirectional transcoding between the
// OpenAI chat-completions surface exposed to callers and the upstream vendor
// APIs, including the streaming re-chunkers.
package providers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bashirn3/cursor-azure-claude/internal/config"
	"github.com/bashirn3/cursor-azure-claude/internal/router"
)

var (
	// ErrInvalidRequestFormat means none of the accepted input shapes
	// (messages, role/content, input, content) was present.
	ErrInvalidRequestFormat = errors.New("request carries no messages, role/content pair, input, or content")

	// ErrEmptyMessageSet means every candidate message was filtered out.
	ErrEmptyMessageSet = errors.New("no usable messages after filtering")

	// ErrNotConfigured means the vendor's endpoint or API key is missing
	// from the environment.
	ErrNotConfigured = errors.New("upstream vendor is not configured")
)

// Provider translates between the caller-facing OpenAI shape and one
// upstream vendor API.
type Provider interface {
	Name() string
	Vendor() router.Vendor

	// Endpoint returns the upstream URL, or ErrNotConfigured.
	Endpoint(cfg config.Config) (string, error)

	// Authenticate sets the vendor's auth headers on an outbound request.
	Authenticate(req *http.Request, cfg config.Config)

	// TransformRequest converts a caller request body into the vendor
	// payload. stream indicates whether the caller asked for SSE.
	TransformRequest(body []byte, cfg config.Config, stream bool) ([]byte, error)

	// TransformResponse converts a buffered vendor response body into the
	// OpenAI chat-completion shape.
	TransformResponse(body []byte) ([]byte, error)

	// TransformStream consumes one decoded SSE data payload and returns
	// zero or more caller-facing SSE chunks. Unrecognized events return
	// no output and no error.
	TransformStream(data []byte, state *StreamState) ([]byte, error)

	// Passthrough reports whether bodies are forwarded verbatim in both
	// directions, bypassing transcoding entirely.
	Passthrough(cfg config.Config) bool

	// IsStreaming reports whether an upstream response is an event stream.
	IsStreaming(header http.Header) bool
}

// StreamState is the per-request state of one streaming re-chunking session.
// It is owned by a single request handler and never shared.
type StreamState struct {
	ID      string
	Model   string
	Created int64

	RoleSent bool

	// Blocks maps the vendor's content-block index to its descriptor.
	Blocks map[int]*BlockState

	// ToolCallIndex is the OpenAI-side tool_calls index assigned to the
	// currently open tool call. It advances when a tool block closes, so
	// every fragment of one call shares a stable index.
	ToolCallIndex int
	SawToolCall   bool

	StopReason       string
	PromptTokens     int
	CompletionTokens int

	Done bool
}

// BlockState describes one vendor content block seen during streaming.
type BlockState struct {
	Type     string
	ToolID   string
	ToolName string
}

// NewStreamState seeds the session with the envelope fields every emitted
// chunk shares.
func NewStreamState(id, model string, created int64) *StreamState {
	return &StreamState{
		ID:      id,
		Model:   model,
		Created: created,
		Blocks:  make(map[int]*BlockState),
	}
}

// FinishReason returns the terminal finish_reason for the session.
func (s *StreamState) FinishReason() string {
	if s.SawToolCall {
		return FinishToolCalls
	}
	return FinishStop
}

// Registry maps vendors to provider implementations.
type Registry struct {
	providers map[router.Vendor]Provider
	ids       IDGenerator
}

// NewRegistry builds a registry with both built-in providers sharing the
// given ID generator.
func NewRegistry(ids IDGenerator) *Registry {
	r := &Registry{
		providers: make(map[router.Vendor]Provider),
		ids:       ids,
	}
	r.register(NewClaudeProvider(ids))
	r.register(NewGPTProvider(ids))

	return r
}

func (r *Registry) register(p Provider) {
	r.providers[p.Vendor()] = p
}

// Get returns the provider for a vendor.
func (r *Registry) Get(vendor router.Vendor) (Provider, bool) {
	p, ok := r.providers[vendor]
	return p, ok
}

// IDs exposes the shared ID generator for per-request envelope ids.
func (r *Registry) IDs() IDGenerator {
	return r.ids
}

// List returns the registered provider names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}

// isEventStream is the shared streaming detection used by both providers.
func isEventStream(header http.Header) bool {
	ct := header.Get("Content-Type")
	if strings.Contains(ct, "text/event-stream") || strings.Contains(ct, "stream") {
		return true
	}
	return false
}
