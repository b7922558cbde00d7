package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bashirn3/cursor-azure-claude/internal/config"
	"github.com/bashirn3/cursor-azure-claude/internal/router"
)

const claudeDefaultMaxTokens = 8192

// ClaudeProvider translates the caller-facing chat shape to and from the
// Anthropic-style messages API.
type ClaudeProvider struct {
	name string
	ids  IDGenerator
}

func NewClaudeProvider(ids IDGenerator) *ClaudeProvider {
	return &ClaudeProvider{name: "claude", ids: ids}
}

func (p *ClaudeProvider) Name() string          { return p.name }
func (p *ClaudeProvider) Vendor() router.Vendor { return router.VendorClaude }

func (p *ClaudeProvider) Endpoint(cfg config.Config) (string, error) {
	if !cfg.ClaudeConfigured() {
		return "", fmt.Errorf("claude: %w", ErrNotConfigured)
	}
	return cfg.ClaudeEndpoint, nil
}

func (p *ClaudeProvider) Authenticate(req *http.Request, cfg config.Config) {
	req.Header.Set("x-api-key", cfg.ClaudeAPIKey)
	req.Header.Set("anthropic-version", cfg.ClaudeAPIVersion)
}

func (p *ClaudeProvider) Passthrough(config.Config) bool { return false }

func (p *ClaudeProvider) IsStreaming(header http.Header) bool {
	return isEventStream(header)
}

// claudeRequest is the vendor payload.
type claudeRequest struct {
	Model         string          `json:"model"`
	Messages      []claudeMessage `json:"messages"`
	MaxTokens     int             `json:"max_tokens"`
	System        json.RawMessage `json:"system,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	TopK          *int            `json:"top_k,omitempty"`
	StopSequences json.RawMessage `json:"stop_sequences,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	Tools         []claudeTool    `json:"tools,omitempty"`
	ToolChoice    map[string]any  `json:"tool_choice,omitempty"`
}

type claudeMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type claudeTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`

	// Non-function tool entries pass through unchanged.
	raw json.RawMessage
}

func (t claudeTool) MarshalJSON() ([]byte, error) {
	if len(t.raw) > 0 {
		return t.raw, nil
	}
	type plain claudeTool
	return json.Marshal(plain(t))
}

type claudeBlock struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Input     any    `json:"input,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   any    `json:"content,omitempty"`
}

// TransformRequest builds the vendor payload. The caller's model name is
// replaced by the configured deployment name and never forwarded.
func (p *ClaudeProvider) TransformRequest(body []byte, cfg config.Config, stream bool) ([]byte, error) {
	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("decode chat request: %w", err)
	}

	msgs, err := req.ResolveMessages()
	if err != nil {
		return nil, err
	}
	msgs = FixImageTurns(msgs)

	converted := make([]claudeMessage, 0, len(msgs))
	for _, m := range msgs {
		if !m.hasContent() && len(m.ToolCalls) == 0 {
			continue
		}

		cm, ok := convertClaudeMessage(m)
		if !ok {
			continue
		}
		converted = append(converted, cm)
	}

	if len(converted) == 0 {
		return nil, ErrEmptyMessageSet
	}

	out := claudeRequest{
		Model:         cfg.ClaudeModel,
		Messages:      converted,
		MaxTokens:     req.ResolvedMaxTokens(claudeDefaultMaxTokens),
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		StopSequences: req.StopSequences,
		Metadata:      req.Metadata,
		Stream:        stream,
		System:        coerceSystem(req.System),
	}

	out.Tools, out.ToolChoice = convertClaudeTools(req.Tools, req.ToolChoice)

	return json.Marshal(out)
}

func convertClaudeMessage(m Message) (claudeMessage, bool) {
	switch m.Role {
	case RoleSystem, RoleDeveloper:
		return systemAsUserTurn(m), true

	case RoleTool, RoleFunction:
		return toolResultTurn(m), true

	case RoleAssistant:
		if len(m.ToolCalls) > 0 {
			return assistantToolUseTurn(m), true
		}
		return claudeMessage{Role: RoleAssistant, Content: m.Content}, true

	default:
		return claudeMessage{Role: RoleUser, Content: m.Content}, true
	}
}

// systemAsUserTurn folds a system message into a synthetic user turn. String
// content gets the "System: " prefix; structured content passes through
// unmodified.
func systemAsUserTurn(m Message) claudeMessage {
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		prefixed, _ := json.Marshal("System: " + s)
		return claudeMessage{Role: RoleUser, Content: prefixed}
	}
	return claudeMessage{Role: RoleUser, Content: m.Content}
}

// toolResultTurn wraps a tool/function message in a single tool_result block
// referencing the originating call.
func toolResultTurn(m Message) claudeMessage {
	ref := m.ToolCallID
	if ref == "" {
		ref = m.Name
	}

	block := claudeBlock{
		Type:      "tool_result",
		ToolUseID: ref,
		Content:   StringifyContent(m.Content),
	}

	content, _ := json.Marshal([]claudeBlock{block})
	return claudeMessage{Role: RoleUser, Content: content}
}

// assistantToolUseTurn emits an optional leading text block followed by one
// tool_use block per call. Unparseable call arguments degrade to an empty
// input object; that is intentional lossy recovery, never an error.
func assistantToolUseTurn(m Message) claudeMessage {
	var blocks []claudeBlock

	if m.hasContent() {
		if text := FlattenText(m.Content); text != "" {
			blocks = append(blocks, claudeBlock{Type: "text", Text: text})
		}
	}

	for _, call := range m.ToolCalls {
		input := map[string]any{}
		if args := call.ResolvedArguments(); args != "" {
			if err := json.Unmarshal([]byte(args), &input); err != nil {
				input = map[string]any{}
			}
		}

		blocks = append(blocks, claudeBlock{
			Type:  "tool_use",
			ID:    call.ID,
			Name:  call.ResolvedName(),
			Input: input,
		})
	}

	content, _ := json.Marshal(blocks)
	return claudeMessage{Role: RoleAssistant, Content: content}
}

// coerceSystem keeps array-valued system prompts intact and renders anything
// else as a JSON string.
func coerceSystem(raw json.RawMessage) json.RawMessage {
	if !rawPresent(raw) {
		return nil
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		return raw
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return raw
	}

	coerced, _ := json.Marshal(string(raw))
	return coerced
}

// convertClaudeTools maps tool specs and tool_choice to the vendor schema.
// tool_choice "none" removes tools entirely instead of being forwarded.
func convertClaudeTools(tools []ToolSpec, choice json.RawMessage) ([]claudeTool, map[string]any) {
	if len(tools) == 0 {
		return nil, nil
	}

	var choiceStr string
	if rawPresent(choice) {
		if err := json.Unmarshal(choice, &choiceStr); err == nil && choiceStr == "none" {
			return nil, nil
		}
	}

	out := make([]claudeTool, 0, len(tools))
	for _, t := range tools {
		if t.Type != "" && t.Type != "function" {
			raw, err := json.Marshal(t)
			if err == nil {
				out = append(out, claudeTool{raw: raw})
			}
			continue
		}

		name, desc, params, ok := t.Normalized()
		if !ok {
			continue
		}
		out = append(out, claudeTool{Name: name, Description: desc, InputSchema: params})
	}

	var tc map[string]any
	switch {
	case choiceStr == "auto":
		tc = map[string]any{"type": "auto"}
	case choiceStr == "required":
		tc = map[string]any{"type": "any"}
	case choiceStr == "" && rawPresent(choice):
		var named struct {
			Function *struct {
				Name string `json:"name"`
			} `json:"function"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(choice, &named); err == nil {
			name := named.Name
			if named.Function != nil && named.Function.Name != "" {
				name = named.Function.Name
			}
			if name != "" {
				tc = map[string]any{"type": "tool", "name": name}
			}
		}
	}

	return out, tc
}

// claudeResponse is the buffered vendor response.
type claudeResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Model      string            `json:"model"`
	Content    []claudeRespBlock `json:"content"`
	StopReason string            `json:"stop_reason"`
	Usage      claudeUsage       `json:"usage"`
	Error      *claudeAPIError   `json:"error,omitempty"`
}

type claudeRespBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type claudeAPIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// TransformResponse reshapes a buffered vendor response into the unified
// chat-completion envelope.
func (p *ClaudeProvider) TransformResponse(body []byte) ([]byte, error) {
	var resp claudeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode claude response: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("claude error (%s): %s", resp.Error.Type, resp.Error.Message)
	}

	var text strings.Builder
	var toolCalls []ToolCall

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			id := block.ID
			if id == "" {
				id = p.ids.CallID()
			}

			args := "{}"
			if rawPresent(block.Input) {
				args = string(block.Input)
			}

			toolCalls = append(toolCalls, ToolCall{
				ID:       id,
				Type:     "function",
				Function: FunctionCall{Name: block.Name, Arguments: args},
			})
		}
	}

	id := resp.ID
	if id == "" {
		id = p.ids.CompletionID()
	}

	out := ChatCompletion{
		ID:      id,
		Object:  ObjectChatCompletion,
		Created: time.Now().Unix(),
		Model:   resp.Model,
		Choices: []Choice{{
			Message: ResponseMessage{
				Role:      RoleAssistant,
				Content:   responseContent(text.String(), len(toolCalls) > 0),
				ToolCalls: toolCalls,
			},
			FinishReason: mapClaudeStopReason(resp.StopReason),
		}},
		Usage: NewUsage(resp.Usage.InputTokens, resp.Usage.OutputTokens),
	}

	return json.Marshal(out)
}

// responseContent returns null content for pure tool-call turns, matching
// the chat-completions convention.
func responseContent(text string, hasToolCalls bool) *string {
	if text == "" && hasToolCalls {
		return nil
	}
	return &text
}

func mapClaudeStopReason(reason string) string {
	switch reason {
	case "tool_use":
		return FinishToolCalls
	case "end_turn":
		return FinishStop
	case "":
		return FinishStop
	default:
		return reason
	}
}
