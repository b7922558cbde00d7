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

const gptDefaultMaxTokens = 16384

// GPTProvider translates the caller-facing chat shape to and from the
// OpenAI-style gateway. In responses mode requests become an ordered input
// item list; in chat mode bodies pass through with only the model rewritten.
type GPTProvider struct {
	name string
	ids  IDGenerator
}

func NewGPTProvider(ids IDGenerator) *GPTProvider {
	return &GPTProvider{name: "gpt", ids: ids}
}

func (p *GPTProvider) Name() string          { return p.name }
func (p *GPTProvider) Vendor() router.Vendor { return router.VendorGPT }

func (p *GPTProvider) Endpoint(cfg config.Config) (string, error) {
	if !cfg.OpenAIConfigured() {
		return "", fmt.Errorf("gpt: %w", ErrNotConfigured)
	}
	return cfg.OpenAIEndpoint, nil
}

func (p *GPTProvider) Authenticate(req *http.Request, cfg config.Config) {
	req.Header.Set("Authorization", "Bearer "+cfg.OpenAIAPIKey)
}

func (p *GPTProvider) Passthrough(cfg config.Config) bool {
	return cfg.OpenAIMode == config.ModeChat
}

func (p *GPTProvider) IsStreaming(header http.Header) bool {
	return isEventStream(header)
}

// responsesRequest is the structured-mode vendor payload.
type responsesRequest struct {
	Model           string          `json:"model"`
	Input           []responsesItem `json:"input"`
	Instructions    string          `json:"instructions,omitempty"`
	MaxOutputTokens int             `json:"max_output_tokens,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	Stream          bool            `json:"stream,omitempty"`
	Tools           []responsesTool `json:"tools,omitempty"`
	ToolChoice      json.RawMessage `json:"tool_choice,omitempty"`
}

// responsesItem is one ordered input item, tagged message, function_call, or
// function_call_output.
type responsesItem struct {
	Type      string `json:"type"`
	Role      string `json:"role,omitempty"`
	Content   string `json:"content,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`
}

type responsesTool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// TransformRequest builds the vendor payload for the configured mode. The
// caller's model name is replaced by the deployment name in both modes.
func (p *GPTProvider) TransformRequest(body []byte, cfg config.Config, stream bool) ([]byte, error) {
	if p.Passthrough(cfg) {
		return rewriteModel(body, cfg.OpenAIModel)
	}

	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("decode chat request: %w", err)
	}

	msgs, err := req.ResolveMessages()
	if err != nil {
		return nil, err
	}
	msgs = FixImageTurns(msgs)

	items, instructions := buildInputItems(msgs, p.ids)

	// Safety net: anything still tagged system/developer is folded into
	// instructions and must never be forwarded as ordinary input.
	kept := items[:0]
	for _, item := range items {
		if item.Role == RoleSystem || item.Role == RoleDeveloper {
			instructions = appendInstruction(instructions, item.Content)
			continue
		}
		kept = append(kept, item)
	}
	items = kept

	if len(items) == 0 {
		return nil, ErrEmptyMessageSet
	}

	out := responsesRequest{
		Model:           cfg.OpenAIModel,
		Input:           items,
		Instructions:    strings.Join(instructions, "\n"),
		MaxOutputTokens: req.ResolvedMaxTokens(gptDefaultMaxTokens),
		Temperature:     req.Temperature,
		Stream:          stream,
	}

	out.Tools = normalizeGPTTools(req.Tools)
	out.ToolChoice = mapGPTToolChoice(req.ToolChoice, len(out.Tools) > 0)

	return json.Marshal(out)
}

// rewriteModel is chat passthrough: the original body is forwarded with only
// the model field overwritten.
func rewriteModel(body []byte, model string) ([]byte, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode chat request: %w", err)
	}

	raw["model"] = model

	return json.Marshal(raw)
}

func buildInputItems(msgs []Message, ids IDGenerator) ([]responsesItem, []string) {
	var items []responsesItem
	var instructions []string

	for _, m := range msgs {
		switch m.Role {
		case RoleSystem, RoleDeveloper:
			instructions = appendInstruction(instructions, FlattenText(m.Content))

		case RoleTool, RoleFunction:
			ref := m.ToolCallID
			if ref == "" {
				ref = m.Name
			}
			items = append(items, responsesItem{
				Type:   "function_call_output",
				CallID: ref,
				Output: StringifyContent(m.Content),
			})

		case RoleAssistant:
			if text := FlattenText(m.Content); text != "" {
				items = append(items, responsesItem{
					Type:    "message",
					Role:    RoleAssistant,
					Content: text,
				})
			}
			for _, call := range m.ToolCalls {
				callID := call.ID
				if callID == "" {
					callID = ids.CallID()
				}
				items = append(items, responsesItem{
					Type:      "function_call",
					CallID:    callID,
					Name:      call.ResolvedName(),
					Arguments: call.ResolvedArguments(),
				})
			}

		default:
			if text := FlattenText(m.Content); text != "" {
				items = append(items, responsesItem{
					Type:    "message",
					Role:    RoleUser,
					Content: text,
				})
			}
		}
	}

	return items, instructions
}

func appendInstruction(instructions []string, text string) []string {
	if text == "" {
		return instructions
	}
	return append(instructions, text)
}

// normalizeGPTTools flattens both accepted tool shapes; entries without a
// resolvable name are dropped.
func normalizeGPTTools(tools []ToolSpec) []responsesTool {
	if len(tools) == 0 {
		return nil
	}

	out := make([]responsesTool, 0, len(tools))
	for _, t := range tools {
		name, desc, params, ok := t.Normalized()
		if !ok {
			continue
		}
		out = append(out, responsesTool{
			Type:        "function",
			Name:        name,
			Description: desc,
			Parameters:  params,
		})
	}

	return out
}

// mapGPTToolChoice passes string choices through, maps a named function to
// the vendor object shape, and defaults to "auto" when tools are present.
func mapGPTToolChoice(choice json.RawMessage, haveTools bool) json.RawMessage {
	if rawPresent(choice) {
		var s string
		if err := json.Unmarshal(choice, &s); err == nil {
			return choice
		}

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
				mapped, _ := json.Marshal(map[string]string{"type": "function", "name": name})
				return mapped
			}
		}
		return nil
	}

	if haveTools {
		return json.RawMessage(`"auto"`)
	}
	return nil
}

// responsesResponse is the buffered vendor response in responses mode.
type responsesResponse struct {
	ID     string            `json:"id"`
	Model  string            `json:"model"`
	Output []responsesOutput `json:"output"`
	Usage  responsesUsage    `json:"usage"`
	Error  *gptAPIError      `json:"error,omitempty"`
}

type responsesOutput struct {
	Type      string          `json:"type"`
	Role      string          `json:"role,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	ID        string          `json:"id,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments string          `json:"arguments,omitempty"`
}

type responsesUsage struct {
	InputTokens      int `json:"input_tokens"`
	OutputTokens     int `json:"output_tokens"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

func (u responsesUsage) prompt() int {
	if u.InputTokens > 0 {
		return u.InputTokens
	}
	return u.PromptTokens
}

func (u responsesUsage) completion() int {
	if u.OutputTokens > 0 {
		return u.OutputTokens
	}
	return u.CompletionTokens
}

type gptAPIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// TransformResponse reshapes a buffered responses-mode vendor payload. In
// chat mode the handler forwards bodies verbatim and never calls this.
func (p *GPTProvider) TransformResponse(body []byte) ([]byte, error) {
	var resp responsesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode gpt response: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("gpt error (%s): %s", resp.Error.Type, resp.Error.Message)
	}

	var text strings.Builder
	var toolCalls []ToolCall

	for _, item := range resp.Output {
		switch item.Type {
		case "message":
			text.WriteString(flattenOutputContent(item.Content))
		case "function_call":
			id := item.CallID
			if id == "" {
				id = item.ID
			}
			if id == "" {
				id = p.ids.CallID()
			}

			args := item.Arguments
			if args == "" {
				args = "{}"
			}

			toolCalls = append(toolCalls, ToolCall{
				ID:       id,
				Type:     "function",
				Function: FunctionCall{Name: item.Name, Arguments: args},
			})
		}
	}

	// Any tool call forces tool_calls over the default stop.
	finish := FinishStop
	if len(toolCalls) > 0 {
		finish = FinishToolCalls
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
			FinishReason: finish,
		}},
		Usage: NewUsage(resp.Usage.prompt(), resp.Usage.completion()),
	}

	return json.Marshal(out)
}

// flattenOutputContent accepts both a bare string and an array of
// output_text/text sub-parts.
func flattenOutputContent(raw json.RawMessage) string {
	if !rawPresent(raw) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}

	var b strings.Builder
	for _, part := range parts {
		switch part.Type {
		case "output_text", "text":
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
