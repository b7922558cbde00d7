package providers

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role and finish-reason constants for the caller-facing shape.
const (
	RoleSystem    = "system"
	RoleDeveloper = "developer"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleFunction  = "function"

	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
	FinishLength    = "length"

	ObjectChatCompletion = "chat.completion"
	ObjectChatChunk      = "chat.completion.chunk"
)

// ChatRequest is the caller-supplied payload. Besides the canonical
// messages array, three fallback shapes are accepted: a bare role/content
// pair, an input array or scalar, and a bare content scalar.
type ChatRequest struct {
	Model           string          `json:"model,omitempty"`
	Messages        []Message       `json:"messages,omitempty"`
	Role            string          `json:"role,omitempty"`
	Content         json.RawMessage `json:"content,omitempty"`
	Input           json.RawMessage `json:"input,omitempty"`
	MaxTokens       int             `json:"max_tokens,omitempty"`
	MaxOutputTokens int             `json:"max_output_tokens,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	TopP            *float64        `json:"top_p,omitempty"`
	TopK            *int            `json:"top_k,omitempty"`
	Stream          bool            `json:"stream,omitempty"`
	Tools           []ToolSpec      `json:"tools,omitempty"`
	ToolChoice      json.RawMessage `json:"tool_choice,omitempty"`
	System          json.RawMessage `json:"system,omitempty"`
	StopSequences   json.RawMessage `json:"stop_sequences,omitempty"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
}

// Message is one conversation turn. Content is kept raw because callers mix
// plain strings with content-part arrays.
type Message struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

// ToolCall accepts both the OpenAI nested function shape and a flat
// vendor-native shape.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function,omitempty"`

	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type FunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ResolvedName prefers the nested function name over the flat one.
func (t ToolCall) ResolvedName() string {
	if t.Function.Name != "" {
		return t.Function.Name
	}
	return t.Name
}

// ResolvedArguments prefers the nested function arguments over the flat ones.
func (t ToolCall) ResolvedArguments() string {
	if t.Function.Arguments != "" {
		return t.Function.Arguments
	}
	return t.Arguments
}

// ToolSpec accepts both the OpenAI function wrapper and flat vendor-native
// tool definitions.
type ToolSpec struct {
	Type        string          `json:"type,omitempty"`
	Function    *FunctionSpec   `json:"function,omitempty"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

type FunctionSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Normalized resolves a tool entry to its canonical name, description, and
// JSON-schema parameters. ok is false when no name can be resolved.
func (t ToolSpec) Normalized() (name, description string, parameters json.RawMessage, ok bool) {
	if t.Function != nil && t.Function.Name != "" {
		params := t.Function.Parameters
		if len(params) == 0 {
			params = t.InputSchema
		}
		return t.Function.Name, t.Function.Description, params, true
	}

	if t.Name != "" {
		params := t.Parameters
		if len(params) == 0 {
			params = t.InputSchema
		}
		return t.Name, t.Description, params, true
	}

	return "", "", nil, false
}

// ChatCompletion is the unified non-streaming response envelope.
type ChatCompletion struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type ResponseMessage struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewUsage derives total_tokens; it is never sourced independently.
func NewUsage(prompt, completion int) Usage {
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

// ChatCompletionChunk is one streamed SSE chunk in the caller-facing shape.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type Delta struct {
	Role      string          `json:"role,omitempty"`
	Content   *string         `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

type ToolCallDelta struct {
	Index    int                `json:"index"`
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function *FunctionCallDelta `json:"function,omitempty"`
}

type FunctionCallDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// rawPresent reports whether a raw JSON field carries a value.
func rawPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// ResolveMessages derives the working message list from the first usable
// input shape, in priority order: messages, role/content, input, content.
func (r ChatRequest) ResolveMessages() ([]Message, error) {
	if len(r.Messages) > 0 {
		return r.Messages, nil
	}

	if r.Role != "" && rawPresent(r.Content) {
		return []Message{{Role: r.Role, Content: r.Content}}, nil
	}

	if rawPresent(r.Input) {
		if msgs, ok := messagesFromInput(r.Input); ok {
			return msgs, nil
		}
		return []Message{{Role: RoleUser, Content: r.Input}}, nil
	}

	if rawPresent(r.Content) {
		return []Message{{Role: RoleUser, Content: r.Content}}, nil
	}

	return nil, ErrInvalidRequestFormat
}

func messagesFromInput(raw json.RawMessage) ([]Message, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}

	var msgs []Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, false
	}

	for _, m := range msgs {
		if m.Role == "" {
			return nil, false
		}
	}

	return msgs, true
}

// ResolvedMaxTokens applies the vendor default when the caller set neither
// max_tokens nor max_output_tokens.
func (r ChatRequest) ResolvedMaxTokens(vendorDefault int) int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	if r.MaxOutputTokens > 0 {
		return r.MaxOutputTokens
	}
	return vendorDefault
}

// contentPart is the subset of a content-part object the transcoders care
// about.
type contentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL json.RawMessage `json:"image_url,omitempty"`
	Image    json.RawMessage `json:"image,omitempty"`
	Source   json.RawMessage `json:"source,omitempty"`
}

func textPartType(t string) bool {
	switch t {
	case "text", "input_text", "output_text":
		return true
	}
	return false
}

func imagePartType(p contentPart) bool {
	if len(p.ImageURL) > 0 || len(p.Image) > 0 {
		return true
	}
	switch p.Type {
	case "image", "image_url", "input_image":
		return true
	}
	return false
}

// FlattenText reduces message content to plain text. String content is
// returned as-is; for part arrays only text-like parts are kept and joined.
// Non-text parts (notably images) are dropped.
func FlattenText(raw json.RawMessage) string {
	if !rawPresent(raw) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}

	var b strings.Builder
	for _, p := range parts {
		if textPartType(p.Type) {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// StringifyContent renders content as a string, JSON-encoding anything that
// is not already a plain string.
func StringifyContent(raw json.RawMessage) string {
	if !rawPresent(raw) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	return string(raw)
}

// hasImagePart reports whether message content carries an image reference.
func hasImagePart(raw json.RawMessage) bool {
	if !rawPresent(raw) {
		return false
	}

	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return false
	}

	for _, p := range parts {
		if imagePartType(p) {
			return true
		}
	}
	return false
}

// FixImageTurns drops an assistant turn that immediately precedes a user
// turn carrying an image, so the image lands directly after the last user
// text turn.
func FixImageTurns(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))

	for _, m := range msgs {
		if m.Role == RoleUser && hasImagePart(m.Content) {
			if n := len(out); n > 0 && out[n-1].Role == RoleAssistant {
				out = out[:n-1]
			}
		}
		out = append(out, m)
	}

	return out
}

// hasContent reports whether the message carries non-empty content.
func (m Message) hasContent() bool {
	if !rawPresent(m.Content) {
		return false
	}

	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s != ""
	}

	return true
}

// emitChunk encodes one caller-facing SSE chunk.
func emitChunk(chunk ChatCompletionChunk) []byte {
	data, err := json.Marshal(chunk)
	if err != nil {
		// The chunk is built from plain values; this cannot fail in
		// practice, but never break the stream over it.
		return nil
	}
	return []byte(fmt.Sprintf("data: %s\n\n", data))
}

// doneMarker is the literal stream terminator.
var doneMarker = []byte("data: [DONE]\n\n")

// baseChunk stamps the shared envelope fields from the session state.
func baseChunk(state *StreamState) ChatCompletionChunk {
	return ChatCompletionChunk{
		ID:      state.ID,
		Object:  ObjectChatChunk,
		Created: state.Created,
		Model:   state.Model,
	}
}

// roleChunk introduces the assistant role at stream start.
func roleChunk(state *StreamState) []byte {
	if state.RoleSent {
		return nil
	}
	state.RoleSent = true

	chunk := baseChunk(state)
	chunk.Choices = []ChunkChoice{{Delta: Delta{Role: RoleAssistant}}}
	return emitChunk(chunk)
}

// textChunk emits a content fragment.
func textChunk(state *StreamState, text string) []byte {
	chunk := baseChunk(state)
	chunk.Choices = []ChunkChoice{{Delta: Delta{Content: &text}}}
	return emitChunk(chunk)
}

// toolHeaderChunk introduces a new tool call at the session's current index.
func toolHeaderChunk(state *StreamState, id, name string) []byte {
	state.SawToolCall = true

	chunk := baseChunk(state)
	chunk.Choices = []ChunkChoice{{
		Delta: Delta{
			ToolCalls: []ToolCallDelta{{
				Index:    state.ToolCallIndex,
				ID:       id,
				Type:     "function",
				Function: &FunctionCallDelta{Name: name, Arguments: ""},
			}},
		},
	}}
	return emitChunk(chunk)
}

// toolArgsChunk emits an argument fragment for the currently open tool call.
func toolArgsChunk(state *StreamState, fragment string) []byte {
	chunk := baseChunk(state)
	chunk.Choices = []ChunkChoice{{
		Delta: Delta{
			ToolCalls: []ToolCallDelta{{
				Index:    state.ToolCallIndex,
				Function: &FunctionCallDelta{Arguments: fragment},
			}},
		},
	}}
	return emitChunk(chunk)
}

// finalChunk emits the terminal chunk plus the stream terminator.
func finalChunk(state *StreamState) []byte {
	if state.Done {
		return nil
	}
	state.Done = true

	reason := state.FinishReason()
	chunk := baseChunk(state)
	chunk.Choices = []ChunkChoice{{Delta: Delta{}, FinishReason: &reason}}

	if state.PromptTokens > 0 || state.CompletionTokens > 0 {
		usage := NewUsage(state.PromptTokens, state.CompletionTokens)
		chunk.Usage = &usage
	}

	return append(emitChunk(chunk), doneMarker...)
}
