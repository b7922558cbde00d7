package providers

import (
	"encoding/json"
	"fmt"
)

// Vendor SSE event shape for the responses API stream. One struct covers the
// whole vocabulary; events carry only the fields relevant to their type.
type gptStreamEvent struct {
	Type        string `json:"type"`
	OutputIndex int    `json:"output_index"`

	Item *struct {
		Type   string `json:"type"`
		ID     string `json:"id"`
		CallID string `json:"call_id"`
		Name   string `json:"name"`
	} `json:"item,omitempty"`

	Delta json.RawMessage `json:"delta,omitempty"`

	Response *struct {
		ID    string         `json:"id"`
		Model string         `json:"model"`
		Usage responsesUsage `json:"usage"`
	} `json:"response,omitempty"`
}

// TransformStream re-chunks one vendor SSE payload from the responses API
// into caller-facing chunks. Unrecognized events are a no-op.
func (p *GPTProvider) TransformStream(data []byte, state *StreamState) ([]byte, error) {
	var event gptStreamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("decode gpt stream event: %w", err)
	}

	switch event.Type {
	case "response.created":
		if event.Response != nil {
			if event.Response.ID != "" {
				state.ID = event.Response.ID
			}
			if event.Response.Model != "" {
				state.Model = event.Response.Model
			}
		}
		return roleChunk(state), nil

	case "response.output_item.added":
		if event.Item == nil || event.Item.Type != "function_call" {
			return nil, nil
		}

		callID := event.Item.CallID
		if callID == "" {
			callID = event.Item.ID
		}
		if callID == "" {
			callID = p.ids.CallID()
		}

		state.Blocks[event.OutputIndex] = &BlockState{
			Type:     "function_call",
			ToolID:   callID,
			ToolName: event.Item.Name,
		}

		out := roleChunk(state)
		out = append(out, toolHeaderChunk(state, callID, event.Item.Name)...)
		return out, nil

	case "response.output_text.delta", "response.text.delta":
		text := decodeStringDelta(event.Delta)
		if text == "" {
			return nil, nil
		}
		out := roleChunk(state)
		out = append(out, textChunk(state, text)...)
		return out, nil

	case "response.function_call_arguments.delta":
		fragment := decodeStringDelta(event.Delta)
		if fragment == "" {
			return nil, nil
		}
		return toolArgsChunk(state, fragment), nil

	case "response.output_item.done":
		if event.Item != nil && event.Item.Type == "function_call" {
			state.ToolCallIndex++
		}
		return nil, nil

	case "response.done", "response.completed":
		if event.Response != nil {
			state.PromptTokens = event.Response.Usage.prompt()
			state.CompletionTokens = event.Response.Usage.completion()
		}
		return finalChunk(state), nil

	// Some gateway builds fall back to the messages-API delta framing for
	// plain text.
	case "content_block_delta":
		var delta struct {
			Delta struct {
				Text string `json:"text"`
			} `json:"delta"`
		}
		if err := json.Unmarshal(data, &delta); err != nil || delta.Delta.Text == "" {
			return nil, nil
		}
		out := roleChunk(state)
		out = append(out, textChunk(state, delta.Delta.Text)...)
		return out, nil
	}

	return nil, nil
}

// decodeStringDelta accepts both a bare JSON string delta and an object
// wrapping it under "text".
func decodeStringDelta(raw json.RawMessage) string {
	if !rawPresent(raw) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var wrapped struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.Text
	}
	return ""
}
