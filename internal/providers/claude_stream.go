package providers

import (
	"encoding/json"
	"fmt"
)

// Vendor SSE event shapes for the messages API stream.
type claudeStreamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`

	Message *struct {
		ID    string      `json:"id"`
		Model string      `json:"model"`
		Usage claudeUsage `json:"usage"`
	} `json:"message,omitempty"`

	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block,omitempty"`

	Delta json.RawMessage `json:"delta,omitempty"`
	Usage *claudeUsage    `json:"usage,omitempty"`
}

type claudeContentDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

// TransformStream re-chunks one vendor SSE payload into caller-facing
// chunks. The event vocabulary is finite; anything unrecognized is a no-op
// so a vendor addition never breaks an open stream.
func (p *ClaudeProvider) TransformStream(data []byte, state *StreamState) ([]byte, error) {
	var event claudeStreamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("decode claude stream event: %w", err)
	}

	switch event.Type {
	case "message_start":
		if event.Message != nil {
			if event.Message.ID != "" {
				state.ID = event.Message.ID
			}
			if event.Message.Model != "" {
				state.Model = event.Message.Model
			}
			state.PromptTokens = event.Message.Usage.InputTokens
		}
		return roleChunk(state), nil

	case "content_block_start":
		if event.ContentBlock == nil {
			return nil, nil
		}

		block := &BlockState{
			Type:     event.ContentBlock.Type,
			ToolID:   event.ContentBlock.ID,
			ToolName: event.ContentBlock.Name,
		}
		state.Blocks[event.Index] = block

		if block.Type != "tool_use" {
			return nil, nil
		}

		out := roleChunk(state)
		out = append(out, toolHeaderChunk(state, block.ToolID, block.ToolName)...)
		return out, nil

	case "content_block_delta":
		var delta claudeContentDelta
		if err := json.Unmarshal(event.Delta, &delta); err != nil {
			return nil, fmt.Errorf("decode claude content delta: %w", err)
		}

		switch delta.Type {
		case "text_delta":
			out := roleChunk(state)
			out = append(out, textChunk(state, delta.Text)...)
			return out, nil
		case "input_json_delta":
			return toolArgsChunk(state, delta.PartialJSON), nil
		}
		return nil, nil

	case "content_block_stop":
		if block, ok := state.Blocks[event.Index]; ok && block.Type == "tool_use" {
			state.ToolCallIndex++
		}
		return nil, nil

	case "message_delta":
		var delta claudeContentDelta
		if err := json.Unmarshal(event.Delta, &delta); err == nil && delta.StopReason != "" {
			state.StopReason = delta.StopReason
		}
		if event.Usage != nil {
			state.CompletionTokens = event.Usage.OutputTokens
		}
		return nil, nil

	case "message_stop":
		return finalChunk(state), nil
	}

	return nil, nil
}
