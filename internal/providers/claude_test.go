package providers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bashirn3/cursor-azure-claude/internal/config"
	"github.com/bashirn3/cursor-azure-claude/internal/router"
)

func claudeTestConfig() config.Config {
	return config.Config{
		ClaudeEndpoint:   "https://claude.example.com/v1/messages",
		ClaudeAPIKey:     "sk-test",
		ClaudeModel:      "claude-test-model",
		ClaudeAPIVersion: "2023-06-01",
	}
}

func decodeRequest(t *testing.T, body []byte) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestClaudeProvider_BasicMethods(t *testing.T) {
	provider := NewClaudeProvider(NewSequenceGenerator())

	assert.Equal(t, "claude", provider.Name())
	assert.Equal(t, router.VendorClaude, provider.Vendor())
	assert.False(t, provider.Passthrough(claudeTestConfig()))

	endpoint, err := provider.Endpoint(claudeTestConfig())
	require.NoError(t, err)
	assert.Equal(t, "https://claude.example.com/v1/messages", endpoint)

	_, err = provider.Endpoint(config.Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClaudeProvider_Authenticate(t *testing.T) {
	provider := NewClaudeProvider(NewSequenceGenerator())

	req, err := http.NewRequest(http.MethodPost, "https://claude.example.com", nil)
	require.NoError(t, err)

	provider.Authenticate(req, claudeTestConfig())

	assert.Equal(t, "sk-test", req.Header.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", req.Header.Get("anthropic-version"))
}

func TestClaudeProvider_TransformRequest_Basic(t *testing.T) {
	provider := NewClaudeProvider(NewSequenceGenerator())

	body := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hello"}]}`)

	out, err := provider.TransformRequest(body, claudeTestConfig(), false)
	require.NoError(t, err)

	req := decodeRequest(t, out)
	assert.Equal(t, "claude-test-model", req["model"])
	assert.Equal(t, float64(8192), req["max_tokens"])

	msgs := req["messages"].([]any)
	require.Len(t, msgs, 1)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "hello", first["content"])
}

func TestClaudeProvider_TransformRequest_SystemPrefix(t *testing.T) {
	provider := NewClaudeProvider(NewSequenceGenerator())

	body := []byte(`{"messages":[
		{"role":"system","content":"be terse"},
		{"role":"user","content":"hi"}
	]}`)

	out, err := provider.TransformRequest(body, claudeTestConfig(), false)
	require.NoError(t, err)

	msgs := decodeRequest(t, out)["messages"].([]any)
	require.Len(t, msgs, 2)

	first := msgs[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "System: be terse", first["content"])
}

func TestClaudeProvider_TransformRequest_ToolResult(t *testing.T) {
	provider := NewClaudeProvider(NewSequenceGenerator())

	body := []byte(`{"messages":[
		{"role":"tool","tool_call_id":"call_abc","content":"72 degrees"}
	]}`)

	out, err := provider.TransformRequest(body, claudeTestConfig(), false)
	require.NoError(t, err)

	msgs := decodeRequest(t, out)["messages"].([]any)
	require.Len(t, msgs, 1)

	turn := msgs[0].(map[string]any)
	assert.Equal(t, "user", turn["role"])

	blocks := turn["content"].([]any)
	require.Len(t, blocks, 1)
	block := blocks[0].(map[string]any)
	assert.Equal(t, "tool_result", block["type"])
	assert.Equal(t, "call_abc", block["tool_use_id"])
	assert.Equal(t, "72 degrees", block["content"])
}

func TestClaudeProvider_TransformRequest_AssistantToolUse(t *testing.T) {
	provider := NewClaudeProvider(NewSequenceGenerator())

	body := []byte(`{"messages":[
		{"role":"assistant","content":"checking","tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{\"city\":\"Oslo\"}"}},
			{"id":"call_2","type":"function","function":{"name":"get_time","arguments":"not json"}}
		]}
	]}`)

	out, err := provider.TransformRequest(body, claudeTestConfig(), false)
	require.NoError(t, err)

	msgs := decodeRequest(t, out)["messages"].([]any)
	require.Len(t, msgs, 1)

	turn := msgs[0].(map[string]any)
	assert.Equal(t, "assistant", turn["role"])

	blocks := turn["content"].([]any)
	require.Len(t, blocks, 3)

	text := blocks[0].(map[string]any)
	assert.Equal(t, "text", text["type"])
	assert.Equal(t, "checking", text["text"])

	use := blocks[1].(map[string]any)
	assert.Equal(t, "tool_use", use["type"])
	assert.Equal(t, "call_1", use["id"])
	assert.Equal(t, "get_weather", use["name"])
	assert.Equal(t, map[string]any{"city": "Oslo"}, use["input"])

	// Unparseable arguments degrade to an empty input object.
	bad := blocks[2].(map[string]any)
	assert.Equal(t, "tool_use", bad["type"])
	assert.Equal(t, map[string]any{}, bad["input"])
}

func TestClaudeProvider_TransformRequest_Tools(t *testing.T) {
	provider := NewClaudeProvider(NewSequenceGenerator())
	cfg := claudeTestConfig()

	body := []byte(`{"messages":[{"role":"user","content":"hi"}],
		"tools":[{"type":"function","function":{"name":"get_weather","description":"weather","parameters":{"type":"object"}}}],
		"tool_choice":"auto"}`)

	out, err := provider.TransformRequest(body, cfg, false)
	require.NoError(t, err)

	req := decodeRequest(t, out)
	tools := req["tools"].([]any)
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]any)
	assert.Equal(t, "get_weather", tool["name"])
	assert.Equal(t, "weather", tool["description"])

	choice := req["tool_choice"].(map[string]any)
	assert.Equal(t, "auto", choice["type"])
}

func TestClaudeProvider_TransformRequest_ToolChoiceNoneStripsTools(t *testing.T) {
	provider := NewClaudeProvider(NewSequenceGenerator())

	body := []byte(`{"messages":[{"role":"user","content":"hi"}],
		"tools":[{"type":"function","function":{"name":"get_weather"}}],
		"tool_choice":"none"}`)

	out, err := provider.TransformRequest(body, claudeTestConfig(), false)
	require.NoError(t, err)

	req := decodeRequest(t, out)
	assert.NotContains(t, req, "tools")
	assert.NotContains(t, req, "tool_choice")
}

func TestClaudeProvider_TransformRequest_EmptyMessageSet(t *testing.T) {
	provider := NewClaudeProvider(NewSequenceGenerator())

	tests := []struct {
		name string
		body string
		err  error
	}{
		{"no input shape at all", `{"model":"claude-3"}`, ErrInvalidRequestFormat},
		{"all messages filtered", `{"messages":[{"role":"user","content":""}]}`, ErrEmptyMessageSet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.TransformRequest([]byte(tt.body), claudeTestConfig(), false)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClaudeProvider_TransformRequest_ImageTurnFix(t *testing.T) {
	provider := NewClaudeProvider(NewSequenceGenerator())

	body := []byte(`{"messages":[
		{"role":"user","content":"look at this"},
		{"role":"assistant","content":"sure, send it"},
		{"role":"user","content":[{"type":"image_url","image_url":{"url":"https://example.com/a.png"}}]}
	]}`)

	out, err := provider.TransformRequest(body, claudeTestConfig(), false)
	require.NoError(t, err)

	msgs := decodeRequest(t, out)["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
}

func TestClaudeProvider_TransformResponse_Text(t *testing.T) {
	provider := NewClaudeProvider(NewSequenceGenerator())

	body := []byte(`{
		"id":"msg_123","type":"message","model":"claude-test-model",
		"content":[{"type":"text","text":"Hello"},{"type":"text","text":" there"}],
		"stop_reason":"end_turn",
		"usage":{"input_tokens":2,"output_tokens":3}
	}`)

	out, err := provider.TransformResponse(body)
	require.NoError(t, err)

	var resp ChatCompletion
	require.NoError(t, json.Unmarshal(out, &resp))

	assert.Equal(t, "msg_123", resp.ID)
	assert.Equal(t, ObjectChatCompletion, resp.Object)
	require.Len(t, resp.Choices, 1)

	choice := resp.Choices[0]
	require.NotNil(t, choice.Message.Content)
	assert.Equal(t, "Hello there", *choice.Message.Content)
	assert.Equal(t, FinishStop, choice.FinishReason)

	assert.Equal(t, 2, resp.Usage.PromptTokens)
	assert.Equal(t, 3, resp.Usage.CompletionTokens)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestClaudeProvider_TransformResponse_ToolUse(t *testing.T) {
	provider := NewClaudeProvider(NewSequenceGenerator())

	body := []byte(`{
		"id":"msg_456","model":"claude-test-model",
		"content":[{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{"city":"Oslo"}}],
		"stop_reason":"tool_use",
		"usage":{"input_tokens":10,"output_tokens":4}
	}`)

	out, err := provider.TransformResponse(body)
	require.NoError(t, err)

	var resp ChatCompletion
	require.NoError(t, json.Unmarshal(out, &resp))

	require.Len(t, resp.Choices, 1)
	choice := resp.Choices[0]

	assert.Equal(t, FinishToolCalls, choice.FinishReason)
	assert.Nil(t, choice.Message.Content)

	require.Len(t, choice.Message.ToolCalls, 1)
	call := choice.Message.ToolCalls[0]
	assert.Equal(t, "toolu_1", call.ID)
	assert.Equal(t, "get_weather", call.Function.Name)
	assert.JSONEq(t, `{"city":"Oslo"}`, call.Function.Arguments)
}

func TestClaudeProvider_TransformResponse_Error(t *testing.T) {
	provider := NewClaudeProvider(NewSequenceGenerator())

	body := []byte(`{"type":"error","error":{"type":"overloaded_error","message":"try later"}}`)

	_, err := provider.TransformResponse(body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded_error")
}
