package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/rxrag/internal/config"
	"github.com/raphaelgruber/rxrag/internal/metrics"
)

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"credit balance", errors.New("insufficient credit balance"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota exceeded", errors.New("quota exceeded for model"), true},
		{"billing issue", errors.New("billing account inactive"), true},
		{"invalid api key", errors.New("invalid api key"), true},
		{"authentication failed", errors.New("authentication failed"), true},
		{"unauthorized", errors.New("unauthorized request"), true},
		{"401 status", errors.New("HTTP 401: not allowed"), true},
		{"403 status", errors.New("HTTP 403: forbidden"), true},
		{"wrapped error", fmt.Errorf("embed: %w", errors.New("credit balance too low")), true},
		{"404 not fatal", errors.New("HTTP 404: not found"), false},
		{"401 status code", errors.New("openai: unexpected status 401"), true},
		{"digits in request id", errors.New("request req_4015403 failed: connection reset"), false},
		{"digits in token count", errors.New("prompt has 1403 tokens, exceeds context"), false},
		{"timeout not fatal", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isFatalAPIError(tt.err)
			if got != tt.fatal {
				t.Errorf("isFatalAPIError(%v) = %v, want %v", tt.err, got, tt.fatal)
			}
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	t.Run("wraps fatal error", func(t *testing.T) {
		err := errors.New("invalid api key provided")
		wrapped := wrapFatalError(err)
		if !errors.Is(wrapped, ErrFatalAPI) {
			t.Errorf("expected wrapped error to match ErrFatalAPI")
		}
	})

	t.Run("passes through non-fatal error", func(t *testing.T) {
		err := errors.New("network timeout")
		result := wrapFatalError(err)
		if errors.Is(result, ErrFatalAPI) {
			t.Errorf("non-fatal error should not be wrapped with ErrFatalAPI")
		}
		if result != err {
			t.Errorf("expected original error returned, got %v", result)
		}
	})

	t.Run("nil error", func(t *testing.T) {
		result := wrapFatalError(nil)
		if result != nil {
			t.Errorf("expected nil, got %v", result)
		}
	})
}

// fakeLLM records the last call and replies with a canned response.
type fakeLLM struct {
	reply    string
	info     map[string]any
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	f.opts = llms.CallOptions{}
	for _, o := range options {
		o(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply, GenerationInfo: f.info}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func messageText(t *testing.T, m llms.MessageContent) string {
	t.Helper()
	require.Len(t, m.Parts, 1)
	part, ok := m.Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func TestGenerateJSONRequestsJSONMode(t *testing.T) {
	fake := &fakeLLM{reply: `{"name":"get_drug_info"}`}
	m := newModel(fake, "test", nil)

	out, err := m.GenerateJSON(context.Background(), "route this")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"get_drug_info"}`, out)
	assert.True(t, fake.opts.JSONMode)
	require.Len(t, fake.messages, 1)
	assert.Equal(t, "route this", messageText(t, fake.messages[0]))

	_, err = m.GenerateWithSystem(context.Background(), "system", "plain")
	require.NoError(t, err)
	assert.False(t, fake.opts.JSONMode)
}

func TestAnswerUsesPharmacistPrompt(t *testing.T) {
	fake := &fakeLLM{reply: "Take it with food."}
	m := newModel(fake, "test", nil)

	out, err := m.Answer(context.Background(), AnswerRequest{Prompt: "When do I take Metformin?", Context: "Metformin:\nIndications: diabetes"})
	require.NoError(t, err)
	assert.Equal(t, "Take it with food.", out)

	require.Len(t, fake.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, fake.messages[0].Role)
	assert.Contains(t, messageText(t, fake.messages[0]), "pharmacist")
	user := messageText(t, fake.messages[1])
	assert.Contains(t, user, `Patient question: "When do I take Metformin?"`)
	assert.Contains(t, user, "Indications: diabetes")
	assert.NotContains(t, user, "Hi, I'm Sally")
}

func TestBuildAnswerPromptIntroduction(t *testing.T) {
	p := BuildAnswerPrompt(AnswerRequest{Prompt: "hi", Context: "none", Introduce: true})
	assert.Contains(t, p, "Hi, I'm Sally")
}

func TestGenerateWrapsFatalErrors(t *testing.T) {
	m := newModel(&fakeLLM{err: errors.New("HTTP 401: invalid api key")}, "test", nil)
	_, err := m.GenerateWithSystem(context.Background(), "system", "x")
	assert.ErrorIs(t, err, ErrFatalAPI)

	m = newModel(&fakeLLM{err: errors.New("connection refused")}, "test", nil)
	_, err = m.GenerateWithSystem(context.Background(), "system", "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrFatalAPI)
}

func TestGenerateRecordsTokenUsage(t *testing.T) {
	mc := metrics.NewCollector()
	fake := &fakeLLM{reply: "ok", info: map[string]any{"PromptTokens": 12, "CompletionTokens": 3}}
	m := newModel(fake, "test", mc)

	_, err := m.GenerateJSON(context.Background(), "x")
	require.NoError(t, err)

	snap := mc.Snapshot().LLMGenerate
	require.NotNil(t, snap)
	require.NotNil(t, snap.TotalInputTokens)
	assert.Equal(t, int64(12), *snap.TotalInputTokens)
	assert.Equal(t, int64(3), *snap.TotalOutputTokens)
}

func TestTokenCounts(t *testing.T) {
	tests := []struct {
		name    string
		info    map[string]any
		in, out int64
	}{
		{"nil", nil, 0, 0},
		{"ollama/openai", map[string]any{"PromptTokens": 5, "CompletionTokens": 7}, 5, 7},
		{"anthropic", map[string]any{"InputTokens": 9, "OutputTokens": 2}, 9, 2},
		{"bedrock", map[string]any{"input_tokens": int32(4), "output_tokens": float64(6)}, 4, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, out := tokenCounts(tt.info)
			assert.Equal(t, tt.in, in)
			assert.Equal(t, tt.out, out)
		})
	}
}

func TestNewModelValidatesProvider(t *testing.T) {
	ctx := context.Background()

	_, err := NewModel(ctx, config.Config{LLMProvider: "watson"}, nil)
	assert.ErrorContains(t, err, "unsupported LLM provider")

	_, err = NewModel(ctx, config.Config{LLMProvider: config.ProviderOpenAI, LLMModel: "gpt-4o"}, nil)
	assert.ErrorContains(t, err, "API key required")

	_, err = NewModel(ctx, config.Config{LLMProvider: config.ProviderAnthropic, LLMModel: "claude"}, nil)
	assert.ErrorContains(t, err, "API key required")

	m, err := NewModel(ctx, config.Config{LLMProvider: config.ProviderOllama, LLMModel: "llama3", OllamaHost: "http://localhost:11434"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, m)
}
