package xai_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/agent0/runner/internal/adapter/openaichat/openaichattest"
	"github.com/agent0/runner/internal/adapter/xai"
	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/domain/event"
	"github.com/agent0/runner/internal/domain/message"
	"github.com/agent0/runner/internal/port/llm"
)

func llmRequest(opts *agent.ProviderOptions) llm.StepRequest {
	return llm.StepRequest{
		Messages:        []message.Message{message.User(message.Text("ping"))},
		ProviderOptions: opts,
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := xai.New(json.RawMessage(`{}`)); !errors.Is(err, domain.ErrMalformedConfig) {
		t.Fatalf("expected ErrMalformedConfig, got %v", err)
	}
}

func TestReasoningEffortFromXAIOptions(t *testing.T) {
	srv := openaichattest.NewServer(t, func(r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["reasoning_effort"] != "low" {
			t.Errorf("reasoning_effort = %v", body["reasoning_effort"])
		}
	})
	p, err := xai.New(json.RawMessage(fmt.Sprintf(`{"apiKey":"xai-k","baseURL":%q}`, srv.URL)))
	if err != nil {
		t.Fatal(err)
	}
	m, _ := p.Model("grok-3-mini")
	_, err = m.Stream(context.Background(), llmRequest(&agent.ProviderOptions{
		OpenAI: &agent.ReasoningOptions{ReasoningEffort: "high"},
		XAI:    &agent.ReasoningOptions{ReasoningEffort: "low"},
	}), func(event.Event) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
}
