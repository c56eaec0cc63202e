package openaichat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"

	"github.com/agent0/runner/internal/domain/event"
	"github.com/agent0/runner/internal/domain/message"
	"github.com/agent0/runner/internal/port/llm"
)

// pendingCall accumulates the argument fragments of one streamed tool call.
type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// stepState translates chunks of one completion into events and parts.
// Text and reasoning blocks are opened lazily and closed when the other
// kind starts or the step ends. Tool calls are emitted once complete.
type stepState struct {
	emit llm.Emit

	content message.Content
	blocks  int

	text      *message.TextPart
	textID    string
	reasoning *message.ReasoningPart
	reasonID  string

	calls map[int64]*pendingCall
	order []int64

	finishReason string
	usage        event.Usage
}

func newStepState(emit llm.Emit) *stepState {
	return &stepState{emit: emit, calls: make(map[int64]*pendingCall)}
}

// reasoningDelta holds the non-standard reasoning fields some vendors add
// to chunk deltas.
type reasoningDelta struct {
	ReasoningContent string `json:"reasoning_content"`
	Reasoning        string `json:"reasoning"`
}

func (s *stepState) consume(chunk openai.ChatCompletionChunk) error {
	if u := chunk.Usage; u.TotalTokens > 0 || u.PromptTokens > 0 {
		s.usage = event.Usage{
			InputTokens:     u.PromptTokens,
			OutputTokens:    u.CompletionTokens,
			TotalTokens:     u.TotalTokens,
			ReasoningTokens: u.CompletionTokensDetails.ReasoningTokens,
		}
	}

	for _, choice := range chunk.Choices {
		if choice.Index != 0 {
			continue
		}
		if raw := choice.Delta.RawJSON(); raw != "" {
			var rd reasoningDelta
			if err := json.Unmarshal([]byte(raw), &rd); err == nil {
				r := rd.ReasoningContent
				if r == "" {
					r = rd.Reasoning
				}
				if r != "" {
					if err := s.reasoningDelta(r); err != nil {
						return err
					}
				}
			}
		}
		if choice.Delta.Content != "" {
			if err := s.textDelta(choice.Delta.Content); err != nil {
				return err
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			c, ok := s.calls[tc.Index]
			if !ok {
				c = &pendingCall{}
				s.calls[tc.Index] = c
				s.order = append(s.order, tc.Index)
			}
			if tc.ID != "" {
				c.id = tc.ID
			}
			if tc.Function.Name != "" {
				c.name = tc.Function.Name
			}
			c.args.WriteString(tc.Function.Arguments)
		}
		if choice.FinishReason != "" {
			s.finishReason = mapFinishReason(choice.FinishReason)
		}
	}
	return nil
}

func (s *stepState) nextID() string {
	id := fmt.Sprintf("%d", s.blocks)
	s.blocks++
	return id
}

func (s *stepState) textDelta(delta string) error {
	if err := s.closeReasoning(); err != nil {
		return err
	}
	if s.text == nil {
		s.text = &message.TextPart{}
		s.textID = s.nextID()
		s.content = append(s.content, s.text)
		if err := s.emit(event.NewTextStart(s.textID)); err != nil {
			return err
		}
	}
	s.text.Text += delta
	return s.emit(event.NewTextDelta(s.textID, delta))
}

func (s *stepState) reasoningDelta(delta string) error {
	if err := s.closeText(); err != nil {
		return err
	}
	if s.reasoning == nil {
		s.reasoning = &message.ReasoningPart{}
		s.reasonID = s.nextID()
		s.content = append(s.content, s.reasoning)
		if err := s.emit(event.NewReasoningStart(s.reasonID)); err != nil {
			return err
		}
	}
	s.reasoning.Text += delta
	return s.emit(event.NewReasoningDelta(s.reasonID, delta))
}

func (s *stepState) closeText() error {
	if s.text == nil {
		return nil
	}
	s.text = nil
	return s.emit(event.NewTextEnd(s.textID))
}

func (s *stepState) closeReasoning() error {
	if s.reasoning == nil {
		return nil
	}
	s.reasoning = nil
	return s.emit(event.NewReasoningEnd(s.reasonID))
}

// finish closes open blocks and emits the accumulated tool calls.
func (s *stepState) finish() (*llm.StepResult, error) {
	if err := s.closeReasoning(); err != nil {
		return nil, err
	}
	if err := s.closeText(); err != nil {
		return nil, err
	}

	for i, idx := range s.order {
		c := s.calls[idx]
		if c.id == "" {
			c.id = fmt.Sprintf("call_%d", i)
		}
		part := &message.ToolCallPart{ToolCallID: c.id, ToolName: c.name, Input: toolInput(c.args.String())}
		s.content = append(s.content, part)
		if err := s.emit(event.NewToolCall(part.ToolCallID, part.ToolName, part.Input)); err != nil {
			return nil, err
		}
	}

	reason := s.finishReason
	if reason == "" {
		reason = "unknown"
	}
	if len(s.order) > 0 && reason == "stop" {
		reason = "tool-calls"
	}
	return &llm.StepResult{Content: s.content, FinishReason: reason, Usage: s.usage}, nil
}

// toolInput returns streamed arguments as JSON. Arguments that are not
// valid JSON are passed on as a JSON string so the tool can reject them.
func toolInput(args string) json.RawMessage {
	if strings.TrimSpace(args) == "" {
		return json.RawMessage(`{}`)
	}
	if json.Valid([]byte(args)) {
		return json.RawMessage(args)
	}
	quoted, _ := json.Marshal(args)
	return quoted
}

func mapFinishReason(r string) string {
	switch r {
	case "stop":
		return "stop"
	case "length":
		return "length"
	case "content_filter":
		return "content-filter"
	case "tool_calls", "function_call":
		return "tool-calls"
	default:
		return "other"
	}
}
