package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	cfotel "github.com/agent0/runner/internal/adapter/otel"
	"github.com/agent0/runner/internal/domain/event"
	"github.com/agent0/runner/internal/domain/message"
	"github.com/agent0/runner/internal/port/llm"
	"github.com/agent0/runner/internal/port/toolset"
)

// engine drives the multi-step loop of one run: stream a step, execute the
// tool calls it requested, append the results and go again until the model
// stops calling tools or the step limit is reached.
type engine struct {
	model    llm.Model
	tools    toolset.Set
	metrics  *cfotel.Metrics
	maxSteps int
	base     llm.StepRequest
}

// run emits the complete event sequence from start to finish. On failure it
// returns the error without emitting a terminal event; the caller decides
// between error and abort.
func (e *engine) run(ctx context.Context, emit llm.Emit) error {
	if err := emit(event.NewStart()); err != nil {
		return err
	}

	msgs := append([]message.Message(nil), e.base.Messages...)
	var total event.Usage
	reason := "stop"

	for step := range e.maxSteps {
		res, err := e.step(ctx, step, msgs, emit)
		if err != nil {
			return err
		}
		total = total.Add(res.Usage)
		reason = res.FinishReason

		if len(res.Content) > 0 {
			msgs = append(msgs, message.Assistant(res.Content...))
		}
		calls := res.ToolCalls()
		if len(calls) == 0 {
			break
		}
		results, err := e.callTools(ctx, calls, emit)
		if err != nil {
			return err
		}
		msgs = append(msgs, message.Tool(results...))
		if err := emit(event.NewFinishStep(res.FinishReason, res.Usage)); err != nil {
			return err
		}
	}

	return emit(event.NewFinish(reason, total))
}

// step streams one model turn. finish-step is emitted here for turns without
// tool calls; turns with tool calls close after their results.
func (e *engine) step(ctx context.Context, n int, msgs []message.Message, emit llm.Emit) (*llm.StepResult, error) {
	ctx, span := cfotel.StartStepSpan(ctx, n, e.model.Name())
	var err error
	defer func() { cfotel.EndSpan(span, err) }()

	if err = emit(event.NewStartStep(nil)); err != nil {
		return nil, err
	}
	req := e.base
	req.Messages = msgs
	req.Tools = e.tools.Specs()

	var res *llm.StepResult
	res, err = e.model.Stream(ctx, req, emit)
	if err != nil {
		return nil, err
	}
	if len(res.ToolCalls()) == 0 {
		if err = emit(event.NewFinishStep(res.FinishReason, res.Usage)); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// callTools executes the calls in order. A failing tool becomes a
// tool-error result the model sees on the next step; only cancellation
// aborts the run.
func (e *engine) callTools(ctx context.Context, calls []*message.ToolCallPart, emit llm.Emit) ([]*message.ToolResultPart, error) {
	results := make([]*message.ToolResultPart, 0, len(calls))
	for _, c := range calls {
		out, err := e.callTool(ctx, c)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.metrics.ToolCalled(ctx, c.ToolName, err != nil)

		if err != nil {
			slog.WarnContext(ctx, "tool call failed", "tool", c.ToolName, "tool_call_id", c.ToolCallID, "error", err)
			ev := event.NewToolError(c.ToolCallID, c.ToolName, c.Input, err)
			value, _ := json.Marshal(ev.Error)
			results = append(results, &message.ToolResultPart{
				ToolCallID: c.ToolCallID,
				ToolName:   c.ToolName,
				Output:     message.ToolOutput{Type: message.OutputErrorJSON, Value: value},
				IsError:    true,
			})
			if err := emit(ev); err != nil {
				return nil, err
			}
			continue
		}

		ev := event.NewToolResult(c.ToolCallID, c.ToolName, c.Input, out)
		results = append(results, &message.ToolResultPart{
			ToolCallID: c.ToolCallID,
			ToolName:   c.ToolName,
			Output:     message.ToolOutput{Type: message.OutputJSON, Value: ev.Output},
		})
		if err := emit(ev); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (e *engine) callTool(ctx context.Context, c *message.ToolCallPart) (json.RawMessage, error) {
	ctx, span := cfotel.StartToolCallSpan(ctx, c.ToolCallID, c.ToolName)
	out, err := e.tools.Call(ctx, c.ToolName, c.Input)
	if errors.Is(err, toolset.ErrUnknownTool) {
		slog.WarnContext(ctx, "model called an unbound tool", "tool", c.ToolName)
	}
	cfotel.EndSpan(span, err)
	return out, err
}
