package openaichat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/shared"
	"github.com/openai/openai-go/v2/shared/constant"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/domain/message"
	"github.com/agent0/runner/internal/port/llm"
)

func buildParams(model string, req llm.StepRequest, legacyMaxTokens bool) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}

	msgs, err := convertMessages(req.Messages)
	if err != nil {
		return params, err
	}
	params.Messages = msgs

	if req.MaxOutputTokens != nil {
		if legacyMaxTokens {
			params.MaxTokens = openai.Int(int64(*req.MaxOutputTokens))
		} else {
			params.MaxCompletionTokens = openai.Int(int64(*req.MaxOutputTokens))
		}
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.OutputFormat == agent.OutputJSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	for _, t := range req.Tools {
		tool, err := convertTool(t)
		if err != nil {
			return params, err
		}
		params.Tools = append(params.Tools, tool)
	}
	return params, nil
}

func convertTool(t llm.ToolSpec) (openai.ChatCompletionToolUnionParam, error) {
	schema := shared.FunctionParameters{"type": "object", "properties": map[string]any{}}
	if len(t.InputSchema) > 0 {
		schema = shared.FunctionParameters{}
		if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
			return openai.ChatCompletionToolUnionParam{}, fmt.Errorf("%w: tool %q input schema: %v", domain.ErrValidation, t.Name, err)
		}
	}
	def := shared.FunctionDefinitionParam{
		Name:       t.Name,
		Parameters: schema,
	}
	if t.Description != "" {
		def.Description = openai.String(t.Description)
	}
	return openai.ChatCompletionFunctionTool(def), nil
}

func convertMessages(msgs []message.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for i, m := range msgs {
		switch m.Role {
		case message.RoleSystem:
			out = append(out, openai.SystemMessage(m.Text))
		case message.RoleUser:
			u, err := userMessage(m.Content)
			if err != nil {
				return nil, fmt.Errorf("messages[%d]: %w", i, err)
			}
			out = append(out, u)
		case message.RoleAssistant:
			out = append(out, assistantMessage(m.Content))
		case message.RoleTool:
			for _, p := range m.Content {
				r, ok := p.(*message.ToolResultPart)
				if !ok {
					return nil, fmt.Errorf("%w: messages[%d]: tool message holds %s part", domain.ErrValidation, i, p.Type())
				}
				out = append(out, openai.ToolMessage(outputText(r.Output), r.ToolCallID))
			}
		default:
			return nil, fmt.Errorf("%w: messages[%d]: unknown role %q", domain.ErrValidation, i, m.Role)
		}
	}
	return out, nil
}

func userMessage(content message.Content) (openai.ChatCompletionMessageParamUnion, error) {
	if len(content) == 1 {
		if t, ok := content[0].(*message.TextPart); ok {
			return openai.UserMessage(t.Text), nil
		}
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(content))
	for _, p := range content {
		switch p := p.(type) {
		case *message.TextPart:
			parts = append(parts, openai.TextContentPart(p.Text))
		case *message.ImagePart:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: dataURL(p.Image, p.MediaType, "image/png"),
			}))
		case *message.FilePart:
			if strings.HasPrefix(p.MediaType, "image/") {
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL(p.Data, p.MediaType, p.MediaType),
				}))
				continue
			}
			file := openai.ChatCompletionContentPartFileFileParam{
				FileData: openai.String(dataURL(p.Data, p.MediaType, "application/octet-stream")),
			}
			if p.FileName != "" {
				file.Filename = openai.String(p.FileName)
			}
			parts = append(parts, openai.FileContentPart(file))
		default:
			return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("%w: user message holds %s part", domain.ErrValidation, p.Type())
		}
	}
	return openai.UserMessage(parts), nil
}

// assistantMessage replays text and tool calls. Reasoning is not sent back;
// chat-completions endpoints reject it as input.
func assistantMessage(content message.Content) openai.ChatCompletionMessageParamUnion {
	msg := openai.ChatCompletionAssistantMessageParam{
		Role: constant.Assistant("assistant"),
	}
	var text strings.Builder
	for _, p := range content {
		switch p := p.(type) {
		case *message.TextPart:
			text.WriteString(p.Text)
		case *message.ToolCallPart:
			args := string(p.Input)
			if args == "" {
				args = "{}"
			}
			msg.ToolCalls = append(msg.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
					ID: p.ToolCallID,
					Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      p.ToolName,
						Arguments: args,
					},
					Type: constant.Function("function"),
				},
			})
		}
	}
	if text.Len() > 0 {
		msg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(text.String()),
		}
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &msg}
}

// outputText renders a tool output as the string content of a tool message.
// Text outputs are unquoted, JSON outputs are sent verbatim.
func outputText(o message.ToolOutput) string {
	if len(o.Value) == 0 {
		return "null"
	}
	if o.Type == message.OutputText || o.Type == message.OutputErrorText {
		var s string
		if err := json.Unmarshal(o.Value, &s); err == nil {
			return s
		}
	}
	return string(o.Value)
}

// dataURL returns ref unchanged when it already is a URL, otherwise wraps the
// base64 payload in a data URL.
func dataURL(ref, mediaType, fallback string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "data:") {
		return ref
	}
	if mediaType == "" {
		mediaType = fallback
	}
	return "data:" + mediaType + ";base64," + ref
}
