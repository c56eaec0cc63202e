package message

import (
	"encoding/json"
	"fmt"

	"github.com/agent0/runner/internal/domain"
)

// PartType discriminates content parts on the wire.
type PartType string

const (
	PartText       PartType = "text"
	PartReasoning  PartType = "reasoning"
	PartImage      PartType = "image"
	PartFile       PartType = "file"
	PartToolCall   PartType = "tool-call"
	PartToolResult PartType = "tool-result"
)

// ProviderOptions carries vendor-specific passthrough options on a message or part.
type ProviderOptions map[string]any

// Part is one element of a message's ordered content. The set of
// implementations is closed: TextPart, ReasoningPart, ImagePart, FilePart,
// ToolCallPart and ToolResultPart.
type Part interface {
	Type() PartType
	isPart()
}

// TextPart is plain text content.
type TextPart struct {
	Text            string          `json:"text"`
	ProviderOptions ProviderOptions `json:"providerOptions,omitempty"`
}

// ReasoningPart is model reasoning ("thinking") output.
type ReasoningPart struct {
	Text            string          `json:"text"`
	ProviderOptions ProviderOptions `json:"providerOptions,omitempty"`
}

// ImagePart is an image given as a URL or base64 data.
type ImagePart struct {
	Image           string          `json:"image"`
	MediaType       string          `json:"mediaType,omitempty"`
	ProviderOptions ProviderOptions `json:"providerOptions,omitempty"`
}

// FilePart is an inline file (base64 data or URL) with a media type.
type FilePart struct {
	Data            string          `json:"data"`
	MediaType       string          `json:"mediaType"`
	FileName        string          `json:"fileName,omitempty"`
	ProviderOptions ProviderOptions `json:"providerOptions,omitempty"`
}

// ToolCallPart is a complete tool invocation requested by the model.
type ToolCallPart struct {
	ToolCallID      string          `json:"toolCallId"`
	ToolName        string          `json:"toolName"`
	Input           json.RawMessage `json:"input"`
	ProviderOptions ProviderOptions `json:"providerOptions,omitempty"`
}

// OutputType discriminates tool result payloads.
type OutputType string

const (
	OutputJSON      OutputType = "json"
	OutputErrorJSON OutputType = "error-json"
	OutputText      OutputType = "text"
	OutputErrorText OutputType = "error-text"
)

// ToolOutput is the typed payload of a tool result.
type ToolOutput struct {
	Type  OutputType      `json:"type"`
	Value json.RawMessage `json:"value"`
}

// IsError reports whether the output describes a failed tool execution.
func (o ToolOutput) IsError() bool {
	return o.Type == OutputErrorJSON || o.Type == OutputErrorText
}

// ToolResultPart answers the ToolCallPart with the same ToolCallID.
type ToolResultPart struct {
	ToolCallID      string          `json:"toolCallId"`
	ToolName        string          `json:"toolName"`
	Output          ToolOutput      `json:"output"`
	IsError         bool            `json:"isError,omitempty"`
	ProviderOptions ProviderOptions `json:"providerOptions,omitempty"`
}

func (*TextPart) Type() PartType       { return PartText }
func (*ReasoningPart) Type() PartType  { return PartReasoning }
func (*ImagePart) Type() PartType      { return PartImage }
func (*FilePart) Type() PartType       { return PartFile }
func (*ToolCallPart) Type() PartType   { return PartToolCall }
func (*ToolResultPart) Type() PartType { return PartToolResult }

func (*TextPart) isPart()       {}
func (*ReasoningPart) isPart()  {}
func (*ImagePart) isPart()      {}
func (*FilePart) isPart()       {}
func (*ToolCallPart) isPart()   {}
func (*ToolResultPart) isPart() {}

// MarshalJSON adds the "type" discriminator.
func (p *TextPart) MarshalJSON() ([]byte, error) {
	type alias TextPart
	return json.Marshal(struct {
		Type PartType `json:"type"`
		*alias
	}{PartText, (*alias)(p)})
}

// MarshalJSON adds the "type" discriminator.
func (p *ReasoningPart) MarshalJSON() ([]byte, error) {
	type alias ReasoningPart
	return json.Marshal(struct {
		Type PartType `json:"type"`
		*alias
	}{PartReasoning, (*alias)(p)})
}

// MarshalJSON adds the "type" discriminator.
func (p *ImagePart) MarshalJSON() ([]byte, error) {
	type alias ImagePart
	return json.Marshal(struct {
		Type PartType `json:"type"`
		*alias
	}{PartImage, (*alias)(p)})
}

// MarshalJSON adds the "type" discriminator.
func (p *FilePart) MarshalJSON() ([]byte, error) {
	type alias FilePart
	return json.Marshal(struct {
		Type PartType `json:"type"`
		*alias
	}{PartFile, (*alias)(p)})
}

// MarshalJSON adds the "type" discriminator. A nil input is encoded as {}.
func (p *ToolCallPart) MarshalJSON() ([]byte, error) {
	type alias ToolCallPart
	a := *(*alias)(p)
	if len(a.Input) == 0 {
		a.Input = json.RawMessage(`{}`)
	}
	return json.Marshal(struct {
		Type PartType `json:"type"`
		*alias
	}{PartToolCall, &a})
}

// MarshalJSON adds the "type" discriminator.
func (p *ToolResultPart) MarshalJSON() ([]byte, error) {
	type alias ToolResultPart
	a := *(*alias)(p)
	if len(a.Output.Value) == 0 {
		a.Output.Value = json.RawMessage(`null`)
	}
	return json.Marshal(struct {
		Type PartType `json:"type"`
		*alias
	}{PartToolResult, &a})
}

// Content is an ordered list of parts with a type-dispatching JSON codec.
type Content []Part

// UnmarshalJSON decodes each element according to its "type" field.
func (c *Content) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	out := make(Content, 0, len(raws))
	for i, raw := range raws {
		p, err := decodePart(raw)
		if err != nil {
			return fmt.Errorf("content[%d]: %w", i, err)
		}
		out = append(out, p)
	}
	*c = out
	return nil
}

func decodePart(raw json.RawMessage) (Part, error) {
	var head struct {
		Type PartType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	var p Part
	switch head.Type {
	case PartText:
		p = &TextPart{}
	case PartReasoning:
		p = &ReasoningPart{}
	case PartImage:
		p = &ImagePart{}
	case PartFile:
		p = &FilePart{}
	case PartToolCall:
		p = &ToolCallPart{}
	case PartToolResult:
		p = &ToolResultPart{}
	default:
		return nil, fmt.Errorf("%w: unknown part type %q", domain.ErrValidation, head.Type)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s part: %w", head.Type, err)
	}
	return p, nil
}
