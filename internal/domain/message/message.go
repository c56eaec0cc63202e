// Package message defines the role-discriminated chat messages exchanged
// with generation backends and rebuilt from event streams.
package message

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agent0/runner/internal/domain"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// allowed lists the part kinds each non-system role may carry.
var allowed = map[Role]map[PartType]bool{
	RoleUser:      {PartText: true, PartImage: true, PartFile: true},
	RoleAssistant: {PartText: true, PartReasoning: true, PartFile: true, PartToolCall: true},
	RoleTool:      {PartToolResult: true},
}

// Message is one entry of a conversation. System messages carry Text;
// every other role carries Content.
type Message struct {
	Role            Role
	Text            string
	Content         Content
	ProviderOptions ProviderOptions
}

// System returns a system message.
func System(text string) Message {
	return Message{Role: RoleSystem, Text: text}
}

// User returns a user message with the given parts.
func User(parts ...Part) Message {
	return Message{Role: RoleUser, Content: parts}
}

// Assistant returns an assistant message with the given parts.
func Assistant(parts ...Part) Message {
	return Message{Role: RoleAssistant, Content: parts}
}

// Tool returns a tool message with the given result parts.
func Tool(parts ...*ToolResultPart) Message {
	c := make(Content, len(parts))
	for i, p := range parts {
		c[i] = p
	}
	return Message{Role: RoleTool, Content: c}
}

// Text is shorthand for a text part.
func Text(s string) *TextPart {
	return &TextPart{Text: s}
}

// Validate checks the role discriminator and the per-role part rules.
func (m Message) Validate() error {
	if m.Role == RoleSystem {
		if len(m.Content) > 0 {
			return fmt.Errorf("%w: system message carries parts", domain.ErrValidation)
		}
		return nil
	}
	kinds, ok := allowed[m.Role]
	if !ok {
		return fmt.Errorf("%w: unknown role %q", domain.ErrValidation, m.Role)
	}
	if len(m.Content) == 0 {
		return fmt.Errorf("%w: %s message has no content", domain.ErrValidation, m.Role)
	}
	for i, p := range m.Content {
		if p == nil {
			return fmt.Errorf("%w: %s content[%d] is nil", domain.ErrValidation, m.Role, i)
		}
		if !kinds[p.Type()] {
			return fmt.Errorf("%w: %s message cannot carry %s part", domain.ErrValidation, m.Role, p.Type())
		}
		switch p := p.(type) {
		case *ToolCallPart:
			if p.ToolCallID == "" || p.ToolName == "" {
				return fmt.Errorf("%w: tool-call part needs toolCallId and toolName", domain.ErrValidation)
			}
		case *ToolResultPart:
			if p.ToolCallID == "" {
				return fmt.Errorf("%w: tool-result part needs toolCallId", domain.ErrValidation)
			}
		}
	}
	return nil
}

// PlainText concatenates the text parts (or the system text).
func (m Message) PlainText() string {
	if m.Role == RoleSystem {
		return m.Text
	}
	var b strings.Builder
	for _, p := range m.Content {
		if t, ok := p.(*TextPart); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// ValidateAll validates every message in order.
func ValidateAll(msgs []Message) error {
	for i, m := range msgs {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("messages[%d]: %w", i, err)
		}
	}
	return nil
}

// Compact drops non-system messages whose content is empty.
func Compact(msgs []Message) []Message {
	out := msgs[:0:0]
	for _, m := range msgs {
		if m.Role != RoleSystem && len(m.Content) == 0 {
			continue
		}
		out = append(out, m)
	}
	return out
}

type wireMessage struct {
	Role            Role            `json:"role"`
	Content         json.RawMessage `json:"content"`
	ProviderOptions ProviderOptions `json:"providerOptions,omitempty"`
}

// MarshalJSON encodes system content as a string and other content as a part array.
func (m Message) MarshalJSON() ([]byte, error) {
	var (
		content []byte
		err     error
	)
	if m.Role == RoleSystem {
		content, err = json.Marshal(m.Text)
	} else {
		c := m.Content
		if c == nil {
			c = Content{}
		}
		content, err = json.Marshal([]Part(c))
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{Role: m.Role, Content: content, ProviderOptions: m.ProviderOptions})
}

// UnmarshalJSON accepts the wire shape. User and assistant content given as
// a bare string becomes a single text part.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Message{Role: w.Role, ProviderOptions: w.ProviderOptions}

	trimmed := strings.TrimSpace(string(w.Content))
	switch {
	case w.Role == RoleSystem:
		if err := json.Unmarshal(w.Content, &out.Text); err != nil {
			return fmt.Errorf("%w: system content must be a string", domain.ErrValidation)
		}
	case strings.HasPrefix(trimmed, `"`):
		if w.Role != RoleUser && w.Role != RoleAssistant {
			return fmt.Errorf("%w: %s content must be an array", domain.ErrValidation, w.Role)
		}
		var s string
		if err := json.Unmarshal(w.Content, &s); err != nil {
			return err
		}
		out.Content = Content{Text(s)}
	case trimmed == "" || trimmed == "null":
		out.Content = nil
	default:
		if err := json.Unmarshal(w.Content, &out.Content); err != nil {
			return err
		}
	}
	*m = out
	return nil
}
