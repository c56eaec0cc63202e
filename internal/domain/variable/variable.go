// Package variable substitutes {{name}} placeholders into message templates.
package variable

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/agent0/runner/internal/domain/message"
)

// placeholder matches {{name}} and {{ name }}. Names cannot contain braces,
// quotes or backslashes so a match never spans a JSON escape.
var placeholder = regexp.MustCompile(`\{\{\s*([^{}"\\]+?)\s*\}\}`)

// Substitute replaces every placeholder found in any string leaf of msgs
// (message text, nested parts, provider options) with its value from vars.
// Placeholders without a value stay literal. Values are JSON-escaped before
// insertion so quotes or newlines cannot change the structure of the tree.
// The input slice is not modified.
func Substitute(msgs []message.Message, vars map[string]string) ([]message.Message, error) {
	if len(msgs) == 0 {
		return msgs, nil
	}
	raw, err := encode(msgs)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}

	replaced := Render(string(raw), vars)

	var out []message.Message
	if err := json.Unmarshal([]byte(replaced), &out); err != nil {
		return nil, fmt.Errorf("decode substituted messages: %w", err)
	}
	return out, nil
}

// Render replaces placeholders inside an already JSON-encoded document.
func Render(doc string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(doc, "{{") {
		return doc
	}
	return placeholder.ReplaceAllStringFunc(doc, func(match string) string {
		sub := placeholder.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		val, ok := vars[sub[1]]
		if !ok {
			return match
		}
		return escape(val)
	})
}

// Names lists the distinct placeholder names used in msgs, sorted.
func Names(msgs []message.Message) []string {
	raw, err := encode(msgs)
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	for _, m := range placeholder.FindAllStringSubmatch(string(raw), -1) {
		seen[m[1]] = true
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Missing returns the placeholder names in msgs that vars does not define.
func Missing(msgs []message.Message, vars map[string]string) []string {
	var out []string
	for _, n := range Names(msgs) {
		if _, ok := vars[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// encode marshals msgs without HTML escaping, so names and text containing
// <, > or & appear literally. The message marshalers escape HTML on their
// own, hence the second pass over the decoded tree.
func encode(msgs []message.Message) ([]byte, error) {
	raw, err := json.Marshal(msgs)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// escape returns s encoded as the body of a JSON string literal.
func escape(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return s
	}
	return string(b[1 : len(b)-1])
}
