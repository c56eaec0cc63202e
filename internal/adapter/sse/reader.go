package sse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/event"
)

// maxFrame bounds a single frame; tool results can be large.
const maxFrame = 8 << 20

// Reader decodes SSE frames into events.
type Reader struct {
	sc *bufio.Scanner
}

// NewReader reads frames from r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxFrame)
	return &Reader{sc: sc}
}

// Next returns the next event. It returns io.EOF at the end of the stream.
// Comment lines and fields other than data are ignored; multiple data lines
// of one frame are joined with a newline.
func (r *Reader) Next() (event.Event, error) {
	var data []byte
	for r.sc.Scan() {
		line := bytes.TrimSuffix(r.sc.Bytes(), []byte("\r"))
		if len(line) == 0 {
			if len(data) == 0 {
				continue
			}
			return decode(data)
		}
		if line[0] == ':' {
			continue
		}
		payload, ok := bytes.CutPrefix(line, []byte("data:"))
		if !ok {
			continue
		}
		payload = bytes.TrimPrefix(payload, []byte(" "))
		if len(data) > 0 {
			data = append(data, '\n')
		}
		data = append(data, payload...)
	}
	if err := r.sc.Err(); err != nil {
		return event.Event{}, fmt.Errorf("sse: read: %w", err)
	}
	if len(data) > 0 {
		return decode(data)
	}
	return event.Event{}, io.EOF
}

func decode(data []byte) (event.Event, error) {
	var ev event.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return event.Event{}, fmt.Errorf("%w: bad frame: %v", domain.ErrMalformedStream, err)
	}
	return ev, nil
}
