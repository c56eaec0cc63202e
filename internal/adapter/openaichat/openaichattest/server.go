// Package openaichattest provides a fake chat-completions endpoint for
// vendor adapter tests.
package openaichattest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Reply is the single text chunk the server streams back.
const Reply = "pong"

// NewServer starts a server that answers every request with a short
// streamed completion and passes the request to inspect first.
func NewServer(t *testing.T, inspect func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			inspect(r)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {\"id\":\"c\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q},\"finish_reason\":\"stop\"}]}\n\n", Reply)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}
