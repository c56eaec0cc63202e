package vertex

import (
	"context"

	"golang.org/x/oauth2"
)

// SetFindDefault replaces the application default credentials lookup until
// the returned function is called.
func SetFindDefault(f func(ctx context.Context, scopes ...string) (oauth2.TokenSource, error)) (restore func()) {
	prev := findDefault
	findDefault = f
	return func() { findDefault = prev }
}

// NewDefaultSource returns the lazy application default credentials source.
func NewDefaultSource() oauth2.TokenSource { return &defaultSource{ctx: context.Background()} }
