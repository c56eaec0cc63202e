// Package secrets provides a thread-safe secret vault with hot reload support.
package secrets

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// minRedactLen is the shortest secret RedactString replaces. Shorter values
// would mask ordinary words.
const minRedactLen = 4

// Loader retrieves secrets from a source (env vars, file, remote vault, etc.).
type Loader func() (map[string]string, error)

// Vault holds secret values in memory and supports atomic reloading.
type Vault struct {
	mu     sync.RWMutex
	values map[string]string
	loader Loader
}

// NewVault creates a Vault, calling the loader once to populate initial values.
func NewVault(loader Loader) (*Vault, error) {
	vals, err := loader()
	if err != nil {
		return nil, fmt.Errorf("initial secret load: %w", err)
	}
	return &Vault{
		values: vals,
		loader: loader,
	}, nil
}

// Get returns the secret for key, or an empty string if not found.
func (v *Vault) Get(key string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key]
}

// Keys returns the names of the loaded secrets, sorted.
func (v *Vault) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	keys := make([]string, 0, len(v.values))
	for k := range v.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Redacted returns a masked form of the secret for key, safe to log.
func (v *Vault) Redacted(key string) string {
	return mask(v.Get(key))
}

// RedactString replaces every loaded secret value occurring in s with its
// masked form. Multi-line secrets are matched line by line so that fragments
// of armored key blocks are also scrubbed.
func (v *Vault) RedactString(s string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, val := range v.values {
		for _, line := range strings.Split(val, "\n") {
			line = strings.TrimSpace(line)
			if len(line) < minRedactLen {
				continue
			}
			s = strings.ReplaceAll(s, line, mask(line))
		}
	}
	return s
}

// Reload calls the loader and swaps in the new values atomically.
// If the loader returns an error, existing values are preserved.
func (v *Vault) Reload() error {
	newVals, err := v.loader()
	if err != nil {
		return fmt.Errorf("reload secrets: %w", err)
	}
	v.mu.Lock()
	v.values = newVals
	v.mu.Unlock()
	return nil
}

func mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= minRedactLen:
		return "****"
	default:
		return s[:2] + "****"
	}
}
