package secrets

import (
	"fmt"
	"os"
	"strings"
)

// EnvLoader returns a Loader that reads the specified environment variables.
// Missing variables are silently omitted from the result map. Literal "\n"
// sequences are expanded so armored keys can be passed on one line.
func EnvLoader(keys ...string) Loader {
	return func() (map[string]string, error) {
		vals := make(map[string]string, len(keys))
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				vals[k] = strings.ReplaceAll(v, `\n`, "\n")
			}
		}
		return vals, nil
	}
}

// RequireLoader wraps a Loader and fails when any of keys is missing.
func RequireLoader(inner Loader, keys ...string) Loader {
	return func() (map[string]string, error) {
		vals, err := inner()
		if err != nil {
			return nil, err
		}
		var missing []string
		for _, k := range keys {
			if vals[k] == "" {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("missing secrets: %s", strings.Join(missing, ", "))
		}
		return vals, nil
	}
}
