package middleware

import (
	"encoding/json"
	"net/http"
)

// writeError writes the API error envelope {"error": {name, message}}.
func writeError(w http.ResponseWriter, status int, name, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"name": name, "message": message},
	})
}
