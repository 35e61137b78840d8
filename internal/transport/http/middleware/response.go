package middleware

import (
	"encoding/json"
	"net/http"
)

// WriteJSONError writes a {"error": msg} body with the given status. It is
// shared by middleware and the WebSocket handshake.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
