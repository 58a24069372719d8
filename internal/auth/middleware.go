// middleware.go — HTTP middleware enforcing the admin auth gate: bearer
// JWT or API key, whichever is configured. Neither configured is a server
// misconfiguration, not an open door, so it responds 500.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Gate holds the configuration the admin auth middleware checks requests
// against.
type Gate struct {
	JWTSecret        string
	APIKey           string
	APIKeyHeaderName string
}

// Configured reports whether at least one auth mechanism is usable.
func (g Gate) Configured() bool {
	return g.JWTSecret != "" || g.APIKey != ""
}

// RequireAdmin wraps next with the admin auth gate: if neither mechanism
// is configured, every request gets 500 "server authentication not
// configured"; otherwise a valid Bearer JWT or a matching API key header
// is required.
func (g Gate) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Configured() {
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "server authentication not configured")
			return
		}

		if g.APIKey != "" {
			headerName := g.APIKeyHeaderName
			if headerName == "" {
				headerName = "X-API-Key"
			}
			if key := r.Header.Get(headerName); key != "" {
				if subtle.ConstantTimeCompare([]byte(key), []byte(g.APIKey)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid api key")
				return
			}
		}

		if g.JWTSecret != "" {
			tokenStr := extractBearerToken(r)
			if tokenStr == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authorization required")
				return
			}
			if _, err := ValidateToken(tokenStr, g.JWTSecret); err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authorization required")
	})
}

// extractBearerToken pulls the token from "Authorization: Bearer <token>".
// Returns "" if the header is missing or malformed.
func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	_ = json.NewEncoder(w).Encode(body)
}
