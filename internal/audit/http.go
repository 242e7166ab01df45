package audit

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"gelato-ops/internal/auth"
)

// ClientIP extracts client ip from common headers or RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// LogRequest records an action taken by the session of r. A nil logger is a no-op.
func LogRequest(logger Logger, r *http.Request, action, resourceType, resourceID string, meta map[string]any) {
	if logger == nil || r == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	session, _ := auth.SessionFromContext(r.Context())
	_ = logger.Log(r.Context(), Entry{
		Actor:        session.Subject,
		Role:         string(session.Role),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     payload,
		IP:           ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}
