package ws

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	jwtinfra "github.com/lendi-api/internal/infrastructure/jwt"
	"github.com/lendi-api/internal/transport/http/middleware"
)

// TokenVerifier validates the access token presented at handshake.
type TokenVerifier interface {
	Verify(token string) (*jwtinfra.Claims, error)
}

// Handler authenticates and upgrades WebSocket connections and registers them.
type Handler struct {
	verifier TokenVerifier
	reg      *Registry
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewHandler builds the upgrade handler. An empty or "*" origin list accepts
// any origin.
func NewHandler(verifier TokenVerifier, reg *Registry, allowedOrigins []string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		verifier: verifier,
		reg:      reg,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tok := handshakeToken(r)
	if tok == "" {
		middleware.WriteJSONError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := h.verifier.Verify(tok)
	if err != nil {
		middleware.WriteJSONError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "user_id", claims.UserID, "err", err)
		return
	}

	c := newClient(claims.UserID, conn, h.log)
	h.reg.Register(claims.UserID, c)
	h.log.Info("websocket connected", "user_id", claims.UserID, "online_users", h.reg.Users())

	go c.writePump()
	c.readPump()

	h.reg.Unregister(c)
	h.log.Info("websocket disconnected", "user_id", claims.UserID)
}

func handshakeToken(r *http.Request) string {
	if tok := strings.TrimSpace(r.URL.Query().Get("token")); tok != "" {
		return tok
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[o] = struct{}{}
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
