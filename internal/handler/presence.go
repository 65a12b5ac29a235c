package handler

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourorg/staybook/internal/security"
	"github.com/yourorg/staybook/internal/security/middleware"
)

// PresenceHandler streams online-user snapshots to admin console clients
// over WebSocket. Each connection is tied to a resolved identity; what
// users say to each other is out of scope here, only who is online.
type PresenceHandler struct {
	logger         *slog.Logger
	allowedOrigins []string

	mu     sync.Mutex
	online map[string]time.Time // user id -> connected at
}

// NewPresenceHandler creates a new presence handler
func NewPresenceHandler(allowedOrigins []string, logger *slog.Logger) *PresenceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PresenceHandler{
		logger:         logger,
		allowedOrigins: allowedOrigins,
		online:         map[string]time.Time{},
	}
}

// PresenceSnapshot is one message on the presence stream
type PresenceSnapshot struct {
	OnlineUserIDs []string  `json:"onlineUserIds"`
	At            time.Time `json:"at"`
}

// upgrader is initialized per-request to use instance's allowed origins
func (h *PresenceHandler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/presence
func (h *PresenceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resolved := middleware.GetIdentity(r.Context())
	if resolved == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	// Only the admin console sees who is online
	if !security.CanAccessAdminDashboard(resolved) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	upgrader := h.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	h.connect(resolved.User.ID)
	defer h.disconnect(resolved.User.ID)

	// Reader goroutine: we never expect client messages, but reading is
	// what surfaces the close frame.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	if err := h.writeSnapshot(ws); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := h.writeSnapshot(ws); err != nil {
				return
			}
		}
	}
}

func (h *PresenceHandler) writeSnapshot(ws *websocket.Conn) error {
	snapshot := PresenceSnapshot{
		OnlineUserIDs: h.snapshotIDs(),
		At:            time.Now(),
	}
	ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return ws.WriteJSON(snapshot)
}

func (h *PresenceHandler) connect(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.online[userID] = time.Now()
}

func (h *PresenceHandler) disconnect(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.online, userID)
}

func (h *PresenceHandler) snapshotIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.online))
	for id := range h.online {
		ids = append(ids, id)
	}
	return ids
}
