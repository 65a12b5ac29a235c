package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourorg/staybook/internal/domain"
	"github.com/yourorg/staybook/internal/observability/metrics"
	"github.com/yourorg/staybook/internal/security/middleware"
)

func presenceTestServer(t *testing.T, resolved *domain.Identity) *httptest.Server {
	t.Helper()
	h := NewPresenceHandler(nil, nil)

	withIdentity := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), middleware.IdentityContextKey{}, resolved)
		h.ServeHTTP(w, r.WithContext(ctx))
	})

	// The server wires this handler behind the metrics middleware, so the
	// upgrade must survive the wrapped response writer.
	srv := httptest.NewServer(metrics.HTTPMetricsMiddleware(withIdentity))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/presence"
}

func TestPresenceUpgradeBehindMetricsMiddleware(t *testing.T) {
	admin := &domain.Identity{
		User:        domain.User{ID: "u_admin"},
		Roles:       []domain.Role{{Name: "admin", DisplayName: "Administrator"}},
		Permissions: domain.NewPermissionSet([]string{"admin.dashboard.access"}),
	}

	srv := presenceTestServer(t, admin)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var snapshot PresenceSnapshot
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("failed to read snapshot frame: %v", err)
	}

	found := false
	for _, id := range snapshot.OnlineUserIDs {
		if id == "u_admin" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected u_admin in online set, got %v", snapshot.OnlineUserIDs)
	}
	if snapshot.At.IsZero() {
		t.Error("expected snapshot timestamp to be set")
	}
}

func TestPresenceRejectsAnonymous(t *testing.T) {
	srv := presenceTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/ws/presence")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous, got %d", resp.StatusCode)
	}
}

func TestPresenceRejectsNonAdmin(t *testing.T) {
	plain := &domain.Identity{
		User:        domain.User{ID: "u_plain"},
		Roles:       []domain.Role{},
		Permissions: domain.NewPermissionSet(nil),
	}
	srv := presenceTestServer(t, plain)

	resp, err := http.Get(srv.URL + "/ws/presence")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", resp.StatusCode)
	}
}
