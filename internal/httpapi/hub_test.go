package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"bizdash/backend/internal/domain"
	"bizdash/backend/internal/service"
)

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", want, hub.Clients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNotificationStreamDeliversServiceOutcomes(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, "ana", "ana-pass")

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/notifications/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	waitForClients(t, api.hub, 1)

	res := api.do(t, http.MethodPost, "/api/v1/sync/database", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("sync: expected 200, got %d: %s", res.Code, res.Body.String())
	}

	// Earlier session notifications may still be in flight; skip to ours.
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var n domain.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			t.Fatalf("decode notification: %v", err)
		}
		if n.Title != "Database sync" {
			continue
		}
		if n.Level != domain.LevelSuccess {
			t.Fatalf("unexpected notification %+v", n)
		}
		return
	}
}

func TestHubDropsClosedClients(t *testing.T) {
	hub := NewHub("*")
	t.Cleanup(hub.Close)
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitForClients(t, hub, 1)

	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	waitForClients(t, hub, 0)

	hub.Notify(domain.Notification{Level: domain.LevelInfo, Title: "nobody listening"})
}

func TestHubDeliversOnlyToAddressedOwner(t *testing.T) {
	hub := NewHub("*")
	t.Cleanup(hub.Close)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := domain.Actor{OwnerID: r.URL.Query().Get("owner")}
		hub.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	base := "ws" + strings.TrimPrefix(srv.URL, "http")
	anaConn, _, err := websocket.Dial(ctx, base+"?owner=owner-a", nil)
	if err != nil {
		t.Fatalf("dial ana: %v", err)
	}
	defer anaConn.Close(websocket.StatusNormalClosure, "")
	brunoConn, _, err := websocket.Dial(ctx, base+"?owner=owner-b", nil)
	if err != nil {
		t.Fatalf("dial bruno: %v", err)
	}
	defer brunoConn.Close(websocket.StatusNormalClosure, "")
	waitForClients(t, hub, 2)

	hub.Notify(domain.Notification{Level: domain.LevelInfo, Title: "for bruno", OwnerID: "owner-b"})
	hub.Notify(domain.Notification{Level: domain.LevelInfo, Title: "nobody", OwnerID: ""})
	hub.Notify(domain.Notification{Level: domain.LevelInfo, Title: "for ana", OwnerID: "owner-a"})

	readTitle := func(conn *websocket.Conn) string {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var n domain.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return n.Title
	}
	if got := readTitle(anaConn); got != "for ana" {
		t.Fatalf("ana received %q", got)
	}
	if got := readTitle(brunoConn); got != "for bruno" {
		t.Fatalf("bruno received %q", got)
	}
}

func TestOriginPatterns(t *testing.T) {
	if got := originPatterns("*"); len(got) != 1 || got[0] != "*" {
		t.Fatalf("expected wildcard, got %v", got)
	}
	if got := originPatterns("https://dash.example.com"); len(got) != 1 || got[0] != "dash.example.com" {
		t.Fatalf("expected host pattern, got %v", got)
	}
}
