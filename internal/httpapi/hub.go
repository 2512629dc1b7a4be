package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"bizdash/backend/internal/domain"
	"bizdash/backend/internal/service"
)

const hubWriteTimeout = 5 * time.Second

// Hub fans notifications out to the websocket clients of the owner each
// notification is addressed to. It satisfies service.Notifier, so the service
// pushes user-facing outcomes straight to open dashboards.
type Hub struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	clientsMu      sync.RWMutex
	clients        map[*websocket.Conn]string
	originPatterns []string

	broadcast chan domain.Notification
}

// NewHub starts the broadcast loop. allowedOrigin is the dashboard origin
// permitted to open a stream ("*" allows any).
func NewHub(allowedOrigin string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		ctx:            ctx,
		cancel:         cancel,
		clients:        make(map[*websocket.Conn]string),
		originPatterns: originPatterns(allowedOrigin),
		broadcast:      make(chan domain.Notification, 100),
	}
	h.wg.Add(1)
	go h.loop()
	return h
}

func originPatterns(allowedOrigin string) []string {
	if allowedOrigin == "" || allowedOrigin == "*" {
		return []string{"*"}
	}
	u, err := url.Parse(allowedOrigin)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

// Notify queues n for delivery and never blocks; a full queue drops n.
func (h *Hub) Notify(n domain.Notification) {
	select {
	case h.broadcast <- n:
	default:
		log.Printf("[notify] WARN: broadcast queue full, dropping %q", n.Title)
	}
}

func (h *Hub) Clients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Close() {
	h.cancel()
	h.wg.Wait()

	h.clientsMu.Lock()
	for conn := range h.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(h.clients, conn)
	}
	h.clientsMu.Unlock()
}

func (h *Hub) loop() {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case n := <-h.broadcast:
			if n.OwnerID == "" {
				continue
			}
			data, err := json.Marshal(n)
			if err != nil {
				log.Printf("[notify] marshal notification: %v", err)
				continue
			}

			h.clientsMu.RLock()
			conns := make([]*websocket.Conn, 0, len(h.clients))
			for conn, owner := range h.clients {
				if owner == n.OwnerID {
					conns = append(conns, conn)
				}
			}
			h.clientsMu.RUnlock()

			for _, conn := range conns {
				ctx, cancel := context.WithTimeout(h.ctx, hubWriteTimeout)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					log.Printf("[notify] dropping client: %v", err)
					h.remove(conn)
				}
			}
		}
	}
}

// ServeHTTP subscribes the connection to the notifications of the actor
// carried by the request context.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, _ := service.ActorFromContext(r.Context())
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		log.Printf("[notify] websocket upgrade failed: %v", err)
		return
	}

	h.clientsMu.Lock()
	h.clients[conn] = actor.OwnerID
	h.clientsMu.Unlock()

	go h.readLoop(conn)
}

// readLoop only watches for the client going away; clients send nothing.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.remove(conn)
	for {
		if _, _, err := conn.Read(h.ctx); err != nil {
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.clientsMu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.clientsMu.Unlock()
	if ok {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}
