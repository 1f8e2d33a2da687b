package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rawblock/scriptquery/internal/query"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// subscribeMessage is what a client sends to register interest in a
// scripthash, named after Electrum's "blockchain.scripthash.subscribe"
// (see other_examples' electrum client for the method vocabulary this
// mirrors).
type subscribeMessage struct {
	Scripthash string `json:"scripthash"`
}

// statusPush is what the hub sends back: the initial status on subscribe,
// and again whenever the scripthash's status hash changes.
type statusPush struct {
	ID         string `json:"id"`
	Scripthash string `json:"scripthash"`
	StatusHash string `json:"status_hash,omitempty"`
}

type subscription struct {
	id         uuid.UUID
	scripthash [32]byte
	lastHash   string
}

// Hub is the Electrum-style scripthash-subscribe push feed: each websocket
// connection can register any number of scripthashes, and PushUpdates —
// called on its own fixed interval — re-checks every subscription's
// status hash and pushes a notification on change. Grounded on
// internal/api/websocket.go's Hub (broadcast channel, per-connection read
// loop for disconnect detection); the broadcast-to-everyone shape is
// replaced with per-connection, per-subscription targeted pushes, since a
// scripthash update is only interesting to the clients that asked about it.
type Hub struct {
	query *query.Query

	mu   sync.Mutex
	subs map[*websocket.Conn]map[uuid.UUID]*subscription
}

func NewHub(q *query.Query) *Hub {
	return &Hub{
		query: q,
		subs:  make(map[*websocket.Conn]map[uuid.UUID]*subscription),
	}
}

// Subscribe upgrades the connection and reads subscribeMessages off it
// until the client disconnects, the same keep-alive-by-reading shape
// websocket.go uses to detect a dropped client.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[Hub] failed to upgrade websocket: %v", err)
		return
	}

	h.mu.Lock()
	h.subs[conn] = make(map[uuid.UUID]*subscription)
	h.mu.Unlock()

	log.Printf("[Hub] client connected")

	defer func() {
		h.mu.Lock()
		delete(h.subs, conn)
		h.mu.Unlock()
		conn.Close()
		log.Printf("[Hub] client disconnected")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Hub] websocket error: %v", err)
			}
			return
		}
		var msg subscribeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		h.register(c.Request.Context(), conn, msg.Scripthash)
	}
}

func (h *Hub) register(ctx context.Context, conn *websocket.Conn, scripthashHex string) {
	raw, err := hex.DecodeString(scripthashHex)
	if err != nil || len(raw) != 32 {
		return
	}
	var scripthash [32]byte
	copy(scripthash[:], raw)

	sub := &subscription{id: uuid.New(), scripthash: scripthash}

	h.mu.Lock()
	if h.subs[conn] == nil {
		h.mu.Unlock()
		return
	}
	h.subs[conn][sub.id] = sub
	h.mu.Unlock()

	status, err := h.query.GetStatus(ctx, scripthash)
	if err != nil {
		log.Printf("[Hub] initial status failed for %s: %v", scripthashHex, err)
		return
	}
	hashStr := statusHashString(status)
	sub.lastHash = hashStr
	h.send(conn, statusPush{ID: sub.id.String(), Scripthash: scripthashHex, StatusHash: hashStr})
}

// PushUpdates re-checks every live subscription against the current
// status hash and pushes the ones that changed. cmd/server's composition
// root calls it on a fixed interval that is independent of the mempool
// refresh interval.
func (h *Hub) PushUpdates(ctx context.Context) {
	h.mu.Lock()
	type target struct {
		conn *websocket.Conn
		sub  *subscription
	}
	var targets []target
	for conn, subs := range h.subs {
		for _, sub := range subs {
			targets = append(targets, target{conn, sub})
		}
	}
	h.mu.Unlock()

	for _, t := range targets {
		status, err := h.query.GetStatus(ctx, t.sub.scripthash)
		if err != nil {
			continue
		}
		hashStr := statusHashString(status)
		if hashStr == t.sub.lastHash {
			continue
		}
		t.sub.lastHash = hashStr
		h.send(t.conn, statusPush{
			ID:         t.sub.id.String(),
			Scripthash: hex.EncodeToString(t.sub.scripthash[:]),
			StatusHash: hashStr,
		})
	}
}

func (h *Hub) send(conn *websocket.Conn, msg statusPush) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[Hub] write error: %v", err)
	}
}

func statusHashString(status *query.Status) string {
	h := status.Hash()
	if h == nil {
		return ""
	}
	return h.String()
}
