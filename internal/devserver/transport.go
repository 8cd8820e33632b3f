package devserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// upgrader mirrors bennypowers-cem/serve's websocket.go: a local dev server
// only ever expects connections from the page it's serving, so Origin
// checking is switched off - CheckOrigin accepts every origin - rather than
// the strict same-origin default gorilla/websocket otherwise enforces.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// hub tracks every connected HMR client and serializes writes per
// connection (gorilla/websocket forbids concurrent writes to one *Conn).
type hub struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]*sync.Mutex
}

func newHub() *hub {
	return &hub{conns: make(map[*websocket.Conn]*sync.Mutex)}
}

// ServeHTTP upgrades the connection, sends the initial `connected` message,
// registers the client, then blocks reading frames purely to detect
// disconnects and to drain hmr-ack acknowledgements (spec §6: the ack has
// no effect on server state today, since a failed patch apply has nowhere
// else to fall back to besides the reconnect-implies-full-reload rule).
func (h *hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.conns[conn] = &sync.Mutex{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
	}()

	h.writeTo(conn, marshalConnected(time.Now().UnixMilli()))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		decodeAck(data) // acknowledged, nothing further to do (see doc comment)
	}
}

func (h *hub) writeTo(conn *websocket.Conn, payload []byte) {
	h.mu.RLock()
	mu := h.conns[conn]
	h.mu.RUnlock()
	if mu == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	_ = conn.WriteMessage(websocket.TextMessage, payload)
}

// broadcast sends payload to every currently connected client, dropping any
// connection that errors (its read loop will notice the close and
// unregister it).
func (h *hub) broadcast(payload []byte) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		h.writeTo(c, payload)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		_ = c.Close()
	}
	h.conns = make(map[*websocket.Conn]*sync.Mutex)
}
