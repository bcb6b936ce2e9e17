// Package server exposes the demodulator's read-only diagnostics over HTTP:
// a websocket stream of per-frame sync state and a status snapshot endpoint.
// It performs no control of the engine.
package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // diagnostics only, local use
	},
}

// FrameDiagnostics is one per-frame snapshot of the sync engine.
type FrameDiagnostics struct {
	State             string    `json:"state"`
	TotalFramesRead   uint64    `json:"totalFramesRead"`
	TotalFramesDesync uint64    `json:"totalFramesDesync"`
	CoarseFreqHz      float64   `json:"coarseFreqHz"`
	FineFreqHz        float64   `json:"fineFreqHz"`
	FineTimeOffset    int       `json:"fineTimeOffset"`
	SignalAverage     float64   `json:"signalAverage"`
	ImpulseResponse   []float64 `json:"impulseResponse,omitempty"`
	CoarseResponse    []float64 `json:"coarseResponse,omitempty"`
}

// WSMessage wraps every websocket payload with a type tag.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Hub fans diagnostics out to websocket subscribers. Slow clients are
// dropped rather than allowed to stall the broadcast path.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte

	lastMu sync.RWMutex
	last   FrameDiagnostics
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *Hub) addClient(conn *websocket.Conn) chan []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan []byte, 8)
	h.clients[conn] = ch
	log.Debug("diagnostics client connected", "total", len(h.clients))
	return ch
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
		conn.Close()
		log.Debug("diagnostics client disconnected", "remaining", len(h.clients))
	}
}

// Publish broadcasts one frame snapshot and retains it for /api/status.
func (h *Hub) Publish(d FrameDiagnostics) {
	h.lastMu.Lock()
	h.last = d
	h.lastMu.Unlock()

	data, err := json.Marshal(WSMessage{Type: "frame", Payload: d})
	if err != nil {
		log.Error("diagnostics marshal", "err", err)
		return
	}

	h.mu.Lock()
	var drop []*websocket.Conn
	for conn, ch := range h.clients {
		select {
		case ch <- data:
		default:
			drop = append(drop, conn)
		}
	}
	h.mu.Unlock()
	for _, conn := range drop {
		h.removeClient(conn)
	}
}

// HandleWS upgrades the connection and streams published snapshots until the
// client goes away.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("diagnostics upgrade", "err", err)
		return
	}
	ch := h.addClient(conn)
	go func() {
		for data := range ch {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.removeClient(conn)
				return
			}
		}
	}()
	// Drain (and ignore) client messages so pings are answered.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.removeClient(conn)
				return
			}
		}
	}()
}

// HandleStatus serves the last published snapshot as JSON.
func (h *Hub) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.lastMu.RLock()
	d := h.last
	h.lastMu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(d)
}

// Serve binds the hub's routes and listens on addr. It blocks like
// http.ListenAndServe.
func Serve(addr string, hub *Hub) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	mux.HandleFunc("/api/status", hub.HandleStatus)
	log.Info("diagnostics listening", "addr", addr)
	return http.ListenAndServe(addr, mux)
}
