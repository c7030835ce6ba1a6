package surface

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	subscriberQueue = 256
	writeWait       = 10 * time.Second
)

// MarkerSource provides the current marker set for new subscribers.
type MarkerSource interface {
	Markers() []Marker
}

type snapshotMessage struct {
	Type    string   `json:"type"`
	Markers []Marker `json:"markers"`
}

type subscriber struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub mirrors a marker layer to browser map pages over WebSocket. A new
// subscriber first receives the full marker snapshot, then live commands.
type Hub struct {
	source   MarkerSource
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[string]*subscriber
	closed      bool
}

func NewHub(source MarkerSource) *Hub {
	return &Hub{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		subscribers: make(map[string]*subscriber),
	}
}

// Handler serves /markers (WebSocket) and /markers.json (snapshot).
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/markers", h.serveWS)
	mux.HandleFunc("/markers.json", h.serveSnapshot)
	return mux
}

// Broadcast queues cmd for every subscriber. A subscriber whose queue is full
// misses the command.
func (h *Hub) Broadcast(cmd Command) {
	data, err := json.Marshal(cmd)
	if err != nil {
		log.WithField("err", err).Error("Не удалось закодировать команду карты")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subscribers {
		select {
		case sub.send <- data:
		default:
			log.WithField("subscriber", sub.id).Warn("Очередь подписчика переполнена, команда пропущена")
		}
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.closed = true
	h.mu.Unlock()

	for _, sub := range subs {
		h.unregister(sub)
	}
}

func (h *Hub) serveSnapshot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.source.Markers()); err != nil {
		log.WithField("err", err).Error("Не удалось отправить снимок маркеров")
	}
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithField("err", err).Warn("Не удалось установить websocket-соединение с подписчиком карты")
		return
	}

	sub := &subscriber{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, subscriberQueue),
	}

	// Register before taking the snapshot so no command falls in between.
	if !h.register(sub) {
		_ = conn.Close()
		return
	}
	log.WithFields(log.Fields{"subscriber": sub.id, "ip": r.RemoteAddr}).Info("Подписчик карты подключен")

	snapshot, err := json.Marshal(snapshotMessage{Type: "snapshot", Markers: h.source.Markers()})
	if err != nil {
		log.WithField("err", err).Error("Не удалось закодировать снимок маркеров")
		h.unregister(sub)
		return
	}

	go h.writeLoop(sub, snapshot)
	h.readLoop(sub)
}

func (h *Hub) register(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subscribers[sub.id] = sub
	return true
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	_, ok := h.subscribers[sub.id]
	if ok {
		delete(h.subscribers, sub.id)
		close(sub.send)
	}
	h.mu.Unlock()

	if ok {
		_ = sub.conn.Close()
		log.WithField("subscriber", sub.id).Info("Подписчик карты отключен")
	}
}

func (h *Hub) writeLoop(sub *subscriber, snapshot []byte) {
	defer h.unregister(sub)

	if err := h.write(sub, snapshot); err != nil {
		return
	}
	for data := range sub.send {
		if err := h.write(sub, data); err != nil {
			return
		}
	}
}

func (h *Hub) write(sub *subscriber, data []byte) error {
	_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.WithFields(log.Fields{"subscriber": sub.id, "err": err}).Debug("Ошибка отправки подписчику карты")
		return err
	}
	return nil
}

// readLoop only watches for the browser going away.
func (h *Hub) readLoop(sub *subscriber) {
	defer h.unregister(sub)
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}
