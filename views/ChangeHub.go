package views

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/GrainArc/GeoEdit/models"
	"github.com/gorilla/websocket"
)

// 要素变更推送

const (
	pingPeriod   = 30 * time.Second
	writeTimeout = 10 * time.Second
	sendBuffer   = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 生产环境需要严格检查
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type subscriber struct {
	send chan models.ChangeEvent
}

// ChangeHub 按集合分发变更事件
type ChangeHub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	logger *slog.Logger
}

func NewChangeHub(logger *slog.Logger) *ChangeHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeHub{subs: make(map[string]map[*subscriber]struct{}), logger: logger}
}

// Publish 不阻塞，订阅端缓冲满时丢弃该订阅端的本条事件
func (h *ChangeHub) Publish(ev models.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[ev.Collection] {
		select {
		case s.send <- ev:
		default:
			h.logger.Warn("change dropped, subscriber too slow", "collection", ev.Collection, "id", ev.ID)
		}
	}
}

// Subscribers 当前订阅某集合的连接数
func (h *ChangeHub) Subscribers(collection string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[collection])
}

func (h *ChangeHub) add(collection string) *subscriber {
	s := &subscriber{send: make(chan models.ChangeEvent, sendBuffer)}
	h.mu.Lock()
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[*subscriber]struct{})
	}
	h.subs[collection][s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *ChangeHub) remove(collection string, s *subscriber) {
	h.mu.Lock()
	delete(h.subs[collection], s)
	if len(h.subs[collection]) == 0 {
		delete(h.subs, collection)
	}
	h.mu.Unlock()
}

// Serve 升级为 WebSocket 并持续推送 collection 的变更，连接断开后返回
func (h *ChangeHub) Serve(w http.ResponseWriter, r *http.Request, collection string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s := h.add(collection)
	defer h.remove(collection, s)
	h.logger.Info("change feed connected", "collection", collection, "remote", r.RemoteAddr)

	// 读协程只负责发现断开
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Warn("change feed read error", "collection", collection, "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			h.logger.Info("change feed closed", "collection", collection)
			return
		case ev := <-s.send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Warn("change feed write failed", "collection", collection, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
