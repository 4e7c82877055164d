package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/avolkov/farview/internal/application/constant"
	"github.com/avolkov/farview/internal/application/metric"
	"github.com/avolkov/farview/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 32
)

// Conn - одно websocket-соединение в комнате. Запись идет только из
// writePump, как того требует gorilla.
type Conn struct {
	ID     string
	RoomID string

	ws   *websocket.Conn
	send chan []byte
	quit chan struct{}
	once sync.Once
}

// Hub держит комнаты и разносит сигнальные сообщения по участникам.
// Комната - это просто идентификатор хоста: хост сидит в своей комнате
// постоянно, клиенты приходят и уходят.
type Hub struct {
	log *slog.Logger

	mu    sync.RWMutex
	rooms map[string]map[string]*Conn
}

// NewHub создает пустой hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:   log,
		rooms: make(map[string]map[string]*Conn),
	}
}

// Join регистрирует соединение в комнате, отправляет ему welcome с его
// connection id и уведомляет остальных кадром peer-joined.
func (h *Hub) Join(roomID string, ws *websocket.Conn) *Conn {
	conn := &Conn{
		ID:     uuid.NewString(),
		RoomID: roomID,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		quit:   make(chan struct{}),
	}

	h.mu.Lock()
	room, ok := h.rooms[roomID]
	if !ok {
		room = make(map[string]*Conn)
		h.rooms[roomID] = room
	}
	room[conn.ID] = conn
	roomCount := len(h.rooms)
	h.mu.Unlock()

	metric.IncrementWSActiveConnections()
	metric.SetActiveRooms(roomCount)

	go conn.writePump(h.log)

	h.log.Info("peer joined room",
		slog.String(constant.RoomID, roomID),
		slog.String(constant.SenderID, conn.ID),
	)

	conn.enqueueMessage(h.log, domain.SignalMessage{
		Type:    domain.SignalWelcome,
		Payload: conn.ID,
	})

	h.RelayToOthers(conn, mustMarshal(domain.SignalMessage{
		Type:     domain.SignalPeerJoined,
		SenderID: conn.ID,
	}))

	return conn
}

// Leave убирает соединение из комнаты и останавливает его writePump.
func (h *Hub) Leave(conn *Conn) {
	h.mu.Lock()
	room, ok := h.rooms[conn.RoomID]
	if ok {
		delete(room, conn.ID)
		if len(room) == 0 {
			delete(h.rooms, conn.RoomID)
		}
	}
	roomCount := len(h.rooms)
	h.mu.Unlock()

	if !ok {
		return
	}

	metric.DecrementWSActiveConnections()
	metric.SetActiveRooms(roomCount)

	conn.close()

	h.log.Info("peer left room",
		slog.String(constant.RoomID, conn.RoomID),
		slog.String(constant.SenderID, conn.ID),
	)
}

// RelayToOthers пересылает сырой кадр всем в комнате, кроме отправителя.
// Порядок сообщений одного отправителя сохраняется: рассылка идет из
// его читающей горутины.
func (h *Hub) RelayToOthers(sender *Conn, raw []byte) {
	h.mu.RLock()
	room := h.rooms[sender.RoomID]
	peers := make([]*Conn, 0, len(room))
	for id, c := range room {
		if id == sender.ID {
			continue
		}
		peers = append(peers, c)
	}
	h.mu.RUnlock()

	for _, peer := range peers {
		peer.enqueue(h.log, raw)
	}
}

// RoomSize возвращает число соединений в комнате.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (c *Conn) enqueueMessage(log *slog.Logger, msg domain.SignalMessage) {
	c.enqueue(log, mustMarshal(msg))
}

// enqueue не блокируется: медленный получатель теряет кадры, а не
// тормозит всю комнату.
func (c *Conn) enqueue(log *slog.Logger, raw []byte) {
	select {
	case <-c.quit:
	case c.send <- raw:
	default:
		log.Warn("send buffer overflow, dropping frame",
			slog.String(constant.SenderID, c.ID),
		)
	}
}

func (c *Conn) writePump(log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.quit:
			return

		case raw := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				log.Warn("write to peer",
					slog.String(constant.SenderID, c.ID),
					slog.Any(constant.Error, err),
				)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) close() {
	c.once.Do(func() {
		close(c.quit)
	})
}

func mustMarshal(msg domain.SignalMessage) []byte {
	raw, err := json.Marshal(msg)
	if err != nil {
		// SignalMessage - плоская структура строк, маршалинг не падает.
		panic(err)
	}
	return raw
}
