package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/avolkov/farview/internal/application/config"
	"github.com/avolkov/farview/internal/application/constant"
	"github.com/avolkov/farview/internal/domain"
	"github.com/avolkov/farview/internal/relay"
	"github.com/avolkov/farview/internal/relay/appctx"
)

const readWait = 60 * time.Second

type WebSocketHandler struct {
	upgrader *websocket.Upgrader
	hub      *relay.Hub
}

func NewWebSocketHandler(cfg *config.Config, hub *relay.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				origin := r.Header.Get("Origin")
				return origin == "" || origin == cfg.Relay.Domain
			},
		},
		hub: hub,
	}
}

// Handle гоняет сигнальные кадры соединения. Первым кадром клиент
// обязан прислать join с идентификатором комнаты; все последующие
// пересылаются остальным участникам комнаты как есть.
func (h *WebSocketHandler) Handle(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("websocket upgrade", slog.Any(constant.Error, err))
		return err
	}
	defer ws.Close()

	_ = ws.SetReadDeadline(time.Now().Add(readWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readWait))
	})

	roomID, err := h.readJoin(ws)
	if err != nil {
		slog.Warn("websocket join", slog.Any(constant.Error, err))
		return nil
	}

	// Токен выписан на конкретную комнату - в чужую не пускаем.
	if tokenRoom, ok := appctx.RoomID(c.Request().Context()); ok && tokenRoom != roomID {
		slog.Warn("room mismatch",
			slog.String(constant.RoomID, roomID),
		)
		return nil
	}

	conn := h.hub.Join(roomID, ws)
	defer h.hub.Leave(conn)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			h.logReadError(conn, err)
			return nil
		}
		_ = ws.SetReadDeadline(time.Now().Add(readWait))

		var msg domain.SignalMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Warn("drop malformed signal frame",
				slog.String(constant.SenderID, conn.ID),
				slog.Any(constant.Error, err),
			)
			continue
		}
		if msg.Type == domain.SignalJoin {
			// Комната выбирается один раз на соединение.
			continue
		}

		h.hub.RelayToOthers(conn, raw)
	}
}

func (h *WebSocketHandler) readJoin(ws *websocket.Conn) (string, error) {
	_, raw, err := ws.ReadMessage()
	if err != nil {
		return "", err
	}

	var msg domain.SignalMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", err
	}
	if msg.Type != domain.SignalJoin || msg.Payload == "" {
		return "", errors.New("first frame must be join with a room id")
	}

	return msg.Payload, nil
}

func (h *WebSocketHandler) logReadError(conn *relay.Conn, err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			slog.Info("peer disconnected",
				slog.String(constant.SenderID, conn.ID),
			)
			return
		}
	}

	slog.Warn("websocket read",
		slog.String(constant.SenderID, conn.ID),
		slog.Any(constant.Error, err),
	)
}
