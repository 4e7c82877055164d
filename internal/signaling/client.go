package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/avolkov/farview/internal/application/constant"
	"github.com/avolkov/farview/internal/domain"
)

const (
	dialBackoff    = 250 * time.Millisecond
	dialRetries    = 4
	welcomeTimeout = 10 * time.Second
	inboxBuffer    = 64
)

// Config - параметры подключения к relay.
type Config struct {
	// URL сигнального websocket, например ws://localhost:7099/ws.
	URL string

	// AuthURL - эндпоинт выдачи токена. Используется, когда задан PIN.
	AuthURL string

	// Room - комната (идентификатор хоста).
	Room string

	// PIN - код доступа к комнате; пустой PIN значит открытый relay.
	PIN string

	Logger *slog.Logger
}

// Client - подключение к комнате relay. Читает одна горутина, поэтому
// порядок сообщений отправителя сохраняется до самого потребителя.
type Client struct {
	log *slog.Logger

	ws       *websocket.Conn
	localID  string
	messages chan domain.SignalMessage

	writeMu sync.Mutex
	once    sync.Once
	quit    chan struct{}
}

// Join подключается к relay, входит в комнату и дожидается welcome
// с собственным connection id. Обрывы при подключении ретраятся
// с экспоненциальной паузой; исчерпание попыток - ошибка, а не паника.
func Join(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	log := cfg.Logger.With(slog.String(constant.RoomID, cfg.Room))

	wsURL := cfg.URL
	if cfg.PIN != "" {
		token, err := fetchToken(ctx, cfg.AuthURL, cfg.Room, cfg.PIN)
		if err != nil {
			return nil, fmt.Errorf("fetch relay token: %w", err)
		}
		u, err := url.Parse(wsURL)
		if err != nil {
			return nil, fmt.Errorf("parse relay url: %w", err)
		}
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
		wsURL = u.String()
	}

	ws, err := dial(ctx, wsURL)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	c := &Client{
		log:      log,
		ws:       ws,
		messages: make(chan domain.SignalMessage, inboxBuffer),
		quit:     make(chan struct{}),
	}

	join := domain.SignalMessage{Type: domain.SignalJoin, Payload: cfg.Room}
	if err := c.write(join); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("send join: %w", err)
	}

	if err := c.readWelcome(); err != nil {
		_ = ws.Close()
		return nil, err
	}

	go c.readLoop()

	log.Info("joined relay room", slog.String(constant.SenderID, c.localID))

	return c, nil
}

func dial(ctx context.Context, wsURL string) (*websocket.Conn, error) {
	var ws *websocket.Conn

	backoff := retry.WithMaxRetries(dialRetries, retry.NewExponential(dialBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusUnauthorized {
				// Плохой токен ретраями не лечится.
				return fmt.Errorf("relay rejected token: %w", err)
			}
			return retry.RetryableError(err)
		}
		ws = conn
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ws, nil
}

// readWelcome блокируется до служебного кадра welcome: relay выдает
// connection id, которым будут подписаны все исходящие сообщения.
func (c *Client) readWelcome() error {
	_ = c.ws.SetReadDeadline(time.Now().Add(welcomeTimeout))
	defer c.ws.SetReadDeadline(time.Time{})

	var msg domain.SignalMessage
	if err := c.ws.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read welcome: %w", err)
	}
	if msg.Type != domain.SignalWelcome || msg.Payload == "" {
		return fmt.Errorf("expected welcome frame, got %q", msg.Type)
	}

	c.localID = msg.Payload
	return nil
}

// LocalID возвращает connection id, выданный relay.
func (c *Client) LocalID() string { return c.localID }

// Send отправляет сообщение в комнату, подписывая его собственным id,
// если отправитель не проставил SenderID сам.
func (c *Client) Send(msg domain.SignalMessage) error {
	if msg.SenderID == "" {
		msg.SenderID = c.localID
	}
	return c.write(msg)
}

// Messages возвращает канал входящих сообщений комнаты. Канал
// закрывается при обрыве соединения или Close.
func (c *Client) Messages() <-chan domain.SignalMessage {
	return c.messages
}

// Close закрывает подключение. Идемпотентен.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.quit)
		err = c.ws.Close()
	})
	return err
}

func (c *Client) write(msg domain.SignalMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (c *Client) readLoop() {
	defer close(c.messages)

	for {
		var msg domain.SignalMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			select {
			case <-c.quit:
			default:
				c.log.Warn("relay connection lost", slog.Any(constant.Error, err))
			}
			return
		}

		select {
		case c.messages <- msg:
		default:
			c.log.Warn("inbox overflow, dropping signal",
				slog.String("type", msg.Type),
			)
		}
	}
}

func fetchToken(ctx context.Context, authURL, identity, pin string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"identity": identity,
		"pin":      pin,
	})
	if err != nil {
		return "", fmt.Errorf("marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth request: status %d", resp.StatusCode)
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("auth response without token")
	}

	return parsed.Token, nil
}
