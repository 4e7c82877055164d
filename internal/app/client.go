package app

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/avolkov/farview/internal/application/config"
	"github.com/avolkov/farview/internal/application/constant"
	"github.com/avolkov/farview/internal/codec"
	"github.com/avolkov/farview/internal/control"
	"github.com/avolkov/farview/internal/domain"
	"github.com/avolkov/farview/internal/session"
	"github.com/avolkov/farview/internal/signaling"
	"github.com/avolkov/farview/internal/transport"
)

// ClientDeps - зависимости оркестратора клиента. Слой UI потребляет
// кадры и список экранов через callbacks и шлет ввод через методы.
type ClientDeps struct {
	Config *config.Config
	Logger *slog.Logger

	// NewEngine создает transport engine соединения.
	NewEngine func() (transport.Engine, error)

	// Decoder разбирает принятые кадры для отрисовки.
	Decoder codec.Decoder

	// OnFrame дергается на каждый декодированный кадр.
	OnFrame func(img *image.RGBA)

	// OnScreens дергается при обновлении списка экранов хоста.
	OnScreens func(screens []domain.ScreenDescriptor)

	// OnState (опционально) - статусы для слоя UI.
	OnState func(session.State)
}

// Client - оркестратор стороны клиента: подключение к комнате хоста,
// прием видео и пересылка ввода.
type Client struct {
	deps ClientDeps
	log  *slog.Logger

	mu     sync.Mutex
	relay  *signaling.Client
	sess   *session.Session
	ctrl   *control.Client
	closed bool
}

// NewClient создает оркестратор клиента.
func NewClient(deps ClientDeps) *Client {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Client{deps: deps, log: deps.Logger}
}

// Connect входит в комнату roomID и доводит сессию до Negotiated.
// Недоступный хост или проваленное согласование - ошибка подключения,
// а не аварийное завершение.
func (c *Client) Connect(ctx context.Context, roomID string) error {
	cfg := c.deps.Config

	relay, err := signaling.Join(ctx, signaling.Config{
		URL:     cfg.Client.RelayURL,
		AuthURL: cfg.Client.AuthURL,
		Room:    roomID,
		PIN:     cfg.Client.AccessPIN,
		Logger:  c.log,
	})
	if err != nil {
		return fmt.Errorf("join relay: %w", err)
	}

	engine, err := c.deps.NewEngine()
	if err != nil {
		_ = relay.Close()
		return fmt.Errorf("create engine: %w", err)
	}

	engine.OnVideoFrame(func(_ uint32, payload []byte) {
		img, err := c.deps.Decoder.Decode(payload)
		if err != nil {
			c.log.Warn("decode frame", slog.Any(constant.Error, err))
			return
		}
		if c.deps.OnFrame != nil {
			c.deps.OnFrame(img)
		}
	})

	ctrl := control.NewClient(c.log, c.deps.OnScreens)

	negotiated := make(chan struct{})
	failed := make(chan error, 1)

	sess := session.New(session.Config{
		Role:    session.RoleClient,
		Room:    roomID,
		Engine:  engine,
		Relay:   relay,
		Logger:  c.log,
		OnState: c.deps.OnState,
		OnNegotiated: func() {
			close(negotiated)
		},
		OnError: func(err error) {
			select {
			case failed <- err:
			default:
			}
		},
	})

	if err := sess.Start(ctx); err != nil {
		sess.Close()
		_ = relay.Close()
		return fmt.Errorf("start session: %w", err)
	}

	ctrl.Bind(sess.Channel())

	// Единственный читатель relay: порядок сообщений сохраняется.
	go func() {
		for msg := range relay.Messages() {
			sess.Deliver(msg)
		}
	}()

	c.mu.Lock()
	c.relay = relay
	c.sess = sess
	c.ctrl = ctrl
	c.mu.Unlock()

	select {
	case <-negotiated:
		return nil

	case err := <-failed:
		c.Close()
		return fmt.Errorf("negotiation failed: %w", err)

	case <-ctx.Done():
		c.Close()
		return ctx.Err()
	}
}

// Close разрывает сессию и подключение к relay. Идемпотентен.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sess, relay := c.sess, c.relay
	c.mu.Unlock()

	if sess != nil {
		sess.Close()
	}
	if relay != nil {
		_ = relay.Close()
	}
}

// Screens возвращает последний полученный список экранов хоста.
func (c *Client) Screens() []domain.ScreenDescriptor {
	if ctrl := c.controller(); ctrl != nil {
		return ctrl.Screens()
	}
	return nil
}

// SendInput пересылает событие ввода хосту.
func (c *Client) SendInput(ev domain.InputEvent) error {
	ctrl := c.controller()
	if ctrl == nil {
		return fmt.Errorf("not connected")
	}
	return ctrl.SendInput(ev)
}

// SendMouseMove нормализует координаты против поверхности w x h
// и отправляет движение мыши.
func (c *Client) SendMouseMove(px, py, w, h int) error {
	ctrl := c.controller()
	if ctrl == nil {
		return fmt.Errorf("not connected")
	}
	return ctrl.SendMouseMove(px, py, w, h)
}

// SwitchScreen переключает трансляцию на экран index.
func (c *Client) SwitchScreen(index int) error {
	ctrl := c.controller()
	if ctrl == nil {
		return fmt.Errorf("not connected")
	}
	return ctrl.SwitchScreen(index)
}

func (c *Client) controller() *control.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctrl
}
