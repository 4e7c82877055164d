package control

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/avolkov/farview/internal/application/constant"
	"github.com/avolkov/farview/internal/domain"
	"github.com/avolkov/farview/internal/transport"
)

// Client - клиентская сторона управляющего канала: запрашивает список
// экранов, держит его актуальным и пересылает события ввода хосту без
// батчинга.
type Client struct {
	log       *slog.Logger
	onScreens func([]domain.ScreenDescriptor)

	mu      sync.Mutex
	ch      transport.DataChannel
	screens []domain.ScreenDescriptor
}

// NewClient создает клиентскую сторону. onScreens (опционально)
// дергается при каждом обновлении списка экранов - UI строит по нему
// меню переключения.
func NewClient(log *slog.Logger, onScreens func([]domain.ScreenDescriptor)) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{log: log, onScreens: onScreens}
}

// Bind привязывает обработчик к каналу и на его открытие запрашивает
// список экранов.
func (c *Client) Bind(ch transport.DataChannel) {
	c.mu.Lock()
	c.ch = ch
	c.mu.Unlock()

	ch.OnMessage(c.handle)
	ch.OnOpen(func() {
		if err := c.RequestScreens(); err != nil {
			c.log.Warn("request screens", slog.Any(constant.Error, err))
		}
	})
}

// Screens возвращает последний полученный список экранов.
func (c *Client) Screens() []domain.ScreenDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.ScreenDescriptor(nil), c.screens...)
}

// RequestScreens просит хост прислать список экранов.
func (c *Client) RequestScreens() error {
	return c.send(domain.GetScreensControl{})
}

// SendInput немедленно пересылает событие ввода хосту.
func (c *Client) SendInput(ev domain.InputEvent) error {
	return c.send(domain.InputControl{Event: ev})
}

// SendMouseMove нормализует координаты указателя относительно
// поверхности рендера w x h и отправляет mousemove.
func (c *Client) SendMouseMove(px, py, w, h int) error {
	x, y := domain.Normalize(px, py, w, h)
	return c.SendInput(domain.InputEvent{EventType: domain.EventMouseMove, X: x, Y: y})
}

// SwitchScreen просит хост переключить трансляцию на экран index.
// Подтверждения не будет: следующий кадр просто придет с нового экрана.
func (c *Client) SwitchScreen(index int) error {
	return c.send(domain.SwitchScreenControl{Index: index})
}

func (c *Client) send(msg domain.Control) error {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()

	if ch == nil {
		return fmt.Errorf("control channel is not bound")
	}

	raw, err := domain.EncodeControl(msg)
	if err != nil {
		return fmt.Errorf("encode control message: %w", err)
	}
	if err := ch.Send(raw); err != nil {
		return fmt.Errorf("send control message: %w", err)
	}
	return nil
}

func (c *Client) handle(data []byte) {
	msg, err := domain.DecodeControl(data)
	if err != nil {
		c.log.Warn("drop control message", slog.Any(constant.Error, err))
		return
	}

	info, ok := msg.(domain.ScreenInfoControl)
	if !ok {
		c.log.Debug("ignoring control message on client side")
		return
	}

	// Список заменяется целиком, а не мержится: состав экранов хоста -
	// истина в последней инстанции.
	c.mu.Lock()
	c.screens = append([]domain.ScreenDescriptor(nil), info.Screens...)
	c.mu.Unlock()

	if c.onScreens != nil {
		c.onScreens(info.Screens)
	}
}
