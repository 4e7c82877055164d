package control

import (
	"log/slog"
	"sync"

	"github.com/avolkov/farview/internal/application/constant"
	"github.com/avolkov/farview/internal/capture"
	"github.com/avolkov/farview/internal/domain"
	"github.com/avolkov/farview/internal/inject"
	"github.com/avolkov/farview/internal/pipeline"
	"github.com/avolkov/farview/internal/transport"
)

// Host - хостовая сторона управляющего канала: принимает события ввода
// и системные запросы клиента, проигрывает ввод через injector и рулит
// активным экраном конвейера.
//
// Любая ошибка обработки одного сообщения - проблема этого сообщения:
// оно дропается с логом, канал живет дальше.
type Host struct {
	src  capture.Source
	pipe *pipeline.Pipeline
	inj  inject.Injector
	log  *slog.Logger

	mu      sync.Mutex
	ch      transport.DataChannel
	screens []domain.ScreenDescriptor
}

// NewHost создает обработчик. Bind вызывается оркестратором, когда
// engine отдает входящий канал.
func NewHost(src capture.Source, pipe *pipeline.Pipeline, inj inject.Injector, log *slog.Logger) *Host {
	if log == nil {
		log = slog.Default()
	}
	return &Host{src: src, pipe: pipe, inj: inj, log: log}
}

// Bind привязывает обработчик к каналу. На открытие канала хост сам
// отправляет список экранов, не дожидаясь запроса.
func (h *Host) Bind(ch transport.DataChannel) {
	h.mu.Lock()
	h.ch = ch
	h.mu.Unlock()

	ch.OnMessage(h.handle)
	ch.OnOpen(func() {
		h.sendScreenInfo()
	})
}

func (h *Host) handle(data []byte) {
	msg, err := domain.DecodeControl(data)
	if err != nil {
		h.log.Warn("drop control message", slog.Any(constant.Error, err))
		return
	}

	switch c := msg.(type) {
	case domain.InputControl:
		h.applyInput(c.Event)

	case domain.GetScreensControl:
		h.sendScreenInfo()

	case domain.SwitchScreenControl:
		// Индекс попадает в ячейку конвейера и подхватывается его
		// следующей итерацией; подтверждение не отправляется.
		h.pipe.SetActiveScreen(c.Index)
		h.log.Info("switch screen", slog.Int(constant.Screen, c.Index))

	default:
		h.log.Debug("ignoring control message", slog.String("type", "unhandled"))
	}
}

// sendScreenInfo отправляет свежий список экранов и кэширует его для
// денормализации координат мыши.
func (h *Host) sendScreenInfo() {
	screens, err := h.src.Screens()
	if err != nil {
		h.log.Warn("enumerate screens", slog.Any(constant.Error, err))
		return
	}

	h.mu.Lock()
	h.screens = screens
	ch := h.ch
	h.mu.Unlock()

	raw, err := domain.EncodeControl(domain.ScreenInfoControl{Screens: screens})
	if err != nil {
		h.log.Warn("encode screen info", slog.Any(constant.Error, err))
		return
	}
	if ch == nil {
		return
	}
	if err := ch.Send(raw); err != nil {
		h.log.Warn("send screen info", slog.Any(constant.Error, err))
	}
}

func (h *Host) applyInput(ev domain.InputEvent) {
	var err error

	switch ev.EventType {
	case domain.EventMouseMove:
		screen, ok := h.activeScreen()
		if !ok {
			return
		}
		x, y := screen.Denormalize(ev.X, ev.Y)
		err = h.inj.MoveCursor(x, y)

	case domain.EventMouseDown:
		err = h.inj.MouseButton(ev.Button, true)

	case domain.EventMouseUp:
		err = h.inj.MouseButton(ev.Button, false)

	case domain.EventMouseWheel:
		err = h.inj.Wheel(int(ev.Delta))

	case domain.EventKeyDown, domain.EventKeyUp:
		code, ok := inject.LookupKey(ev.Key)
		if !ok {
			// Неизвестная клавиша дропается молча.
			return
		}
		err = h.inj.Key(code, ev.EventType == domain.EventKeyDown)

	default:
		h.log.Debug("unknown input event", slog.String("type", ev.EventType))
		return
	}

	if err != nil {
		h.log.Warn("inject input",
			slog.String("type", ev.EventType),
			slog.Any(constant.Error, err),
		)
	}
}

// activeScreen возвращает границы текущего экрана конвейера. Гонка
// switch_screen и mousemove дает ограниченную неточность координат на
// время одного кадра и принимается как есть.
func (h *Host) activeScreen() (domain.ScreenDescriptor, bool) {
	h.mu.Lock()
	screens := h.screens
	h.mu.Unlock()

	if len(screens) == 0 {
		fresh, err := h.src.Screens()
		if err != nil || len(fresh) == 0 {
			return domain.ScreenDescriptor{}, false
		}
		h.mu.Lock()
		h.screens = fresh
		h.mu.Unlock()
		screens = fresh
	}

	idx := h.pipe.ActiveScreen()
	if idx >= len(screens) {
		idx = 0
	}
	return screens[idx], true
}
