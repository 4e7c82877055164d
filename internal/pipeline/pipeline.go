package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/avolkov/farview/internal/application/constant"
	"github.com/avolkov/farview/internal/application/metric"
	"github.com/avolkov/farview/internal/capture"
	"github.com/avolkov/farview/internal/codec"
)

const (
	defaultInterval = 40 * time.Millisecond
	defaultMaxEdge  = 1920
)

// SendFunc отправляет закодированный кадр через transport engine.
type SendFunc func(timestampMs uint32, payload []byte) error

// Config - параметры конвейера захвата.
type Config struct {
	Source      capture.Source
	Encoder     codec.Encoder
	Send        SendFunc
	Interval    time.Duration
	MaxLongEdge int
	Logger      *slog.Logger
}

// Pipeline - цикл захват -> масштабирование -> кодирование -> отправка.
//
// Цикл самотактируемый: каждая итерация измеряет собственную стоимость
// и досыпает остаток бюджета. При перерасходе бюджета цикл лишь уступает
// планировщик и сразу переходит к следующему захвату: очередь кадров не
// накапливается никогда, в полете ровно один кадр.
type Pipeline struct {
	src      capture.Source
	enc      codec.Encoder
	send     SendFunc
	interval time.Duration
	maxEdge  int
	log      *slog.Logger
	base     time.Time

	// Единственное разделяемое состояние с обработчиком команд -
	// индекс активного экрана. Лок держится только на чтение/запись,
	// никогда поверх захвата или кодирования.
	screenMu sync.Mutex
	active   int

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New создает конвейер. Send обязан быть готов к вызовам из отдельной
// горутины.
func New(cfg Config) *Pipeline {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.MaxLongEdge == 0 {
		cfg.MaxLongEdge = defaultMaxEdge
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Pipeline{
		src:      cfg.Source,
		enc:      cfg.Encoder,
		send:     cfg.Send,
		interval: cfg.Interval,
		maxEdge:  cfg.MaxLongEdge,
		log:      cfg.Logger,
		base:     time.Now(),
	}
}

// Start запускает цикл. Повторный Start при работающем цикле - no-op.
func (p *Pipeline) Start() {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(ctx, p.done)
}

// Stop останавливает цикл и дожидается выхода. Идемпотентен.
func (p *Pipeline) Stop() {
	p.runMu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SetActiveScreen выбирает экран для следующей итерации. Отрицательный
// индекс сбрасывается в 0; выход за верхнюю границу исправляется в цикле
// по живому списку экранов.
func (p *Pipeline) SetActiveScreen(index int) {
	if index < 0 {
		index = 0
	}
	p.screenMu.Lock()
	p.active = index
	p.screenMu.Unlock()
}

// ActiveScreen возвращает текущий индекс экрана.
func (p *Pipeline) ActiveScreen() int {
	p.screenMu.Lock()
	defer p.screenMu.Unlock()
	return p.active
}

func (p *Pipeline) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		started := time.Now()
		p.iterate()

		if rest := p.interval - time.Since(started); rest > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(rest):
			}
		} else {
			// Бюджет итерации исчерпан: не спим отрицательное время,
			// лишь уступаем планировщик.
			runtime.Gosched()
		}
	}
}

// iterate выполняет один проход. Любая ошибка внутри итерации
// проглатывается с логом: временно недоступный экран не должен
// завершать сессию.
func (p *Pipeline) iterate() {
	screens, err := p.src.Screens()
	if err != nil {
		metric.IncrementCaptureErrors()
		p.log.Warn("enumerate screens", slog.Any(constant.Error, err))
		return
	}
	if len(screens) == 0 {
		p.log.Warn("no screens available")
		return
	}

	// Список экранов мог измениться после выбора индекса -
	// перепроверяем на каждой итерации.
	idx := p.ActiveScreen()
	if idx >= len(screens) {
		idx = 0
		p.SetActiveScreen(0)
	}

	img, err := p.src.Capture(idx)
	if err != nil {
		metric.IncrementCaptureErrors()
		p.log.Warn("capture screen",
			slog.Int(constant.Screen, idx),
			slog.Any(constant.Error, err),
		)
		return
	}

	img = Fit(img, p.maxEdge)

	payload, err := p.enc.Encode(img)
	if err != nil {
		metric.IncrementCaptureErrors()
		p.log.Warn("encode frame", slog.Any(constant.Error, err))
		return
	}
	if len(payload) == 0 {
		// Кодек буферизует - законный пустой результат.
		return
	}

	ts := uint32(time.Since(p.base).Milliseconds())
	if err := p.send(ts, payload); err != nil {
		p.log.Warn("send frame", slog.Any(constant.Error, err))
		return
	}

	metric.IncrementFramesSent()
}
