package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/avolkov/farview/internal/application/constant"
	"github.com/avolkov/farview/internal/application/metric"
	"github.com/avolkov/farview/internal/domain"
	"github.com/avolkov/farview/internal/transport"
)

// State - этап жизненного цикла сессии.
type State string

const (
	StateIdle            State = "idle"
	StateOfferSent       State = "offer_sent"
	StateOfferReceived   State = "offer_received"
	StateAnswerExchanged State = "answer_exchanged"
	StateNegotiated      State = "negotiated"
	StateClosed          State = "closed"
)

// Role - сторона сессии.
type Role string

const (
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

// ControlChannelLabel - метка управляющего канала данных. Канал создает
// клиентская сторона до отправки offer, чтобы он попал в SDP.
const ControlChannelLabel = "control"

// Relay - то, что сессии нужно от сигнального транспорта: отправка
// сообщений в комнату и собственный connection id для отсечения эха.
type Relay interface {
	Send(msg domain.SignalMessage) error
	LocalID() string
}

// Config - зависимости и обратные вызовы сессии.
type Config struct {
	Role   Role
	Room   string
	Engine transport.Engine
	Relay  Relay
	Logger *slog.Logger

	// OnState дергается при каждой смене состояния.
	OnState func(State)

	// OnNegotiated дергается один раз при выходе в Negotiated.
	OnNegotiated func()

	// OnError сообщает о фатальной ошибке согласования. Сессия после
	// этого закрывается сама; процесс продолжает жить.
	OnError func(error)

	// Хуки упорядоченного демонтажа: сначала останавливается конвейер,
	// затем закрывается управляющий канал, затем engine.
	StopPipeline func()
	CloseChannel func()
}

type signalEvent struct{ msg domain.SignalMessage }

type localCandidateEvent struct{ candidate string }

type engineStateEvent struct{ state transport.State }

// Session - машина состояний одного peer-соединения. Все входящие
// события (сигнальные сообщения, локальные кандидаты, смены состояния
// engine) проходят через типизированную очередь и обрабатываются одной
// горутиной, поэтому переходы не нуждаются в блокировках.
type Session struct {
	id     string
	role   Role
	room   string
	engine transport.Engine
	relay  Relay
	log    *slog.Logger

	onState      func(State)
	onNegotiated func()
	onError      func(error)
	stopPipeline func()
	closeChannel func()

	events chan any
	quit   chan struct{}

	closeOnce sync.Once

	mu         sync.Mutex
	state      State
	started    bool
	haveRemote bool
	pending    []string
	channel    transport.DataChannel
}

// New создает сессию в состоянии Idle.
func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Session{
		id:           uuid.NewString(),
		role:         cfg.Role,
		room:         cfg.Room,
		engine:       cfg.Engine,
		relay:        cfg.Relay,
		onState:      cfg.OnState,
		onNegotiated: cfg.OnNegotiated,
		onError:      cfg.OnError,
		stopPipeline: cfg.StopPipeline,
		closeChannel: cfg.CloseChannel,
		events:       make(chan any, 64),
		quit:         make(chan struct{}),
		state:        StateIdle,
	}
	s.log = cfg.Logger.With(
		slog.String(constant.SessionID, s.id),
		slog.String(constant.RoomID, s.room),
	)

	return s
}

// ID возвращает идентификатор сессии.
func (s *Session) ID() string { return s.id }

// State возвращает текущее состояние.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Channel возвращает управляющий канал, созданный клиентской стороной,
// либо nil до Start.
func (s *Session) Channel() transport.DataChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// Start запускает клиентскую сторону: создает управляющий канал,
// отправляет offer в комнату и переходит в OfferSent.
func (s *Session) Start(ctx context.Context) error {
	s.bindEngine()

	ch, err := s.engine.CreateDataChannel(ControlChannelLabel)
	if err != nil {
		return fmt.Errorf("create control channel: %w", err)
	}
	s.mu.Lock()
	s.channel = ch
	s.mu.Unlock()

	offer, err := s.engine.CreateOffer(ctx)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := s.relay.Send(domain.SignalMessage{Type: domain.SignalOffer, Payload: offer}); err != nil {
		return fmt.Errorf("send offer: %w", err)
	}

	s.setState(StateOfferSent)
	s.run()
	return nil
}

// StartWithOffer запускает хостовую сторону по входящему offer:
// применяет удаленное описание, отправляет answer и переходит
// в AnswerExchanged.
func (s *Session) StartWithOffer(ctx context.Context, offer domain.SignalMessage) error {
	if offer.Type != domain.SignalOffer {
		return fmt.Errorf("start with %q message, want %q", offer.Type, domain.SignalOffer)
	}

	s.bindEngine()
	s.setState(StateOfferReceived)

	if err := s.engine.SetRemoteDescription(domain.SignalOffer, offer.Payload); err != nil {
		return fmt.Errorf("apply remote offer: %w", err)
	}
	s.flushPending()

	answer, err := s.engine.CreateAnswer(ctx)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := s.relay.Send(domain.SignalMessage{Type: domain.SignalAnswer, Payload: answer}); err != nil {
		return fmt.Errorf("send answer: %w", err)
	}

	s.setState(StateAnswerExchanged)
	s.run()
	return nil
}

// Deliver передает входящее сигнальное сообщение в очередь сессии.
// Не блокируется; после закрытия сообщения отбрасываются.
func (s *Session) Deliver(msg domain.SignalMessage) {
	s.enqueue(signalEvent{msg: msg})
}

// Close демонтирует сессию в фиксированном порядке: конвейер,
// управляющий канал, engine. Идемпотентен и безопасен в любом
// состоянии, в том числе до завершения согласования.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)

		if s.stopPipeline != nil {
			s.stopPipeline()
		}

		if s.closeChannel != nil {
			s.closeChannel()
		} else if ch := s.Channel(); ch != nil {
			_ = ch.Close()
		}

		if err := s.engine.Close(); err != nil {
			s.log.Warn("close engine", slog.Any(constant.Error, err))
		}

		s.setState(StateClosed)

		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			metric.DecrementActiveSessions()
		}
	})
}

func (s *Session) bindEngine() {
	s.engine.OnICECandidate(func(candidate string) {
		s.enqueue(localCandidateEvent{candidate: candidate})
	})
	s.engine.OnConnectionStateChange(func(st transport.State) {
		s.enqueue(engineStateEvent{state: st})
	})
}

// run запускает цикл обработки событий; очередь до этого момента лишь
// накапливается, поэтому offer/answer всегда уходят раньше кандидатов.
func (s *Session) run() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	metric.IncrementActiveSessions()
	go s.loop()
}

func (s *Session) enqueue(ev any) {
	select {
	case <-s.quit:
	case s.events <- ev:
	default:
		s.log.Warn("session event queue overflow, dropping event")
	}
}

func (s *Session) loop() {
	for {
		select {
		case <-s.quit:
			return
		case ev := <-s.events:
			switch e := ev.(type) {
			case signalEvent:
				s.handleSignal(e.msg)
			case localCandidateEvent:
				msg := domain.SignalMessage{Type: domain.SignalIceCandidate, Payload: e.candidate}
				if err := s.relay.Send(msg); err != nil {
					s.log.Warn("send ice candidate", slog.Any(constant.Error, err))
				}
			case engineStateEvent:
				s.handleEngineState(e.state)
			}
		}
	}
}

func (s *Session) handleSignal(msg domain.SignalMessage) {
	if msg.IsEcho(s.relay.LocalID()) {
		// Relay рассылает по всей комнате и может вернуть свое же
		// сообщение. Эхо не меняет состояние.
		s.log.Debug("dropping own echo", slog.String("type", msg.Type))
		return
	}

	switch msg.Type {
	case domain.SignalAnswer:
		if st := s.State(); st != StateOfferSent {
			s.log.Warn("unexpected answer", slog.String(constant.State, string(st)))
			return
		}
		if err := s.engine.SetRemoteDescription(domain.SignalAnswer, msg.Payload); err != nil {
			s.fail(fmt.Errorf("apply remote answer: %w", err))
			return
		}
		s.flushPending()
		s.setState(StateAnswerExchanged)

	case domain.SignalIceCandidate:
		s.addCandidate(msg.Payload)

	case domain.SignalOffer:
		// Новый offer - замена сессии, этим занимается оркестратор.
		s.log.Warn("offer delivered to a live session, ignoring")

	default:
		// welcome, peer-joined и прочие служебные кадры relay.
		s.log.Debug("ignoring signal", slog.String("type", msg.Type))
	}
}

// addCandidate применяет удаленного кандидата либо придерживает его:
// engine не принимает кандидатов до удаленного описания.
func (s *Session) addCandidate(candidate string) {
	s.mu.Lock()
	if !s.haveRemote {
		s.pending = append(s.pending, candidate)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.engine.AddICECandidate(candidate); err != nil {
		s.log.Warn("add ice candidate", slog.Any(constant.Error, err))
	}
}

func (s *Session) flushPending() {
	s.mu.Lock()
	s.haveRemote = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, c := range pending {
		if err := s.engine.AddICECandidate(c); err != nil {
			s.log.Warn("add buffered ice candidate", slog.Any(constant.Error, err))
		}
	}
}

func (s *Session) handleEngineState(st transport.State) {
	switch st {
	case transport.StateConnected:
		if cur := s.State(); cur == StateNegotiated || cur == StateClosed {
			return
		}
		s.setState(StateNegotiated)
		if s.onNegotiated != nil {
			s.onNegotiated()
		}

	case transport.StateFailed, transport.StateDisconnected:
		s.fail(fmt.Errorf("peer connection %s", st))
	}
}

// fail завершает сессию с ошибкой через status callback, не процесс.
func (s *Session) fail(err error) {
	s.log.Error("session failed", slog.Any(constant.Error, err))
	if s.onError != nil {
		s.onError(err)
	}
	s.Close()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	if s.state == st || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.mu.Unlock()

	s.log.Debug("session state", slog.String(constant.State, string(st)))
	if s.onState != nil {
		s.onState(st)
	}
}
