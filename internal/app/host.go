package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/avolkov/farview/internal/application/config"
	"github.com/avolkov/farview/internal/application/constant"
	"github.com/avolkov/farview/internal/capture"
	"github.com/avolkov/farview/internal/codec"
	"github.com/avolkov/farview/internal/control"
	"github.com/avolkov/farview/internal/domain"
	"github.com/avolkov/farview/internal/identity"
	"github.com/avolkov/farview/internal/inject"
	"github.com/avolkov/farview/internal/pipeline"
	"github.com/avolkov/farview/internal/session"
	"github.com/avolkov/farview/internal/signaling"
	"github.com/avolkov/farview/internal/transport"
)

// HostDeps - зависимости оркестратора хоста. Платформенные
// коллабораторы (захват, инъекция ввода, кодек) приходят снаружи.
type HostDeps struct {
	Config   *config.Config
	Logger   *slog.Logger
	Identity *identity.Store

	Source   capture.Source
	Injector inject.Injector

	// NewEncoder создает кодек на каждую сессию: у кодека есть
	// внутреннее состояние (keyframe, буферы).
	NewEncoder func() (codec.Encoder, error)

	// NewEngine создает transport engine на каждую сессию.
	NewEngine func() (transport.Engine, error)

	// OnState (опционально) - статусы для слоя UI.
	OnState func(session.State)
}

// activeSession - текущая сессия хоста вместе с ее конвейером.
type activeSession struct {
	sess *session.Session
	pipe *pipeline.Pipeline
}

// Host - оркестратор стороны хоста: сидит в комнате собственного
// идентификатора и на каждый входящий offer собирает
// engine + сессию + конвейер + обработчик управляющего канала.
type Host struct {
	deps HostDeps
	log  *slog.Logger

	relay  *signaling.Client
	roomID string

	mu     sync.Mutex
	active *activeSession
}

// NewHost создает оркестратор хоста.
func NewHost(deps HostDeps) *Host {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Host{deps: deps, log: deps.Logger}
}

// RoomID возвращает комнату хоста; пусто до Run.
func (h *Host) RoomID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.roomID
}

// Run загружает идентификатор, регистрируется в реестре relay, входит
// в свою комнату и обслуживает входящие offer до отмены контекста.
// Ошибка одной сессии завершает сессию, а не хост.
func (h *Host) Run(ctx context.Context) error {
	cfg := h.deps.Config

	roomID, err := h.deps.Identity.LoadOrCreate()
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	h.mu.Lock()
	h.roomID = roomID
	h.mu.Unlock()

	h.log = h.log.With(slog.String(constant.RoomID, roomID))

	if cfg.Host.AccessPIN != "" {
		if err := h.register(ctx); err != nil {
			// Реестр недоступен - хост продолжает работать: комната
			// может быть открытой.
			h.log.Warn("register host", slog.Any(constant.Error, err))
		}
	}

	relay, err := signaling.Join(ctx, signaling.Config{
		URL:     cfg.Host.RelayURL,
		AuthURL: cfg.Host.AuthURL,
		Room:    roomID,
		PIN:     cfg.Host.AccessPIN,
		Logger:  h.log,
	})
	if err != nil {
		return fmt.Errorf("join relay: %w", err)
	}
	h.relay = relay

	h.log.Info("host is waiting for connections")

	defer func() {
		h.closeActive()
		_ = relay.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-relay.Messages():
			if !ok {
				return fmt.Errorf("relay connection lost")
			}
			h.dispatch(ctx, msg)
		}
	}
}

// Close завершает активную сессию и отключается от relay.
func (h *Host) Close() {
	h.closeActive()
	if h.relay != nil {
		_ = h.relay.Close()
	}
}

func (h *Host) dispatch(ctx context.Context, msg domain.SignalMessage) {
	if msg.IsEcho(h.relay.LocalID()) {
		return
	}

	if msg.Type == domain.SignalOffer {
		h.startSession(ctx, msg)
		return
	}

	h.mu.Lock()
	active := h.active
	h.mu.Unlock()
	if active != nil {
		active.sess.Deliver(msg)
	}
}

// startSession собирает новую сессию под offer. Действует правило
// одной активной сессии: живая сессия сначала демонтируется, новая
// строится на ее месте.
func (h *Host) startSession(ctx context.Context, offer domain.SignalMessage) {
	h.closeActive()

	engine, err := h.deps.NewEngine()
	if err != nil {
		h.log.Error("create engine", slog.Any(constant.Error, err))
		return
	}

	enc, err := h.deps.NewEncoder()
	if err != nil {
		h.log.Error("create encoder", slog.Any(constant.Error, err))
		_ = engine.Close()
		return
	}

	pipe := pipeline.New(pipeline.Config{
		Source:      h.deps.Source,
		Encoder:     enc,
		Send:        engine.SendVideo,
		Interval:    h.deps.Config.Host.FrameInterval(),
		MaxLongEdge: h.deps.Config.Host.MaxWidth,
		Logger:      h.log,
	})

	ctrl := control.NewHost(h.deps.Source, pipe, h.deps.Injector, h.log)
	engine.OnDataChannel(func(ch transport.DataChannel) {
		if ch.Label() != session.ControlChannelLabel {
			return
		}
		ctrl.Bind(ch)
	})

	sess := session.New(session.Config{
		Role:         session.RoleHost,
		Room:         h.roomID,
		Engine:       engine,
		Relay:        h.relay,
		Logger:       h.log,
		OnState:      h.deps.OnState,
		OnNegotiated: pipe.Start,
		StopPipeline: pipe.Stop,
	})

	if err := sess.StartWithOffer(ctx, offer); err != nil {
		h.log.Error("start session", slog.Any(constant.Error, err))
		sess.Close()
		return
	}

	h.mu.Lock()
	h.active = &activeSession{sess: sess, pipe: pipe}
	h.mu.Unlock()
}

func (h *Host) closeActive() {
	h.mu.Lock()
	active := h.active
	h.active = nil
	h.mu.Unlock()

	if active != nil {
		active.sess.Close()
	}
}

// register заносит хост в реестр relay: alias и свежий хэш PIN.
func (h *Host) register(ctx context.Context) error {
	cfg := h.deps.Config

	body, err := json.Marshal(map[string]string{
		"identity": h.roomID,
		"alias":    cfg.Host.Alias,
		"pin":      cfg.Host.AccessPIN,
	})
	if err != nil {
		return fmt.Errorf("marshal register request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Host.RegisterURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("register request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("register request: status %d", resp.StatusCode)
	}

	return nil
}
