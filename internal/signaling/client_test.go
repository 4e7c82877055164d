package signaling

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avolkov/farview/internal/application/config"
	"github.com/avolkov/farview/internal/domain"
	"github.com/avolkov/farview/internal/relay"
	"github.com/avolkov/farview/internal/relay/handlers"
	"github.com/avolkov/farview/internal/relay/postgres/repository"
	"github.com/avolkov/farview/internal/relay/server"
	"github.com/avolkov/farview/internal/relay/usecase"
)

// startRelay поднимает relay без аутентификации на httptest-сервере.
func startRelay(t *testing.T) string {
	t.Helper()

	cfg := &config.Config{Debug: true}
	hub := relay.NewHub(nil)
	wsHandler := handlers.NewWebSocketHandler(cfg, hub)

	e := echo.New()
	e.HideBanner = true
	e.GET("/ws", wsHandler.Handle)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func receive(t *testing.T, c *Client) domain.SignalMessage {
	t.Helper()
	select {
	case msg, ok := <-c.Messages():
		if !ok {
			t.Fatal("messages channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
	return domain.SignalMessage{}
}

func TestJoinReceivesDistinctIDs(t *testing.T) {
	wsURL := startRelay(t)
	ctx := context.Background()

	a, err := Join(ctx, Config{URL: wsURL, Room: "123456789"})
	if err != nil {
		t.Fatalf("join a: %v", err)
	}
	defer a.Close()

	b, err := Join(ctx, Config{URL: wsURL, Room: "123456789"})
	if err != nil {
		t.Fatalf("join b: %v", err)
	}
	defer b.Close()

	if a.LocalID() == "" || b.LocalID() == "" {
		t.Fatal("empty local id after welcome")
	}
	if a.LocalID() == b.LocalID() {
		t.Fatalf("both clients got id %q", a.LocalID())
	}

	// Ранний участник узнает о позднем.
	joined := receive(t, a)
	if joined.Type != domain.SignalPeerJoined || joined.SenderID != b.LocalID() {
		t.Fatalf("got %+v, want peer-joined from %s", joined, b.LocalID())
	}
}

func TestRelaySendsToOthersOnlyInOrder(t *testing.T) {
	wsURL := startRelay(t)
	ctx := context.Background()

	a, err := Join(ctx, Config{URL: wsURL, Room: "123456789"})
	if err != nil {
		t.Fatalf("join a: %v", err)
	}
	defer a.Close()

	b, err := Join(ctx, Config{URL: wsURL, Room: "123456789"})
	if err != nil {
		t.Fatalf("join b: %v", err)
	}
	defer b.Close()

	receive(t, a) // peer-joined о b

	sent := []domain.SignalMessage{
		{Type: domain.SignalOffer, Payload: "v=0 offer"},
		{Type: domain.SignalIceCandidate, Payload: `{"candidate":"0"}`},
		{Type: domain.SignalIceCandidate, Payload: `{"candidate":"1"}`},
		{Type: domain.SignalIceCandidate, Payload: `{"candidate":"2"}`},
	}
	for _, msg := range sent {
		if err := a.Send(msg); err != nil {
			t.Fatalf("send %s: %v", msg.Type, err)
		}
	}

	// B получает все в порядке отправки, с проставленным SenderID.
	for i, want := range sent {
		got := receive(t, b)
		if got.Type != want.Type || got.Payload != want.Payload {
			t.Fatalf("message %d = %+v, want %+v", i, got, want)
		}
		if got.SenderID != a.LocalID() {
			t.Errorf("message %d senderId = %q, want %q", i, got.SenderID, a.LocalID())
		}
	}

	// Собственные сообщения отправителю не возвращаются.
	select {
	case msg := <-a.Messages():
		t.Fatalf("sender received %+v back", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRoomsAreIsolated(t *testing.T) {
	wsURL := startRelay(t)
	ctx := context.Background()

	a, err := Join(ctx, Config{URL: wsURL, Room: "111111111"})
	if err != nil {
		t.Fatalf("join a: %v", err)
	}
	defer a.Close()

	b, err := Join(ctx, Config{URL: wsURL, Room: "222222222"})
	if err != nil {
		t.Fatalf("join b: %v", err)
	}
	defer b.Close()

	if err := a.Send(domain.SignalMessage{Type: domain.SignalOffer, Payload: "v=0"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case msg := <-b.Messages():
		t.Fatalf("message leaked across rooms: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

// fakeHostRepo - реестр хостов в памяти для тестов аутентификации.
type fakeHostRepo struct {
	mu    sync.Mutex
	hosts map[string]*repository.Host
}

func newFakeHostRepo() *fakeHostRepo {
	return &fakeHostRepo{hosts: make(map[string]*repository.Host)}
}

func (r *fakeHostRepo) Upsert(_ context.Context, host *repository.Host) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hosts[host.Identity] = host
	return nil
}

func (r *fakeHostRepo) GetByIdentity(_ context.Context, identity string) (*repository.Host, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	host, ok := r.hosts[identity]
	if !ok {
		return nil, repository.ErrHostNotFound
	}
	return host, nil
}

func TestJoinWithAccessPIN(t *testing.T) {
	cfg := &config.Config{Debug: true}
	cfg.Relay.JWTSecret = "test-secret"

	hostUsecase := usecase.NewHostUsecase([]byte(cfg.Relay.JWTSecret), newFakeHostRepo())
	hub := relay.NewHub(nil)

	e := server.New(cfg,
		handlers.NewHostHandler(hostUsecase),
		handlers.NewWebSocketHandler(cfg, hub),
	)
	srv := httptest.NewServer(e)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	authURL := srv.URL + "/api/auth"
	ctx := context.Background()

	if err := hostUsecase.RegisterHost(ctx, "123456789", "office", "4321"); err != nil {
		t.Fatalf("register host: %v", err)
	}

	// Без токена relay не пускает.
	if _, err := Join(ctx, Config{URL: wsURL, Room: "123456789"}); err == nil {
		t.Fatal("joined protected relay without token")
	}

	// С неверным PIN токен не выдается.
	if _, err := Join(ctx, Config{URL: wsURL, AuthURL: authURL, Room: "123456789", PIN: "0000"}); err == nil {
		t.Fatal("joined with wrong pin")
	}

	c, err := Join(ctx, Config{URL: wsURL, AuthURL: authURL, Room: "123456789", PIN: "4321"})
	if err != nil {
		t.Fatalf("join with pin: %v", err)
	}
	defer c.Close()

	if c.LocalID() == "" {
		t.Fatal("empty local id")
	}

	// Вторая сторона с тем же PIN попадает в ту же комнату.
	other, err := Join(ctx, Config{URL: wsURL, AuthURL: authURL, Room: "123456789", PIN: "4321"})
	if err != nil {
		t.Fatalf("second join: %v", err)
	}
	defer other.Close()

	if got := hub.RoomSize("123456789"); got != 2 {
		t.Fatalf("room size = %d, want 2", got)
	}
}
