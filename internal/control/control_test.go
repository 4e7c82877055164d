package control

import (
	"fmt"
	"sync"
	"testing"

	"github.com/avolkov/farview/internal/capture"
	"github.com/avolkov/farview/internal/domain"
	"github.com/avolkov/farview/internal/pipeline"
	"github.com/avolkov/farview/internal/transport"
)

type recordingInjector struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingInjector) record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recordingInjector) MoveCursor(x, y int) error {
	r.record("move %d %d", x, y)
	return nil
}

func (r *recordingInjector) MouseButton(button string, down bool) error {
	r.record("button %s %v", button, down)
	return nil
}

func (r *recordingInjector) Wheel(delta int) error {
	r.record("wheel %d", delta)
	return nil
}

func (r *recordingInjector) Key(code uint8, down bool) error {
	r.record("key %#x %v", code, down)
	return nil
}

func (r *recordingInjector) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type testRig struct {
	src    *capture.Fake
	pipe   *pipeline.Pipeline
	inj    *recordingInjector
	host   *Host
	client *Client

	mu          sync.Mutex
	screenCalls int
}

// newRig собирает обе стороны канала. Fake-канал доставляет байты
// синхронно, поэтому тестам не нужны ожидания.
func newRig() *testRig {
	rig := &testRig{
		src: capture.NewFake(
			domain.ScreenDescriptor{Index: 0, Width: 192, Height: 108, Label: "Display 1"},
			domain.ScreenDescriptor{Index: 1, Width: 48, Height: 48, Label: "Display 2"},
		),
		inj: &recordingInjector{},
	}
	rig.pipe = pipeline.New(pipeline.Config{Source: rig.src, Encoder: nil, Send: nil})
	rig.host = NewHost(rig.src, rig.pipe, rig.inj, nil)
	rig.client = NewClient(nil, func([]domain.ScreenDescriptor) {
		rig.mu.Lock()
		rig.screenCalls++
		rig.mu.Unlock()
	})
	return rig
}

func (r *testRig) ScreenCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.screenCalls
}

func TestScreensHandshakeReplacesWholesale(t *testing.T) {
	rig := newRig()
	hostCh, clientCh := transport.NewFakeChannelPair("control")

	rig.host.Bind(hostCh)
	rig.client.Bind(clientCh) // на открытие уходит get_screens

	screens := rig.client.Screens()
	if len(screens) != 2 {
		t.Fatalf("got %d screens, want 2", len(screens))
	}
	if screens[1].Label != "Display 2" {
		t.Errorf("screens[1].Label = %q", screens[1].Label)
	}

	// Монитор отключили: повторный запрос заменяет список целиком.
	rig.src.SetScreens(domain.ScreenDescriptor{Index: 0, Width: 192, Height: 108, Label: "Display 1"})
	if err := rig.client.RequestScreens(); err != nil {
		t.Fatalf("request screens: %v", err)
	}

	screens = rig.client.Screens()
	if len(screens) != 1 {
		t.Fatalf("after shrink got %d screens, want 1", len(screens))
	}
	if rig.ScreenCalls() != 2 {
		t.Errorf("onScreens called %d times, want 2", rig.ScreenCalls())
	}
}

func TestHostSendsScreenInfoProactively(t *testing.T) {
	rig := newRig()
	hostCh, clientCh := transport.NewFakeChannelPair("control")

	// Клиент привязался первым: его get_screens ушел в пустоту.
	rig.client.Bind(clientCh)
	rig.host.Bind(hostCh)

	// Хост на открытие сам прислал список, без запроса.
	if got := len(rig.client.Screens()); got != 2 {
		t.Fatalf("got %d screens, want 2 without asking", got)
	}
}

func TestSwitchScreenGoesThroughPipeline(t *testing.T) {
	rig := newRig()
	hostCh, clientCh := transport.NewFakeChannelPair("control")
	rig.host.Bind(hostCh)
	rig.client.Bind(clientCh)

	calls := rig.ScreenCalls()

	if err := rig.client.SwitchScreen(1); err != nil {
		t.Fatalf("switch screen: %v", err)
	}

	if got := rig.pipe.ActiveScreen(); got != 1 {
		t.Fatalf("pipeline active screen = %d, want 1", got)
	}
	// Подтверждений и повторной рассылки списка нет.
	if rig.ScreenCalls() != calls {
		t.Error("unexpected screen_info after switch_screen")
	}
}

func TestMouseMoveDenormalizedAgainstActiveScreen(t *testing.T) {
	rig := newRig()
	hostCh, clientCh := transport.NewFakeChannelPair("control")
	rig.host.Bind(hostCh)
	rig.client.Bind(clientCh)

	// Экран 0: 192x108, указатель в центре поверхности 100x100.
	if err := rig.client.SendMouseMove(50, 50, 100, 100); err != nil {
		t.Fatalf("send mouse move: %v", err)
	}

	events := rig.inj.Events()
	if len(events) != 1 || events[0] != "move 96 54" {
		t.Fatalf("events = %v, want [move 96 54]", events)
	}

	// После переключения денормализация идет по границам экрана 1.
	if err := rig.client.SwitchScreen(1); err != nil {
		t.Fatalf("switch screen: %v", err)
	}
	if err := rig.client.SendMouseMove(50, 50, 100, 100); err != nil {
		t.Fatalf("send mouse move: %v", err)
	}

	events = rig.inj.Events()
	if events[len(events)-1] != "move 24 24" {
		t.Fatalf("last event = %q, want move 24 24", events[len(events)-1])
	}
}

func TestMouseButtonsAndWheel(t *testing.T) {
	rig := newRig()
	hostCh, clientCh := transport.NewFakeChannelPair("control")
	rig.host.Bind(hostCh)
	rig.client.Bind(clientCh)

	inputs := []domain.InputEvent{
		{EventType: domain.EventMouseDown, Button: "left"},
		{EventType: domain.EventMouseUp, Button: "left"},
		{EventType: domain.EventMouseWheel, Delta: 120},
	}
	for _, ev := range inputs {
		if err := rig.client.SendInput(ev); err != nil {
			t.Fatalf("send input %+v: %v", ev, err)
		}
	}

	want := []string{"button left true", "button left false", "wheel 120"}
	events := rig.inj.Events()
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestKeyEventsUseVirtualKeyMap(t *testing.T) {
	rig := newRig()
	hostCh, clientCh := transport.NewFakeChannelPair("control")
	rig.host.Bind(hostCh)
	rig.client.Bind(clientCh)

	if err := rig.client.SendInput(domain.InputEvent{EventType: domain.EventKeyDown, Key: "KeyA"}); err != nil {
		t.Fatalf("send keydown: %v", err)
	}
	if err := rig.client.SendInput(domain.InputEvent{EventType: domain.EventKeyUp, Key: "KeyA"}); err != nil {
		t.Fatalf("send keyup: %v", err)
	}
	// Неизвестное имя клавиши дропается молча.
	if err := rig.client.SendInput(domain.InputEvent{EventType: domain.EventKeyDown, Key: "F13"}); err != nil {
		t.Fatalf("send unknown key: %v", err)
	}

	want := []string{"key 0x41 true", "key 0x41 false"}
	events := rig.inj.Events()
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestMalformedMessageKeepsChannelAlive(t *testing.T) {
	rig := newRig()
	hostCh, clientCh := transport.NewFakeChannelPair("control")
	rig.host.Bind(hostCh)
	rig.client.Bind(clientCh)

	if err := clientCh.Send([]byte("{not json")); err != nil {
		t.Fatalf("send garbage: %v", err)
	}
	if err := clientCh.Send([]byte(`{"type":"system:reboot"}`)); err != nil {
		t.Fatalf("send unknown type: %v", err)
	}

	// Канал продолжает работать.
	if err := rig.client.SendInput(domain.InputEvent{EventType: domain.EventMouseDown, Button: "right"}); err != nil {
		t.Fatalf("send input after garbage: %v", err)
	}
	events := rig.inj.Events()
	if len(events) != 1 || events[0] != "button right true" {
		t.Fatalf("events = %v, want [button right true]", events)
	}
}

func TestSendWithoutChannelFails(t *testing.T) {
	client := NewClient(nil, nil)
	if err := client.SendInput(domain.InputEvent{EventType: domain.EventMouseDown, Button: "left"}); err == nil {
		t.Fatal("expected error when channel is not bound")
	}
}
