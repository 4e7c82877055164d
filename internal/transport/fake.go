package transport

import (
	"context"
	"fmt"
	"sync"
)

// FakeEngine - пара соединенных в памяти engine'ов для тестов: без сети,
// без ICE, но с той же хореографией offer/answer/candidate и каналов.
// Кандидаты эмулируются фиксированным числом на каждое локальное
// описание; "connected" наступает, когда обе стороны применили
// локальное и удаленное описания.
type FakeEngine struct {
	name   string
	shared *fakeShared

	mu        sync.Mutex
	onICE     func(string)
	onState   func(State)
	onDC      func(DataChannel)
	onVideo   func(uint32, []byte)
	localSDP  string
	remoteSDP string
	channels  []*FakeDataChannel
	added     []string
	sentVideo int
	closed    bool

	// CandidateCount - сколько фиктивных кандидатов выдать после
	// каждого локального описания.
	CandidateCount int
}

type fakeShared struct {
	mu        sync.Mutex
	a, b      *FakeEngine
	connected bool
}

// NewFakePair создает два связанных engine'а.
func NewFakePair() (*FakeEngine, *FakeEngine) {
	shared := &fakeShared{}
	a := &FakeEngine{name: "a", shared: shared, CandidateCount: 3}
	b := &FakeEngine{name: "b", shared: shared, CandidateCount: 3}
	shared.a, shared.b = a, b
	return a, b
}

func (e *FakeEngine) peer() *FakeEngine {
	if e.shared.a == e {
		return e.shared.b
	}
	return e.shared.a
}

func (e *FakeEngine) CreateOffer(context.Context) (string, error) {
	return e.createLocal("offer")
}

func (e *FakeEngine) CreateAnswer(context.Context) (string, error) {
	e.mu.Lock()
	remote := e.remoteSDP
	e.mu.Unlock()
	if remote == "" {
		return "", fmt.Errorf("fake engine %s: answer without remote offer", e.name)
	}
	return e.createLocal("answer")
}

func (e *FakeEngine) createLocal(kind string) (string, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", fmt.Errorf("fake engine %s is closed", e.name)
	}
	sdp := fmt.Sprintf("v=0 fake-%s %s", kind, e.name)
	e.localSDP = sdp
	onICE := e.onICE
	count := e.CandidateCount
	e.mu.Unlock()

	if onICE != nil {
		for i := 0; i < count; i++ {
			onICE(fmt.Sprintf(`{"candidate":"candidate:fake %s %d"}`, e.name, i))
		}
	}

	e.maybeConnect()
	return sdp, nil
}

func (e *FakeEngine) SetRemoteDescription(kind, sdp string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("fake engine %s is closed", e.name)
	}
	if sdp == "" {
		e.mu.Unlock()
		return fmt.Errorf("fake engine %s: empty %s SDP", e.name, kind)
	}
	e.remoteSDP = sdp
	e.mu.Unlock()

	e.maybeConnect()
	return nil
}

// maybeConnect переводит обе стороны в connected, когда все четыре
// описания на месте, и открывает каналы данных.
func (e *FakeEngine) maybeConnect() {
	e.shared.mu.Lock()
	a, b := e.shared.a, e.shared.b
	if e.shared.connected || !a.hasBothDescriptions() || !b.hasBothDescriptions() {
		e.shared.mu.Unlock()
		return
	}
	e.shared.connected = true
	e.shared.mu.Unlock()

	for _, side := range []*FakeEngine{a, b} {
		side.mu.Lock()
		channels := append([]*FakeDataChannel(nil), side.channels...)
		side.mu.Unlock()

		for _, ch := range channels {
			ch.deliverToPeer(side.peer())
		}
	}

	for _, side := range []*FakeEngine{a, b} {
		side.mu.Lock()
		onState := side.onState
		side.mu.Unlock()
		if onState != nil {
			onState(StateConnected)
		}
	}
}

func (e *FakeEngine) hasBothDescriptions() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.localSDP != "" && e.remoteSDP != ""
}

func (e *FakeEngine) AddICECandidate(candidateJSON string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if candidateJSON == "" {
		return fmt.Errorf("empty candidate")
	}
	e.added = append(e.added, candidateJSON)
	return nil
}

// AddedCandidates возвращает применённых кандидатов.
func (e *FakeEngine) AddedCandidates() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.added...)
}

func (e *FakeEngine) OnICECandidate(fn func(string)) {
	e.mu.Lock()
	e.onICE = fn
	e.mu.Unlock()
}

func (e *FakeEngine) OnConnectionStateChange(fn func(State)) {
	e.mu.Lock()
	e.onState = fn
	e.mu.Unlock()
}

func (e *FakeEngine) CreateDataChannel(label string) (DataChannel, error) {
	ch := newFakeChannelPair(label)

	e.mu.Lock()
	e.channels = append(e.channels, ch)
	e.mu.Unlock()

	e.shared.mu.Lock()
	connected := e.shared.connected
	e.shared.mu.Unlock()

	if connected {
		ch.deliverToPeer(e.peer())
	}
	return ch, nil
}

func (e *FakeEngine) OnDataChannel(fn func(DataChannel)) {
	e.mu.Lock()
	e.onDC = fn
	e.mu.Unlock()
}

func (e *FakeEngine) SendVideo(_ uint32, payload []byte) error {
	e.shared.mu.Lock()
	connected := e.shared.connected
	e.shared.mu.Unlock()
	if !connected {
		return fmt.Errorf("fake engine %s: not connected", e.name)
	}

	e.mu.Lock()
	e.sentVideo++
	e.mu.Unlock()

	peer := e.peer()
	peer.mu.Lock()
	fn := peer.onVideo
	peer.mu.Unlock()
	if fn != nil {
		fn(0, payload)
	}
	return nil
}

// SentVideoFrames возвращает число отправленных кадров.
func (e *FakeEngine) SentVideoFrames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sentVideo
}

func (e *FakeEngine) OnVideoFrame(fn func(uint32, []byte)) {
	e.mu.Lock()
	e.onVideo = fn
	e.mu.Unlock()
}

func (e *FakeEngine) Close() error {
	e.mu.Lock()
	channels := append([]*FakeDataChannel(nil), e.channels...)
	e.closed = true
	e.mu.Unlock()

	for _, ch := range channels {
		ch.Close()
	}
	return nil
}

// FireStateChange дергает зарегистрированный callback состояния -
// тестам нужно моделировать обрыв соединения.
func (e *FakeEngine) FireStateChange(s State) {
	e.mu.Lock()
	fn := e.onState
	e.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// Closed сообщает, был ли engine закрыт.
func (e *FakeEngine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// FakeDataChannel - половина канала; Send доставляет байты
// обработчику второй половины синхронно и по порядку.
type FakeDataChannel struct {
	label string

	mu     sync.Mutex
	peer   *FakeDataChannel
	onOpen func()
	onMsg  func([]byte)
	open   bool
	closed bool
}

// NewFakeChannelPair возвращает уже открытую пару каналов - для тестов,
// которым не нужен весь engine.
func NewFakeChannelPair(label string) (*FakeDataChannel, *FakeDataChannel) {
	local := newFakeChannelPair(label)
	local.open = true
	local.peer.open = true
	return local, local.peer
}

func newFakeChannelPair(label string) *FakeDataChannel {
	local := &FakeDataChannel{label: label}
	remote := &FakeDataChannel{label: label}
	local.peer = remote
	remote.peer = local
	return local
}

// deliverToPeer отдает вторую половину канала engine'у напротив
// и открывает обе половины.
func (c *FakeDataChannel) deliverToPeer(peerEngine *FakeEngine) {
	peerEngine.mu.Lock()
	onDC := peerEngine.onDC
	peerEngine.mu.Unlock()

	if onDC != nil {
		onDC(c.peer)
	}

	for _, half := range []*FakeDataChannel{c, c.peer} {
		half.mu.Lock()
		half.open = true
		fn := half.onOpen
		half.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
}

func (c *FakeDataChannel) Label() string { return c.label }

func (c *FakeDataChannel) OnOpen(fn func()) {
	c.mu.Lock()
	wasOpen := c.open
	c.onOpen = fn
	c.mu.Unlock()
	if wasOpen && fn != nil {
		fn()
	}
}

func (c *FakeDataChannel) OnMessage(fn func([]byte)) {
	c.mu.Lock()
	c.onMsg = fn
	c.mu.Unlock()
}

func (c *FakeDataChannel) Send(data []byte) error {
	c.mu.Lock()
	if !c.open || c.closed {
		c.mu.Unlock()
		return fmt.Errorf("fake channel %q is not open", c.label)
	}
	peer := c.peer
	c.mu.Unlock()

	peer.mu.Lock()
	fn := peer.onMsg
	peer.mu.Unlock()
	if fn != nil {
		fn(append([]byte(nil), data...))
	}
	return nil
}

func (c *FakeDataChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.open = false
	c.mu.Unlock()
	return nil
}
