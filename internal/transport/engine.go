package transport

import "context"

// State - состояние peer-соединения transport engine.
type State string

const (
	StateNew          State = "new"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateFailed       State = "failed"
	StateClosed       State = "closed"
)

// Engine абстрагирует WebRTC-стек: ICE, DTLS, SRTP и RTP-фрейминг
// остаются за реализацией. Ядро сессии только гоняет через него
// offer/answer/candidate и байты.
type Engine interface {
	// CreateOffer создает локальное описание (offer) и возвращает SDP.
	CreateOffer(ctx context.Context) (string, error)

	// CreateAnswer создает локальное описание (answer) и возвращает SDP.
	// Вызывается после SetRemoteDescription с offer.
	CreateAnswer(ctx context.Context) (string, error)

	// SetRemoteDescription применяет удаленное описание.
	// kind - "offer" или "answer".
	SetRemoteDescription(kind, sdp string) error

	// AddICECandidate применяет ICE кандидата (JSON ICECandidateInit).
	AddICECandidate(candidateJSON string) error

	// OnICECandidate регистрирует callback локальных ICE кандидатов.
	OnICECandidate(fn func(candidateJSON string))

	// OnConnectionStateChange регистрирует callback смены состояния.
	OnConnectionStateChange(fn func(State))

	// CreateDataChannel создает упорядоченный надежный байтовый канал.
	CreateDataChannel(label string) (DataChannel, error)

	// OnDataChannel регистрирует callback входящих каналов.
	OnDataChannel(fn func(DataChannel))

	// SendVideo отправляет закодированный кадр с монотонной
	// миллисекундной меткой (uint32, с переполнением).
	SendVideo(timestampMs uint32, payload []byte) error

	// OnVideoFrame регистрирует callback входящих видеокадров.
	OnVideoFrame(fn func(timestampMs uint32, payload []byte))

	// Close закрывает соединение. Повторные вызовы безопасны.
	Close() error
}

// DataChannel - упорядоченный надежный байтовый поток поверх engine.
type DataChannel interface {
	Label() string
	OnOpen(fn func())
	OnMessage(fn func(data []byte))
	Send(data []byte) error
	Close() error
}
