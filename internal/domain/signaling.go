package domain

// Типы сигнальных сообщений, которые проходят через relay.
const (
	SignalOffer        = "offer"
	SignalAnswer       = "answer"
	SignalIceCandidate = "ice-candidate"

	// Служебные кадры самого relay.
	SignalJoin       = "join"
	SignalWelcome    = "welcome"
	SignalPeerJoined = "peer-joined"
)

// SignalMessage - конверт для обмена SDP и ICE кандидатами через relay.
//
// SenderID проставляется отправителем его собственным connection id,
// чтобы получатель мог отбросить собственное эхо: relay рассылает
// сообщения по всей комнате и может вернуть сообщение отправителю.
type SignalMessage struct {
	Type     string `json:"type"`
	Payload  string `json:"payload,omitempty"`
	SenderID string `json:"senderId,omitempty"`
}

// IsEcho сообщает, является ли сообщение собственным эхом для localID.
func (m SignalMessage) IsEcho(localID string) bool {
	return localID != "" && m.SenderID == localID
}
