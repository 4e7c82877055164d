package constant

// Ключи атрибутов slog, чтобы не плодить строковые литералы.
const (
	Error     = "error"
	RoomID    = "room_id"
	SenderID  = "sender_id"
	SessionID = "session_id"
	Screen    = "screen"
	State     = "state"
)
