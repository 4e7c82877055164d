package appctx

import "context"

type ctxKey string

const roomIDKey ctxKey = "roomID"

// WithRoomID добавляет roomID в контекст.
func WithRoomID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, roomIDKey, id)
}

// RoomID извлекает roomID из контекста.
func RoomID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(roomIDKey).(string)
	return id, ok
}
