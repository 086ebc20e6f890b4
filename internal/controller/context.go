package controller

import "context"

type contextKey int

const (
	roomIdCtxKey contextKey = iota
	senderIdCtxKey
)

func (c controller) getRoomIdFromCtx(ctx context.Context) string {
	roomId, ok := ctx.Value(roomIdCtxKey).(string)
	if !ok {
		return ""
	}

	return roomId
}

func (c controller) getSenderIdFromCtx(ctx context.Context) string {
	senderId, ok := ctx.Value(senderIdCtxKey).(string)
	if !ok {
		return ""
	}

	return senderId
}
