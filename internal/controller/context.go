package controller

import "context"

type ctxKey int

const (
	roomIdKey ctxKey = iota
	participantIdKey
)

func (c *controller) getRoomIdFromCtx(ctx context.Context) string {
	roomId, _ := ctx.Value(roomIdKey).(string)
	return roomId
}

func (c *controller) getParticipantIdFromCtx(ctx context.Context) string {
	participantId, _ := ctx.Value(participantIdKey).(string)
	return participantId
}
