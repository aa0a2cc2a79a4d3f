package controller

import (
	"context"

	"github.com/gorilla/websocket"

	roomservice "github.com/reelparty/server/internal/service/room"
)

type EmptyInput struct{}

type SeekInput struct {
	Position float64 `json:"position"`
}

type ChatInput struct {
	Text string `json:"text"`
}

type HeartbeatInput struct {
	ReportedPosition float64 `json:"reported_position"`
	ClockOffsetMs    int64   `json:"clock_offset_ms"`
}

func (c *controller) handlePlay(ctx context.Context, conn *websocket.Conn, _ EmptyInput) error {
	return c.roomService.Play(ctx, &roomservice.PlaybackCommandParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getParticipantIdFromCtx(ctx),
	})
}

func (c *controller) handlePause(ctx context.Context, conn *websocket.Conn, _ EmptyInput) error {
	return c.roomService.Pause(ctx, &roomservice.PlaybackCommandParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getParticipantIdFromCtx(ctx),
	})
}

func (c *controller) handleSeek(ctx context.Context, conn *websocket.Conn, input SeekInput) error {
	return c.roomService.Seek(ctx, &roomservice.PlaybackCommandParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getParticipantIdFromCtx(ctx),
		Position: input.Position,
	})
}

func (c *controller) handleResync(ctx context.Context, conn *websocket.Conn, _ EmptyInput) error {
	return c.roomService.RequestResync(ctx, &roomservice.ResyncRequestParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getParticipantIdFromCtx(ctx),
	})
}

func (c *controller) handleChat(ctx context.Context, conn *websocket.Conn, input ChatInput) error {
	return c.roomService.PostChat(ctx, &roomservice.PostChatParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getParticipantIdFromCtx(ctx),
		Text:     input.Text,
	})
}

func (c *controller) handleHeartbeat(ctx context.Context, conn *websocket.Conn, input HeartbeatInput) error {
	return c.roomService.Heartbeat(ctx, &roomservice.HeartbeatParams{
		RoomId:           c.getRoomIdFromCtx(ctx),
		SenderId:         c.getParticipantIdFromCtx(ctx),
		ReportedPosition: input.ReportedPosition,
		ClockOffsetMs:    input.ClockOffsetMs,
	})
}

// handleLeave removes the participant from the room. LeaveRoom drops the
// registered connection, which closes the socket and ends the read loop.
func (c *controller) handleLeave(ctx context.Context, conn *websocket.Conn, _ EmptyInput) error {
	return c.roomService.LeaveRoom(ctx, &roomservice.LeaveRoomParams{
		RoomId:        c.getRoomIdFromCtx(ctx),
		ParticipantId: c.getParticipantIdFromCtx(ctx),
	})
}
