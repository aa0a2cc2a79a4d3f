package controller

import (
	"context"

	"github.com/gorilla/websocket"

	"github.com/reelparty/server/pkg/wsrouter"
)

func (c *controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New(schemaVersion,
		c.requestIdWSMw(),
		c.loggerWSMw(),
	)

	// playback
	wsrouter.Handle(mux, "PLAY", c.handlePlay)
	wsrouter.Handle(mux, "PAUSE", c.handlePause)
	wsrouter.Handle(mux, "SEEK", c.handleSeek)
	wsrouter.Handle(mux, "RESYNC", c.handleResync)

	// chat
	wsrouter.Handle(mux, "CHAT", c.handleChat)

	// presence
	wsrouter.Handle(mux, "HEARTBEAT", c.handleHeartbeat)
	wsrouter.Handle(mux, "LEAVE", c.handleLeave)

	mux.UnknownHandler = func(ctx context.Context, conn *websocket.Conn, messageType string) {
		c.logger.DebugContext(ctx, "unsupported message type", "type", messageType)
		c.writeError(ctx, c.getParticipantIdFromCtx(ctx), errUnsupportedMessage)
	}
	mux.ErrorHandler = func(ctx context.Context, conn *websocket.Conn, err error) {
		c.writeError(ctx, c.getParticipantIdFromCtx(ctx), err)
	}

	return mux
}
