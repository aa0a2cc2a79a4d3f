package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	roomservice "github.com/reelparty/server/internal/service/room"
	"github.com/reelparty/server/pkg/ctxlogger"
	"github.com/reelparty/server/pkg/rest"
)

type createRoomRequest struct {
	MediaRef string `json:"media_ref" validate:"required,max=128"`
}

func (c *controller) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	resp, err := c.roomService.CreateRoom(r.Context(), &roomservice.CreateRoomParams{
		MediaRef: req.MediaRef,
	})
	if err != nil {
		if errors.Is(err, roomservice.ErrInvalidMedia) {
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "media not found"})
			return
		}
		c.logger.ErrorContext(r.Context(), "failed to create room", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": map[string]any{
		"room_id": resp.RoomId,
		"media":   resp.Media,
	}})
}

type joinRoomQuery struct {
	Username string `json:"username" validate:"required,max=32"`
	Color    string `json:"color" validate:"required,min=3,max=16"`
}

// joinRoom upgrades to a websocket and either admits a new participant or,
// when the participant_id query param carries an existing membership,
// reattaches a reconnecting one.
func (c *controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")
	participantId := r.URL.Query().Get("participant_id")

	q := joinRoomQuery{
		Username: r.URL.Query().Get("username"),
		Color:    r.URL.Query().Get("color"),
	}
	if participantId == "" {
		if validationErrors, ok := c.validate.Validate(q); !ok {
			rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
			return
		}
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.DebugContext(r.Context(), "failed to upgrade connection", "error", err)
		return
	}

	if participantId == "" {
		resp, err := c.roomService.JoinRoom(r.Context(), &roomservice.JoinRoomParams{
			RoomId:   roomId,
			Username: q.Username,
			Color:    q.Color,
			Conn:     conn,
		})
		if err == nil {
			participantId = resp.ParticipantId
		} else {
			// the connection was never handed to the sender repository, so
			// the error goes straight to the socket
			if werr := conn.WriteJSON(errorOutput(err)); werr != nil {
				c.logger.DebugContext(r.Context(), "failed to write join error", "error", werr)
			}
			conn.Close()
			return
		}
	} else {
		if err := c.roomService.ReattachParticipant(r.Context(), &roomservice.ReattachParams{
			RoomId:        roomId,
			ParticipantId: participantId,
			Conn:          conn,
		}); err != nil {
			if werr := conn.WriteJSON(errorOutput(err)); werr != nil {
				c.logger.DebugContext(r.Context(), "failed to write reattach error", "error", werr)
			}
			conn.Close()
			return
		}
	}

	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("room_id", roomId))
	ctx = ctxlogger.AppendCtx(ctx, slog.String("participant_id", participantId))
	ctx = context.WithValue(ctx, roomIdKey, roomId)
	ctx = context.WithValue(ctx, participantIdKey, participantId)

	// the request context dies with this handler, but disconnect bookkeeping
	// must still run
	defer func() {
		dctx := context.WithoutCancel(ctx)
		if err := c.roomService.DisconnectParticipant(dctx, roomId, participantId, conn); err != nil {
			c.logger.DebugContext(dctx, "failed to handle disconnect", "error", err)
		}
	}()

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.DebugContext(ctx, "connection closed", "error", err)
	}
}

func (c *controller) healthz(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"status": "ok"})
}
