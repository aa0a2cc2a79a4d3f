package controller

import (
	"context"
	"encoding/json"
	"errors"

	roomservice "github.com/reelparty/server/internal/service/room"
)

const schemaVersion = 1

// Output is the wire envelope for server-originated messages written
// outside the room service's fan-out path.
type Output struct {
	V       int    `json:"v"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

var errUnsupportedMessage = errors.New("unsupported message type")

const (
	errKindRoomNotFound       = "ROOM_NOT_FOUND"
	errKindRoomFull           = "ROOM_FULL"
	errKindNotAMember         = "NOT_A_MEMBER"
	errKindNotAuthorized      = "NOT_AUTHORIZED"
	errKindInvalidMessage     = "INVALID_MESSAGE"
	errKindInvalidMedia       = "INVALID_MEDIA"
	errKindRoomClosed         = "ROOM_CLOSED"
	errKindUnsupportedMessage = "UNSUPPORTED_MESSAGE"
	errKindInternal           = "INTERNAL"
)

func errorKind(err error) string {
	var jsonSyntaxError *json.SyntaxError
	var jsonTypeError *json.UnmarshalTypeError

	switch {
	case errors.Is(err, roomservice.ErrRoomNotFound):
		return errKindRoomNotFound
	case errors.Is(err, roomservice.ErrRoomFull):
		return errKindRoomFull
	case errors.Is(err, roomservice.ErrNotAMember):
		return errKindNotAMember
	case errors.Is(err, roomservice.ErrNotAuthorized):
		return errKindNotAuthorized
	case errors.Is(err, roomservice.ErrInvalidMessage):
		return errKindInvalidMessage
	case errors.Is(err, roomservice.ErrInvalidMedia):
		return errKindInvalidMedia
	case errors.Is(err, roomservice.ErrRoomClosed):
		return errKindRoomClosed
	case errors.Is(err, errUnsupportedMessage):
		return errKindUnsupportedMessage
	case errors.As(err, &jsonSyntaxError), errors.As(err, &jsonTypeError):
		return errKindInvalidMessage
	default:
		return errKindInternal
	}
}

func errorOutput(err error) Output {
	kind := errorKind(err)
	detail := err.Error()
	if kind == errKindInternal {
		detail = "internal error"
	}
	return Output{
		V:    schemaVersion,
		Type: "ERROR",
		Payload: map[string]any{
			"kind":   kind,
			"detail": detail,
		},
	}
}

// writeError reports a command failure to the originating participant only.
// The faulting message never mutates room state, so nobody else hears of it.
func (c *controller) writeError(ctx context.Context, participantId string, err error) {
	out := errorOutput(err)
	data, merr := json.Marshal(out)
	if merr != nil {
		c.logger.ErrorContext(ctx, "failed to marshal error output", "error", merr)
		return
	}
	if serr := c.sender.Send(participantId, true, data); serr != nil {
		c.logger.DebugContext(ctx, "failed to send error output", "participant_id", participantId, "error", serr)
	}
}
