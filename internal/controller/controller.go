package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	roomservice "github.com/reelparty/server/internal/service/room"
	"github.com/reelparty/server/pkg/validator"
	"github.com/reelparty/server/pkg/wsrouter"
)

type iRoomService interface {
	CreateRoom(context.Context, *roomservice.CreateRoomParams) (roomservice.CreateRoomResponse, error)
	JoinRoom(context.Context, *roomservice.JoinRoomParams) (roomservice.JoinRoomResponse, error)
	ReattachParticipant(context.Context, *roomservice.ReattachParams) error
	LeaveRoom(context.Context, *roomservice.LeaveRoomParams) error
	DisconnectParticipant(ctx context.Context, roomId, participantId string, conn *websocket.Conn) error
	Play(context.Context, *roomservice.PlaybackCommandParams) error
	Pause(context.Context, *roomservice.PlaybackCommandParams) error
	Seek(context.Context, *roomservice.PlaybackCommandParams) error
	RequestResync(context.Context, *roomservice.ResyncRequestParams) error
	PostChat(context.Context, *roomservice.PostChatParams) error
	Heartbeat(context.Context, *roomservice.HeartbeatParams) error
}

type iSender interface {
	Send(participantId string, critical bool, data []byte) error
}

type controller struct {
	roomService iRoomService
	sender      iSender
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	wsmux       *wsrouter.WSRouter
	logger      *slog.Logger
}

func NewController(roomService iRoomService, sender iSender, logger *slog.Logger) *controller {
	c := controller{
		roomService: roomService,
		sender:      sender,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate: validator.NewValidator(),
		logger:   logger,
	}
	c.wsmux = c.getWSRouter()

	return &c
}
