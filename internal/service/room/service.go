package room

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/reelparty/server/internal/repository/catalog"
	"github.com/reelparty/server/internal/repository/room"
	"github.com/reelparty/server/pkg/randstr"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room full")
	ErrNotAMember     = errors.New("not a member")
	ErrNotAuthorized  = errors.New("not authorized")
	ErrInvalidMessage = errors.New("invalid message")
	ErrInvalidMedia   = errors.New("invalid media")
	ErrRoomClosed     = errors.New("room closed")
)

type iRoomRepo interface {
	// room
	SetRoom(context.Context, *room.SetRoomParams) error
	GetRoom(context.Context, string) (room.Room, error)
	RoomExists(context.Context, string) (bool, error)
	UpdateRoomHostId(ctx context.Context, roomId, hostId string) error
	RemoveRoom(context.Context, string) error
	// participant
	SetParticipant(context.Context, *room.SetParticipantParams) error
	GetParticipant(context.Context, string) (room.Participant, error)
	GetParticipantIds(context.Context, string) ([]string, error)
	GetParticipantCount(context.Context, string) (int, error)
	RemoveParticipant(context.Context, *room.RemoveParticipantParams) error
	UpdateParticipantPresence(ctx context.Context, participantId, presence string) error
	UpdateParticipantHeartbeat(context.Context, *room.UpdateHeartbeatParams) error
	UpdateParticipantSyncReport(context.Context, *room.UpdateSyncReportParams) error
	// player
	SetPlayer(context.Context, *room.SetPlayerParams) error
	GetPlayer(context.Context, string) (room.Player, error)
	UpdatePlayerState(context.Context, *room.UpdatePlayerStateParams) (int64, error)
	// chat
	AddChatMessage(context.Context, *room.AddChatMessageParams) (room.ChatMessage, error)
	GetChatTail(ctx context.Context, roomId string, n int) ([]room.ChatMessage, error)
}

type iSenderRepo interface {
	Add(participantId string, conn *websocket.Conn) error
	Remove(participantId string) bool
	RemoveIfConn(participantId string, conn *websocket.Conn) bool
	Send(participantId string, critical bool, data []byte) error
}

type iCatalog interface {
	Resolve(ctx context.Context, mediaRef string) (catalog.Media, error)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type Config struct {
	MembersLimit      int
	ChatHistoryLimit  int
	ChatMessageMaxLen int
	HeartbeatInterval time.Duration
	ReconnectGrace    time.Duration
	RoomIdleTimeout   time.Duration
	// DriftThreshold is in media seconds.
	DriftThreshold float64
}

// roomIdLength of 22 base62 characters carries ~131 bits of randomness,
// enough for the id to double as an unguessable invite code.
const roomIdLength = 22

type service struct {
	roomRepo   iRoomRepo
	senderRepo iSenderRepo
	catalog    iCatalog
	generator  iGenerator
	clock      clockwork.Clock
	logger     *slog.Logger
	cfg        Config
	sessions   *sessions
}

func NewService(roomRepo iRoomRepo, senderRepo iSenderRepo, mediaCatalog iCatalog, clock clockwork.Clock, logger *slog.Logger, cfg *Config) *service {
	s := service{
		roomRepo:   roomRepo,
		senderRepo: senderRepo,
		catalog:    mediaCatalog,
		clock:      clock,
		logger:     logger,
		cfg:        *cfg,
		sessions:   newSessions(),
	}

	letterBytes := []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
	s.generator = randstr.New(letterBytes)

	return &s
}

// Close stops every room runner. Room state in the repository is left as is.
func (s *service) Close() {
	s.sessions.closeAll()
}
