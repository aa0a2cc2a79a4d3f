package room

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/reelparty/server/internal/repository/room"
)

type PostChatParams struct {
	RoomId   string
	SenderId string
	Text     string
}

// PostChat appends a message to the room's chat. The message is stamped
// with the media position at send time so late joiners can place it on the
// playback timeline.
func (s *service) PostChat(ctx context.Context, params *PostChatParams) error {
	return s.dispatch(ctx, params.RoomId, func(ctx context.Context) error {
		rm, p, err := s.requireMember(ctx, params.RoomId, params.SenderId)
		if err != nil {
			return err
		}

		text := strings.TrimSpace(params.Text)
		if text == "" || utf8.RuneCountInString(text) > s.cfg.ChatMessageMaxLen {
			return ErrInvalidMessage
		}

		player, err := s.roomRepo.GetPlayer(ctx, params.RoomId)
		if err != nil {
			return fmt.Errorf("failed to get player: %w", err)
		}

		msg, err := s.roomRepo.AddChatMessage(ctx, &room.AddChatMessageParams{
			RoomId:       params.RoomId,
			AuthorId:     params.SenderId,
			AuthorName:   p.Username,
			AuthorColor:  p.Color,
			Text:         text,
			Timestamp:    derivePosition(player, s.nowMs(), rm.MediaDuration),
			HistoryLimit: s.cfg.ChatHistoryLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to add chat message: %w", err)
		}

		participants, err := s.getParticipants(ctx, params.RoomId, rm.HostId)
		if err != nil {
			return err
		}
		s.sendChatMessage(ctx, participants, ChatMessage(msg))
		return nil
	})
}
