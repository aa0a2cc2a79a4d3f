package room

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type chatPayload struct {
	Message ChatMessage `json:"message"`
}

func TestService_PostChat(t *testing.T) {
	t.Run("messages fan out to everyone in send order", func(t *testing.T) {
		svc, sender, _ := newTestService(t, nil)
		ctx := context.Background()
		roomId := createTestRoom(t, svc)
		host := joinTestRoom(t, svc, roomId, "alice")
		member := joinTestRoom(t, svc, roomId, "bob")

		require.NoError(t, svc.PostChat(ctx, &PostChatParams{RoomId: roomId, SenderId: host, Text: "hi"}))
		require.NoError(t, svc.PostChat(ctx, &PostChatParams{RoomId: roomId, SenderId: member, Text: "hello"}))

		for _, id := range []string{host, member} {
			events := sender.eventsOfType(id, EventChatMessage)
			require.Len(t, events, 2)
			for i, ev := range events {
				require.False(t, ev.critical)
				msg := decodePayload[chatPayload](t, ev).Message
				require.Equal(t, int64(i+1), msg.Seq)
			}
			require.Equal(t, "hi", decodePayload[chatPayload](t, events[0]).Message.Text)
			require.Equal(t, "alice", decodePayload[chatPayload](t, events[0]).Message.AuthorName)
		}
	})

	t.Run("messages are stamped with the derived media position", func(t *testing.T) {
		svc, sender, clock := newTestService(t, nil)
		ctx := context.Background()
		roomId := createTestRoom(t, svc)
		host := joinTestRoom(t, svc, roomId, "alice")

		require.NoError(t, svc.Play(ctx, &PlaybackCommandParams{RoomId: roomId, SenderId: host}))
		clock.Advance(7 * time.Second)

		require.NoError(t, svc.PostChat(ctx, &PostChatParams{RoomId: roomId, SenderId: host, Text: "nice shot"}))

		msg := decodePayload[chatPayload](t, sender.lastOfType(t, host, EventChatMessage)).Message
		require.InDelta(t, 7.0, msg.Timestamp, 1e-9)
	})

	t.Run("history keeps only the newest messages", func(t *testing.T) {
		svc, _, _ := newTestService(t, func(cfg *Config) { cfg.ChatHistoryLimit = 3 })
		ctx := context.Background()
		roomId := createTestRoom(t, svc)
		host := joinTestRoom(t, svc, roomId, "alice")

		for i := 1; i <= 5; i++ {
			require.NoError(t, svc.PostChat(ctx, &PostChatParams{RoomId: roomId, SenderId: host, Text: fmt.Sprintf("msg %d", i)}))
		}

		snap, err := svc.GetRoomSnapshot(ctx, roomId)
		require.NoError(t, err)
		require.Len(t, snap.Messages, 3)
		// eviction never reuses sequence numbers
		require.Equal(t, int64(3), snap.Messages[0].Seq)
		require.Equal(t, int64(5), snap.Messages[2].Seq)
	})

	t.Run("invalid messages are rejected without fan-out", func(t *testing.T) {
		svc, sender, _ := newTestService(t, nil)
		ctx := context.Background()
		roomId := createTestRoom(t, svc)
		host := joinTestRoom(t, svc, roomId, "alice")

		for _, text := range []string{"", "   ", strings.Repeat("x", 21)} {
			err := svc.PostChat(ctx, &PostChatParams{RoomId: roomId, SenderId: host, Text: text})
			require.ErrorIs(t, err, ErrInvalidMessage)
		}
		require.Zero(t, sender.countOfType(host, EventChatMessage))

		// surrounding whitespace is trimmed, length counts runes not bytes
		require.NoError(t, svc.PostChat(ctx, &PostChatParams{RoomId: roomId, SenderId: host, Text: "  héllo wörld ünïcö  "}))
		msg := decodePayload[chatPayload](t, sender.lastOfType(t, host, EventChatMessage)).Message
		require.Equal(t, "héllo wörld ünïcö", msg.Text)
	})

	t.Run("non-members cannot post", func(t *testing.T) {
		svc, _, _ := newTestService(t, nil)
		roomId := createTestRoom(t, svc)
		joinTestRoom(t, svc, roomId, "alice")

		err := svc.PostChat(context.Background(), &PostChatParams{RoomId: roomId, SenderId: "stranger", Text: "hi"})
		require.ErrorIs(t, err, ErrNotAMember)
	})
}
