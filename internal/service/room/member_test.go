package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reelparty/server/internal/repository/room"
)

func presenceOf(t *testing.T, svc *service, roomId, participantId string) string {
	t.Helper()
	snap, err := svc.GetRoomSnapshot(context.Background(), roomId)
	require.NoError(t, err)
	for _, p := range snap.Participants {
		if p.Id == participantId {
			return p.Presence
		}
	}
	return ""
}

func hostOf(t *testing.T, svc *service, roomId string) string {
	t.Helper()
	snap, err := svc.GetRoomSnapshot(context.Background(), roomId)
	require.NoError(t, err)
	for _, p := range snap.Participants {
		if p.IsHost {
			return p.Id
		}
	}
	return ""
}

func TestService_PresenceLifecycle(t *testing.T) {
	t.Run("silent participant degrades to reconnecting then departs", func(t *testing.T) {
		svc, sender, clock := newTestService(t, nil)
		ctx := context.Background()
		roomId := createTestRoom(t, svc)
		host := joinTestRoom(t, svc, roomId, "alice")
		silent := joinTestRoom(t, svc, roomId, "bob")

		// the host heartbeats on schedule; bob goes quiet
		for i := 0; i < 4; i++ {
			clock.Advance(5 * time.Second)
			require.NoError(t, svc.Heartbeat(ctx, &HeartbeatParams{RoomId: roomId, SenderId: host}))
		}

		require.Eventually(t, func() bool {
			return presenceOf(t, svc, roomId, silent) == room.PresenceReconnecting
		}, 2*time.Second, 10*time.Millisecond)
		// degradation is recoverable, nobody is told about it
		require.Zero(t, sender.countOfType(host, EventParticipantLeft))

		for i := 0; i < 10; i++ {
			clock.Advance(5 * time.Second)
			require.NoError(t, svc.Heartbeat(ctx, &HeartbeatParams{RoomId: roomId, SenderId: host}))
		}

		require.Eventually(t, func() bool {
			return sender.countOfType(host, EventParticipantLeft) == 1
		}, 2*time.Second, 10*time.Millisecond)

		snap, err := svc.GetRoomSnapshot(ctx, roomId)
		require.NoError(t, err)
		require.Len(t, snap.Participants, 1)
		require.Equal(t, host, snap.Participants[0].Id)
	})

	t.Run("heartbeat restores a reconnecting participant in place", func(t *testing.T) {
		svc, sender, clock := newTestService(t, nil)
		ctx := context.Background()
		roomId := createTestRoom(t, svc)
		host := joinTestRoom(t, svc, roomId, "alice")
		flaky := joinTestRoom(t, svc, roomId, "bob")

		for i := 0; i < 4; i++ {
			clock.Advance(5 * time.Second)
			require.NoError(t, svc.Heartbeat(ctx, &HeartbeatParams{RoomId: roomId, SenderId: host}))
		}
		require.Eventually(t, func() bool {
			return presenceOf(t, svc, roomId, flaky) == room.PresenceReconnecting
		}, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, svc.Heartbeat(ctx, &HeartbeatParams{RoomId: roomId, SenderId: flaky}))

		require.Equal(t, room.PresenceOnline, presenceOf(t, svc, roomId, flaky))
		// restored in place, no fresh snapshot and no departure announcement
		require.Equal(t, 1, sender.countOfType(flaky, EventSnapshot))
		require.Zero(t, sender.countOfType(host, EventParticipantLeft))
	})

	t.Run("host timeout reassigns to the earliest online participant", func(t *testing.T) {
		svc, sender, clock := newTestService(t, nil)
		ctx := context.Background()
		roomId := createTestRoom(t, svc)
		host := joinTestRoom(t, svc, roomId, "alice")
		second := joinTestRoom(t, svc, roomId, "bob")
		third := joinTestRoom(t, svc, roomId, "carol")

		// the host vanishes; the others keep heartbeating
		for i := 0; i < 14; i++ {
			clock.Advance(5 * time.Second)
			require.NoError(t, svc.Heartbeat(ctx, &HeartbeatParams{RoomId: roomId, SenderId: second}))
			require.NoError(t, svc.Heartbeat(ctx, &HeartbeatParams{RoomId: roomId, SenderId: third}))
		}

		require.Eventually(t, func() bool {
			return sender.countOfType(second, EventParticipantLeft) == 1
		}, 2*time.Second, 10*time.Millisecond)

		require.Equal(t, second, hostOf(t, svc, roomId))
		require.NotEqual(t, host, hostOf(t, svc, roomId))

		// the promoted host can drive playback
		require.NoError(t, svc.Play(ctx, &PlaybackCommandParams{RoomId: roomId, SenderId: second}))
	})
}

func TestService_DisconnectAndReattach(t *testing.T) {
	t.Run("disconnect marks reconnecting without announcement", func(t *testing.T) {
		svc, sender, _ := newTestService(t, nil)
		ctx := context.Background()
		roomId := createTestRoom(t, svc)
		host := joinTestRoom(t, svc, roomId, "alice")
		member := joinTestRoom(t, svc, roomId, "bob")

		require.NoError(t, svc.DisconnectParticipant(ctx, roomId, member, nil))

		require.Equal(t, room.PresenceReconnecting, presenceOf(t, svc, roomId, member))
		require.Zero(t, sender.countOfType(host, EventParticipantLeft))
	})

	t.Run("reattach restores membership and sends a playback catch-up", func(t *testing.T) {
		svc, sender, _ := newTestService(t, nil)
		ctx := context.Background()
		roomId := createTestRoom(t, svc)
		host := joinTestRoom(t, svc, roomId, "alice")
		member := joinTestRoom(t, svc, roomId, "bob")

		require.NoError(t, svc.Play(ctx, &PlaybackCommandParams{RoomId: roomId, SenderId: host}))
		require.NoError(t, svc.DisconnectParticipant(ctx, roomId, member, nil))

		require.NoError(t, svc.ReattachParticipant(ctx, &ReattachParams{RoomId: roomId, ParticipantId: member}))

		require.Equal(t, room.PresenceOnline, presenceOf(t, svc, roomId, member))
		ev := sender.lastOfType(t, member, EventResync)
		payload := decodePayload[playerPayload](t, ev)
		require.Equal(t, int64(1), payload.Player.Version)
		// no second full snapshot on reattach
		require.Equal(t, 1, sender.countOfType(member, EventSnapshot))
	})

	t.Run("reattach of a departed participant is rejected", func(t *testing.T) {
		svc, _, _ := newTestService(t, nil)
		ctx := context.Background()
		roomId := createTestRoom(t, svc)
		joinTestRoom(t, svc, roomId, "alice")
		member := joinTestRoom(t, svc, roomId, "bob")

		require.NoError(t, svc.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, ParticipantId: member}))

		err := svc.ReattachParticipant(ctx, &ReattachParams{RoomId: roomId, ParticipantId: member})
		require.ErrorIs(t, err, ErrNotAMember)
	})
}
