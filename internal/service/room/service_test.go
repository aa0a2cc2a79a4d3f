package room

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/reelparty/server/internal/repository/catalog"
	cataloginmemory "github.com/reelparty/server/internal/repository/catalog/inmemory"
	"github.com/reelparty/server/internal/repository/connection"
	roomredis "github.com/reelparty/server/internal/repository/room/redis"
)

type wireEvent struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type sentEvent struct {
	critical bool
	event    wireEvent
}

type fakeSender struct {
	mu         sync.Mutex
	registered map[string]bool
	events     map[string][]sentEvent
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		registered: make(map[string]bool),
		events:     make(map[string][]sentEvent),
	}
}

func (f *fakeSender) Add(participantId string, _ *websocket.Conn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registered[participantId] {
		return connection.ErrAlreadyExists
	}
	f.registered[participantId] = true
	return nil
}

func (f *fakeSender) Remove(participantId string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ok := f.registered[participantId]
	delete(f.registered, participantId)
	return ok
}

func (f *fakeSender) RemoveIfConn(participantId string, _ *websocket.Conn) bool {
	return f.Remove(participantId)
}

func (f *fakeSender) Send(participantId string, critical bool, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.registered[participantId] {
		return connection.ErrNotFound
	}
	var ev wireEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	f.events[participantId] = append(f.events[participantId], sentEvent{critical: critical, event: ev})
	return nil
}

func (f *fakeSender) eventsOfType(participantId, eventType string) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentEvent
	for _, e := range f.events[participantId] {
		if e.event.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeSender) countOfType(participantId, eventType string) int {
	return len(f.eventsOfType(participantId, eventType))
}

func (f *fakeSender) lastOfType(t *testing.T, participantId, eventType string) sentEvent {
	t.Helper()
	events := f.eventsOfType(participantId, eventType)
	require.NotEmpty(t, events, "no %s event for %s", eventType, participantId)
	return events[len(events)-1]
}

func decodePayload[T any](t *testing.T, ev sentEvent) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(ev.event.Payload, &out))
	return out
}

var testMedia = catalog.Media{Id: "sintel", Title: "Sintel", Duration: 888}

func testConfig() *Config {
	return &Config{
		MembersLimit:      4,
		ChatHistoryLimit:  5,
		ChatMessageMaxLen: 20,
		HeartbeatInterval: 5 * time.Second,
		ReconnectGrace:    30 * time.Second,
		RoomIdleTimeout:   10 * time.Minute,
		DriftThreshold:    1.5,
	}
}

func newTestService(t *testing.T, mutate func(*Config)) (*service, *fakeSender, *clockwork.FakeClock) {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	roomRepo := roomredis.NewRepo(rc, logger, time.Hour)
	sender := newFakeSender()
	mediaCatalog := cataloginmemory.NewRepo(testMedia)
	clock := clockwork.NewFakeClock()

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	svc := NewService(roomRepo, sender, mediaCatalog, clock, logger, cfg)
	t.Cleanup(svc.Close)

	return svc, sender, clock
}

func createTestRoom(t *testing.T, svc *service) string {
	t.Helper()
	resp, err := svc.CreateRoom(context.Background(), &CreateRoomParams{MediaRef: testMedia.Id})
	require.NoError(t, err)
	return resp.RoomId
}

func joinTestRoom(t *testing.T, svc *service, roomId, username string) string {
	t.Helper()
	resp, err := svc.JoinRoom(context.Background(), &JoinRoomParams{
		RoomId:   roomId,
		Username: username,
		Color:    "#ff0000",
	})
	require.NoError(t, err)
	return resp.ParticipantId
}

func TestService_CreateRoom(t *testing.T) {
	t.Run("creates room with paused player", func(t *testing.T) {
		svc, _, _ := newTestService(t, nil)
		ctx := context.Background()

		resp, err := svc.CreateRoom(ctx, &CreateRoomParams{MediaRef: testMedia.Id})
		require.NoError(t, err)
		require.Len(t, resp.RoomId, roomIdLength)
		require.Equal(t, testMedia.Title, resp.Media.Title)

		snap, err := svc.GetRoomSnapshot(ctx, resp.RoomId)
		require.NoError(t, err)
		require.False(t, snap.Player.IsPlaying)
		require.Zero(t, snap.Player.Position)
		require.Equal(t, float64(1), snap.Player.Rate)
		require.Zero(t, snap.Player.Version)
		require.Empty(t, snap.Participants)
	})

	t.Run("unknown media is rejected", func(t *testing.T) {
		svc, _, _ := newTestService(t, nil)

		_, err := svc.CreateRoom(context.Background(), &CreateRoomParams{MediaRef: "no-such-media"})
		require.ErrorIs(t, err, ErrInvalidMedia)
	})

	t.Run("room ids do not collide", func(t *testing.T) {
		svc, _, _ := newTestService(t, nil)
		ctx := context.Background()

		a, err := svc.CreateRoom(ctx, &CreateRoomParams{MediaRef: testMedia.Id})
		require.NoError(t, err)
		b, err := svc.CreateRoom(ctx, &CreateRoomParams{MediaRef: testMedia.Id})
		require.NoError(t, err)
		require.NotEqual(t, a.RoomId, b.RoomId)
	})
}

func TestService_JoinRoom(t *testing.T) {
	t.Run("first joiner becomes host and gets a snapshot", func(t *testing.T) {
		svc, sender, _ := newTestService(t, nil)
		roomId := createTestRoom(t, svc)

		resp, err := svc.JoinRoom(context.Background(), &JoinRoomParams{
			RoomId:   roomId,
			Username: "alice",
			Color:    "#ff0000",
		})
		require.NoError(t, err)
		require.True(t, resp.IsHost)

		ev := sender.lastOfType(t, resp.ParticipantId, EventSnapshot)
		require.True(t, ev.critical)
		snap := decodePayload[Snapshot](t, ev)
		require.Equal(t, testMedia.Id, snap.Media.Id)
		require.Equal(t, testMedia.Duration, snap.Media.Duration)
		require.Len(t, snap.Participants, 1)
		require.True(t, snap.Participants[0].IsHost)
		require.Equal(t, "alice", snap.Participants[0].Username)
		require.Equal(t, "online", snap.Participants[0].Presence)
	})

	t.Run("later joiners are announced to the rest", func(t *testing.T) {
		svc, sender, _ := newTestService(t, nil)
		roomId := createTestRoom(t, svc)
		host := joinTestRoom(t, svc, roomId, "alice")
		member := joinTestRoom(t, svc, roomId, "bob")

		ev := sender.lastOfType(t, host, EventParticipantJoined)
		payload := decodePayload[struct {
			Participant  Participant   `json:"participant"`
			Participants []Participant `json:"participants"`
		}](t, ev)
		require.Equal(t, member, payload.Participant.Id)
		require.False(t, payload.Participant.IsHost)
		require.Len(t, payload.Participants, 2)

		// the joiner hears about itself through the snapshot, not the announcement
		require.Zero(t, sender.countOfType(member, EventParticipantJoined))
	})

	t.Run("unknown room", func(t *testing.T) {
		svc, _, _ := newTestService(t, nil)

		_, err := svc.JoinRoom(context.Background(), &JoinRoomParams{
			RoomId:   "nope",
			Username: "alice",
			Color:    "#ff0000",
		})
		require.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("full room", func(t *testing.T) {
		svc, _, _ := newTestService(t, func(cfg *Config) { cfg.MembersLimit = 2 })
		roomId := createTestRoom(t, svc)
		joinTestRoom(t, svc, roomId, "alice")
		joinTestRoom(t, svc, roomId, "bob")

		_, err := svc.JoinRoom(context.Background(), &JoinRoomParams{
			RoomId:   roomId,
			Username: "carol",
			Color:    "#00ff00",
		})
		require.ErrorIs(t, err, ErrRoomFull)
	})
}

func TestService_SnapshotDerivesPosition(t *testing.T) {
	svc, _, clock := newTestService(t, nil)
	ctx := context.Background()
	roomId := createTestRoom(t, svc)
	host := joinTestRoom(t, svc, roomId, "alice")

	require.NoError(t, svc.Play(ctx, &PlaybackCommandParams{RoomId: roomId, SenderId: host}))

	clock.Advance(10 * time.Second)

	snap, err := svc.GetRoomSnapshot(ctx, roomId)
	require.NoError(t, err)
	require.True(t, snap.Player.IsPlaying)
	require.InDelta(t, 10.0, snap.Player.Position, 1e-9)
	require.Equal(t, int64(1), snap.Player.Version)

	// a snapshot never advances the version
	snap2, err := svc.GetRoomSnapshot(ctx, roomId)
	require.NoError(t, err)
	require.Equal(t, snap.Player.Version, snap2.Player.Version)
}

func TestService_LeaveRoom(t *testing.T) {
	t.Run("leave is idempotent and announced once", func(t *testing.T) {
		svc, sender, _ := newTestService(t, nil)
		ctx := context.Background()
		roomId := createTestRoom(t, svc)
		host := joinTestRoom(t, svc, roomId, "alice")
		member := joinTestRoom(t, svc, roomId, "bob")

		require.NoError(t, svc.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, ParticipantId: member}))
		require.NoError(t, svc.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, ParticipantId: member}))

		require.Equal(t, 1, sender.countOfType(host, EventParticipantLeft))

		ev := sender.lastOfType(t, host, EventParticipantLeft)
		payload := decodePayload[struct {
			Participant  Participant   `json:"participant"`
			Participants []Participant `json:"participants"`
		}](t, ev)
		require.Equal(t, member, payload.Participant.Id)
		require.Len(t, payload.Participants, 1)
	})

	t.Run("host departure promotes the earliest joiner", func(t *testing.T) {
		svc, sender, _ := newTestService(t, nil)
		ctx := context.Background()
		roomId := createTestRoom(t, svc)
		host := joinTestRoom(t, svc, roomId, "alice")
		second := joinTestRoom(t, svc, roomId, "bob")
		third := joinTestRoom(t, svc, roomId, "carol")

		require.NoError(t, svc.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, ParticipantId: host}))

		ev := sender.lastOfType(t, third, EventParticipantLeft)
		payload := decodePayload[struct {
			Participants []Participant `json:"participants"`
		}](t, ev)
		require.Len(t, payload.Participants, 2)
		for _, p := range payload.Participants {
			require.Equal(t, p.Id == second, p.IsHost)
		}

		// the promoted host can drive playback
		require.NoError(t, svc.Play(ctx, &PlaybackCommandParams{RoomId: roomId, SenderId: second}))
	})
}

func TestService_IdleRoomIsReaped(t *testing.T) {
	svc, _, clock := newTestService(t, nil)
	ctx := context.Background()
	roomId := createTestRoom(t, svc)

	// sweep ticker plus armed idle timer
	clock.BlockUntil(2)
	clock.Advance(10*time.Minute + time.Second)

	require.Eventually(t, func() bool {
		_, err := svc.GetRoomSnapshot(ctx, roomId)
		return errors.Is(err, ErrRoomNotFound)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestService_EmptyRoomSurvivesUntilIdleTimeout(t *testing.T) {
	svc, _, clock := newTestService(t, nil)
	ctx := context.Background()
	roomId := createTestRoom(t, svc)
	host := joinTestRoom(t, svc, roomId, "alice")
	require.NoError(t, svc.PostChat(ctx, &PostChatParams{RoomId: roomId, SenderId: host, Text: "hello"}))
	require.NoError(t, svc.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, ParticipantId: host}))

	clock.Advance(5 * time.Minute)

	// the room is still joinable with its state intact
	resp, err := svc.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, Username: "bob", Color: "#00ff00"})
	require.NoError(t, err)
	require.True(t, resp.IsHost)

	snap, err := svc.GetRoomSnapshot(ctx, roomId)
	require.NoError(t, err)
	require.Len(t, snap.Messages, 1)
	require.Equal(t, "hello", snap.Messages[0].Text)
}
