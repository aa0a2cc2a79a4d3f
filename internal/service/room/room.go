package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/reelparty/server/internal/repository/catalog"
	"github.com/reelparty/server/internal/repository/room"
)

type CreateRoomParams struct {
	MediaRef string
}

type CreateRoomResponse struct {
	RoomId string
	Media  Media
}

func (s *service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	media, err := s.catalog.Resolve(ctx, params.MediaRef)
	if err != nil {
		if errors.Is(err, catalog.ErrMediaNotFound) {
			return CreateRoomResponse{}, ErrInvalidMedia
		}
		return CreateRoomResponse{}, fmt.Errorf("failed to resolve media: %w", err)
	}

	roomId := s.generator.GenerateRandomString(roomIdLength)
	now := s.nowMs()

	if err := s.roomRepo.SetRoom(ctx, &room.SetRoomParams{
		RoomId:        roomId,
		MediaId:       media.Id,
		MediaTitle:    media.Title,
		MediaDuration: media.Duration,
		HostId:        "",
		CreatedAt:     now,
	}); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to set room: %w", err)
	}

	if err := s.roomRepo.SetPlayer(ctx, &room.SetPlayerParams{
		RoomId:    roomId,
		IsPlaying: false,
		Position:  0,
		Rate:      1,
		Version:   0,
		UpdatedAt: now,
	}); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to set player: %w", err)
	}

	if _, err := s.ensureRunner(ctx, roomId); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to start room runner: %w", err)
	}

	s.logger.InfoContext(ctx, "room created", "room_id", roomId, "media_id", media.Id)

	return CreateRoomResponse{
		RoomId: roomId,
		Media:  Media(media),
	}, nil
}

type JoinRoomParams struct {
	RoomId   string
	Username string
	Color    string
	Conn     *websocket.Conn
}

type JoinRoomResponse struct {
	ParticipantId string
	IsHost        bool
}

func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	var resp JoinRoomResponse
	err := s.dispatch(ctx, params.RoomId, func(ctx context.Context) error {
		rm, err := s.roomRepo.GetRoom(ctx, params.RoomId)
		if err != nil {
			if errors.Is(err, room.ErrRoomNotFound) {
				return ErrRoomNotFound
			}
			return fmt.Errorf("failed to get room: %w", err)
		}

		count, err := s.roomRepo.GetParticipantCount(ctx, params.RoomId)
		if err != nil {
			return fmt.Errorf("failed to get participant count: %w", err)
		}
		if count >= s.cfg.MembersLimit {
			return ErrRoomFull
		}

		participantId := uuid.NewString()
		if err := s.roomRepo.SetParticipant(ctx, &room.SetParticipantParams{
			ParticipantId: participantId,
			Username:      params.Username,
			Color:         params.Color,
			Presence:      room.PresenceOnline,
			RoomId:        params.RoomId,
			LastHeartbeat: s.nowMs(),
		}); err != nil {
			return fmt.Errorf("failed to set participant: %w", err)
		}

		isHost := count == 0 || rm.HostId == ""
		if isHost {
			if err := s.roomRepo.UpdateRoomHostId(ctx, params.RoomId, participantId); err != nil {
				return fmt.Errorf("failed to update room host: %w", err)
			}
			rm.HostId = participantId
		}

		if err := s.senderRepo.Add(participantId, params.Conn); err != nil {
			return fmt.Errorf("failed to register connection: %w", err)
		}

		participants, err := s.getParticipants(ctx, params.RoomId, rm.HostId)
		if err != nil {
			return err
		}

		snapshot, err := s.buildSnapshot(ctx, params.RoomId, rm, participants)
		if err != nil {
			return err
		}
		s.sendSnapshot(ctx, participantId, snapshot)

		var joined Participant
		for _, p := range participants {
			if p.Id == participantId {
				joined = p
				break
			}
		}
		s.sendParticipantJoined(ctx, participants, joined)

		s.logger.InfoContext(ctx, "participant joined", "participant_id", participantId, "is_host", isHost)

		resp = JoinRoomResponse{ParticipantId: participantId, IsHost: isHost}
		return nil
	})
	return resp, err
}

type LeaveRoomParams struct {
	RoomId        string
	ParticipantId string
}

func (s *service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) error {
	return s.dispatch(ctx, params.RoomId, func(ctx context.Context) error {
		return s.departParticipant(ctx, params.RoomId, params.ParticipantId)
	})
}

// DisconnectParticipant handles a dropped transport. The participant stays a
// member in reconnecting state; a reattach on a fresh connection restores
// them without a re-join. conn scopes the disconnect: a stale one that lost
// the race to a reattach is a no-op.
func (s *service) DisconnectParticipant(ctx context.Context, roomId, participantId string, conn *websocket.Conn) error {
	return s.dispatch(ctx, roomId, func(ctx context.Context) error {
		if !s.senderRepo.RemoveIfConn(participantId, conn) {
			return nil
		}

		p, err := s.roomRepo.GetParticipant(ctx, participantId)
		if err != nil {
			if errors.Is(err, room.ErrParticipantNotFound) {
				return nil
			}
			return fmt.Errorf("failed to get participant: %w", err)
		}
		if p.RoomId != roomId || p.Presence != room.PresenceOnline {
			return nil
		}

		s.logger.InfoContext(ctx, "participant disconnected", "participant_id", participantId)
		return s.roomRepo.UpdateParticipantPresence(ctx, participantId, room.PresenceReconnecting)
	})
}

type ReattachParams struct {
	RoomId        string
	ParticipantId string
	Conn          *websocket.Conn
}

// ReattachParticipant binds a fresh connection to an existing membership
// inside the reconnect grace. The participant keeps its id, join tenure and
// host role, and receives a playback catch-up instead of a full snapshot.
func (s *service) ReattachParticipant(ctx context.Context, params *ReattachParams) error {
	return s.dispatch(ctx, params.RoomId, func(ctx context.Context) error {
		rm, p, err := s.requireMember(ctx, params.RoomId, params.ParticipantId)
		if err != nil {
			return err
		}

		s.senderRepo.Remove(params.ParticipantId)
		if err := s.senderRepo.Add(params.ParticipantId, params.Conn); err != nil {
			return fmt.Errorf("failed to register connection: %w", err)
		}

		if err := s.roomRepo.UpdateParticipantHeartbeat(ctx, &room.UpdateHeartbeatParams{
			ParticipantId: params.ParticipantId,
			LastHeartbeat: s.nowMs(),
			ClockOffsetMs: p.ClockOffsetMs,
		}); err != nil {
			return fmt.Errorf("failed to update heartbeat: %w", err)
		}

		if p.Presence != room.PresenceOnline {
			if err := s.roomRepo.UpdateParticipantPresence(ctx, params.ParticipantId, room.PresenceOnline); err != nil {
				return fmt.Errorf("failed to update presence: %w", err)
			}
			if rm.HostId == "" {
				if err := s.roomRepo.UpdateRoomHostId(ctx, params.RoomId, params.ParticipantId); err != nil {
					return fmt.Errorf("failed to update room host: %w", err)
				}
			}
		}

		player, err := s.roomRepo.GetPlayer(ctx, params.RoomId)
		if err != nil {
			return fmt.Errorf("failed to get player: %w", err)
		}
		s.sendResync(ctx, params.ParticipantId, committedState(player))

		s.logger.InfoContext(ctx, "participant reattached", "participant_id", params.ParticipantId)
		return nil
	})
}

func (s *service) GetRoomSnapshot(ctx context.Context, roomId string) (Snapshot, error) {
	var snap Snapshot
	err := s.dispatch(ctx, roomId, func(ctx context.Context) error {
		rm, err := s.roomRepo.GetRoom(ctx, roomId)
		if err != nil {
			if errors.Is(err, room.ErrRoomNotFound) {
				return ErrRoomNotFound
			}
			return fmt.Errorf("failed to get room: %w", err)
		}

		participants, err := s.getParticipants(ctx, roomId, rm.HostId)
		if err != nil {
			return err
		}

		snap, err = s.buildSnapshot(ctx, roomId, rm, participants)
		return err
	})
	return snap, err
}

// departParticipant removes the participant and emits exactly one
// PARTICIPANT_LEFT. Departure of a participant already gone is a no-op, so
// an explicit leave racing a presence timeout stays idempotent.
func (s *service) departParticipant(ctx context.Context, roomId, participantId string) error {
	p, err := s.roomRepo.GetParticipant(ctx, participantId)
	if err != nil {
		if errors.Is(err, room.ErrParticipantNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get participant: %w", err)
	}
	if p.RoomId != roomId {
		return nil
	}

	if err := s.roomRepo.RemoveParticipant(ctx, &room.RemoveParticipantParams{
		ParticipantId: participantId,
		RoomId:        roomId,
	}); err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	s.senderRepo.Remove(participantId)

	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get room: %w", err)
	}

	if rm.HostId == participantId {
		newHostId, err := s.reassignHost(ctx, roomId)
		if err != nil {
			return err
		}
		rm.HostId = newHostId
		s.logger.InfoContext(ctx, "host departed", "participant_id", participantId, "new_host_id", newHostId)
	}

	participants, err := s.getParticipants(ctx, roomId, rm.HostId)
	if err != nil {
		return err
	}
	s.sendParticipantLeft(ctx, participants, Participant{
		Id:       participantId,
		Username: p.Username,
		Color:    p.Color,
		Presence: room.PresenceOffline,
	})

	return nil
}

// reassignHost promotes the longest-tenured remaining online participant.
// With nobody online the room is left hostless; the next participant to
// come back online is promoted on heartbeat.
func (s *service) reassignHost(ctx context.Context, roomId string) (string, error) {
	ids, err := s.roomRepo.GetParticipantIds(ctx, roomId)
	if err != nil {
		return "", fmt.Errorf("failed to get participant ids: %w", err)
	}

	newHostId := ""
	for _, id := range ids {
		p, err := s.roomRepo.GetParticipant(ctx, id)
		if err != nil {
			continue
		}
		if p.Presence == room.PresenceOnline {
			newHostId = id
			break
		}
	}

	if err := s.roomRepo.UpdateRoomHostId(ctx, roomId, newHostId); err != nil {
		return "", fmt.Errorf("failed to update room host: %w", err)
	}
	return newHostId, nil
}

// closeRoom tears the session down: every participant is dropped, all room
// keys removed, the runner stopped. Used by idle reaping and as the circuit
// breaker when internal state is detected inconsistent.
func (s *service) closeRoom(ctx context.Context, roomId string) {
	ids, err := s.roomRepo.GetParticipantIds(ctx, roomId)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to get participant ids on close", "error", err)
	}
	for _, id := range ids {
		s.senderRepo.Remove(id)
		if err := s.roomRepo.RemoveParticipant(ctx, &room.RemoveParticipantParams{
			ParticipantId: id,
			RoomId:        roomId,
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to remove participant on close", "participant_id", id, "error", err)
		}
	}

	if err := s.roomRepo.RemoveRoom(ctx, roomId); err != nil {
		s.logger.WarnContext(ctx, "failed to remove room on close", "error", err)
	}

	s.sessions.remove(roomId)
	s.logger.InfoContext(ctx, "room closed")
}

func (s *service) buildSnapshot(ctx context.Context, roomId string, rm room.Room, participants []Participant) (Snapshot, error) {
	player, err := s.roomRepo.GetPlayer(ctx, roomId)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to get player: %w", err)
	}

	tail, err := s.roomRepo.GetChatTail(ctx, roomId, s.cfg.ChatHistoryLimit)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to get chat tail: %w", err)
	}
	messages := make([]ChatMessage, 0, len(tail))
	for _, m := range tail {
		messages = append(messages, ChatMessage(m))
	}

	now := s.nowMs()
	return Snapshot{
		Media: Media{
			Id:       rm.MediaId,
			Title:    rm.MediaTitle,
			Duration: rm.MediaDuration,
		},
		Player: PlaybackState{
			IsPlaying: player.IsPlaying,
			Position:  derivePosition(player, now, rm.MediaDuration),
			Rate:      player.Rate,
			Version:   player.Version,
			UpdatedAt: now,
		},
		Messages:     messages,
		Participants: participants,
	}, nil
}
