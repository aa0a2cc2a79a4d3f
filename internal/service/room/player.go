package room

import (
	"context"
	"fmt"
	"math"

	"github.com/reelparty/server/internal/repository/room"
)

type PlaybackCommandParams struct {
	RoomId   string
	SenderId string
	// Position is the seek target in media seconds. Ignored by Play and Pause.
	Position float64
}

func (s *service) Play(ctx context.Context, params *PlaybackCommandParams) error {
	return s.dispatch(ctx, params.RoomId, func(ctx context.Context) error {
		rm, player, err := s.requireHost(ctx, params.RoomId, params.SenderId)
		if err != nil {
			return err
		}
		if player.IsPlaying {
			return nil
		}

		now := s.nowMs()
		return s.commitPlayerState(ctx, params.RoomId, rm, &room.UpdatePlayerStateParams{
			RoomId:    params.RoomId,
			IsPlaying: true,
			Position:  derivePosition(player, now, rm.MediaDuration),
			Rate:      player.Rate,
			UpdatedAt: now,
		}, player.Version)
	})
}

func (s *service) Pause(ctx context.Context, params *PlaybackCommandParams) error {
	return s.dispatch(ctx, params.RoomId, func(ctx context.Context) error {
		rm, player, err := s.requireHost(ctx, params.RoomId, params.SenderId)
		if err != nil {
			return err
		}
		if !player.IsPlaying {
			return nil
		}

		now := s.nowMs()
		return s.commitPlayerState(ctx, params.RoomId, rm, &room.UpdatePlayerStateParams{
			RoomId:    params.RoomId,
			IsPlaying: false,
			Position:  derivePosition(player, now, rm.MediaDuration),
			Rate:      player.Rate,
			UpdatedAt: now,
		}, player.Version)
	})
}

func (s *service) Seek(ctx context.Context, params *PlaybackCommandParams) error {
	return s.dispatch(ctx, params.RoomId, func(ctx context.Context) error {
		rm, player, err := s.requireHost(ctx, params.RoomId, params.SenderId)
		if err != nil {
			return err
		}

		return s.commitPlayerState(ctx, params.RoomId, rm, &room.UpdatePlayerStateParams{
			RoomId:    params.RoomId,
			IsPlaying: player.IsPlaying,
			Position:  clampPosition(params.Position, rm.MediaDuration),
			Rate:      player.Rate,
			UpdatedAt: s.nowMs(),
		}, player.Version)
	})
}

type ResyncRequestParams struct {
	RoomId   string
	SenderId string
}

// RequestResync sends the requester the committed authoritative state. Any
// member may ask for one; it never advances the playback version.
func (s *service) RequestResync(ctx context.Context, params *ResyncRequestParams) error {
	return s.dispatch(ctx, params.RoomId, func(ctx context.Context) error {
		_, _, err := s.requireMember(ctx, params.RoomId, params.SenderId)
		if err != nil {
			return err
		}

		player, err := s.roomRepo.GetPlayer(ctx, params.RoomId)
		if err != nil {
			return fmt.Errorf("failed to get player: %w", err)
		}

		s.sendResync(ctx, params.SenderId, committedState(player))
		return nil
	})
}

// commitPlayerState applies a transition, checks the version advanced by
// exactly one and broadcasts the committed state verbatim. A skipped
// version means the room state was mutated outside the runner; the room is
// closed rather than allowed to serve inconsistent state.
func (s *service) commitPlayerState(ctx context.Context, roomId string, rm room.Room, params *room.UpdatePlayerStateParams, prevVersion int64) error {
	version, err := s.roomRepo.UpdatePlayerState(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to update player state: %w", err)
	}
	if version != prevVersion+1 {
		s.logger.ErrorContext(ctx, "playback version out of sequence", "got", version, "want", prevVersion+1)
		s.closeRoom(ctx, roomId)
		return ErrRoomClosed
	}

	participants, err := s.getParticipants(ctx, roomId, rm.HostId)
	if err != nil {
		return err
	}
	s.sendPlaybackUpdated(ctx, participants, PlaybackState{
		IsPlaying: params.IsPlaying,
		Position:  params.Position,
		Rate:      params.Rate,
		Version:   version,
		UpdatedAt: params.UpdatedAt,
	})
	return nil
}

// reconcileDrift folds a heartbeat's position report into the sync state.
// A participant past the drift threshold gets a targeted resync; when a
// majority of online reporters disagree with the committed state, the room
// re-derives its authoritative position from the median of recent reports.
func (s *service) reconcileDrift(ctx context.Context, roomId, participantId string, rm room.Room, reported float64, clockOffsetMs int64) error {
	player, err := s.roomRepo.GetPlayer(ctx, roomId)
	if err != nil {
		return fmt.Errorf("failed to get player: %w", err)
	}

	now := s.nowMs()
	expected := derivePosition(player, now, rm.MediaDuration)
	adjusted := adjustReported(reported, clockOffsetMs, player)
	drift := adjusted - expected

	if err := s.roomRepo.UpdateParticipantSyncReport(ctx, &room.UpdateSyncReportParams{
		ParticipantId: participantId,
		LastReported:  adjusted,
		LastDrift:     drift,
		LastReportAt:  now,
	}); err != nil {
		return fmt.Errorf("failed to update sync report: %w", err)
	}

	if math.Abs(drift) <= s.cfg.DriftThreshold {
		return nil
	}

	s.logger.DebugContext(ctx, "participant drifted", "participant_id", participantId, "drift", drift)
	s.sendResync(ctx, participantId, committedState(player))

	return s.escalateIfMajorityDrifted(ctx, roomId, rm, player, now)
}

func (s *service) escalateIfMajorityDrifted(ctx context.Context, roomId string, rm room.Room, player room.Player, nowMs int64) error {
	ids, err := s.roomRepo.GetParticipantIds(ctx, roomId)
	if err != nil {
		return fmt.Errorf("failed to get participant ids: %w", err)
	}

	// only recent reports count; a stale one says nothing about the present
	window := 2 * s.cfg.HeartbeatInterval.Milliseconds()

	var online, drifted int
	var reports []float64
	for _, id := range ids {
		p, err := s.roomRepo.GetParticipant(ctx, id)
		if err != nil {
			continue
		}
		if p.Presence != room.PresenceOnline {
			continue
		}
		online++
		if nowMs-p.LastReportAt > window {
			continue
		}
		reports = append(reports, p.LastReported)
		if math.Abs(p.LastDrift) > s.cfg.DriftThreshold {
			drifted++
		}
	}

	if online < 2 || drifted*2 <= online {
		return nil
	}

	s.logger.WarnContext(ctx, "majority drifted, re-deriving authoritative position",
		"online", online,
		"drifted", drifted,
	)
	return s.commitPlayerState(ctx, roomId, rm, &room.UpdatePlayerStateParams{
		RoomId:    roomId,
		IsPlaying: player.IsPlaying,
		Position:  clampPosition(median(reports), rm.MediaDuration),
		Rate:      player.Rate,
		UpdatedAt: nowMs,
	}, player.Version)
}

func committedState(player room.Player) PlaybackState {
	return PlaybackState{
		IsPlaying: player.IsPlaying,
		Position:  player.Position,
		Rate:      player.Rate,
		Version:   player.Version,
		UpdatedAt: player.UpdatedAt,
	}
}
