package room

import (
	"context"
	"fmt"

	"github.com/reelparty/server/internal/repository/room"
)

type HeartbeatParams struct {
	RoomId           string
	SenderId         string
	ReportedPosition float64
	ClockOffsetMs    int64
}

// Heartbeat refreshes liveness and feeds the drift reconciler. A heartbeat
// from a reconnecting participant restores them to online in place, with no
// re-join and no snapshot.
func (s *service) Heartbeat(ctx context.Context, params *HeartbeatParams) error {
	return s.dispatch(ctx, params.RoomId, func(ctx context.Context) error {
		rm, p, err := s.requireMember(ctx, params.RoomId, params.SenderId)
		if err != nil {
			return err
		}

		if err := s.roomRepo.UpdateParticipantHeartbeat(ctx, &room.UpdateHeartbeatParams{
			ParticipantId: params.SenderId,
			LastHeartbeat: s.nowMs(),
			ClockOffsetMs: params.ClockOffsetMs,
		}); err != nil {
			return fmt.Errorf("failed to update heartbeat: %w", err)
		}

		if p.Presence == room.PresenceReconnecting {
			if err := s.roomRepo.UpdateParticipantPresence(ctx, params.SenderId, room.PresenceOnline); err != nil {
				return fmt.Errorf("failed to update presence: %w", err)
			}
			s.logger.InfoContext(ctx, "participant back online", "participant_id", params.SenderId)

			if rm.HostId == "" {
				if err := s.roomRepo.UpdateRoomHostId(ctx, params.RoomId, params.SenderId); err != nil {
					return fmt.Errorf("failed to update room host: %w", err)
				}
				rm.HostId = params.SenderId
			}
		}

		return s.reconcileDrift(ctx, params.RoomId, params.SenderId, rm, params.ReportedPosition, params.ClockOffsetMs)
	})
}

// sweepPresence demotes silent participants. It runs on the room's
// serialized path from the runner ticker, so it never races a command.
// Online past three missed heartbeats becomes reconnecting; reconnecting
// past the grace period departs like an explicit leave.
func (s *service) sweepPresence(ctx context.Context, roomId string) {
	ids, err := s.roomRepo.GetParticipantIds(ctx, roomId)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to get participant ids for sweep", "error", err)
		return
	}

	now := s.nowMs()
	reconnectingAfter := 3 * s.cfg.HeartbeatInterval.Milliseconds()
	offlineAfter := reconnectingAfter + s.cfg.ReconnectGrace.Milliseconds()

	for _, id := range ids {
		p, err := s.roomRepo.GetParticipant(ctx, id)
		if err != nil {
			continue
		}
		silent := now - p.LastHeartbeat

		switch {
		case p.Presence == room.PresenceOnline && silent > reconnectingAfter:
			s.logger.InfoContext(ctx, "participant missed heartbeats", "participant_id", id, "silent_ms", silent)
			if err := s.roomRepo.UpdateParticipantPresence(ctx, id, room.PresenceReconnecting); err != nil {
				s.logger.WarnContext(ctx, "failed to update presence", "participant_id", id, "error", err)
			}
		case p.Presence == room.PresenceReconnecting && silent > offlineAfter:
			s.logger.InfoContext(ctx, "participant timed out", "participant_id", id, "silent_ms", silent)
			if err := s.departParticipant(ctx, roomId, id); err != nil {
				s.logger.WarnContext(ctx, "failed to depart participant", "participant_id", id, "error", err)
			}
		}
	}
}
