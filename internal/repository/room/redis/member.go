package redis

import (
	"context"
	"fmt"

	"github.com/reelparty/server/internal/repository/room"
)

func (r repo) getParticipantKey(participantId string) string {
	return "participant:" + participantId
}

func (r repo) getParticipantListKey(roomId string) string {
	return "room:" + roomId + ":participants"
}

func (r repo) SetParticipant(ctx context.Context, params *room.SetParticipantParams) error {
	pipe := r.rc.TxPipeline()

	participantKey := r.getParticipantKey(params.ParticipantId)
	pipe.HSet(ctx, participantKey,
		"username", params.Username,
		"color", params.Color,
		"presence", params.Presence,
		"room_id", params.RoomId,
		"last_heartbeat", params.LastHeartbeat,
		"clock_offset_ms", 0,
		"last_reported", 0.0,
		"last_drift", 0.0,
		"last_report_at", 0,
	)
	pipe.Expire(ctx, participantKey, r.expireDuration)

	listKey := r.getParticipantListKey(params.RoomId)
	r.addWithIncrement(ctx, pipe, listKey, params.ParticipantId)
	pipe.Expire(ctx, listKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set participant: %w", err)
	}

	return nil
}

func (r repo) GetParticipant(ctx context.Context, participantId string) (room.Participant, error) {
	var p room.Participant
	if err := r.rc.HGetAll(ctx, r.getParticipantKey(participantId)).Scan(&p); err != nil {
		return room.Participant{}, fmt.Errorf("failed to get participant: %w", err)
	}

	if p.RoomId == "" {
		return room.Participant{}, room.ErrParticipantNotFound
	}

	return p, nil
}

// GetParticipantIds returns the room's participants in join order.
func (r repo) GetParticipantIds(ctx context.Context, roomId string) ([]string, error) {
	ids, err := r.rc.ZRange(ctx, r.getParticipantListKey(roomId), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get participant ids: %w", err)
	}

	return ids, nil
}

func (r repo) GetParticipantCount(ctx context.Context, roomId string) (int, error) {
	count, err := r.rc.ZCard(ctx, r.getParticipantListKey(roomId)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get participant count: %w", err)
	}

	return int(count), nil
}

func (r repo) RemoveParticipant(ctx context.Context, params *room.RemoveParticipantParams) error {
	pipe := r.rc.TxPipeline()
	pipe.ZRem(ctx, r.getParticipantListKey(params.RoomId), params.ParticipantId)
	pipe.Del(ctx, r.getParticipantKey(params.ParticipantId))

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	return nil
}

func (r repo) UpdateParticipantPresence(ctx context.Context, participantId, presence string) error {
	key := r.getParticipantKey(participantId)
	cmd := r.rc.Exists(ctx, key)
	if err := cmd.Err(); err != nil {
		return err
	}

	if cmd.Val() == 0 {
		return room.ErrParticipantNotFound
	}

	if err := r.rc.HSet(ctx, key, "presence", presence).Err(); err != nil {
		return err
	}

	return nil
}

func (r repo) UpdateParticipantHeartbeat(ctx context.Context, params *room.UpdateHeartbeatParams) error {
	key := r.getParticipantKey(params.ParticipantId)
	cmd := r.rc.Exists(ctx, key)
	if err := cmd.Err(); err != nil {
		return err
	}

	if cmd.Val() == 0 {
		return room.ErrParticipantNotFound
	}

	if err := r.rc.HSet(ctx, key,
		"last_heartbeat", params.LastHeartbeat,
		"clock_offset_ms", params.ClockOffsetMs,
	).Err(); err != nil {
		return err
	}

	return nil
}

func (r repo) UpdateParticipantSyncReport(ctx context.Context, params *room.UpdateSyncReportParams) error {
	key := r.getParticipantKey(params.ParticipantId)
	cmd := r.rc.Exists(ctx, key)
	if err := cmd.Err(); err != nil {
		return err
	}

	if cmd.Val() == 0 {
		return room.ErrParticipantNotFound
	}

	if err := r.rc.HSet(ctx, key,
		"last_reported", params.LastReported,
		"last_drift", params.LastDrift,
		"last_report_at", params.LastReportAt,
	).Err(); err != nil {
		return err
	}

	return nil
}
