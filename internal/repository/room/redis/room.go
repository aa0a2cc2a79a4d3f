package redis

import (
	"context"
	"fmt"

	"github.com/reelparty/server/internal/repository/room"
)

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId
}

func (r repo) SetRoom(ctx context.Context, params *room.SetRoomParams) error {
	pipe := r.rc.TxPipeline()

	roomKey := r.getRoomKey(params.RoomId)
	pipe.HSet(ctx, roomKey,
		"media_id", params.MediaId,
		"media_title", params.MediaTitle,
		"media_duration", params.MediaDuration,
		"host_id", params.HostId,
		"created_at", params.CreatedAt,
	)
	pipe.Expire(ctx, roomKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set room: %w", err)
	}

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	var rm room.Room
	if err := r.rc.HGetAll(ctx, r.getRoomKey(roomId)).Scan(&rm); err != nil {
		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	if rm.CreatedAt == 0 {
		return room.Room{}, room.ErrRoomNotFound
	}

	return rm, nil
}

func (r repo) RoomExists(ctx context.Context, roomId string) (bool, error) {
	res, err := r.rc.Exists(ctx, r.getRoomKey(roomId)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if room exists: %w", err)
	}

	return res > 0, nil
}

func (r repo) UpdateRoomHostId(ctx context.Context, roomId, hostId string) error {
	key := r.getRoomKey(roomId)
	cmd := r.rc.Exists(ctx, key)
	if err := cmd.Err(); err != nil {
		return err
	}

	if cmd.Val() == 0 {
		return room.ErrRoomNotFound
	}

	if err := r.rc.HSet(ctx, key, "host_id", hostId).Err(); err != nil {
		return err
	}

	return nil
}

// RemoveRoom deletes every key owned by the room. Participant hashes are
// removed separately by RemoveParticipant.
func (r repo) RemoveRoom(ctx context.Context, roomId string) error {
	if err := r.rc.Del(ctx,
		r.getRoomKey(roomId),
		r.getPlayerKey(roomId),
		r.getParticipantListKey(roomId),
		r.getChatKey(roomId),
		r.getChatSeqKey(roomId),
	).Err(); err != nil {
		return fmt.Errorf("failed to remove room: %w", err)
	}

	return nil
}
