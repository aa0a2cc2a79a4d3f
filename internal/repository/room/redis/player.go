package redis

import (
	"context"
	"fmt"

	"github.com/reelparty/server/internal/repository/room"
)

func (r repo) getPlayerKey(roomId string) string {
	return "room:" + roomId + ":player"
}

func (r repo) SetPlayer(ctx context.Context, params *room.SetPlayerParams) error {
	pipe := r.rc.TxPipeline()

	playerKey := r.getPlayerKey(params.RoomId)
	pipe.HSet(ctx, playerKey,
		"is_playing", params.IsPlaying,
		"position", params.Position,
		"rate", params.Rate,
		"version", params.Version,
		"updated_at", params.UpdatedAt,
	)
	pipe.Expire(ctx, playerKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set player: %w", err)
	}

	return nil
}

func (r repo) GetPlayer(ctx context.Context, roomId string) (room.Player, error) {
	playerKey := r.getPlayerKey(roomId)
	var player room.Player
	if err := r.rc.HGetAll(ctx, playerKey).Scan(&player); err != nil {
		return room.Player{}, fmt.Errorf("failed to get player: %w", err)
	}

	if player.UpdatedAt == 0 {
		return room.Player{}, room.ErrPlayerNotFound
	}

	return player, nil
}

// UpdatePlayerState commits a playback transition and returns the new
// version. The field writes and the version increment execute in one
// transaction, so no two committed transitions can share a version.
func (r repo) UpdatePlayerState(ctx context.Context, params *room.UpdatePlayerStateParams) (int64, error) {
	playerKey := r.getPlayerKey(params.RoomId)
	cmd := r.rc.Exists(ctx, playerKey)
	if err := cmd.Err(); err != nil {
		return 0, err
	}

	if cmd.Val() == 0 {
		return 0, room.ErrPlayerNotFound
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, playerKey,
		"is_playing", params.IsPlaying,
		"position", params.Position,
		"rate", params.Rate,
		"updated_at", params.UpdatedAt,
	)
	versionCmd := pipe.HIncrBy(ctx, playerKey, "version", 1)
	pipe.Expire(ctx, playerKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return 0, fmt.Errorf("failed to update player state: %w", err)
	}

	return versionCmd.Val(), nil
}
