package room

import "github.com/reelparty/server/internal/repository/room"

func (s *service) nowMs() int64 {
	return s.clock.Now().UnixMilli()
}

// derivePosition computes the media position at nowMs from the committed
// player state. The stored position is never ticked; while playing it
// advances linearly from UpdatedAt at the committed rate.
func derivePosition(player room.Player, nowMs int64, duration float64) float64 {
	pos := player.Position
	if player.IsPlaying {
		pos += float64(nowMs-player.UpdatedAt) / 1000 * player.Rate
	}
	return clampPosition(pos, duration)
}

func clampPosition(pos, duration float64) float64 {
	if pos < 0 {
		return 0
	}
	if duration > 0 && pos > duration {
		return duration
	}
	return pos
}

// adjustReported translates a participant-reported position into room clock
// terms. clockOffsetMs is the participant's estimate of its local clock
// minus the room clock; a sample taken on a fast clock reads ahead of the
// room by offset times rate. Paused positions need no adjustment.
func adjustReported(reported float64, clockOffsetMs int64, player room.Player) float64 {
	if !player.IsPlaying {
		return reported
	}
	return reported - float64(clockOffsetMs)/1000*player.Rate
}
