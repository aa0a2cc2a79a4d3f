package room

const (
	PresenceOnline       = "online"
	PresenceReconnecting = "reconnecting"
	PresenceOffline      = "offline"
)

type Room struct {
	MediaId       string  `redis:"media_id"`
	MediaTitle    string  `redis:"media_title"`
	MediaDuration float64 `redis:"media_duration"`
	HostId        string  `redis:"host_id"`
	CreatedAt     int64   `redis:"created_at"`
}

type Participant struct {
	Username      string  `redis:"username"`
	Color         string  `redis:"color"`
	Presence      string  `redis:"presence"`
	RoomId        string  `redis:"room_id"`
	LastHeartbeat int64   `redis:"last_heartbeat"`
	ClockOffsetMs int64   `redis:"clock_offset_ms"`
	LastReported  float64 `redis:"last_reported"`
	LastDrift     float64 `redis:"last_drift"`
	LastReportAt  int64   `redis:"last_report_at"`
}

// Player is the authoritative playback state. Position is the media position
// at UpdatedAt; the current position is derived from it, never ticked.
type Player struct {
	IsPlaying bool    `redis:"is_playing"`
	Position  float64 `redis:"position"`
	Rate      float64 `redis:"rate"`
	Version   int64   `redis:"version"`
	UpdatedAt int64   `redis:"updated_at"`
}

type ChatMessage struct {
	Seq         int64   `json:"seq"`
	AuthorId    string  `json:"author_id"`
	AuthorName  string  `json:"author_name"`
	AuthorColor string  `json:"author_color"`
	Text        string  `json:"text"`
	Timestamp   float64 `json:"timestamp"`
}
