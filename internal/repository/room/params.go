package room

type SetRoomParams struct {
	RoomId        string
	MediaId       string
	MediaTitle    string
	MediaDuration float64
	HostId        string
	CreatedAt     int64
}

type SetParticipantParams struct {
	ParticipantId string
	Username      string
	Color         string
	Presence      string
	LastHeartbeat int64
	RoomId        string
}

type GetParticipantParams struct {
	ParticipantId string
	RoomId        string
}

type RemoveParticipantParams struct {
	ParticipantId string
	RoomId        string
}

type UpdateHeartbeatParams struct {
	ParticipantId string
	LastHeartbeat int64
	ClockOffsetMs int64
}

type UpdateSyncReportParams struct {
	ParticipantId string
	LastReported  float64
	LastDrift     float64
	LastReportAt  int64
}

type SetPlayerParams struct {
	RoomId    string
	IsPlaying bool
	Position  float64
	Rate      float64
	Version   int64
	UpdatedAt int64
}

// UpdatePlayerStateParams commits a playback transition. The version is
// incremented atomically by the repository and returned to the caller.
type UpdatePlayerStateParams struct {
	RoomId    string
	IsPlaying bool
	Position  float64
	Rate      float64
	UpdatedAt int64
}

type AddChatMessageParams struct {
	RoomId       string
	AuthorId     string
	AuthorName   string
	AuthorColor  string
	Text         string
	Timestamp    float64
	HistoryLimit int
}
