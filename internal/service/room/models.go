package room

const schemaVersion = 1

type Participant struct {
	Id       string `json:"id"`
	Username string `json:"username"`
	Color    string `json:"color"`
	IsHost   bool   `json:"is_host"`
	Presence string `json:"presence"`
}

type PlaybackState struct {
	IsPlaying bool    `json:"is_playing"`
	Position  float64 `json:"position"`
	Rate      float64 `json:"rate"`
	Version   int64   `json:"version"`
	UpdatedAt int64   `json:"updated_at"`
}

type ChatMessage struct {
	Seq         int64   `json:"seq"`
	AuthorId    string  `json:"author_id"`
	AuthorName  string  `json:"author_name"`
	AuthorColor string  `json:"author_color"`
	Text        string  `json:"text"`
	Timestamp   float64 `json:"timestamp"`
}

type Media struct {
	Id       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}

// Snapshot is the full room state a joining participant needs to render
// the session. Player carries the position derived at snapshot time.
type Snapshot struct {
	Media        Media         `json:"media"`
	Player       PlaybackState `json:"player"`
	Messages     []ChatMessage `json:"messages"`
	Participants []Participant `json:"participants"`
}

type Event struct {
	V       int    `json:"v"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}
