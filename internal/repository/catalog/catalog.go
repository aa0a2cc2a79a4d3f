package catalog

import "errors"

var ErrMediaNotFound = errors.New("media not found")

// Media describes one item of the external catalog as the engine sees it.
// Duration is in seconds; zero means unknown.
type Media struct {
	Id       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}
