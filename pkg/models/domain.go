package models

// MatchEvent is one detection of a reference snippet in the stream.
type MatchEvent struct {
	Label    string  `json:"label"`    // label of the matched reference
	Score    float64 `json:"score"`    // normalized confidence in [0, 1]
	Position int64   `json:"position"` // sample offset where the detection peaked
}
