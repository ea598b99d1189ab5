package models

import "time"

// Reference is a stored reference snippet.
type Reference struct {
	ID          string    // UUID of the reference
	Label       string    // caller-defined label reported in match events
	SampleRate  int       // sample rate the PCM was recorded at
	SampleCount int       // number of mono samples
	PCM         []byte    // s16le mono samples; empty when listing metadata only
	CreatedAt   time.Time // time the reference was stored
}

// DurationMs is the reference length in milliseconds.
func (r Reference) DurationMs() int {
	if r.SampleRate <= 0 {
		return 0
	}
	return int(int64(r.SampleCount) * 1000 / int64(r.SampleRate))
}
