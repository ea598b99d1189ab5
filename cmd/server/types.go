//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"time"

	"github.com/himanishpuri/SnippetDNA/pkg/models"
)

// MaxReferenceBytes bounds raw and multipart reference uploads.
const MaxReferenceBytes = 32 << 20

// Message types sent on the /api/detect websocket.
const (
	MessageMatch = "match"
	MessageDone  = "done"
	MessageError = "error"
)

// closeCommand is the text frame a client sends to end its stream.
const closeCommand = "close"

// ReferenceDTO represents a reference snippet in API responses
type ReferenceDTO struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	SampleRate  int       `json:"sample_rate"`
	SampleCount int       `json:"sample_count"`
	DurationMs  int       `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

func toReferenceDTO(ref models.Reference) ReferenceDTO {
	return ReferenceDTO{
		ID:          ref.ID,
		Label:       ref.Label,
		SampleRate:  ref.SampleRate,
		SampleCount: ref.SampleCount,
		DurationMs:  ref.DurationMs(),
		CreatedAt:   ref.CreatedAt,
	}
}

// ListReferencesResponse is the response for GET /api/references
type ListReferencesResponse struct {
	References []ReferenceDTO `json:"references"`
	Count      int            `json:"count"`
}

// AddReferenceResponse is the response for successful reference addition
type AddReferenceResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
	Label   string `json:"label"`
}

// DeleteReferenceResponse is the response for DELETE /api/references/{id}
type DeleteReferenceResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and catalog metrics
type MetricsResponse struct {
	Status         string  `json:"status"`
	DatabasePath   string  `json:"database_path"`
	ReferenceCount int     `json:"reference_count"`
	ActiveStreams  int64   `json:"active_streams"`
	SampleRate     int     `json:"sample_rate"`
	Threshold      float64 `json:"threshold"`
}

// DetectMessage is one JSON message on the detection websocket.
type DetectMessage struct {
	Type     string  `json:"type"`
	Label    string  `json:"label,omitempty"`
	Score    float64 `json:"score,omitempty"`
	Position int64   `json:"position,omitempty"`
	Samples  int64   `json:"samples,omitempty"`
	Frames   int64   `json:"frames,omitempty"`
	Message  string  `json:"message,omitempty"`
}

func matchMessage(ev models.MatchEvent) DetectMessage {
	return DetectMessage{
		Type:     MessageMatch,
		Label:    ev.Label,
		Score:    ev.Score,
		Position: ev.Position,
	}
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
