//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/himanishpuri/SnippetDNA/pkg/logger"
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna"
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna/audio"
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna/storage"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	lib      *snippetdna.Library
	config   *ServerConfig
	log      snippetdna.Logger
	upgrader websocket.Upgrader
	streams  atomic.Int64
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr           string
	DBPath         string
	TempDir        string
	SampleRate     int
	Threshold      float64
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(lib *snippetdna.Library, config *ServerConfig) *Server {
	s := &Server{
		lib:    lib,
		config: config,
		log:    logger.GetLogger().Named("http"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  16 << 10,
		WriteBufferSize: 4 << 10,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || allowAll(s.config.AllowedOrigins) {
		return true
	}
	for _, o := range s.config.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// statusFor maps library errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, snippetdna.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, snippetdna.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "SnippetDNA",
		"version": "1.0.0",
		"status":  "running",
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	refs, err := s.lib.ListReferences()
	if err != nil {
		s.log.Errorf("Failed to list references: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:         "healthy",
		DatabasePath:   s.config.DBPath,
		ReferenceCount: len(refs),
		ActiveStreams:  s.streams.Load(),
		SampleRate:     s.config.SampleRate,
		Threshold:      s.config.Threshold,
	})
}

// handleListReferences handles GET /api/references
func (s *Server) handleListReferences(w http.ResponseWriter, r *http.Request) {
	refs, err := s.lib.ListReferences()
	if err != nil {
		s.log.Errorf("Failed to list references: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve references")
		return
	}

	dtos := make([]ReferenceDTO, len(refs))
	for i, ref := range refs {
		dtos[i] = toReferenceDTO(ref)
	}
	s.respondJSON(w, http.StatusOK, ListReferencesResponse{
		References: dtos,
		Count:      len(dtos),
	})
}

// handleGetReference handles GET /api/references/{id}
func (s *Server) handleGetReference(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ref, err := s.lib.GetReference(id)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, toReferenceDTO(*ref))
}

// handleDeleteReference handles DELETE /api/references/{id}
func (s *Server) handleDeleteReference(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.lib.DeleteReference(id); err != nil {
		if code := statusFor(err); code != http.StatusNotFound {
			s.log.Errorf("Failed to delete reference %s: %v", id, err)
		}
		s.respondError(w, statusFor(err), err.Error())
		return
	}

	s.log.Infof("Deleted reference %s", id)
	s.respondJSON(w, http.StatusOK, DeleteReferenceResponse{
		Message: "Reference deleted successfully",
		ID:      id,
	})
}

// handleAddReference handles POST /api/references. It accepts a multipart
// upload ("audio" file plus "label"), a WAV body, or raw s16le mono PCM; the
// latter two take the label from the query string.
func (s *Server) handleAddReference(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, MaxReferenceBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		label string
		id    string
		err   error
	)
	switch mediaType {
	case "multipart/form-data":
		label, id, err = s.addFromUpload(ctx, r)
	case "audio/wav", "audio/x-wav", "audio/wave":
		label = r.URL.Query().Get("label")
		id, err = s.addFromWav(label, r.Body)
	default:
		label = r.URL.Query().Get("label")
		var pcm []byte
		if pcm, err = io.ReadAll(r.Body); err == nil {
			id, err = s.lib.AddReference(label, pcm)
		}
	}
	if err != nil {
		code := statusFor(err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		if code >= http.StatusInternalServerError {
			s.log.Errorf("Failed to add reference %q: %v", label, err)
		}
		s.respondError(w, code, fmt.Sprintf("Failed to add reference: %v", err))
		return
	}

	s.respondJSON(w, http.StatusCreated, AddReferenceResponse{
		Message: "Reference added successfully",
		ID:      id,
		Label:   label,
	})
}

func (s *Server) addFromUpload(ctx context.Context, r *http.Request) (string, string, error) {
	if err := r.ParseMultipartForm(MaxReferenceBytes); err != nil {
		return "", "", fmt.Errorf("%w: failed to parse form data: %v", snippetdna.ErrInvalidInput, err)
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return "", "", fmt.Errorf("%w: audio file is required", snippetdna.ErrInvalidInput)
	}
	defer file.Close()

	label := r.FormValue("label")
	if label == "" {
		label = strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	}

	// Save to temporary file so ffmpeg can read it
	tempFile := filepath.Join(s.config.TempDir,
		fmt.Sprintf("ref_%d_%s", time.Now().UnixNano(), filepath.Base(header.Filename)))
	out, err := os.Create(tempFile)
	if err != nil {
		return label, "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tempFile)

	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		return label, "", fmt.Errorf("failed to save uploaded file: %w", err)
	}
	out.Close()

	samples, err := audio.LoadMono(ctx, tempFile, s.config.TempDir, s.config.SampleRate)
	if err != nil {
		return label, "", fmt.Errorf("%w: %v", snippetdna.ErrInvalidInput, err)
	}
	id, err := s.lib.AddSamples(label, samples)
	return label, id, err
}

func (s *Server) addFromWav(label string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	samples, rate, err := audio.DecodeWav(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", snippetdna.ErrInvalidInput, err)
	}
	if rate != s.config.SampleRate {
		return "", fmt.Errorf("%w: wav is %d Hz, server runs at %d Hz",
			snippetdna.ErrInvalidInput, rate, s.config.SampleRate)
	}
	return s.lib.AddSamples(label, samples)
}

// handleDetect handles GET /api/detect. Binary frames carry s16le mono PCM;
// a "close" text frame or the peer hanging up ends the stream. Matches are
// sent as they are found, followed by a final "done" message.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	session, err := s.lib.NewSession()
	if err != nil {
		s.log.Errorf("Failed to open session: %v", err)
		s.respondError(w, statusFor(err), "Failed to open detection session")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("Websocket upgrade failed: %v", err)
		session.Close()
		return
	}
	defer conn.Close()

	s.streams.Add(1)
	defer s.streams.Add(-1)
	s.log.Infof("Detection stream opened from %s (%d references)", r.RemoteAddr, session.Stats().Templates)

	// Only this goroutine writes to conn until it finishes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.streamEvents(conn, session)
	}()

	s.readAudio(conn, session)

	if err := session.Close(); err != nil {
		s.log.Errorf("Detection stream failed: %v", err)
	}
	<-done

	stats := session.Stats()
	s.log.Infof("Detection stream closed: %d samples, %d events", stats.SamplesWritten, stats.EventsEmitted)
	err = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	if err != nil {
		s.log.Debugf("Close frame not sent: %v", err)
	}
}

func (s *Server) readAudio(conn *websocket.Conn, session *snippetdna.Session) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debugf("Detection stream read ended: %v", err)
			}
			return
		}
		switch kind {
		case websocket.BinaryMessage:
			if err := session.Write(data); err != nil {
				s.log.Warnf("Rejecting audio chunk: %v", err)
				return
			}
		case websocket.TextMessage:
			if strings.TrimSpace(string(data)) == closeCommand {
				return
			}
			s.log.Debugf("Ignoring text frame %q", data)
		}
	}
}

func (s *Server) streamEvents(conn *websocket.Conn, session *snippetdna.Session) {
	for {
		ev, err := session.Next(context.Background())
		if errors.Is(err, snippetdna.ErrEndOfStream) {
			stats := session.Stats()
			done := DetectMessage{
				Type:    MessageDone,
				Samples: stats.SamplesWritten,
				Frames:  stats.FramesAnalysed,
			}
			if err := conn.WriteJSON(done); err != nil {
				s.log.Warnf("Failed to send stream summary: %v", err)
			}
			return
		}
		if err != nil {
			if werr := conn.WriteJSON(DetectMessage{Type: MessageError, Message: err.Error()}); werr != nil {
				s.log.Warnf("Failed to send stream error %q: %v", err, werr)
			}
			return
		}
		s.log.Debugf("Match %q score=%.3f at %d", ev.Label, ev.Score, ev.Position)
		if err := conn.WriteJSON(matchMessage(ev)); err != nil {
			s.log.Warnf("Failed to send match: %v", err)
			return
		}
	}
}
