package snippetdna

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/himanishpuri/SnippetDNA/pkg/logger"
	"github.com/himanishpuri/SnippetDNA/pkg/models"
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna/audio"
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna/fingerprint"
)

type SessionState int

const (
	SessionOpen SessionState = iota
	SessionClosing
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionOpen:
		return "open"
	case SessionClosing:
		return "closing"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time view of a session's progress.
type Stats struct {
	SamplesWritten int64
	FramesAnalysed int64
	EventsEmitted  int64
	Templates      int
	PendingEvents  int
}

// chunk is decoded audio waiting for the worker, tagged with the number of
// templates that existed when it was written.
type chunk struct {
	samples   []float64
	templates int
}

// Session owns one reference database, one matcher and one event queue.
// One goroutine may write while another reads events.
type Session struct {
	cfg     *Config
	log     Logger
	db      *Database
	matcher *Matcher
	events  *EventQueue
	input   *fifo[chunk]
	done    chan struct{}

	mu      sync.Mutex
	state   SessionState
	decoder audio.Decoder
	written int64
	err     error
}

// NewSession opens a session and starts its matcher.
func NewSession(opts ...Option) (*Session, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger().Named("snippetdna")
	}

	extractor, err := fingerprint.NewExtractor(cfg.extractorConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	s := &Session{
		cfg:    cfg,
		log:    cfg.Logger,
		db:     NewDatabase(extractor),
		events: NewEventQueue(),
		input:  newFIFO[chunk](16),
		done:   make(chan struct{}),
	}
	s.matcher = NewMatcher(cfg, extractor, s.events, cfg.Logger)

	go s.run()
	return s, nil
}

func (s *Session) Config() Config { return *s.cfg }

// Database returns the session's reference database.
func (s *Session) Database() *Database { return s.db }

// AddReference fingerprints pcm (s16le mono) and registers it under label.
// Audio already written is matched against the references that existed when
// it was written.
func (s *Session) AddReference(label string, pcm []byte) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writableLocked(); err != nil {
		return nil, err
	}
	t, err := s.db.Add(label, pcm)
	if err != nil {
		return nil, err
	}
	s.log.Debugf("added reference %q: %d samples, %d frames", label, t.SampleCount, t.Frames())
	return t, nil
}

// Write queues a chunk of s16le mono PCM and returns without waiting for
// analysis. A chunk may end halfway through a sample.
func (s *Session) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writableLocked(); err != nil {
		return err
	}

	samples := s.decoder.Decode(pcm)
	if len(samples) == 0 {
		return nil
	}
	if err := s.input.put(chunk{samples: samples, templates: s.db.Len()}); err != nil {
		return fmt.Errorf("%w: queueing audio: %v", ErrInternal, err)
	}
	s.written += int64(len(samples))
	return nil
}

func (s *Session) writableLocked() error {
	if s.err != nil {
		return s.err
	}
	if s.state != SessionOpen {
		return fmt.Errorf("%w: session is %s", ErrInvalidState, s.state)
	}
	return nil
}

// Close ends the stream. It waits for buffered audio to be analysed and any
// pending detection to be emitted. Further calls return the same result.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == SessionOpen {
		s.state = SessionClosing
		if s.decoder.Reset() {
			s.log.Debugf("dropping dangling half sample at close")
		}
		s.input.closeWrite()
	}
	s.mu.Unlock()

	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionClosed
	return s.err
}

// Next returns the next match event in stream order. It suspends until an
// event is available and returns ErrEndOfStream once the session is closed
// and every event has been read.
func (s *Session) Next(ctx context.Context) (models.MatchEvent, error) {
	return s.events.Next(ctx)
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	written := s.written
	s.mu.Unlock()
	return Stats{
		SamplesWritten: written,
		FramesAnalysed: s.matcher.Frames(),
		EventsEmitted:  s.matcher.Events(),
		Templates:      s.db.Len(),
		PendingEvents:  s.events.Len(),
	}
}

func (s *Session) run() {
	defer close(s.done)
	if err := s.analyse(); err != nil {
		s.fail(err)
	}
}

func (s *Session) analyse() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: matcher panic: %v", ErrInternal, r)
		}
	}()

	for {
		c, err := s.input.pop(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := s.matcher.Process(c.samples, s.db.Snapshot(c.templates), s.db.MaxFrames(c.templates)); err != nil {
			return err
		}
	}

	if err := s.matcher.Flush(); err != nil {
		return err
	}
	s.events.CloseWrite()
	return nil
}

// fail makes the session unusable. Events already queued stay readable.
func (s *Session) fail(err error) {
	if !errors.Is(err, ErrInternal) {
		err = fmt.Errorf("%w: %v", ErrInternal, err)
	}
	s.log.Errorf("session failed: %v", err)

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	s.input.closeWithError(err)
	s.events.Fail(err)
}
