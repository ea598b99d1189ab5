package snippetdna

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/SnippetDNA/pkg/models"
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna/fingerprint"
)

type MatcherState int

const (
	StateIdle MatcherState = iota
	StateAccumulating
	StateMatched
	StateClosed
)

func (s MatcherState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateMatched:
		return "matched"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// noScore marks a template that was not compared on this frame.
const noScore = -1.0

// Matcher scans a PCM stream frame by frame against a template snapshot. It
// is not safe for concurrent use; a session drives it from one goroutine.
type Matcher struct {
	cfg       *Config
	extractor *fingerprint.Extractor
	sink      EventSink
	log       Logger

	state   MatcherState
	pcm     []float64 // samples from offset base on, not yet consumed
	base    int64
	history [][]float64
	scores  []float64

	// suppress counts frames that are buffered but not evaluated after a detection.
	suppress int
	pending  *models.MatchEvent
	matched  *Template

	// counters are read by Stats from other goroutines
	delivered atomic.Int64
	frames    atomic.Int64
	events    atomic.Int64
}

func NewMatcher(cfg *Config, extractor *fingerprint.Extractor, sink EventSink, log Logger) *Matcher {
	return &Matcher{
		cfg:       cfg,
		extractor: extractor,
		sink:      sink,
		log:       log,
	}
}

func (m *Matcher) State() MatcherState { return m.state }

// Delivered is the number of samples handed to Process.
func (m *Matcher) Delivered() int64 { return m.delivered.Load() }

// Frames is the number of analysis frames computed.
func (m *Matcher) Frames() int64 { return m.frames.Load() }

// Events is the number of match events emitted.
func (m *Matcher) Events() int64 { return m.events.Load() }

// Process appends samples to the stream and analyses every frame they
// complete against templates. maxFrames is the frame count of the longest
// template and bounds the frame history.
func (m *Matcher) Process(samples []float64, templates []*Template, maxFrames int) error {
	if m.state == StateClosed {
		return fmt.Errorf("%w: matcher is closed", ErrInvalidState)
	}
	if len(samples) == 0 {
		return nil
	}
	if m.state == StateIdle {
		m.state = StateAccumulating
	}
	m.pcm = append(m.pcm, samples...)
	m.delivered.Add(int64(len(samples)))

	window, hop := m.cfg.WindowSize, m.cfg.HopSize
	cursor := 0
	for cursor+window <= len(m.pcm) {
		frameStart := m.base + int64(cursor)
		frame, err := m.extractor.Frame(m.pcm[cursor : cursor+window])
		if err != nil {
			return fmt.Errorf("%w: extracting frame at %d: %v", ErrInternal, frameStart, err)
		}
		cursor += hop
		m.frames.Add(1)
		if err := m.step(frame, frameStart+int64(window), templates, maxFrames); err != nil {
			return err
		}
	}

	// Samples before cursor can no longer start a frame.
	n := copy(m.pcm, m.pcm[cursor:])
	m.pcm = m.pcm[:n]
	m.base += int64(cursor)
	return nil
}

func (m *Matcher) step(frame []float64, position int64, templates []*Template, maxFrames int) error {
	m.history = append(m.history, frame)
	if over := len(m.history) - maxFrames; over > 0 {
		n := copy(m.history, m.history[over:])
		clear(m.history[n:])
		m.history = m.history[:n]
	}

	if m.suppress > 0 {
		m.suppress--
		return nil
	}
	if len(m.history) == 0 {
		return nil
	}

	idx, score := m.best(templates)

	if m.pending != nil {
		if idx >= 0 && score > m.pending.Score {
			m.setPending(templates[idx], score, position)
			return nil
		}
		return m.emit()
	}

	if idx >= 0 && score >= m.cfg.Threshold {
		m.setPending(templates[idx], score, position)
		m.state = StateMatched
	}
	return nil
}

func (m *Matcher) setPending(t *Template, score float64, position int64) {
	m.pending = &models.MatchEvent{Label: t.Label, Score: score, Position: position}
	m.matched = t
}

// emit hands the pending event to the sink and skips the matched region.
func (m *Matcher) emit() error {
	ev, t := *m.pending, m.matched
	m.pending, m.matched = nil, nil
	m.state = StateAccumulating

	if err := m.sink.Push(ev); err != nil {
		return fmt.Errorf("%w: emitting %q: %v", ErrInternal, ev.Label, err)
	}
	m.events.Add(1)
	m.log.Debugf("match %q (template %d) score=%.3f position=%d", ev.Label, t.ID, ev.Score, ev.Position)

	clear(m.history)
	m.history = m.history[:0]
	m.suppress = t.Frames()
	return nil
}

// best returns the index of the highest scoring template and its score, or
// -1 when no template fits in the current history. Lower ids win ties.
func (m *Matcher) best(templates []*Template) (int, float64) {
	if cap(m.scores) < len(templates) {
		m.scores = make([]float64, len(templates))
	}
	scores := m.scores[:len(templates)]

	if len(templates) > m.cfg.ParallelThreshold && m.cfg.Workers > 1 {
		var g errgroup.Group
		g.SetLimit(m.cfg.Workers)
		for i, t := range templates {
			i, t := i, t
			g.Go(func() error {
				scores[i] = m.score(t)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, t := range templates {
			scores[i] = m.score(t)
		}
	}

	idx, top := -1, noScore
	for i, s := range scores {
		if s > top {
			idx, top = i, s
		}
	}
	return idx, top
}

// score compares t against the trailing frames of the history. Failures are
// logged and count as no match.
func (m *Matcher) score(t *Template) float64 {
	n := t.Frames()
	if n == 0 || n > len(m.history) {
		return noScore
	}
	s, err := m.compare(t, fingerprint.Fingerprint(m.history[len(m.history)-n:]))
	if err != nil {
		m.log.Warnf("comparing template %d (%q) failed: %v", t.ID, t.Label, err)
		return noScore
	}
	return s
}

func (m *Matcher) compare(t *Template, window fingerprint.Fingerprint) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fingerprint.Similarity(window, t.Fingerprint)
}

// Flush emits any pending detection, drops the samples too short for a
// frame and closes the matcher. Calling it again is a no-op.
func (m *Matcher) Flush() error {
	if m.state == StateClosed {
		return nil
	}
	var err error
	if m.pending != nil {
		err = m.emit()
	}
	if len(m.pcm) > 0 {
		m.log.Debugf("discarding %d trailing samples shorter than a window", len(m.pcm))
	}
	m.pcm = nil
	m.history = nil
	m.state = StateClosed
	return err
}
