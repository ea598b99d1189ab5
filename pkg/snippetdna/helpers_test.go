package snippetdna

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/himanishpuri/SnippetDNA/pkg/logger"
	"github.com/himanishpuri/SnippetDNA/pkg/models"
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna/audio"
)

const testRate = 16000

func chirp(n int, f0, f1, amp float64) []float64 {
	out := make([]float64, n)
	phase := 0.0
	for i := range out {
		f := f0 + (f1-f0)*float64(i)/float64(n)
		phase += 2 * math.Pi * f / testRate
		out[i] = amp * math.Sin(phase)
	}
	return out
}

func silence(n int) []float64 { return make([]float64, n) }

func noise(n int, amp float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * (2*rng.Float64() - 1)
	}
	return out
}

func chime() []float64 { return chirp(1000, 300, 3000, 0.5) }

func pcm(parts ...[]float64) []byte {
	var all []float64
	for _, p := range parts {
		all = append(all, p...)
	}
	return audio.EncodeS16LE(all)
}

func quietLogger() *logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.Output = io.Discard
	return logger.New(cfg)
}

// recordingLogger keeps warnings for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Debugf(string, ...any) {}
func (l *recordingLogger) Infof(string, ...any)  {}
func (l *recordingLogger) Errorf(string, ...any) {}

func (l *recordingLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	s, err := NewSession(opts...)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addReference(t *testing.T, s *Session, label string, samples []float64) *Template {
	t.Helper()
	tpl, err := s.AddReference(label, pcm(samples))
	if err != nil {
		t.Fatalf("AddReference(%s) failed: %v", label, err)
	}
	return tpl
}

// drain reads events until end of stream.
func drain(t *testing.T, s *Session) []models.MatchEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var events []models.MatchEvent
	for {
		ev, err := s.Next(ctx)
		if errors.Is(err, ErrEndOfStream) {
			return events
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		events = append(events, ev)
	}
}

// writeSplit writes data in consecutive chunks of the given sizes, cycling
// through sizes until data is exhausted.
func writeSplit(t *testing.T, s *Session, data []byte, sizes []int) {
	t.Helper()
	for off, i := 0, 0; off < len(data); i++ {
		n := sizes[i%len(sizes)]
		if off+n > len(data) {
			n = len(data) - off
		}
		if err := s.Write(data[off : off+n]); err != nil {
			t.Fatalf("Write failed at offset %d: %v", off, err)
		}
		off += n
	}
}
