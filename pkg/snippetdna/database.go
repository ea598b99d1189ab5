package snippetdna

import (
	"errors"
	"fmt"
	"sync"

	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna/audio"
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna/fingerprint"
)

// Template is an immutable reference snippet ready for matching.
type Template struct {
	ID          int    // insertion index, lower wins ties
	Label       string // reported in match events
	Fingerprint fingerprint.Fingerprint
	SampleCount int
}

// Frames is the number of analysis frames the template spans.
func (t *Template) Frames() int { return len(t.Fingerprint) }

// Database is an append-only, insertion-ordered set of templates.
type Database struct {
	mu        sync.RWMutex
	extractor *fingerprint.Extractor
	templates []*Template
	// longest[i] is the largest frame count among templates[:i+1].
	longest []int
}

func NewDatabase(extractor *fingerprint.Extractor) *Database {
	return &Database{extractor: extractor}
}

// Add decodes pcm as s16le mono and stores its fingerprint under label.
func (db *Database) Add(label string, pcm []byte) (*Template, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("%w: reference %q is empty", ErrInvalidInput, label)
	}
	samples, err := audio.DecodeS16LEStrict(pcm)
	if err != nil {
		return nil, fmt.Errorf("%w: reference %q: %v", ErrInvalidInput, label, err)
	}
	return db.AddSamples(label, samples)
}

// AddSamples stores already decoded samples under label.
func (db *Database) AddSamples(label string, samples []float64) (*Template, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: reference %q is empty", ErrInvalidInput, label)
	}
	fp, err := db.extractor.Extract(samples)
	if err != nil {
		if errors.Is(err, fingerprint.ErrWindowTooShort) {
			return nil, fmt.Errorf("%w: reference %q has %d samples, need at least %d",
				ErrInvalidInput, label, len(samples), db.extractor.Config().WindowSize)
		}
		return nil, fmt.Errorf("%w: fingerprinting %q: %v", ErrInternal, label, err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	t := &Template{
		ID:          len(db.templates),
		Label:       label,
		Fingerprint: fp,
		SampleCount: len(samples),
	}
	db.templates = append(db.templates, t)
	longest := t.Frames()
	if n := len(db.longest); n > 0 && db.longest[n-1] > longest {
		longest = db.longest[n-1]
	}
	db.longest = append(db.longest, longest)
	return t, nil
}

func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.templates)
}

// Snapshot returns the first n templates. The slice shares storage with the
// database and must not be modified; later appends never touch it.
func (db *Database) Snapshot(n int) []*Template {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if n < 0 || n > len(db.templates) {
		n = len(db.templates)
	}
	return db.templates[:n:n]
}

// Templates returns every template added so far.
func (db *Database) Templates() []*Template {
	return db.Snapshot(-1)
}

// MaxFrames is the frame count of the longest of the first n templates,
// clamped the way Snapshot clamps n.
func (db *Database) MaxFrames(n int) int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if n < 0 || n > len(db.longest) {
		n = len(db.longest)
	}
	if n == 0 {
		return 0
	}
	return db.longest[n-1]
}
