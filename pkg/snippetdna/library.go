//go:build !js && !wasm
// +build !js,!wasm

package snippetdna

import (
	"fmt"

	"github.com/himanishpuri/SnippetDNA/pkg/logger"
	"github.com/himanishpuri/SnippetDNA/pkg/models"
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna/audio"
)

// Library is a persistent catalog of reference snippets that seeds sessions.
type Library struct {
	storage Storage
	log     Logger
	config  *Config
	opts    []Option
}

func NewLibrary(opts ...Option) (*Library, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger().Named("library")
	}

	var stor Storage
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &Library{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
		opts:    opts,
	}, nil
}

// Config returns the settings sessions created by the library start from.
func (l *Library) Config() Config { return *l.config }

// AddReference validates s16le mono pcm at the configured sample rate and
// stores it under label.
func (l *Library) AddReference(label string, pcm []byte) (string, error) {
	if label == "" {
		return "", fmt.Errorf("%w: label is required", ErrInvalidInput)
	}
	if len(pcm) == 0 {
		return "", fmt.Errorf("%w: reference %q is empty", ErrInvalidInput, label)
	}
	if len(pcm)%audio.BytesPerSample != 0 {
		return "", fmt.Errorf("%w: reference %q: %v", ErrInvalidInput, label, audio.ErrOddLength)
	}
	if n := len(pcm) / audio.BytesPerSample; n < l.config.WindowSize {
		return "", fmt.Errorf("%w: reference %q has %d samples, need at least %d",
			ErrInvalidInput, label, n, l.config.WindowSize)
	}

	id, err := l.storage.AddReference(label, l.config.SampleRate, pcm)
	if err != nil {
		return "", fmt.Errorf("failed to store reference: %w", err)
	}
	l.log.Infof("Stored reference %q as %s (%d samples)", label, id, len(pcm)/audio.BytesPerSample)
	return id, nil
}

// AddSamples stores normalized mono samples.
func (l *Library) AddSamples(label string, samples []float64) (string, error) {
	return l.AddReference(label, audio.EncodeS16LE(samples))
}

func (l *Library) GetReference(id string) (*models.Reference, error) {
	return l.storage.GetReference(id)
}

func (l *Library) ListReferences() ([]models.Reference, error) {
	return l.storage.ListReferences()
}

// LoadReferences returns every stored reference including its PCM.
func (l *Library) LoadReferences() ([]models.Reference, error) {
	return l.storage.LoadReferences()
}

func (l *Library) DeleteReference(id string) error {
	return l.storage.DeleteReference(id)
}

// NewSession opens a session with the library's settings plus opts and loads
// every stored reference into it.
func (l *Library) NewSession(opts ...Option) (*Session, error) {
	all := append(append([]Option(nil), l.opts...), opts...)
	s, err := NewSession(all...)
	if err != nil {
		return nil, err
	}
	if _, err := l.Seed(s); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Seed adds every stored reference recorded at the session's sample rate and
// returns how many were added.
func (l *Library) Seed(s *Session) (int, error) {
	refs, err := l.storage.LoadReferences()
	if err != nil {
		return 0, fmt.Errorf("failed to load references: %w", err)
	}

	rate := s.Config().SampleRate
	added := 0
	for _, ref := range refs {
		if ref.SampleRate != rate {
			l.log.Warnf("Skipping reference %q: recorded at %d Hz, session runs at %d Hz",
				ref.Label, ref.SampleRate, rate)
			continue
		}
		if _, err := s.AddReference(ref.Label, ref.PCM); err != nil {
			return added, fmt.Errorf("seeding %q: %w", ref.Label, err)
		}
		added++
	}
	l.log.Debugf("Seeded session with %d/%d references", added, len(refs))
	return added, nil
}

// Close releases the underlying storage.
func (l *Library) Close() error {
	return l.storage.Close()
}
