package snippetdna

import (
	"github.com/himanishpuri/SnippetDNA/pkg/models"
)

// Storage persists reference snippets between sessions.
type Storage interface {
	AddReference(label string, sampleRate int, pcm []byte) (string, error)
	GetReference(id string) (*models.Reference, error)
	ListReferences() ([]models.Reference, error)
	LoadReferences() ([]models.Reference, error)
	DeleteReference(id string) error
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// EventSink receives match events in stream order.
type EventSink interface {
	Push(ev models.MatchEvent) error
}
