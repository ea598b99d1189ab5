package snippetdna

import (
	"testing"

	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna/fingerprint"
)

func TestDatabaseSnapshot(t *testing.T) {
	extractor, err := fingerprint.NewExtractor(fingerprint.DefaultConfig())
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}
	db := NewDatabase(extractor)

	a, err := db.Add("a", pcm(chime()))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if a.ID != 0 || a.SampleCount != 1000 || a.Frames() != 4 {
		t.Errorf("Unexpected template: id=%d samples=%d frames=%d", a.ID, a.SampleCount, a.Frames())
	}

	snap := db.Snapshot(db.Len())
	b, err := db.AddSamples("b", chirp(1600, 3000, 500, 0.5))
	if err != nil {
		t.Fatalf("AddSamples failed: %v", err)
	}

	if len(snap) != 1 || snap[0] != a {
		t.Errorf("Snapshot changed after append: %v", snap)
	}
	if b.ID != 1 {
		t.Errorf("Expected second template with id 1, got %d", b.ID)
	}
	if _, err := db.AddSamples("c", chirp(500, 800, 900, 0.5)); err != nil {
		t.Fatalf("AddSamples failed: %v", err)
	}
	for _, tt := range []struct{ n, want int }{
		{0, 0},
		{1, a.Frames()},
		{2, b.Frames()},
		{3, b.Frames()},
		{-1, b.Frames()},
	} {
		if got := db.MaxFrames(tt.n); got != tt.want {
			t.Errorf("MaxFrames(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
	if got := db.Templates(); len(got) != 3 || got[1] != b {
		t.Errorf("Templates returned %v", got)
	}
	if got := db.Snapshot(10); len(got) != 3 {
		t.Errorf("Oversized snapshot should clamp, got %d", len(got))
	}
}
