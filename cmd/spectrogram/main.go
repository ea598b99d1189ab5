//go:build !js && !wasm
// +build !js,!wasm

// Command spectrogram renders a PNG spectrogram for every catalog reference.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/draw"
	"path/filepath"
	"regexp"

	"github.com/eligwz/spectrogram"
	"github.com/himanishpuri/SnippetDNA/pkg/logger"
	"github.com/himanishpuri/SnippetDNA/pkg/models"
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna/audio"
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna/storage"
	"github.com/himanishpuri/SnippetDNA/pkg/utils"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func main() {
	dbPath := flag.String("db", "", "Path to SQLite reference catalog (default: $SNIPPET_DB_PATH or "+storage.DefaultDBFile+")")
	outputDir := flag.String("out", "spectrograms", "Output directory")
	width := flag.Int("width", 2048, "Image width in pixels")
	height := flag.Int("height", 512, "Image height (frequency bins)")
	flag.Parse()

	log := logger.GetLogger().Named("spectrogram")

	var (
		client *storage.DBClient
		err    error
	)
	if *dbPath == "" {
		client, err = storage.NewDBClient()
	} else {
		client, err = storage.NewDBClientWithPath(*dbPath)
	}
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer client.Close()

	refs, err := client.LoadReferences()
	if err != nil {
		log.Fatalf("Failed to load references: %v", err)
	}
	if len(refs) == 0 {
		log.Warnf("No references in catalog")
		return
	}

	if err := utils.MakeDir(*outputDir); err != nil {
		log.Fatalf("Failed to create %s: %v", *outputDir, err)
	}

	rendered := 0
	for _, ref := range refs {
		path := filepath.Join(*outputDir, fileName(ref))
		if err := render(ref, path, *width, *height); err != nil {
			log.Errorf("Failed to render %q: %v", ref.Label, err)
			continue
		}
		log.Infof("Saved %q (%d samples at %d Hz) to %s", ref.Label, ref.SampleCount, ref.SampleRate, path)
		rendered++
	}
	fmt.Printf("Rendered %d/%d spectrograms into %s\n", rendered, len(refs), *outputDir)
}

func fileName(ref models.Reference) string {
	id := ref.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return unsafeChars.ReplaceAllString(ref.Label, "_") + "_" + id + ".png"
}

func render(ref models.Reference, path string, width, height int) error {
	samples := audio.DecodeS16LE(ref.PCM)
	if len(samples) == 0 {
		return fmt.Errorf("reference has no samples")
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, width, height))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// Hamming window, FFT, linear magnitude.
	spectrogram.Drawfft(
		img,
		samples,
		uint32(ref.SampleRate),
		uint32(height),
		false,
		false,
		true,
		false,
	)

	return spectrogram.SavePng(img, path)
}
