package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/SnippetDNA/pkg/utils"
)

type ConvertWAVConfig struct {
	SampleRate int // e.g. 8000, 16000, 44100
}

// ConvertToMonoWAV converts any ffmpeg-readable file to a mono 16-bit PCM WAV
// at cfg.SampleRate in outputDir, keeping the base name.
func ConvertToMonoWAV(
	ctx context.Context,
	inputPath string,
	outputDir string,
	cfg ConvertWAVConfig,
) (string, error) {

	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", err
	}

	baseName := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(outputDir, baseName+".wav")

	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-ac", "1", // mono
		"-ar", fmt.Sprintf("%d", cfg.SampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %v (%s)", err, out)
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}

	return outputPath, nil
}

// LoadMono returns mono samples at sampleRate for path. WAV files at the
// right rate are read directly; anything else goes through ffmpeg.
func LoadMono(ctx context.Context, path, tempDir string, sampleRate int) ([]float64, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		samples, rate, err := ReadWav(path)
		if err == nil && rate == sampleRate {
			return samples, nil
		}
	}

	wavPath, err := ConvertToMonoWAV(ctx, path, tempDir, ConvertWAVConfig{SampleRate: sampleRate})
	if err != nil {
		return nil, fmt.Errorf("audio conversion failed: %w", err)
	}
	defer os.Remove(wavPath)

	samples, _, err := ReadWav(wavPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted WAV: %w", err)
	}
	return samples, nil
}
