package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavReadFrames = 4096

// ReadWav reads a PCM WAV file and returns mono samples normalized to [-1, 1]
// along with the file's sample rate. Multi-channel files are down-mixed by
// averaging channels.
func ReadWav(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	return DecodeWav(f)
}

// DecodeWav is ReadWav over an already opened stream.
func DecodeWav(r io.ReadSeeker) ([]float64, int, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, 0, errors.New("not a valid WAV file")
	}
	if err := decoder.FwdToPCM(); err != nil {
		return nil, 0, fmt.Errorf("locating PCM data: %w", err)
	}

	channels := int(decoder.NumChans)
	bitDepth := int(decoder.BitDepth)
	if channels < 1 {
		return nil, 0, errors.New("WAV file declares no channels")
	}
	if bitDepth < 8 || bitDepth > 32 {
		return nil, 0, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  int(decoder.SampleRate),
		},
		Data:           make([]int, wavReadFrames*channels),
		SourceBitDepth: bitDepth,
	}

	maxVal := float64(int64(1) << (uint(bitDepth) - 1))
	// 8-bit WAV is unsigned
	offset := 0.0
	if bitDepth == 8 {
		offset = maxVal
	}

	var mono []float64
	frame := make([]float64, 0, len(buf.Data))
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, 0, fmt.Errorf("reading PCM samples: %w", err)
		}
		if n == 0 {
			break
		}
		frame = frame[:0]
		for _, v := range buf.Data[:n-n%channels] {
			frame = append(frame, (float64(v)-offset)/maxVal)
		}
		mono = append(mono, downmix(frame, channels)...)
	}

	if len(mono) == 0 {
		return nil, 0, errors.New("WAV file contains no samples")
	}
	return mono, int(decoder.SampleRate), nil
}

// WriteWav stores mono samples as a 16-bit PCM WAV file.
func WriteWav(path string, samples []float64, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, v := range samples {
		buf.Data[i] = int(toInt16(v))
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("encoding WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalizing WAV: %w", err)
	}
	return f.Close()
}

// downmix averages interleaved channels into one.
func downmix(interleaved []float64, channels int) []float64 {
	switch channels {
	case 1:
		return interleaved
	case 2:
		return StereoToMono(interleaved)
	}
	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for i := range mono {
		sum := 0.0
		for _, v := range interleaved[i*channels : (i+1)*channels] {
			sum += v
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}
