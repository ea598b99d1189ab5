package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func TestDecodeS16LE(t *testing.T) {
	// Little-endian int16: 256, 32767, -32768
	data := []byte{0x00, 0x01, 0xFF, 0x7F, 0x00, 0x80}

	samples := DecodeS16LE(data)

	if len(samples) != 3 {
		t.Fatalf("Expected 3 samples, got %d", len(samples))
	}
	want := []float64{256.0 / 32768.0, 32767.0 / 32768.0, -1.0}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d: expected %f, got %f", i, want[i], samples[i])
		}
	}
}

func TestDecodeS16LEStrict(t *testing.T) {
	if _, err := DecodeS16LEStrict([]byte{1, 2, 3}); !errors.Is(err, ErrOddLength) {
		t.Errorf("Expected ErrOddLength, got %v", err)
	}
	samples, err := DecodeS16LEStrict([]byte{1, 2, 3, 4})
	if err != nil || len(samples) != 2 {
		t.Errorf("Expected 2 samples, got %d (%v)", len(samples), err)
	}
}

func TestEncodeDecodeS16LE(t *testing.T) {
	samples := []float64{0, 0.5, -0.5, 0.999, -1}

	decoded := DecodeS16LE(EncodeS16LE(samples))

	for i := range samples {
		if math.Abs(decoded[i]-samples[i]) > 1.0/32768.0 {
			t.Errorf("sample %d: expected ~%f, got %f", i, samples[i], decoded[i])
		}
	}
}

func TestEncodeS16LEClips(t *testing.T) {
	decoded := DecodeS16LE(EncodeS16LE([]float64{2.0, -3.0}))

	if decoded[0] != 32767.0/32768.0 {
		t.Errorf("Expected positive clip, got %f", decoded[0])
	}
	if decoded[1] != -1.0 {
		t.Errorf("Expected negative clip, got %f", decoded[1])
	}
}

func TestStereoToMono(t *testing.T) {
	mono := StereoToMono([]float64{0.5, 0.5, -0.5, 0.5, 1})

	if len(mono) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(mono))
	}
	if mono[0] != 0.5 || mono[1] != 0 {
		t.Errorf("Unexpected down-mix: %v", mono)
	}
}

func TestDecoderCarriesSplitSample(t *testing.T) {
	want := []float64{0.25, -0.25, 0.125, 0.5}
	data := EncodeS16LE(want)

	splits := [][]int{
		{1, 7},
		{3, 1, 1, 3},
		{1, 1, 1, 1, 1, 1, 1, 1},
		{8},
	}

	for _, split := range splits {
		var d Decoder
		var got []float64
		off := 0
		for _, n := range split {
			got = append(got, d.Decode(data[off:off+n])...)
			off += n
		}
		if d.Reset() {
			t.Errorf("split %v: unexpected dangling byte", split)
		}
		if len(got) != len(want) {
			t.Fatalf("split %v: expected %d samples, got %d", split, len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("split %v: sample %d expected %f, got %f", split, i, want[i], got[i])
			}
		}
	}
}

func TestDecoderReset(t *testing.T) {
	var d Decoder

	if got := d.Decode([]byte{1, 2, 3}); len(got) != 1 {
		t.Fatalf("Expected 1 sample, got %d", len(got))
	}
	if !d.Reset() {
		t.Error("Reset should report the dropped byte")
	}
	if d.Reset() {
		t.Error("Decoder should be empty after Reset")
	}
}

func TestWriteReadWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	samples := make([]float64, 1600)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/16000)
	}

	if err := WriteWav(path, samples, 16000); err != nil {
		t.Fatalf("WriteWav failed: %v", err)
	}

	got, rate, err := ReadWav(path)
	if err != nil {
		t.Fatalf("ReadWav failed: %v", err)
	}
	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}
	if len(got) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if math.Abs(got[i]-samples[i]) > 2.0/32768.0 {
			t.Fatalf("sample %d: expected ~%f, got %f", i, samples[i], got[i])
		}
	}
}

func TestReadWavNonExistent(t *testing.T) {
	if _, _, err := ReadWav("nonexistent-file.wav"); err == nil {
		t.Error("Expected error when reading non-existent file")
	}
}

func writeStereoWav(t *testing.T, path string, left, right []int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer f.Close()

	data := make([]int, 0, 2*len(left))
	for i := range left {
		data = append(data, left[i], right[i])
	}
	enc := wav.NewEncoder(f, 16000, 16, 2, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 16000},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestReadWavStereoDownmix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	n := 5000 // spans more than one decode buffer
	left, right := make([]int, n), make([]int, n)
	for i := range left {
		left[i] = 16384
		right[i] = -8192
	}
	writeStereoWav(t, path, left, right)

	got, rate, err := ReadWav(path)
	if err != nil {
		t.Fatalf("ReadWav failed: %v", err)
	}
	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}
	if len(got) != n {
		t.Fatalf("Expected %d mono samples, got %d", n, len(got))
	}
	for i, v := range got {
		if v != 0.125 {
			t.Fatalf("sample %d: expected 0.125, got %f", i, v)
		}
	}
}
