package fingerprint

import (
	"errors"
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
)

const (
	SampleRate = 16000
	WindowSize = 400 // 25 ms
	HopSize    = 160 // 10 ms
	FFTSize    = 512
	NumFilters = 20
)

// ErrWindowTooShort is returned when fewer samples than one analysis window are supplied.
var ErrWindowTooShort = errors.New("window shorter than analysis window")

// Config describes the framing and filterbank layout of an Extractor.
type Config struct {
	SampleRate int
	WindowSize int
	HopSize    int
	FFTSize    int
	NumFilters int
}

func DefaultConfig() Config {
	return Config{
		SampleRate: SampleRate,
		WindowSize: WindowSize,
		HopSize:    HopSize,
		FFTSize:    FFTSize,
		NumFilters: NumFilters,
	}
}

func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return errors.New("sample rate must be positive")
	}
	if c.WindowSize < 2 {
		return errors.New("window size must be at least 2 samples")
	}
	if c.HopSize <= 0 || c.HopSize > c.WindowSize {
		return fmt.Errorf("hop size %d must be in (0, %d]", c.HopSize, c.WindowSize)
	}
	if c.FFTSize < c.WindowSize {
		return fmt.Errorf("fft size %d smaller than window size %d", c.FFTSize, c.WindowSize)
	}
	if c.NumFilters < 2 {
		return errors.New("at least 2 mel filters are required")
	}
	if c.NumFilters > c.FFTSize/2-1 {
		return fmt.Errorf("%d mel filters do not fit in %d fft bins", c.NumFilters, c.FFTSize/2+1)
	}
	return nil
}

// Hamming returns a Hamming window of length n.
func Hamming(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func FFTReal(frame []float64) []complex128 {
	return fft.FFTReal(frame)
}

// PowerSpectrum returns |X[k]|^2 for the non-negative frequencies 0..n/2.
func PowerSpectrum(spectrum []complex128) []float64 {
	half := len(spectrum)/2 + 1
	if half > len(spectrum) {
		half = len(spectrum)
	}
	power := make([]float64, half)
	for i := 0; i < half; i++ {
		re, im := real(spectrum[i]), imag(spectrum[i])
		power[i] = re*re + im*im
	}
	return power
}
