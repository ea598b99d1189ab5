package fingerprint

import (
	"math"
	"testing"
)

func TestHamming(t *testing.T) {
	sizes := []int{128, 256, 400, 512}

	for _, size := range sizes {
		window := Hamming(size)

		if len(window) != size {
			t.Errorf("Expected window size %d, got %d", size, len(window))
		}

		for i, val := range window {
			if val < 0 || val > 1 {
				t.Errorf("Window value %d out of range [0,1]: %f", i, val)
			}
		}

		if window[0] >= window[size/2] {
			t.Error("Hamming window should be lower at edges")
		}
	}
}

func TestFFTReal(t *testing.T) {
	signal := make([]float64, 128)
	for i := range signal {
		signal[i] = 1.0
	}

	spectrum := FFTReal(signal)

	if len(spectrum) != len(signal) {
		t.Errorf("Expected spectrum length %d, got %d", len(signal), len(spectrum))
	}
	if math.Abs(real(spectrum[0])-128) > 1e-9 {
		t.Errorf("Expected DC bin 128, got %v", spectrum[0])
	}
}

func TestPowerSpectrum(t *testing.T) {
	spectrum := []complex128{
		complex(1.0, 0.0),
		complex(0.0, 2.0),
		complex(3.0, 4.0),
		complex(9.0, 9.0),
	}

	power := PowerSpectrum(spectrum)

	if len(power) != 3 {
		t.Fatalf("Expected 3 bins, got %d", len(power))
	}
	want := []float64{1, 4, 25}
	for i := range want {
		if power[i] != want[i] {
			t.Errorf("bin %d: expected %f, got %f", i, want[i], power[i])
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"zero rate", func(c *Config) { c.SampleRate = 0 }, true},
		{"hop larger than window", func(c *Config) { c.HopSize = c.WindowSize + 1 }, true},
		{"fft smaller than window", func(c *Config) { c.FFTSize = 256 }, true},
		{"too many filters", func(c *Config) { c.NumFilters = 300 }, true},
		{"one filter", func(c *Config) { c.NumFilters = 1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
