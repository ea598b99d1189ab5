package fingerprint

import (
	"math"
)

// logFloor keeps log energies finite on silent bands.
const logFloor = 1e-10

// Fingerprint is a sequence of cepstral frames, one row per hop.
type Fingerprint [][]float64

// Frames returns the number of analysis frames.
func (f Fingerprint) Frames() int { return len(f) }

// Extractor turns PCM windows into mel cepstral frames. It is safe for
// concurrent use; every call allocates its own scratch buffers.
type Extractor struct {
	cfg     Config
	window  []float64
	melBank [][]float64 // [filter][fft bin]
	dct     [][]float64 // [coefficient][filter], coefficient 0 omitted
}

func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{
		cfg:     cfg,
		window:  Hamming(cfg.WindowSize),
		melBank: melFilterBank(cfg.NumFilters, cfg.FFTSize, cfg.SampleRate),
		dct:     dctMatrix(cfg.NumFilters),
	}, nil
}

func (e *Extractor) Config() Config { return e.cfg }

// Coefficients is the width of every frame.
func (e *Extractor) Coefficients() int { return e.cfg.NumFilters - 1 }

// FramesFor reports how many frames Extract yields for n samples.
func (e *Extractor) FramesFor(n int) int {
	if n < e.cfg.WindowSize {
		return 0
	}
	return (n-e.cfg.WindowSize)/e.cfg.HopSize + 1
}

// Frame computes one cepstral frame from the first WindowSize samples of window.
func (e *Extractor) Frame(window []float64) ([]float64, error) {
	if len(window) < e.cfg.WindowSize {
		return nil, ErrWindowTooShort
	}
	buf := make([]float64, e.cfg.FFTSize)
	return e.frame(window, buf), nil
}

// Extract computes every frame of samples with the configured hop. Only full
// windows are analysed, so the fingerprint spans FramesFor(len(samples))
// frames and covers the first (frames-1)*hop + window samples; any shorter
// tail is not part of it.
func (e *Extractor) Extract(samples []float64) (Fingerprint, error) {
	n := e.FramesFor(len(samples))
	if n == 0 {
		return nil, ErrWindowTooShort
	}
	buf := make([]float64, e.cfg.FFTSize)
	fp := make(Fingerprint, 0, n)
	for start := 0; start+e.cfg.WindowSize <= len(samples); start += e.cfg.HopSize {
		fp = append(fp, e.frame(samples[start:], buf))
	}
	return fp, nil
}

func (e *Extractor) frame(samples []float64, buf []float64) []float64 {
	ws := e.cfg.WindowSize
	for i := 0; i < ws; i++ {
		buf[i] = samples[i] * e.window[i]
	}
	for i := ws; i < len(buf); i++ {
		buf[i] = 0
	}
	power := PowerSpectrum(FFTReal(buf))

	energies := make([]float64, len(e.melBank))
	for m, filter := range e.melBank {
		sum := 0.0
		for k, w := range filter {
			if w != 0 {
				sum += w * power[k]
			}
		}
		energies[m] = math.Log(sum + logFloor)
	}

	out := make([]float64, len(e.dct))
	for k, basis := range e.dct {
		sum := 0.0
		for m, c := range basis {
			sum += c * energies[m]
		}
		out[k] = sum
	}
	return out
}

func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melFilterBank builds numFilters triangular filters spread evenly on the mel
// scale between 0 Hz and Nyquist. Returns [numFilters][fftSize/2+1].
func melFilterBank(numFilters, fftSize, sampleRate int) [][]float64 {
	half := fftSize/2 + 1
	melMax := hzToMel(float64(sampleRate) / 2)
	step := melMax / float64(numFilters+1)

	bins := make([]int, numFilters+2)
	for i := range bins {
		hz := melToHz(float64(i) * step)
		bin := int(math.Floor(hz / float64(sampleRate) * float64(fftSize)))
		if bin > half-1 {
			bin = half - 1
		}
		bins[i] = bin
	}
	// every filter needs a non-empty rising and falling edge
	for i := 1; i < len(bins); i++ {
		if bins[i] <= bins[i-1] {
			bins[i] = bins[i-1] + 1
		}
	}
	for i := len(bins) - 1; i >= 0 && bins[i] > half-1; i-- {
		bins[i] = half - 1 - (len(bins) - 1 - i)
	}

	bank := make([][]float64, numFilters)
	for m := 0; m < numFilters; m++ {
		start, peak, end := bins[m], bins[m+1], bins[m+2]
		filter := make([]float64, half)
		for k := start; k < peak; k++ {
			filter[k] = float64(k-start) / float64(peak-start)
		}
		for k := peak; k <= end; k++ {
			filter[k] = float64(end-k) / float64(end-peak)
		}
		bank[m] = filter
	}
	return bank
}

// dctMatrix returns the DCT-II basis for coefficients 1..n-1.
func dctMatrix(n int) [][]float64 {
	basis := make([][]float64, n-1)
	for k := 1; k < n; k++ {
		row := make([]float64, n)
		for i := 0; i < n; i++ {
			row[i] = math.Cos(math.Pi / float64(n) * (float64(i) + 0.5) * float64(k))
		}
		basis[k-1] = row
	}
	return basis
}
