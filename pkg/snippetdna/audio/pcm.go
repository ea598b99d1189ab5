package audio

import (
	"encoding/binary"
	"errors"
	"math"
)

// BytesPerSample is the width of one signed 16-bit little-endian sample.
const BytesPerSample = 2

const scale = 1.0 / 32768.0

var ErrOddLength = errors.New("pcm payload has an odd number of bytes")

// DecodeS16LE converts little-endian int16 PCM into samples normalized to
// [-1, 1). A trailing odd byte is ignored; use Decoder to carry it over.
func DecodeS16LE(data []byte) []float64 {
	n := len(data) / BytesPerSample
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float64(s) * scale
	}
	return out
}

// DecodeS16LEStrict is DecodeS16LE for payloads that must be whole samples.
func DecodeS16LEStrict(data []byte) ([]float64, error) {
	if len(data)%BytesPerSample != 0 {
		return nil, ErrOddLength
	}
	return DecodeS16LE(data), nil
}

// EncodeS16LE converts normalized samples back to little-endian int16 PCM,
// clipping anything outside [-1, 1].
func EncodeS16LE(samples []float64) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(toInt16(v)))
	}
	return out
}

func toInt16(v float64) int16 {
	s := math.Round(v * 32768.0)
	switch {
	case s > math.MaxInt16:
		return math.MaxInt16
	case s < math.MinInt16:
		return math.MinInt16
	}
	return int16(s)
}

// StereoToMono averages interleaved left/right samples. A dangling sample
// without its pair is dropped.
func StereoToMono(stereo []float64) []float64 {
	frames := len(stereo) / 2
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		mono[i] = (stereo[2*i] + stereo[2*i+1]) * 0.5
	}
	return mono
}

// Decoder decodes a PCM byte stream delivered in arbitrary chunks. A sample
// split across two chunks is reassembled.
type Decoder struct {
	carry    [1]byte
	hasCarry bool
}

// Decode returns every complete sample available after appending chunk.
func (d *Decoder) Decode(chunk []byte) []float64 {
	if len(chunk) == 0 {
		return nil
	}
	data := chunk
	if d.hasCarry {
		data = make([]byte, 0, len(chunk)+1)
		data = append(data, d.carry[0])
		data = append(data, chunk...)
		d.hasCarry = false
	}
	if len(data)%BytesPerSample == 1 {
		d.carry[0] = data[len(data)-1]
		d.hasCarry = true
		data = data[:len(data)-1]
	}
	return DecodeS16LE(data)
}

// Reset drops any carried byte and reports whether one was dropped.
func (d *Decoder) Reset() bool {
	had := d.hasCarry
	d.hasCarry = false
	return had
}
