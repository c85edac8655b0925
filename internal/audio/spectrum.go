package audio

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrum geometry. The first bassLines of maxSpectrumLines logarithmic
// lines over a 2048 point FFT cover roughly 20 to 90 Hz at 44.1 kHz.
const (
	WindowSize       = 2048
	maxSpectrumLines = 16
	bassLines        = 4
)

// bassMeter turns a window of mono samples into the bass average used for
// the strip, 0..255.
type bassMeter struct {
	fft    *fourier.FFT
	window []float64 // Hann
	buf    []float64
	coeffs []complex128
	lines  [bassLines][2]int // FFT bin range per line, half-open
}

func newBassMeter() *bassMeter {
	m := &bassMeter{
		fft:    fourier.NewFFT(WindowSize),
		window: make([]float64, WindowSize),
		buf:    make([]float64, WindowSize),
	}
	for i := range m.window {
		m.window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(WindowSize-1)))
	}

	b0 := 0
	for i := 0; i < bassLines; i++ {
		b1 := int(math.Pow(2, float64(i)*10/float64(maxSpectrumLines-1)))
		if b1 > WindowSize/2-1 {
			b1 = WindowSize/2 - 1
		}
		if b1 <= b0 {
			b1 = b0 + 1
		}
		m.lines[i] = [2]int{b0, b1}
		b0 = b1
	}
	return m
}

// average returns the mean line level of the bass lines. samples must hold
// WindowSize values in [-1, 1].
func (m *bassMeter) average(samples []float64) int {
	for i, s := range samples[:WindowSize] {
		m.buf[i] = s * m.window[i]
	}
	m.coeffs = m.fft.Coefficients(m.coeffs, m.buf)

	sum := 0
	for _, line := range m.lines {
		peak := 0.0
		for b := line[0]; b < line[1]; b++ {
			// bin 0 is DC
			if v := m.magnitude(b + 1); v > peak {
				peak = v
			}
		}
		sum += lineLevel(peak)
	}
	return sum / bassLines
}

// magnitude of bin i scaled so a full-scale windowed sine reads about 1.
func (m *bassMeter) magnitude(i int) float64 {
	return cmplx.Abs(m.coeffs[i]) * 4 / WindowSize
}

// lineLevel maps a spectrum peak to 0..255.
func lineLevel(peak float64) int {
	j := int(math.Sqrt(peak)*3*255 - 4)
	return min(max(j, 0), 255)
}

// channelLevel scales the bass average by a channel's loudness, where
// level is the channel peak on a 0..255 scale.
func channelLevel(average int, level float64) uint8 {
	v := float64(average) * (1 - 1/(1+level))
	return uint8(min(max(v, 0), 255))
}
