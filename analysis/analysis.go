// Package analysis computes offline level and spectral metrics for
// rendered audio.
package analysis

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	vecmath "github.com/cwbudde/algo-vecmath"
)

// maxCentroidFFT bounds the spectral frame so analysis stays cheap on
// long renders.
const maxCentroidFFT = 1 << 15

// Metrics summarizes one channel of a rendered texture.
type Metrics struct {
	Peak     float64 // largest absolute sample
	RMS      float64 // root mean square level
	CrestDB  float64 // peak-to-RMS ratio in dB, 0 for silence
	DCOffset float64 // mean sample value
	Centroid float64 // spectral centroid in Hz, 0 for silence
}

// Analyze computes the metrics of a mono signal sampled at rate Hz.
func Analyze(x []float64, rate float64) (Metrics, error) {
	if err := validateInput(x, rate); err != nil {
		return Metrics{}, err
	}

	m := Metrics{
		Peak:     vecmath.MaxAbs(x),
		RMS:      math.Sqrt(vecmath.DotProduct(x, x) / float64(len(x))),
		DCOffset: vecmath.Sum(x) / float64(len(x)),
	}

	if m.RMS > 0 {
		m.CrestDB = 20 * math.Log10(m.Peak/m.RMS)
	}

	centroid, err := Centroid(x, rate)
	if err != nil {
		return Metrics{}, err
	}

	m.Centroid = centroid

	return m, nil
}

// Centroid returns the magnitude-weighted mean frequency in Hz of a
// Hann-windowed frame taken from the middle of x.
func Centroid(x []float64, rate float64) (float64, error) {
	if err := validateInput(x, rate); err != nil {
		return 0, err
	}

	fftSize := nextPowerOf2(len(x))
	if fftSize > maxCentroidFFT {
		fftSize = maxCentroidFFT
	}

	frame := x
	if len(frame) > fftSize {
		start := (len(frame) - fftSize) / 2
		frame = frame[start : start+fftSize]
	}

	in := make([]complex128, fftSize)

	denom := float64(len(frame) - 1)
	if denom <= 0 {
		denom = 1
	}

	for i, s := range frame {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/denom))
		in[i] = complex(s*w, 0)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return 0, fmt.Errorf("centroid fft plan: %w", err)
	}

	out := make([]complex128, fftSize)
	if err := plan.Forward(out, in); err != nil {
		return 0, fmt.Errorf("centroid fft: %w", err)
	}

	bins := fftSize/2 + 1
	re := make([]float64, bins)
	im := make([]float64, bins)

	for i := range bins {
		re[i] = real(out[i])
		im[i] = imag(out[i])
	}

	mags := make([]float64, bins)
	vecmath.Magnitude(mags, re, im)

	binHz := rate / float64(fftSize)
	weighted := 0.0
	total := 0.0

	for k, m := range mags {
		weighted += float64(k) * binHz * m
		total += m
	}

	if total == 0 {
		return 0, nil
	}

	return weighted / total, nil
}

func validateInput(x []float64, rate float64) error {
	if len(x) == 0 {
		return fmt.Errorf("analysis input must not be empty")
	}

	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("sample rate must be positive and finite: %f", rate)
	}

	return nil
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}

	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
