package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// hannWindow returns an n-point Hann window.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// stft computes a centered short-time Fourier transform. Frame i covers
// samples around i*hop; edges are zero-padded so every hop position gets a
// frame and frame count is len(x)/hop + 1.
func stft(x []float64, frameLength, hop int) [][]complex128 {
	win := hannWindow(frameLength)
	fft := fourier.NewFFT(frameLength)

	frames := len(x)/hop + 1
	spec := make([][]complex128, frames)
	buf := make([]float64, frameLength)
	half := frameLength / 2

	for i := 0; i < frames; i++ {
		start := i*hop - half
		for k := 0; k < frameLength; k++ {
			idx := start + k
			if idx >= 0 && idx < len(x) {
				buf[k] = x[idx] * win[k]
			} else {
				buf[k] = 0
			}
		}
		spec[i] = fft.Coefficients(nil, buf)
	}
	return spec
}

// istft reconstructs a length-n signal from a centered STFT via weighted
// overlap-add, compensating the analysis window.
func istft(spec [][]complex128, frameLength, hop, n int) []float64 {
	win := hannWindow(frameLength)
	fft := fourier.NewFFT(frameLength)

	out := make([]float64, n)
	norm := make([]float64, n)
	half := frameLength / 2
	scale := 1.0 / float64(frameLength) // gonum's Sequence is unnormalized

	frame := make([]float64, frameLength)
	for i, coeffs := range spec {
		frame = fft.Sequence(frame, coeffs)
		start := i*hop - half
		for k := 0; k < frameLength; k++ {
			idx := start + k
			if idx < 0 || idx >= n {
				continue
			}
			out[idx] += frame[k] * scale * win[k]
			norm[idx] += win[k] * win[k]
		}
	}
	for i := range out {
		if norm[i] > 1e-8 {
			out[i] /= norm[i]
		}
	}
	return out
}

// magnitudes converts a complex spectrogram to per-frame magnitude rows.
func magnitudes(spec [][]complex128) [][]float64 {
	mags := make([][]float64, len(spec))
	for t, row := range spec {
		m := make([]float64, len(row))
		for f, c := range row {
			m[f] = math.Hypot(real(c), imag(c))
		}
		mags[t] = m
	}
	return mags
}
