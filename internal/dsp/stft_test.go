package dsp

import (
	"math"
	"testing"
)

func TestSTFTRoundTrip(t *testing.T) {
	n := 8192
	x := make([]float64, n)
	for i := range x {
		x[i] = 0.4*math.Sin(2*math.Pi*220*float64(i)/22050) +
			0.2*math.Sin(2*math.Pi*557*float64(i)/22050)
	}

	spec := stft(x, 2048, 512)
	y := istft(spec, 2048, 512, n)

	if len(y) != n {
		t.Fatalf("reconstructed length = %d, want %d", len(y), n)
	}
	for i := 1024; i < n-1024; i++ {
		if math.Abs(y[i]-x[i]) > 1e-6 {
			t.Fatalf("sample %d: got %g, want %g", i, y[i], x[i])
		}
	}
}

func TestSTFTFrameCount(t *testing.T) {
	x := make([]float64, 10000)
	spec := stft(x, 2048, 512)
	if want := len(x)/512 + 1; len(spec) != want {
		t.Fatalf("frames = %d, want %d", len(spec), want)
	}
}

func TestHannWindowEndpoints(t *testing.T) {
	w := hannWindow(2048)
	if w[0] > 1e-12 || w[2047] > 1e-12 {
		t.Fatalf("window endpoints not ~0: %g, %g", w[0], w[2047])
	}
	if math.Abs(w[1024]-1) > 0.001 {
		t.Fatalf("window midpoint = %f, want ~1", w[1024])
	}
}
