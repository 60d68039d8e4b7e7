package dsp

import (
	"math"
	"testing"
)

func TestMonoAveragesChannels(t *testing.T) {
	buf := &Buffer{
		Channels:   [][]float64{{1, 0, -1}, {0, 1, -1}},
		SampleRate: 8000,
	}
	mono := buf.Mono()
	want := []float64{0.5, 0.5, -1}
	for i := range want {
		if math.Abs(mono[i]-want[i]) > 1e-12 {
			t.Fatalf("mono[%d] = %f, want %f", i, mono[i], want[i])
		}
	}
}

func TestMonoReturnsCopy(t *testing.T) {
	buf := NewMono([]float64{0.1, 0.2}, 8000)
	mono := buf.Mono()
	mono[0] = 9
	if buf.Channels[0][0] != 0.1 {
		t.Fatal("Mono must not alias the buffer's samples")
	}
}

func TestResampleScalesLength(t *testing.T) {
	buf := sineBuffer(440, 0.5, 1, 44100)
	out := buf.Resample(22050)
	if out.SampleRate != 22050 {
		t.Fatalf("rate = %d, want 22050", out.SampleRate)
	}
	if got, want := out.NumSamples(), 22050; got != want {
		t.Fatalf("samples = %d, want %d", got, want)
	}
	if math.Abs(out.Duration()-buf.Duration()) > 0.001 {
		t.Fatalf("duration changed: %f vs %f", out.Duration(), buf.Duration())
	}
}

func TestResampleNoopOnSameRate(t *testing.T) {
	buf := NewMono([]float64{0.1, 0.2}, 8000)
	if out := buf.Resample(8000); out != buf {
		t.Fatal("same-rate resample should return the buffer unchanged")
	}
}

func TestDownmixStereoToMono(t *testing.T) {
	buf := &Buffer{
		Channels:   [][]float64{{0.4, 0.4}, {0.2, 0.2}},
		SampleRate: 8000,
	}
	out := buf.Downmix(1)
	if out.NumChannels() != 1 {
		t.Fatalf("channels = %d, want 1", out.NumChannels())
	}
	if math.Abs(out.Channels[0][0]-0.3) > 1e-12 {
		t.Fatalf("downmixed sample = %f, want 0.3", out.Channels[0][0])
	}
}

func TestDurationFromSampleCount(t *testing.T) {
	buf := NewMono(make([]float64, 4000), 8000)
	if buf.Duration() != 0.5 {
		t.Fatalf("duration = %f, want 0.5", buf.Duration())
	}
}

func TestRMSOfConstantSignal(t *testing.T) {
	samples := make([]float64, 1000)
	for i := range samples {
		samples[i] = 0.5
	}
	buf := NewMono(samples, 8000)
	if math.Abs(buf.RMS()-0.5) > 1e-12 {
		t.Fatalf("RMS = %f, want 0.5", buf.RMS())
	}
}
