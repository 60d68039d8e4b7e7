package dsp

import (
	"math"
	"testing"
)

func sineBuffer(freq, amplitude float64, durationSec float64, sampleRate int) *Buffer {
	n := int(durationSec * float64(sampleRate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return NewMono(samples, sampleRate)
}

func TestContourLengthMatchesFrameGrid(t *testing.T) {
	cfg := DefaultPitchConfig()
	e := NewPitchExtractor(cfg)
	buf := sineBuffer(440, 0.5, 1.0, cfg.SampleRate)

	contour := e.Extract(buf)

	expected := buf.NumSamples() / cfg.HopLength
	if diff := len(contour.Frames) - expected; diff < -1 || diff > 1 {
		t.Fatalf("contour length = %d, want %d within one frame", len(contour.Frames), expected)
	}
}

func TestContourTimesStrictlyIncreasing(t *testing.T) {
	e := NewPitchExtractor(DefaultPitchConfig())
	contour := e.Extract(sineBuffer(220, 0.5, 0.5, 22050))

	for i := 1; i < len(contour.Frames); i++ {
		if contour.Frames[i].Time <= contour.Frames[i-1].Time {
			t.Fatalf("times not strictly increasing at frame %d: %f <= %f",
				i, contour.Frames[i].Time, contour.Frames[i-1].Time)
		}
	}
}

func TestSilenceIsAllUnvoiced(t *testing.T) {
	e := NewPitchExtractor(DefaultPitchConfig())
	contour := e.Extract(NewMono(make([]float64, 22050), 22050))

	if len(contour.Frames) == 0 {
		t.Fatal("expected frames for a 1s buffer")
	}
	for i, f := range contour.Frames {
		if f.Voiced || f.F0 != nil {
			t.Fatalf("frame %d of silence marked voiced", i)
		}
	}
}

func TestSineDetectedNearTrueFrequency(t *testing.T) {
	e := NewPitchExtractor(DefaultPitchConfig())
	contour := e.Extract(sineBuffer(440, 0.5, 1.0, 22050))

	var voiced int
	var estimates []float64
	for _, f := range contour.Frames {
		if f.Voiced && f.F0 != nil {
			voiced++
			estimates = append(estimates, *f.F0)
		}
	}
	if voiced < len(contour.Frames)/2 {
		t.Fatalf("only %d/%d frames voiced for a steady tone", voiced, len(contour.Frames))
	}

	var sum float64
	for _, f0 := range estimates {
		sum += f0
	}
	mean := sum / float64(len(estimates))
	if math.Abs(mean-440) > 15 {
		t.Fatalf("mean F0 = %f, want ~440", mean)
	}
}

func TestInputResampledToAnalysisRate(t *testing.T) {
	cfg := DefaultPitchConfig()
	e := NewPitchExtractor(cfg)
	// 44.1kHz input, same duration: contour length must match the 22050
	// analysis grid, not the input grid.
	buf := sineBuffer(330, 0.5, 1.0, 44100)
	contour := e.Extract(buf)

	expected := int(buf.Duration()*float64(cfg.SampleRate)) / cfg.HopLength
	if diff := len(contour.Frames) - expected; diff < -1 || diff > 1 {
		t.Fatalf("contour length = %d, want %d within one frame", len(contour.Frames), expected)
	}
}

func TestRecordParallelArrays(t *testing.T) {
	e := NewPitchExtractor(DefaultPitchConfig())
	contour := e.Extract(sineBuffer(440, 0.5, 0.25, 22050))

	rec := contour.Record()
	if len(rec.PitchHz) != len(rec.TimesSec) {
		t.Fatalf("array lengths differ: %d vs %d", len(rec.PitchHz), len(rec.TimesSec))
	}
	if len(rec.PitchHz) != len(contour.Frames) {
		t.Fatalf("record length %d, contour length %d", len(rec.PitchHz), len(contour.Frames))
	}
	for i, f := range contour.Frames {
		if f.Voiced && rec.PitchHz[i] == nil {
			t.Fatalf("voiced frame %d serialized as null", i)
		}
		if !f.Voiced && rec.PitchHz[i] != nil {
			t.Fatalf("unvoiced frame %d serialized with a value", i)
		}
	}
}
