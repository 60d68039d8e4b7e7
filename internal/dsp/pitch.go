package dsp

import (
	"math"

	"github.com/vocalsmith/api/internal/model"
)

// PitchConfig bounds the F0 search and fixes the frame grid.
type PitchConfig struct {
	FMin        float64
	FMax        float64
	FrameLength int
	HopLength   int
	SampleRate  int // canonical analysis rate; input is resampled to this
}

// DefaultPitchConfig mirrors the analysis defaults: 50–2000 Hz search range,
// 2048-sample frames, 256-sample hop, 22050 Hz analysis rate.
func DefaultPitchConfig() PitchConfig {
	return PitchConfig{
		FMin:        50,
		FMax:        2000,
		FrameLength: 2048,
		HopLength:   256,
		SampleRate:  22050,
	}
}

// PitchFrame is one analysis frame of the contour. F0 is nil when the frame
// is unvoiced, never zero or an arbitrary number.
type PitchFrame struct {
	Time   float64
	F0     *float64
	Voiced bool
}

// PitchContour is the ordered per-frame F0 track. Times are strictly
// increasing and spaced hop/sampleRate apart.
type PitchContour struct {
	Frames     []PitchFrame
	HopLength  int
	SampleRate int
}

// Record serializes the contour into the parallel-array form the
// visualization client consumes.
func (c *PitchContour) Record() *model.PitchRecord {
	rec := &model.PitchRecord{
		PitchHz:  make([]*float64, len(c.Frames)),
		TimesSec: make([]float64, len(c.Frames)),
	}
	for i, f := range c.Frames {
		rec.PitchHz[i] = f.F0
		rec.TimesSec[i] = f.Time
	}
	return rec
}

// PitchExtractor estimates a fundamental-frequency contour using per-frame
// YIN candidates smoothed by a two-state (voiced/unvoiced) Viterbi pass.
// Extraction never fails on a valid buffer: pathological input degrades to
// an all-unvoiced contour.
type PitchExtractor struct {
	cfg PitchConfig
}

func NewPitchExtractor(cfg PitchConfig) *PitchExtractor {
	if cfg.SampleRate == 0 {
		cfg = DefaultPitchConfig()
	}
	return &PitchExtractor{cfg: cfg}
}

// frameCandidate is the best YIN estimate for a single frame.
type frameCandidate struct {
	f0     float64
	weight float64 // voicing evidence in [0,1]
}

// Extract analyses the whole buffer and returns one frame per hop position,
// timestamped at i*hop/sampleRate.
func (e *PitchExtractor) Extract(buf *Buffer) *PitchContour {
	cfg := e.cfg
	mono := buf.Resample(cfg.SampleRate).Mono()

	nFrames := len(mono)/cfg.HopLength + 1
	cands := make([]frameCandidate, nFrames)

	tauMin := int(float64(cfg.SampleRate) / cfg.FMax)
	if tauMin < 2 {
		tauMin = 2
	}
	tauMax := int(float64(cfg.SampleRate) / cfg.FMin)
	if tauMax > cfg.FrameLength/2 {
		tauMax = cfg.FrameLength / 2
	}

	frame := make([]float64, cfg.FrameLength)
	half := cfg.FrameLength / 2
	for i := 0; i < nFrames; i++ {
		start := i*cfg.HopLength - half
		for k := range frame {
			idx := start + k
			if idx >= 0 && idx < len(mono) {
				frame[k] = mono[idx]
			} else {
				frame[k] = 0
			}
		}
		cands[i] = yinFrame(frame, cfg.SampleRate, tauMin, tauMax)
	}

	voiced := viterbiVoicing(cands)

	contour := &PitchContour{
		Frames:     make([]PitchFrame, nFrames),
		HopLength:  cfg.HopLength,
		SampleRate: cfg.SampleRate,
	}
	for i := range contour.Frames {
		t := float64(i*cfg.HopLength) / float64(cfg.SampleRate)
		if voiced[i] && cands[i].f0 > 0 {
			f0 := cands[i].f0
			contour.Frames[i] = PitchFrame{Time: t, F0: &f0, Voiced: true}
		} else {
			contour.Frames[i] = PitchFrame{Time: t}
		}
	}
	return contour
}

// yinFrame runs the YIN difference function with cumulative-mean
// normalization over one frame and returns the best lag below threshold,
// refined by parabolic interpolation.
func yinFrame(x []float64, sampleRate, tauMin, tauMax int) frameCandidate {
	n := len(x)
	w := n / 2

	// Silence guard: a frame with no energy has no pitch.
	var energy float64
	for _, s := range x {
		energy += s * s
	}
	if energy/float64(n) < 1e-10 || math.IsNaN(energy) || math.IsInf(energy, 0) {
		return frameCandidate{}
	}

	d := make([]float64, tauMax+1)
	for tau := tauMin; tau <= tauMax; tau++ {
		var sum float64
		for j := 0; j < w; j++ {
			diff := x[j] - x[j+tau]
			sum += diff * diff
		}
		d[tau] = sum
	}

	// Cumulative mean normalized difference.
	cmnd := make([]float64, tauMax+1)
	var running float64
	for tau := tauMin; tau <= tauMax; tau++ {
		running += d[tau]
		if running == 0 {
			cmnd[tau] = 1
		} else {
			cmnd[tau] = d[tau] * float64(tau-tauMin+1) / running
		}
	}

	const threshold = 0.15
	best := -1
	for tau := tauMin; tau <= tauMax; tau++ {
		if cmnd[tau] < threshold {
			// Walk down to the local minimum of this dip.
			for tau+1 <= tauMax && cmnd[tau+1] < cmnd[tau] {
				tau++
			}
			best = tau
			break
		}
	}
	if best < 0 {
		// No dip under threshold: take the global minimum but report weak
		// evidence so the Viterbi pass can mark the frame unvoiced.
		minVal := math.Inf(1)
		for tau := tauMin; tau <= tauMax; tau++ {
			if cmnd[tau] < minVal {
				minVal = cmnd[tau]
				best = tau
			}
		}
		if best < 0 || minVal > 0.8 {
			return frameCandidate{}
		}
	}

	lag := float64(best)
	if best > tauMin && best < tauMax {
		// Parabolic interpolation around the minimum.
		a, b, c := cmnd[best-1], cmnd[best], cmnd[best+1]
		denom := a - 2*b + c
		if math.Abs(denom) > 1e-12 {
			lag += (a - c) / (2 * denom)
		}
	}

	f0 := float64(sampleRate) / lag
	weight := 1 - cmnd[best]
	if weight < 0 {
		weight = 0
	}
	return frameCandidate{f0: f0, weight: weight}
}

// viterbiVoicing smooths per-frame voicing evidence with a two-state HMM so
// isolated flickers do not toggle the voiced flag frame-to-frame.
func viterbiVoicing(cands []frameCandidate) []bool {
	n := len(cands)
	if n == 0 {
		return nil
	}

	const (
		pStay   = 0.9 // probability of staying in the same state
		pSwitch = 1 - pStay
	)
	logStay := math.Log(pStay)
	logSwitch := math.Log(pSwitch)

	emit := func(i int, voiced bool) float64 {
		w := cands[i].weight
		if cands[i].f0 <= 0 {
			w = 0
		}
		// Clamp away from 0/1 to keep logs finite.
		if w < 1e-3 {
			w = 1e-3
		}
		if w > 1-1e-3 {
			w = 1 - 1e-3
		}
		if voiced {
			return math.Log(w)
		}
		return math.Log(1 - w)
	}

	// scores[state]: 0 = unvoiced, 1 = voiced
	prevU := emit(0, false)
	prevV := emit(0, true)
	back := make([][2]int, n)

	for i := 1; i < n; i++ {
		fromUU := prevU + logStay
		fromVU := prevV + logSwitch
		curU := fromUU
		back[i][0] = 0
		if fromVU > fromUU {
			curU = fromVU
			back[i][0] = 1
		}

		fromVV := prevV + logStay
		fromUV := prevU + logSwitch
		curV := fromVV
		back[i][1] = 1
		if fromUV > fromVV {
			curV = fromUV
			back[i][1] = 0
		}

		prevU = curU + emit(i, false)
		prevV = curV + emit(i, true)
	}

	out := make([]bool, n)
	state := 0
	if prevV > prevU {
		state = 1
	}
	for i := n - 1; i >= 0; i-- {
		out[i] = state == 1
		state = back[i][state]
	}
	return out
}
