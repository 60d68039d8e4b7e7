package dsp

import (
	"math"
	"sort"
)

// SeparatorConfig parameterizes the harmonic/percussive decomposition. The
// background blend weights are empirical defaults carried in configuration,
// not invariants.
type SeparatorConfig struct {
	FrameLength      int
	HopLength        int
	Kernel           int // median-filter length, odd
	PercussiveWeight float64
	HarmonicWeight   float64
}

// DefaultSeparatorConfig uses a 2048/512 STFT grid with a 17-point median
// kernel and the 0.7/0.3 background blend.
func DefaultSeparatorConfig() SeparatorConfig {
	return SeparatorConfig{
		FrameLength:      2048,
		HopLength:        512,
		Kernel:           17,
		PercussiveWeight: 0.7,
		HarmonicWeight:   0.3,
	}
}

// SeparatedComponents is the outcome of a decomposition. When Degraded is
// true, separation was unavailable: Harmonic and Percussive are nil and
// Background carries the unmodified source signal. A nil Harmonic means
// "separation unavailable", never silence.
type SeparatedComponents struct {
	Harmonic   *Buffer
	Percussive *Buffer
	Background *Buffer
	Degraded   bool
}

// Separator decomposes a mono signal into sustained (harmonic-like) and
// transient (percussive-like) components by median filtering the magnitude
// spectrogram along time and frequency respectively, then reconstructing
// each with the original phase.
type Separator struct {
	cfg SeparatorConfig
}

func NewSeparator(cfg SeparatorConfig) *Separator {
	if cfg.FrameLength == 0 {
		cfg = DefaultSeparatorConfig()
	}
	if cfg.Kernel%2 == 0 {
		cfg.Kernel++
	}
	return &Separator{cfg: cfg}
}

// Separate never returns an error: inputs too short to analyse (or inputs
// that produce non-finite spectra) degrade to "whole signal is background".
func (s *Separator) Separate(buf *Buffer) *SeparatedComponents {
	cfg := s.cfg
	mono := buf.Mono()
	sr := buf.SampleRate

	if len(mono) < cfg.FrameLength || !allFinite(mono) {
		return s.degraded(mono, sr)
	}

	spec := stft(mono, cfg.FrameLength, cfg.HopLength)
	mags := magnitudes(spec)

	harmMag := medianFilterTime(mags, cfg.Kernel)
	percMag := medianFilterFreq(mags, cfg.Kernel)

	// Soft Wiener-style masks from the enhanced magnitudes.
	harmSpec := make([][]complex128, len(spec))
	percSpec := make([][]complex128, len(spec))
	for t := range spec {
		hRow := make([]complex128, len(spec[t]))
		pRow := make([]complex128, len(spec[t]))
		for f := range spec[t] {
			h2 := harmMag[t][f] * harmMag[t][f]
			p2 := percMag[t][f] * percMag[t][f]
			denom := h2 + p2
			if denom < 1e-12 {
				continue // both masks zero: no energy to assign
			}
			hRow[f] = spec[t][f] * complex(h2/denom, 0)
			pRow[f] = spec[t][f] * complex(p2/denom, 0)
		}
		harmSpec[t] = hRow
		percSpec[t] = pRow
	}

	harm := istft(harmSpec, cfg.FrameLength, cfg.HopLength, len(mono))
	perc := istft(percSpec, cfg.FrameLength, cfg.HopLength, len(mono))

	if !allFinite(harm) || !allFinite(perc) {
		return s.degraded(mono, sr)
	}

	// Background keeps a minority harmonic share: real backing tracks carry
	// sustained non-vocal content that pure percussive isolation discards.
	background := make([]float64, len(mono))
	for i := range background {
		background[i] = cfg.PercussiveWeight*perc[i] + cfg.HarmonicWeight*harm[i]
	}

	return &SeparatedComponents{
		Harmonic:   NewMono(harm, sr),
		Percussive: NewMono(perc, sr),
		Background: NewMono(background, sr),
	}
}

func (s *Separator) degraded(mono []float64, sr int) *SeparatedComponents {
	bg := make([]float64, len(mono))
	copy(bg, mono)
	return &SeparatedComponents{
		Background: NewMono(bg, sr),
		Degraded:   true,
	}
}

// medianFilterTime filters each frequency bin across time, emphasizing
// sustained harmonic energy.
func medianFilterTime(mags [][]float64, kernel int) [][]float64 {
	nT := len(mags)
	if nT == 0 {
		return nil
	}
	nF := len(mags[0])
	out := make([][]float64, nT)
	for t := range out {
		out[t] = make([]float64, nF)
	}
	half := kernel / 2
	col := make([]float64, 0, kernel)
	for f := 0; f < nF; f++ {
		for t := 0; t < nT; t++ {
			col = col[:0]
			for dt := -half; dt <= half; dt++ {
				tt := t + dt
				if tt >= 0 && tt < nT {
					col = append(col, mags[tt][f])
				}
			}
			out[t][f] = median(col)
		}
	}
	return out
}

// medianFilterFreq filters each frame across frequency, emphasizing
// broadband transient energy.
func medianFilterFreq(mags [][]float64, kernel int) [][]float64 {
	out := make([][]float64, len(mags))
	half := kernel / 2
	win := make([]float64, 0, kernel)
	for t, row := range mags {
		dst := make([]float64, len(row))
		for f := range row {
			win = win[:0]
			for df := -half; df <= half; df++ {
				ff := f + df
				if ff >= 0 && ff < len(row) {
					win = append(win, row[ff])
				}
			}
			dst[f] = median(win)
		}
		out[t] = dst
	}
	return out
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	tmp := make([]float64, len(v))
	copy(tmp, v)
	sort.Float64s(tmp)
	mid := len(tmp) / 2
	if len(tmp)%2 == 1 {
		return tmp[mid]
	}
	return (tmp[mid-1] + tmp[mid]) / 2
}

func allFinite(v []float64) bool {
	for _, s := range v {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return false
		}
	}
	return true
}
