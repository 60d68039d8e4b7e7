package dsp

import (
	"math"

	"github.com/vocalsmith/api/internal/apperr"
)

// MixSpec carries the linear gain multipliers for a mix. Both must be
// strictly positive: a multiplier of exactly zero has no decibel
// representation and is rejected before any audio is touched.
type MixSpec struct {
	VocalVolume      float64
	BackgroundVolume float64
}

// Mixer overlays a synthesized vocal onto a backing track. The backing
// track is authoritative for the output duration: the vocal is padded with
// tail silence or truncated to match, and the background is never altered
// in length.
type Mixer struct{}

func NewMixer() *Mixer { return &Mixer{} }

// Mix aligns, gains, and overlays the two streams. Steps, in order:
// decode reconciliation (rate + channels), vocal pad/trim to background
// length, linear→dB→gain per stream, sample-wise sum, clamp.
func (m *Mixer) Mix(vocal, background *Buffer, spec MixSpec) (*Buffer, error) {
	if spec.VocalVolume <= 0 {
		return nil, apperr.Config("mix", "vocal volume must be > 0",
			"a gain multiplier of zero has no decibel representation")
	}
	if spec.BackgroundVolume <= 0 {
		return nil, apperr.Config("mix", "background volume must be > 0",
			"a gain multiplier of zero has no decibel representation")
	}
	if background == nil || background.NumSamples() == 0 {
		return nil, apperr.New(apperr.KindEmptyInput, "mix", "backing track is empty")
	}
	if vocal == nil {
		vocal = NewMono(nil, background.SampleRate)
	}

	if vocal.SampleRate != background.SampleRate {
		vocal = vocal.Resample(background.SampleRate)
	}

	// Mismatched channel counts: downmix to the lower count.
	channels := background.NumChannels()
	if vocal.NumChannels() > 0 && vocal.NumChannels() < channels {
		channels = vocal.NumChannels()
	}
	background = background.Downmix(channels)
	vocal = vocal.Downmix(channels)

	target := background.NumSamples()

	vocalGain := gainFromVolume(spec.VocalVolume)
	bgGain := gainFromVolume(spec.BackgroundVolume)

	out := make([][]float64, channels)
	for c := 0; c < channels; c++ {
		dst := make([]float64, target)
		bg := background.Channels[c]
		var vc []float64
		if c < vocal.NumChannels() {
			vc = vocal.Channels[c]
		}
		for i := 0; i < target; i++ {
			sample := bg[i] * bgGain
			if i < len(vc) {
				sample += vc[i] * vocalGain
			}
			if sample > 1 {
				sample = 1
			} else if sample < -1 {
				sample = -1
			}
			dst[i] = sample
		}
		out[c] = dst
	}

	return &Buffer{Channels: out, SampleRate: background.SampleRate}, nil
}

// gainFromVolume converts a linear multiplier to a decibel offset and back
// to the amplitude scale actually applied.
func gainFromVolume(volume float64) float64 {
	db := 20 * math.Log10(volume)
	return math.Pow(10, db/20)
}
