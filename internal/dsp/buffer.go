// Package dsp implements the signal-processing core: pitch/timing
// extraction, harmonic/percussive separation, and duration-aligned mixing.
// All stages operate on decoded Buffers; container formats are handled by
// the codec package.
package dsp

import "math"

// Buffer is a decoded waveform: one sample slice per channel plus an
// explicit sample rate. A Buffer is owned by the stage that decoded it until
// handed downstream; stages never mutate a buffer another stage still reads.
type Buffer struct {
	Channels   [][]float64
	SampleRate int
}

// NewMono wraps a single-channel sample slice.
func NewMono(samples []float64, sampleRate int) *Buffer {
	return &Buffer{Channels: [][]float64{samples}, SampleRate: sampleRate}
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int { return len(b.Channels) }

// NumSamples returns the per-channel sample count.
func (b *Buffer) NumSamples() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate == 0 {
		return 0
	}
	return float64(b.NumSamples()) / float64(b.SampleRate)
}

// Mono averages all channels into a single mono slice. A mono buffer
// returns a copy so the caller can hand it downstream freely.
func (b *Buffer) Mono() []float64 {
	n := b.NumSamples()
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if len(b.Channels) == 1 {
		copy(out, b.Channels[0])
		return out
	}
	scale := 1.0 / float64(len(b.Channels))
	for _, ch := range b.Channels {
		for i, s := range ch {
			out[i] += s * scale
		}
	}
	return out
}

// Downmix reduces the buffer to n channels by averaging the extras into the
// kept ones. Used to reconcile mismatched channel counts before overlay.
func (b *Buffer) Downmix(n int) *Buffer {
	if n <= 0 || n >= b.NumChannels() {
		return b
	}
	if n == 1 {
		return NewMono(b.Mono(), b.SampleRate)
	}
	out := make([][]float64, n)
	for c := range out {
		out[c] = make([]float64, b.NumSamples())
	}
	// Fold each source channel into a target channel round-robin.
	counts := make([]int, n)
	for c, ch := range b.Channels {
		t := c % n
		counts[t]++
		for i, s := range ch {
			out[t][i] += s
		}
	}
	for c := range out {
		scale := 1.0 / float64(counts[c])
		for i := range out[c] {
			out[c][i] *= scale
		}
	}
	return &Buffer{Channels: out, SampleRate: b.SampleRate}
}

// Resample converts the buffer to the target rate with linear
// interpolation. Good enough for analysis; distribution encoding resamples
// with the codec instead.
func (b *Buffer) Resample(target int) *Buffer {
	if target <= 0 || target == b.SampleRate || b.NumSamples() == 0 {
		return b
	}
	ratio := float64(b.SampleRate) / float64(target)
	n := int(math.Floor(float64(b.NumSamples()) * float64(target) / float64(b.SampleRate)))
	out := make([][]float64, len(b.Channels))
	for c, ch := range b.Channels {
		dst := make([]float64, n)
		for i := range dst {
			pos := float64(i) * ratio
			j := int(pos)
			if j >= len(ch)-1 {
				dst[i] = ch[len(ch)-1]
				continue
			}
			frac := pos - float64(j)
			dst[i] = ch[j]*(1-frac) + ch[j+1]*frac
		}
		out[c] = dst
	}
	return &Buffer{Channels: out, SampleRate: target}
}

// RMS returns the root-mean-square level of the mono mix, for silence
// detection and loudness assertions.
func (b *Buffer) RMS() float64 {
	mono := b.Mono()
	if len(mono) == 0 {
		return 0
	}
	var sum float64
	for _, s := range mono {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(mono)))
}
