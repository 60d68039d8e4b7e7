package codec

import (
	"math"
	"testing"

	"github.com/vocalsmith/api/internal/apperr"
	"github.com/vocalsmith/api/internal/dsp"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	n := 4410
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/44100)
	}
	src := dsp.NewMono(samples, 44100)

	decoded, err := DecodeWAV(EncodeWAV(src))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.SampleRate != 44100 {
		t.Fatalf("sample rate = %d, want 44100", decoded.SampleRate)
	}
	if decoded.NumChannels() != 1 {
		t.Fatalf("channels = %d, want 1", decoded.NumChannels())
	}
	if decoded.NumSamples() != n {
		t.Fatalf("samples = %d, want %d", decoded.NumSamples(), n)
	}
	for i := 0; i < n; i += 100 {
		if diff := math.Abs(decoded.Channels[0][i] - samples[i]); diff > 1.0/32000 {
			t.Fatalf("sample %d: got %f, want %f", i, decoded.Channels[0][i], samples[i])
		}
	}
}

func TestEncodeDecodeStereo(t *testing.T) {
	left := []float64{0.1, 0.2, 0.3, 0.4}
	right := []float64{-0.1, -0.2, -0.3, -0.4}
	src := &dsp.Buffer{Channels: [][]float64{left, right}, SampleRate: 22050}

	decoded, err := DecodeWAV(EncodeWAV(src))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.NumChannels() != 2 {
		t.Fatalf("channels = %d, want 2", decoded.NumChannels())
	}
	if math.Abs(decoded.Channels[1][2]-right[2]) > 1.0/32000 {
		t.Fatalf("right[2] = %f, want %f", decoded.Channels[1][2], right[2])
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeWAV([]byte("definitely not audio data, just text"))
	if !apperr.IsKind(err, apperr.KindDecode) {
		t.Fatalf("err = %v, want DECODE_ERROR", err)
	}
}

func TestDecodeRejectsTruncatedHeader(t *testing.T) {
	wav := EncodeWAV(dsp.NewMono([]float64{0.1, 0.2}, 8000))
	_, err := DecodeWAV(wav[:10])
	if !apperr.IsKind(err, apperr.KindDecode) {
		t.Fatalf("err = %v, want DECODE_ERROR", err)
	}
}

func TestEncodeClampsOverrange(t *testing.T) {
	src := dsp.NewMono([]float64{2.0, -2.0}, 8000)
	decoded, err := DecodeWAV(EncodeWAV(src))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Channels[0][0] > 1.0 || decoded.Channels[0][1] < -1.0 {
		t.Fatalf("overrange samples not clamped: %v", decoded.Channels[0])
	}
}
