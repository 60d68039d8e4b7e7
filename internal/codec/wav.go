// Package codec is the file-format boundary: it decodes arbitrary audio
// containers into dsp.Buffers and encodes buffers back out. WAV is the
// canonical internal representation and is handled in pure Go; compressed
// containers go through ffmpeg.
package codec

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/vocalsmith/api/internal/apperr"
	"github.com/vocalsmith/api/internal/dsp"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// IsWAV reports whether the bytes carry a RIFF/WAVE header.
func IsWAV(b []byte) bool {
	return len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WAVE"))
}

// DecodeWAV parses a RIFF/WAVE byte stream into a Buffer. Supports 16-bit
// PCM and 32-bit float, any channel count.
func DecodeWAV(b []byte) (*dsp.Buffer, error) {
	if !IsWAV(b) {
		return nil, apperr.New(apperr.KindDecode, "decode", "not a RIFF/WAVE stream")
	}

	var (
		format     uint16
		channels   uint16
		sampleRate uint32
		bitDepth   uint16
		data       []byte
	)

	pos := 12
	for pos+8 <= len(b) {
		chunkID := string(b[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8
		if body+chunkSize > len(b) {
			chunkSize = len(b) - body
		}
		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, apperr.New(apperr.KindDecode, "decode", "truncated fmt chunk")
			}
			format = binary.LittleEndian.Uint16(b[body : body+2])
			channels = binary.LittleEndian.Uint16(b[body+2 : body+4])
			sampleRate = binary.LittleEndian.Uint32(b[body+4 : body+8])
			bitDepth = binary.LittleEndian.Uint16(b[body+14 : body+16])
		case "data":
			data = b[body : body+chunkSize]
		}
		pos = body + chunkSize
		if chunkSize%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}

	if channels == 0 || sampleRate == 0 || data == nil {
		return nil, apperr.New(apperr.KindDecode, "decode", "missing fmt or data chunk")
	}

	nCh := int(channels)
	switch {
	case format == wavFormatPCM && bitDepth == 16:
		frameBytes := 2 * nCh
		n := len(data) / frameBytes
		out := makeChannels(nCh, n)
		for i := 0; i < n; i++ {
			base := i * frameBytes
			for c := 0; c < nCh; c++ {
				v := int16(binary.LittleEndian.Uint16(data[base+2*c : base+2*c+2]))
				out[c][i] = float64(v) / 32768.0
			}
		}
		return &dsp.Buffer{Channels: out, SampleRate: int(sampleRate)}, nil

	case format == wavFormatFloat && bitDepth == 32:
		frameBytes := 4 * nCh
		n := len(data) / frameBytes
		out := makeChannels(nCh, n)
		for i := 0; i < n; i++ {
			base := i * frameBytes
			for c := 0; c < nCh; c++ {
				u := binary.LittleEndian.Uint32(data[base+4*c : base+4*c+4])
				out[c][i] = float64(math.Float32frombits(u))
			}
		}
		return &dsp.Buffer{Channels: out, SampleRate: int(sampleRate)}, nil
	}

	return nil, apperr.New(apperr.KindDecode, "decode", "unsupported WAV encoding")
}

// EncodeWAV writes the buffer as 16-bit PCM RIFF/WAVE.
func EncodeWAV(buf *dsp.Buffer) []byte {
	nCh := buf.NumChannels()
	n := buf.NumSamples()
	dataSize := n * nCh * 2

	out := &bytes.Buffer{}
	out.Grow(44 + dataSize)

	out.WriteString("RIFF")
	writeU32(out, uint32(36+dataSize))
	out.WriteString("WAVE")

	out.WriteString("fmt ")
	writeU32(out, 16)
	writeU16(out, wavFormatPCM)
	writeU16(out, uint16(nCh))
	writeU32(out, uint32(buf.SampleRate))
	writeU32(out, uint32(buf.SampleRate*nCh*2)) // byte rate
	writeU16(out, uint16(nCh*2))                // block align
	writeU16(out, 16)                           // bits per sample

	out.WriteString("data")
	writeU32(out, uint32(dataSize))
	for i := 0; i < n; i++ {
		for c := 0; c < nCh; c++ {
			s := buf.Channels[c][i]
			if s > 1 {
				s = 1
			} else if s < -1 {
				s = -1
			}
			writeU16(out, uint16(int16(s*32767)))
		}
	}
	return out.Bytes()
}

func makeChannels(nCh, n int) [][]float64 {
	out := make([][]float64, nCh)
	for c := range out {
		out[c] = make([]float64, n)
	}
	return out
}

func writeU16(b *bytes.Buffer, v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.Write(tmp[:])
}

func writeU32(b *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.Write(tmp[:])
}
