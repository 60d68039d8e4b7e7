package codec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/vocalsmith/api/internal/apperr"
	"github.com/vocalsmith/api/internal/dsp"
)

// ffmpegBin is a var so tests can point it at a stub.
var ffmpegBin = "ffmpeg"

// Decode turns any audio container into a Buffer. WAV streams are handled
// in-process; everything else is transcoded to WAV through an ffmpeg pipe.
func Decode(ctx context.Context, data []byte) (*dsp.Buffer, error) {
	if len(data) == 0 {
		return nil, apperr.New(apperr.KindEmptyInput, "decode", "audio input is empty")
	}
	if IsWAV(data) {
		return DecodeWAV(data)
	}

	cmd := exec.CommandContext(ctx, ffmpegBin,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "wav", "-acodec", "pcm_s16le",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := "ffmpeg could not decode the input"
		if s := stderr.String(); s != "" {
			detail = fmt.Sprintf("ffmpeg could not decode the input: %s", firstLine(s))
		}
		return nil, apperr.Wrap(apperr.KindDecode, "decode", detail, err)
	}
	return DecodeWAV(stdout.Bytes())
}

// Encode renders the buffer in the requested output format. "wav" stays
// in-process; "mp3" (or any other ffmpeg-supported format) goes through an
// ffmpeg pipe at the given sample rate and bitrate.
func Encode(ctx context.Context, buf *dsp.Buffer, format string, sampleRate int, bitrate string) ([]byte, error) {
	if sampleRate > 0 && buf.SampleRate != sampleRate {
		buf = buf.Resample(sampleRate)
	}
	wav := EncodeWAV(buf)
	if format == "" || format == "wav" {
		return wav, nil
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", format,
	}
	if bitrate != "" {
		args = append(args, "-b:a", bitrate)
	}
	if sampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(sampleRate))
	}
	args = append(args, "pipe:1")

	cmd := exec.CommandContext(ctx, ffmpegBin, args...)
	cmd.Stdin = bytes.NewReader(wav)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := fmt.Sprintf("ffmpeg could not encode %s output", format)
		if s := stderr.String(); s != "" {
			detail += ": " + firstLine(s)
		}
		return nil, apperr.Wrap(apperr.KindDecode, "encode", detail, err)
	}
	return stdout.Bytes(), nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
