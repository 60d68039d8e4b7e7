package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vocalsmith/api/internal/apperr"
	"github.com/vocalsmith/api/internal/codec"
	"github.com/vocalsmith/api/internal/dsp"
	"github.com/vocalsmith/api/internal/model"
)

// PerformancePipeline is the full song flow: resolve lyrics, resolve the
// target duration, synthesize the vocal, prepare the backing track, and mix.
// The backing track is authoritative for the final duration regardless of
// the resolved target.
type PerformancePipeline struct {
	extractor   *dsp.PitchExtractor
	mixer       *dsp.Mixer
	synth       Synthesizer
	transcriber Transcriber
}

func NewPerformancePipeline(extractor *dsp.PitchExtractor, mixer *dsp.Mixer, synth Synthesizer, transcriber Transcriber) *PerformancePipeline {
	return &PerformancePipeline{
		extractor:   extractor,
		mixer:       mixer,
		synth:       synth,
		transcriber: transcriber,
	}
}

// PerformanceInput is one invocation's material. Backing is required.
// Lyrics resolution order: LyricsFile > LyricsText > transcription of Vocal.
type PerformanceInput struct {
	Vocal      []byte // optional reference recording
	Backing    []byte
	LyricsFile []byte // contents of an uploaded .txt, optional
	LyricsText string
	VoiceID    string
	Style      model.VoiceStyle

	Mix              dsp.MixSpec
	OutputFormat     string
	OutputSampleRate int
	Bitrate          string
	ArtifactDir      string
}

// PerformanceResult carries the final artifact and the resolution metadata.
// TargetDurationSec is informational: the output duration always equals the
// backing track's.
type PerformanceResult struct {
	FinalSongPath     string   `json:"finalSongPath"`
	PitchRecordPath   string   `json:"pitchRecordPath,omitempty"`
	Lyrics            string   `json:"lyrics"`
	LyricsSource      string   `json:"lyricsSource"`
	TargetDurationSec float64  `json:"targetDurationSec"`
	DurationSec       float64  `json:"durationSec"`
	Degraded          []string `json:"degraded,omitempty"`
}

// Run executes the full sequence. Input sufficiency is checked before any
// network call is issued.
func (p *PerformancePipeline) Run(ctx context.Context, in PerformanceInput, progress Progress) (*PerformanceResult, error) {
	if len(in.Backing) == 0 {
		return nil, apperr.New(apperr.KindMissingInput, "validate", "no backing track supplied")
	}
	if len(in.LyricsFile) == 0 && strings.TrimSpace(in.LyricsText) == "" && len(in.Vocal) == 0 {
		return nil, apperr.New(apperr.KindMissingInput, "validate",
			"no lyrics file, lyrics text, or vocal recording supplied")
	}
	report(progress, StateInputsValidated, 5)

	background, err := codec.Decode(ctx, in.Backing)
	if err != nil {
		return nil, err
	}
	if background.NumSamples() == 0 {
		return nil, apperr.New(apperr.KindEmptyInput, "validate", "backing track is empty")
	}

	ws, err := NewWorkspace(in.ArtifactDir)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	result := &PerformanceResult{}

	switch {
	case len(in.LyricsFile) > 0:
		text := strings.TrimSpace(string(in.LyricsFile))
		if text == "" {
			return nil, apperr.New(apperr.KindEmptyInput, "lyrics", "lyrics file contains no text")
		}
		result.Lyrics = text
		result.LyricsSource = LyricsSourceFile
	case strings.TrimSpace(in.LyricsText) != "":
		result.Lyrics = strings.TrimSpace(in.LyricsText)
		result.LyricsSource = LyricsSourceText
	default:
		var degraded bool
		result.Lyrics, result.LyricsSource, degraded = resolveTranscript(ctx, p.transcriber, in.Vocal)
		if degraded {
			result.Degraded = append(result.Degraded, "transcription")
		}
	}
	report(progress, StateLyricsResolved, 20)

	// Target duration comes from the reference vocal when supplied, from the
	// backing track otherwise. It is recorded for clients; the mixer makes
	// the backing track the authority on the output length. A supplied vocal
	// also yields a pitch/timing record for the visualization client.
	result.TargetDurationSec = background.Duration()
	if len(in.Vocal) > 0 {
		vocal, err := codec.Decode(ctx, in.Vocal)
		if err != nil {
			return nil, err
		}
		result.TargetDurationSec = vocal.Duration()

		contour := p.extractor.Extract(vocal)
		recordJSON, err := json.Marshal(contour.Record())
		if err != nil {
			return nil, fmt.Errorf("failed to serialize pitch record: %w", err)
		}
		result.PitchRecordPath, err = ws.WriteFile("pitch.json", recordJSON)
		if err != nil {
			return nil, err
		}
	}
	report(progress, StateDurationResolved, 30)

	synthesized, err := p.synth.Synthesize(ctx, model.SynthesisRequest{
		Text:    result.Lyrics,
		VoiceID: in.VoiceID,
		Style:   in.Style.Clamp(),
	})
	if err != nil {
		return nil, err
	}
	synthVocal, err := codec.Decode(ctx, synthesized.Audio)
	if err != nil {
		return nil, err
	}
	report(progress, StateVocalSynthesized, 60)

	// Background preparation: bring the backing track onto the output
	// sample-rate grid before overlay so mixing and encoding agree on the
	// frame count.
	if in.OutputSampleRate > 0 {
		background = background.Resample(in.OutputSampleRate)
	}
	report(progress, StateBackgroundPrepared, 70)

	mixed, err := p.mixer.Mix(synthVocal, background, in.Mix)
	if err != nil {
		return nil, err
	}
	result.DurationSec = mixed.Duration()
	report(progress, StateMixed, 85)

	format := in.OutputFormat
	if format == "" {
		format = "mp3"
	}
	encoded, err := codec.Encode(ctx, mixed, format, in.OutputSampleRate, in.Bitrate)
	if err != nil {
		return nil, err
	}

	result.FinalSongPath, err = ws.WriteFile("final_song."+format, encoded)
	if err != nil {
		return nil, err
	}
	if err := ws.Commit(); err != nil {
		return nil, err
	}
	report(progress, StateComplete, 100)
	return result, nil
}
