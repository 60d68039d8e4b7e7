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

// PerfectedVocalPipeline rebuilds a raw vocal take as a synthesized
// "perfected" vocal. Sequence: decode, pitch extraction, separation, text
// resolution, synthesis, artifact persistence.
type PerfectedVocalPipeline struct {
	extractor   *dsp.PitchExtractor
	separator   *dsp.Separator
	synth       Synthesizer
	transcriber Transcriber
}

func NewPerfectedVocalPipeline(extractor *dsp.PitchExtractor, separator *dsp.Separator, synth Synthesizer, transcriber Transcriber) *PerfectedVocalPipeline {
	return &PerfectedVocalPipeline{
		extractor:   extractor,
		separator:   separator,
		synth:       synth,
		transcriber: transcriber,
	}
}

// PerfectedInput is one invocation's material.
type PerfectedInput struct {
	Vocal       []byte // raw recording, any supported container
	LyricsText  string // optional; transcription fallback applies when empty
	VoiceID     string
	Style       model.VoiceStyle
	ArtifactDir string
}

// PerfectedResult carries the persisted artifact paths. HarmonicPath is
// empty when separation degraded.
type PerfectedResult struct {
	PitchRecordPath    string   `json:"pitchRecordPath"`
	HarmonicPath       string   `json:"harmonicPath,omitempty"`
	BackgroundPath     string   `json:"backgroundPath"`
	PerfectedVocalPath string   `json:"perfectedVocalPath"`
	Lyrics             string   `json:"lyrics"`
	LyricsSource       string   `json:"lyricsSource"`
	Degraded           []string `json:"degraded,omitempty"`
	DurationSec        float64  `json:"durationSec"`
}

// Run executes the full sequence. Degraded stages (separation,
// transcription) are recorded in the result and never abort; a decode or
// synthesis failure aborts with the originating stage attached.
func (p *PerfectedVocalPipeline) Run(ctx context.Context, in PerfectedInput, progress Progress) (*PerfectedResult, error) {
	report(progress, StateReceived, 5)

	if len(in.Vocal) == 0 {
		return nil, apperr.New(apperr.KindMissingInput, "decode", "no vocal recording supplied")
	}
	buf, err := codec.Decode(ctx, in.Vocal)
	if err != nil {
		return nil, err
	}

	ws, err := NewWorkspace(in.ArtifactDir)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	result := &PerfectedResult{}

	// Pitch extraction never fails on decodable input; pathological audio
	// degrades to an all-unvoiced contour.
	contour := p.extractor.Extract(buf)
	recordJSON, err := json.Marshal(contour.Record())
	if err != nil {
		return nil, fmt.Errorf("failed to serialize pitch record: %w", err)
	}
	result.PitchRecordPath, err = ws.WriteFile("pitch.json", recordJSON)
	if err != nil {
		return nil, err
	}

	components := p.separator.Separate(buf)
	if components.Degraded {
		result.Degraded = append(result.Degraded, "separation")
	} else {
		result.HarmonicPath, err = ws.WriteFile("harmonic.wav", codec.EncodeWAV(components.Harmonic))
		if err != nil {
			return nil, err
		}
	}
	result.BackgroundPath, err = ws.WriteFile("background.wav", codec.EncodeWAV(components.Background))
	if err != nil {
		return nil, err
	}
	report(progress, StatePitchExtracted, 35)

	text := strings.TrimSpace(in.LyricsText)
	source := LyricsSourceText
	if text == "" {
		var degraded bool
		text, source, degraded = resolveTranscript(ctx, p.transcriber, in.Vocal)
		if degraded {
			result.Degraded = append(result.Degraded, "transcription")
		}
	}
	result.Lyrics = text
	result.LyricsSource = source
	report(progress, StateTextReady, 50)

	report(progress, StateSynthesizing, 60)
	synthesized, err := p.synth.Synthesize(ctx, model.SynthesisRequest{
		Text:    text,
		VoiceID: in.VoiceID,
		Style:   in.Style.Clamp(),
	})
	if err != nil {
		return nil, err
	}

	result.PerfectedVocalPath, err = ws.WriteFile("perfected_vocal"+audioExt(synthesized.MIMEType), synthesized.Audio)
	if err != nil {
		return nil, err
	}
	result.DurationSec = buf.Duration()

	if err := ws.Commit(); err != nil {
		return nil, err
	}
	report(progress, StateComplete, 100)
	return result, nil
}
