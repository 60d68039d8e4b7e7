// Package pipeline contains the two orchestrators that turn raw uploads
// into finished artifacts. Stages run strictly in sequence within one
// invocation; concurrency comes from running independent invocations on
// separate workers.
package pipeline

import (
	"context"
	"strings"

	"github.com/vocalsmith/api/internal/model"
)

// PlaceholderTranscript is substituted when no lyrics are available and the
// transcription collaborator fails or is not configured. Producing output
// with placeholder text is preferred over aborting.
const PlaceholderTranscript = "This is a placeholder transcription. Replace with Whisper or another ASR output."

// Lyrics sources, recorded so clients can tell how the text was obtained.
const (
	LyricsSourceFile          = "file"
	LyricsSourceText          = "text"
	LyricsSourceTranscription = "transcription"
	LyricsSourcePlaceholder   = "placeholder"
)

// State is a named step in an orchestrator's lifecycle.
type State string

// PerfectedVocalPipeline states.
const (
	StateReceived       State = "received"
	StatePitchExtracted State = "pitch_extracted"
	StateTextReady      State = "text_ready"
	StateSynthesizing   State = "synthesizing"
)

// PerformancePipeline states.
const (
	StateInputsValidated    State = "inputs_validated"
	StateLyricsResolved     State = "lyrics_resolved"
	StateDurationResolved   State = "duration_resolved"
	StateVocalSynthesized   State = "vocal_synthesized"
	StateBackgroundPrepared State = "background_prepared"
	StateMixed              State = "mixed"
)

// Terminal states shared by both orchestrators.
const (
	StateComplete State = "complete"
	StateFailed   State = "failed"
)

// Synthesizer is the voice-synthesis collaborator boundary.
type Synthesizer interface {
	Synthesize(ctx context.Context, req model.SynthesisRequest) (*model.SynthesisResult, error)
}

// Transcriber is the speech-recognition collaborator boundary. It reports
// degraded outcomes in the Transcript rather than returning errors.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) model.Transcript
}

// Progress receives state transitions as the pipeline advances. May be nil.
type Progress func(state State, percent int)

func report(p Progress, state State, percent int) {
	if p != nil {
		p(state, percent)
	}
}

// resolveTranscript picks lyrics text by falling back from the transcription
// collaborator to the placeholder. The vocal bytes are the reference
// recording to transcribe.
func resolveTranscript(ctx context.Context, t Transcriber, vocal []byte) (text, source string, degraded bool) {
	if t != nil && len(vocal) > 0 {
		tr := t.Transcribe(ctx, vocal, "vocal.wav")
		if tr.Outcome == model.TranscriptOK && strings.TrimSpace(tr.Text) != "" {
			return strings.TrimSpace(tr.Text), LyricsSourceTranscription, false
		}
	}
	return PlaceholderTranscript, LyricsSourcePlaceholder, true
}

// audioExt maps a synthesis MIME type to a file extension.
func audioExt(mime string) string {
	switch {
	case strings.Contains(mime, "wav"):
		return ".wav"
	case strings.Contains(mime, "ogg"):
		return ".ogg"
	default:
		return ".mp3"
	}
}
