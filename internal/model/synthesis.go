package model

// VoiceStyle holds the style parameters for a synthesis request. All values
// are clamped to [0,1] by the caller before the request is issued.
type VoiceStyle struct {
	Stability    float64 `json:"stability"`
	Similarity   float64 `json:"similarity"`
	Style        float64 `json:"style"`
	SpeakerBoost bool    `json:"speakerBoost"`
}

// Clamp bounds every parameter into [0,1].
func (s VoiceStyle) Clamp() VoiceStyle {
	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}
	s.Stability = clamp(s.Stability)
	s.Similarity = clamp(s.Similarity)
	s.Style = clamp(s.Style)
	return s
}

// SynthesisRequest is the contract with the voice-synthesis collaborator.
// Text must be non-empty after trimming; VoiceID falls back to the configured
// default when empty.
type SynthesisRequest struct {
	Text    string
	VoiceID string
	Style   VoiceStyle
}

// SynthesisResult is the opaque encoded-audio outcome of a synthesis call.
// The bytes are not validated beyond "decodable".
type SynthesisResult struct {
	Audio    []byte
	MIMEType string
}

// Voice is one selectable synthesis voice.
type Voice struct {
	ID       string `json:"voiceId"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// TranscriptOutcome distinguishes the three transcription results.
type TranscriptOutcome string

const (
	// TranscriptOK: usable text was produced.
	TranscriptOK TranscriptOutcome = "ok"
	// TranscriptNoSpeech: the service answered but could not understand
	// the audio. Not a hard failure.
	TranscriptNoSpeech TranscriptOutcome = "no_speech"
	// TranscriptServiceError: the service was unreachable or errored.
	// Not a hard failure either: callers degrade to a placeholder.
	TranscriptServiceError TranscriptOutcome = "service_error"
)

// Transcript is the best-effort result of the transcription collaborator.
type Transcript struct {
	Text    string
	Outcome TranscriptOutcome
	Detail  string
}
