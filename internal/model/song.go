package model

import "time"

// Song is one generated song/workspace in the system. A song is never edited
// in place: an improve request bumps Version and regenerates artifacts under
// the same identity.
type Song struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Genre string `json:"genre,omitempty"`
	Mood  string `json:"mood,omitempty"`
	Tempo int    `json:"tempo,omitempty"`

	Lyrics       string `json:"lyrics,omitempty"`
	LyricsSource string `json:"lyricsSource,omitempty"` // "file", "text", "transcription", "placeholder"

	// VoiceID is the synthesis voice used for the perfected vocal.
	VoiceID string `json:"voiceId,omitempty"`

	// Artifact paths. Local filesystem paths or object-storage URLs.
	RawVocalPath       string `json:"rawVocalPath,omitempty"`
	PerfectedVocalPath string `json:"perfectedVocalPath,omitempty"`
	InstrumentalPath   string `json:"instrumentalPath,omitempty"`
	FinalSongPath      string `json:"finalSongPath,omitempty"`
	PitchRecordPath    string `json:"pitchRecordPath,omitempty"`
	HarmonicPath       string `json:"harmonicPath,omitempty"`
	BackgroundPath     string `json:"backgroundPath,omitempty"`

	// Degraded lists the stages that fell back to a best-effort
	// approximation (e.g. "transcription", "separation") so clients can
	// warn users without treating the song as failed.
	Degraded []string `json:"degraded,omitempty"`

	Version      int    `json:"version"`
	LastFeedback string `json:"lastFeedback,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PitchRecord is the serialized pitch/timing artifact consumed by the
// visualization client: two parallel arrays of equal length, with null
// entries for unvoiced frames.
type PitchRecord struct {
	PitchHz  []*float64 `json:"pitch_hz"`
	TimesSec []float64  `json:"times_sec"`
}
