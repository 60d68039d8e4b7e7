package model

import "time"

// JobStatus represents the lifecycle of a background pipeline job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job types
const (
	JobTypePerfect     = "perfect"
	JobTypePerformance = "performance"
)

// Job represents a background pipeline invocation.
type Job struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"` // "perfect" or "performance"
	SongID      string     `json:"songId"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	ErrorCode   string     `json:"errorCode,omitempty"` // apperr kind of the failure
	Payload     []byte     `json:"-"`                   // stored as JSON
	Result      []byte     `json:"-"`                   // stored as JSON
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// PipelineJobPayload carries the inputs for either pipeline type. File paths
// reference uploads already staged in the song's artifact directory.
type PipelineJobPayload struct {
	SongID      string  `json:"songId"`
	VocalPath   string  `json:"vocalPath,omitempty"`
	BackingPath string  `json:"backingPath,omitempty"`
	LyricsPath  string  `json:"lyricsPath,omitempty"`
	LyricsText  string  `json:"lyricsText,omitempty"`
	VoiceID     string  `json:"voiceId,omitempty"`
	Stability   float64 `json:"stability"`
	Similarity  float64 `json:"similarity"`
	Style       float64 `json:"style"`

	VocalVolume      float64 `json:"vocalVolume"`
	BackgroundVolume float64 `json:"backgroundVolume"`
}

// JobStatusResponse is the API view of a job.
type JobStatusResponse struct {
	JobID       string     `json:"jobId"`
	Type        string     `json:"type"`
	SongID      string     `json:"songId"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	ErrorCode   string     `json:"errorCode,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// JobResult is persisted when a pipeline invocation completes.
type JobResult struct {
	SongID             string   `json:"songId"`
	FinalSongPath      string   `json:"finalSongPath,omitempty"`
	PerfectedVocalPath string   `json:"perfectedVocalPath,omitempty"`
	PitchRecordPath    string   `json:"pitchRecordPath,omitempty"`
	Degraded           []string `json:"degraded,omitempty"`
	DurationSec        float64  `json:"durationSec,omitempty"`
}
