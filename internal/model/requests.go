package model

import "time"

// SongCreateResponse is returned when a song is accepted for generation.
type SongCreateResponse struct {
	Song  *Song  `json:"song"`
	JobID string `json:"jobId"`
}

// SongImproveRequest carries feedback for a regeneration pass.
type SongImproveRequest struct {
	Feedback string `json:"feedback" validate:"required,min=1"`
}

// SongImproveResponse is returned when a regeneration is queued.
type SongImproveResponse struct {
	Song  *Song  `json:"song"`
	JobID string `json:"jobId"`
}

// VoicesResponse lists the selectable synthesis voices.
type VoicesResponse struct {
	Voices []Voice `json:"voices"`
}

// LyricsInfo is bookkeeping computed when lyrics are accepted.
type LyricsInfo struct {
	Text      string `json:"text"`
	WordCount int    `json:"wordCount"`
	LineCount int    `json:"lineCount"`
	Source    string `json:"source"`
}

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

type WSMessage struct {
	Type string `json:"type"`
}

type WSProgressMessage struct {
	Type        string    `json:"type"`
	JobID       string    `json:"jobId"`
	Progress    int       `json:"progress"`
	Status      JobStatus `json:"status"`
	CurrentStep string    `json:"currentStep,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

type WSCompleteMessage struct {
	Type   string      `json:"type"`
	JobID  string      `json:"jobId"`
	Result interface{} `json:"result"`
}

type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}
