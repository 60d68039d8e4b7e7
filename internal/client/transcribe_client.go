package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/vocalsmith/api/internal/config"
	"github.com/vocalsmith/api/internal/model"
)

// TranscribeClient talks to an OpenAI-compatible Whisper transcription
// endpoint. It never returns a hard error for service problems: a failed or
// unreachable service yields a Transcript with the service_error outcome so
// callers can degrade to placeholder text.
type TranscribeClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// transcriptionResponse is the JSON body of a transcription result
type transcriptionResponse struct {
	Text string `json:"text"`
}

// NewTranscribeClient creates a new transcription client
func NewTranscribeClient(cfg *config.TranscribeConfig) *TranscribeClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &TranscribeClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

// Transcribe sends the audio to the transcription endpoint and returns the
// best-effort transcript.
func (c *TranscribeClient) Transcribe(ctx context.Context, audio []byte, filename string) model.Transcript {
	if c.apiKey == "" {
		return model.Transcript{
			Outcome: model.TranscriptServiceError,
			Detail:  "transcription API key is not set",
		}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return model.Transcript{Outcome: model.TranscriptServiceError, Detail: err.Error()}
	}
	if _, err := part.Write(audio); err != nil {
		return model.Transcript{Outcome: model.TranscriptServiceError, Detail: err.Error()}
	}
	_ = writer.WriteField("model", c.model)
	_ = writer.WriteField("response_format", "json")
	if err := writer.Close(); err != nil {
		return model.Transcript{Outcome: model.TranscriptServiceError, Detail: err.Error()}
	}

	url := c.baseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return model.Transcript{Outcome: model.TranscriptServiceError, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Transcript{
			Outcome: model.TranscriptServiceError,
			Detail:  "transcription service unreachable: " + err.Error(),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Transcript{Outcome: model.TranscriptServiceError, Detail: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return model.Transcript{
			Outcome: model.TranscriptServiceError,
			Detail:  fmt.Sprintf("transcription service returned status %d", resp.StatusCode),
		}
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return model.Transcript{Outcome: model.TranscriptServiceError, Detail: err.Error()}
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return model.Transcript{Outcome: model.TranscriptNoSpeech, Detail: "no speech recognized"}
	}
	return model.Transcript{Text: text, Outcome: model.TranscriptOK}
}

// IsConfigured returns true if the client has valid configuration
func (c *TranscribeClient) IsConfigured() bool {
	return c.apiKey != ""
}
