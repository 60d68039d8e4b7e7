package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vocalsmith/api/internal/apperr"
	"github.com/vocalsmith/api/internal/config"
	"github.com/vocalsmith/api/internal/model"
)

// ElevenLabsClient handles communication with the ElevenLabs API
type ElevenLabsClient struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	modelID        string
	defaultVoiceID string
}

// voiceSettings is the wire form of the style parameters
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// ttsRequest is the request body for text-to-speech
type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// voicesResponse is the response from the voices listing endpoint
type voicesResponse struct {
	Voices []struct {
		VoiceID  string `json:"voice_id"`
		Name     string `json:"name"`
		Category string `json:"category"`
	} `json:"voices"`
}

// NewElevenLabsClient creates a new ElevenLabs API client
func NewElevenLabsClient(cfg *config.ElevenLabsConfig) *ElevenLabsClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ElevenLabsClient{
		httpClient:     &http.Client{Timeout: timeout},
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		modelID:        cfg.ModelID,
		defaultVoiceID: cfg.DefaultVoiceID,
	}
}

// Synthesize renders text as sung/spoken audio. The returned bytes are the
// raw encoded stream (MPEG by default); no validation beyond a non-empty
// 2xx body is performed.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, req model.SynthesisRequest) (*model.SynthesisResult, error) {
	if c.apiKey == "" {
		return nil, apperr.Config("synthesis", "voice synthesis API key is not set",
			"set ELEVENLABS_API_KEY or ELEVENLABS_API_KEY_FILE")
	}
	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = c.defaultVoiceID
	}
	if voiceID == "" {
		return nil, apperr.Config("synthesis", "no synthesis voice selected",
			"pass voiceId or set ELEVENLABS_VOICE_ID")
	}

	style := req.Style.Clamp()
	body, err := json.Marshal(ttsRequest{
		Text:    req.Text,
		ModelID: c.modelID,
		VoiceSettings: voiceSettings{
			Stability:       style.Stability,
			SimilarityBoost: style.Similarity,
			Style:           style.Style,
			UseSpeakerBoost: style.SpeakerBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, voiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.Wrap(apperr.KindSynthesis, "synthesis", "voice service timed out", err)
		}
		return nil, apperr.Wrap(apperr.KindSynthesis, "synthesis", "voice service unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSynthesis, "synthesis", "failed to read voice service response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := fmt.Sprintf("voice service returned status %d", resp.StatusCode)
		return nil, apperr.Wrap(apperr.KindSynthesis, "synthesis", detail,
			fmt.Errorf("%s", truncate(string(respBody), 200)))
	}
	if len(respBody) == 0 {
		return nil, apperr.New(apperr.KindSynthesis, "synthesis", "voice service returned empty audio")
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "audio/mpeg"
	}
	return &model.SynthesisResult{Audio: respBody, MIMEType: mime}, nil
}

// Voices lists the selectable synthesis voices.
func (c *ElevenLabsClient) Voices(ctx context.Context) ([]model.Voice, error) {
	if c.apiKey == "" {
		return nil, apperr.Config("voices", "voice synthesis API key is not set",
			"set ELEVENLABS_API_KEY or ELEVENLABS_API_KEY_FILE")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSynthesis, "voices", "voice service unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSynthesis, "voices", "failed to read voice service response", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("voice service returned status %d", resp.StatusCode)
		return nil, apperr.Wrap(apperr.KindSynthesis, "voices", detail,
			fmt.Errorf("%s", truncate(string(respBody), 200)))
	}

	var parsed voicesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal voices response: %w", err)
	}

	voices := make([]model.Voice, 0, len(parsed.Voices))
	for _, v := range parsed.Voices {
		voices = append(voices, model.Voice{ID: v.VoiceID, Name: v.Name, Category: v.Category})
	}
	return voices, nil
}

// DefaultVoiceID returns the configured fallback voice.
func (c *ElevenLabsClient) DefaultVoiceID() string {
	return c.defaultVoiceID
}

// IsConfigured returns true if the client has valid configuration
func (c *ElevenLabsClient) IsConfigured() bool {
	return c.apiKey != ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
