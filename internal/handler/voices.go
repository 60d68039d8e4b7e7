package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vocalsmith/api/internal/client"
	"github.com/vocalsmith/api/internal/model"
	"github.com/vocalsmith/api/pkg/response"
)

// VoicesHandler lists the selectable synthesis voices. Without a configured
// voice client it serves a fixed mock list so the UI stays usable in local
// development.
type VoicesHandler struct {
	client *client.ElevenLabsClient
}

func NewVoicesHandler(c *client.ElevenLabsClient) *VoicesHandler {
	return &VoicesHandler{client: c}
}

var mockVoices = []model.Voice{
	{ID: "mock-voice-1", Name: "Aria (mock)", Category: "premade"},
	{ID: "mock-voice-2", Name: "Dorian (mock)", Category: "premade"},
	{ID: "mock-voice-3", Name: "Vera (mock)", Category: "premade"},
}

// List handles GET /api/voices
func (h *VoicesHandler) List(c *fiber.Ctx) error {
	if h.client == nil || !h.client.IsConfigured() {
		return response.OK(c, model.VoicesResponse{Voices: mockVoices})
	}

	voices, err := h.client.Voices(c.Context())
	if err != nil {
		return response.PipelineError(c, err)
	}
	return response.OK(c, model.VoicesResponse{Voices: voices})
}
