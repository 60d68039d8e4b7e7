package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/vocalsmith/api/internal/apperr"
	"github.com/vocalsmith/api/internal/model"
	"github.com/vocalsmith/api/internal/service"
	"github.com/vocalsmith/api/internal/store"
	"github.com/vocalsmith/api/pkg/response"
)

const (
	maxAudioUploadSize  = 50 * 1024 * 1024 // 50MB
	maxLyricsUploadSize = 1 * 1024 * 1024  // 1MB
)

// Default style parameters applied when the caller omits them.
const (
	defaultStability  = 0.5
	defaultSimilarity = 0.75
	defaultStyle      = 0.0
)

var validAudioTypes = map[string]bool{
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/wave":  true,
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/mp4":   true,
	"audio/x-m4a": true,
	"audio/aac":   true,
	"audio/x-aac": true,
	"audio/ogg":   true,
	"audio/flac":  true,
	"audio/webm":  true,
}

type SongHandler struct {
	service   *service.SongService
	validator *validator.Validate
}

func NewSongHandler(svc *service.SongService, v *validator.Validate) *SongHandler {
	return &SongHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/songs. Multipart form: optional vocal and
// backing audio files, an optional lyrics .txt file or lyrics text field,
// plus scalar metadata. The pipeline job is queued; the response is the
// persisted song and its job ID.
func (h *SongHandler) Create(c *fiber.Ctx) error {
	params := service.CreateSongParams{
		Title:      c.FormValue("title"),
		Genre:      c.FormValue("genre"),
		Mood:       c.FormValue("mood"),
		LyricsText: c.FormValue("lyrics"),
		VoiceID:    c.FormValue("voiceId"),
		Stability:  formFloat(c, "stability", defaultStability),
		Similarity: formFloat(c, "similarity", defaultSimilarity),
		Style:      formFloat(c, "style", defaultStyle),
	}
	if tempo := c.FormValue("tempo"); tempo != "" {
		v, err := strconv.Atoi(tempo)
		if err != nil || v <= 0 {
			return response.ValidationError(c, "tempo must be a positive integer", nil)
		}
		params.Tempo = v
	}

	if file, err := c.FormFile("vocal"); err == nil {
		data, name, vErr := readAudioUpload(c, file)
		if vErr != nil {
			return vErr
		}
		params.Vocal = data
		params.VocalFilename = name
	}
	if file, err := c.FormFile("backing"); err == nil {
		data, name, vErr := readAudioUpload(c, file)
		if vErr != nil {
			return vErr
		}
		params.Backing = data
		params.BackingName = name
	}
	if file, err := c.FormFile("lyricsFile"); err == nil {
		if file.Size > maxLyricsUploadSize {
			return response.ValidationError(c, "Lyrics file exceeds 1MB limit", nil)
		}
		if ext := strings.ToLower(filepath.Ext(file.Filename)); ext != ".txt" {
			return response.ValidationError(c, "Lyrics file must be a .txt file", map[string]interface{}{
				"filename": file.Filename,
			})
		}
		data, err := readUpload(file)
		if err != nil {
			return response.ServiceError(c, "Failed to read lyrics file")
		}
		params.LyricsFile = data
		params.LyricsFileName = file.Filename
	}

	result, err := h.service.Create(c.Context(), params)
	if err != nil {
		if apperr.KindOf(err) != "" {
			return response.PipelineError(c, err)
		}
		return response.ServiceError(c, err.Error())
	}
	return response.Accepted(c, result)
}

// Get handles GET /api/songs/:id
func (h *SongHandler) Get(c *fiber.Ctx) error {
	song, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Song not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, song)
}

// Improve handles POST /api/songs/:id/improve. Feedback bumps the version
// and queues a regeneration over the original uploads.
func (h *SongHandler) Improve(c *fiber.Ctx) error {
	var req model.SongImproveRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Improve(c.Context(), c.Params("id"), req.Feedback)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Song not found")
		}
		if apperr.KindOf(err) != "" {
			return response.PipelineError(c, err)
		}
		return response.ServiceError(c, err.Error())
	}
	return response.Accepted(c, result)
}

// Lyrics handles GET /api/songs/:id/lyrics. Returns the resolved lyrics
// with word/line bookkeeping once a pipeline run has produced them.
func (h *SongHandler) Lyrics(c *fiber.Ctx) error {
	song, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Song not found")
		}
		return response.ServiceError(c, err.Error())
	}
	if song.Lyrics == "" {
		return response.NotFound(c, "Song has no lyrics yet")
	}

	info := model.LyricsInfo{
		Text:      song.Lyrics,
		WordCount: len(strings.Fields(song.Lyrics)),
		Source:    song.LyricsSource,
	}
	for _, line := range strings.Split(song.Lyrics, "\n") {
		if strings.TrimSpace(line) != "" {
			info.LineCount++
		}
	}
	return response.OK(c, info)
}

// Download handles GET /api/songs/:id/download. Sends the final mix when
// present, otherwise the perfected vocal, with a human-friendly filename.
func (h *SongHandler) Download(c *fiber.Ctx) error {
	song, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Song not found")
		}
		return response.ServiceError(c, err.Error())
	}

	path := song.FinalSongPath
	if path == "" {
		path = song.PerfectedVocalPath
	}
	if path == "" {
		return response.NotFound(c, "Song has no downloadable artifact yet")
	}

	filename := fmt.Sprintf("%s_v%d%s", sanitizeFilename(song.Title), song.Version, filepath.Ext(path))
	return c.Download(path, filename)
}

func readAudioUpload(c *fiber.Ctx, file *multipart.FileHeader) ([]byte, string, error) {
	if file.Size > maxAudioUploadSize {
		return nil, "", response.ValidationError(c, "Audio file exceeds 50MB limit", map[string]interface{}{
			"maxSize":  maxAudioUploadSize,
			"fileSize": file.Size,
		})
	}
	contentType := file.Header.Get("Content-Type")
	if contentType != "" && !validAudioTypes[contentType] {
		return nil, "", response.ValidationError(c, "Invalid audio type. Supported: WAV, MP3, M4A, AAC, OGG, FLAC", map[string]interface{}{
			"contentType": contentType,
		})
	}
	data, err := readUpload(file)
	if err != nil {
		return nil, "", response.ServiceError(c, "Failed to read uploaded file")
	}
	return data, file.Filename, nil
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func formFloat(c *fiber.Ctx, key string, fallback float64) float64 {
	raw := c.FormValue(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "song"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "song"
	}
	return b.String()
}

// formatValidationErrors turns validator errors into a field-keyed map.
func formatValidationErrors(err error) map[string]string {
	out := make(map[string]string)
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		for _, fe := range vErrs {
			out[fe.Field()] = fmt.Sprintf("failed on %s validation", fe.Tag())
		}
	}
	return out
}
