package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/vocalsmith/api/internal/auth"
	"github.com/vocalsmith/api/internal/client"
	"github.com/vocalsmith/api/internal/config"
	"github.com/vocalsmith/api/internal/middleware"
	"github.com/vocalsmith/api/internal/service"
	"github.com/vocalsmith/api/internal/store"
)

// setupApp builds the API surface with in-memory stores, no queue client,
// and unconfigured external clients, mirroring the production route layout.
func setupApp(t *testing.T, jwtSecret string) *fiber.App {
	t.Helper()

	cfg := &config.Config{}
	cfg.Storage.DataDir = t.TempDir()
	cfg.Defaults.Genre = "pop"
	cfg.Defaults.Mood = "upbeat"
	cfg.Defaults.Tempo = 120
	cfg.Audio.VocalVolume = 1.0
	cfg.Audio.BackgroundVolume = 0.7
	cfg.Audio.OutputFormat = "wav"

	validate := validator.New()
	jobService := service.NewJobService(store.NewMemoryJobStore(), nil)
	songService := service.NewSongService(store.NewMemorySongStore(), jobService, cfg)

	songHandler := NewSongHandler(songService, validate)
	jobHandler := NewJobHandler(jobService)
	voicesHandler := NewVoicesHandler(client.NewElevenLabsClient(&config.ElevenLabsConfig{}))

	authMiddleware := middleware.NewAuthMiddleware(jwtSecret)
	rateLimiter := middleware.NewRateLimiter(nil)

	app := fiber.New(fiber.Config{BodyLimit: 110 * 1024 * 1024})
	api := app.Group("/api", authMiddleware.Authenticate())

	songs := api.Group("/songs")
	songs.Post("/", rateLimiter.SongsLimit(10000), songHandler.Create)
	songs.Get("/:id", songHandler.Get)
	songs.Post("/:id/improve", rateLimiter.ImproveLimit(10000), songHandler.Improve)
	songs.Get("/:id/lyrics", songHandler.Lyrics)
	songs.Get("/:id/download", songHandler.Download)

	jobs := api.Group("/jobs")
	jobs.Get("/:jobId", jobHandler.Status)
	jobs.Get("/:jobId/result", jobHandler.Result)

	api.Get("/voices", rateLimiter.VoicesLimit(10000), voicesHandler.List)

	return app
}

// multipartBody builds a multipart form with string fields and named files.
func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	for name, data := range files {
		filename, contentType := name+".wav", "audio/wav"
		if name == "lyricsFile" {
			filename, contentType = "lyrics.txt", "text/plain"
		}
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, name, filename))
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("create file part %s: %v", name, err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write file part %s: %v", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("parse JSON: %v\nbody: %s", err, b)
	}
	return out
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("no error object in %v", body)
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestCreateSongRequiresMaterial(t *testing.T) {
	app := setupApp(t, "")
	body, contentType := multipartBody(t, map[string]string{"title": "Empty"}, nil)

	req, _ := http.NewRequest(http.MethodPost, "/api/songs/", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
	if code := errorCode(t, parseJSON(t, resp)); code != "MISSING_INPUT" {
		t.Fatalf("code = %s, want MISSING_INPUT", code)
	}
}

func TestCreateSongBackingWithoutLyricsRejected(t *testing.T) {
	app := setupApp(t, "")
	body, contentType := multipartBody(t, nil, map[string][]byte{
		"backing": []byte("RIFFfakeaudio"),
	})

	req, _ := http.NewRequest(http.MethodPost, "/api/songs/", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
	if code := errorCode(t, parseJSON(t, resp)); code != "MISSING_INPUT" {
		t.Fatalf("code = %s, want MISSING_INPUT", code)
	}
}

func TestCreateSongWithVocalQueuesJob(t *testing.T) {
	app := setupApp(t, "")
	body, contentType := multipartBody(t,
		map[string]string{"title": "My Song", "voiceId": "voice-1"},
		map[string][]byte{"vocal": []byte("fake audio bytes")},
	)

	req, _ := http.NewRequest(http.MethodPost, "/api/songs/", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	created := parseJSON(t, resp)
	song, ok := created["song"].(map[string]interface{})
	if !ok {
		t.Fatalf("no song in response: %v", created)
	}
	jobID, _ := created["jobId"].(string)
	if jobID == "" {
		t.Fatal("expected a job ID")
	}
	if song["version"].(float64) != 1 {
		t.Fatalf("version = %v, want 1", song["version"])
	}
	if song["genre"] != "pop" {
		t.Fatalf("genre = %v, want default pop", song["genre"])
	}

	// Job is queued and visible.
	jobResp, err := app.Test(httpGet("/api/jobs/"+jobID), -1)
	if err != nil {
		t.Fatalf("job status: %v", err)
	}
	assertStatus(t, jobResp, http.StatusOK)
	status := parseJSON(t, jobResp)
	if status["status"] != "queued" {
		t.Fatalf("job status = %v, want queued", status["status"])
	}
	if status["type"] != "perfect" {
		t.Fatalf("job type = %v, want perfect", status["type"])
	}

	// Song is retrievable.
	songResp, err := app.Test(httpGet(fmt.Sprintf("/api/songs/%v", song["id"])), -1)
	if err != nil {
		t.Fatalf("get song: %v", err)
	}
	assertStatus(t, songResp, http.StatusOK)
}

func TestCreateSongWithBackingAndLyricsIsPerformance(t *testing.T) {
	app := setupApp(t, "")
	body, contentType := multipartBody(t,
		map[string]string{"lyrics": "la la la"},
		map[string][]byte{"backing": []byte("fake backing bytes")},
	)

	req, _ := http.NewRequest(http.MethodPost, "/api/songs/", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	created := parseJSON(t, resp)
	jobID, _ := created["jobId"].(string)
	jobResp, err := app.Test(httpGet("/api/jobs/"+jobID), -1)
	if err != nil {
		t.Fatalf("job status: %v", err)
	}
	status := parseJSON(t, jobResp)
	if status["type"] != "performance" {
		t.Fatalf("job type = %v, want performance", status["type"])
	}
}

func TestLyricsFileMustBeTxt(t *testing.T) {
	app := setupApp(t, "")
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="lyricsFile"; filename="lyrics.pdf"`)
	header.Set("Content-Type", "application/pdf")
	part, _ := writer.CreatePart(header)
	part.Write([]byte("not a text file"))
	writer.Close()

	req, _ := http.NewRequest(http.MethodPost, "/api/songs/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
	if code := errorCode(t, parseJSON(t, resp)); code != "VALIDATION_ERROR" {
		t.Fatalf("code = %s, want VALIDATION_ERROR", code)
	}
}

func TestImproveBumpsVersion(t *testing.T) {
	app := setupApp(t, "")
	body, contentType := multipartBody(t, nil, map[string][]byte{"vocal": []byte("fake audio")})
	req, _ := http.NewRequest(http.MethodPost, "/api/songs/", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	created := parseJSON(t, resp)
	songID := created["song"].(map[string]interface{})["id"].(string)

	improveReq, _ := http.NewRequest(http.MethodPost, "/api/songs/"+songID+"/improve",
		strings.NewReader(`{"feedback":"more energy in the chorus"}`))
	improveReq.Header.Set("Content-Type", "application/json")
	improveResp, err := app.Test(improveReq, -1)
	if err != nil {
		t.Fatalf("improve: %v", err)
	}
	assertStatus(t, improveResp, http.StatusAccepted)

	improved := parseJSON(t, improveResp)
	song := improved["song"].(map[string]interface{})
	if song["version"].(float64) != 2 {
		t.Fatalf("version = %v, want 2", song["version"])
	}
	if song["lastFeedback"] != "more energy in the chorus" {
		t.Fatalf("lastFeedback = %v", song["lastFeedback"])
	}
	if improved["jobId"] == created["jobId"] {
		t.Fatal("improve must queue a fresh job")
	}
}

func TestImproveRequiresFeedback(t *testing.T) {
	app := setupApp(t, "")
	req, _ := http.NewRequest(http.MethodPost, "/api/songs/some-id/improve",
		strings.NewReader(`{"feedback":""}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
	if code := errorCode(t, parseJSON(t, resp)); code != "VALIDATION_ERROR" {
		t.Fatalf("code = %s, want VALIDATION_ERROR", code)
	}
}

func TestImproveUnknownSong(t *testing.T) {
	app := setupApp(t, "")
	req, _ := http.NewRequest(http.MethodPost, "/api/songs/nope/improve",
		strings.NewReader(`{"feedback":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestLyricsBookkeeping(t *testing.T) {
	app := setupApp(t, "")
	body, contentType := multipartBody(t,
		map[string]string{"lyrics": "first line here\n\nsecond line"},
		map[string][]byte{"backing": []byte("fake backing")},
	)
	req, _ := http.NewRequest(http.MethodPost, "/api/songs/", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	songID := parseJSON(t, resp)["song"].(map[string]interface{})["id"].(string)

	lyricsResp, err := app.Test(httpGet("/api/songs/"+songID+"/lyrics"), -1)
	if err != nil {
		t.Fatalf("lyrics: %v", err)
	}
	assertStatus(t, lyricsResp, http.StatusOK)

	info := parseJSON(t, lyricsResp)
	if info["wordCount"].(float64) != 5 {
		t.Fatalf("wordCount = %v, want 5", info["wordCount"])
	}
	if info["lineCount"].(float64) != 2 {
		t.Fatalf("lineCount = %v, want 2 (blank lines not counted)", info["lineCount"])
	}
	if info["source"] != "text" {
		t.Fatalf("source = %v, want text", info["source"])
	}
}

func TestGetSongNotFound(t *testing.T) {
	app := setupApp(t, "")
	resp, err := app.Test(httpGet("/api/songs/does-not-exist"), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestDownloadBeforePipelineCompletes(t *testing.T) {
	app := setupApp(t, "")
	body, contentType := multipartBody(t, nil, map[string][]byte{"vocal": []byte("fake audio")})
	req, _ := http.NewRequest(http.MethodPost, "/api/songs/", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	songID := parseJSON(t, resp)["song"].(map[string]interface{})["id"].(string)

	dlResp, err := app.Test(httpGet("/api/songs/"+songID+"/download"), -1)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	assertStatus(t, dlResp, http.StatusNotFound)
}

func TestJobNotFound(t *testing.T) {
	app := setupApp(t, "")
	resp, err := app.Test(httpGet("/api/jobs/missing"), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestJobResultBeforeCompletion(t *testing.T) {
	app := setupApp(t, "")
	body, contentType := multipartBody(t, nil, map[string][]byte{"vocal": []byte("fake audio")})
	req, _ := http.NewRequest(http.MethodPost, "/api/songs/", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	jobID := parseJSON(t, resp)["jobId"].(string)

	resultResp, err := app.Test(httpGet("/api/jobs/"+jobID+"/result"), -1)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	assertStatus(t, resultResp, http.StatusConflict)
}

func TestVoicesMockFallback(t *testing.T) {
	app := setupApp(t, "")
	resp, err := app.Test(httpGet("/api/voices"), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	voices, ok := body["voices"].([]interface{})
	if !ok || len(voices) == 0 {
		t.Fatalf("expected mock voices, got %v", body)
	}
}

func TestAuthRequiredWhenSecretConfigured(t *testing.T) {
	const secret = "test-secret"
	app := setupApp(t, secret)

	resp, err := app.Test(httpGet("/api/voices"), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)

	token, err := auth.GenerateLegacyToken("test-user", "test@example.com", secret)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	authedReq := httpGet("/api/voices")
	authedReq.Header.Set("Authorization", "Bearer "+token)
	authedResp, err := app.Test(authedReq, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	assertStatus(t, authedResp, http.StatusOK)
}

func httpGet(path string) *http.Request {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	return req
}
