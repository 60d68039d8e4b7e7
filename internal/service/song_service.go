package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vocalsmith/api/internal/apperr"
	"github.com/vocalsmith/api/internal/config"
	"github.com/vocalsmith/api/internal/model"
	"github.com/vocalsmith/api/internal/store"
)

// CreateSongParams is the material accepted for a new song. Vocal, Backing,
// and LyricsFile are raw upload bytes; empty slices mean "not supplied".
type CreateSongParams struct {
	Title      string
	Genre      string
	Mood       string
	Tempo      int
	LyricsText string
	VoiceID    string

	Stability  float64
	Similarity float64
	Style      float64

	Vocal          []byte
	VocalFilename  string
	Backing        []byte
	BackingName    string
	LyricsFile     []byte
	LyricsFileName string
}

// SongService owns song lifecycle: staging uploads, persisting metadata, and
// queueing pipeline jobs. Which pipeline runs is decided here: a backing
// track means the full performance flow, a lone vocal means the perfected
// vocal flow.
type SongService struct {
	songs store.SongStore
	jobs  *JobService
	cfg   *config.Config
}

func NewSongService(songs store.SongStore, jobs *JobService, cfg *config.Config) *SongService {
	return &SongService{
		songs: songs,
		jobs:  jobs,
		cfg:   cfg,
	}
}

// Create stages the uploads, persists a new song, and queues its pipeline
// job.
func (s *SongService) Create(ctx context.Context, params CreateSongParams) (*model.SongCreateResponse, error) {
	jobType, err := choosePipeline(params)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	song := &model.Song{
		ID:        uuid.New().String(),
		Title:     params.Title,
		Genre:     params.Genre,
		Mood:      params.Mood,
		Tempo:     params.Tempo,
		VoiceID:   params.VoiceID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if song.Title == "" {
		song.Title = "Untitled"
	}
	if song.Genre == "" {
		song.Genre = s.cfg.Defaults.Genre
	}
	if song.Mood == "" {
		song.Mood = s.cfg.Defaults.Mood
	}
	if song.Tempo == 0 {
		song.Tempo = s.cfg.Defaults.Tempo
	}

	uploadDir := s.songDir(song.ID)
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create song directory: %w", err)
	}

	payload := &model.PipelineJobPayload{
		SongID:           song.ID,
		LyricsText:       strings.TrimSpace(params.LyricsText),
		VoiceID:          params.VoiceID,
		Stability:        params.Stability,
		Similarity:       params.Similarity,
		Style:            params.Style,
		VocalVolume:      s.cfg.Audio.VocalVolume,
		BackgroundVolume: s.cfg.Audio.BackgroundVolume,
	}

	if len(params.Vocal) > 0 {
		path := filepath.Join(uploadDir, "raw_vocal"+uploadExt(params.VocalFilename, ".wav"))
		if err := os.WriteFile(path, params.Vocal, 0o644); err != nil {
			return nil, fmt.Errorf("failed to stage vocal upload: %w", err)
		}
		song.RawVocalPath = path
		payload.VocalPath = path
	}
	if len(params.Backing) > 0 {
		path := filepath.Join(uploadDir, "backing"+uploadExt(params.BackingName, ".wav"))
		if err := os.WriteFile(path, params.Backing, 0o644); err != nil {
			return nil, fmt.Errorf("failed to stage backing upload: %w", err)
		}
		song.InstrumentalPath = path
		payload.BackingPath = path
	}
	if len(params.LyricsFile) > 0 {
		path := filepath.Join(uploadDir, "lyrics.txt")
		if err := os.WriteFile(path, params.LyricsFile, 0o644); err != nil {
			return nil, fmt.Errorf("failed to stage lyrics upload: %w", err)
		}
		payload.LyricsPath = path
	}
	if payload.LyricsText != "" {
		song.Lyrics = payload.LyricsText
		song.LyricsSource = "text"
	}

	if err := s.songs.Create(ctx, song); err != nil {
		return nil, fmt.Errorf("failed to persist song: %w", err)
	}

	job, err := s.jobs.Enqueue(ctx, jobType, payload)
	if err != nil {
		return nil, err
	}

	return &model.SongCreateResponse{Song: song, JobID: job.ID}, nil
}

// Get returns a song by ID.
func (s *SongService) Get(ctx context.Context, id string) (*model.Song, error) {
	return s.songs.Get(ctx, id)
}

// Improve bumps the song version, records the feedback, and queues a fresh
// pipeline invocation over the originally staged uploads. Artifacts are
// regenerated, never edited in place.
func (s *SongService) Improve(ctx context.Context, id, feedback string) (*model.SongImproveResponse, error) {
	song, err := s.songs.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	payload := &model.PipelineJobPayload{
		SongID:           song.ID,
		VocalPath:        song.RawVocalPath,
		BackingPath:      song.InstrumentalPath,
		LyricsText:       song.Lyrics,
		VoiceID:          song.VoiceID,
		VocalVolume:      s.cfg.Audio.VocalVolume,
		BackgroundVolume: s.cfg.Audio.BackgroundVolume,
	}
	if lyricsPath := filepath.Join(s.songDir(song.ID), "lyrics.txt"); fileExists(lyricsPath) {
		payload.LyricsPath = lyricsPath
	}

	jobType := model.JobTypePerfect
	if song.InstrumentalPath != "" {
		jobType = model.JobTypePerformance
	}

	song.Version++
	song.LastFeedback = feedback
	song.UpdatedAt = time.Now()
	if err := s.songs.Update(ctx, song); err != nil {
		return nil, fmt.Errorf("failed to persist song: %w", err)
	}

	job, err := s.jobs.Enqueue(ctx, jobType, payload)
	if err != nil {
		return nil, err
	}

	return &model.SongImproveResponse{Song: song, JobID: job.ID}, nil
}

// ArtifactDir returns the directory the pipeline writes a song's artifacts
// into.
func (s *SongService) ArtifactDir(songID string) string {
	return s.songDir(songID)
}

func (s *SongService) songDir(songID string) string {
	return filepath.Join(s.cfg.Storage.DataDir, "songs", songID)
}

// choosePipeline decides which orchestrator a song needs and rejects
// insufficient material before anything is staged.
func choosePipeline(params CreateSongParams) (string, error) {
	hasVocal := len(params.Vocal) > 0
	hasBacking := len(params.Backing) > 0
	hasLyrics := len(params.LyricsFile) > 0 || strings.TrimSpace(params.LyricsText) != ""

	switch {
	case hasBacking && (hasVocal || hasLyrics):
		return model.JobTypePerformance, nil
	case hasBacking:
		return "", apperr.New(apperr.KindMissingInput, "validate",
			"a backing track needs a vocal recording, lyrics file, or lyrics text")
	case hasVocal:
		return model.JobTypePerfect, nil
	default:
		return "", apperr.New(apperr.KindMissingInput, "validate",
			"supply a vocal recording, or a backing track with lyrics")
	}
}

func uploadExt(filename, fallback string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".wav", ".mp3", ".ogg", ".flac", ".m4a", ".aac", ".webm":
		return ext
	default:
		return fallback
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
