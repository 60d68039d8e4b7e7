package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vocalsmith/api/internal/apperr"
	"github.com/vocalsmith/api/internal/client"
	"github.com/vocalsmith/api/internal/config"
	"github.com/vocalsmith/api/internal/dsp"
	"github.com/vocalsmith/api/internal/model"
	"github.com/vocalsmith/api/internal/pipeline"
	"github.com/vocalsmith/api/internal/service"
	"github.com/vocalsmith/api/internal/store"
	"github.com/vocalsmith/api/internal/websocket"
)

// PipelineWorker executes queued pipeline jobs. Each task runs one
// invocation start to finish; parallelism comes from asynq's worker pool.
type PipelineWorker struct {
	cfg      *config.Config
	jobs     *service.JobService
	songs    store.SongStore
	songsSvc *service.SongService
	hub      *websocket.Hub
	storage  client.StorageClient

	perfected   *pipeline.PerfectedVocalPipeline
	performance *pipeline.PerformancePipeline
}

func NewPipelineWorker(
	cfg *config.Config,
	jobs *service.JobService,
	songs store.SongStore,
	songsSvc *service.SongService,
	hub *websocket.Hub,
	storage client.StorageClient,
	synth pipeline.Synthesizer,
	transcriber pipeline.Transcriber,
) *PipelineWorker {
	extractor := dsp.NewPitchExtractor(dsp.PitchConfig{
		FMin:        cfg.Audio.FMin,
		FMax:        cfg.Audio.FMax,
		FrameLength: cfg.Audio.FrameLength,
		HopLength:   cfg.Audio.HopLength,
		SampleRate:  cfg.Audio.AnalysisSampleRate,
	})
	sepCfg := dsp.DefaultSeparatorConfig()
	sepCfg.PercussiveWeight = cfg.Audio.PercussiveWeight
	sepCfg.HarmonicWeight = cfg.Audio.HarmonicWeight
	separator := dsp.NewSeparator(sepCfg)
	mixer := dsp.NewMixer()

	return &PipelineWorker{
		cfg:         cfg,
		jobs:        jobs,
		songs:       songs,
		songsSvc:    songsSvc,
		hub:         hub,
		storage:     storage,
		perfected:   pipeline.NewPerfectedVocalPipeline(extractor, separator, synth, transcriber),
		performance: pipeline.NewPerformancePipeline(extractor, mixer, synth, transcriber),
	}
}

type taskEnvelope struct {
	JobID   string          `json:"jobId"`
	Payload json.RawMessage `json:"payload"`
}

// ProcessTask handles both pipeline task types.
func (w *PipelineWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var envelope taskEnvelope
	if err := json.Unmarshal(t.Payload(), &envelope); err != nil {
		return fmt.Errorf("failed to parse task envelope: %v: %w", err, asynq.SkipRetry)
	}
	var payload model.PipelineJobPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return fmt.Errorf("failed to parse job payload: %v: %w", err, asynq.SkipRetry)
	}

	progress := func(state pipeline.State, percent int) {
		step := string(state)
		if err := w.jobs.UpdateProgress(ctx, envelope.JobID, percent, step); err != nil {
			log.Printf("job %s: failed to record progress: %v", envelope.JobID, err)
		}
		status := model.JobStatusRunning
		if state == pipeline.StateComplete {
			status = model.JobStatusSucceeded
		}
		w.hub.BroadcastProgress(envelope.JobID, percent, status, step)
	}

	var result *model.JobResult
	var err error
	switch t.Type() {
	case service.TaskTypePerformance:
		result, err = w.runPerformance(ctx, &payload, progress)
	default:
		result, err = w.runPerfected(ctx, &payload, progress)
	}
	if err != nil {
		return w.failJob(ctx, envelope.JobID, payload.SongID, err)
	}

	if err := w.jobs.Complete(ctx, envelope.JobID, result); err != nil {
		log.Printf("job %s: failed to record completion: %v", envelope.JobID, err)
	}
	w.hub.BroadcastComplete(envelope.JobID, result)
	return nil
}

func (w *PipelineWorker) runPerfected(ctx context.Context, payload *model.PipelineJobPayload, progress pipeline.Progress) (*model.JobResult, error) {
	vocal, err := readInput(payload.VocalPath)
	if err != nil {
		return nil, err
	}

	in := pipeline.PerfectedInput{
		Vocal:      vocal,
		LyricsText: payload.LyricsText,
		VoiceID:    payload.VoiceID,
		Style: model.VoiceStyle{
			Stability:  payload.Stability,
			Similarity: payload.Similarity,
			Style:      payload.Style,
		},
		ArtifactDir: w.songsSvc.ArtifactDir(payload.SongID),
	}
	res, err := w.perfected.Run(ctx, in, progress)
	if err != nil {
		return nil, err
	}

	w.updateSong(ctx, payload.SongID, func(song *model.Song) {
		song.PerfectedVocalPath = res.PerfectedVocalPath
		song.PitchRecordPath = res.PitchRecordPath
		song.HarmonicPath = res.HarmonicPath
		song.BackgroundPath = res.BackgroundPath
		song.Lyrics = res.Lyrics
		song.LyricsSource = res.LyricsSource
		song.Degraded = res.Degraded
	})
	w.mirrorArtifact(ctx, payload.SongID, res.PerfectedVocalPath)

	return &model.JobResult{
		SongID:             payload.SongID,
		PerfectedVocalPath: res.PerfectedVocalPath,
		PitchRecordPath:    res.PitchRecordPath,
		Degraded:           res.Degraded,
		DurationSec:        res.DurationSec,
	}, nil
}

func (w *PipelineWorker) runPerformance(ctx context.Context, payload *model.PipelineJobPayload, progress pipeline.Progress) (*model.JobResult, error) {
	vocal, err := readInput(payload.VocalPath)
	if err != nil {
		return nil, err
	}
	backing, err := readInput(payload.BackingPath)
	if err != nil {
		return nil, err
	}
	lyricsFile, err := readInput(payload.LyricsPath)
	if err != nil {
		return nil, err
	}

	in := pipeline.PerformanceInput{
		Vocal:      vocal,
		Backing:    backing,
		LyricsFile: lyricsFile,
		LyricsText: payload.LyricsText,
		VoiceID:    payload.VoiceID,
		Style: model.VoiceStyle{
			Stability:  payload.Stability,
			Similarity: payload.Similarity,
			Style:      payload.Style,
		},
		Mix: dsp.MixSpec{
			VocalVolume:      payload.VocalVolume,
			BackgroundVolume: payload.BackgroundVolume,
		},
		OutputFormat:     w.cfg.Audio.OutputFormat,
		OutputSampleRate: w.cfg.Audio.OutputSampleRate,
		Bitrate:          w.cfg.Audio.Bitrate,
		ArtifactDir:      w.songsSvc.ArtifactDir(payload.SongID),
	}
	res, err := w.performance.Run(ctx, in, progress)
	if err != nil {
		return nil, err
	}

	w.updateSong(ctx, payload.SongID, func(song *model.Song) {
		song.FinalSongPath = res.FinalSongPath
		song.PitchRecordPath = res.PitchRecordPath
		song.Lyrics = res.Lyrics
		song.LyricsSource = res.LyricsSource
		song.Degraded = res.Degraded
	})
	w.mirrorArtifact(ctx, payload.SongID, res.FinalSongPath)

	return &model.JobResult{
		SongID:          payload.SongID,
		FinalSongPath:   res.FinalSongPath,
		PitchRecordPath: res.PitchRecordPath,
		Degraded:        res.Degraded,
		DurationSec:     res.DurationSec,
	}, nil
}

// failJob records the classified failure and stops retries: every pipeline
// error kind is fatal to its invocation, and a fresh invocation comes from a
// fresh request, not a queue retry.
func (w *PipelineWorker) failJob(ctx context.Context, jobID, songID string, err error) error {
	code := string(apperr.KindOf(err))
	if code == "" {
		code = "PIPELINE_ERROR"
	}
	if recErr := w.jobs.Fail(ctx, jobID, code, err.Error()); recErr != nil {
		log.Printf("job %s: failed to record failure: %v", jobID, recErr)
	}
	w.hub.BroadcastError(jobID, code, err.Error())
	log.Printf("job %s (song %s) failed: %s: %v", jobID, songID, code, err)
	return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
}

func (w *PipelineWorker) updateSong(ctx context.Context, songID string, apply func(*model.Song)) {
	song, err := w.songs.Get(ctx, songID)
	if err != nil {
		log.Printf("song %s: failed to load for update: %v", songID, err)
		return
	}
	apply(song)
	song.UpdatedAt = time.Now()
	if err := w.songs.Update(ctx, song); err != nil {
		log.Printf("song %s: failed to persist update: %v", songID, err)
	}
}

// mirrorArtifact copies a finished artifact to object storage when a client
// is configured. Local disk stays authoritative; mirror failures are logged
// and ignored.
func (w *PipelineWorker) mirrorArtifact(ctx context.Context, songID, path string) {
	if w.storage == nil || path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("song %s: failed to read artifact for mirroring: %v", songID, err)
		return
	}
	key := fmt.Sprintf("songs/%s/%s", songID, filepath.Base(path))
	contentType := "audio/mpeg"
	if filepath.Ext(path) == ".wav" {
		contentType = "audio/wav"
	}
	if _, err := w.storage.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		log.Printf("song %s: failed to mirror artifact %s: %v", songID, key, err)
	}
}

// readInput loads a staged upload; an empty path means "not supplied".
func readInput(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindMissingInput, "validate",
			fmt.Sprintf("staged upload %s is unavailable", filepath.Base(path)), err)
	}
	return data, nil
}
