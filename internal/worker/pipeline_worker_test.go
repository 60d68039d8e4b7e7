package worker

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/vocalsmith/api/internal/codec"
	"github.com/vocalsmith/api/internal/config"
	"github.com/vocalsmith/api/internal/dsp"
	"github.com/vocalsmith/api/internal/model"
	"github.com/vocalsmith/api/internal/service"
	"github.com/vocalsmith/api/internal/store"
	"github.com/vocalsmith/api/internal/websocket"
)

type fakeSynth struct {
	audio    []byte
	err      error
	lastText string
}

func (f *fakeSynth) Synthesize(ctx context.Context, req model.SynthesisRequest) (*model.SynthesisResult, error) {
	f.lastText = req.Text
	if f.err != nil {
		return nil, f.err
	}
	return &model.SynthesisResult{Audio: f.audio, MIMEType: "audio/wav"}, nil
}

type fakeTranscriber struct {
	transcript model.Transcript
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) model.Transcript {
	return f.transcript
}

// testEnv bundles the worker with its stores and services, wired against
// in-memory backends and fake collaborators.
type testEnv struct {
	worker   *PipelineWorker
	jobs     *service.JobService
	jobStore *store.MemoryJobStore
	songs    *service.SongService
	synth    *fakeSynth
}

func newTestEnv(t *testing.T, synth *fakeSynth, transcriber *fakeTranscriber) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.Storage.DataDir = t.TempDir()
	cfg.Defaults.Genre = "pop"
	cfg.Defaults.Mood = "upbeat"
	cfg.Defaults.Tempo = 120
	cfg.Audio.AnalysisSampleRate = 8000
	cfg.Audio.FrameLength = 1024
	cfg.Audio.HopLength = 256
	cfg.Audio.FMin = 50
	cfg.Audio.FMax = 2000
	cfg.Audio.PercussiveWeight = 0.7
	cfg.Audio.HarmonicWeight = 0.3
	cfg.Audio.VocalVolume = 1.0
	cfg.Audio.BackgroundVolume = 0.7
	cfg.Audio.OutputFormat = "wav"
	cfg.Audio.OutputSampleRate = 8000

	jobStore := store.NewMemoryJobStore()
	songStore := store.NewMemorySongStore()
	jobService := service.NewJobService(jobStore, nil)
	songService := service.NewSongService(songStore, jobService, cfg)
	hub := websocket.NewHub()
	go hub.Run()

	return &testEnv{
		worker:   NewPipelineWorker(cfg, jobService, songStore, songService, hub, nil, synth, transcriber),
		jobs:     jobService,
		jobStore: jobStore,
		songs:    songService,
		synth:    synth,
	}
}

// pipelineTask rebuilds the queue task from a persisted job, the same shape
// the API enqueues.
func pipelineTask(t *testing.T, job *model.Job) *asynq.Task {
	t.Helper()
	taskType := service.TaskTypePerfect
	if job.Type == model.JobTypePerformance {
		taskType = service.TaskTypePerformance
	}
	data, err := json.Marshal(map[string]interface{}{
		"jobId":   job.ID,
		"payload": json.RawMessage(job.Payload),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return asynq.NewTask(taskType, data)
}

func sineWAV(t *testing.T, freq, durSec, amp float64, rate int) []byte {
	t.Helper()
	n := int(durSec * float64(rate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return codec.EncodeWAV(dsp.NewMono(samples, rate))
}

func TestWorkerPerfectJobSucceeds(t *testing.T) {
	synth := &fakeSynth{audio: sineWAV(t, 330, 1, 0.5, 8000)}
	transcriber := &fakeTranscriber{transcript: model.Transcript{
		Text:    "hello from the booth",
		Outcome: model.TranscriptOK,
	}}
	env := newTestEnv(t, synth, transcriber)
	ctx := context.Background()

	created, err := env.songs.Create(ctx, service.CreateSongParams{
		Vocal:         sineWAV(t, 220, 2, 0.6, 8000),
		VocalFilename: "take1.wav",
	})
	if err != nil {
		t.Fatalf("create song: %v", err)
	}
	job, err := env.jobStore.Get(ctx, created.JobID)
	if err != nil {
		t.Fatalf("load job: %v", err)
	}

	if err := env.worker.ProcessTask(ctx, pipelineTask(t, job)); err != nil {
		t.Fatalf("process task: %v", err)
	}

	status, err := env.jobs.GetStatus(ctx, created.JobID)
	if err != nil {
		t.Fatalf("job status: %v", err)
	}
	if status.Status != model.JobStatusSucceeded {
		t.Fatalf("status = %s, want succeeded", status.Status)
	}
	if status.Progress != 100 {
		t.Fatalf("progress = %d, want 100", status.Progress)
	}

	result, err := env.jobs.GetResult(ctx, created.JobID)
	if err != nil {
		t.Fatalf("job result: %v", err)
	}
	if result.PerfectedVocalPath == "" {
		t.Fatal("result missing perfected vocal path")
	}
	if _, err := os.Stat(result.PerfectedVocalPath); err != nil {
		t.Fatalf("perfected vocal not on disk: %v", err)
	}
	if len(result.Degraded) != 0 {
		t.Fatalf("unexpected degradations: %v", result.Degraded)
	}

	song, err := env.songs.Get(ctx, created.Song.ID)
	if err != nil {
		t.Fatalf("get song: %v", err)
	}
	if song.PerfectedVocalPath != result.PerfectedVocalPath {
		t.Fatal("song not updated with perfected vocal path")
	}
	if song.LyricsSource != "transcription" || song.Lyrics != "hello from the booth" {
		t.Fatalf("lyrics = %q (%s), want transcription text", song.Lyrics, song.LyricsSource)
	}
	if synth.lastText != "hello from the booth" {
		t.Fatalf("synthesized text = %q, want the transcript", synth.lastText)
	}
}

func TestWorkerPerformanceJobProducesFinalSong(t *testing.T) {
	synth := &fakeSynth{audio: sineWAV(t, 330, 1, 0.5, 8000)}
	env := newTestEnv(t, synth, &fakeTranscriber{})
	ctx := context.Background()

	created, err := env.songs.Create(ctx, service.CreateSongParams{
		Backing:     sineWAV(t, 110, 2, 0.4, 8000),
		BackingName: "backing.wav",
		LyricsText:  "la la la",
	})
	if err != nil {
		t.Fatalf("create song: %v", err)
	}
	job, err := env.jobStore.Get(ctx, created.JobID)
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	if job.Type != model.JobTypePerformance {
		t.Fatalf("job type = %s, want performance", job.Type)
	}

	if err := env.worker.ProcessTask(ctx, pipelineTask(t, job)); err != nil {
		t.Fatalf("process task: %v", err)
	}

	result, err := env.jobs.GetResult(ctx, created.JobID)
	if err != nil {
		t.Fatalf("job result: %v", err)
	}
	if result.FinalSongPath == "" {
		t.Fatal("result missing final song path")
	}
	data, err := os.ReadFile(result.FinalSongPath)
	if err != nil {
		t.Fatalf("final song not on disk: %v", err)
	}
	buf, err := codec.DecodeWAV(data)
	if err != nil {
		t.Fatalf("final song not decodable: %v", err)
	}
	// Output length follows the backing track.
	if math.Abs(buf.Duration()-2) > 0.01 {
		t.Fatalf("final song duration = %f, want 2", buf.Duration())
	}
	if synth.lastText != "la la la" {
		t.Fatalf("synthesized text = %q, want supplied lyrics", synth.lastText)
	}
}

func TestWorkerFailureRecordsCodeAndSkipsRetry(t *testing.T) {
	env := newTestEnv(t, &fakeSynth{}, &fakeTranscriber{})
	ctx := context.Background()

	payload := &model.PipelineJobPayload{
		SongID:           "song-x",
		VocalPath:        filepath.Join(t.TempDir(), "gone.wav"),
		VocalVolume:      1.0,
		BackgroundVolume: 0.7,
	}
	job, err := env.jobs.Enqueue(ctx, model.JobTypePerfect, payload)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	err = env.worker.ProcessTask(ctx, pipelineTask(t, job))
	if err == nil {
		t.Fatal("expected processing to fail")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err = %v, must skip retries", err)
	}

	status, err := env.jobs.GetStatus(ctx, job.ID)
	if err != nil {
		t.Fatalf("job status: %v", err)
	}
	if status.Status != model.JobStatusFailed {
		t.Fatalf("status = %s, want failed", status.Status)
	}
	if status.ErrorCode != "MISSING_INPUT" {
		t.Fatalf("errorCode = %s, want MISSING_INPUT", status.ErrorCode)
	}
	if status.Error == nil || *status.Error == "" {
		t.Fatal("failure detail not recorded")
	}
}
