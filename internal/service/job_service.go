package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/vocalsmith/api/internal/model"
	"github.com/vocalsmith/api/internal/store"
)

const (
	TaskTypePerfect     = "pipeline:perfect"
	TaskTypePerformance = "pipeline:performance"
)

// JobService manages background pipeline jobs: creation, queueing, and the
// progress/result bookkeeping the worker writes back.
type JobService struct {
	jobs        store.JobStore
	asynqClient *asynq.Client
}

func NewJobService(jobs store.JobStore, asynqClient *asynq.Client) *JobService {
	return &JobService{
		jobs:        jobs,
		asynqClient: asynqClient,
	}
}

// Enqueue creates a job record and queues a pipeline task for it. With no
// queue client configured the job stays queued, which keeps the API usable
// in tests and local runs without Redis.
func (s *JobService) Enqueue(ctx context.Context, jobType string, payload *model.PipelineJobPayload) (*model.Job, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := &model.Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		SongID:    payload.SongID,
		Status:    model.JobStatusQueued,
		Progress:  0,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}
	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if s.asynqClient != nil {
		task, err := newPipelineTask(jobType, job.ID, payloadBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to create task: %w", err)
		}
		_, err = s.asynqClient.Enqueue(task,
			asynq.Queue("pipeline"),
			asynq.MaxRetry(2),
			asynq.Retention(24*time.Hour),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to enqueue task: %w", err)
		}
	}

	return job, nil
}

// GetStatus returns the API view of a job.
func (s *JobService) GetStatus(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &model.JobStatusResponse{
		JobID:       job.ID,
		Type:        job.Type,
		SongID:      job.SongID,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		ErrorCode:   job.ErrorCode,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}, nil
}

// GetResult returns the result of a succeeded job.
func (s *JobService) GetResult(ctx context.Context, jobID string) (*model.JobResult, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusSucceeded {
		return nil, fmt.Errorf("job not completed")
	}
	var result model.JobResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// UpdateProgress records progress from the worker. The first update moves
// the job from queued to running.
func (s *JobService) UpdateProgress(ctx context.Context, jobID string, progress int, step string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}

	job.Progress = progress
	job.CurrentStep = step
	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusRunning
		now := time.Now()
		job.StartedAt = &now
	}
	return s.jobs.Save(ctx, job)
}

// Complete marks the job as succeeded with its result.
func (s *JobService) Complete(ctx context.Context, jobID string, result *model.JobResult) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return err
	}

	job.Status = model.JobStatusSucceeded
	job.Progress = 100
	job.Result = resultBytes
	now := time.Now()
	job.CompletedAt = &now
	return s.jobs.Save(ctx, job)
}

// Fail marks the job as failed with the classified error code and detail.
func (s *JobService) Fail(ctx context.Context, jobID, errCode, errMsg string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}

	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	job.ErrorCode = errCode
	now := time.Now()
	job.CompletedAt = &now
	return s.jobs.Save(ctx, job)
}

func newPipelineTask(jobType, jobID string, payload []byte) (*asynq.Task, error) {
	taskPayload := map[string]interface{}{
		"jobId":   jobID,
		"payload": json.RawMessage(payload),
	}
	data, err := json.Marshal(taskPayload)
	if err != nil {
		return nil, err
	}
	taskType := TaskTypePerfect
	if jobType == model.JobTypePerformance {
		taskType = TaskTypePerformance
	}
	return asynq.NewTask(taskType, data), nil
}
