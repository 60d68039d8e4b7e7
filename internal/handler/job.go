package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/vocalsmith/api/internal/service"
	"github.com/vocalsmith/api/internal/store"
	"github.com/vocalsmith/api/pkg/response"
)

type JobHandler struct {
	jobs *service.JobService
}

func NewJobHandler(jobs *service.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// Status handles GET /api/jobs/:jobId
func (h *JobHandler) Status(c *fiber.Ctx) error {
	status, err := h.jobs.GetStatus(c.Context(), c.Params("jobId"))
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, status)
}

// Result handles GET /api/jobs/:jobId/result
func (h *JobHandler) Result(c *fiber.Ctx) error {
	result, err := h.jobs.GetResult(c.Context(), c.Params("jobId"))
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if err.Error() == "job not completed" {
			return response.Error(c, fiber.StatusConflict, response.CodeJobFailed, "Job has not completed", nil)
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, result)
}
