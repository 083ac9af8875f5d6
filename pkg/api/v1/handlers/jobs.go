package handlers

import (
	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/geoimport/internal/types"
)

// JobHandler handles HTTP requests for background jobs
type JobHandler struct {
	*APIHandler
}

// NewJobHandler creates a new job handler instance
func NewJobHandler(api *APIHandler) *JobHandler {
	return &JobHandler{
		APIHandler: api,
	}
}

// ListJobs handles the request to list the user's jobs, newest first
func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	}

	jobs := h.imports.ListJobs(owner)

	// Parse status if provided
	if raw := c.Query("status"); raw != "" {
		status, err := types.ParseJobStatus(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
		}
		filtered := jobs[:0]
		for _, j := range jobs {
			if j.Status == status {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}

	return c.JSON(types.Success(types.ListResponse[types.JobSnapshot]{
		Rows: jobs,
		Pagination: types.PaginationResponse{
			Total: len(jobs),
			Page:  1,
			Limit: len(jobs),
		},
	}))
}

// GetJob handles the request to get a job's status and progress
func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	}
	jobID := c.Params("id")
	if jobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgJobIDRequired))
	}

	job, err := h.imports.GetStatus(owner, jobID)
	if err != nil {
		return respondError(c, err, ErrMsgJobNotFound, ErrMsgGetJobFailed)
	}
	return c.JSON(types.Success(job))
}

// CancelJob requests cancellation of a job. Cancelling a finished job is
// not an error, the response reports that nothing changed.
func (h *JobHandler) CancelJob(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	}
	jobID := c.Params("id")
	if jobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgJobIDRequired))
	}

	resp, err := h.imports.Cancel(owner, jobID)
	if err != nil {
		return respondError(c, err, ErrMsgJobNotFound, ErrMsgCancelFailed)
	}
	return c.JSON(types.Success(resp))
}
