package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/tradielink/internal/apperr"
	"github.com/lalith-99/tradielink/internal/middleware"
	"github.com/lalith-99/tradielink/internal/models"
	"github.com/lalith-99/tradielink/internal/repository"
	"go.uber.org/zap"
)

// JobHandler serves the builder's job list and the tradie job board.
type JobHandler struct {
	jobs   repository.JobRepository
	now    func() time.Time
	logger *zap.Logger
}

func NewJobHandler(jobs repository.JobRepository, now func() time.Time, logger *zap.Logger) *JobHandler {
	if now == nil {
		now = time.Now
	}
	return &JobHandler{jobs: jobs, now: now, logger: logger}
}

type createJobRequest struct {
	Title        string   `json:"title"`
	Location     string   `json:"location"`
	TradesNeeded []string `json:"tradesNeeded"`
	Details      string   `json:"details"`
	Status       string   `json:"status"`
}

// builderJob is a job with the tradies who enquired on it.
type builderJob struct {
	models.Job
	Enquiries         []models.JobEnquiry `json:"enquiries"`
	InterestedTradies []string            `json:"interestedTradies"`
}

func (r *createJobRequest) validate(builderID int64) (models.Job, error) {
	job := models.Job{
		BuilderID: builderID,
		Title:     strings.TrimSpace(r.Title),
		Location:  strings.TrimSpace(r.Location),
		Details:   strings.TrimSpace(r.Details),
		Status:    models.JobStatus(strings.TrimSpace(r.Status)),
	}
	if job.Title == "" || job.Location == "" || job.Details == "" {
		return models.Job{}, apperr.InvalidInput("Title, location and details are required.")
	}
	if job.Status == "" {
		job.Status = models.JobPosted
	}
	if !job.Status.Valid() {
		return models.Job{}, apperr.InvalidInput("Invalid job status.")
	}

	job.TradesNeeded = make([]string, 0, len(r.TradesNeeded))
	for _, trade := range r.TradesNeeded {
		trade = strings.TrimSpace(trade)
		if !slices.Contains(models.TradeOptions, trade) {
			return models.Job{}, apperr.InvalidInput("Unknown trade %q.", trade)
		}
		if !slices.Contains(job.TradesNeeded, trade) {
			job.TradesNeeded = append(job.TradesNeeded, trade)
		}
	}
	if len(job.TradesNeeded) == 0 {
		return models.Job{}, apperr.InvalidInput("At least one trade is required.")
	}
	return job, nil
}

// ListMine handles GET /builder/jobs
func (h *JobHandler) ListMine(c *gin.Context) {
	if !requireRole(c, h.logger, models.RoleBuilder) {
		return
	}
	ctx := c.Request.Context()

	jobs, err := h.jobs.ListByBuilder(ctx, middleware.GetUserID(c))
	if err != nil {
		fail(c, h.logger, err, "Failed to load jobs.")
		return
	}

	ids := make([]int64, len(jobs))
	for i := range jobs {
		ids[i] = jobs[i].ID
	}
	enquiries, err := h.jobs.ListEnquiries(ctx, ids)
	if err != nil {
		fail(c, h.logger, err, "Failed to load jobs.")
		return
	}

	byJob := make(map[int64][]models.JobEnquiry, len(jobs))
	for _, e := range enquiries {
		byJob[e.JobID] = append(byJob[e.JobID], e)
	}

	out := make([]builderJob, 0, len(jobs))
	for _, j := range jobs {
		bj := builderJob{
			Job:               j,
			Enquiries:         byJob[j.ID],
			InterestedTradies: make([]string, 0, len(byJob[j.ID])),
		}
		if bj.Enquiries == nil {
			bj.Enquiries = []models.JobEnquiry{}
		}
		for _, e := range bj.Enquiries {
			bj.InterestedTradies = append(bj.InterestedTradies, e.Name)
		}
		out = append(out, bj)
	}
	respond(c, http.StatusOK, gin.H{"jobs": out})
}

// Create handles POST /builder/jobs
func (h *JobHandler) Create(c *gin.Context) {
	if !requireRole(c, h.logger, models.RoleBuilder) {
		return
	}
	var req createJobRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, h.logger, err, "")
		return
	}

	job, err := req.validate(middleware.GetUserID(c))
	if err != nil {
		fail(c, h.logger, err, "")
		return
	}

	created, err := h.jobs.Create(c.Request.Context(), job)
	if err != nil {
		fail(c, h.logger, err, "Failed to create job.")
		return
	}
	h.logger.Info("job posted",
		zap.Int64("job_id", created.ID),
		zap.Int64("builder_id", created.BuilderID),
	)
	respond(c, http.StatusCreated, gin.H{"job": created})
}

// Board handles GET /jobs
func (h *JobHandler) Board(c *gin.Context) {
	if !requireRole(c, h.logger, models.RoleTradie) {
		return
	}
	jobs, err := h.jobs.ListPosted(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, h.logger, err, "Failed to load jobs.")
		return
	}
	respond(c, http.StatusOK, gin.H{"jobs": jobs})
}

// Enquire handles POST /jobs/:id/enquire. Repeat enquiries succeed.
func (h *JobHandler) Enquire(c *gin.Context) {
	if !requireRole(c, h.logger, models.RoleTradie) {
		return
	}
	jobID, err := parseID(c.Param("id"), "job id")
	if err != nil {
		fail(c, h.logger, err, "")
		return
	}
	ctx := c.Request.Context()

	job, err := h.jobs.GetByID(ctx, jobID)
	if err != nil {
		fail(c, h.logger, err, "Failed to enquire on job.")
		return
	}
	if job == nil || job.Status != models.JobPosted {
		fail(c, h.logger, apperr.NotFound("Job not found."), "")
		return
	}

	if err := h.jobs.Enquire(ctx, jobID, middleware.GetUserID(c), h.now()); err != nil {
		fail(c, h.logger, err, "Failed to enquire on job.")
		return
	}
	respond(c, http.StatusOK, nil)
}
