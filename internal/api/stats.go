package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/tradielink/internal/messaging"
	"github.com/lalith-99/tradielink/internal/models"
	"github.com/lalith-99/tradielink/internal/repository"
	"go.uber.org/zap"
)

// StatsHandler serves the builder dashboard counters.
type StatsHandler struct {
	svc    *messaging.Service
	jobs   repository.JobRepository
	logger *zap.Logger
}

func NewStatsHandler(svc *messaging.Service, jobs repository.JobRepository, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{svc: svc, jobs: jobs, logger: logger}
}

type builderStats struct {
	ActiveChats   int `json:"activeChats"`
	PendingOffers int `json:"pendingOffers"`
	SavedTradies  int `json:"savedTradies"`
	PendingPay    int `json:"pendingPay"`
}

// Get handles GET /me/stats
//
// savedTradies is the thread total: there is one thread per tradie.
// pendingPay stays 0 until payments exist.
func (h *StatsHandler) Get(c *gin.Context) {
	if !requireRole(c, h.logger, models.RoleBuilder) {
		return
	}
	caller := callerFrom(c)
	ctx := c.Request.Context()

	active, total, err := h.svc.CountThreads(ctx, caller)
	if err != nil {
		fail(c, h.logger, err, "Failed to load stats.")
		return
	}
	pending, err := h.jobs.CountPendingEnquiries(ctx, caller.UserID)
	if err != nil {
		fail(c, h.logger, err, "Failed to load stats.")
		return
	}

	respond(c, http.StatusOK, gin.H{"stats": builderStats{
		ActiveChats:   active,
		PendingOffers: pending,
		SavedTradies:  total,
	}})
}
