package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/tradielink/internal/models"
	"github.com/lalith-99/tradielink/internal/repository"
	"go.uber.org/zap"
)

// DirectoryHandler lists the people a user can start a thread with.
type DirectoryHandler struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func NewDirectoryHandler(users repository.UserRepository, logger *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{users: users, logger: logger}
}

type directoryEntry struct {
	ID          int64   `json:"id"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	CompanyName *string `json:"companyName,omitempty"`
	Occupation  *string `json:"occupation,omitempty"`
	DisplayName string  `json:"displayName"`
}

// Builders handles GET /builders
func (h *DirectoryHandler) Builders(c *gin.Context) {
	h.list(c, models.RoleBuilder, "builders")
}

// Tradies handles GET /tradies
func (h *DirectoryHandler) Tradies(c *gin.Context) {
	h.list(c, models.RoleTradie, "tradies")
}

func (h *DirectoryHandler) list(c *gin.Context, role models.Role, key string) {
	users, err := h.users.ListByRole(c.Request.Context(), role)
	if err != nil {
		fail(c, h.logger, err, "Failed to load "+key+".")
		return
	}

	entries := make([]directoryEntry, 0, len(users))
	for i := range users {
		u := &users[i]
		e := directoryEntry{
			ID:          u.ID,
			FirstName:   u.FirstName,
			LastName:    u.LastName,
			DisplayName: models.DisplayName(u),
		}
		if role == models.RoleBuilder {
			e.CompanyName = u.CompanyName
		} else {
			e.Occupation = u.Occupation
		}
		entries = append(entries, e)
	}
	respond(c, http.StatusOK, gin.H{key: entries})
}
