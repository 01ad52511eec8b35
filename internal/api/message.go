package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/tradielink/internal/messaging"
	"github.com/lalith-99/tradielink/internal/models"
	"go.uber.org/zap"
)

type MessageHandler struct {
	svc    *messaging.Service
	logger *zap.Logger
}

func NewMessageHandler(svc *messaging.Service, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, logger: logger}
}

type startThreadRequest struct {
	BuilderID int64  `json:"builderId"`
	TradieID  int64  `json:"tradieId"`
	Body      string `json:"body"`
}

type sendMessageRequest struct {
	Body string `json:"body"`
}

type threadRequest struct {
	ThreadID int64 `json:"threadId"`
}

type typingRequest struct {
	ThreadID int64 `json:"threadId"`
	IsTyping bool  `json:"isTyping"`
}

// ListThreads handles GET /messages/threads?view=active|history
func (h *MessageHandler) ListThreads(c *gin.Context) {
	view, err := messaging.ParseView(c.Query("view"))
	if err != nil {
		fail(c, h.logger, err, "")
		return
	}

	threads, err := h.svc.ListThreads(c.Request.Context(), callerFrom(c), view)
	if err != nil {
		fail(c, h.logger, err, "Failed to load threads.")
		return
	}
	respond(c, http.StatusOK, gin.H{"threads": threads})
}

// StartThread handles POST /messages/threads
//
// A tradie names the builder with builderId and a builder names the tradie
// with tradieId. The response is 201 for a new thread and 200 when the
// pair already had one.
func (h *MessageHandler) StartThread(c *gin.Context) {
	var req startThreadRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, h.logger, err, "")
		return
	}

	caller := callerFrom(c)
	counterpartID := req.TradieID
	if caller.Role == models.RoleTradie {
		counterpartID = req.BuilderID
	}

	thread, created, err := h.svc.StartThread(c.Request.Context(), caller, counterpartID, req.Body)
	if err != nil {
		fail(c, h.logger, err, "Failed to start thread.")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respond(c, status, gin.H{"thread": thread, "created": created})
}

// GetThread handles GET /messages/threads/:id
func (h *MessageHandler) GetThread(c *gin.Context) {
	threadID, err := parseID(c.Param("id"), "thread id")
	if err != nil {
		fail(c, h.logger, err, "")
		return
	}

	detail, err := h.svc.GetThread(c.Request.Context(), callerFrom(c), threadID)
	if err != nil {
		fail(c, h.logger, err, "Failed to load thread.")
		return
	}
	respond(c, http.StatusOK, gin.H{
		"thread":      detail.Thread,
		"builder":     detail.Builder,
		"tradie":      detail.Tradie,
		"participant": detail.Participant,
		"messages":    detail.Messages,
	})
}

// SendMessage handles POST /messages/threads/:id/messages
func (h *MessageHandler) SendMessage(c *gin.Context) {
	threadID, err := parseID(c.Param("id"), "thread id")
	if err != nil {
		fail(c, h.logger, err, "")
		return
	}
	var req sendMessageRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, h.logger, err, "")
		return
	}

	msg, err := h.svc.SendMessage(c.Request.Context(), callerFrom(c), threadID, req.Body)
	if err != nil {
		fail(c, h.logger, err, "Failed to send message.")
		return
	}
	respond(c, http.StatusCreated, gin.H{"message": msg})
}

// MarkRead handles POST /messages/read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	var req threadRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, h.logger, err, "")
		return
	}

	if err := h.svc.MarkRead(c.Request.Context(), callerFrom(c), req.ThreadID); err != nil {
		fail(c, h.logger, err, "Failed to mark thread read.")
		return
	}
	respond(c, http.StatusOK, nil)
}

// CloseThread handles POST /messages/threads/:id/close
func (h *MessageHandler) CloseThread(c *gin.Context) {
	threadID, err := parseID(c.Param("id"), "thread id")
	if err != nil {
		fail(c, h.logger, err, "")
		return
	}

	if err := h.svc.CloseThread(c.Request.Context(), callerFrom(c), threadID); err != nil {
		fail(c, h.logger, err, "Failed to close thread.")
		return
	}
	respond(c, http.StatusOK, nil)
}

// SetTyping handles POST /messages/typing
func (h *MessageHandler) SetTyping(c *gin.Context) {
	var req typingRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, h.logger, err, "")
		return
	}

	if err := h.svc.SetTyping(c.Request.Context(), callerFrom(c), req.ThreadID, req.IsTyping); err != nil {
		fail(c, h.logger, err, "Failed to update typing status.")
		return
	}
	respond(c, http.StatusOK, nil)
}

// GetTyping handles GET /messages/typing/:id
func (h *MessageHandler) GetTyping(c *gin.Context) {
	threadID, err := parseID(c.Param("id"), "thread id")
	if err != nil {
		fail(c, h.logger, err, "")
		return
	}

	status, err := h.svc.GetTyping(c.Request.Context(), callerFrom(c), threadID)
	if err != nil {
		fail(c, h.logger, err, "Failed to load typing status.")
		return
	}
	respond(c, http.StatusOK, gin.H{
		"meTyping":     status.MeTyping,
		"peerTyping":   status.PeerTyping,
		"eitherTyping": status.EitherTyping,
	})
}
