package messages

import (
	"errors"
	"net/http"
	"strings"

	"github.com/campusfound/board-service/internal/chat"
	registrykv "github.com/campusfound/board-service/internal/registry/kv"
	"github.com/campusfound/board-service/internal/security"
	"github.com/gin-gonic/gin"
)

// MountRoutes mounts message routes on the given router.
func MountRoutes(r *gin.Engine, svc *chat.Service, auth gin.HandlerFunc) {
	g := r.Group("/v1", auth)

	g.POST("/messages", func(c *gin.Context) {
		sendMessage(c, svc)
	})
	g.GET("/messages/:conversationId", func(c *gin.Context) {
		listMessages(c, svc)
	})
}

func sendMessage(c *gin.Context, svc *chat.Service) {
	userID := security.GetUserID(c)
	var req struct {
		ConversationID string `json:"conversationId"`
		Text           string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": "conversationId is required"})
		return
	}

	msg, err := svc.Send(c.Request.Context(), userID, req.ConversationID, req.Text)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func listMessages(c *gin.Context, svc *chat.Service) {
	userID := security.GetUserID(c)
	conversationID := c.Param("conversationId")

	views, err := svc.ListMessages(c.Request.Context(), userID, conversationID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": views})
}

func handleError(c *gin.Context, err error) {
	var notFound *registrykv.NotFoundError
	var validation *registrykv.ValidationError
	var forbidden *registrykv.ForbiddenError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error(), "field": validation.Field})
	case errors.As(err, &forbidden):
		c.JSON(http.StatusForbidden, gin.H{"code": "forbidden", "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
