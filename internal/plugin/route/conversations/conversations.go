package conversations

import (
	"errors"
	"net/http"
	"strings"

	"github.com/campusfound/board-service/internal/chat"
	registrykv "github.com/campusfound/board-service/internal/registry/kv"
	"github.com/campusfound/board-service/internal/security"
	"github.com/gin-gonic/gin"
)

// MountRoutes mounts conversation routes on the given router.
// Called after store initialization so the chat service is available.
func MountRoutes(r *gin.Engine, svc *chat.Service, auth gin.HandlerFunc) {
	g := r.Group("/v1", auth)

	g.POST("/conversations", func(c *gin.Context) {
		startConversation(c, svc)
	})
	g.GET("/conversations", func(c *gin.Context) {
		listConversations(c, svc)
	})
}

func startConversation(c *gin.Context, svc *chat.Service) {
	userID := security.GetUserID(c)
	var req struct {
		ItemID string `json:"itemId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.ItemID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": "itemId is required"})
		return
	}

	conv, created, err := svc.StartConversation(c.Request.Context(), userID, req.ItemID)
	if err != nil {
		handleError(c, err)
		return
	}
	// Idempotent re-create returns 200, first creation returns 201.
	if created {
		c.JSON(http.StatusCreated, conv)
	} else {
		c.JSON(http.StatusOK, conv)
	}
}

func listConversations(c *gin.Context, svc *chat.Service) {
	userID := security.GetUserID(c)
	views, err := svc.ListConversations(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": views})
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
