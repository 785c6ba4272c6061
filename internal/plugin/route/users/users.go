package users

import (
	"errors"
	"net/http"

	"github.com/campusfound/board-service/internal/board"
	registrykv "github.com/campusfound/board-service/internal/registry/kv"
	"github.com/campusfound/board-service/internal/security"
	"github.com/gin-gonic/gin"
)

// MountRoutes mounts profile routes. Signup is a one-time profile record for
// the authenticated identity; later calls return the existing profile.
func MountRoutes(r *gin.Engine, store *board.Store, auth gin.HandlerFunc) {
	g := r.Group("/v1", auth)

	g.POST("/users", func(c *gin.Context) {
		signup(c, store)
	})
	g.GET("/users/me", func(c *gin.Context) {
		me(c, store)
	})
}

func signup(c *gin.Context, store *board.Store) {
	userID := security.GetUserID(c)
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := req.Email
	if email == "" {
		email = security.GetUserEmail(c)
	}

	user, err := store.EnsureUser(c.Request.Context(), userID, email, req.Name)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func me(c *gin.Context, store *board.Store) {
	userID := security.GetUserID(c)
	user, err := store.GetUser(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func handleError(c *gin.Context, err error) {
	var notFound *registrykv.NotFoundError
	var validation *registrykv.ValidationError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error(), "field": validation.Field})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
