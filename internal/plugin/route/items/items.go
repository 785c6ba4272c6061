package items

import (
	"errors"
	"net/http"

	"github.com/campusfound/board-service/internal/board"
	"github.com/campusfound/board-service/internal/model"
	registrykv "github.com/campusfound/board-service/internal/registry/kv"
	"github.com/campusfound/board-service/internal/security"
	"github.com/gin-gonic/gin"
)

// MountRoutes mounts item routes. Browsing the board is public; posting and
// "my items" require authentication.
func MountRoutes(r *gin.Engine, store *board.Store, auth gin.HandlerFunc) {
	r.GET("/v1/items", func(c *gin.Context) {
		listItems(c, store)
	})
	r.GET("/v1/items/:itemId", func(c *gin.Context) {
		getItem(c, store)
	})

	g := r.Group("/v1", auth)
	g.POST("/items", func(c *gin.Context) {
		createItem(c, store)
	})
	g.GET("/my/items", func(c *gin.Context) {
		listMyItems(c, store)
	})
}

func createItem(c *gin.Context, store *board.Store) {
	userID := security.GetUserID(c)
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Status      string `json:"status"`
		ImageURL    string `json:"imageUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := store.CreateItem(c.Request.Context(), userID, model.Item{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Status:      model.ItemStatus(req.Status),
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func getItem(c *gin.Context, store *board.Store) {
	item, err := store.GetItem(c.Request.Context(), c.Param("itemId"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func listItems(c *gin.Context, store *board.Store) {
	views, err := store.ListItems(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": views})
}

func listMyItems(c *gin.Context, store *board.Store) {
	userID := security.GetUserID(c)
	views, err := store.ListItemsFor(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": views})
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
