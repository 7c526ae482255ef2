package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"event-signup-backend/internal/store"
)

type createEventRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"starts_at"`
	Capacity    int       `json:"capacity" binding:"required"`
}

// CreateEvent handles POST /api/events.
func (h *Handler) CreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	if req.Capacity <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "capacity must be a positive integer"})
		return
	}
	if req.Capacity > 100_000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "capacity cannot exceed 100,000"})
		return
	}

	event, err := h.store.CreateEvent(c.Request.Context(), toCreateParams(req))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create event"})
		return
	}
	c.JSON(http.StatusCreated, event)
}

func toCreateParams(req createEventRequest) store.CreateEventParams {
	return store.CreateEventParams{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		Capacity:    req.Capacity,
	}
}

// ListEvents handles GET /api/events.
func (h *Handler) ListEvents(c *gin.Context) {
	events, err := h.store.ListEvents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}
	c.JSON(http.StatusOK, events)
}

// GetEvent handles GET /api/events/:event_id.
func (h *Handler) GetEvent(c *gin.Context) {
	event, err := h.store.GetEvent(c.Request.Context(), c.Param("event_id"))
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": "event not found"})
		return
	}
	c.JSON(http.StatusOK, event)
}
