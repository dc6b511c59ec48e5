// Package api exposes the record services over HTTP.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/beekhof/crm-records/internal/maintenance"
	"github.com/beekhof/crm-records/internal/records"
)

// Handler serves the record services. Cleaner is optional; without it the
// maintenance routes are not registered.
type Handler struct {
	Clients *records.ClientService
	Events  *records.EventService
	Cleaner *maintenance.Cleaner
	Logger  *slog.Logger
}

// NewRouter registers every route of h on a new gin engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.logRequests())

	clients := r.Group("/clients")
	clients.GET("", h.ListClients)
	clients.POST("", h.CreateClient)
	clients.GET("/search", h.SearchClients)
	clients.GET("/:id", h.GetClient)
	clients.PATCH("/:id", h.UpdateClient)
	clients.DELETE("/:id", h.DeleteClient)
	clients.GET("/:id/events", h.ListClientEvents)

	events := r.Group("/events")
	events.GET("", h.ListEvents)
	events.POST("", h.AddEvent)
	events.GET("/:id", h.GetEvent)
	events.PATCH("/:id", h.UpdateEvent)
	events.DELETE("/:id", h.DeleteEvent)

	if h.Cleaner != nil {
		r.GET("/maintenance/integrity", h.Integrity)
	}
	return r
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handler) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger().Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// fail maps the records error taxonomy onto HTTP statuses.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, records.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, records.ErrInvalid):
		status = http.StatusBadRequest
	default:
		h.logger().Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// ListClients handles GET /clients, optionally filtered by ?status=.
func (h *Handler) ListClients(c *gin.Context) {
	filter := records.ClientFilter{Status: records.ClientStatus(c.Query("status"))}
	clients, err := h.Clients.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(clients))
}

// SearchClients handles GET /clients/search?q= as a name prefix search.
func (h *Handler) SearchClients(c *gin.Context) {
	clients, err := h.Clients.SearchByNamePrefix(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(clients))
}

// GetClient handles GET /clients/:id.
func (h *Handler) GetClient(c *gin.Context) {
	client, err := h.Clients.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// CreateClient handles POST /clients and answers with the new id.
func (h *Handler) CreateClient(c *gin.Context) {
	var input records.Client
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.Clients.Create(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// UpdateClient handles PATCH /clients/:id with a records.ClientPatch body.
func (h *Handler) UpdateClient(c *gin.Context) {
	var patch records.ClientPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Clients.Update(c.Request.Context(), c.Param("id"), patch); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// DeleteClient handles DELETE /clients/:id.
func (h *Handler) DeleteClient(c *gin.Context) {
	if err := h.Clients.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// ListClientEvents handles GET /clients/:id/events.
func (h *Handler) ListClientEvents(c *gin.Context) {
	events, err := h.Events.ListByClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(events))
}

// ListEvents lists a user's events. userId is required; from and to are
// optional RFC 3339 bounds.
func (h *Handler) ListEvents(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}
	from, err := timeParam(c, "from")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	to, err := timeParam(c, "to")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.Events.ListByUser(c.Request.Context(), userID, from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(events))
}

// GetEvent handles GET /events/:id.
func (h *Handler) GetEvent(c *gin.Context) {
	event, err := h.Events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// AddEvent handles POST /events and answers with the new id.
func (h *Handler) AddEvent(c *gin.Context) {
	var input records.Event
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.Events.Add(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// UpdateEvent handles PATCH /events/:id with a records.EventPatch body.
func (h *Handler) UpdateEvent(c *gin.Context) {
	var patch records.EventPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Events.Update(c.Request.Context(), c.Param("id"), patch); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// DeleteEvent handles DELETE /events/:id.
func (h *Handler) DeleteEvent(c *gin.Context) {
	if err := h.Events.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// Integrity handles GET /maintenance/integrity.
func (h *Handler) Integrity(c *gin.Context) {
	issues, err := h.Cleaner.ValidateDataIntegrity(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": nonNil(issues)})
}

func timeParam(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// nonNil makes empty results encode as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
