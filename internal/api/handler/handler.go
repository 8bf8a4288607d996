// Package handler exposes the complaint lifecycle over HTTP and websocket.
package handler

import (
	"context"
	"errors"
	"net/http"

	"cleancity/backend/internal/auth"
	"cleancity/backend/internal/blob"
	"cleancity/backend/internal/complaint"
	"cleancity/backend/internal/eventhub"
	"cleancity/backend/internal/models"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ComplaintService is the lifecycle manager the handlers drive.
type ComplaintService interface {
	Submit(ctx context.Context, actor models.Actor, req complaint.SubmitRequest) (*models.Complaint, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Complaint, error)
	Assign(ctx context.Context, actor models.Actor, id, workerID string) (*models.Complaint, error)
	MarkCleaned(ctx context.Context, actor models.Actor, id string, afterImage []byte) (*models.Complaint, error)
	UpdateStatus(ctx context.Context, actor models.Actor, id string, target models.Status) (*models.Complaint, error)
	List(ctx context.Context, actor models.Actor, q complaint.ListQuery) ([]models.Complaint, error)
	Stats(ctx context.Context, actor models.Actor) (map[models.Status]int64, error)
	SetRole(ctx context.Context, actor models.Actor, userID, role string) error
}

// Authenticator resolves a bearer token to an actor.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Actor, error)
}

// ImageStore keeps uploaded evidence images.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	SignedURL(ctx context.Context, key string) (string, error)
}

// Handler holds the collaborators for every route.
type Handler struct {
	Complaints     ComplaintService
	Auth           Authenticator
	Images         ImageStore
	Hub            *eventhub.Hub
	MaxUploadBytes int64
	Logger         *zap.Logger
}

func NewHandler(complaints ComplaintService, authn Authenticator, images ImageStore, hub *eventhub.Hub, maxUpload int64, logger *zap.Logger) *Handler {
	return &Handler{
		Complaints:     complaints,
		Auth:           authn,
		Images:         images,
		Hub:            hub,
		MaxUploadBytes: maxUpload,
		Logger:         logger,
	}
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/events"})))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", h.AuthMiddleware())
	{
		api.POST("/uploads", RequireRole(models.RoleCitizen), h.UploadImage)

		api.POST("/complaints", h.CreateComplaint)
		api.GET("/complaints", h.ListComplaints)
		api.GET("/complaints/:id", h.GetComplaint)
		api.GET("/complaints/:id/image", h.GetComplaintImage)
		api.POST("/complaints/:id/assign", h.AssignComplaint)
		api.POST("/complaints/:id/status", h.UpdateStatus)

		api.POST("/worker/cleanup/:id", h.MarkCleaned)
		api.GET("/worker/complaints", RequireRole(models.RoleWorker), h.ListComplaints)

		api.GET("/admin/stats", h.Stats)
		api.POST("/admin/users/:uid/role", h.SetRole)

		api.GET("/events", RequireRole(models.RoleAdmin, models.RoleWorker), h.ServeEvents)
	}
	return r
}

// respondError maps a domain error to its HTTP status.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, complaint.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
	case errors.Is(err, complaint.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, complaint.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.Logger.Error("Request failed",
			zap.String("method", c.Request.Method), zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
