package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cleancity/backend/internal/blob"
	"cleancity/backend/internal/complaint"
	"cleancity/backend/internal/config"
	"cleancity/backend/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createComplaintRequest struct {
	Description string   `json:"description"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	ImagePath   string   `json:"imagePath"`
}

type assignRequest struct {
	WorkerID string `json:"workerId"`
}

type statusRequest struct {
	Status models.Status `json:"status"`
}

type roleRequest struct {
	Role string `json:"role"`
}

// UploadImage stores a raw image body under the caller's prefix.
func (h *Handler) UploadImage(c *gin.Context) {
	actor := actorFrom(c)
	data, ok := h.readBody(c)
	if !ok {
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty request body"})
		return
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be an image"})
		return
	}

	key := blob.ComplaintKey(actor.ID)
	if err := h.Images.Put(c.Request.Context(), key, data, contentType); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"imagePath": key})
}

// CreateComplaint submits a new report.
func (h *Handler) CreateComplaint(c *gin.Context) {
	var req createComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	created, err := h.Complaints.Submit(c.Request.Context(), actorFrom(c), complaint.SubmitRequest{
		Description: req.Description,
		Lat:         req.Lat,
		Lng:         req.Lng,
		ImagePath:   req.ImagePath,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"complaintId":   created.ID,
		"priority":      created.Priority,
		"severityScore": created.SeverityScore,
	})
}

// ListComplaints returns the caller's scope, newest first. nextCursor is set
// when the page is full.
func (h *Handler) ListComplaints(c *gin.Context) {
	q := complaint.ListQuery{Status: models.Status(c.Query("status"))}

	if v := c.Query("min_severity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_severity must be an integer"})
			return
		}
		q.MinSeverity = n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		q.Limit = n
	}
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "before must be an RFC3339 timestamp"})
			return
		}
		q.Before = t
	}

	list, err := h.Complaints.List(c.Request.Context(), actorFrom(c), q)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if list == nil {
		list = []models.Complaint{}
	}

	limit := q.Limit
	if limit <= 0 || limit > config.AdminListLimit {
		limit = config.AdminListLimit
	}
	resp := gin.H{"complaints": list}
	if len(list) == limit {
		resp["nextCursor"] = list[len(list)-1].CreatedAt.Format(time.RFC3339Nano)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetComplaint(c *gin.Context) {
	got, err := h.Complaints.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

// GetComplaintImage returns a short-lived URL for the before or after image.
func (h *Handler) GetComplaintImage(c *gin.Context) {
	got, err := h.Complaints.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	var key string
	switch kind := c.DefaultQuery("kind", "before"); kind {
	case "before":
		key = got.ImagePath
	case "after":
		if got.AfterImagePath == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no after-cleanup image"})
			return
		}
		key = *got.AfterImagePath
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be before or after"})
		return
	}

	url, err := h.Images.SignedURL(c.Request.Context(), key)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) AssignComplaint(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	got, err := h.Complaints.Assign(c.Request.Context(), actorFrom(c), c.Param("id"), req.WorkerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	got, err := h.Complaints.UpdateStatus(c.Request.Context(), actorFrom(c), c.Param("id"), req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

// MarkCleaned accepts an optional raw after-cleanup image as the body.
func (h *Handler) MarkCleaned(c *gin.Context) {
	data, ok := h.readBody(c)
	if !ok {
		return
	}
	got, err := h.Complaints.MarkCleaned(c.Request.Context(), actorFrom(c), c.Param("id"), data)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func (h *Handler) Stats(c *gin.Context) {
	counts, err := h.Complaints.Stats(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

func (h *Handler) SetRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	uid := c.Param("uid")
	if err := h.Complaints.SetRole(c.Request.Context(), actorFrom(c), uid, req.Role); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": uid, "role": req.Role})
}

// readBody reads at most MaxUploadBytes. It writes the error response itself
// and reports false when the handler should stop.
func (h *Handler) readBody(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
			return nil, false
		}
		h.Logger.Warn("Failed to read request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return nil, false
	}
	return data, true
}
