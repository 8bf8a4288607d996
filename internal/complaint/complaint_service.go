// Package complaint is the complaint lifecycle manager: it creates scored
// complaints and gates every status transition on the caller's role.
package complaint

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"cleancity/backend/internal/analysis"
	"cleancity/backend/internal/blob"
	"cleancity/backend/internal/config"
	"cleancity/backend/internal/metrics"
	"cleancity/backend/internal/models"
	"cleancity/backend/internal/scoring"
	"cleancity/backend/internal/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

// Scorer turns evidence into a severity score.
type Scorer interface {
	Score(ctx context.Context, ev analysis.Evidence, loc models.Location) scoring.Result
}

// Geocoder resolves a coordinate to a human-readable address.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (string, error)
}

// ImageWriter stores after-cleanup images.
type ImageWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Notifier tells a worker about a new assignment.
type Notifier interface {
	NotifyAssigned(ctx context.Context, workerID string, c *models.Complaint) error
}

// Service handles the business logic for complaints.
type Service struct {
	Storage  storage.Storage
	Evidence analysis.Pipeline
	Scorer   Scorer
	Geocoder Geocoder
	Images   ImageWriter
	Notifier Notifier

	GeocodeTimeout time.Duration
	NotifyTimeout  time.Duration
	Now            func() time.Time
	Logger         *zap.Logger
}

// NewService creates a new complaint service.
func NewService(s storage.Storage, evidence analysis.Pipeline, scorer Scorer, logger *zap.Logger) *Service {
	return &Service{
		Storage:  s,
		Evidence: evidence,
		Scorer:   scorer,
		Now:      time.Now,
		Logger:   logger,
	}
}

// SubmitRequest is a citizen's report.
type SubmitRequest struct {
	Description string
	Lat         *float64
	Lng         *float64
	ImagePath   string
}

func (r SubmitRequest) validate(actor models.Actor) error {
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if r.Lat == nil || r.Lng == nil {
		return fmt.Errorf("%w: location is required", ErrValidation)
	}
	if math.IsNaN(*r.Lat) || *r.Lat < -90 || *r.Lat > 90 || math.IsNaN(*r.Lng) || *r.Lng < -180 || *r.Lng > 180 {
		return fmt.Errorf("%w: location is out of range", ErrValidation)
	}
	if r.ImagePath == "" {
		return fmt.Errorf("%w: image is required", ErrValidation)
	}
	if !blob.OwnedBy(r.ImagePath, actor.ID) {
		return fmt.Errorf("%w: image was not uploaded by this user", ErrValidation)
	}
	return nil
}

// Submit scores and stores a new OPEN complaint. Geocoding and evidence
// gathering run concurrently and never fail the submission.
func (s *Service) Submit(ctx context.Context, actor models.Actor, req SubmitRequest) (*models.Complaint, error) {
	if actor.Role != models.RoleCitizen {
		s.record("submit", "rejected")
		return nil, fmt.Errorf("%w: only citizens can submit complaints", ErrForbidden)
	}
	if err := req.validate(actor); err != nil {
		s.record("submit", "rejected")
		return nil, err
	}
	loc := models.Location{Lat: *req.Lat, Lng: *req.Lng}

	var (
		address  string
		evidence analysis.Evidence
	)
	var g errgroup.Group
	g.Go(func() error {
		address = s.reverseGeocode(ctx, loc)
		return nil
	})
	g.Go(func() error {
		evidence = s.Evidence.Gather(ctx, analysis.Request{ImagePath: req.ImagePath, Description: req.Description})
		return nil
	})
	// Both branches absorb their own failures.
	g.Wait()

	if address != "" {
		loc.Address = &address
	}
	result := s.Scorer.Score(ctx, evidence, loc)

	summary := evidence.Summary()
	summary.RepeatNearby = result.RepeatNearby
	c := &models.Complaint{
		Description:   strings.TrimSpace(req.Description),
		Location:      loc,
		ImagePath:     req.ImagePath,
		Status:        models.StatusOpen,
		SeverityScore: result.Score,
		Priority:      result.Priority,
		Evidence:      datatypes.NewJSONType(summary),
		CreatedBy:     actor.ID,
	}
	if lo, ok := evidence.(analysis.LabelObjectEvidence); ok {
		c.DetectedLabels = lo.MatchedLabels
	}

	if err := s.Storage.SaveComplaint(ctx, c); err != nil {
		s.record("submit", "error")
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	s.record("submit", "ok")
	metrics.ComplaintsSubmitted.WithLabelValues(string(c.Priority), evidence.Pipeline()).Inc()
	metrics.SeverityScore.WithLabelValues(evidence.Pipeline()).Observe(float64(c.SeverityScore))

	s.Logger.Info("Complaint submitted",
		zap.String("complaint_id", c.ID),
		zap.String("priority", string(c.Priority)),
		zap.Int("severity_score", c.SeverityScore),
		zap.String("pipeline", evidence.Pipeline()))
	s.publish(ctx, models.EventCreated, c, actor)
	return c, nil
}

func (s *Service) reverseGeocode(ctx context.Context, loc models.Location) string {
	if s.Geocoder == nil {
		return ""
	}
	ctx, cancel := withTimeout(ctx, s.GeocodeTimeout)
	defer cancel()

	addr, err := s.Geocoder.Reverse(ctx, loc.Lat, loc.Lng)
	if err != nil {
		metrics.UpstreamDegraded.WithLabelValues("geocoder").Inc()
		s.Logger.Warn("Reverse geocoding failed, storing complaint without address",
			zap.Float64("lat", loc.Lat), zap.Float64("lng", loc.Lng), zap.Error(err))
		return ""
	}
	return addr
}

// Get returns a complaint visible to the actor: admins see all, workers their
// assignments, citizens their own reports.
func (s *Service) Get(ctx context.Context, actor models.Actor, id string) (*models.Complaint, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, c) {
		return nil, fmt.Errorf("%w: complaint %s is not visible to %s", ErrForbidden, id, actor.ID)
	}
	return c, nil
}

func canView(actor models.Actor, c *models.Complaint) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleWorker:
		return c.AssignedTo != nil && *c.AssignedTo == actor.ID
	default:
		return c.CreatedBy == actor.ID
	}
}

// Assign hands a complaint to a worker. Any current status may be reassigned.
func (s *Service) Assign(ctx context.Context, actor models.Actor, id, workerID string) (*models.Complaint, error) {
	if actor.Role != models.RoleAdmin {
		s.record("assign", "rejected")
		return nil, fmt.Errorf("%w: only admins can assign complaints", ErrForbidden)
	}
	workerID = strings.TrimSpace(workerID)
	if workerID == "" {
		s.record("assign", "rejected")
		return nil, fmt.Errorf("%w: workerId is required", ErrValidation)
	}
	if err := s.checkWorker(ctx, workerID); err != nil {
		s.record("assign", "rejected")
		return nil, err
	}

	c, err := s.load(ctx, id)
	if err != nil {
		s.record("assign", "rejected")
		return nil, err
	}

	now := s.now()
	changes := map[string]any{
		"status":      models.StatusAssigned,
		"assigned_to": workerID,
		"assigned_by": actor.ID,
		"assigned_at": now,
	}
	if err := s.update(ctx, id, changes); err != nil {
		s.record("assign", "error")
		return nil, err
	}
	s.record("assign", "ok")

	c.Status = models.StatusAssigned
	c.AssignedTo = &workerID
	c.AssignedBy = &actor.ID
	c.AssignedAt = &now
	c.UpdatedAt = now

	s.Logger.Info("Complaint assigned",
		zap.String("complaint_id", id), zap.String("worker_id", workerID), zap.String("admin_id", actor.ID))
	s.notifyAssigned(ctx, workerID, c)
	s.publish(ctx, models.EventAssigned, c, actor)
	return c, nil
}

// checkWorker rejects assignment to a registered identity whose role is not
// worker. Identities without a registry row are accepted.
func (s *Service) checkWorker(ctx context.Context, workerID string) error {
	u, err := s.Storage.GetUserByID(ctx, workerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if u.Role != models.RoleWorker {
		return fmt.Errorf("%w: user %s is not a worker", ErrValidation, workerID)
	}
	return nil
}

func (s *Service) notifyAssigned(ctx context.Context, workerID string, c *models.Complaint) {
	if s.Notifier == nil {
		return
	}
	ctx, cancel := withTimeout(ctx, s.NotifyTimeout)
	defer cancel()
	if err := s.Notifier.NotifyAssigned(ctx, workerID, c); err != nil {
		metrics.UpstreamDegraded.WithLabelValues("notifier").Inc()
		s.Logger.Warn("Failed to notify worker about assignment",
			zap.String("complaint_id", c.ID), zap.String("worker_id", workerID), zap.Error(err))
	}
}

// MarkCleaned lets the assigned worker close out their task. afterImage is
// optional; when present it is stored before the status changes.
func (s *Service) MarkCleaned(ctx context.Context, actor models.Actor, id string, afterImage []byte) (*models.Complaint, error) {
	if actor.Role != models.RoleWorker {
		s.record("clean", "rejected")
		return nil, fmt.Errorf("%w: only workers can mark complaints cleaned", ErrForbidden)
	}
	c, err := s.load(ctx, id)
	if err != nil {
		s.record("clean", "rejected")
		return nil, err
	}
	if c.AssignedTo == nil || *c.AssignedTo != actor.ID {
		s.record("clean", "rejected")
		return nil, fmt.Errorf("%w: complaint %s is not assigned to %s", ErrForbidden, id, actor.ID)
	}
	if c.Status != models.StatusAssigned {
		s.record("clean", "rejected")
		return nil, fmt.Errorf("%w: complaint %s is %s, not ASSIGNED", ErrValidation, id, c.Status)
	}

	now := s.now()
	changes := map[string]any{
		"status":     models.StatusCleaned,
		"cleaned_by": actor.ID,
		"cleaned_at": now,
	}
	if len(afterImage) > 0 {
		if s.Images == nil {
			s.record("clean", "error")
			return nil, fmt.Errorf("%w: no image store configured", ErrStorage)
		}
		key := blob.CleanupKey(id, now)
		if err := s.Images.Put(ctx, key, afterImage, "image/jpeg"); err != nil {
			s.record("clean", "error")
			return nil, fmt.Errorf("%w: store after image: %v", ErrStorage, err)
		}
		changes["after_image_path"] = key
		changes["after_uploaded_at"] = now
		c.AfterImagePath = &key
		c.AfterUploadedAt = &now
	}
	if err := s.update(ctx, id, changes); err != nil {
		s.record("clean", "error")
		return nil, err
	}
	s.record("clean", "ok")

	c.Status = models.StatusCleaned
	c.CleanedBy = &actor.ID
	c.CleanedAt = &now
	c.UpdatedAt = now

	s.Logger.Info("Complaint cleaned", zap.String("complaint_id", id), zap.String("worker_id", actor.ID))
	s.publish(ctx, models.EventCleaned, c, actor)
	return c, nil
}

// UpdateStatus is the generic transition. Workers may only move their own
// ASSIGNED complaint to CLEANED; admins may set any status, but ASSIGNED and
// CLEANED need an existing assignee.
func (s *Service) UpdateStatus(ctx context.Context, actor models.Actor, id string, target models.Status) (*models.Complaint, error) {
	if !target.Valid() {
		s.record("status", "rejected")
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, target)
	}

	switch actor.Role {
	case models.RoleWorker:
		if target != models.StatusCleaned {
			s.record("status", "rejected")
			return nil, fmt.Errorf("%w: workers can only mark complaints CLEANED", ErrForbidden)
		}
		return s.MarkCleaned(ctx, actor, id, nil)
	case models.RoleAdmin:
	default:
		s.record("status", "rejected")
		return nil, fmt.Errorf("%w: role %s cannot change status", ErrForbidden, actor.Role)
	}

	c, err := s.load(ctx, id)
	if err != nil {
		s.record("status", "rejected")
		return nil, err
	}
	if (target == models.StatusAssigned || target == models.StatusCleaned) && c.AssignedTo == nil {
		s.record("status", "rejected")
		return nil, fmt.Errorf("%w: %s requires an assigned worker", ErrValidation, target)
	}

	now := s.now()
	if err := s.update(ctx, id, map[string]any{"status": target}); err != nil {
		s.record("status", "error")
		return nil, err
	}
	s.record("status", "ok")
	c.Status = target
	c.UpdatedAt = now

	s.Logger.Info("Complaint status updated",
		zap.String("complaint_id", id), zap.String("status", string(target)), zap.String("admin_id", actor.ID))
	s.publish(ctx, models.EventStatusChanged, c, actor)
	return c, nil
}

// ListQuery filters complaint listings. Only admins may filter; workers and
// citizens always get their own scope.
type ListQuery struct {
	Status      models.Status
	MinSeverity int
	Before      time.Time
	Limit       int
}

// List returns complaints in the actor's scope, newest first.
func (s *Service) List(ctx context.Context, actor models.Actor, q ListQuery) ([]models.Complaint, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, q.Status)
	}
	if q.MinSeverity < 0 || q.MinSeverity > 100 {
		return nil, fmt.Errorf("%w: min severity must be within 0..100", ErrValidation)
	}

	limit := q.Limit
	if limit <= 0 || limit > config.AdminListLimit {
		limit = config.AdminListLimit
	}
	f := storage.ComplaintFilter{Before: q.Before, Limit: limit}
	switch actor.Role {
	case models.RoleAdmin:
		f.Status = q.Status
		f.MinSeverity = q.MinSeverity
	case models.RoleWorker:
		f.AssignedTo = actor.ID
	default:
		f.CreatedBy = actor.ID
	}

	out, err := s.Storage.ListComplaints(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return out, nil
}

// Stats returns complaint counts per status for the admin panel.
func (s *Service) Stats(ctx context.Context, actor models.Actor) (map[models.Status]int64, error) {
	if actor.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins can view stats", ErrForbidden)
	}
	counts, err := s.Storage.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return counts, nil
}

// SetRole assigns a role to an identity.
func (s *Service) SetRole(ctx context.Context, actor models.Actor, userID, role string) error {
	if actor.Role != models.RoleAdmin {
		return fmt.Errorf("%w: only admins can assign roles", ErrForbidden)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	r, ok := models.ParseRole(role)
	if !ok {
		return fmt.Errorf("%w: invalid role %q", ErrValidation, role)
	}
	if err := s.Storage.SaveUserRole(ctx, &models.User{ID: userID, Role: r, UpdatedBy: actor.ID}); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	s.Logger.Info("Role assigned", zap.String("user_id", userID), zap.String("role", string(r)), zap.String("admin_id", actor.ID))
	return nil
}

func (s *Service) load(ctx context.Context, id string) (*models.Complaint, error) {
	c, err := s.Storage.GetComplaintByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return c, nil
}

func (s *Service) update(ctx context.Context, id string, changes map[string]any) error {
	err := s.Storage.UpdateComplaint(ctx, id, changes)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, typ models.EventType, c *models.Complaint, actor models.Actor) {
	ev := models.ComplaintEvent{
		Type:          typ,
		ComplaintID:   c.ID,
		Status:        c.Status,
		Priority:      c.Priority,
		SeverityScore: c.SeverityScore,
		ActorID:       actor.ID,
		OccurredAt:    s.now(),
	}
	if c.AssignedTo != nil {
		ev.AssignedTo = *c.AssignedTo
	}
	if err := s.Storage.PublishEvent(ctx, ev); err != nil {
		s.Logger.Warn("Failed to publish complaint event",
			zap.String("complaint_id", c.ID), zap.String("type", string(typ)), zap.Error(err))
	}
}

func (s *Service) record(operation, result string) {
	metrics.Transitions.WithLabelValues(operation, result).Inc()
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
