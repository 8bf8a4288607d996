package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cleancity/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a complaint or user does not exist.
var ErrNotFound = errors.New("record not found")

// Storage is the document store the lifecycle manager works against.
type Storage interface {
	SaveComplaint(ctx context.Context, complaint *models.Complaint) error
	GetComplaintByID(ctx context.Context, id string) (*models.Complaint, error)
	UpdateComplaint(ctx context.Context, id string, changes map[string]any) error
	ListComplaints(ctx context.Context, filter ComplaintFilter) ([]models.Complaint, error)
	CountByStatus(ctx context.Context) (map[models.Status]int64, error)
	CountNearbySince(ctx context.Context, lat, lng, delta float64, since time.Time) (int64, error)

	GetUserByID(ctx context.Context, id string) (*models.User, error)
	SaveUserRole(ctx context.Context, user *models.User) error

	PublishEvent(ctx context.Context, event models.ComplaintEvent) error
}

// ComplaintFilter narrows ListComplaints. Zero values mean "any".
// Results are ordered newest first; Before is the exclusive cursor.
type ComplaintFilter struct {
	Status      models.Status
	MinSeverity int
	AssignedTo  string
	CreatedBy   string
	Before      time.Time
	Limit       int
}

type Service struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Channel string
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client, channel string) *Service {
	return &Service{
		DB:      db,
		Redis:   rdb,
		Channel: channel,
	}
}

// SaveComplaint inserts a new complaint. The id is generated when empty.
func (s *Service) SaveComplaint(ctx context.Context, complaint *models.Complaint) error {
	if complaint.Status == "" {
		complaint.Status = models.StatusOpen
	}
	if err := s.DB.WithContext(ctx).Create(complaint).Error; err != nil {
		return fmt.Errorf("insert complaint: %w", err)
	}
	return nil
}

func (s *Service) GetComplaintByID(ctx context.Context, id string) (*models.Complaint, error) {
	var c models.Complaint
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get complaint %s: %w", id, err)
	}
	return &c, nil
}

// UpdateComplaint writes the given columns. Concurrent updates of the same
// row are last-write-wins.
func (s *Service) UpdateComplaint(ctx context.Context, id string, changes map[string]any) error {
	res := s.DB.WithContext(ctx).Model(&models.Complaint{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return fmt.Errorf("update complaint %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) ListComplaints(ctx context.Context, f ComplaintFilter) ([]models.Complaint, error) {
	q := s.DB.WithContext(ctx).Model(&models.Complaint{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.MinSeverity > 0 {
		q = q.Where("severity_score >= ?", f.MinSeverity)
	}
	if f.AssignedTo != "" {
		q = q.Where("assigned_to = ?", f.AssignedTo)
	}
	if f.CreatedBy != "" {
		q = q.Where("created_by = ?", f.CreatedBy)
	}
	if !f.Before.IsZero() {
		q = q.Where("created_at < ?", f.Before)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []models.Complaint
	if err := q.Order("created_at desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	return out, nil
}

type statusCount struct {
	Status models.Status
	Count  int64
}

// CountByStatus returns the number of complaints per lifecycle state. States
// without complaints are present with a zero count.
func (s *Service) CountByStatus(ctx context.Context) (map[models.Status]int64, error) {
	var rows []statusCount
	err := s.DB.WithContext(ctx).Model(&models.Complaint{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}

	out := map[models.Status]int64{
		models.StatusOpen:     0,
		models.StatusAssigned: 0,
		models.StatusCleaned:  0,
		models.StatusClosed:   0,
	}
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}

// CountNearbySince counts complaints created at or after since whose latitude
// and longitude are both strictly within delta degrees of (lat, lng). It is a
// range scan over idx_complaints_geo_time.
func (s *Service) CountNearbySince(ctx context.Context, lat, lng, delta float64, since time.Time) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Complaint{}).
		Where("latitude > ? AND latitude < ?", lat-delta, lat+delta).
		Where("longitude > ? AND longitude < ?", lng-delta, lng+delta).
		Where("created_at >= ?", since).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count nearby: %w", err)
	}
	return n, nil
}

func (s *Service) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

// SaveUserRole upserts the user's role, leaving any Telegram link intact.
func (s *Service) SaveUserRole(ctx context.Context, user *models.User) error {
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "updated_by", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		return fmt.Errorf("save user %s: %w", user.ID, err)
	}
	return nil
}

// LinkTelegram stores the chat a user receives notifications in. role seeds a
// new registry row; an existing row keeps its role.
func (s *Service) LinkTelegram(ctx context.Context, userID string, role models.Role, chatID int64, language string) error {
	if role == "" {
		role = models.RoleCitizen
	}
	user := models.User{ID: userID, Role: role, TelegramChatID: &chatID, Language: language}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"telegram_chat_id", "language", "updated_at"}),
	}).Create(&user).Error
	if err != nil {
		return fmt.Errorf("link telegram for %s: %w", userID, err)
	}
	return nil
}

// PublishEvent publishes a lifecycle event on the Redis channel.
func (s *Service) PublishEvent(ctx context.Context, event models.ComplaintEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, s.Channel, string(msgBytes)).Err()
}

// Subscribe opens a subscription to the lifecycle event channel.
func (s *Service) Subscribe(ctx context.Context) *redis.PubSub {
	return s.Redis.Subscribe(ctx, s.Channel)
}
