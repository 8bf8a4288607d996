package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Status is the lifecycle state of a complaint.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusAssigned Status = "ASSIGNED"
	StatusCleaned  Status = "CLEANED"
	StatusClosed   Status = "CLOSED"
)

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusAssigned, StatusCleaned, StatusClosed:
		return true
	}
	return false
}

// Priority is the coarse urgency bucket derived from the severity score.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Location is where the garbage was reported. Lat/Lng are indexed together with
// the creation time so the nearby-history scan is a range query.
type Location struct {
	Lat     float64 `gorm:"column:latitude;not null;index:idx_complaints_geo_time,priority:1" json:"lat"`
	Lng     float64 `gorm:"column:longitude;not null;index:idx_complaints_geo_time,priority:2" json:"lng"`
	Address *string `gorm:"column:address;type:text" json:"address,omitempty"`
}

// EvidenceSummary explains how the severity score was reached.
type EvidenceSummary struct {
	Pipeline        string  `json:"pipeline"`
	Model           string  `json:"model,omitempty"`
	IsPublicGarbage *bool   `json:"is_public_garbage,omitempty"`
	PersonPresent   bool    `json:"person_present"`
	ObjectCount     int     `json:"object_count"`
	Confidence      float64 `json:"confidence"`
	Severity        string  `json:"severity,omitempty"`
	Reason          string  `json:"reason,omitempty"`
	RepeatNearby    int     `json:"repeat_nearby"`
}

// Complaint is a citizen report of uncollected garbage.
// SeverityScore and Priority are written once at creation.
type Complaint struct {
	ID          string   `gorm:"primaryKey;type:uuid" json:"id"`
	Description string   `gorm:"type:text;not null" json:"description"`
	Location    Location `gorm:"embedded" json:"location"`
	ImagePath   string   `gorm:"type:text;not null" json:"image_path"`

	Status        Status   `gorm:"type:text;not null;index" json:"status"`
	SeverityScore int      `gorm:"not null;index" json:"severity_score"`
	Priority      Priority `gorm:"type:text;not null" json:"priority"`

	Evidence       datatypes.JSONType[EvidenceSummary] `gorm:"type:jsonb" json:"evidence_summary"`
	DetectedLabels pq.StringArray                      `gorm:"type:text[]" json:"detected_labels,omitempty"`

	CreatedBy  string  `gorm:"type:text;not null;index" json:"created_by"`
	AssignedTo *string `gorm:"type:text;index" json:"assigned_to,omitempty"`
	AssignedBy *string `gorm:"type:text" json:"assigned_by,omitempty"`
	CleanedBy  *string `gorm:"type:text" json:"cleaned_by,omitempty"`

	AfterImagePath *string `gorm:"type:text" json:"after_image_path,omitempty"`

	CreatedAt       time.Time  `gorm:"not null;index:idx_complaints_geo_time,priority:3" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	AssignedAt      *time.Time `json:"assigned_at,omitempty"`
	CleanedAt       *time.Time `json:"cleaned_at,omitempty"`
	AfterUploadedAt *time.Time `json:"after_uploaded_at,omitempty"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (c *Complaint) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}
