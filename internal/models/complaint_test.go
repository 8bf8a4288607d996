package models_test

import (
	"cleancity/backend/internal/models"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

// TestComplaintBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestComplaintBeforeCreate_GeneratesUUID(t *testing.T) {
	// Arrange
	c := &models.Complaint{
		Description: "overflowing bins",
		Location:    models.Location{Lat: 50.45, Lng: 30.52},
		ImagePath:   "complaints/u1/a.jpg",
		Status:      models.StatusOpen,
	}
	assert.Empty(t, c.ID)

	// Act
	err := c.BeforeCreate(nil)

	// Assert
	assert.NoError(t, err)
	parsed, parseErr := uuid.Parse(c.ID)
	assert.NoError(t, parseErr, "Complaint ID must be a valid UUID string")
	assert.NotEqual(t, uuid.Nil, parsed)
}

func TestComplaintBeforeCreate_PreservesExistingID(t *testing.T) {
	existing := uuid.New().String()
	c := &models.Complaint{ID: existing}

	assert.NoError(t, c.BeforeCreate(nil))
	assert.Equal(t, existing, c.ID)
}

// TestComplaintStructTags guards the columns the nearby scan depends on.
func TestComplaintStructTags(t *testing.T) {
	locType := reflect.TypeOf(models.Location{})

	lat, ok := locType.FieldByName("Lat")
	assert.True(t, ok)
	assert.Contains(t, lat.Tag.Get("gorm"), "column:latitude")
	assert.Contains(t, lat.Tag.Get("gorm"), "idx_complaints_geo_time")

	lng, ok := locType.FieldByName("Lng")
	assert.True(t, ok)
	assert.Contains(t, lng.Tag.Get("gorm"), "column:longitude")

	cType := reflect.TypeOf(models.Complaint{})
	created, ok := cType.FieldByName("CreatedAt")
	assert.True(t, ok)
	assert.Contains(t, created.Tag.Get("gorm"), "idx_complaints_geo_time,priority:3")

	labels, ok := cType.FieldByName("DetectedLabels")
	assert.True(t, ok)
	assert.Contains(t, labels.Tag.Get("gorm"), "type:text[]")
}

func TestStatusValid(t *testing.T) {
	tests := []struct {
		status models.Status
		want   bool
	}{
		{models.StatusOpen, true},
		{models.StatusAssigned, true},
		{models.StatusCleaned, true},
		{models.StatusClosed, true},
		{"", false},
		{"open", false},
		{"RESOLVED", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Valid())
		})
	}
}

func TestParseRole(t *testing.T) {
	r, ok := models.ParseRole("worker")
	assert.True(t, ok)
	assert.Equal(t, models.RoleWorker, r)

	_, ok = models.ParseRole("superuser")
	assert.False(t, ok)

	_, ok = models.ParseRole("Admin")
	assert.False(t, ok, "roles are case sensitive")
}

func TestEvidenceSummary_JSONType(t *testing.T) {
	yes := true
	c := models.Complaint{
		Evidence: datatypes.NewJSONType(models.EvidenceSummary{
			Pipeline:        "ai_verdict",
			Model:           "gemini-2.5-flash",
			IsPublicGarbage: &yes,
			Confidence:      0.9,
			Severity:        "HIGH",
		}),
	}

	got := c.Evidence.Data()
	assert.Equal(t, "ai_verdict", got.Pipeline)
	assert.True(t, *got.IsPublicGarbage)
	assert.Equal(t, "HIGH", got.Severity)
}
