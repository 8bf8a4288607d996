package complaint

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"cleancity/backend/internal/models"
	"cleancity/backend/internal/storage"

	"github.com/google/uuid"
)

// memStore is an in-memory storage.Storage with column-level updates.
type memStore struct {
	mu         sync.Mutex
	complaints map[string]models.Complaint
	users      map[string]models.User
	events     []models.ComplaintEvent
	failSave   error
	failUpdate error
}

func newMemStore() *memStore {
	return &memStore{complaints: map[string]models.Complaint{}, users: map[string]models.User{}}
}

func (m *memStore) SaveComplaint(_ context.Context, c *models.Complaint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	m.complaints[c.ID] = *c
	return nil
}

func (m *memStore) GetComplaintByID(_ context.Context, id string) (*models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.complaints[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

func (m *memStore) UpdateComplaint(_ context.Context, id string, changes map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate != nil {
		return m.failUpdate
	}
	c, ok := m.complaints[id]
	if !ok {
		return storage.ErrNotFound
	}
	for col, v := range changes {
		switch col {
		case "status":
			c.Status = v.(models.Status)
		case "assigned_to":
			s := v.(string)
			c.AssignedTo = &s
		case "assigned_by":
			s := v.(string)
			c.AssignedBy = &s
		case "assigned_at":
			t := v.(time.Time)
			c.AssignedAt = &t
		case "cleaned_by":
			s := v.(string)
			c.CleanedBy = &s
		case "cleaned_at":
			t := v.(time.Time)
			c.CleanedAt = &t
		case "after_image_path":
			s := v.(string)
			c.AfterImagePath = &s
		case "after_uploaded_at":
			t := v.(time.Time)
			c.AfterUploadedAt = &t
		default:
			return errors.New("unexpected column " + col)
		}
	}
	m.complaints[id] = c
	return nil
}

func (m *memStore) ListComplaints(_ context.Context, f storage.ComplaintFilter) ([]models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Complaint
	for _, c := range m.complaints {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if c.SeverityScore < f.MinSeverity {
			continue
		}
		if f.AssignedTo != "" && (c.AssignedTo == nil || *c.AssignedTo != f.AssignedTo) {
			continue
		}
		if f.CreatedBy != "" && c.CreatedBy != f.CreatedBy {
			continue
		}
		if !f.Before.IsZero() && !c.CreatedAt.Before(f.Before) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) CountByStatus(context.Context) (map[models.Status]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[models.Status]int64{
		models.StatusOpen: 0, models.StatusAssigned: 0, models.StatusCleaned: 0, models.StatusClosed: 0,
	}
	for _, c := range m.complaints {
		counts[c.Status]++
	}
	return counts, nil
}

func (m *memStore) CountNearbySince(_ context.Context, lat, lng, delta float64, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, c := range m.complaints {
		if c.Location.Lat > lat-delta && c.Location.Lat < lat+delta &&
			c.Location.Lng > lng-delta && c.Location.Lng < lng+delta &&
			!c.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (m *memStore) SaveUserRole(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = *u
	return nil
}

func (m *memStore) PublishEvent(_ context.Context, ev models.ComplaintEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memStore) published() []models.ComplaintEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ComplaintEvent(nil), m.events...)
}
