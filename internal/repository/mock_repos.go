package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/nerdherd/push-relay/internal/domain"
)

// MockTargetRepository is a hand-written, in-memory TargetRepository used in
// unit tests. No mock-generation library needed.
type MockTargetRepository struct {
	mu      sync.RWMutex
	tokens  map[string]string
	lookups int

	// Optional error override; set in tests to simulate a failing store.
	Err error
}

func NewMockTargetRepository() *MockTargetRepository {
	return &MockTargetRepository{tokens: make(map[string]string)}
}

// Set registers a device token for a user.
func (m *MockTargetRepository) Set(userID, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[userID] = token
}

// Lookups returns how many times FCMToken was called.
func (m *MockTargetRepository) Lookups() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lookups
}

func (m *MockTargetRepository) FCMToken(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.Err != nil {
		return "", m.Err
	}
	tok, ok := m.tokens[userID]
	if !ok || tok == "" {
		return "", domain.ErrNoTarget
	}
	return tok, nil
}

// MockDeliveryRepository keeps delivery records in memory.
type MockDeliveryRepository struct {
	mu      sync.RWMutex
	records []*domain.DeliveryRecord

	RecordErr error
}

func NewMockDeliveryRepository() *MockDeliveryRepository {
	return &MockDeliveryRepository{}
}

func (m *MockDeliveryRepository) Record(_ context.Context, rec *domain.DeliveryRecord) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *rec
	m.records = append(m.records, &clone)
	return nil
}

func (m *MockDeliveryRepository) ListByUser(_ context.Context, userID string, limit int) ([]*domain.DeliveryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.DeliveryRecord
	for _, r := range m.records {
		if r.UserID == userID {
			clone := *r
			out = append(out, &clone)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MockSuppressor is an in-memory Suppressor without expiry.
type MockSuppressor struct {
	mu         sync.RWMutex
	suppressed map[string]bool
}

func NewMockSuppressor() *MockSuppressor {
	return &MockSuppressor{suppressed: make(map[string]bool)}
}

func (m *MockSuppressor) Suppress(_ context.Context, deviceToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppressed[deviceToken] = true
	return nil
}

func (m *MockSuppressor) IsSuppressed(_ context.Context, deviceToken string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.suppressed[deviceToken], nil
}

var (
	_ TargetRepository   = (*MockTargetRepository)(nil)
	_ DeliveryRepository = (*MockDeliveryRepository)(nil)
	_ Suppressor         = (*MockSuppressor)(nil)
	_ Suppressor         = NopSuppressor{}
)
