package session

import (
	"context"
	"sync"

	"github.com/daybookhq/accounts-go/internal/accounts/models"
)

// MemoryRepository is an in-process Repository for tests and ephemeral use.
type MemoryRepository struct {
	mu   sync.RWMutex
	sess *models.Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Save(_ context.Context, sess models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := sess
	r.sess = &copied
	return nil
}

func (r *MemoryRepository) Get(_ context.Context) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.sess == nil {
		return nil, nil
	}
	copied := *r.sess
	return &copied, nil
}

func (r *MemoryRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sess = nil
	return nil
}
