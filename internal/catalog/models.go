// ABOUTME: ModelStore is the in-memory model catalog
// ABOUTME: Tracks the selected model and its image support

package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/raikolabs/chatsync/internal/remote"
)

// ModelLister defines what the model catalog needs from the backend
type ModelLister interface {
	ListModels(ctx context.Context) ([]remote.Model, error)
}

// ModelStore holds the model catalog in memory. Models are cheap to
// refetch, so unlike agents they are never persisted.
type ModelStore struct {
	remote ModelLister
	logger *slog.Logger

	mu       sync.RWMutex
	models   []remote.Model
	selected *remote.Model
}

// NewModelStore creates a model catalog. Pass nil logger for default.
func NewModelStore(lister ModelLister, logger *slog.Logger) *ModelStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelStore{
		remote: lister,
		logger: logger.With("component", "models"),
	}
}

// LoadModels refreshes the catalog from the backend.
func (s *ModelStore) LoadModels(ctx context.Context) error {
	models, err := s.remote.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("fetching models: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.models = models
	if s.selected != nil {
		for i := range models {
			if models[i].Name == s.selected.Name {
				s.selected = &models[i]
				s.logger.Debug("model catalog refreshed", "models", len(models))
				return nil
			}
		}
	}
	if len(models) > 0 {
		s.selected = &models[len(models)-1]
	} else {
		s.selected = nil
	}
	s.logger.Debug("model catalog refreshed", "models", len(models))
	return nil
}

// SetModel selects the named model, falling back to the last catalog
// entry when the name is unknown.
func (s *ModelStore) SetModel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.models {
		if s.models[i].Name == name {
			s.selected = &s.models[i]
			return
		}
	}
	if len(s.models) > 0 {
		s.selected = &s.models[len(s.models)-1]
	}
}

// Models returns a copy of the catalog.
func (s *ModelStore) Models() []remote.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]remote.Model(nil), s.models...)
}

// Selected returns a copy of the selected model, or nil.
func (s *ModelStore) Selected() *remote.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selected == nil {
		return nil
	}
	dup := *s.selected
	return &dup
}

// SupportsImages reports whether the selected model accepts image
// attachments. No selection means no image support.
func (s *ModelStore) SupportsImages() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected != nil && s.selected.ImageSupport
}
