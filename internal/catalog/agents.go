// ABOUTME: AgentStore caches the backend agent catalog with a local fallback
// ABOUTME: Tracks the selected agent and prunes rows the backend no longer lists

package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/raikolabs/chatsync/internal/remote"
	"github.com/raikolabs/chatsync/internal/store"
)

// ErrNotInCatalog is returned when a selection references an entry the
// catalog does not hold.
var ErrNotInCatalog = errors.New("not in catalog")

// agentProvider tags every catalog row with the backend family it came
// from.
const agentProvider = "raiko"

// AgentStorage defines what the agent catalog needs from persistence
type AgentStorage interface {
	SaveAgents(ctx context.Context, agents []*store.Agent) error
	ListAgents(ctx context.Context) ([]*store.Agent, error)
	DeleteAgents(ctx context.Context) error
}

// AgentLister defines what the agent catalog needs from the backend
type AgentLister interface {
	ListAgents(ctx context.Context) ([]remote.Agent, error)
}

// AgentStore keeps a local cache of the backend agent catalog. The
// cached rows survive offline starts; each successful refresh prunes
// entries the backend stopped listing.
type AgentStore struct {
	storage AgentStorage
	remote  AgentLister
	logger  *slog.Logger

	mu       sync.RWMutex
	agents   []*store.Agent
	selected *store.Agent
}

// NewAgentStore creates an agent catalog. Pass nil logger for default.
func NewAgentStore(storage AgentStorage, lister AgentLister, logger *slog.Logger) *AgentStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentStore{
		storage: storage,
		remote:  lister,
		logger:  logger.With("component", "agents"),
	}
}

// LoadAgents refreshes the catalog from the backend: remote rows are
// upserted into storage, then the cache reloads filtered to the names
// the backend listed. When the backend is unreachable the cached rows
// are served instead and the error is returned.
func (s *AgentStore) LoadAgents(ctx context.Context) error {
	remoteAgents, err := s.remote.ListAgents(ctx)
	if err != nil {
		cached, loadErr := s.storage.ListAgents(ctx)
		if loadErr != nil {
			return fmt.Errorf("listing cached agents: %w", loadErr)
		}
		s.replace(cached)
		s.logger.Warn("serving cached agent catalog", "error", err, "agents", len(cached))
		return fmt.Errorf("fetching agents: %w", err)
	}

	rows := make([]*store.Agent, len(remoteAgents))
	for i, a := range remoteAgents {
		rows[i] = &store.Agent{
			Name:         a.Name,
			Type:         a.Type,
			ImageSupport: a.ImageSupport,
			Provider:     agentProvider,
			Available:    true,
		}
	}
	if err := s.storage.SaveAgents(ctx, rows); err != nil {
		return fmt.Errorf("saving agents: %w", err)
	}

	stored, err := s.storage.ListAgents(ctx)
	if err != nil {
		return fmt.Errorf("listing agents: %w", err)
	}

	// Prune rows the backend no longer lists, keeping the backend's
	// ordering so the last-entry fallback stays meaningful
	byName := make(map[string]*store.Agent, len(stored))
	for _, a := range stored {
		byName[a.Name] = a
	}
	pruned := make([]*store.Agent, 0, len(remoteAgents))
	for _, ra := range remoteAgents {
		if a, ok := byName[ra.Name]; ok {
			pruned = append(pruned, a)
		}
	}
	s.replace(pruned)

	s.logger.Debug("agent catalog refreshed", "agents", len(pruned))
	return nil
}

// replace swaps the cache and revalidates the selection: a vanished
// selection falls back to the last entry.
func (s *AgentStore) replace(agents []*store.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.agents = agents
	if s.selected != nil {
		for _, a := range agents {
			if a.Name == s.selected.Name {
				s.selected = a
				return
			}
		}
	}
	if len(agents) > 0 {
		s.selected = agents[len(agents)-1]
	} else {
		s.selected = nil
	}
}

// SetAgent selects an agent already present in the catalog.
func (s *AgentStore) SetAgent(agent *store.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.agents {
		if a.Name == agent.Name {
			s.selected = a
			return nil
		}
	}
	return fmt.Errorf("agent %q: %w", agent.Name, ErrNotInCatalog)
}

// SetAgentByName selects the named agent, falling back to the last
// catalog entry when the name is unknown.
func (s *AgentStore) SetAgentByName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.agents {
		if a.Name == name {
			s.selected = a
			return
		}
	}
	if len(s.agents) > 0 {
		s.selected = s.agents[len(s.agents)-1]
	}
}

// DeleteAllAgents clears the catalog. The in-memory view empties first;
// a storage failure is logged and swallowed since the next refresh
// rebuilds the rows anyway.
func (s *AgentStore) DeleteAllAgents(ctx context.Context) {
	s.mu.Lock()
	s.agents = nil
	s.selected = nil
	s.mu.Unlock()

	if err := s.storage.DeleteAgents(ctx); err != nil {
		s.logger.Warn("agent catalog delete failed", "error", err)
	}
}

// Agents returns a copy of the cached catalog.
func (s *AgentStore) Agents() []*store.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.Agent, len(s.agents))
	for i, a := range s.agents {
		dup := *a
		out[i] = &dup
	}
	return out
}

// Selected returns a copy of the selected agent, or nil.
func (s *AgentStore) Selected() *store.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selected == nil {
		return nil
	}
	dup := *s.selected
	return &dup
}
