// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	messages      map[string][]*Message // keyed by conversation ID, insertion order
	agents        map[string]*Agent

	// Error hooks let tests simulate storage failures per operation name
	FailOn map[string]error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]*Message),
		agents:        make(map[string]*Agent),
		FailOn:        make(map[string]error),
	}
}

func (m *MockStore) fail(op string) error {
	if err, ok := m.FailOn[op]; ok {
		return err
	}
	return nil
}

// CreateConversation stores a new conversation.
func (m *MockStore) CreateConversation(ctx context.Context, c *Conversation) error {
	if err := m.fail("CreateConversation"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[c.ID]; ok {
		return ErrDuplicateConversation
	}
	cp := *c
	m.conversations[c.ID] = &cp
	return nil
}

// UpdateConversation upserts a conversation.
func (m *MockStore) UpdateConversation(ctx context.Context, c *Conversation) error {
	if err := m.fail("UpdateConversation"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *c
	if existing, ok := m.conversations[c.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	m.conversations[c.ID] = &cp
	return nil
}

// DeleteConversation removes a conversation and its messages.
func (m *MockStore) DeleteConversation(ctx context.Context, id string) error {
	if err := m.fail("DeleteConversation"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(m.conversations, id)
	delete(m.messages, id)
	return nil
}

// GetConversation retrieves a conversation by ID.
func (m *MockStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	if err := m.fail("GetConversation"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// ListConversations returns conversations ordered by updated_at descending.
func (m *MockStore) ListConversations(ctx context.Context) ([]*Conversation, error) {
	if err := m.fail("ListConversations"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Conversation, 0, len(m.conversations))
	for _, c := range m.conversations {
		cp := *c
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// CreateMessage appends a message to its conversation.
func (m *MockStore) CreateMessage(ctx context.Context, msg *Message) error {
	if err := m.fail("CreateMessage"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *msg
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], &cp)
	return nil
}

// UpdateMessage rewrites a stored message.
func (m *MockStore) UpdateMessage(ctx context.Context, msg *Message) error {
	if err := m.fail("UpdateMessage"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.messages[msg.ConversationID] {
		if existing.ID == msg.ID {
			cp := *msg
			cp.CreatedAt = existing.CreatedAt
			m.messages[msg.ConversationID][i] = &cp
			return nil
		}
	}
	return ErrNotFound
}

// ListMessages returns messages ordered by creation time ascending.
func (m *MockStore) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	if err := m.fail("ListMessages"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[conversationID]
	result := make([]*Message, len(msgs))
	for i, msg := range msgs {
		cp := *msg
		result[i] = &cp
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteMessagesFrom removes the named message and everything after it.
func (m *MockStore) DeleteMessagesFrom(ctx context.Context, conversationID, messageID string) error {
	if err := m.fail("DeleteMessagesFrom"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := m.messages[conversationID]
	ordered := make([]*Message, len(msgs))
	copy(ordered, msgs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	cut := -1
	for i, msg := range ordered {
		if msg.ID == messageID {
			cut = i
			break
		}
	}
	if cut == -1 {
		return ErrNotFound
	}
	m.messages[conversationID] = ordered[:cut]
	return nil
}

// DeleteAllMessages clears every message.
func (m *MockStore) DeleteAllMessages(ctx context.Context) error {
	if err := m.fail("DeleteAllMessages"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = make(map[string][]*Message)
	return nil
}

// DeleteAllConversations clears all conversations and messages.
func (m *MockStore) DeleteAllConversations(ctx context.Context) error {
	if err := m.fail("DeleteAllConversations"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conversations = make(map[string]*Conversation)
	m.messages = make(map[string][]*Message)
	return nil
}

// DeleteConversationsOn removes conversations updated on the given UTC day.
func (m *MockStore) DeleteConversationsOn(ctx context.Context, day time.Time) error {
	if err := m.fail("DeleteConversationsOn"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	for id, c := range m.conversations {
		u := c.UpdatedAt.UTC()
		if !u.Before(start) && u.Before(end) {
			delete(m.conversations, id)
			delete(m.messages, id)
		}
	}
	return nil
}

// SaveAgents upserts catalog rows.
func (m *MockStore) SaveAgents(ctx context.Context, agents []*Agent) error {
	if err := m.fail("SaveAgents"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range agents {
		cp := *a
		m.agents[a.Name] = &cp
	}
	return nil
}

// ListAgents returns the cached catalog ordered by name.
func (m *MockStore) ListAgents(ctx context.Context) ([]*Agent, error) {
	if err := m.fail("ListAgents"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Agent, 0, len(m.agents))
	for _, a := range m.agents {
		cp := *a
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// DeleteAgents clears the catalog and nullifies model references.
func (m *MockStore) DeleteAgents(ctx context.Context) error {
	if err := m.fail("DeleteAgents"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.agents = make(map[string]*Agent)
	for _, c := range m.conversations {
		c.ModelName = ""
	}
	return nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}
