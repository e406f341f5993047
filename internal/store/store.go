// ABOUTME: Store interface and data types for chatsync persistence
// ABOUTME: Defines Conversation, Message, Document, Agent structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when trying to create a conversation that already exists
var ErrDuplicateConversation = errors.New("conversation already exists")

// Role constants for message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DocumentKind constants distinguish primary retrieval hits from sub-documents
const (
	DocumentKindPrimary = "primary"
	DocumentKindSub     = "sub"
)

// Conversation is a named, time-ordered thread of messages tied to one
// selected model. ModelName is a non-owning reference into the catalog;
// it is cleared (not cascaded) when the catalog entry disappears.
type Conversation struct {
	ID        string
	Name      string
	ModelName string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one turn in a conversation. Content grows incrementally
// while a response streams in; the query-result fields are filled once
// the remote call resolves. Exactly one of Done/Error may be set after
// a completed exchange.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	Image          []byte // compressed payload, nil when absent
	Done           bool
	Error          bool
	CreatedAt      time.Time

	Query         string
	QueryExpanded string
	Formatted     string
	Response      string
	Documents     []Document // primary retrieval hits
	SubDocuments  []Document
}

// Document is a retrieved knowledge unit attached to an assistant
// message. Immutable once attached.
type Document struct {
	ID        string
	Distance  *float64
	Document  string
	Metadata  map[string]string
	Formatted *string
}

// Agent is a locally cached catalog row. Rows are replaced wholesale on
// each successful remote refresh.
type Agent struct {
	Name         string
	Type         string
	ImageSupport bool
	Provider     string
	Available    bool
}

// Store defines all persistence operations for conversations, messages,
// and the agent catalog. Mutating calls persist synchronously with
// respect to their caller but are not serialized against each other;
// callers must serialize logically-conflicting operations.
type Store interface {
	CreateConversation(ctx context.Context, c *Conversation) error
	UpdateConversation(ctx context.Context, c *Conversation) error
	DeleteConversation(ctx context.Context, id string) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context) ([]*Conversation, error)

	CreateMessage(ctx context.Context, m *Message) error
	UpdateMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)
	DeleteMessagesFrom(ctx context.Context, conversationID, messageID string) error
	DeleteAllMessages(ctx context.Context) error

	DeleteAllConversations(ctx context.Context) error
	DeleteConversationsOn(ctx context.Context, day time.Time) error

	SaveAgents(ctx context.Context, agents []*Agent) error
	ListAgents(ctx context.Context) ([]*Agent, error)
	DeleteAgents(ctx context.Context) error

	Close() error
}
