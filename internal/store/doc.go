// Package store provides persistent storage for chatsync using SQLite.
//
// # Architecture
//
// The package exposes a single Store interface covering conversations,
// messages (with attached documents), and the agent catalog.
// SQLiteStore implements it on modernc.org/sqlite; MockStore implements
// it in memory for tests.
//
// # Data Models
//
//   - Conversation: named thread with a non-owning model reference
//   - Message: one turn (system/user/assistant) with done/error flags,
//     an optional compressed image payload, and query-result fields
//   - Document: immutable retrieved knowledge unit attached to a message
//     (primary or sub), with distance score and string metadata
//   - Agent: locally cached catalog row, replaced wholesale on refresh
//
// Conversations exclusively own their messages: deleting a conversation
// cascades to messages and documents. The catalog is referenced by name
// only; clearing the catalog blanks conversation model references but
// never deletes conversations.
//
// # Ordering
//
// ListConversations orders by updated_at descending. ListMessages
// orders by created_at ascending with insertion order as tiebreak,
// which is what the trim (DeleteMessagesFrom) and replay logic rely on.
// Timestamps are stored as fixed-width UTC text so lexicographic SQL
// ordering matches chronological ordering.
//
// # SQLite Configuration
//
// The store uses WAL mode and enforces foreign keys:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// The schema is created automatically on open. Use ":memory:" for
// tests.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateConversation: conversation ID already taken
//
// Every mutating call is all-or-nothing for the entity it writes (a
// message and its documents commit in one transaction). Calls are not
// serialized against each other; the conversation service owns that.
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests. Its FailOn map injects errors per
// operation name:
//
//	s := store.NewMockStore()
//	s.FailOn["CreateMessage"] = errors.New("disk full")
//
// Use NewSQLiteStore(":memory:") for integration tests with real SQLite.
package store
