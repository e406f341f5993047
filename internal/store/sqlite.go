// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation/message/catalog persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is a fixed-width UTC timestamp format so that lexicographic
// ordering in SQL matches chronological ordering.
const timeLayout = "2006-01-02 15:04:05.000000000"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys so message/document deletes cascade
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			model_name TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_updated
			ON conversations(updated_at DESC);

		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			image           BLOB,
			done            INTEGER NOT NULL DEFAULT 0,
			error           INTEGER NOT NULL DEFAULT 0,
			created_at      TEXT NOT NULL,
			query           TEXT NOT NULL DEFAULT '',
			query_expanded  TEXT NOT NULL DEFAULT '',
			formatted       TEXT NOT NULL DEFAULT '',
			response        TEXT NOT NULL DEFAULT '',

			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE,
			CHECK (role IN ('system', 'user', 'assistant')),
			CHECK (NOT (done = 1 AND error = 1))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages(conversation_id, created_at);

		CREATE TABLE IF NOT EXISTS documents (
			doc_id        TEXT NOT NULL,
			message_id    TEXT NOT NULL,
			kind          TEXT NOT NULL,
			position      INTEGER NOT NULL,
			distance      REAL,
			document      TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			formatted     TEXT,

			PRIMARY KEY (message_id, kind, position),
			FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE,
			CHECK (kind IN ('primary', 'sub'))
		);

		CREATE TABLE IF NOT EXISTS agents (
			name          TEXT PRIMARY KEY,
			type          TEXT NOT NULL DEFAULT '',
			image_support INTEGER NOT NULL DEFAULT 0,
			provider      TEXT NOT NULL DEFAULT '',
			available     INTEGER NOT NULL DEFAULT 0
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateConversation inserts a new conversation row
func (s *SQLiteStore) CreateConversation(ctx context.Context, c *Conversation) error {
	query := `
		INSERT INTO conversations (id, name, model_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.ModelName,
		c.CreatedAt.UTC().Format(timeLayout),
		c.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicateConversation
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("conversation created", "conversation_id", c.ID, "name", c.Name)
	return nil
}

// UpdateConversation upserts a conversation. Inserting through update
// mirrors how a fresh conversation created during a send is persisted
// in one call; created_at is preserved on conflict.
func (s *SQLiteStore) UpdateConversation(ctx context.Context, c *Conversation) error {
	query := `
		INSERT INTO conversations (id, name, model_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			model_name = excluded.model_name,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.ModelName,
		c.CreatedAt.UTC().Format(timeLayout),
		c.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}
	return nil
}

// DeleteConversation removes a conversation and, via cascade, its messages
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.logger.Debug("conversation deleted", "conversation_id", id)
	return nil
}

// GetConversation retrieves a conversation by ID
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `
		SELECT id, name, model_name, created_at, updated_at
		FROM conversations
		WHERE id = ?
	`
	return s.scanConversation(s.db.QueryRowContext(ctx, query, id))
}

// ListConversations returns all conversations ordered by most recently updated
func (s *SQLiteStore) ListConversations(ctx context.Context) ([]*Conversation, error) {
	query := `
		SELECT id, name, model_name, created_at, updated_at
		FROM conversations
		ORDER BY updated_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		c, err := s.scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers
type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanConversation(row scanner) (*Conversation, error) {
	c := &Conversation{}
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.Name, &c.ModelName, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	if c.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return c, nil
}

// CreateMessage inserts a message together with its attached documents
// in a single transaction (all-or-nothing per entity write).
func (s *SQLiteStore) CreateMessage(ctx context.Context, m *Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO messages (
			id, conversation_id, role, content, image, done, error, created_at,
			query, query_expanded, formatted, response
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		m.ID, m.ConversationID, m.Role, m.Content, m.Image,
		boolToInt(m.Done), boolToInt(m.Error),
		m.CreatedAt.UTC().Format(timeLayout),
		m.Query, m.QueryExpanded, m.Formatted, m.Response,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	if err := insertDocuments(ctx, tx, m); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}

	s.logger.Debug("message created",
		"message_id", m.ID,
		"conversation_id", m.ConversationID,
		"role", m.Role)
	return nil
}

// UpdateMessage rewrites a message row and replaces its documents
func (s *SQLiteStore) UpdateMessage(ctx context.Context, m *Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE messages SET
			content = ?, image = ?, done = ?, error = ?,
			query = ?, query_expanded = ?, formatted = ?, response = ?
		WHERE id = ?
	`
	res, err := tx.ExecContext(ctx, query,
		m.Content, m.Image, boolToInt(m.Done), boolToInt(m.Error),
		m.Query, m.QueryExpanded, m.Formatted, m.Response,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("updating message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE message_id = ?`, m.ID); err != nil {
		return fmt.Errorf("clearing documents: %w", err)
	}
	if err := insertDocuments(ctx, tx, m); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message update: %w", err)
	}
	return nil
}

func insertDocuments(ctx context.Context, tx *sql.Tx, m *Message) error {
	insert := func(docs []Document, kind string) error {
		for i, d := range docs {
			meta := d.Metadata
			if meta == nil {
				meta = map[string]string{}
			}
			metaJSON, err := json.Marshal(meta)
			if err != nil {
				return fmt.Errorf("encoding document metadata: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO documents (doc_id, message_id, kind, position, distance, document, metadata_json, formatted)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, d.ID, m.ID, kind, i, d.Distance, d.Document, string(metaJSON), d.Formatted)
			if err != nil {
				return fmt.Errorf("inserting document: %w", err)
			}
		}
		return nil
	}
	if err := insert(m.Documents, DocumentKindPrimary); err != nil {
		return err
	}
	return insert(m.SubDocuments, DocumentKindSub)
}

// ListMessages returns all messages for a conversation ordered by
// creation time ascending (insertion order breaks ties), with their
// documents attached.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	query := `
		SELECT id, conversation_id, role, content, image, done, error, created_at,
		       query, query_expanded, formatted, response
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, rowid ASC
	`
	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	byID := make(map[string]*Message)
	for rows.Next() {
		m := &Message{}
		var createdAt string
		var done, errFlag int
		err := rows.Scan(
			&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Image,
			&done, &errFlag, &createdAt,
			&m.Query, &m.QueryExpanded, &m.Formatted, &m.Response,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Done = done != 0
		m.Error = errFlag != 0
		if m.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing message created_at: %w", err)
		}
		messages = append(messages, m)
		byID[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachDocuments(ctx, conversationID, byID); err != nil {
		return nil, err
	}
	return messages, nil
}

// attachDocuments loads all documents for a conversation in one query
// and distributes them onto the loaded messages.
func (s *SQLiteStore) attachDocuments(ctx context.Context, conversationID string, byID map[string]*Message) error {
	query := `
		SELECT d.doc_id, d.message_id, d.kind, d.distance, d.document, d.metadata_json, d.formatted
		FROM documents d
		JOIN messages m ON d.message_id = m.id
		WHERE m.conversation_id = ?
		ORDER BY d.message_id, d.kind, d.position
	`
	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d Document
		var messageID, kind, metaJSON string
		if err := rows.Scan(&d.ID, &messageID, &kind, &d.Distance, &d.Document, &metaJSON, &d.Formatted); err != nil {
			return fmt.Errorf("scanning document: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &d.Metadata); err != nil {
			return fmt.Errorf("decoding document metadata: %w", err)
		}
		m, ok := byID[messageID]
		if !ok {
			continue
		}
		if kind == DocumentKindSub {
			m.SubDocuments = append(m.SubDocuments, d)
		} else {
			m.Documents = append(m.Documents, d)
		}
	}
	return rows.Err()
}

// DeleteMessagesFrom removes the named message and every message of the
// conversation created at or after it. This backs the edit-and-resend
// trim: the projection keeps only messages strictly before the target.
func (s *SQLiteStore) DeleteMessagesFrom(ctx context.Context, conversationID, messageID string) error {
	var createdAt string
	var rowid int64
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, rowid FROM messages WHERE id = ? AND conversation_id = ?`,
		messageID, conversationID,
	).Scan(&createdAt, &rowid)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("locating trim message: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE conversation_id = ?
		  AND (created_at > ? OR (created_at = ? AND rowid >= ?))
	`, conversationID, createdAt, createdAt, rowid)
	if err != nil {
		return fmt.Errorf("trimming messages: %w", err)
	}

	s.logger.Debug("messages trimmed",
		"conversation_id", conversationID,
		"from_message_id", messageID)
	return nil
}

// DeleteAllMessages removes every message (and cascaded documents)
func (s *SQLiteStore) DeleteAllMessages(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}
	return nil
}

// DeleteAllConversations removes every conversation and, via cascade,
// all messages and documents.
func (s *SQLiteStore) DeleteAllConversations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations`); err != nil {
		return fmt.Errorf("deleting conversations: %w", err)
	}
	s.logger.Debug("all conversations deleted")
	return nil
}

// DeleteConversationsOn removes conversations last updated on the given
// calendar day (UTC).
func (s *SQLiteStore) DeleteConversationsOn(ctx context.Context, day time.Time) error {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM conversations
		WHERE updated_at >= ? AND updated_at < ?
	`, start.Format(timeLayout), end.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("deleting daily conversations: %w", err)
	}
	return nil
}

// SaveAgents upserts catalog rows in a single transaction
func (s *SQLiteStore) SaveAgents(ctx context.Context, agents []*Agent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, a := range agents {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO agents (name, type, image_support, provider, available)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				type = excluded.type,
				image_support = excluded.image_support,
				provider = excluded.provider,
				available = excluded.available
		`, a.Name, a.Type, boolToInt(a.ImageSupport), a.Provider, boolToInt(a.Available))
		if err != nil {
			return fmt.Errorf("upserting agent %q: %w", a.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing agents: %w", err)
	}
	return nil
}

// ListAgents returns the cached catalog ordered by name
func (s *SQLiteStore) ListAgents(ctx context.Context) ([]*Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, type, image_support, provider, available
		FROM agents
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		a := &Agent{}
		var imageSupport, available int
		if err := rows.Scan(&a.Name, &a.Type, &imageSupport, &a.Provider, &available); err != nil {
			return nil, fmt.Errorf("scanning agent: %w", err)
		}
		a.ImageSupport = imageSupport != 0
		a.Available = available != 0
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// DeleteAgents clears the catalog. Conversations referencing a catalog
// entry by model name keep existing; the reference is cleared, never
// cascaded.
func (s *SQLiteStore) DeleteAgents(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM agents`); err != nil {
		return fmt.Errorf("deleting agents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET model_name = ''
		WHERE model_name != ''
	`); err != nil {
		return fmt.Errorf("clearing model references: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing agent deletion: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
