// ABOUTME: Service is the central synchronizer between storage, the backend, and the projection
// ABOUTME: All conversation mutations flow through here - storage is the source of truth

package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raikolabs/chatsync/internal/remote"
	"github.com/raikolabs/chatsync/internal/store"
)

// persistTimeout bounds background saves that must outlive a cancelled
// request context.
const persistTimeout = 5 * time.Second

// Storage defines what the service needs from persistence
type Storage interface {
	CreateConversation(ctx context.Context, c *store.Conversation) error
	UpdateConversation(ctx context.Context, c *store.Conversation) error
	DeleteConversation(ctx context.Context, id string) error
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	ListConversations(ctx context.Context) ([]*store.Conversation, error)

	CreateMessage(ctx context.Context, m *store.Message) error
	UpdateMessage(ctx context.Context, m *store.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*store.Message, error)
	DeleteMessagesFrom(ctx context.Context, conversationID, messageID string) error
	DeleteAllMessages(ctx context.Context) error

	DeleteAllConversations(ctx context.Context) error
	DeleteConversationsOn(ctx context.Context, day time.Time) error
}

// Querier defines what the service needs from the backend client. The
// send flow always goes through the knowledge endpoint; the structured
// query call stays available to callers outside the synchronizer.
type Querier interface {
	QueryKnowledge(ctx context.Context, text, model string) (*remote.KnowledgeResult, error)
}

// StreamQuerier is optionally implemented by queriers that can deliver
// the answer incrementally. Chunks are routed through a throttler into
// the assistant message.
type StreamQuerier interface {
	QueryStream(ctx context.Context, text, model string, chunk func(string)) (*remote.KnowledgeResult, error)
}

// ImageCodec compresses image attachments before they are persisted.
type ImageCodec interface {
	Compress(data []byte) ([]byte, error)
}

// Service owns the conversation projection and keeps it synchronized
// with storage and the backend. All projection mutations happen under
// its mutex; subscribers observe changes as published snapshots.
type Service struct {
	storage     Storage
	querier     Querier
	codec       ImageCodec
	broadcaster *Broadcaster
	logger      *slog.Logger

	mu            sync.Mutex
	state         State
	conversations []*store.Conversation
	selected      *store.Conversation
	messages      []*store.Message

	// In-flight exchange: pendingID tags the assistant message the
	// active query will resolve into. Responses for any other tag are
	// stale and get discarded.
	pendingID string
	cancel    context.CancelFunc
}

// New creates a conversation service. codec may be nil to store image
// attachments unmodified; logger may be nil for the default.
func New(storage Storage, querier Querier, codec ImageCodec, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		storage:     storage,
		querier:     querier,
		codec:       codec,
		broadcaster: NewBroadcaster(logger),
		logger:      logger.With("component", "conversation"),
		state:       State{Phase: PhaseCompleted},
	}
}

// SendRequest carries one prompt into the active conversation.
type SendRequest struct {
	Text         string
	Model        string // overrides the conversation's model when set
	SystemPrompt string // seeded as a system message when history is empty
	Image        []byte // optional attachment, compressed before persistence

	// TrimmingMessageID marks a regeneration point: that message and
	// everything after it is removed before the prompt is appended.
	TrimmingMessageID string
}

// SendPrompt runs one full exchange: persist the prompt, query the
// backend, and resolve the reply into the assistant message. A blank
// prompt is a silent no-op. The call is synchronous; run it in a
// goroutine and watch snapshots for incremental updates.
func (s *Service) SendPrompt(ctx context.Context, req SendRequest) error {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil
	}

	now := time.Now().UTC()

	s.mu.Lock()
	conv := cloneConversation(s.selected)
	s.mu.Unlock()

	created := conv == nil
	if created {
		conv = &store.Conversation{
			ID:        uuid.New().String(),
			Name:      text,
			ModelName: req.Model,
			CreatedAt: now,
		}
	}
	if req.Model != "" {
		conv.ModelName = req.Model
	}
	conv.UpdatedAt = now

	if req.TrimmingMessageID != "" && !created {
		if err := s.storage.DeleteMessagesFrom(ctx, conv.ID, req.TrimmingMessageID); err != nil {
			return s.failSend("", fmt.Errorf("trimming history: %w", err))
		}
	}

	var history []*store.Message
	if !created {
		var err error
		history, err = s.storage.ListMessages(ctx, conv.ID)
		if err != nil {
			return s.failSend("", fmt.Errorf("loading history: %w", err))
		}
	}

	var toCreate []*store.Message
	if len(history) == 0 && req.SystemPrompt != "" {
		toCreate = append(toCreate, &store.Message{
			ID:             uuid.New().String(),
			ConversationID: conv.ID,
			Role:           store.RoleSystem,
			Content:        req.SystemPrompt,
			Done:           true,
			CreatedAt:      now,
		})
	}

	userMsg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           store.RoleUser,
		Content:        text,
		Done:           true,
		CreatedAt:      now,
	}
	if len(req.Image) > 0 {
		userMsg.Image = s.compressImage(req.Image)
	}
	assistant := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           store.RoleAssistant,
		CreatedAt:      now,
	}
	toCreate = append(toCreate, userMsg, assistant)

	// Enter loading and tag the exchange before any remote work so a
	// concurrent send supersedes this one cleanly
	qctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.pendingID = assistant.ID
	s.state = State{Phase: PhaseLoading}
	s.publishLocked()
	s.mu.Unlock()

	// Persist in fixed order: conversation first, then messages
	if created {
		if err := s.storage.CreateConversation(ctx, conv); err != nil {
			return s.failSend(assistant.ID, fmt.Errorf("creating conversation: %w", err))
		}
	} else {
		if err := s.storage.UpdateConversation(ctx, conv); err != nil {
			return s.failSend(assistant.ID, fmt.Errorf("updating conversation: %w", err))
		}
	}
	for _, m := range toCreate {
		if err := s.storage.CreateMessage(ctx, m); err != nil {
			return s.failSend(assistant.ID, fmt.Errorf("persisting message: %w", err))
		}
	}

	// Read back what storage holds so the projection reflects the
	// durable state, then refresh the list ordering
	if err := s.reload(ctx, conv.ID); err != nil {
		return s.failSend(assistant.ID, fmt.Errorf("reloading conversation: %w", err))
	}
	if err := s.LoadConversations(ctx); err != nil {
		return s.failSend(assistant.ID, err)
	}

	var result *remote.KnowledgeResult
	var qerr error
	if sq, ok := s.querier.(StreamQuerier); ok {
		th := NewThrottler(streamInterval, func(chunk string) {
			s.appendContent(assistant.ID, chunk)
		})
		result, qerr = sq.QueryStream(qctx, text, conv.ModelName, th.Add)
		th.Flush()
	} else {
		result, qerr = s.querier.QueryKnowledge(qctx, text, conv.ModelName)
	}

	return s.finalize(assistant.ID, result, qerr)
}

// finalize resolves an exchange into its tagged assistant message. A
// response whose tag is no longer pending, or whose message left the
// projection, is stale and gets discarded.
func (s *Service) finalize(assistantID string, result *remote.KnowledgeResult, qerr error) error {
	s.mu.Lock()

	if s.pendingID != assistantID {
		s.mu.Unlock()
		s.logger.Debug("discarding stale response", "message_id", assistantID)
		return nil
	}
	s.pendingID = ""
	s.cancel = nil

	msg := s.findMessageLocked(assistantID)
	if msg == nil {
		s.state = State{Phase: PhaseCompleted}
		s.publishLocked()
		s.mu.Unlock()
		s.logger.Debug("discarding response for vanished message", "message_id", assistantID)
		return nil
	}

	if qerr != nil {
		msg.Error = true
		msg.Done = false
		s.state = State{Phase: PhaseError, Err: qerr.Error()}
	} else {
		// Streamed content survives when the final answer is empty
		if result.Answer != "" {
			msg.Content = result.Answer
		}
		msg.Response = result.Answer
		msg.Documents = toStoreDocuments(result.Documents)
		msg.Done = true
		msg.Error = false
		s.state = State{Phase: PhaseCompleted}
	}
	saved := cloneMessage(msg)
	s.publishLocked()
	s.mu.Unlock()

	s.persistMessage(saved)

	if qerr != nil {
		return fmt.Errorf("query failed: %w", qerr)
	}
	return nil
}

// failSend puts the service into the error state and surfaces err. The
// pending tag is only cleared when it still belongs to the failing
// exchange, so a superseding send is never clobbered.
func (s *Service) failSend(assistantID string, err error) error {
	s.mu.Lock()
	if assistantID != "" && s.pendingID == assistantID {
		s.pendingID = ""
		s.cancel = nil
	}
	s.state = State{Phase: PhaseError, Err: err.Error()}
	s.publishLocked()
	s.mu.Unlock()
	return err
}

// StopGenerate cancels the in-flight exchange, marks the trailing
// message finished, and returns the service to the completed state.
func (s *Service) StopGenerate() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.pendingID = ""

	var saved *store.Message
	if n := len(s.messages); n > 0 {
		last := s.messages[n-1]
		if !last.Done && !last.Error {
			last.Done = true
			saved = cloneMessage(last)
		}
	}
	s.state = State{Phase: PhaseCompleted}
	s.publishLocked()
	s.mu.Unlock()

	if saved != nil {
		s.persistMessage(saved)
	}
}

// SelectConversation loads the canonical conversation record and its
// messages from storage and atomically replaces the selected pair in
// the projection. Only conv.ID is consulted; the caller's copy may be
// stale.
func (s *Service) SelectConversation(ctx context.Context, conv *store.Conversation) error {
	return s.reload(ctx, conv.ID)
}

// ReloadConversation re-reads the selected conversation from storage.
// Reloading an unchanged conversation leaves the projection unchanged.
func (s *Service) ReloadConversation(ctx context.Context) error {
	s.mu.Lock()
	conv := cloneConversation(s.selected)
	s.mu.Unlock()
	if conv == nil {
		return nil
	}
	return s.reload(ctx, conv.ID)
}

// reload replaces (selected, messages) from storage in one step.
func (s *Service) reload(ctx context.Context, conversationID string) error {
	conv, err := s.storage.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	msgs, err := s.storage.ListMessages(ctx, conversationID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.selected = conv
	s.messages = msgs
	s.publishLocked()
	s.mu.Unlock()
	return nil
}

// LoadConversations refreshes the conversation list from storage.
func (s *Service) LoadConversations(ctx context.Context) error {
	convs, err := s.storage.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}

	s.mu.Lock()
	s.conversations = convs
	s.publishLocked()
	s.mu.Unlock()
	return nil
}

// Delete removes one conversation. The selection is cleared when it
// pointed at the deleted conversation; any in-flight exchange for it
// resolves as stale.
func (s *Service) Delete(ctx context.Context, conv *store.Conversation) error {
	if err := s.storage.DeleteConversation(ctx, conv.ID); err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}

	s.mu.Lock()
	if s.selected != nil && s.selected.ID == conv.ID {
		s.selected = nil
		s.messages = nil
	}
	s.publishLocked()
	s.mu.Unlock()

	return s.LoadConversations(ctx)
}

// DeleteAllConversations wipes everything. The projection clears
// immediately; storage failures are logged and swallowed since the
// next reload reconciles whatever survived.
func (s *Service) DeleteAllConversations(ctx context.Context) {
	s.mu.Lock()
	s.conversations = nil
	s.selected = nil
	s.messages = nil
	s.publishLocked()
	s.mu.Unlock()

	if err := s.storage.DeleteAllMessages(ctx); err != nil {
		s.logger.Warn("bulk message delete failed", "error", err)
	}
	if err := s.storage.DeleteAllConversations(ctx); err != nil {
		s.logger.Warn("bulk conversation delete failed", "error", err)
	}
	if err := s.LoadConversations(ctx); err != nil {
		s.logger.Warn("list reload failed after bulk delete", "error", err)
	}
}

// DeleteDailyConversations removes conversations last updated on the
// given calendar day (UTC). Best-effort like the full wipe.
func (s *Service) DeleteDailyConversations(ctx context.Context, day time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	s.mu.Lock()
	if s.selected != nil {
		at := s.selected.UpdatedAt.UTC()
		if !at.Before(start) && at.Before(end) {
			s.selected = nil
			s.messages = nil
		}
	}
	s.publishLocked()
	s.mu.Unlock()

	if err := s.storage.DeleteConversationsOn(ctx, day); err != nil {
		s.logger.Warn("daily conversation delete failed", "error", err, "day", start.Format("2006-01-02"))
	}
	if err := s.LoadConversations(ctx); err != nil {
		s.logger.Warn("list reload failed after daily delete", "error", err)
	}
}

// Snapshot returns a copy of the current projection.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers for projection updates. The subscription ends
// when ctx is cancelled or Unsubscribe is called with the returned ID.
func (s *Service) Subscribe(ctx context.Context) (<-chan Snapshot, string) {
	return s.broadcaster.Subscribe(ctx)
}

// Unsubscribe removes a snapshot subscription.
func (s *Service) Unsubscribe(subID string) {
	s.broadcaster.Unsubscribe(subID)
}

// Close shuts down snapshot fan-out.
func (s *Service) Close() {
	s.broadcaster.Close()
}

// appendContent grows the tagged assistant message with a streamed
// chunk. Chunks for a superseded exchange are dropped.
func (s *Service) appendContent(messageID, chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingID != messageID {
		return
	}
	msg := s.findMessageLocked(messageID)
	if msg == nil {
		return
	}
	msg.Content += chunk
	s.publishLocked()
}

// compressImage runs the attachment through the codec, falling back to
// the raw bytes when compression is unavailable or fails.
func (s *Service) compressImage(data []byte) []byte {
	if s.codec == nil {
		return data
	}
	compressed, err := s.codec.Compress(data)
	if err != nil {
		s.logger.Warn("image compression failed, storing original", "error", err)
		return data
	}
	return compressed
}

// persistMessage saves a message with a separate timeout context so
// persistence survives a cancelled request context.
func (s *Service) persistMessage(m *store.Message) {
	saveCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.storage.UpdateMessage(saveCtx, m); err != nil {
		s.logger.Error("failed to persist message",
			"error", err,
			"message_id", m.ID,
			"conversation_id", m.ConversationID)
	}
}

func (s *Service) findMessageLocked(id string) *store.Message {
	for _, m := range s.messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (s *Service) publishLocked() {
	s.broadcaster.Publish(s.snapshotLocked())
}

func (s *Service) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:    s.state,
		Selected: cloneConversation(s.selected),
	}
	if s.conversations != nil {
		snap.Conversations = make([]*store.Conversation, len(s.conversations))
		for i, c := range s.conversations {
			snap.Conversations[i] = cloneConversation(c)
		}
	}
	if s.messages != nil {
		snap.Messages = make([]*store.Message, len(s.messages))
		for i, m := range s.messages {
			snap.Messages[i] = cloneMessage(m)
		}
	}
	return snap
}

func cloneConversation(c *store.Conversation) *store.Conversation {
	if c == nil {
		return nil
	}
	dup := *c
	return &dup
}

func cloneMessage(m *store.Message) *store.Message {
	if m == nil {
		return nil
	}
	dup := *m
	if m.Image != nil {
		dup.Image = append([]byte(nil), m.Image...)
	}
	dup.Documents = cloneDocuments(m.Documents)
	dup.SubDocuments = cloneDocuments(m.SubDocuments)
	return &dup
}

func cloneDocuments(docs []store.Document) []store.Document {
	if docs == nil {
		return nil
	}
	out := make([]store.Document, len(docs))
	for i, d := range docs {
		dup := d
		if d.Distance != nil {
			v := *d.Distance
			dup.Distance = &v
		}
		if d.Formatted != nil {
			v := *d.Formatted
			dup.Formatted = &v
		}
		if d.Metadata != nil {
			dup.Metadata = make(map[string]string, len(d.Metadata))
			for k, v := range d.Metadata {
				dup.Metadata[k] = v
			}
		}
		out[i] = dup
	}
	return out
}

func toStoreDocuments(docs []remote.Document) []store.Document {
	if docs == nil {
		return nil
	}
	out := make([]store.Document, len(docs))
	for i, d := range docs {
		out[i] = store.Document{
			ID:        d.ID,
			Distance:  d.Distance,
			Document:  d.Document,
			Metadata:  d.Metadata,
			Formatted: d.Formatted,
		}
	}
	return out
}
