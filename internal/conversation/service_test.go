// ABOUTME: Tests for the conversation service
// ABOUTME: Covers the send flow, trimming, stale discard, stop, and delete flows

package conversation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raikolabs/chatsync/internal/remote"
	"github.com/raikolabs/chatsync/internal/store"
)

// fakeQuerier is a scriptable Querier. When block is set, QueryKnowledge
// parks until the channel closes or the context is cancelled.
type fakeQuerier struct {
	mu     sync.Mutex
	result *remote.KnowledgeResult
	err    error
	block  chan struct{}
	calls  int
}

func (f *fakeQuerier) QueryKnowledge(ctx context.Context, text, model string) (*remote.KnowledgeResult, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

func (f *fakeQuerier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeStreamQuerier additionally streams chunks before resolving.
type fakeStreamQuerier struct {
	fakeQuerier
	chunks []string
}

func (f *fakeStreamQuerier) QueryStream(ctx context.Context, text, model string, chunk func(string)) (*remote.KnowledgeResult, error) {
	for _, c := range f.chunks {
		chunk(c)
	}
	return f.QueryKnowledge(ctx, text, model)
}

func okResult(answer string) *remote.KnowledgeResult {
	return &remote.KnowledgeResult{
		Answer: answer,
		Documents: []remote.Document{
			{ID: "d1", Document: "retrieved snippet", Metadata: map[string]string{"source": "kb"}},
		},
	}
}

func TestSendPrompt_AppendsUserAndAssistantInOrder(t *testing.T) {
	mock := store.NewMockStore()
	q := &fakeQuerier{result: okResult("the answer")}
	svc := New(mock, q, nil, nil)

	err := svc.SendPrompt(context.Background(), SendRequest{Text: "what is a quark", Model: "rag"})
	require.NoError(t, err)

	snap := svc.Snapshot()
	assert.Equal(t, PhaseCompleted, snap.State.Phase)
	require.NotNil(t, snap.Selected)
	assert.Equal(t, "what is a quark", snap.Selected.Name)
	assert.Equal(t, "rag", snap.Selected.ModelName)
	require.Len(t, snap.Conversations, 1)

	require.Len(t, snap.Messages, 2)
	assert.Equal(t, store.RoleUser, snap.Messages[0].Role)
	assert.Equal(t, "what is a quark", snap.Messages[0].Content)
	assert.True(t, snap.Messages[0].Done)

	assistant := snap.Messages[1]
	assert.Equal(t, store.RoleAssistant, assistant.Role)
	assert.Equal(t, "the answer", assistant.Content)
	assert.Equal(t, "the answer", assistant.Response)
	require.Len(t, assistant.Documents, 1)
	assert.Equal(t, "d1", assistant.Documents[0].ID)
	assert.True(t, assistant.Done)
	assert.False(t, assistant.Error)

	// The durable copy must match the projection
	stored, err := mock.ListMessages(context.Background(), snap.Selected.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.True(t, stored[1].Done)
	assert.Equal(t, "the answer", stored[1].Content)
}

func TestSendPrompt_HitsKnowledgeEndpoint(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		fmt.Fprint(w, `{"status": 200, "data": {"answer": "grounded answer", "data": [{"id": "k1", "document": "body", "metadata": {}}]}}`)
	}))
	defer srv.Close()

	client := remote.NewClient(remote.Options{URL: srv.URL})
	svc := New(store.NewMockStore(), client, nil, nil)

	require.NoError(t, svc.SendPrompt(context.Background(), SendRequest{Text: "ping"}))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"/v1/knowledge"}, paths)

	assistant := svc.Snapshot().Messages[1]
	assert.Equal(t, "grounded answer", assistant.Content)
	require.Len(t, assistant.Documents, 1)
	assert.Equal(t, "k1", assistant.Documents[0].ID)
}

func TestSendPrompt_BlankIsNoOp(t *testing.T) {
	mock := store.NewMockStore()
	q := &fakeQuerier{result: okResult("unused")}
	svc := New(mock, q, nil, nil)

	require.NoError(t, svc.SendPrompt(context.Background(), SendRequest{Text: "   \n\t "}))

	snap := svc.Snapshot()
	assert.Nil(t, snap.Selected)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Conversations)
	assert.Equal(t, 0, q.callCount())
}

func TestSendPrompt_SystemPromptSeededOnlyWhenEmpty(t *testing.T) {
	mock := store.NewMockStore()
	q := &fakeQuerier{result: okResult("ok")}
	svc := New(mock, q, nil, nil)

	req := SendRequest{Text: "first", SystemPrompt: "be brief"}
	require.NoError(t, svc.SendPrompt(context.Background(), req))

	snap := svc.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, store.RoleSystem, snap.Messages[0].Role)
	assert.Equal(t, "be brief", snap.Messages[0].Content)

	req.Text = "second"
	require.NoError(t, svc.SendPrompt(context.Background(), req))

	snap = svc.Snapshot()
	require.Len(t, snap.Messages, 5)
	systems := 0
	for _, m := range snap.Messages {
		if m.Role == store.RoleSystem {
			systems++
		}
	}
	assert.Equal(t, 1, systems)
}

func TestSendPrompt_QueryFailureMarksError(t *testing.T) {
	mock := store.NewMockStore()
	q := &fakeQuerier{err: errors.New("backend down")}
	svc := New(mock, q, nil, nil)

	err := svc.SendPrompt(context.Background(), SendRequest{Text: "hello"})
	require.Error(t, err)

	snap := svc.Snapshot()
	assert.Equal(t, PhaseError, snap.State.Phase)
	assert.Contains(t, snap.State.Err, "backend down")

	require.Len(t, snap.Messages, 2)
	assistant := snap.Messages[1]
	assert.True(t, assistant.Error)
	assert.False(t, assistant.Done, "a message never carries both terminal flags")

	stored, err := mock.ListMessages(context.Background(), snap.Selected.ID)
	require.NoError(t, err)
	assert.True(t, stored[1].Error)
	assert.False(t, stored[1].Done)
}

func TestSendPrompt_StoreFailureAborts(t *testing.T) {
	mock := store.NewMockStore()
	mock.FailOn["CreateConversation"] = errors.New("disk full")
	q := &fakeQuerier{result: okResult("unused")}
	svc := New(mock, q, nil, nil)

	err := svc.SendPrompt(context.Background(), SendRequest{Text: "hello"})
	require.Error(t, err)
	assert.Equal(t, PhaseError, svc.Snapshot().State.Phase)
	assert.Equal(t, 0, q.callCount())
}

func TestSendPrompt_TrimRemovesFromMarkOnward(t *testing.T) {
	mock := store.NewMockStore()
	q := &fakeQuerier{result: okResult("ok")}
	svc := New(mock, q, nil, nil)

	ctx := context.Background()
	require.NoError(t, svc.SendPrompt(ctx, SendRequest{Text: "first"}))
	require.NoError(t, svc.SendPrompt(ctx, SendRequest{Text: "second"}))

	snap := svc.Snapshot()
	require.Len(t, snap.Messages, 4)
	secondUser := snap.Messages[2]
	require.Equal(t, "second", secondUser.Content)

	// Regenerate from the second user message
	require.NoError(t, svc.SendPrompt(ctx, SendRequest{
		Text:              "second try",
		TrimmingMessageID: secondUser.ID,
	}))

	snap = svc.Snapshot()
	require.Len(t, snap.Messages, 4)
	assert.Equal(t, "first", snap.Messages[0].Content)
	assert.Equal(t, "second try", snap.Messages[2].Content)
}

func TestSendPrompt_StaleResponseDiscarded(t *testing.T) {
	mock := store.NewMockStore()
	q := &fakeQuerier{result: okResult("late answer"), block: make(chan struct{})}
	svc := New(mock, q, nil, nil)

	done := make(chan error, 1)
	go func() {
		done <- svc.SendPrompt(context.Background(), SendRequest{Text: "slow one"})
	}()

	require.Eventually(t, func() bool {
		return svc.Snapshot().State.Phase == PhaseLoading
	}, time.Second, 5*time.Millisecond)

	// The conversation vanishes while the query is in flight
	svc.DeleteAllConversations(context.Background())
	close(q.block)
	require.NoError(t, <-done)

	snap := svc.Snapshot()
	assert.Equal(t, PhaseCompleted, snap.State.Phase)
	assert.Nil(t, snap.Selected)
	assert.Empty(t, snap.Messages, "late answer must not resurrect the projection")
}

func TestStopGenerate_CancelsAndMarksDone(t *testing.T) {
	mock := store.NewMockStore()
	q := &fakeQuerier{result: okResult("never arrives"), block: make(chan struct{})}
	svc := New(mock, q, nil, nil)

	done := make(chan error, 1)
	go func() {
		done <- svc.SendPrompt(context.Background(), SendRequest{Text: "stop me"})
	}()

	require.Eventually(t, func() bool {
		return svc.Snapshot().State.Phase == PhaseLoading
	}, time.Second, 5*time.Millisecond)

	svc.StopGenerate()
	require.NoError(t, <-done)

	snap := svc.Snapshot()
	assert.Equal(t, PhaseCompleted, snap.State.Phase)
	require.Len(t, snap.Messages, 2)
	assert.True(t, snap.Messages[1].Done)
	assert.False(t, snap.Messages[1].Error)

	stored, err := mock.ListMessages(context.Background(), snap.Selected.ID)
	require.NoError(t, err)
	assert.True(t, stored[1].Done)
}

func TestSelectAndReloadConversation(t *testing.T) {
	mock := store.NewMockStore()
	svc := New(mock, &fakeQuerier{result: okResult("ok")}, nil, nil)

	ctx := context.Background()
	require.NoError(t, svc.SendPrompt(ctx, SendRequest{Text: "seed"}))
	first := svc.Snapshot()

	require.NoError(t, svc.SelectConversation(ctx, first.Selected))
	after := svc.Snapshot()
	require.Equal(t, first.Selected.ID, after.Selected.ID)
	require.Len(t, after.Messages, len(first.Messages))

	require.NoError(t, svc.ReloadConversation(ctx))
	reloaded := svc.Snapshot()
	require.Len(t, reloaded.Messages, len(after.Messages))
	for i := range after.Messages {
		assert.Equal(t, after.Messages[i].ID, reloaded.Messages[i].ID)
		assert.Equal(t, after.Messages[i].Content, reloaded.Messages[i].Content)
	}
}

func TestSelectConversation_LoadsCanonicalRecord(t *testing.T) {
	mock := store.NewMockStore()
	svc := New(mock, &fakeQuerier{result: okResult("ok")}, nil, nil)

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, mock.CreateConversation(ctx, &store.Conversation{
		ID: "c1", Name: "canonical name", ModelName: "rag", CreatedAt: now, UpdatedAt: now,
	}))

	// The caller holds an outdated copy; only its ID may be trusted
	stale := &store.Conversation{ID: "c1", Name: "stale name"}
	require.NoError(t, svc.SelectConversation(ctx, stale))

	selected := svc.Snapshot().Selected
	require.NotNil(t, selected)
	assert.Equal(t, "canonical name", selected.Name)
	assert.Equal(t, "rag", selected.ModelName)
}

func TestDelete_ClearsSelection(t *testing.T) {
	mock := store.NewMockStore()
	svc := New(mock, &fakeQuerier{result: okResult("ok")}, nil, nil)

	ctx := context.Background()
	require.NoError(t, svc.SendPrompt(ctx, SendRequest{Text: "doomed"}))
	conv := svc.Snapshot().Selected
	require.NotNil(t, conv)

	require.NoError(t, svc.Delete(ctx, conv))

	snap := svc.Snapshot()
	assert.Nil(t, snap.Selected)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Conversations)

	_, err := mock.GetConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteAllConversations_SwallowsStorageFailure(t *testing.T) {
	mock := store.NewMockStore()
	svc := New(mock, &fakeQuerier{result: okResult("ok")}, nil, nil)

	ctx := context.Background()
	require.NoError(t, svc.SendPrompt(ctx, SendRequest{Text: "survivor"}))

	mock.FailOn["DeleteAllConversations"] = errors.New("io error")
	svc.DeleteAllConversations(ctx)

	// Projection cleared regardless; the failed rows resurface on reload
	snap := svc.Snapshot()
	assert.Nil(t, snap.Selected)
	assert.Empty(t, snap.Messages)
}

func TestDeleteDailyConversations(t *testing.T) {
	mock := store.NewMockStore()
	svc := New(mock, &fakeQuerier{result: okResult("ok")}, nil, nil)

	ctx := context.Background()
	today := time.Now().UTC()
	yesterday := today.Add(-24 * time.Hour)

	old := &store.Conversation{ID: "old", Name: "old", CreatedAt: yesterday, UpdatedAt: yesterday}
	recent := &store.Conversation{ID: "recent", Name: "recent", CreatedAt: today, UpdatedAt: today}
	require.NoError(t, mock.CreateConversation(ctx, old))
	require.NoError(t, mock.CreateConversation(ctx, recent))

	svc.DeleteDailyConversations(ctx, yesterday)

	snap := svc.Snapshot()
	require.Len(t, snap.Conversations, 1)
	assert.Equal(t, "recent", snap.Conversations[0].ID)
}

func TestSendPrompt_StreamingAccumulatesContent(t *testing.T) {
	mock := store.NewMockStore()
	q := &fakeStreamQuerier{
		fakeQuerier: fakeQuerier{result: &remote.KnowledgeResult{}},
		chunks:      []string{"Hel", "lo ", "wor", "ld"},
	}
	svc := New(mock, q, nil, nil)

	require.NoError(t, svc.SendPrompt(context.Background(), SendRequest{Text: "stream it"}))

	snap := svc.Snapshot()
	require.Len(t, snap.Messages, 2)
	assistant := snap.Messages[1]
	assert.Equal(t, "Hello world", assistant.Content)
	assert.True(t, assistant.Done)
}

func TestSendPrompt_StreamingFinalResponseWins(t *testing.T) {
	mock := store.NewMockStore()
	q := &fakeStreamQuerier{
		fakeQuerier: fakeQuerier{result: okResult("Hello world")},
		chunks:      []string{"Hel", "lo ", "wor", "ld"},
	}
	svc := New(mock, q, nil, nil)

	require.NoError(t, svc.SendPrompt(context.Background(), SendRequest{Text: "stream it"}))

	assistant := svc.Snapshot().Messages[1]
	assert.Equal(t, "Hello world", assistant.Content)
	assert.Equal(t, "Hello world", assistant.Response)
}

// fakeCodec marks payloads so tests can see the codec ran.
type fakeCodec struct{ err error }

func (f *fakeCodec) Compress(data []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("jpeg:"), data...), nil
}

func TestSendPrompt_ImageRunsThroughCodec(t *testing.T) {
	mock := store.NewMockStore()
	svc := New(mock, &fakeQuerier{result: okResult("ok")}, &fakeCodec{}, nil)

	require.NoError(t, svc.SendPrompt(context.Background(), SendRequest{
		Text:  "look at this",
		Image: []byte{0x01, 0x02},
	}))

	snap := svc.Snapshot()
	assert.Equal(t, []byte("jpeg:\x01\x02"), snap.Messages[0].Image)
}

func TestSendPrompt_CodecFailureStoresOriginal(t *testing.T) {
	mock := store.NewMockStore()
	svc := New(mock, &fakeQuerier{result: okResult("ok")}, &fakeCodec{err: errors.New("bad image")}, nil)

	require.NoError(t, svc.SendPrompt(context.Background(), SendRequest{
		Text:  "look at this",
		Image: []byte{0x01, 0x02},
	}))

	assert.Equal(t, []byte{0x01, 0x02}, svc.Snapshot().Messages[0].Image)
}
