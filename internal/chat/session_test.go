package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Keta432/medichat/internal/api"
	"github.com/Keta432/medichat/internal/auth"
	"github.com/Keta432/medichat/internal/events"
	"github.com/Keta432/medichat/internal/models"
)

// fakeTransport is a scriptable in-memory portal.
type fakeTransport struct {
	mu            sync.Mutex
	conversations []models.ConversationSummary
	threads       map[string][]models.Message
	contacts      []models.Participant

	listConvErr error
	listMsgErr  error
	sendErr     error

	sendCalls     atomic.Int64
	listMsgCalls  atomic.Int64
	listConvCalls atomic.Int64

	// beforeListMessages runs inside ListMessages before the response is
	// assembled, with the lock released. Tests use it to race selection
	// changes against an in-flight fetch.
	beforeListMessages func(counterpartID string)

	nextID atomic.Int64
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{threads: make(map[string][]models.Message)}
}

func (f *fakeTransport) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	f.listConvCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listConvErr != nil {
		return nil, f.listConvErr
	}
	out := make([]models.ConversationSummary, len(f.conversations))
	copy(out, f.conversations)
	return out, nil
}

func (f *fakeTransport) ListMessages(ctx context.Context, counterpartID string) ([]models.Message, error) {
	f.listMsgCalls.Add(1)
	if f.beforeListMessages != nil {
		f.beforeListMessages(counterpartID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listMsgErr != nil {
		return nil, f.listMsgErr
	}
	out := make([]models.Message, len(f.threads[counterpartID]))
	copy(out, f.threads[counterpartID])
	return out, nil
}

func (f *fakeTransport) SendMessage(ctx context.Context, receiverID, content string) (models.Message, error) {
	f.sendCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return models.Message{}, f.sendErr
	}
	msg := models.Message{
		ID:        fmt.Sprintf("srv-%d", f.nextID.Add(1)),
		Sender:    models.Participant{ID: "u-me"},
		Receiver:  models.Participant{ID: receiverID},
		Content:   content,
		CreatedAt: time.Now(),
	}
	f.threads[receiverID] = append(f.threads[receiverID], msg)
	return msg, nil
}

func (f *fakeTransport) ListEligibleContacts(ctx context.Context) ([]models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Participant, len(f.contacts))
	copy(out, f.contacts)
	return out, nil
}

func affiliatedIdentity() auth.Identity {
	return auth.Identity{UserID: "u-me", Name: "Dr. Me", Role: models.RoleDoctor, Hospital: "h1"}
}

func newTestSession(transport Transport) *Session {
	return NewSession(SessionConfig{
		Transport:    transport,
		Identity:     affiliatedIdentity(),
		PollInterval: MinPollInterval,
	})
}

func TestSendOptimisticReconcile(t *testing.T) {
	transport := newFakeTransport()
	session := newTestSession(transport)
	session.ClearSelection()

	require.NoError(t, session.SelectConversation(context.Background(), "u-admin"))
	require.NoError(t, session.Send(context.Background(), "  on my way  "))

	log := session.Messages("u-admin")
	require.Len(t, log, 1)
	require.False(t, log[0].Provisional)
	require.Equal(t, "on my way", log[0].Content)
	require.Contains(t, log[0].ID, "srv-")
}

func TestSendFailureRollsBackAndReturnsError(t *testing.T) {
	transport := newFakeTransport()
	transport.threads["u-admin"] = []models.Message{confirmedMsg("m1", "hello")}
	transport.sendErr = api.ServerError(500, "internal error")

	session := newTestSession(transport)
	require.NoError(t, session.SelectConversation(context.Background(), "u-admin"))
	require.Len(t, session.Messages("u-admin"), 1)

	err := session.Send(context.Background(), "lost message")
	require.Error(t, err)
	require.Equal(t, api.KindServer, api.KindOf(err))

	// The thread reads exactly as before the attempt.
	log := session.Messages("u-admin")
	require.Len(t, log, 1)
	require.Equal(t, "m1", log[0].ID)
	require.False(t, session.cache.HasProvisional("u-admin"))
}

func TestSendWithoutSelectionRejected(t *testing.T) {
	transport := newFakeTransport()
	session := newTestSession(transport)

	err := session.Send(context.Background(), "hello")
	require.Error(t, err)
	require.True(t, api.IsValidation(err))
	require.Zero(t, transport.sendCalls.Load())
}

func TestSendEmptyContentRejected(t *testing.T) {
	transport := newFakeTransport()
	session := newTestSession(transport)
	require.NoError(t, session.SelectConversation(context.Background(), "u-admin"))

	err := session.Send(context.Background(), "   ")
	require.Error(t, err)
	require.True(t, api.IsValidation(err))
	require.Zero(t, transport.sendCalls.Load())
}

func TestUnaffiliatedUserBlockedClientSide(t *testing.T) {
	transport := newFakeTransport()
	doctor := models.Participant{ID: "u-doc", Name: "Dr. D", Role: models.RoleDoctor, Hospital: "h1"}
	admin := models.Participant{ID: "u-adm", Name: "Admin", Role: models.RoleAdmin}
	transport.contacts = []models.Participant{doctor, admin}

	session := NewSession(SessionConfig{
		Transport: transport,
		Identity:  auth.Identity{UserID: "u-new", Name: "New Staff", Role: models.RoleStaff},
	})

	// Opening a thread with a non-admin never reaches the transport.
	err := session.SelectNewContact(context.Background(), doctor)
	require.Error(t, err)
	require.True(t, api.IsValidation(err))
	require.Zero(t, transport.listMsgCalls.Load())
	require.Zero(t, transport.sendCalls.Load())

	// Same through selection of a listed conversation.
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	session.index.Set([]models.ConversationSummary{{
		ID:          "c-doc",
		Participant: doctor,
		UpdatedAt:   base,
	}})
	err = session.SelectConversation(context.Background(), "u-doc")
	require.True(t, api.IsValidation(err))
	require.Zero(t, transport.listMsgCalls.Load())

	// The synced conversation list hides non-admin counterparts.
	transport.conversations = []models.ConversationSummary{
		{ID: "c-doc", Participant: doctor, UpdatedAt: base},
		{ID: "c-adm", Participant: admin, UpdatedAt: base},
	}
	require.NoError(t, session.SyncConversations(context.Background(), false))
	listed := session.Conversations()
	require.Len(t, listed, 1)
	require.Equal(t, "u-adm", listed[0].Participant.ID)

	// Administrators remain reachable.
	require.NoError(t, session.SelectNewContact(context.Background(), admin))

	contacts, err := session.EligibleContacts(context.Background())
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	require.Equal(t, "u-adm", contacts[0].ID)
}

func TestStaleThreadResponseDiscarded(t *testing.T) {
	transport := newFakeTransport()
	transport.threads["u-a"] = []models.Message{confirmedMsg("a1", "thread A")}
	transport.threads["u-b"] = []models.Message{confirmedMsg("b1", "thread B")}

	session := newTestSession(transport)

	// While the fetch for A is in flight, the user moves to B.
	first := true
	transport.beforeListMessages = func(counterpartID string) {
		if first && counterpartID == "u-a" {
			first = false
			session.ClearSelection()
			session.mu.Lock()
			session.selectedID = "u-b"
			session.generation++
			session.mu.Unlock()
		}
	}

	session.mu.Lock()
	session.selectedID = "u-a"
	session.generation++
	session.mu.Unlock()

	require.NoError(t, session.SyncSelected(context.Background(), false))

	// A's late response must not land in the cache.
	require.Empty(t, session.Messages("u-a"))
}

func TestBackgroundSyncErrorSwallowedForegroundSurfaced(t *testing.T) {
	transport := newFakeTransport()
	transport.listConvErr = api.NetworkError(errors.New("connection refused"))
	session := newTestSession(transport)

	var syncErrs atomic.Int64
	require.NoError(t, session.Subscribe("t", events.Filter{Types: []events.Type{events.TypeSyncError}}, func(events.Event) {
		syncErrs.Add(1)
	}))

	require.NoError(t, session.SyncConversations(context.Background(), true))
	err := session.SyncConversations(context.Background(), false)
	require.Error(t, err)
	require.True(t, api.IsNetwork(err))
	require.Equal(t, int64(2), syncErrs.Load())
}

func TestChangeEventsSuppressedWhenNothingChanged(t *testing.T) {
	transport := newFakeTransport()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	transport.conversations = []models.ConversationSummary{summary("u-a", "hi", 0, base)}
	transport.threads["u-a"] = []models.Message{confirmedMsg("a1", "hi")}

	session := newTestSession(transport)

	var notifications atomic.Int64
	require.NoError(t, session.Subscribe("t", events.Filter{
		Types: []events.Type{events.TypeConversations, events.TypeThread},
	}, func(events.Event) {
		notifications.Add(1)
	}))

	require.NoError(t, session.SyncConversations(context.Background(), false))
	require.NoError(t, session.SelectConversation(context.Background(), "u-a"))
	after := notifications.Load()

	// Two more cycles with identical server responses stay silent.
	require.NoError(t, session.SyncConversations(context.Background(), true))
	require.NoError(t, session.SyncSelected(context.Background(), true))
	require.NoError(t, session.SyncConversations(context.Background(), true))
	require.NoError(t, session.SyncSelected(context.Background(), true))

	require.Equal(t, after, notifications.Load())
}

func TestConcurrentPollKeepsProvisionalVisible(t *testing.T) {
	transport := newFakeTransport()
	transport.threads["u-a"] = []models.Message{confirmedMsg("a1", "hi")}
	session := newTestSession(transport)
	require.NoError(t, session.SelectConversation(context.Background(), "u-a"))

	pending := models.NewProvisional(affiliatedIdentity().Participant(), models.Participant{ID: "u-a"}, "typing", time.Now())
	session.cache.Append("u-a", pending)

	// Background refreshes racing the in-flight send never evict the
	// pending entry.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = session.SyncSelected(context.Background(), true)
		}()
	}
	wg.Wait()

	log := session.Messages("u-a")
	require.Equal(t, pending.ID, log[len(log)-1].ID)
	require.True(t, log[len(log)-1].Provisional)
}

type fakeHistory struct {
	mu            sync.Mutex
	conversations []models.ConversationSummary
	threads       map[string][]models.Message
}

func (f *fakeHistory) SaveConversations(ctx context.Context, summaries []models.ConversationSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations = summaries
	return nil
}

func (f *fakeHistory) SaveMessages(ctx context.Context, counterpartID string, messages []models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.threads == nil {
		f.threads = make(map[string][]models.Message)
	}
	f.threads[counterpartID] = messages
	return nil
}

func (f *fakeHistory) LoadConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conversations, nil
}

func TestWarmStartSeedsConversationList(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	history := &fakeHistory{
		conversations: []models.ConversationSummary{summary("u-a", "archived hello", 0, base)},
	}
	session := NewSession(SessionConfig{
		Transport: newFakeTransport(),
		Identity:  affiliatedIdentity(),
		History:   history,
	})

	session.WarmStart(context.Background())

	listed := session.Conversations()
	require.Len(t, listed, 1)
	require.Equal(t, "archived hello", listed[0].LastMessage.Content)
}

func TestSyncWritesThroughToHistory(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	transport := newFakeTransport()
	transport.conversations = []models.ConversationSummary{summary("u-a", "hi", 1, base)}
	transport.threads["u-a"] = []models.Message{confirmedMsg("m1", "hi")}

	history := &fakeHistory{}
	session := NewSession(SessionConfig{
		Transport: transport,
		Identity:  affiliatedIdentity(),
		History:   history,
	})

	require.NoError(t, session.SyncConversations(context.Background(), false))
	require.NoError(t, session.SelectConversation(context.Background(), "u-a"))

	require.Len(t, history.conversations, 1)
	require.Len(t, history.threads["u-a"], 1)
}

func TestSelectConversationClearsUnreadImmediately(t *testing.T) {
	transport := newFakeTransport()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	transport.conversations = []models.ConversationSummary{summary("u-a", "hi", 4, base)}
	session := newTestSession(transport)

	require.NoError(t, session.SyncConversations(context.Background(), false))
	require.Equal(t, 4, session.TotalUnread())

	require.NoError(t, session.SelectConversation(context.Background(), "u-a"))
	require.Equal(t, 0, session.TotalUnread())
}
