package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Keta432/medichat/internal/api"
	"github.com/Keta432/medichat/internal/auth"
	"github.com/Keta432/medichat/internal/events"
	"github.com/Keta432/medichat/internal/logging"
	"github.com/Keta432/medichat/internal/models"
)

// Transport is the portal API surface the session depends on. The
// api.Client satisfies it; tests substitute fakes.
type Transport interface {
	ListConversations(ctx context.Context) ([]models.ConversationSummary, error)
	ListMessages(ctx context.Context, counterpartID string) ([]models.Message, error)
	SendMessage(ctx context.Context, receiverID, content string) (models.Message, error)
	ListEligibleContacts(ctx context.Context) ([]models.Participant, error)
}

// History persists synced conversations and messages for offline
// inspection. Provisional entries are never handed to it.
type History interface {
	SaveConversations(ctx context.Context, summaries []models.ConversationSummary) error
	SaveMessages(ctx context.Context, counterpartID string, messages []models.Message) error
}

// HistoryLoader is implemented by history stores that can also read
// back what they archived, used to pre-seed the UI at startup.
type HistoryLoader interface {
	LoadConversations(ctx context.Context) ([]models.ConversationSummary, error)
}

// SessionConfig configures a Session.
type SessionConfig struct {
	Transport    Transport
	Identity     auth.Identity
	History      History // optional
	PollInterval time.Duration
}

// Session is the synchronization core: it owns the message cache, the
// conversation index, and the polling loop, and publishes change events
// that the terminal UI and CLI subscribe to. All methods are safe for
// concurrent use.
type Session struct {
	transport Transport
	identity  auth.Identity
	history   History

	cache     *MessageCache
	index     *ConversationIndex
	publisher *events.Publisher
	poller    *Poller
	logger    zerolog.Logger

	mu         sync.Mutex
	selectedID string
	generation uint64
	sending    bool
}

// NewSession creates a session over the given transport and identity.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		transport: cfg.Transport,
		identity:  cfg.Identity,
		history:   cfg.History,
		cache:     NewMessageCache(),
		index:     NewConversationIndex(),
		publisher: events.NewPublisher(),
		logger:    logging.WithUser(cfg.Identity.UserID),
	}
	s.poller = NewPoller(PollerConfig{Interval: cfg.PollInterval}, s)
	return s
}

// Identity returns the authenticated user.
func (s *Session) Identity() auth.Identity {
	return s.identity
}

// WarmStart seeds the conversation index from the local archive so the
// first render has content before the initial server refresh lands.
// Stale entries are replaced wholesale by that refresh.
func (s *Session) WarmStart(ctx context.Context) {
	loader, ok := s.history.(HistoryLoader)
	if !ok {
		return
	}
	summaries, err := loader.LoadConversations(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("could not warm conversation list from archive")
		return
	}
	s.index.Set(s.visibleSummaries(summaries))
}

// Start launches the polling loop. The first refresh cycle runs in the
// foreground, so an unreachable or rejecting server fails Start.
func (s *Session) Start(ctx context.Context) error {
	return s.poller.Start(ctx)
}

// Stop halts the polling loop and closes the event publisher.
func (s *Session) Stop() error {
	err := s.poller.Stop()
	s.publisher.Close()
	return err
}

// RefreshNow schedules an immediate background refresh cycle.
func (s *Session) RefreshNow() {
	s.poller.RefreshNow()
}

// Subscribe registers a handler for change events.
func (s *Session) Subscribe(id string, filter events.Filter, handler events.Handler) error {
	return s.publisher.Subscribe(id, filter, handler)
}

// Unsubscribe removes a previously registered handler.
func (s *Session) Unsubscribe(id string) error {
	return s.publisher.Unsubscribe(id)
}

// Conversations returns the current conversation list.
func (s *Session) Conversations() []models.ConversationSummary {
	return s.index.List()
}

// Messages returns the cached thread for a counterpart.
func (s *Session) Messages(counterpartID string) []models.Message {
	return s.cache.Get(counterpartID)
}

// Selected returns the currently selected counterpart id, or "".
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// TotalUnread sums unread counts across the conversation list.
func (s *Session) TotalUnread() int {
	return s.index.TotalUnread()
}

// SelectConversation makes a counterpart the active thread: its unread
// badge clears immediately, and its messages are fetched in the
// foreground so the caller can surface the failure.
func (s *Session) SelectConversation(ctx context.Context, counterpartID string) error {
	if counterpartID == "" {
		return api.ValidationError("no conversation selected")
	}
	if summary, ok := s.index.Find(counterpartID); ok {
		if err := s.checkEligibility(summary.Participant); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.selectedID = counterpartID
	s.generation++
	s.mu.Unlock()

	if s.index.ZeroUnread(counterpartID) {
		s.publisher.Publish(events.Event{Type: events.TypeConversations})
	}

	return s.SyncSelected(ctx, false)
}

// SelectNewContact opens a thread with a contact the user has no
// conversation with yet. A placeholder summary appears in the list
// until the first exchanged message makes the server list it.
func (s *Session) SelectNewContact(ctx context.Context, contact models.Participant) error {
	if err := s.checkEligibility(contact); err != nil {
		return err
	}

	if _, ok := s.index.Find(contact.ID); !ok {
		s.index.AddPlaceholder(models.NewPlaceholderConversation(contact, time.Now()))
		s.publisher.Publish(events.Event{Type: events.TypeConversations})
	}

	return s.SelectConversation(ctx, contact.ID)
}

// ClearSelection deselects the active thread; poll cycles go back to
// refreshing only the conversation list.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.selectedID = ""
	s.generation++
	s.mu.Unlock()
}

// EligibleContacts returns the users this account may start a
// conversation with. An unaffiliated account is restricted to
// administrators regardless of what the server returns.
func (s *Session) EligibleContacts(ctx context.Context) ([]models.Participant, error) {
	contacts, err := s.transport.ListEligibleContacts(ctx)
	if err != nil {
		return nil, err
	}
	if s.identity.Affiliated() {
		return contacts, nil
	}
	admins := contacts[:0]
	for _, contact := range contacts {
		if contact.IsAdmin() {
			admins = append(admins, contact)
		}
	}
	return admins, nil
}

// Send runs the optimistic send pipeline for the selected thread: the
// message appears in the cache immediately, is replaced by the server's
// copy on success, and is removed on failure. Only one send may be in
// flight at a time.
func (s *Session) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return api.ValidationError("message content is empty")
	}

	s.mu.Lock()
	receiverID := s.selectedID
	if receiverID == "" {
		s.mu.Unlock()
		return api.ValidationError("no conversation selected")
	}
	if s.sending {
		s.mu.Unlock()
		return api.ValidationError("a send is already in progress")
	}
	s.sending = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
	}()

	receiver := models.Participant{ID: receiverID}
	if counterpart, ok := s.index.Find(receiverID); ok {
		receiver = counterpart.Participant
		if err := s.checkEligibility(receiver); err != nil {
			return err
		}
	}

	provisional := models.NewProvisional(s.identity.Participant(), receiver, content, time.Now())
	s.cache.Append(receiverID, provisional)
	s.publisher.Publish(events.Event{Type: events.TypeThread, CounterpartID: receiverID})

	confirmed, err := s.transport.SendMessage(ctx, receiverID, content)
	if err != nil {
		s.cache.DropProvisional(receiverID, provisional.ID)
		s.publisher.Publish(events.Event{Type: events.TypeThread, CounterpartID: receiverID})
		s.logger.Warn().Err(err).Str("receiver", receiverID).Msg("send failed, rolled back provisional message")
		return err
	}

	s.cache.ReconcileProvisional(receiverID, provisional.ID, confirmed)
	s.publisher.Publish(events.Event{Type: events.TypeThread, CounterpartID: receiverID})

	// The conversation list's recency order and last-message preview
	// changed server-side; pick it up without waiting a full interval.
	s.poller.RefreshNow()
	return nil
}

// SyncConversations refreshes the conversation list. Background
// failures are logged and swallowed so the loop keeps ticking.
func (s *Session) SyncConversations(ctx context.Context, background bool) error {
	summaries, err := s.transport.ListConversations(ctx)
	if err != nil {
		return s.syncFailed(err, background, "conversation list refresh failed")
	}
	summaries = s.visibleSummaries(summaries)

	if s.index.Set(summaries) {
		s.publisher.Publish(events.Event{Type: events.TypeConversations})
		s.saveConversations(ctx, summaries)
	}
	return nil
}

// SyncSelected refreshes the selected thread. A response that arrives
// after the selection moved on is discarded; it belongs to a thread the
// user is no longer looking at.
func (s *Session) SyncSelected(ctx context.Context, background bool) error {
	s.mu.Lock()
	counterpartID := s.selectedID
	generation := s.generation
	s.mu.Unlock()

	if counterpartID == "" {
		return nil
	}

	serverList, err := s.transport.ListMessages(ctx, counterpartID)
	if err != nil {
		return s.syncFailed(err, background, "thread refresh failed")
	}

	s.mu.Lock()
	stale := s.selectedID != counterpartID || s.generation != generation
	s.mu.Unlock()
	if stale {
		s.logger.Debug().Str("counterpart", counterpartID).Msg("discarding stale thread response")
		return nil
	}

	if s.cache.Replace(counterpartID, serverList) {
		s.publisher.Publish(events.Event{Type: events.TypeThread, CounterpartID: counterpartID})
		s.saveMessages(ctx, counterpartID, serverList)
	}
	return nil
}

func (s *Session) syncFailed(err error, background bool, msg string) error {
	s.publisher.Publish(events.Event{Type: events.TypeSyncError, Err: err})
	if background {
		s.logger.Warn().Err(err).Msg(msg)
		return nil
	}
	return err
}

// visibleSummaries applies the role-based visibility rule: an
// unaffiliated account sees only conversations with administrators.
func (s *Session) visibleSummaries(summaries []models.ConversationSummary) []models.ConversationSummary {
	if s.identity.Affiliated() {
		return summaries
	}
	visible := summaries[:0]
	for _, summary := range summaries {
		if summary.Participant.IsAdmin() {
			visible = append(visible, summary)
		}
	}
	return visible
}

// checkEligibility enforces the messaging restriction client-side: an
// account with no hospital affiliation may only address administrators.
func (s *Session) checkEligibility(counterpart models.Participant) error {
	if !s.identity.Affiliated() && !counterpart.IsAdmin() {
		return api.ValidationError("unaffiliated accounts can only message administrators")
	}
	return nil
}

func (s *Session) saveConversations(ctx context.Context, summaries []models.ConversationSummary) {
	if s.history == nil {
		return
	}
	if err := s.history.SaveConversations(ctx, summaries); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist conversation list")
	}
}

func (s *Session) saveMessages(ctx context.Context, counterpartID string, messages []models.Message) {
	if s.history == nil {
		return
	}
	if err := s.history.SaveMessages(ctx, counterpartID, messages); err != nil {
		s.logger.Warn().Err(err).Str("counterpart", counterpartID).Msg("failed to persist thread")
	}
}
