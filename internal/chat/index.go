package chat

import (
	"sync"

	"github.com/Keta432/medichat/internal/models"
)

// ConversationIndex holds the current conversation list in the server's
// recency order, plus locally synthesized placeholder entries for
// contacts the user opened but has not yet exchanged a message with.
type ConversationIndex struct {
	mu           sync.RWMutex
	snapshot     []models.ConversationSummary
	placeholders map[string]models.ConversationSummary
}

// NewConversationIndex creates an empty conversation index.
func NewConversationIndex() *ConversationIndex {
	return &ConversationIndex{
		placeholders: make(map[string]models.ConversationSummary),
	}
}

// Set installs a server-returned conversation list, replacing the
// previous snapshot wholesale. Placeholders whose counterpart now
// appears in the server list are dropped; a real summary supersedes
// the synthetic one.
//
// The returned flag reports whether the list changed per the
// change-detection rule: different count, or for any position a
// different unread count, last-message content, or update timestamp.
func (x *ConversationIndex) Set(serverList []models.ConversationSummary) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, summary := range serverList {
		delete(x.placeholders, summary.Participant.ID)
	}

	changed := conversationsChanged(x.snapshot, serverList)
	x.snapshot = make([]models.ConversationSummary, len(serverList))
	copy(x.snapshot, serverList)
	return changed
}

// List returns the current conversation list: the server snapshot in
// recency order, followed by placeholder entries for freshly opened
// contacts the server does not list yet.
func (x *ConversationIndex) List() []models.ConversationSummary {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]models.ConversationSummary, 0, len(x.snapshot)+len(x.placeholders))
	out = append(out, x.snapshot...)
	for _, summary := range x.placeholders {
		out = append(out, summary)
	}
	return out
}

// Find returns the summary for a counterpart, checking the server
// snapshot first and placeholders second.
func (x *ConversationIndex) Find(counterpartID string) (models.ConversationSummary, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	for _, summary := range x.snapshot {
		if summary.Participant.ID == counterpartID {
			return summary, true
		}
	}
	summary, ok := x.placeholders[counterpartID]
	return summary, ok
}

// AddPlaceholder registers a synthetic zero-message summary for a
// counterpart the user just opened. It is a no-op when the counterpart
// already has a real conversation.
func (x *ConversationIndex) AddPlaceholder(summary models.ConversationSummary) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, existing := range x.snapshot {
		if existing.Participant.ID == summary.Participant.ID {
			return
		}
	}
	x.placeholders[summary.Participant.ID] = summary
}

// ZeroUnread clears the unread badge for a counterpart immediately on
// selection, without waiting for the server's next snapshot to reflect
// the read marks.
func (x *ConversationIndex) ZeroUnread(counterpartID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	for i, summary := range x.snapshot {
		if summary.Participant.ID == counterpartID && summary.UnreadCount != 0 {
			x.snapshot[i].UnreadCount = 0
			return true
		}
	}
	return false
}

// TotalUnread sums the unread counts across the snapshot.
func (x *ConversationIndex) TotalUnread() int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	total := 0
	for _, summary := range x.snapshot {
		total += summary.UnreadCount
	}
	return total
}

// conversationsChanged reports whether a refreshed conversation list
// differs from the previous snapshot: a different count, or at any
// position a different unread count, last-message content, or update
// timestamp. Counterpart renames alone do not trigger a refresh; a
// rename without message activity is not worth a re-render.
func conversationsChanged(old, updated []models.ConversationSummary) bool {
	if len(old) != len(updated) {
		return true
	}
	for i := range updated {
		if old[i].UnreadCount != updated[i].UnreadCount {
			return true
		}
		if old[i].LastMessage.Content != updated[i].LastMessage.Content {
			return true
		}
		if !old[i].UpdatedAt.Equal(updated[i].UpdatedAt) {
			return true
		}
	}
	return false
}
