// Package chat implements the messaging synchronization core: the
// per-counterpart message cache, the conversation index, the polling
// loop, and the optimistic send pipeline, coordinated by a Session.
package chat

import (
	"sync"

	"github.com/Keta432/medichat/internal/models"
)

// MessageCache holds the per-counterpart ordered message logs that the
// presentation layer renders between network round-trips.
//
// Server order is preserved exactly; unreconciled provisional entries
// always sit after every confirmed message until they are replaced by
// the server's copy or dropped.
type MessageCache struct {
	mu   sync.RWMutex
	logs map[string][]models.Message
}

// NewMessageCache creates an empty message cache.
func NewMessageCache() *MessageCache {
	return &MessageCache{
		logs: make(map[string][]models.Message),
	}
}

// Get returns a copy of the message log for a counterpart.
func (c *MessageCache) Get(counterpartID string) []models.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	log, ok := c.logs[counterpartID]
	if !ok {
		return nil
	}
	out := make([]models.Message, len(log))
	copy(out, log)
	return out
}

// Len returns the number of cached messages for a counterpart.
func (c *MessageCache) Len(counterpartID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.logs[counterpartID])
}

// Replace installs a server-returned message list for a counterpart,
// preserving any still-pending provisional entries at the tail. A
// provisional entry whose content the server list already contains (a
// poll echo racing the send pipeline's reconciliation) is kept; the
// reconciliation step dedupes it against the echo.
//
// The returned flag reports whether the refresh carried new information
// per the change-detection rule: different length, a different id at
// any position, or a different read flag on any message. Callers must
// not notify the presentation layer when it is false.
func (c *MessageCache) Replace(counterpartID string, serverList []models.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.logs[counterpartID]

	merged := make([]models.Message, 0, len(serverList)+1)
	for _, msg := range serverList {
		msg.Provisional = false
		merged = append(merged, msg)
	}
	// Provisional entries survive a concurrent background refresh; the
	// server does not know about them yet.
	for _, msg := range old {
		if msg.Provisional {
			merged = append(merged, msg)
		}
	}

	changed := messagesChanged(old, merged)
	c.logs[counterpartID] = merged
	return changed
}

// Append adds a message at the tail of a counterpart's log.
func (c *MessageCache) Append(counterpartID string, msg models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs[counterpartID] = append(c.logs[counterpartID], msg)
}

// ReconcileProvisional replaces the provisional entry identified by
// tempID with the server's authoritative message, in place. If the
// server message is already present (its echo arrived through a poll
// before reconciliation), the provisional entry is removed instead, so
// no server id ever appears twice.
func (c *MessageCache) ReconcileProvisional(counterpartID, tempID string, server models.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := c.logs[counterpartID]
	server.Provisional = false

	echoPresent := false
	for _, msg := range log {
		if !msg.Provisional && msg.ID == server.ID {
			echoPresent = true
			break
		}
	}

	for i, msg := range log {
		if msg.Provisional && msg.ID == tempID {
			if echoPresent {
				c.logs[counterpartID] = append(log[:i], log[i+1:]...)
			} else {
				log[i] = server
			}
			return true
		}
	}
	return false
}

// DropProvisional removes the provisional entry identified by tempID,
// rolling back a failed send.
func (c *MessageCache) DropProvisional(counterpartID, tempID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := c.logs[counterpartID]
	for i, msg := range log {
		if msg.Provisional && msg.ID == tempID {
			c.logs[counterpartID] = append(log[:i], log[i+1:]...)
			return true
		}
	}
	return false
}

// HasProvisional reports whether a counterpart's log still contains any
// provisional entry.
func (c *MessageCache) HasProvisional(counterpartID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, msg := range c.logs[counterpartID] {
		if msg.Provisional {
			return true
		}
	}
	return false
}

// messagesChanged is the explicit change-detection predicate: a refresh
// carries new information when the length differs, when any position
// holds a different id, or when any message's read flag flipped. The
// read-flag clause exists so a counterpart reading the thread (same
// length, same ids) is still observed and re-rendered.
func messagesChanged(old, updated []models.Message) bool {
	if len(old) != len(updated) {
		return true
	}
	for i := range updated {
		if old[i].ID != updated[i].ID {
			return true
		}
		if old[i].Read != updated[i].Read {
			return true
		}
	}
	return false
}
