package models

import (
	"time"
)

// LastMessage is the preview of the most recent message in a conversation.
type LastMessage struct {
	// Content is the text body of the most recent message.
	Content string `json:"content"`

	// SenderID identifies who sent the most recent message.
	SenderID string `json:"sender"`

	// Timestamp is when the most recent message was created.
	Timestamp time.Time `json:"timestamp"`
}

// ConversationSummary is the per-counterpart entry of the conversation list.
type ConversationSummary struct {
	// ID is the server conversation id. Locally synthesized placeholders
	// use the counterpart's user id until the server creates a record.
	ID string `json:"id"`

	// Participant is the counterpart, from the current user's perspective.
	Participant Participant `json:"participant"`

	// LastMessage previews the most recent message, zero-valued for
	// placeholders with no message history.
	LastMessage LastMessage `json:"lastMessage"`

	// UnreadCount counts messages sent by the participant that the
	// current user has not read. Server-computed.
	UnreadCount int `json:"unreadCount"`

	// UpdatedAt is when the conversation last changed.
	UpdatedAt time.Time `json:"updatedAt"`

	// Placeholder marks a locally synthesized summary for a counterpart
	// with no server-side conversation record yet.
	Placeholder bool `json:"-"`
}

// NewPlaceholderConversation synthesizes a local summary for a counterpart
// that has no conversation record yet, so the view has something to show
// while the first message is in flight.
func NewPlaceholderConversation(counterpart Participant, now time.Time) ConversationSummary {
	return ConversationSummary{
		ID:          counterpart.ID,
		Participant: counterpart,
		UnreadCount: 0,
		UpdatedAt:   now,
		Placeholder: true,
	}
}
