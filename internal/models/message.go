package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies a portal user's role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDoctor Role = "doctor"
	RoleStaff  Role = "staff"
)

// Participant is one party of a one-to-one conversation.
type Participant struct {
	// ID is the portal user id.
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Email is the portal account email.
	Email string `json:"email"`

	// Role is the portal role (admin, doctor, staff).
	Role Role `json:"role"`

	// Hospital is the organizational affiliation, empty if unassigned.
	Hospital string `json:"hospital,omitempty"`
}

// IsAdmin reports whether the participant holds the admin role.
func (p Participant) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Attachment is an optional file reference carried by a message.
type Attachment struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Message is a single inter-user message.
//
// A message is either confirmed (id assigned by the server) or
// provisional (id generated locally while a send is in flight).
// Provisional entries exist only inside the message cache; they are
// reconciled against the server response or dropped, never persisted.
type Message struct {
	// ID is the server-assigned identifier, or a local uuid while provisional.
	ID string `json:"id"`

	// Provisional marks a locally-created entry awaiting server confirmation.
	Provisional bool `json:"-"`

	// Sender is the authoring party.
	Sender Participant `json:"sender"`

	// Receiver is the addressed party.
	Receiver Participant `json:"receiver"`

	// Content is the text body.
	Content string `json:"content"`

	// Attachments are optional file references.
	Attachments []Attachment `json:"attachments,omitempty"`

	// Read is the server-authoritative read receipt.
	Read bool `json:"read"`

	// CreatedAt is the server timestamp; provisional entries carry the
	// client clock until reconciled.
	CreatedAt time.Time `json:"createdAt"`
}

// NewProvisional builds a provisional message with a locally-unique id.
func NewProvisional(sender, receiver Participant, content string, now time.Time) Message {
	return Message{
		ID:          uuid.New().String(),
		Provisional: true,
		Sender:      sender,
		Receiver:    receiver,
		Content:     content,
		Read:        false,
		CreatedAt:   now,
	}
}

// Confirmed reports whether the message carries a server identity.
func (m Message) Confirmed() bool {
	return !m.Provisional
}

// Validate checks the fields required to display or persist a message.
func (m *Message) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(m.ID) == "" {
		validation.AddMessage("id", "id is required")
	}
	if strings.TrimSpace(m.Sender.ID) == "" {
		validation.AddMessage("sender", "sender id is required")
	}
	if strings.TrimSpace(m.Receiver.ID) == "" {
		validation.AddMessage("receiver", "receiver id is required")
	}
	if strings.TrimSpace(m.Content) == "" && len(m.Attachments) == 0 {
		validation.AddMessage("content", "content or attachment is required")
	}
	return validation.Err()
}
