// Package domain contains core concepts of the marketplace chat system.
// This file defines Message and related rules.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TempIDPrefix marks client-generated identifiers of messages that have not
// been acknowledged by the server yet.
const TempIDPrefix = "tmp-"

// Message is one entry of a conversation.
//
// ID is the server-assigned identifier once the message is acknowledged.
// Before that, locally originated messages carry a temporary id (TempIDPrefix)
// both in ID and TempID. The server echoes TempID back with the authoritative
// record so reconciliation is exact rather than matched by content.
type Message struct {
	ID        string    `json:"id"`
	TempID    string    `json:"temp_id,omitempty"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTempID generates a client-side temporary message identifier.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTemp reports whether the message still carries a client temporary id.
func (m Message) IsTemp() bool {
	return len(m.ID) >= len(TempIDPrefix) && m.ID[:len(TempIDPrefix)] == TempIDPrefix
}

// Acknowledged reports whether the message carries a server-assigned id.
func (m Message) Acknowledged() bool {
	return m.ID != "" && !m.IsTemp()
}
