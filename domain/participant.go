// Package domain contains core concepts of the marketplace chat system.
// This file defines the identities taking part in a conversation.
// No runtime, network, or UI logic should be added here.
package domain

// Identity is a chat participant: either the client who posted a task or the
// freelancer negotiating it. Messages reference participants by id only.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// TaskRef is the optional task context a conversation is anchored to.
// It is display-only; the task itself lives in the marketplace backend.
type TaskRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
