package runtime

import (
	"sync"

	"task-chat/contract"
	"task-chat/domain"
)

type Set map[string]struct{}

// Registry tracks which participants are connected and which conversations
// they are currently attached to.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]contract.EventSink // map participant -> Sink
	members  map[domain.ConversationID]Set // map conversation -> participants
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]contract.EventSink),
		members:  make(map[domain.ConversationID]Set),
	}
}

// GetSinksForConversation retrieves all active communication channels for a
// specific conversation. It performs a two-step lookup:
// 1. Identifies participant IDs attached to the conversation via members.
// 2. Resolves those IDs into actual EventSinks using the sessions map.
//
// This decoupled approach ensures that even if a user has several
// conversations open, their connection (Sink) is managed in a single place.
// Returns nil if the conversation is unknown or has no attached participants.
func (r *Registry) GetSinksForConversation(id domain.ConversationID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	participants, ok := r.members[id]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for participantID := range participants {
		if sink, exists := r.sessions[participantID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// GetSinkForParticipant resolves a single participant's connection, used for
// targeted pushes such as send failures.
func (r *Registry) GetSinkForParticipant(participantID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sessions[participantID]
	return sink, ok
}

// Subscribe registers a participant's active connection and attaches them to
// a conversation. If the conversation is not yet tracked, it is initialized
// on the fly.
func (r *Registry) Subscribe(participantID string, id domain.ConversationID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[participantID] = sink

	if _, ok := r.members[id]; !ok {
		r.members[id] = make(Set)
	}
	r.members[id][participantID] = struct{}{}
}

// Unsubscribe removes a participant from the registry and their conversation.
// It cleans up the session and ensures no empty sets are left in the members
// map to prevent memory leaks over time.
func (r *Registry) Unsubscribe(participantID string, id domain.ConversationID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, participantID)

	if participants, ok := r.members[id]; ok {
		delete(participants, participantID)

		// If no one is left, remove the conversation entry entirely
		if len(participants) == 0 {
			delete(r.members, id)
		}
	}
}
