// Package projection builds local read models from observed events.
// Handles ordering, deduplication, and previews.
// Does not emit events or interact with transports directly.
package projection

import (
	"context"
	"sync"

	"task-chat/domain"
	"task-chat/domain/event"
)

// Preview is the conversation-list entry shown on the dashboard: the latest
// message and how many stored messages have not been read yet.
type Preview struct {
	Conversation domain.ConversationID
	LastMessage  domain.Message
	Unread       int
}

// Timeline folds the event stream into per-conversation previews. It is a
// permanent sink on the fanout, so it sees every authoritative event exactly
// as connected participants do.
type Timeline struct {
	mu       sync.RWMutex
	previews map[domain.ConversationID]*Preview
	readIDs  map[string]struct{}
}

func NewTimeline() *Timeline {
	return &Timeline{
		previews: make(map[domain.ConversationID]*Preview),
		readIDs:  make(map[string]struct{}),
	}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch evt := e.(type) {
	case event.MessageStored:
		preview := t.preview(evt.Conversation)
		preview.LastMessage = evt.Message
		preview.Unread++
	case event.StatusUpdated:
		if evt.Status != domain.StatusRead {
			return nil
		}
		// Deduplicate: read receipts may be replayed
		if _, seen := t.readIDs[evt.MessageID]; seen {
			return nil
		}
		t.readIDs[evt.MessageID] = struct{}{}
		preview := t.preview(evt.Conversation)
		if preview.Unread > 0 {
			preview.Unread--
		}
		if preview.LastMessage.ID == evt.MessageID {
			preview.LastMessage.Status = preview.LastMessage.Status.Merge(evt.Status)
		}
	}
	return nil
}

func (t *Timeline) preview(id domain.ConversationID) *Preview {
	preview, ok := t.previews[id]
	if !ok {
		preview = &Preview{Conversation: id}
		t.previews[id] = preview
	}
	return preview
}

// GetPreview returns a copy of the preview for one conversation.
func (t *Timeline) GetPreview(id domain.ConversationID) (Preview, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	preview, ok := t.previews[id]
	if !ok {
		return Preview{}, false
	}
	return *preview, true
}
