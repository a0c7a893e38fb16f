//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"

	"task-chat/contract"
	"task-chat/domain"
	"task-chat/errors"
	"task-chat/repositories"
	"task-chat/runtime"
	"task-chat/search"
)

type IChatService interface {
	PostMessage(ctx context.Context, cmd domain.SendMessageCommand) error
	Append(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	MarkRead(cmd domain.MarkReadCommand) error
	AckDelivered(id domain.ConversationID, messageIDs []string)
	GetConversation(id domain.ConversationID, callerID string) (*domain.Conversation, error)
	EnsureConversation(a, b domain.Identity, task *domain.TaskRef) (repositories.DiskConversation, error)
	ListConversations(participantID string) ([]repositories.DiskConversation, error)
	Search(ctx context.Context, id domain.ConversationID, callerID, query string, limit int) ([]search.Hit, error)
	Attach(userID string, id domain.ConversationID, sink contract.EventSink) error
	Detach(userID string, id domain.ConversationID)
}

// ChatService is the application facade used by the REST and websocket
// surfaces. It enforces participant checks before anything reaches the hub.
type ChatService struct {
	hub   *runtime.Hub
	index *search.MessageIndex
}

func NewChatService(hub *runtime.Hub, index *search.MessageIndex) *ChatService {
	return &ChatService{hub: hub, index: index}
}

func (s *ChatService) PostMessage(_ context.Context, cmd domain.SendMessageCommand) error {
	if err := s.requireParticipant(cmd.ConversationID, cmd.SenderID); err != nil {
		return err
	}
	s.hub.Dispatch(cmd)
	return nil
}

// Append posts a message and waits for the authoritative stored record.
// REST clients rely on the returned id and timestamp to reconcile their
// optimistic copy, so this path cannot be fire-and-forget.
func (s *ChatService) Append(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	if err := s.requireParticipant(cmd.ConversationID, cmd.SenderID); err != nil {
		return domain.Message{}, err
	}
	return s.hub.Append(ctx, cmd)
}

// MarkRead applies a read-receipt batch. The reader must belong to the
// conversation, otherwise any account could forge receipts the sender
// then trusts.
func (s *ChatService) MarkRead(cmd domain.MarkReadCommand) error {
	if err := s.requireParticipant(cmd.ConversationID, cmd.ReaderID); err != nil {
		return err
	}
	s.hub.Dispatch(cmd)
	return nil
}

// AckDelivered records that a recipient's device received the push.
func (s *ChatService) AckDelivered(id domain.ConversationID, messageIDs []string) {
	s.hub.Dispatch(domain.UpdateStatusCommand{
		ConversationID: id,
		MessageIDs:     messageIDs,
		Status:         domain.StatusDelivered,
	})
}

// GetConversation assembles the snapshot a session opens with: metadata plus
// the full history in display order (oldest first).
func (s *ChatService) GetConversation(id domain.ConversationID, callerID string) (*domain.Conversation, error) {
	disk, err := s.hub.GetConversation(id)
	if err != nil {
		return nil, err
	}

	conversation := domain.NewConversation(disk.ID, disk.Participants, disk.Task)
	if !conversation.HasParticipant(callerID) {
		return nil, errors.ErrNotParticipant
	}

	// Walk pages newest-first, then reverse into display order
	var newestFirst []domain.Message
	var cursor *string
	for {
		page, next, err := s.hub.GetMessages(id, cursor)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		newestFirst = append(newestFirst, page...)
		if next == nil || *next == "" {
			break
		}
		cursor = next
	}
	for i := len(newestFirst) - 1; i >= 0; i-- {
		conversation.Append(newestFirst[i])
	}
	return conversation, nil
}

func (s *ChatService) EnsureConversation(a, b domain.Identity, task *domain.TaskRef) (repositories.DiskConversation, error) {
	return s.hub.EnsureConversation(a, b, task)
}

func (s *ChatService) ListConversations(participantID string) ([]repositories.DiskConversation, error) {
	return s.hub.ListConversations(participantID)
}

// Search runs a full-text query over one conversation's history, restricted
// to its participants.
func (s *ChatService) Search(ctx context.Context, id domain.ConversationID, callerID, query string, limit int) ([]search.Hit, error) {
	if err := s.requireParticipant(id, callerID); err != nil {
		return nil, err
	}
	return s.index.Search(ctx, id, query, limit)
}

// Attach registers a connected participant for realtime pushes.
func (s *ChatService) Attach(userID string, id domain.ConversationID, sink contract.EventSink) error {
	if err := s.requireParticipant(id, userID); err != nil {
		return err
	}
	s.hub.RegisterParticipant(userID, id, sink)
	return nil
}

func (s *ChatService) Detach(userID string, id domain.ConversationID) {
	s.hub.UnregisterParticipant(userID, id)
}

func (s *ChatService) requireParticipant(id domain.ConversationID, userID string) error {
	disk, err := s.hub.GetConversation(id)
	if err != nil {
		return err
	}
	for _, p := range disk.Participants {
		if p.ID == userID {
			return nil
		}
	}
	return errors.ErrNotParticipant
}
