//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"task-chat/domain"
	"task-chat/errors"
)

type IConversationRepository interface {
	Ensure(a, b domain.Identity, task *domain.TaskRef) (DiskConversation, error)
	Get(id domain.ConversationID) (DiskConversation, error)
	ListForParticipant(participantID string) ([]DiskConversation, error)
}

type ConversationRepository struct {
	db *badger.DB
}

func NewConversationRepository(db *badger.DB) ConversationRepository {
	return ConversationRepository{db: db}
}

// DiskConversation is the persisted shape of a two-party thread.
type DiskConversation struct {
	ID           domain.ConversationID `json:"id"`
	Participants [2]domain.Identity    `json:"participants"`
	Task         *domain.TaskRef       `json:"task,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

// Ensure returns the conversation between the two identities for the given
// task context, creating it on first contact. The pair key is
// order-independent so both parties resolve to the same thread.
func (c ConversationRepository) Ensure(a, b domain.Identity, task *domain.TaskRef) (DiskConversation, error) {
	pairKey := pairKey(a.ID, b.ID, task)

	existing, err := c.lookupPair(pairKey)
	if err == nil {
		return c.Get(existing)
	}
	if err != badger.ErrKeyNotFound {
		return DiskConversation{}, err
	}

	conversation := DiskConversation{
		ID:           domain.ConversationID(uuid.NewString()),
		Participants: [2]domain.Identity{a, b},
		Task:         task,
		CreatedAt:    time.Now().UTC(),
	}
	bytes, err := json.Marshal(conversation)
	if err != nil {
		return DiskConversation{}, err
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		// Re-check inside the transaction to stay first-writer-wins
		if item, err := txn.Get(pairKey); err == nil {
			return item.Value(func(value []byte) error {
				conversation = DiskConversation{}
				return c.readByID(txn, domain.ConversationID(value), &conversation)
			})
		}
		if err := txn.Set(conversationKey(conversation.ID), bytes); err != nil {
			return err
		}
		if err := txn.Set(pairKey, []byte(conversation.ID)); err != nil {
			return err
		}
		for _, p := range conversation.Participants {
			if err := txn.Set(participantKey(p.ID, conversation.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
	return conversation, err
}

func (c ConversationRepository) Get(id domain.ConversationID) (DiskConversation, error) {
	var conversation DiskConversation
	err := c.db.View(func(txn *badger.Txn) error {
		return c.readByID(txn, id, &conversation)
	})
	return conversation, err
}

// ListForParticipant returns every conversation the identity takes part in,
// used by the dashboard conversation list.
func (c ConversationRepository) ListForParticipant(participantID string) ([]DiskConversation, error) {
	var conversations []DiskConversation
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("convidx:%s:", participantID))
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			id := domain.ConversationID(key[len(prefix):])
			var conversation DiskConversation
			if err := c.readByID(txn, id, &conversation); err != nil {
				return err
			}
			conversations = append(conversations, conversation)
		}
		return nil
	})
	return conversations, err
}

func (c ConversationRepository) lookupPair(pairKey []byte) (domain.ConversationID, error) {
	var id domain.ConversationID
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pairKey)
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			id = domain.ConversationID(value)
			return nil
		})
	})
	return id, err
}

func (c ConversationRepository) readByID(txn *badger.Txn, id domain.ConversationID, out *DiskConversation) error {
	item, err := txn.Get(conversationKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return errors.ErrConversationUnknown
		}
		return err
	}
	return item.Value(func(value []byte) error {
		return json.Unmarshal(value, out)
	})
}

func conversationKey(id domain.ConversationID) []byte {
	return []byte("conv:" + id)
}

func participantKey(participantID string, id domain.ConversationID) []byte {
	return []byte(fmt.Sprintf("convidx:%s:%s", participantID, id))
}

func pairKey(a, b string, task *domain.TaskRef) []byte {
	lo, hi := a, b
	if strings.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	taskID := ""
	if task != nil {
		taskID = task.ID
	}
	return []byte(fmt.Sprintf("convpair:%s:%s:%s", lo, hi, taskID))
}
