//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"task-chat/domain"
	"task-chat/errors"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	GetMessages(conversation domain.ConversationID, cursor *string) ([]DiskMessage, *string, error)
	UpdateStatus(conversation domain.ConversationID, messageID string, status domain.Status) (domain.Status, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type DiskMessage struct {
	ID           string                `json:"id"`
	TempID       string                `json:"temp_id,omitempty"`
	Conversation domain.ConversationID `json:"conversation"`
	Sender       string                `json:"sender"`
	Text         string                `json:"text"`
	Status       domain.Status         `json:"status"`
	At           time.Time             `json:"at"`
}

// StoreMessage persists a message in BadgerDB.
// The primary key is formatted as "msg:{conversation}:{timestamp_padded}:{id}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using the message id as a collision disconnector if
//     two messages arrive at the same nanosecond.
//
// A secondary key "idx:msg:{conversation}:{id}" points back at the primary key
// so status updates can locate the record by server id alone.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	key := primaryKey(message.Conversation, message.At, message.ID)
	bytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		return txn.Set(indexKey(message.Conversation, message.ID), key)
	})
}

// GetMessages retrieves messages for a conversation using a reverse prefix
// scan, newest first. Thanks to the padded timestamp in the key, messages are
// naturally sorted by time. It stops collecting once the configured
// limitMessages is reached and returns a cursor for the next page.
func (m MessageRepository) GetMessages(conversation domain.ConversationID, cursor *string) ([]DiskMessage, *string, error) {
	var byteMessages [][]byte
	var diskMessages []DiskMessage
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", conversation)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(byteMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			// Memorize cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				byteMessages = append(byteMessages, value)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for _, b := range byteMessages {
		var message DiskMessage
		if err = json.Unmarshal(b, &message); err != nil {
			return nil, nil, err
		}
		diskMessages = append(diskMessages, message)
	}
	return diskMessages, &lastKey, err
}

// UpdateStatus merges a delivery-status change into the stored record,
// highest-wins, and returns the resulting status. Updates that do not raise
// the status leave the record untouched, which makes replays harmless.
func (m MessageRepository) UpdateStatus(conversation domain.ConversationID, messageID string, status domain.Status) (domain.Status, error) {
	var merged domain.Status
	err := m.db.Update(func(txn *badger.Txn) error {
		idx, err := txn.Get(indexKey(conversation, messageID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrMessageUnknown
			}
			return err
		}
		var key []byte
		if key, err = idx.ValueCopy(nil); err != nil {
			return err
		}

		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		var message DiskMessage
		if err = item.Value(func(value []byte) error {
			return json.Unmarshal(value, &message)
		}); err != nil {
			return err
		}

		merged = message.Status.Merge(status)
		if merged == message.Status {
			return nil
		}
		message.Status = merged
		bytes, err := json.Marshal(message)
		if err != nil {
			return err
		}
		return txn.Set(key, bytes)
	})
	return merged, err
}

func primaryKey(conversation domain.ConversationID, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", conversation, at.UnixNano(), id))
}

func indexKey(conversation domain.ConversationID, id string) []byte {
	return []byte(fmt.Sprintf("idx:msg:%s:%s", conversation, id))
}
