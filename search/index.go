// Package search maintains a full-text index of stored messages so
// participants can find past agreements (prices, dates, addresses) inside
// long conversations.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"

	"task-chat/domain"
)

// Hit is one search result, newest relevance first.
type Hit struct {
	MessageID    string
	Conversation domain.ConversationID
	Text         string
	Score        float64
}

// MessageIndex wraps a bluge writer. Indexing is idempotent per message id,
// so re-indexing after a crash replay is harmless.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Index adds or replaces the document for a stored message.
func (s *MessageIndex) Index(conversation domain.ConversationID, message domain.Message) error {
	doc := bluge.NewDocument(message.ID).
		AddField(bluge.NewTextField("text", message.Text).StoreValue()).
		AddField(bluge.NewKeywordField("conversation", string(conversation)).StoreValue()).
		AddField(bluge.NewKeywordField("sender", message.SenderID).StoreValue()).
		AddField(bluge.NewDateTimeField("at", message.CreatedAt))

	return s.writer.Update(doc.ID(), doc)
}

// Search runs a match query over the message text, restricted to a single
// conversation. Results are ranked by relevance.
func (s *MessageIndex) Search(ctx context.Context, conversation domain.ConversationID, query string, limit int) ([]Hit, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField("text")).
		AddMust(bluge.NewTermQuery(string(conversation)).SetField("conversation"))

	request := bluge.NewTopNSearch(limit, q).SortBy([]string{"-_score"})

	start := time.Now()
	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	match, err := iterator.Next()
	for err == nil && match != nil {
		hit := Hit{Score: match.Score}
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "text":
				hit.Text = string(value)
			case "conversation":
				hit.Conversation = domain.ConversationID(value)
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		hits = append(hits, hit)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}

	s.log.Debug("Search executed",
		"conversation", conversation,
		"hits", len(hits),
		"latency_us", time.Since(start).Microseconds())
	return hits, nil
}
