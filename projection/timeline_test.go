package projection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"task-chat/domain"
	"task-chat/domain/event"
)

func TestTimeline_Preview_Follows_Stream(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	ctx := context.Background()
	at := time.Now().UTC()

	// Given two stored messages
	req.NoError(timeline.Consume(ctx, event.MessageStored{
		Conversation: "conv-1",
		Message:      domain.Message{ID: "m1", SenderID: "alice", Text: "hello", Status: domain.StatusSent, CreatedAt: at},
	}))
	req.NoError(timeline.Consume(ctx, event.MessageStored{
		Conversation: "conv-1",
		Message:      domain.Message{ID: "m2", SenderID: "bob", Text: "hi", Status: domain.StatusSent, CreatedAt: at.Add(time.Second)},
	}))

	preview, ok := timeline.GetPreview("conv-1")
	req.True(ok)
	req.Equal("m2", preview.LastMessage.ID)
	req.Equal(2, preview.Unread)

	// When one message is read, twice (replay)
	read := event.StatusUpdated{Conversation: "conv-1", MessageID: "m2", Status: domain.StatusRead}
	req.NoError(timeline.Consume(ctx, read))
	req.NoError(timeline.Consume(ctx, read))

	// Then the unread count decrements once and the preview status follows
	preview, _ = timeline.GetPreview("conv-1")
	req.Equal(1, preview.Unread)
	req.Equal(domain.StatusRead, preview.LastMessage.Status)
}

func TestTimeline_Delivered_Does_Not_Change_Unread(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	ctx := context.Background()

	req.NoError(timeline.Consume(ctx, event.MessageStored{
		Conversation: "conv-1",
		Message:      domain.Message{ID: "m1", SenderID: "alice", Text: "hello", Status: domain.StatusSent, CreatedAt: time.Now().UTC()},
	}))
	req.NoError(timeline.Consume(ctx, event.StatusUpdated{
		Conversation: "conv-1", MessageID: "m1", Status: domain.StatusDelivered,
	}))

	preview, _ := timeline.GetPreview("conv-1")
	req.Equal(1, preview.Unread)
}

func TestTimeline_Unknown_Conversation(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()

	_, ok := timeline.GetPreview("ghost")
	req.False(ok)
}
