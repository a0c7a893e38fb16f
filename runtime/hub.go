package runtime

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"task-chat/contract"
	"task-chat/domain"
	"task-chat/domain/event"
	"task-chat/moderation"
	"task-chat/observability"
	"task-chat/repositories"
	"task-chat/runtime/workers"
)

//go:embed blocked/*
var blockedFolder embed.FS

// Hub owns the server-side pipeline for all conversations:
// commands -> moderation -> store -> fanout. One instance per node.
type Hub struct {
	mu              sync.Mutex
	log             *slog.Logger
	numWorkers      int
	permanentSinks  []contract.EventSink
	supervisor      contract.ISupervisor
	registry        contract.IRegistry
	commands        chan domain.Command
	rawEvents       chan event.DomainEvent
	sanitized       chan event.DomainEvent
	domainEvents    chan event.DomainEvent
	telemetryEvents chan event.DomainEvent
	monitor         *observability.Monitor
	messages        repositories.IMessageRepository
	conversations   repositories.IConversationRepository
	sinkTimeout     time.Duration
	charReplacement rune
}

func NewHub(log *slog.Logger, supervisor *workers.Supervisor,
	registry *Registry, messages repositories.IMessageRepository,
	conversations repositories.IConversationRepository,
	monitor *observability.Monitor,
	numWorkers, bufferSize int, sinkTimeout time.Duration, charReplacement rune) *Hub {
	return &Hub{
		log:             log,
		numWorkers:      numWorkers,
		permanentSinks:  nil,
		supervisor:      supervisor,
		registry:        registry,
		commands:        make(chan domain.Command, bufferSize),
		rawEvents:       make(chan event.DomainEvent, bufferSize),
		sanitized:       make(chan event.DomainEvent, bufferSize),
		domainEvents:    make(chan event.DomainEvent, bufferSize),
		telemetryEvents: make(chan event.DomainEvent, bufferSize),
		monitor:         monitor,
		messages:        messages,
		conversations:   conversations,
		sinkTimeout:     sinkTimeout,
		charReplacement: charReplacement,
	}
}

// Add registers permanent sinks (projections, search indexing) that receive
// every event regardless of who is connected.
func (h *Hub) Add(sinks ...contract.EventSink) {
	h.permanentSinks = append(h.permanentSinks, sinks...)
}

// Dispatch hands a command to the pipeline without blocking the caller.
// Backpressure shows up as dropped commands in the logs, never as a stalled
// connection handler.
func (h *Hub) Dispatch(cmd domain.Command) {
	select {
	case h.commands <- cmd:
	default:
		h.log.Warn(fmt.Sprintf("Command channel full for conversation %s, dropping command", cmd.Conversation()))
	}
}

// Append pushes a posted message through the full pipeline (moderation,
// persistence) and waits for the authoritative record. Unlike Dispatch it
// blocks the caller, so connection handlers that must return the stored
// message synchronously use this path. The same single writer persists the
// message, only the waiting differs.
func (h *Hub) Append(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	reply := make(chan event.AppendResult, 1)
	posted := event.MessagePosted{
		Conversation: cmd.ConversationID,
		Message: domain.Message{
			TempID:    cmd.TempID,
			SenderID:  cmd.SenderID,
			Text:      cmd.Text,
			Status:    domain.StatusPending,
			CreatedAt: cmd.CreatedAt,
		},
		Reply: reply,
	}

	select {
	case h.rawEvents <- posted:
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	}

	select {
	case res := <-reply:
		return res.Message, res.Err
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	}
}

// GetMessages returns one page of history, newest first, plus the cursor for
// the next page.
func (h *Hub) GetMessages(conversation domain.ConversationID, cursor *string) ([]domain.Message, *string, error) {
	messages, next, err := h.messages.GetMessages(conversation, cursor)
	return fromDiskMessages(messages), next, err
}

func fromDiskMessages(messages []repositories.DiskMessage) []domain.Message {
	return lo.Map(messages, func(item repositories.DiskMessage, _ int) domain.Message {
		return domain.Message{
			ID:        item.ID,
			TempID:    item.TempID,
			SenderID:  item.Sender,
			Text:      item.Text,
			Status:    item.Status,
			CreatedAt: item.At,
		}
	})
}

// EnsureConversation resolves (or creates) the thread between two identities
// for a task context.
func (h *Hub) EnsureConversation(a, b domain.Identity, task *domain.TaskRef) (repositories.DiskConversation, error) {
	return h.conversations.Ensure(a, b, task)
}

// GetConversation loads conversation metadata by id.
func (h *Hub) GetConversation(id domain.ConversationID) (repositories.DiskConversation, error) {
	return h.conversations.Get(id)
}

// ListConversations returns every thread the participant takes part in.
func (h *Hub) ListConversations(participantID string) ([]repositories.DiskConversation, error) {
	return h.conversations.ListForParticipant(participantID)
}

// RegisterParticipant attaches a connected participant to a conversation.
func (h *Hub) RegisterParticipant(pID string, id domain.ConversationID, sink contract.EventSink) {
	h.registry.Subscribe(pID, id, sink)
}

// UnregisterParticipant disconnects a participant.
func (h *Hub) UnregisterParticipant(pID string, id domain.ConversationID) {
	h.registry.Unsubscribe(pID, id)
}

// Start initiates the hub by preparing all components (workers, moderation,
// pipeline) and then starting the supervisor. It uses a preparation pattern
// to minimize mutex locking time.
func (h *Hub) Start(ctx context.Context) error {
	// 1. Preparation phase (No Lock)
	// Heavy tasks like I/O (loading files) and CPU (Aho-Corasick build) are done here.
	poolWorkers := h.preparePoolWorkers(h.rawEvents)

	moderationWorker, err := h.prepareModeration(h.rawEvents, h.sanitized)
	if err != nil {
		return err
	}

	storeWorker := workers.NewStoreWorker(h.messages, h.sanitized, h.domainEvents, h.log)

	// 2. Critical Section (Short Lock)
	// We only lock to read the sinks and update the supervisor.
	h.mu.Lock()
	fanoutWorker := workers.NewEventFanout(
		h.log, h.permanentSinks, h.registry, h.domainEvents, h.telemetryEvents, h.sinkTimeout)

	h.supervisor.Add(moderationWorker, storeWorker, fanoutWorker)
	h.supervisor.Add(poolWorkers...)
	h.supervisor.Add(
		workers.NewTelemetryWorker(h.log, h.telemetryEvents, h.monitor),
		workers.NewChannelCapacityWorker(h.log, []workers.NamedChannel{
			{Name: "commands", Channel: h.commands},
			{Name: "raw_events", Channel: h.rawEvents},
			{Name: "sanitized", Channel: h.sanitized},
			{Name: "domain_events", Channel: h.domainEvents},
		}, h.monitor, 1*time.Second),
	)
	h.mu.Unlock()

	// 3. Execution phase (No Lock)
	h.log.Info("Starting hub and all supervised workers")
	h.supervisor.Run(ctx)
	return nil
}

// preparePoolWorkers creates the basic worker pool for command intake.
func (h *Hub) preparePoolWorkers(rawEvents chan event.DomainEvent) []contract.Worker {
	var res []contract.Worker
	for i := 0; i < h.numWorkers; i++ {
		res = append(res, workers.NewCommandWorker(h.commands, rawEvents, h.log))
	}
	return res
}

// prepareModeration loads blocked terms and builds the Aho-Corasick automaton.
func (h *Hub) prepareModeration(rawEvents, sanitized chan event.DomainEvent) (contract.Worker, error) {
	loader := NewBlockedTermsLoader(blockedFolder)
	data, err := loader.LoadAll("blocked")
	if err != nil {
		return nil, err
	}

	h.log.Info(fmt.Sprintf("%d blocked term files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	h.log.Info(fmt.Sprintf("%d unique blocked terms loaded", len(data.Terms)))

	moderator, err := moderation.NewModerator(data.Terms, h.charReplacement, h.log)
	if err != nil {
		return nil, err
	}

	return workers.NewModerationWorker(moderator, rawEvents, sanitized, h.log), nil
}

// Stop initiates a graceful shutdown of the hub. It cancels the supervision
// context to signal workers to stop.
func (h *Hub) Stop() {
	h.log.Info("Requesting hub shutdown")
	h.supervisor.Stop()
}
