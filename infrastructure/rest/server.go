// Package rest is the HTTP surface: authentication, conversation management,
// synchronous message appends, history snapshots and search.
package rest

import (
	"encoding/json"
	goerrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"task-chat/auth"
	"task-chat/domain"
	"task-chat/errors"
	"task-chat/infrastructure/ws"
	"task-chat/observability"
	"task-chat/services"
)

const defaultSearchLimit = 20

// Handler wires the application services to the chi router.
type Handler struct {
	authService services.IAuthService
	chatService services.IChatService
	monitor     *observability.Monitor
	log         *slog.Logger
}

func NewHandler(authService services.IAuthService, chatService services.IChatService,
	monitor *observability.Monitor, log *slog.Logger) *Handler {
	return &Handler{
		authService: authService,
		chatService: chatService,
		monitor:     monitor,
		log:         log,
	}
}

// Router mounts every route. Login and register live outside the
// authenticator; everything conversation-scoped requires a valid token.
func (h *Handler) Router(realtime *ws.Server) *chi.Mux {
	r := chi.NewRouter()

	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticator)

		r.Get("/conversations", h.listConversations)
		r.Post("/conversations", h.createConversation)
		r.Get("/conversations/{id}", h.getConversation)
		r.Post("/conversations/{id}/messages", h.appendMessage)
		r.Post("/conversations/{id}/read", h.markRead)
		r.Get("/conversations/{id}/search", h.search)
		r.Get("/conversations/{id}/ws", realtime.ServeWS)

		r.Get("/debug/stats", h.stats)
	})

	return r
}

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, err := h.authService.Register(req.Email, req.Password, req.DisplayName)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, tokenResponse{Token: string(token)})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, tokenResponse{Token: string(token)})
}

type createConversationRequest struct {
	Peer domain.Identity `json:"peer"`
	Task *domain.TaskRef `json:"task,omitempty"`
}

type conversationResponse struct {
	ID           domain.ConversationID `json:"id"`
	Participants [2]domain.Identity    `json:"participants"`
	Task         *domain.TaskRef       `json:"task,omitempty"`
	Messages     []domain.Message      `json:"messages,omitempty"`
}

func (h *Handler) createConversation(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	displayName, _ := auth.DisplayNameFromContext(r.Context())

	var req createConversationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Peer.ID == "" || req.Peer.ID == userID {
		http.Error(w, "peer must be another participant", http.StatusUnprocessableEntity)
		return
	}

	self := domain.Identity{ID: userID, DisplayName: displayName}
	disk, err := h.chatService.EnsureConversation(self, req.Peer, req.Task)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, conversationResponse{
		ID:           disk.ID,
		Participants: disk.Participants,
		Task:         disk.Task,
	})
}

func (h *Handler) listConversations(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	disks, err := h.chatService.ListConversations(userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	out := make([]conversationResponse, 0, len(disks))
	for _, disk := range disks {
		out = append(out, conversationResponse{
			ID:           disk.ID,
			Participants: disk.Participants,
			Task:         disk.Task,
		})
	}
	h.respond(w, http.StatusOK, out)
}

// getConversation returns the snapshot a session opens with: metadata plus
// the full history in display order.
func (h *Handler) getConversation(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := domain.ConversationID(chi.URLParam(r, "id"))

	conversation, err := h.chatService.GetConversation(id, userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, conversationResponse{
		ID:           conversation.ID,
		Participants: conversation.Participants,
		Task:         conversation.Task,
		Messages:     conversation.Messages(),
	})
}

type sendMessageRequest struct {
	TempID string `json:"temp_id"`
	Text   string `json:"text"`
}

// appendMessage persists a message through the full pipeline and returns the
// authoritative record. The caller's optimistic copy reconciles against the
// echoed temp id.
func (h *Handler) appendMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := domain.ConversationID(chi.URLParam(r, "id"))

	var req sendMessageRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := auth.ValidateSend(auth.SendRequest{TempID: req.TempID, Text: req.Text}); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	stored, err := h.chatService.Append(r.Context(), domain.SendMessageCommand{
		ConversationID: id,
		TempID:         req.TempID,
		SenderID:       userID,
		Text:           req.Text,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, stored)
}

type markReadRequest struct {
	MessageIDs []string `json:"message_ids"`
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := domain.ConversationID(chi.URLParam(r, "id"))

	var req markReadRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.MessageIDs) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if err := h.chatService.MarkRead(domain.MarkReadCommand{
		ConversationID: id,
		ReaderID:       userID,
		MessageIDs:     req.MessageIDs,
	}); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := domain.ConversationID(chi.URLParam(r, "id"))

	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "missing query parameter q", http.StatusUnprocessableEntity)
		return
	}
	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusUnprocessableEntity)
			return
		}
		limit = parsed
	}

	hits, err := h.chatService.Search(r.Context(), id, userID, query, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, hits)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, h.monitor.GetLatest())
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "error", err)
	}
}

// respondError maps domain errors onto HTTP statuses without leaking
// internals to the client.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case goerrors.Is(err, errors.ErrNotParticipant):
		http.Error(w, err.Error(), http.StatusForbidden)
	case goerrors.Is(err, errors.ErrConversationUnknown):
		http.Error(w, err.Error(), http.StatusNotFound)
	case goerrors.Is(err, errors.ErrUserAlreadyExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case goerrors.Is(err, errors.ErrInvalidCredentials):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case goerrors.Is(err, errors.ErrInvalidPassword):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.log.Error("Request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
