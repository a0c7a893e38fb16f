package rest

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"task-chat/auth"
	"task-chat/domain"
	"task-chat/errors"
	"task-chat/infrastructure/ws"
	"task-chat/mocks"
	"task-chat/observability"
	"task-chat/services"
)

type fixture struct {
	auth   *mocks.MockIAuthService
	chat   *mocks.MockIChatService
	server *httptest.Server
	token  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	authMock := mocks.NewMockIAuthService(ctrl)
	chatMock := mocks.NewMockIChatService(ctrl)
	handler := NewHandler(authMock, chatMock, observability.NewMonitor(log), log)

	server := httptest.NewServer(handler.Router(ws.NewServer(chatMock, log)))
	t.Cleanup(server.Close)

	token, err := auth.GenerateToken("alice-id", "Alice", []string{"user"}, time.Hour)
	require.NoError(t, err)

	return &fixture{auth: authMock, chat: chatMock, server: server, token: token}
}

func (f *fixture) request(t *testing.T, method, path string, body any, authenticated bool) *http.Response {
	t.Helper()
	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}

	request, err := http.NewRequest(method, f.server.URL+path, payload)
	require.NoError(t, err)
	if authenticated {
		request.Header.Set("Authorization", "Bearer "+f.token)
	}

	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	return response
}

func TestRegisterReturnsToken(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given a registration the auth service accepts
	f.auth.EXPECT().
		Register("alice@example.com", "Str0ng&LongPassword", "Alice").
		Return(services.Token("jwt-token"), nil)

	// When registering
	response := f.request(t, http.MethodPost, "/auth/register", credentialsRequest{
		Email:       "alice@example.com",
		Password:    "Str0ng&LongPassword",
		DisplayName: "Alice",
	}, false)
	defer func() { _ = response.Body.Close() }()

	// Then the token is returned with 201
	req.Equal(http.StatusCreated, response.StatusCode)
	var body tokenResponse
	req.NoError(json.NewDecoder(response.Body).Decode(&body))
	req.Equal("jwt-token", body.Token)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given credentials the auth service rejects
	f.auth.EXPECT().
		Login("alice@example.com", "wrong").
		Return(services.Token(""), errors.ErrInvalidCredentials)

	// When logging in
	response := f.request(t, http.MethodPost, "/auth/login", credentialsRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	}, false)
	defer func() { _ = response.Body.Close() }()

	// Then the surface answers 401 without detail
	req.Equal(http.StatusUnauthorized, response.StatusCode)
}

func TestConversationRoutesRequireToken(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// When listing conversations without a token
	response := f.request(t, http.MethodGet, "/conversations", nil, false)
	defer func() { _ = response.Body.Close() }()

	// Then the authenticator rejects the request
	req.Equal(http.StatusUnauthorized, response.StatusCode)
}

func TestAppendMessageReturnsAuthoritativeRecord(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	stored := domain.Message{
		ID:        "srv-1",
		TempID:    "tmp-1",
		SenderID:  "alice-id",
		Text:      "Can you start Monday?",
		Status:    domain.StatusSent,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	// Given the pipeline persists the message
	f.chat.EXPECT().
		Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, cmd domain.SendMessageCommand) (domain.Message, error) {
			req.Equal(domain.ConversationID("conv-1"), cmd.ConversationID)
			req.Equal("tmp-1", cmd.TempID)
			req.Equal("alice-id", cmd.SenderID)
			return stored, nil
		})

	// When posting the message
	response := f.request(t, http.MethodPost, "/conversations/conv-1/messages", sendMessageRequest{
		TempID: "tmp-1",
		Text:   "Can you start Monday?",
	}, true)
	defer func() { _ = response.Body.Close() }()

	// Then the authoritative record comes back with 201
	req.Equal(http.StatusCreated, response.StatusCode)
	var body domain.Message
	req.NoError(json.NewDecoder(response.Body).Decode(&body))
	req.Equal("srv-1", body.ID)
	req.Equal("tmp-1", body.TempID)
	req.Equal(domain.StatusSent, body.Status)
}

func TestAppendMessageValidatesPayload(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// When posting an empty text
	response := f.request(t, http.MethodPost, "/conversations/conv-1/messages", sendMessageRequest{
		TempID: "tmp-1",
		Text:   "",
	}, true)
	defer func() { _ = response.Body.Close() }()

	// Then validation rejects it before the pipeline is involved
	req.Equal(http.StatusUnprocessableEntity, response.StatusCode)
}

func TestGetConversationForbiddenForOutsider(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given the caller is not a participant
	f.chat.EXPECT().
		GetConversation(domain.ConversationID("conv-1"), "alice-id").
		Return(nil, errors.ErrNotParticipant)

	// When fetching the snapshot
	response := f.request(t, http.MethodGet, "/conversations/conv-1", nil, true)
	defer func() { _ = response.Body.Close() }()

	// Then the surface answers 403
	req.Equal(http.StatusForbidden, response.StatusCode)
}

func TestMarkReadAcceptsBatch(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given the receipt batch reaches the service
	f.chat.EXPECT().MarkRead(domain.MarkReadCommand{
		ConversationID: "conv-1",
		ReaderID:       "alice-id",
		MessageIDs:     []string{"srv-1", "srv-2"},
	}).Return(nil)

	// When posting the receipts
	response := f.request(t, http.MethodPost, "/conversations/conv-1/read", markReadRequest{
		MessageIDs: []string{"srv-1", "srv-2"},
	}, true)
	defer func() { _ = response.Body.Close() }()

	// Then the receipt is accepted asynchronously
	req.Equal(http.StatusAccepted, response.StatusCode)
}

func TestSearchRequiresQuery(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// When searching without q
	response := f.request(t, http.MethodGet, "/conversations/conv-1/search", nil, true)
	defer func() { _ = response.Body.Close() }()

	// Then the request is rejected
	req.Equal(http.StatusUnprocessableEntity, response.StatusCode)
}
