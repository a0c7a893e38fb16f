package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"task-chat/contract"
	"task-chat/domain"
	"task-chat/errors"
)

var _ contract.ConversationStore = (*Client)(nil)

// Client is the session-side conversation store, talking to the REST
// surface. Every call carries the participant's bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchConversation loads the snapshot a session opens with: metadata plus
// the full history in display order.
func (c *Client) FetchConversation(ctx context.Context, id domain.ConversationID, callerID string) (*domain.Conversation, error) {
	var response conversationResponse
	err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/conversations/%s", id), nil, http.StatusOK, &response)
	if err != nil {
		return nil, err
	}

	conversation := domain.NewConversation(response.ID, response.Participants, response.Task)
	if !conversation.HasParticipant(callerID) {
		return nil, errors.ErrNotParticipant
	}
	for _, message := range response.Messages {
		conversation.Append(message)
	}
	return conversation, nil
}

// AppendMessage persists a message and returns the authoritative record with
// the echoed temp id.
func (c *Client) AppendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	var stored domain.Message
	err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/conversations/%s/messages", cmd.ConversationID),
		sendMessageRequest{TempID: cmd.TempID, Text: cmd.Text},
		http.StatusCreated, &stored)
	return stored, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	request.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != want {
		return statusToError(response)
	}
	return json.NewDecoder(response.Body).Decode(out)
}

// statusToError maps the surface's statuses back onto the domain errors the
// session reacts to.
func statusToError(response *http.Response) error {
	switch response.StatusCode {
	case http.StatusForbidden:
		return errors.ErrNotParticipant
	case http.StatusNotFound:
		return errors.ErrConversationUnknown
	default:
		raw, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", response.StatusCode, bytes.TrimSpace(raw))
	}
}
