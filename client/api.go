package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"chatwire/internal/models"
)

// API is the persistence/auth collaborator the store consumes. The server's
// REST surface implements it; tests substitute fakes.
type API interface {
	FetchChats(ctx context.Context) ([]models.Chat, error)
	FetchMessages(ctx context.Context, chatID string) ([]models.Message, error)
	AccessChat(ctx context.Context, userID string) (*models.Chat, error)
	SendMessage(ctx context.Context, chatID, content string) (*models.Message, error)
	EditMessage(ctx context.Context, messageID, content string) (*models.Message, error)
	DeleteMessage(ctx context.Context, messageID string) (*models.Message, error)
}

// RESTClient talks to the chatwire REST API with a bearer token.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewRESTClient(baseURL, token string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{},
	}
}

func (c *RESTClient) FetchChats(ctx context.Context) ([]models.Chat, error) {
	var chats []models.Chat
	err := c.do(ctx, http.MethodGet, "/api/chat", nil, &chats)
	return chats, err
}

func (c *RESTClient) FetchMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	var messages []models.Message
	err := c.do(ctx, http.MethodGet, "/api/message/"+chatID, nil, &messages)
	return messages, err
}

func (c *RESTClient) AccessChat(ctx context.Context, userID string) (*models.Chat, error) {
	chat := &models.Chat{}
	err := c.do(ctx, http.MethodPost, "/api/chat", models.AccessChatRequest{UserID: userID}, chat)
	return chat, err
}

func (c *RESTClient) SendMessage(ctx context.Context, chatID, content string) (*models.Message, error) {
	msg := &models.Message{}
	err := c.do(ctx, http.MethodPost, "/api/message", models.SendMessageRequest{ChatID: chatID, Content: content}, msg)
	return msg, err
}

func (c *RESTClient) EditMessage(ctx context.Context, messageID, content string) (*models.Message, error) {
	msg := &models.Message{}
	err := c.do(ctx, http.MethodPut, "/api/message/"+messageID, models.EditMessageRequest{Content: content}, msg)
	return msg, err
}

func (c *RESTClient) DeleteMessage(ctx context.Context, messageID string) (*models.Message, error) {
	msg := &models.Message{}
	err := c.do(ctx, http.MethodDelete, "/api/message/"+messageID, nil, msg)
	return msg, err
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(data))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
