// Package chat is the client for the global chat stream
package chat

import (
	"context"
	"strings"

	"github.com/mcdev12/lomba/go/internal/livequery"
	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/mcdev12/lomba/go/internal/store"
)

// Client sends and reads chat messages
type Client struct {
	backend store.Backend
}

// NewClient returns a chat client over backend
func NewClient(backend store.Backend) *Client {
	return &Client{backend: backend}
}

// Send posts text as sender. Text is trimmed and must not be empty; a blank
// sender posts as models.AnonymousSender.
func (c *Client) Send(ctx context.Context, sender, text string) (models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.ChatMessage{}, models.ErrEmptyMessage
	}
	sender = strings.TrimSpace(sender)
	if sender == "" {
		sender = models.AnonymousSender
	}

	msg := models.ChatMessage{Sender: sender, Text: text}
	if err := c.Append(ctx, &msg); err != nil {
		return models.ChatMessage{}, err
	}
	return msg, nil
}

// Append writes msg as is; Send is the validating entry point
func (c *Client) Append(ctx context.Context, msg *models.ChatMessage) error {
	if err := c.backend.AppendChat(ctx, msg); err != nil {
		return &models.TransportError{Op: "append chat message", Err: err}
	}
	return nil
}

// History returns every message, oldest first
func (c *Client) History(ctx context.Context) ([]models.ChatMessage, error) {
	msgs, err := c.backend.ListChat(ctx)
	if err != nil {
		return nil, &models.TransportError{Op: "list chat", Err: err}
	}
	return msgs, nil
}

// SubscribeLive calls fn with the full history now and after every change
func (c *Client) SubscribeLive(ctx context.Context, fn func([]models.ChatMessage)) (*livequery.Subscription, error) {
	return livequery.Subscribe(ctx, c.backend, store.TopicChat, c.backend.ListChat, fn)
}
