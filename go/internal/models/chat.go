package models

import (
	"time"

	"github.com/google/uuid"
)

// AnonymousSender is used when a chat message arrives without a sender
const AnonymousSender = "Anonymous"

// ChatMessage is one line of the global chat
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
