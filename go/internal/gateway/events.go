package gateway

import (
	"encoding/json"
	"fmt"
)

// MessageType names a WebSocket message in either direction
type MessageType string

// Client to server
const (
	MessageSelectGame MessageType = "select_game"
	MessageReplay     MessageType = "replay"
	MessageInput      MessageType = "input"
	MessageChat       MessageType = "chat"
)

// Server to client
const (
	MessageWelcome     MessageType = "welcome"
	MessageGameState   MessageType = "game_state"
	MessageGameOver    MessageType = "game_over"
	MessageError       MessageType = "error"
	MessageLeaderboard MessageType = "leaderboard"
	MessageChatHistory MessageType = "chat_history"
)

// Envelope wraps every WebSocket message
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SelectGamePayload asks to switch game kind
type SelectGamePayload struct {
	Kind string `json:"kind"`
}

// ChatPayload posts a chat line as the connection's participant
type ChatPayload struct {
	Text string `json:"text"`
}

// ErrorPayload reports a rejected client message
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes sent in ErrorPayload
const (
	ErrorCodeBadMessage     = "bad_message"
	ErrorCodeInvalid        = "invalid"
	ErrorCodeGameInProgress = "game_in_progress"
	ErrorCodeUnavailable    = "unavailable"
)

func encodeMessage(t MessageType, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	out, err := json.Marshal(Envelope{Type: t, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", t, err)
	}
	return out, nil
}
