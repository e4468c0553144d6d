package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mcdev12/lomba/go/internal/chat"
	"github.com/mcdev12/lomba/go/internal/game"
	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/mcdev12/lomba/go/internal/session"
	"github.com/rs/zerolog/log"
)

const chatSendTimeout = 5 * time.Second

// Player binds one connection to its own session orchestrator
type Player struct {
	conn *Connection
	orch *session.Orchestrator
	chat *chat.Client
}

// handleMessage decodes and applies one client message
func (p *Player) handleMessage(_ *Connection, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		p.sendError(ErrorCodeBadMessage, "message is not valid JSON")
		return
	}

	switch env.Type {
	case MessageSelectGame:
		var payload SelectGamePayload
		if err := decodePayload(env.Data, &payload); err != nil {
			p.sendError(ErrorCodeBadMessage, err.Error())
			return
		}
		kind, err := models.ParseGameKind(payload.Kind)
		if err != nil {
			p.sendError(ErrorCodeInvalid, err.Error())
			return
		}
		if err := p.orch.SelectGame(kind); err != nil {
			p.sendOrchestratorError(err)
		}

	case MessageReplay:
		if err := p.orch.Replay(); err != nil {
			p.sendOrchestratorError(err)
		}

	case MessageInput:
		var in game.Input
		if err := decodePayload(env.Data, &in); err != nil {
			p.sendError(ErrorCodeBadMessage, err.Error())
			return
		}
		p.orch.Input(in)

	case MessageChat:
		var payload ChatPayload
		if err := decodePayload(env.Data, &payload); err != nil {
			p.sendError(ErrorCodeBadMessage, err.Error())
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), chatSendTimeout)
		defer cancel()
		if _, err := p.chat.Send(ctx, p.conn.Participant.Nickname, payload.Text); err != nil {
			if models.IsValidation(err) {
				p.sendError(ErrorCodeInvalid, err.Error())
				return
			}
			log.Error().Err(err).Str("connection_id", p.conn.ID).Msg("failed to send chat message")
			p.sendError(ErrorCodeUnavailable, "chat is unavailable")
		}

	default:
		p.sendError(ErrorCodeBadMessage, "unknown message type "+string(env.Type))
	}
}

func (p *Player) onUpdate(snap session.Snapshot) {
	// frames are superseded by the next one, so a full buffer just skips this one
	p.conn.Send(MessageGameState, snap)
}

func (p *Player) onResult(result game.Result) {
	if !p.conn.Send(MessageGameOver, result) {
		log.Warn().Str("connection_id", p.conn.ID).Msg("could not deliver game over")
	}
}

func (p *Player) onClose(*Connection) {
	p.orch.Close()
}

func (p *Player) sendOrchestratorError(err error) {
	switch {
	case errors.Is(err, session.ErrGameInProgress):
		p.sendError(ErrorCodeGameInProgress, err.Error())
	case models.IsValidation(err):
		p.sendError(ErrorCodeInvalid, err.Error())
	default:
		p.sendError(ErrorCodeUnavailable, err.Error())
	}
}

func (p *Player) sendError(code, message string) {
	p.conn.Send(MessageError, ErrorPayload{Code: code, Message: message})
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing data")
	}
	return json.Unmarshal(raw, v)
}
