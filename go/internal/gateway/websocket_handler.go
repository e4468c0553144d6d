package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/rs/zerolog/log"
)

// HandleArcadeConnection upgrades a player's connection. The participant
// comes from the token when it verifies, otherwise from the nickname.
func (s *Service) HandleArcadeConnection(w http.ResponseWriter, r *http.Request) {
	participant, ok := s.resolveParticipant(r)
	if !ok {
		http.Error(w, "nickname is required", http.StatusBadRequest)
		return
	}

	conn, err := s.connectionManager.Upgrade(w, r, participant)
	if err != nil {
		// the upgrader has already written the HTTP error
		log.Error().
			Err(err).
			Str("nickname", participant.Nickname).
			Msg("failed to upgrade WebSocket connection")
		return
	}

	if err := s.join(conn); err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to start player")
		conn.Conn.Close()
	}
}

func (s *Service) resolveParticipant(r *http.Request) (models.Participant, bool) {
	nickname := strings.TrimSpace(r.URL.Query().Get("nickname"))

	if token := r.URL.Query().Get("token"); token != "" && s.identity != nil {
		participant, err := s.identity.Verify(token)
		if err == nil {
			return participant, true
		}
		log.Warn().Err(err).Str("nickname", nickname).Msg("ignoring invalid participant token")
	}

	participant, err := models.NewParticipant("", nickname)
	if err != nil {
		return models.Participant{}, false
	}
	return participant, true
}

// HandleConnectionStats returns statistics about active connections
func (s *Service) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.GetStats()); err != nil {
		log.Error().Err(err).Msg("failed to write connection stats")
	}
}
