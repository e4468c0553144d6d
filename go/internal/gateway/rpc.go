package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/mcdev12/lomba/go/internal/chat"
	"github.com/mcdev12/lomba/go/internal/identity"
	"github.com/mcdev12/lomba/go/internal/leaderboard"
	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ArcadeServiceName is the fully-qualified name of the arcade RPC service
const ArcadeServiceName = "lomba.arcade.v1.ArcadeService"

const (
	SignInAnonymouslyProcedure = "/" + ArcadeServiceName + "/SignInAnonymously"
	TopScoresProcedure         = "/" + ArcadeServiceName + "/TopScores"
	ChatHistoryProcedure       = "/" + ArcadeServiceName + "/ChatHistory"
	SendChatProcedure          = "/" + ArcadeServiceName + "/SendChat"
)

type SignInAnonymouslyRequest struct {
	Nickname string `json:"nickname"`
}

type SignInAnonymouslyResponse struct {
	Token         string    `json:"token"`
	ParticipantID string    `json:"participant_id"`
	Nickname      string    `json:"nickname"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type TopScoresRequest struct{}

type TopScoresResponse struct {
	Scores []models.ScoreRecord `json:"scores"`
}

type ChatHistoryRequest struct{}

type ChatHistoryResponse struct {
	Messages []models.ChatMessage `json:"messages"`
}

type SendChatRequest struct {
	Sender string `json:"sender,omitempty"`
	Text   string `json:"text"`
}

type SendChatResponse struct {
	Message models.ChatMessage `json:"message"`
}

// ArcadeService implements the arcade RPCs for clients that do not hold a
// WebSocket open
type ArcadeService struct {
	identity    *identity.Provider
	leaderboard *leaderboard.Client
	chat        *chat.Client
}

// NewArcadeService creates the RPC implementation
func NewArcadeService(id *identity.Provider, lb *leaderboard.Client, ch *chat.Client) *ArcadeService {
	return &ArcadeService{identity: id, leaderboard: lb, chat: ch}
}

func (s *ArcadeService) SignInAnonymously(ctx context.Context, req *connect.Request[SignInAnonymouslyRequest]) (*connect.Response[SignInAnonymouslyResponse], error) {
	tok, err := s.identity.SignInAnonymously(req.Msg.Nickname)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SignInAnonymouslyResponse{
		Token:         tok.Value,
		ParticipantID: tok.Participant.ID,
		Nickname:      tok.Participant.Nickname,
		ExpiresAt:     tok.ExpiresAt,
	}), nil
}

func (s *ArcadeService) TopScores(ctx context.Context, _ *connect.Request[TopScoresRequest]) (*connect.Response[TopScoresResponse], error) {
	scores, err := s.leaderboard.Top(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	if scores == nil {
		scores = []models.ScoreRecord{}
	}
	return connect.NewResponse(&TopScoresResponse{Scores: scores}), nil
}

func (s *ArcadeService) ChatHistory(ctx context.Context, _ *connect.Request[ChatHistoryRequest]) (*connect.Response[ChatHistoryResponse], error) {
	msgs, err := s.chat.History(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	return connect.NewResponse(&ChatHistoryResponse{Messages: msgs}), nil
}

// SendChat posts as the bearer token's participant when one verifies,
// otherwise as the sender named in the request
func (s *ArcadeService) SendChat(ctx context.Context, req *connect.Request[SendChatRequest]) (*connect.Response[SendChatResponse], error) {
	sender := req.Msg.Sender
	if token := bearerToken(req.Header().Get("Authorization")); token != "" && s.identity != nil {
		if participant, err := s.identity.Verify(token); err == nil {
			sender = participant.Nickname
		} else {
			log.Warn().Err(err).Msg("ignoring invalid bearer token")
		}
	}

	msg, err := s.chat.Send(ctx, sender, req.Msg.Text)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SendChatResponse{Message: msg}), nil
}

// NewArcadeServiceHandler builds an HTTP handler serving every arcade
// procedure. It returns the path to mount it on.
func NewArcadeServiceHandler(svc *ArcadeService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	signIn := connect.NewUnaryHandler(SignInAnonymouslyProcedure, svc.SignInAnonymously, opts...)
	topScores := connect.NewUnaryHandler(TopScoresProcedure, svc.TopScores, opts...)
	chatHistory := connect.NewUnaryHandler(ChatHistoryProcedure, svc.ChatHistory, opts...)
	sendChat := connect.NewUnaryHandler(SendChatProcedure, svc.SendChat, opts...)

	return "/" + ArcadeServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SignInAnonymouslyProcedure:
			signIn.ServeHTTP(w, r)
		case TopScoresProcedure:
			topScores.ServeHTTP(w, r)
		case ChatHistoryProcedure:
			chatHistory.ServeHTTP(w, r)
		case SendChatProcedure:
			sendChat.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

func toConnectError(err error) error {
	switch {
	case models.IsValidation(err):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case models.IsTransport(err):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
