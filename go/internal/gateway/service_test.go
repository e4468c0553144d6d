package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/lomba/go/internal/chat"
	"github.com/mcdev12/lomba/go/internal/game"
	"github.com/mcdev12/lomba/go/internal/identity"
	"github.com/mcdev12/lomba/go/internal/leaderboard"
	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/mcdev12/lomba/go/internal/session"
	"github.com/mcdev12/lomba/go/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testArcade struct {
	server   *httptest.Server
	service  *Service
	identity *identity.Provider
	chat     *chat.Client
	lb       *leaderboard.Client
}

func newTestArcade(t *testing.T) *testArcade {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	backend := memstore.New(nil)
	lb := leaderboard.NewClient(backend)
	ch := chat.NewClient(backend)

	idp, err := identity.NewProvider(identity.Config{Secret: []byte("test-secret"), TTL: time.Hour}, nil)
	require.NoError(t, err)

	recorder := session.NewRecorder(lb, session.DefaultRecorderConfig())
	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		recorder.Run(ctx)
	}()

	svc := NewService(DefaultConfig(), Dependencies{
		Leaderboard: lb,
		Chat:        ch,
		Identity:    idp,
		Scores:      recorder,
		Clock:       clockwork.NewRealClock(),
	})

	started := make(chan struct{})
	serviceDone := make(chan struct{})
	go func() {
		defer close(serviceDone)
		close(started)
		_ = svc.Start(ctx)
	}()
	<-started

	router := mux.NewRouter()
	svc.RegisterRoutes(router)
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		server.Close()
		cancel()
		<-serviceDone
		<-recorderDone
	})

	return &testArcade{server: server, service: svc, identity: idp, chat: ch, lb: lb}
}

func (a *testArcade) dial(t *testing.T, query url.Values) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws/arcade?" + query.Encode()
	ws, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, typ MessageType, data any) {
	t.Helper()
	env := Envelope{Type: typ}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		env.Data = raw
	}
	require.NoError(t, ws.WriteJSON(env))
}

// readUntil reads until a message of typ arrives for which match returns true
func readUntil(t *testing.T, ws *websocket.Conn, typ MessageType, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(10*time.Second)))
	for {
		var env Envelope
		require.NoError(t, ws.ReadJSON(&env), "waiting for %s", typ)
		if env.Type == typ && (match == nil || match(env.Data)) {
			return env.Data
		}
	}
}

func TestQuizGameOverReachesLeaderboard(t *testing.T) {
	arcade := newTestArcade(t)
	ws := arcade.dial(t, url.Values{"nickname": {"  Budi  "}})

	var welcome session.Snapshot
	require.NoError(t, json.Unmarshal(readUntil(t, ws, MessageWelcome, nil), &welcome))
	assert.Equal(t, "Budi", welcome.Participant.Nickname)
	assert.Equal(t, models.DefaultGameKind, welcome.Kind)
	assert.Nil(t, welcome.Game, "no game runs until one is selected")

	send(t, ws, MessageSelectGame, SelectGamePayload{Kind: "quiz"})
	readUntil(t, ws, MessageGameState, func(raw json.RawMessage) bool {
		var snap session.Snapshot
		return json.Unmarshal(raw, &snap) == nil && snap.Game != nil && snap.Kind == models.TimedMultipleChoice
	})

	for _, q := range game.DefaultQuestions() {
		send(t, ws, MessageInput, game.Input{Action: game.ActionChoose, Option: q.Answer})
	}

	var result game.Result
	require.NoError(t, json.Unmarshal(readUntil(t, ws, MessageGameOver, nil), &result))
	assert.Equal(t, models.TimedMultipleChoice, result.Kind)
	assert.Equal(t, len(game.DefaultQuestions())*game.CorrectAnswerPoints, result.Score)

	raw := readUntil(t, ws, MessageLeaderboard, func(raw json.RawMessage) bool {
		var recs []models.ScoreRecord
		return json.Unmarshal(raw, &recs) == nil && len(recs) == 1
	})
	var recs []models.ScoreRecord
	require.NoError(t, json.Unmarshal(raw, &recs))
	assert.Equal(t, "Budi", recs[0].Participant)
	assert.Equal(t, result.Score, recs[0].Score)
}

func TestJoinDuringLeaderboardUpdatesSeesLatest(t *testing.T) {
	arcade := newTestArcade(t)
	ctx := context.Background()

	const total = 10
	appended := make(chan error, 1)
	go func() {
		for i := range total {
			err := arcade.lb.Append(ctx, models.ScoreRecord{
				Participant: fmt.Sprintf("pemain-%d", i),
				Score:       i,
				GameKind:    models.ContinuousAvoidance,
			})
			if err != nil {
				appended <- err
				return
			}
			time.Sleep(time.Millisecond)
		}
		appended <- nil
	}()

	var clients []*websocket.Conn
	for i := range 3 {
		clients = append(clients, arcade.dial(t, url.Values{"nickname": {fmt.Sprintf("Tamu%d", i)}}))
	}
	require.NoError(t, <-appended)

	for _, ws := range clients {
		raw := readUntil(t, ws, MessageLeaderboard, func(raw json.RawMessage) bool {
			var recs []models.ScoreRecord
			return json.Unmarshal(raw, &recs) == nil && len(recs) == total
		})
		var recs []models.ScoreRecord
		require.NoError(t, json.Unmarshal(raw, &recs))
		assert.Equal(t, total-1, recs[0].Score)
	}
}

func TestSwitchWhileRunningIsRejected(t *testing.T) {
	arcade := newTestArcade(t)
	ws := arcade.dial(t, url.Values{"nickname": {"Citra"}})
	readUntil(t, ws, MessageWelcome, nil)

	send(t, ws, MessageSelectGame, SelectGamePayload{Kind: "emoji"})
	send(t, ws, MessageSelectGame, SelectGamePayload{Kind: "quiz"})

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(readUntil(t, ws, MessageError, nil), &payload))
	assert.Equal(t, ErrorCodeGameInProgress, payload.Code)
}

func TestBadMessagesGetErrors(t *testing.T) {
	arcade := newTestArcade(t)
	ws := arcade.dial(t, url.Values{"nickname": {"Dewi"}})
	readUntil(t, ws, MessageWelcome, nil)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(readUntil(t, ws, MessageError, nil), &payload))
	assert.Equal(t, ErrorCodeBadMessage, payload.Code)

	send(t, ws, MessageSelectGame, SelectGamePayload{Kind: "catur"})
	require.NoError(t, json.Unmarshal(readUntil(t, ws, MessageError, nil), &payload))
	assert.Equal(t, ErrorCodeInvalid, payload.Code)

	send(t, ws, MessageChat, ChatPayload{Text: "   "})
	require.NoError(t, json.Unmarshal(readUntil(t, ws, MessageError, nil), &payload))
	assert.Equal(t, ErrorCodeInvalid, payload.Code)
}

func TestChatIsBroadcast(t *testing.T) {
	arcade := newTestArcade(t)
	ani := arcade.dial(t, url.Values{"nickname": {"Ani"}})
	eka := arcade.dial(t, url.Values{"nickname": {"Eka"}})
	readUntil(t, ani, MessageWelcome, nil)
	readUntil(t, eka, MessageWelcome, nil)

	send(t, ani, MessageChat, ChatPayload{Text: "Merdeka!"})

	raw := readUntil(t, eka, MessageChatHistory, func(raw json.RawMessage) bool {
		var msgs []models.ChatMessage
		return json.Unmarshal(raw, &msgs) == nil && len(msgs) == 1
	})
	var msgs []models.ChatMessage
	require.NoError(t, json.Unmarshal(raw, &msgs))
	assert.Equal(t, "Ani", msgs[0].Sender)
	assert.Equal(t, "Merdeka!", msgs[0].Text)
}

func TestTokenWinsOverNickname(t *testing.T) {
	arcade := newTestArcade(t)
	tok, err := arcade.identity.SignInAnonymously("Fajar")
	require.NoError(t, err)

	ws := arcade.dial(t, url.Values{"nickname": {"someone else"}, "token": {tok.Value}})
	var welcome session.Snapshot
	require.NoError(t, json.Unmarshal(readUntil(t, ws, MessageWelcome, nil), &welcome))
	assert.Equal(t, "Fajar", welcome.Participant.Nickname)
	assert.Equal(t, tok.Participant.ID, welcome.Participant.ID)
}

func TestBlankNicknameIsRejected(t *testing.T) {
	arcade := newTestArcade(t)

	u := "ws" + strings.TrimPrefix(arcade.server.URL, "http") + "/ws/arcade?nickname=%20%20"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConnectionStats(t *testing.T) {
	arcade := newTestArcade(t)
	ws := arcade.dial(t, url.Values{"nickname": {"Gita"}})
	readUntil(t, ws, MessageWelcome, nil)

	send(t, ws, MessageSelectGame, SelectGamePayload{Kind: "emoji"})
	readUntil(t, ws, MessageGameState, nil)

	resp, err := http.Get(arcade.server.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats ConnectionStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.ActiveGames)
	assert.Equal(t, 1, stats.GamesByKind["emoji"])
}

func newRPCClient[Req, Res any](arcade *testArcade, procedure string) *connect.Client[Req, Res] {
	return connect.NewClient[Req, Res](
		arcade.server.Client(),
		arcade.server.URL+procedure,
		connect.WithCodec(JSONCodec{}),
	)
}

func TestRPCChatRoundTrip(t *testing.T) {
	arcade := newTestArcade(t)
	ctx := context.Background()

	signIn := newRPCClient[SignInAnonymouslyRequest, SignInAnonymouslyResponse](arcade, SignInAnonymouslyProcedure)
	sendChat := newRPCClient[SendChatRequest, SendChatResponse](arcade, SendChatProcedure)
	history := newRPCClient[ChatHistoryRequest, ChatHistoryResponse](arcade, ChatHistoryProcedure)

	signed, err := signIn.CallUnary(ctx, connect.NewRequest(&SignInAnonymouslyRequest{Nickname: "Hana"}))
	require.NoError(t, err)
	assert.Equal(t, "Hana", signed.Msg.Nickname)
	assert.NotEmpty(t, signed.Msg.Token)

	req := connect.NewRequest(&SendChatRequest{Sender: "impostor", Text: "  selamat  "})
	req.Header().Set("Authorization", "Bearer "+signed.Msg.Token)
	sent, err := sendChat.CallUnary(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "Hana", sent.Msg.Message.Sender)
	assert.Equal(t, "selamat", sent.Msg.Message.Text)

	_, err = sendChat.CallUnary(ctx, connect.NewRequest(&SendChatRequest{Text: ""}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	got, err := history.CallUnary(ctx, connect.NewRequest(&ChatHistoryRequest{}))
	require.NoError(t, err)
	require.Len(t, got.Msg.Messages, 1)
	assert.Equal(t, "Hana", got.Msg.Messages[0].Sender)
}

func TestRPCTopScores(t *testing.T) {
	arcade := newTestArcade(t)
	ctx := context.Background()

	require.NoError(t, arcade.lb.Append(ctx, models.ScoreRecord{Participant: "Ani", Score: 30, GameKind: models.TimedTypingMatch}))
	require.NoError(t, arcade.lb.Append(ctx, models.ScoreRecord{Participant: "Budi", Score: 50, GameKind: models.TimedMultipleChoice}))

	top := newRPCClient[TopScoresRequest, TopScoresResponse](arcade, TopScoresProcedure)
	resp, err := top.CallUnary(ctx, connect.NewRequest(&TopScoresRequest{}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Scores, 2)
	assert.Equal(t, "Budi", resp.Msg.Scores[0].Participant)

	signIn := newRPCClient[SignInAnonymouslyRequest, SignInAnonymouslyResponse](arcade, SignInAnonymouslyProcedure)
	_, err = signIn.CallUnary(ctx, connect.NewRequest(&SignInAnonymouslyRequest{Nickname: " "}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}
