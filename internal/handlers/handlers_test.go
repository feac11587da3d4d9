package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mdsync-backend/internal/events"
	"mdsync-backend/internal/handlers"
	"mdsync-backend/internal/middleware"
	"mdsync-backend/internal/models"
	"mdsync-backend/internal/repository/memory"
	"mdsync-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	t *testing.T
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.NewStore(memory.New())
	broker := events.NewLocalBroker()

	userService := services.NewUserService(store.Users, "test-secret", time.Hour)
	pairingService := services.NewPairingService(store.Users, broker)
	moodService := services.NewMoodService(store.Users, store.Moods, pairingService, broker)
	reactionService := services.NewReactionService(store.Reactions, broker)
	chatService := services.NewChatService(store.Chats, userService, broker, nil)
	pushService := services.NewPushService(userService, nil)
	hub := services.NewWSHub()

	router := handlers.NewRouter(handlers.Routes{
		Auth:      middleware.AuthMiddleware(userService),
		Users:     handlers.NewUserHandler(userService),
		Pairing:   handlers.NewPairHandler(pairingService),
		Mood:      handlers.NewMoodHandler(moodService),
		Reactions: handlers.NewReactionHandler(reactionService, pairingService, userService, pushService),
		Chat:      handlers.NewChatHandler(chatService, pairingService, userService, pushService),
		WebSocket: handlers.NewWebSocketHandler(hub, userService, pairingService, moodService, reactionService, chatService),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
		broker.Close()
	})
	return &testServer{Server: srv, t: t}
}

// do sends a JSON request and decodes a JSON response into out when given
func (s *testServer) do(method, path, token string, body interface{}, out interface{}) int {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) createUser(name string) services.Session {
	s.t.Helper()
	var session services.Session
	status := s.do(http.MethodPost, "/api/v1/users", "", map[string]string{"name": name}, &session)
	require.Equal(s.t, http.StatusCreated, status)
	return session
}

func (s *testServer) pairUsers(a, b services.Session) {
	s.t.Helper()
	status := s.do(http.MethodPost, "/api/v1/pairing", a.Token, map[string]string{"partner_id": b.User.ID}, nil)
	require.Equal(s.t, http.StatusOK, status)
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	var errResp handlers.ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, srv.do(http.MethodGet, "/api/v1/me", "", nil, &errResp))
	assert.Equal(t, http.StatusUnauthorized, srv.do(http.MethodGet, "/api/v1/me", "garbage", nil, &errResp))

	var health map[string]string
	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/health", "", nil, &health))
	assert.Equal(t, "ok", health["status"])
}

func TestPairingFlow(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.createUser("Alice")
	bob := srv.createUser("Bob")
	carol := srv.createUser("Carol")

	var me models.User
	require.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/me", alice.Token, nil, &me))
	assert.Equal(t, "Alice", me.Name)

	var errResp handlers.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, srv.do(http.MethodPost, "/api/v1/pairing", alice.Token, map[string]string{"partner_id": alice.User.ID}, &errResp))
	assert.Equal(t, "self_pairing", errResp.Code)

	assert.Equal(t, http.StatusNotFound, srv.do(http.MethodPost, "/api/v1/pairing", alice.Token, map[string]string{"partner_id": "nobody"}, &errResp))
	assert.Equal(t, "candidate_not_found", errResp.Code)

	var status models.PairingStatus
	require.Equal(t, http.StatusOK, srv.do(http.MethodPost, "/api/v1/pairing", alice.Token, map[string]string{"partner_id": bob.User.ID}, &status))
	require.True(t, status.IsPaired())
	assert.Equal(t, "Bob", status.PartnerName)
	assert.Equal(t, models.PairID(alice.User.ID, bob.User.ID), status.PairID)

	assert.Equal(t, http.StatusConflict, srv.do(http.MethodPost, "/api/v1/pairing", carol.Token, map[string]string{"partner_id": bob.User.ID}, &errResp))
	assert.Equal(t, "candidate_already_paired", errResp.Code)

	require.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/pairing", bob.Token, nil, &status))
	assert.Equal(t, alice.User.ID, *status.PairedWith)

	assert.Equal(t, http.StatusNoContent, srv.do(http.MethodDelete, "/api/v1/pairing", bob.Token, nil, nil))
	require.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/pairing", alice.Token, nil, &status))
	assert.False(t, status.IsPaired())

	assert.Equal(t, http.StatusConflict, srv.do(http.MethodDelete, "/api/v1/pairing", bob.Token, nil, &errResp))
	assert.Equal(t, "not_paired", errResp.Code)
}

func TestMoodAndReactions(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.createUser("Alice")
	bob := srv.createUser("Bob")

	var errResp handlers.ErrorResponse
	assert.Equal(t, http.StatusConflict, srv.do(http.MethodPost, "/api/v1/reactions", alice.Token, map[string]string{"emoji": "❤️"}, &errResp))
	srv.pairUsers(alice, bob)

	var mood models.Mood
	require.Equal(t, http.StatusOK, srv.do(http.MethodPut, "/api/v1/mood", alice.Token, map[string]string{"emoji": "😊"}, &mood))
	assert.Equal(t, "😊", mood.Emoji)

	assert.Equal(t, http.StatusBadRequest, srv.do(http.MethodPut, "/api/v1/mood", alice.Token, map[string]string{"emoji": ""}, &errResp))
	assert.Equal(t, "empty_emoji", errResp.Code)

	var history []models.MoodHistoryEntry
	require.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/mood/history?limit=5", alice.Token, nil, &history))
	assert.Len(t, history, 1)
	assert.Equal(t, http.StatusBadRequest, srv.do(http.MethodGet, "/api/v1/mood/history?limit=x", alice.Token, nil, &errResp))

	var partner models.PartnerMood
	require.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/partner/mood", bob.Token, nil, &partner))
	assert.True(t, partner.HasPartner)
	require.NotNil(t, partner.Mood)
	assert.Equal(t, "😊", partner.Mood.Emoji)

	assert.Equal(t, http.StatusNoContent, srv.do(http.MethodGet, "/api/v1/reactions/latest", bob.Token, nil, nil))

	var reaction models.Reaction
	require.Equal(t, http.StatusCreated, srv.do(http.MethodPost, "/api/v1/reactions", alice.Token, map[string]string{"emoji": "❤️"}, &reaction))
	assert.Equal(t, bob.User.ID, reaction.ToUserID)

	var latest models.Reaction
	require.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/reactions/latest", bob.Token, nil, &latest))
	assert.Equal(t, reaction.ID, latest.ID)
	assert.Equal(t, "Alice", latest.FromName)
}

func TestChatFlow(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.createUser("Alice")
	bob := srv.createUser("Bob")

	var errResp handlers.ErrorResponse
	assert.Equal(t, http.StatusConflict, srv.do(http.MethodGet, "/api/v1/chat", alice.Token, nil, &errResp))
	srv.pairUsers(alice, bob)

	var overview handlers.ChatOverview
	require.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/chat", alice.Token, nil, &overview))
	assert.Equal(t, models.ChatStateDisabled, overview.State)

	assert.Equal(t, http.StatusConflict, srv.do(http.MethodPost, "/api/v1/chat/messages", alice.Token, map[string]string{"text": "hi"}, &errResp))
	assert.Equal(t, "chat_not_enabled", errResp.Code)

	require.Equal(t, http.StatusNoContent, srv.do(http.MethodPost, "/api/v1/chat/enable", bob.Token, nil, nil))

	var apology models.ChatMessage
	require.Equal(t, http.StatusCreated, srv.do(http.MethodPost, "/api/v1/chat/quick", alice.Token, map[string]string{"type": "apology"}, &apology))
	assert.Equal(t, "🙏", *apology.Emoji)
	assert.Equal(t, "Alice", apology.FromName)

	require.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/chat", bob.Token, nil, &overview))
	assert.True(t, overview.Unread)
	require.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/chat", alice.Token, nil, &overview))
	assert.False(t, overview.Unread, "own messages are never unread")

	var replied models.ChatMessage
	replyPath := "/api/v1/chat/messages/" + apology.ID + "/reply"
	require.Equal(t, http.StatusOK, srv.do(http.MethodPost, replyPath, bob.Token, map[string]string{"status": "accepted"}, &replied))
	assert.Equal(t, models.ReplyAccepted, *replied.ReplyStatus)

	assert.Equal(t, http.StatusConflict, srv.do(http.MethodPost, replyPath, bob.Token, map[string]string{"status": "deferred"}, &errResp))
	assert.Equal(t, "already_replied", errResp.Code)

	var star handlers.StarRequest
	require.Equal(t, http.StatusOK, srv.do(http.MethodPost, "/api/v1/chat/messages/"+apology.ID+"/star", bob.Token, map[string]bool{"is_starred": false}, &star))
	assert.True(t, star.IsStarred)

	var messages []models.ChatMessage
	require.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/chat/messages", bob.Token, nil, &messages))
	require.Len(t, messages, 1)
	assert.True(t, messages[0].Starred())

	require.Equal(t, http.StatusNoContent, srv.do(http.MethodPost, "/api/v1/chat/read", bob.Token, nil, nil))
	require.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/chat", bob.Token, nil, &overview))
	assert.False(t, overview.Unread)

	var cleanup map[string]int
	require.Equal(t, http.StatusOK, srv.do(http.MethodPost, "/api/v1/chat/cleanup", bob.Token, nil, &cleanup))
	assert.Equal(t, 0, cleanup["deleted"])

	assert.Equal(t, http.StatusNotFound, srv.do(http.MethodPost, "/api/v1/chat/messages/missing/reply", bob.Token, map[string]string{"status": "accepted"}, &errResp))
}

type wsFrame struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Online  *bool           `json:"online"`
}

func dialWS(t *testing.T, srv *testServer, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType, channel string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{"type": msgType, "channel": channel}))
}

// readUntil reads frames until match accepts one
func readUntil(t *testing.T, conn *websocket.Conn, match func(wsFrame) bool) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var frame wsFrame
		require.NoError(t, conn.ReadJSON(&frame))
		if match(frame) {
			return frame
		}
	}
}

func messagesSnapshot(t *testing.T, frame wsFrame) []models.ChatMessage {
	t.Helper()
	var msgs []models.ChatMessage
	require.NoError(t, json.Unmarshal(frame.Data, &msgs))
	return msgs
}

func TestWebSocket_RejectsMissingToken(t *testing.T) {
	srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_ChannelsFollowPairing(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.createUser("Alice")
	bob := srv.createUser("Bob")

	conn := dialWS(t, srv, alice.Token)

	send(t, conn, "subscribe", handlers.ChannelMessages)
	frame := readUntil(t, conn, func(f wsFrame) bool { return f.Channel == handlers.ChannelMessages })
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "not_paired", frame.Code)

	send(t, conn, "subscribe", handlers.ChannelPairing)
	frame = readUntil(t, conn, func(f wsFrame) bool { return f.Channel == handlers.ChannelPairing })
	assert.Equal(t, "snapshot", frame.Type)

	srv.pairUsers(bob, alice)

	frame = readUntil(t, conn, func(f wsFrame) bool {
		return f.Type == "snapshot" && f.Channel == handlers.ChannelMessages
	})
	assert.Empty(t, messagesSnapshot(t, frame), "disabled chat is empty")

	require.Equal(t, http.StatusNoContent, srv.do(http.MethodPost, "/api/v1/chat/enable", bob.Token, nil, nil))
	require.Equal(t, http.StatusCreated, srv.do(http.MethodPost, "/api/v1/chat/messages", bob.Token, map[string]string{"text": "talk?"}, nil))

	frame = readUntil(t, conn, func(f wsFrame) bool {
		return f.Type == "snapshot" && f.Channel == handlers.ChannelMessages && len(messagesSnapshot(t, f)) == 1
	})
	msgs := messagesSnapshot(t, frame)
	assert.Equal(t, "talk?", *msgs[0].Text)
	assert.Equal(t, "Bob", msgs[0].FromName)

	require.Equal(t, http.StatusNoContent, srv.do(http.MethodDelete, "/api/v1/pairing", bob.Token, nil, nil))
	frame = readUntil(t, conn, func(f wsFrame) bool {
		return f.Type == "error" && f.Channel == handlers.ChannelMessages
	})
	assert.Equal(t, "not_paired", frame.Code)
}

func TestWebSocket_ReactionChannel(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.createUser("Alice")
	bob := srv.createUser("Bob")
	srv.pairUsers(alice, bob)

	conn := dialWS(t, srv, bob.Token)
	send(t, conn, "subscribe", handlers.ChannelReaction)
	send(t, conn, "ping", "")
	readUntil(t, conn, func(f wsFrame) bool { return f.Type == "pong" })

	require.Equal(t, http.StatusCreated, srv.do(http.MethodPost, "/api/v1/reactions", alice.Token, map[string]string{"emoji": "🤗"}, nil))

	frame := readUntil(t, conn, func(f wsFrame) bool {
		return f.Type == "snapshot" && f.Channel == handlers.ChannelReaction
	})
	var reaction models.Reaction
	require.NoError(t, json.Unmarshal(frame.Data, &reaction))
	assert.Equal(t, "🤗", reaction.Emoji)
	assert.Equal(t, alice.User.ID, reaction.FromUserID)
}

func isPartnerStatus(f wsFrame) bool {
	return f.Type == "partner_status" && f.Online != nil
}

func TestWebSocket_ReconnectKeepsPartnerOnline(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.createUser("Alice")
	bob := srv.createUser("Bob")
	srv.pairUsers(alice, bob)

	bobConn := dialWS(t, srv, bob.Token)
	frame := readUntil(t, bobConn, isPartnerStatus)
	assert.False(t, *frame.Online)

	dialWS(t, srv, alice.Token)
	frame = readUntil(t, bobConn, isPartnerStatus)
	assert.True(t, *frame.Online)

	dialWS(t, srv, alice.Token)

	// Collect every status Bob sees while the replaced session winds down.
	var statuses []bool
	require.NoError(t, bobConn.SetReadDeadline(time.Now().Add(500*time.Millisecond)))
	for {
		var f wsFrame
		if err := bobConn.ReadJSON(&f); err != nil {
			break
		}
		if isPartnerStatus(f) {
			statuses = append(statuses, *f.Online)
		}
	}
	assert.Equal(t, []bool{true}, statuses)
}
