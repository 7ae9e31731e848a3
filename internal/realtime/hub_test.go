package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/events"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/models"
)

type received struct {
	Type MessageType        `json:"type"`
	Data models.Transaction `json:"data"`
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-hub.done
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// The greeting is written only after registration completes.
	msg := read(t, conn)
	require.Equal(t, MessageConnected, msg.Type)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func scored(user string, c models.Classification) models.Transaction {
	return models.Transaction{
		ID:          "txn-" + user,
		UserID:      user,
		Amount:      10,
		FraudStatus: &models.FraudAssessment{Score: 55, Classification: c},
	}
}

func TestHub_PingPong(t *testing.T) {
	_, srv := startHub(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))

	assert.Equal(t, MessagePong, read(t, conn).Type)
}

func TestHub_BroadcastsToAllClients(t *testing.T) {
	hub, srv := startHub(t)
	a := dial(t, srv)
	b := dial(t, srv)

	hub.BroadcastTransaction(scored("user-1", models.ClassificationSafe))

	for _, conn := range []*websocket.Conn{a, b} {
		msg := read(t, conn)
		assert.Equal(t, MessageNewTransaction, msg.Type)
		assert.Equal(t, "user-1", msg.Data.UserID)
	}
	assert.Equal(t, 2, hub.Stats().ConnectedClients)
}

func TestHub_FraudAlertSkipsSafe(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)

	hub.BroadcastFraudAlert(scored("user-1", models.ClassificationSafe))
	hub.BroadcastFraudAlert(scored("user-2", models.ClassificationSuspicious))

	msg := read(t, conn)
	assert.Equal(t, MessageFraudAlert, msg.Type)
	assert.Equal(t, "user-2", msg.Data.UserID)
}

func TestHub_SubscriptionFilters(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":        "subscribe",
		"event_types": []string{"fraud_alert"},
		"user_ids":    []string{"user-2"},
	}))
	require.Equal(t, MessageSubscribed, read(t, conn).Type)

	hub.BroadcastTransaction(scored("user-2", models.ClassificationFraudulent))
	hub.BroadcastFraudAlert(scored("user-1", models.ClassificationFraudulent))
	hub.BroadcastFraudAlert(scored("user-2", models.ClassificationFraudulent))

	msg := read(t, conn)
	assert.Equal(t, MessageFraudAlert, msg.Type)
	assert.Equal(t, "user-2", msg.Data.UserID)
}

func TestEventHandler(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)
	enabled := true
	handle := EventHandler(hub, func() bool { return enabled })
	ctx := context.Background()

	enabled = false
	require.NoError(t, handle(ctx, events.Event{
		Type: events.EventTransactionScored,
		Data: events.TransactionScoredData{Transaction: scored("muted", models.ClassificationSafe)},
	}))

	enabled = true
	require.NoError(t, handle(ctx, events.Event{
		Type: events.EventTransactionOverridden,
		Data: events.TransactionOverriddenData{Transaction: scored("user-3", models.ClassificationSafe)},
	}))

	msg := read(t, conn)
	assert.Equal(t, MessageTransactionUpdated, msg.Type)
	assert.Equal(t, "user-3", msg.Data.UserID)
}

func TestHub_RejectsAfterShutdown(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancel()
	<-hub.done

	w := httptest.NewRecorder()
	hub.HandleWebSocket(w, httptest.NewRequest(http.MethodGet, "/ws", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMessage_OmitsUserID(t *testing.T) {
	data, err := json.Marshal(&Message{Type: MessagePong, userID: "secret"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
}
