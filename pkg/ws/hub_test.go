package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/voltledger/internal/models"
)

type rawMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startHub(t *testing.T, provider func(ctx context.Context) (*InitData, error)) (*Hub, string) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	hub.SetInitDataProvider(provider)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn)
		client.Register()
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readMessage(t *testing.T, conn *websocket.Conn) rawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg rawMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubSendsInitThenLedgerEntries(t *testing.T) {
	hub, url := startHub(t, func(ctx context.Context) (*InitData, error) {
		return &InitData{
			Recent: []*models.LedgerEntry{{TxID: "tx-0", Type: models.TxAlert, Status: models.TxConfirmed}},
			Counts: map[models.TxType]int64{models.TxAlert: 1},
		}, nil
	})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	msg := readMessage(t, conn)
	assert.Equal(t, MsgTypeInit, msg.Type)
	var init InitData
	require.NoError(t, json.Unmarshal(msg.Data, &init))
	require.Len(t, init.Recent, 1)
	assert.Equal(t, "tx-0", init.Recent[0].TxID)
	assert.EqualValues(t, 1, init.Counts[models.TxAlert])

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.PublishEntry(&models.LedgerEntry{
		TxID:    "tx-1",
		Type:    models.TxCharging,
		Status:  models.TxConfirmed,
		Payload: models.Payload{"action": "start"},
	})

	msg = readMessage(t, conn)
	assert.Equal(t, MsgTypeLedgerEntry, msg.Type)
	var entry models.LedgerEntry
	require.NoError(t, json.Unmarshal(msg.Data, &entry))
	assert.Equal(t, "tx-1", entry.TxID)
	assert.Equal(t, "start", entry.Payload["action"])
}

func TestHubInitFailureSendsError(t *testing.T) {
	_, url := startHub(t, func(ctx context.Context) (*InitData, error) {
		return nil, errors.New("db down")
	})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	msg := readMessage(t, conn)
	assert.Equal(t, MsgTypeError, msg.Type)
	assert.NotContains(t, string(msg.Data), "db down")
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub, url := startHub(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestPublishAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBuffer*2; i++ {
			hub.PublishEntry(&models.LedgerEntry{TxID: "late"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked after hub stopped")
	}
}
