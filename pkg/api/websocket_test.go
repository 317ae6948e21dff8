package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serpfi/auctiond/pkg/auction"
)

func TestWebSocketServerStreamsEvents(t *testing.T) {
	n := newTestNode(t)

	ws := NewWebSocketServer(n.engine.Events(), n.server.logger)
	ws.Start()
	defer ws.Stop()

	srv := httptest.NewServer(ws)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the subscription fanout a moment to register the client.
	time.Sleep(50 * time.Millisecond)

	n.escrowAuction(t, "alice", 10, 100)
	_, err = n.engine.NewCollateralAuction("alice", "BTC", 10, 100)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "auctionEvent", msg.Type)
	assert.Equal(t, auction.EventNewCollateralAuction, msg.Event.Kind)
	assert.Equal(t, auction.Balance(10), msg.Event.Amount)
}

func TestLoopbackCancelSubmitter(t *testing.T) {
	n := newTestNode(t)
	n.escrowAuction(t, "alice", 10, 100)
	id, err := n.engine.NewCollateralAuction("alice", "BTC", 10, 100)
	require.NoError(t, err)

	submitter := NewLoopbackCancelSubmitter(n.engine, n.server.logger)
	n.engine.SetSubmitter(submitter)
	n.shutdown.Trigger()
	n.oracle.SetPrice("SETUSD", decimal.NewFromInt(1))
	n.oracle.SetPrice("BTC", decimal.NewFromInt(100))

	require.NoError(t, submitter.SubmitCancel(id))
	require.Eventually(t, func() bool {
		a, err := n.engine.Auction(id)
		return err == nil && a == nil
	}, time.Second, 10*time.Millisecond)
}
