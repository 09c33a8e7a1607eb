package broadcast

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcast(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The subscription is registered asynchronously by the server handler.
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	sent := Event{
		Type:       TypeWorkflowStatus,
		WorkflowID: "wf-1",
		Status:     "running",
		Results:    map[string]string{"n1": "hello"},
	}
	require.NoError(t, hub.Broadcast(ctx, sent))

	_, payload, err := conn.Read(ctx)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, sent.Type, got.Type)
	assert.Equal(t, sent.WorkflowID, got.WorkflowID)
	assert.Equal(t, sent.Results, got.Results)
}

func TestHubDropsClosedSubscriber(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))

	// The first write after the close fails and the subscriber is removed.
	require.Eventually(t, func() bool {
		_ = hub.Broadcast(ctx, Event{Type: TypeWorkflowStatus})
		return hub.Len() == 0
	}, 2*time.Second, 50*time.Millisecond)
}

func TestFuncAdapter(t *testing.T) {
	t.Parallel()

	var got Event
	b := Func(func(_ context.Context, ev Event) error {
		got = ev
		return nil
	})
	require.NoError(t, b.Broadcast(context.Background(), Event{NodeID: "n1", Chunk: "tok"}))
	assert.Equal(t, "n1", got.NodeID)
	assert.Equal(t, "tok", got.Chunk)

	require.NoError(t, Nop.Broadcast(context.Background(), Event{}))
}
