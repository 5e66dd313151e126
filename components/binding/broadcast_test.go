package binding

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastHookDeliversToSubscribers(t *testing.T) {
	hook := NewBroadcastHook()
	first, cancelFirst := hook.Subscribe()
	defer cancelFirst()
	second, cancelSecond := hook.Subscribe()
	defer cancelSecond()

	require.NoError(t, hook.WidgetUpdated(context.Background(), BindingEvent{WidgetID: "w1", Reason: "bind"}))

	assert.Equal(t, "w1", (<-first).WidgetID)
	assert.Equal(t, "bind", (<-second).Reason)
}

func TestBroadcastHookDropsForFullSubscribers(t *testing.T) {
	hook := NewBroadcastHook()
	_, cancel := hook.Subscribe()
	defer cancel()

	for range broadcastBuffer + 3 {
		require.NoError(t, hook.WidgetUpdated(context.Background(), BindingEvent{WidgetID: "w1"}))
	}
	assert.Equal(t, 3, hook.Dropped())
}

func TestBroadcastHookCancelClosesChannel(t *testing.T) {
	hook := NewBroadcastHook()
	ch, cancel := hook.Subscribe()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.NotPanics(t, cancel)
	assert.NoError(t, hook.WidgetUpdated(context.Background(), BindingEvent{}))
}

type failingHook struct{ err error }

func (h failingHook) WidgetUpdated(context.Context, BindingEvent) error { return h.err }

func TestMultiRefreshHookNotifiesAll(t *testing.T) {
	boom := errors.New("boom")
	rec := &recordingHook{}
	multi := MultiRefreshHook{failingHook{err: boom}, nil, rec}

	err := multi.WidgetUpdated(context.Background(), BindingEvent{WidgetID: "w1", Reason: "rebind"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"rebind"}, rec.Reasons("w1"))
}

func TestBroadcastHookServeSSE(t *testing.T) {
	hook := NewBroadcastHook()
	server := httptest.NewServer(http.HandlerFunc(hook.ServeSSE))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// the handler subscribes before flushing headers
	require.NoError(t, hook.WidgetUpdated(ctx, BindingEvent{WidgetID: "w1", Reason: "status"}))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: status\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "data: {"))
	assert.Contains(t, line, `"w1"`)
}

func TestBroadcastHookServeWebSocket(t *testing.T) {
	hook := NewBroadcastHook()
	server := httptest.NewServer(http.HandlerFunc(hook.ServeWebSocket))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// subscription happens after the upgrade completes
	require.Eventually(t, func() bool {
		hook.mu.RLock()
		defer hook.mu.RUnlock()
		return len(hook.subs) == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, hook.WidgetUpdated(context.Background(), BindingEvent{WidgetID: "w9", Reason: "bind"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event map[string]any
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "w9", event["widget_id"])
	assert.Equal(t, "bind", event["reason"])
}
