package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/liquichain/contract_layer/internal/events"
)

func dialStream(t *testing.T, env *testEnv, query string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(env.server)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events/stream" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d, want 101", resp.StatusCode)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStreamEvents_DeliversFilteredEvents(t *testing.T) {
	env := newTestEnv(t)
	conn := dialStream(t, env, "?type="+string(events.EventNoMatch))

	env.do(http.MethodPost, "/v1/dispatch", map[string]any{"transaction": map[string]any{"data": "0xa9059cbb"}})
	env.do(http.MethodPost, "/v1/dispatch", map[string]any{"transaction": map[string]any{"data": "0xffffffff"}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got events.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Type != events.EventNoMatch {
		t.Errorf("type = %q, want %q", got.Type, events.EventNoMatch)
	}
	if got.Metadata["call_data"] != "ffffffff" {
		t.Errorf("call_data = %q", got.Metadata["call_data"])
	}
}

func TestStreamEvents_UnsubscribesOnClose(t *testing.T) {
	env := newTestEnv(t)
	conn := dialStream(t, env, "")

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	// The handler goroutine exits asynchronously; publishing afterwards must
	// not block even though nobody reads the feed.
	done := make(chan struct{})
	go func() {
		for i := 0; i < streamBuffer*2; i++ {
			env.journal.Log(events.Event{Type: events.EventNoMatch})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing blocked after stream closed")
	}
}

func TestStreamEvents_RejectsPlainHTTP(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(http.MethodGet, "/v1/events/stream", nil)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.Code)
	}
}
