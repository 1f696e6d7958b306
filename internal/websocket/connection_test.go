package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newSocketPair dials a test server and returns the client-side socket
// plus a channel of raw messages the server receives on it.
func newSocketPair(t *testing.T) (*websocket.Conn, <-chan []byte) {
	t.Helper()
	received := make(chan []byte, 16)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- data
		}
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn, received
}

func TestConnection_WriteJSONDelivers(t *testing.T) {
	wsConn, received := newSocketPair(t)
	conn := NewConnection(wsConn, 16, time.Second)
	defer func() { _ = conn.Close() }()

	if err := conn.WriteJSON(map[string]string{"event": "Ping"}); err != nil {
		t.Fatalf("WriteJSON() error: %v", err)
	}

	select {
	case data := <-received:
		var msg map[string]string
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("peer received invalid JSON: %v", err)
		}
		if msg["event"] != "Ping" {
			t.Errorf("peer received %v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("peer never received the message")
	}
}

func TestConnection_WriteJSONInvalidData(t *testing.T) {
	wsConn, _ := newSocketPair(t)
	conn := NewConnection(wsConn, 16, time.Second)
	defer func() { _ = conn.Close() }()

	err := conn.WriteJSON(map[string]interface{}{"fn": func() {}})
	if !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("error = %v, want ErrInvalidJSON", err)
	}
}

func TestConnection_CloseIdempotent(t *testing.T) {
	wsConn, _ := newSocketPair(t)
	conn := NewConnection(wsConn, 16, time.Second)

	if err := conn.Close(); err != nil {
		t.Errorf("first Close() error: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("third Close() error: %v", err)
	}
}

func TestConnection_WriteJSONAfterClose(t *testing.T) {
	wsConn, _ := newSocketPair(t)
	conn := NewConnection(wsConn, 16, time.Second)

	_ = conn.Close()
	time.Sleep(10 * time.Millisecond)

	if err := conn.WriteJSON(map[string]string{"event": "Ping"}); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("error = %v, want ErrConnectionClosed", err)
	}
}

func TestConnection_WriteTimeoutWhenPumpStalls(t *testing.T) {
	wsConn, _ := newSocketPair(t)
	conn := NewConnection(wsConn, 1, 50*time.Millisecond)
	defer func() { _ = conn.Close() }()

	// Kill the socket out from under the writer goroutine. Once the pump
	// exits, queued writes stop draining; callers must get the timeout
	// instead of blocking on the full buffer.
	_ = wsConn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		start := time.Now()
		err := conn.WriteJSON(map[string]string{"event": "Ping"})
		if errors.Is(err, ErrWriteTimeout) {
			if took := time.Since(start); took > time.Second {
				t.Fatalf("timed-out write blocked for %v", took)
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("writes kept succeeding after the socket died")
		}
	}
}

func TestConnection_ConcurrentWrites(t *testing.T) {
	wsConn, _ := newSocketPair(t)
	conn := NewConnection(wsConn, 100, time.Second)
	defer func() { _ = conn.Close() }()

	const workers = 10
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = conn.WriteJSON(map[string]int{"worker": n, "message": j})
			}
		}(i)
	}
	wg.Wait()
}
