package debugserver

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestShouldBroadcast_SkipsRepeatedFrame(t *testing.T) {
	s := New()

	if !s.shouldBroadcast([]byte("frame-1")) {
		t.Fatal("first frame should always broadcast")
	}
	if s.shouldBroadcast([]byte("frame-1")) {
		t.Fatal("identical frame should be deduped")
	}
	if !s.shouldBroadcast([]byte("frame-2")) {
		t.Fatal("changed frame should broadcast")
	}
}

func TestServeHTTP_BroadcastsToConnectedClient(t *testing.T) {
	s := New()
	ts := httptest.NewServer(s)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// give ServeHTTP's goroutine a moment to register the client before
	// broadcasting, matching the teacher's hub registration pattern.
	time.Sleep(10 * time.Millisecond)

	s.broadcast([]byte(`{"pc":256}`))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(msg) != `{"pc":256}` {
		t.Fatalf("ReadMessage = %q, want the broadcast frame", msg)
	}
}

func TestServeHTTP_DropsClientThatNeverReads(t *testing.T) {
	s := New()
	ts := httptest.NewServer(s)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	time.Sleep(10 * time.Millisecond)

	// the client never calls ReadMessage on its end of the connection,
	// so its outgoing channel (capacity 16) fills; broadcast must drop
	// it rather than block the rest of the emulator's frame loop.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 32; i++ {
			s.broadcast([]byte("frame"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked instead of dropping the unread client")
	}

	s.mu.Lock()
	remaining := len(s.clients)
	s.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("clients still registered after flooding = %d, want 0", remaining)
	}
}
