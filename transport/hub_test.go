package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestHubBroadcastsToSubscribedWorkflowOnly(t *testing.T) {
	hub := NewHub()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/a", func(w http.ResponseWriter, r *http.Request) {
		if err := hub.ServeWS(w, r, "wf-a"); err != nil {
			t.Errorf("ServeWS: %v", err)
		}
	})
	mux.HandleFunc("/ws/b", func(w http.ResponseWriter, r *http.Request) {
		if err := hub.ServeWS(w, r, "wf-b"); err != nil {
			t.Errorf("ServeWS: %v", err)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	connA := dial(t, server)
	defer connA.Close()
	connB := dial(t, server)
	defer connB.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount("wf-a") != 1 || hub.ClientCount("wf-b") != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("clients never registered: a=%d b=%d", hub.ClientCount("wf-a"), hub.ClientCount("wf-b"))
		}
		time.Sleep(time.Millisecond)
	}

	cb := hub.Callbacks("wf-a")
	cb.Log("node-1", "hello", "info")

	connA.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := connA.ReadMessage()
	if err != nil {
		t.Fatalf("connA read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.WorkflowID != "wf-a" || msg.Type != "log" {
		t.Errorf("unexpected message: %+v", msg)
	}

	connB.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := connB.ReadMessage(); err == nil {
		t.Error("connB should not have received wf-a's broadcast")
	}
}

func TestHubStatusAndEventCallbacks(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.ServeWS(w, r, "wf"); err != nil {
			t.Errorf("ServeWS: %v", err)
		}
	}))
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount("wf") != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(time.Millisecond)
	}

	cb := hub.Callbacks("wf")
	cb.Status("node-2", "completed", map[string]interface{}{"outputs": map[string]interface{}{"text": "hi"}})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != "status" {
		t.Errorf("msg.Type = %q, want status", msg.Type)
	}
}
