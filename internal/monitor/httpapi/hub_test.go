package httpapi

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub.clients == nil {
		t.Error("clients map should be initialized")
	}
	if hub.register == nil {
		t.Error("register channel should be initialized")
	}
	if hub.unregister == nil {
		t.Error("unregister channel should be initialized")
	}
	if hub.broadcast == nil {
		t.Error("broadcast channel should be initialized")
	}
}

func TestHubClientCount(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients initially, got %d", hub.ClientCount())
	}

	client1 := &Client{hub: hub, send: make(chan []byte, WebSocketBufferSize)}
	client2 := &Client{hub: hub, send: make(chan []byte, WebSocketBufferSize)}

	hub.Register(client1)
	time.Sleep(10 * time.Millisecond)
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client after first register, got %d", hub.ClientCount())
	}

	hub.Register(client2)
	time.Sleep(10 * time.Millisecond)
	if hub.ClientCount() != 2 {
		t.Errorf("expected 2 clients after second register, got %d", hub.ClientCount())
	}

	hub.Unregister(client1)
	time.Sleep(10 * time.Millisecond)
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client after unregister, got %d", hub.ClientCount())
	}
}

func TestHubBroadcastJSON(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{hub: hub, send: make(chan []byte, WebSocketBufferSize)}
	hub.Register(client)
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastJSON(map[string]string{"type": "snapshot"})

	select {
	case received := <-client.send:
		var decoded map[string]string
		if err := json.Unmarshal(received, &decoded); err != nil {
			t.Fatalf("decode broadcast: %v", err)
		}
		if decoded["type"] != "snapshot" {
			t.Errorf("got %q, want %q", decoded["type"], "snapshot")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("did not receive broadcast message")
	}
}

func TestHubBroadcastToEmptyHub(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	hub.BroadcastJSON(map[string]string{"test": "empty"})
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestHubUnregisterNonexistent(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{hub: hub, send: make(chan []byte, WebSocketBufferSize)}
	hub.Unregister(client) // must not panic even though never registered
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestClientSendJSON(t *testing.T) {
	client := &Client{send: make(chan []byte, 1)}
	client.SendJSON(map[string]int{"n": 1})

	select {
	case data := <-client.send:
		var decoded map[string]int
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if decoded["n"] != 1 {
			t.Errorf("got %d, want 1", decoded["n"])
		}
	default:
		t.Error("SendJSON did not queue a message")
	}
}
