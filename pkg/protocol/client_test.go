// ABOUTME: Tests for the relay WebSocket client
// ABOUTME: Runs the handshake and message routing against an httptest server
package protocol

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeRelay answers the handshake and then runs script against the connection
func fakeRelay(t *testing.T, reject bool, script func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != Path {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var msg Message
		if err := conn.ReadJSON(&msg); err != nil || msg.Type != TypeClientHello {
			return
		}
		var hello ClientHello
		if err := DecodePayload(msg.Payload, &hello); err != nil {
			return
		}

		if reject {
			conn.WriteJSON(Message{Type: TypeServerError, Payload: ServerError{Error: "duplicate_client_id", Message: "Client ID already connected"}})
			return
		}
		conn.WriteJSON(Message{Type: TypeServerHello, Payload: ServerHello{
			ServerID:    "srv",
			Name:        "room",
			Version:     Version,
			Participant: Participant{ID: hello.ClientID, Name: hello.Name, Color: hello.Color},
		}})
		script(conn)
	}))
}

func addrOf(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestClientHandshakeAndRouting(t *testing.T) {
	gotTime := make(chan ClientTime, 1)
	srv := fakeRelay(t, false, func(conn *websocket.Conn) {
		conn.WriteJSON(Message{Type: TypeParticipantJoin, Payload: Participant{ID: "p2", Name: "bob", Color: "#00ff00"}})
		conn.WriteJSON(Message{Type: TypeServerNotes, Payload: NoteBatch{Participant: "p2", Time: 42, Notes: []Note{{Note: "c4", Velocity: 0.7}}}})
		conn.WriteJSON(Message{Type: TypeParticipantLeft, Payload: ParticipantLeft{ID: "p2"}})

		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		var ct ClientTime
		if DecodePayload(msg.Payload, &ct) == nil {
			gotTime <- ct
		}
		conn.WriteJSON(Message{Type: TypeServerTime, Payload: ServerTime{ClientTransmitted: ct.ClientTransmitted, ServerReceived: 5, ServerTransmitted: 6}})
		time.Sleep(100 * time.Millisecond)
	})
	defer srv.Close()

	c := NewClient(Config{ServerAddr: addrOf(srv), ClientID: "p1", Name: "alice", Color: "#ff0000"})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	if h := c.Hello(); h.Participant.ID != "p1" || h.Participant.Color != "#ff0000" {
		t.Errorf("unexpected hello: %+v", h)
	}

	select {
	case p := <-c.Joins:
		if p.ID != "p2" || p.Color != "#00ff00" {
			t.Errorf("unexpected join: %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for join")
	}

	select {
	case b := <-c.Notes:
		if b.Participant != "p2" || b.Time != 42 || len(b.Notes) != 1 || b.Notes[0].Note != "c4" {
			t.Errorf("unexpected batch: %+v", b)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notes")
	}

	select {
	case id := <-c.Leaves:
		if id != "p2" {
			t.Errorf("expected p2 to leave, got %s", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for leave")
	}

	if err := c.SendTimeSync(1234); err != nil {
		t.Fatalf("SendTimeSync: %v", err)
	}
	select {
	case ct := <-gotTime:
		if ct.ClientTransmitted != 1234 {
			t.Errorf("expected t1 1234, got %d", ct.ClientTransmitted)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw client/time")
	}
	select {
	case st := <-c.TimeSyncResp:
		if st.ClientTransmitted != 1234 || st.ServerTransmitted != 6 {
			t.Errorf("unexpected server time: %+v", st)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server/time")
	}
}

func TestClientRejected(t *testing.T) {
	srv := fakeRelay(t, true, nil)
	defer srv.Close()

	c := NewClient(Config{ServerAddr: addrOf(srv), ClientID: "p1", Name: "alice"})
	err := c.Connect(context.Background())
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if !strings.Contains(err.Error(), "already connected") {
		t.Errorf("expected rejection message, got %v", err)
	}
	if c.IsConnected() {
		t.Error("client should not be connected after rejection")
	}
}

func TestSendAfterClose(t *testing.T) {
	c := NewClient(Config{ServerAddr: "127.0.0.1:1"})
	if err := c.SendNotes(NoteBatch{}); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestClientDoneOnServerClose(t *testing.T) {
	srv := fakeRelay(t, false, func(conn *websocket.Conn) {})
	defer srv.Close()

	c := NewClient(Config{ServerAddr: addrOf(srv), ClientID: "p1", Name: "alice"})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not notice the server closing")
	}
	if c.IsConnected() {
		t.Error("expected disconnected client")
	}
}

func TestHandleUnknownMessage(t *testing.T) {
	c := NewClient(Config{})
	data, _ := json.Marshal(Message{Type: "nope", Payload: nil})
	c.handleJSONMessage(data)
	c.handleJSONMessage([]byte("{not json"))
	if len(c.Notes) != 0 || len(c.Joins) != 0 {
		t.Error("unknown messages should not be routed")
	}
}
