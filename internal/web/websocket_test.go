package web

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsURL(ts string, token string) string {
	url := strings.Replace(ts, "http", "ws", 1) + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	return url
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	return frame
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestInvalidTokenClosedWithPolicyViolation(t *testing.T) {
	_, ts := newTestServer(t)

	conn := dial(t, wsURL(ts.URL, "bogus"))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("expected connection to be closed")
	}
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("expected policy violation close, got %v", err)
	}
}

func TestPingPong(t *testing.T) {
	srv, ts := newTestServer(t)

	conn := dial(t, wsURL(ts.URL, "tok-user"))
	waitFor(t, func() bool { return srv.reg.IsConnected("user-1") })

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	frame := readFrame(t, conn)
	if frame["type"] != "pong" {
		t.Errorf("expected pong, got %v", frame["type"])
	}
}

func TestSubscribeAndBroadcast(t *testing.T) {
	srv, ts := newTestServer(t)

	subscriber := dial(t, wsURL(ts.URL, "tok-user"))
	bystander := dial(t, wsURL(ts.URL, "tok-agent"))
	waitFor(t, func() bool {
		return srv.reg.IsConnected("user-1") && srv.reg.IsConnected("agent-1")
	})

	if err := subscriber.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe_request","request_id":"req-1"}`)); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	waitFor(t, func() bool { return len(srv.reg.Subscribers("req-1")) == 1 })

	srv.bcast.SendStatusUpdate("req-1", "accepted", "")

	frame := readFrame(t, subscriber)
	if frame["type"] != "request_status_update" {
		t.Errorf("expected request_status_update, got %v", frame["type"])
	}

	// Non-subscriber receives nothing
	_ = bystander.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := bystander.ReadMessage(); err == nil {
		t.Error("expected no frame for non-subscriber")
	}
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	srv, ts := newTestServer(t)

	conn := dial(t, wsURL(ts.URL, "tok-user"))
	waitFor(t, func() bool { return srv.reg.IsConnected("user-1") })

	if err := conn.WriteMessage(websocket.TextMessage, []byte("this is not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	// Connection survives; ping still answered
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	frame := readFrame(t, conn)
	if frame["type"] != "pong" {
		t.Errorf("expected pong after malformed frame, got %v", frame["type"])
	}
}

func TestLocationUpdateRoleRestriction(t *testing.T) {
	srv, ts := newTestServer(t)

	// A registered user subscribed to the request must not be able to
	// produce location updates, only field roles can
	user := dial(t, wsURL(ts.URL, "tok-user"))
	agent := dial(t, wsURL(ts.URL, "tok-agent"))
	waitFor(t, func() bool {
		return srv.reg.IsConnected("user-1") && srv.reg.IsConnected("agent-1")
	})

	if err := user.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe_request","request_id":"req-1"}`)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitFor(t, func() bool { return len(srv.reg.Subscribers("req-1")) == 1 })

	locationFrame := `{"type":"location_update","request_id":"req-1","location":{"latitude":1,"longitude":2},"estimated_arrival_time":"3m"}`

	// From the user: dropped
	if err := user.WriteMessage(websocket.TextMessage, []byte(locationFrame)); err != nil {
		t.Fatalf("user location: %v", err)
	}
	_ = user.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := user.ReadMessage(); err == nil {
		t.Error("expected no broadcast from non-producer location update")
	}

	// From the field agent: broadcast to the topic
	if err := agent.WriteMessage(websocket.TextMessage, []byte(locationFrame)); err != nil {
		t.Fatalf("agent location: %v", err)
	}
	frame := readFrame(t, user)
	if frame["type"] != "location_update" {
		t.Errorf("expected location_update, got %v", frame["type"])
	}
}

func TestReconnectReplacesConnection(t *testing.T) {
	srv, ts := newTestServer(t)

	first := dial(t, wsURL(ts.URL, "tok-user"))
	waitFor(t, func() bool { return srv.reg.IsConnected("user-1") })

	second := dial(t, wsURL(ts.URL, "tok-user"))

	// The first socket is closed by the registry on replacement
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Error("expected first connection to be closed")
	}

	waitFor(t, func() bool { return srv.reg.IsConnected("user-1") })
	if err := second.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("ping on second connection: %v", err)
	}
	frame := readFrame(t, second)
	if frame["type"] != "pong" {
		t.Errorf("expected pong on replacement connection, got %v", frame["type"])
	}
}
