package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/akontos/sirena/internal/event"
	"github.com/akontos/sirena/internal/registry"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn adapts a gorilla connection to registry.Conn. The registry
// serializes writes per connection, and the read loop never writes, so
// gorilla's single-writer requirement holds.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) WriteText(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// clientFrame is the superset of fields a client control message may
// carry; Type selects which are meaningful.
type clientFrame struct {
	Type                 string          `json:"type"`
	RequestID            string          `json:"request_id"`
	Location             *event.GeoPoint `json:"location"`
	EstimatedArrivalTime string          `json:"estimated_arrival_time"`
	VehicleDetails       string          `json:"vehicle_details"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, authorized := s.resolver.Resolve(r.URL.Query().Get("token"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	if !authorized {
		// Admit the frame exchange just long enough to say why we hang up
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		conn.Close()
		return
	}

	transport := &wsConn{conn: conn}
	s.reg.Connect(transport, identity.ActorID, identity.Role)
	slog.Info("client connected", "actor", identity.ActorID, "role", identity.Role)

	defer func() {
		s.reg.DisconnectIf(identity.ActorID, transport)
		conn.Close()
		slog.Info("client disconnected", "actor", identity.ActorID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleClientFrame(identity.ActorID, identity.Role, data)
	}
}

// handleClientFrame processes one inbound control message. Protocol
// errors are logged and the connection stays open.
func (s *Server) handleClientFrame(actorID string, role registry.Role, data []byte) {
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		slog.Warn("malformed client frame", "actor", actorID, "error", err)
		return
	}

	switch frame.Type {
	case "subscribe_request":
		if frame.RequestID == "" {
			slog.Warn("subscribe_request without request_id", "actor", actorID)
			return
		}
		s.reg.Subscribe(actorID, frame.RequestID)

	case "unsubscribe_request":
		s.reg.Unsubscribe(actorID, frame.RequestID)

	case "ping":
		s.reg.SendTo(actorID, event.NewPong())

	case "location_update":
		if !isFieldRole(role) {
			slog.Warn("location_update from non-producer role", "actor", actorID, "role", role)
			return
		}
		if frame.Location == nil || frame.RequestID == "" {
			slog.Warn("location_update missing fields", "actor", actorID)
			return
		}
		s.bcast.SendLocationUpdate(frame.RequestID, *frame.Location, frame.EstimatedArrivalTime)

	case "accept_request":
		if !isFieldRole(role) {
			slog.Warn("accept_request from non-producer role", "actor", actorID, "role", role)
			return
		}
		s.bcast.SendProviderAssigned(frame.RequestID, actorID, "", frame.VehicleDetails)

	case "arrived":
		if !isFieldRole(role) {
			slog.Warn("arrived from non-producer role", "actor", actorID, "role", role)
			return
		}
		s.bcast.SendProviderArrived(frame.RequestID, actorID, frame.VehicleDetails)

	default:
		slog.Warn("unknown client frame type", "actor", actorID, "type", frame.Type)
	}
}

func isFieldRole(role registry.Role) bool {
	return role == registry.RoleFieldAgent || role == registry.RoleServiceProvider
}
