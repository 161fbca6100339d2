// Package broadcast builds typed realtime events and hands them to the
// connection registry for delivery. It is stateless: no retries, no
// buffering. Failed sends are absorbed by the registry.
package broadcast

import (
	"log/slog"

	"github.com/akontos/sirena/internal/event"
	"github.com/akontos/sirena/internal/natsbus"
	"github.com/akontos/sirena/internal/registry"
)

type Broadcaster struct {
	reg  *registry.Registry
	nats *natsbus.Client // optional event mirror, may be nil
}

func New(reg *registry.Registry, nats *natsbus.Client) *Broadcaster {
	return &Broadcaster{reg: reg, nats: nats}
}

// Request-scoped events fan out to the request topic.

func (b *Broadcaster) SendStatusUpdate(requestID, status, message string) {
	ev := event.NewStatusUpdate(requestID, status, message)
	b.reg.BroadcastToTopic(requestID, ev)
	b.mirror(natsbus.TopicRequestEvents(requestID), ev)
}

func (b *Broadcaster) SendLocationUpdate(requestID string, loc event.GeoPoint, eta string) {
	ev := event.NewLocationUpdate(requestID, loc, eta)
	b.reg.BroadcastToTopic(requestID, ev)
	b.mirror(natsbus.TopicRequestEvents(requestID), ev)
}

func (b *Broadcaster) SendProviderAssigned(requestID, providerID, providerName, vehicleDetails string) {
	ev := event.NewProviderAssigned(requestID, providerID, providerName, vehicleDetails)
	b.reg.BroadcastToTopic(requestID, ev)
	b.mirror(natsbus.TopicRequestEvents(requestID), ev)
}

func (b *Broadcaster) SendProviderArrived(requestID, providerID, vehicleDetails string) {
	ev := event.NewProviderArrived(requestID, providerID, vehicleDetails)
	b.reg.BroadcastToTopic(requestID, ev)
	b.mirror(natsbus.TopicRequestEvents(requestID), ev)
}

// User-directed events unicast to one actor's live connection.

func (b *Broadcaster) SendRequestConfirmed(userID, requestID, status string) {
	ev := event.NewRequestConfirmed(requestID, status)
	b.reg.SendTo(userID, ev)
	b.mirror(natsbus.TopicUserEvents(userID), ev)
}

func (b *Broadcaster) SendAgentAssignment(agentID, requestID, summary string) {
	ev := event.NewAgentAssignment(requestID, agentID, summary)
	b.reg.SendTo(agentID, ev)
	b.mirror(natsbus.TopicUserEvents(agentID), ev)
}

// SendRoleStatusUpdate pushes a status update to every connected actor
// holding the role, e.g. office staff dashboards watching a request.
func (b *Broadcaster) SendRoleStatusUpdate(role registry.Role, requestID, status, message string) {
	ev := event.NewStatusUpdate(requestID, status, message)
	b.reg.BroadcastToRole(role, ev)
	b.mirror(natsbus.TopicRoleEvents(string(role)), ev)
}

// SendSilentModeCommand unicasts a device-mode command to the user.
// Called by the platform controllers, not by the business layer.
func (b *Broadcaster) SendSilentModeCommand(userID string, data event.SilentModeData) {
	ev := event.NewSilentModeCommand(data.RequestID, data)
	b.reg.SendTo(userID, ev)
	b.mirror(natsbus.TopicSilentSession(userID), ev)
}

// mirror publishes a copy onto the internal bus for the audit trail.
// Mirror failures never affect delivery.
func (b *Broadcaster) mirror(topic string, ev *event.Event) {
	if b.nats == nil {
		return
	}
	if err := b.nats.PublishJSON(topic, ev); err != nil {
		slog.Warn("event mirror publish failed", "topic", topic, "error", err)
	}
}
