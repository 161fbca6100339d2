// Package event defines the closed set of realtime events pushed to
// connected clients, and their wire shape.
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeRequestStatusUpdate Type = "request_status_update"
	TypeLocationUpdate      Type = "location_update"
	TypeProviderAssigned    Type = "provider_assigned"
	TypeProviderArrived     Type = "provider_arrived"
	TypeRequestConfirmed    Type = "request_confirmed"
	TypeAgentAssignment     Type = "agent_assignment"
	TypeSilentModeCommand   Type = "silent_mode_command"
	TypePong                Type = "pong"
)

// Event is the envelope written to the wire as a single JSON text frame.
// Events are immutable once constructed; Data is one of the payload
// structs below, chosen by Type.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Data      any       `json:"data,omitempty"`
}

func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

type StatusUpdateData struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

type LocationUpdateData struct {
	RequestID            string   `json:"request_id"`
	Location             GeoPoint `json:"location"`
	EstimatedArrivalTime string   `json:"estimated_arrival_time,omitempty"`
}

type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type ProviderAssignedData struct {
	RequestID      string `json:"request_id"`
	ProviderID     string `json:"provider_id"`
	ProviderName   string `json:"provider_name,omitempty"`
	VehicleDetails string `json:"vehicle_details,omitempty"`
}

type ProviderArrivedData struct {
	RequestID      string `json:"request_id"`
	ProviderID     string `json:"provider_id"`
	VehicleDetails string `json:"vehicle_details"`
}

type RequestConfirmedData struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

type AgentAssignmentData struct {
	RequestID string `json:"request_id"`
	AgentID   string `json:"agent_id"`
	Summary   string `json:"summary,omitempty"`
}

// Silent-mode command verbs carried in SilentModeData.Type.
const (
	CommandActivateSilentMode   = "activate_silent_mode"
	CommandDeactivateSilentMode = "deactivate_silent_mode"
)

// SilentModeData instructs a device to enter or leave the restricted
// ringer mode. PlatformSpecific is an open bag keyed by platform name
// ("android", "ios") so controllers can extend the command without a
// wire-format change.
type SilentModeData struct {
	Type             string         `json:"type"`
	RequestID        string         `json:"request_id,omitempty"`
	DurationMinutes  int            `json:"duration_minutes,omitempty"`
	RestoreMode      string         `json:"restore_mode,omitempty"`
	PlatformSpecific map[string]any `json:"platform_specific,omitempty"`
}

func newEvent(t Type, requestID string, data any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
		Data:      data,
	}
}

func NewStatusUpdate(requestID, status, message string) *Event {
	return newEvent(TypeRequestStatusUpdate, requestID, StatusUpdateData{
		RequestID: requestID,
		Status:    status,
		Message:   message,
	})
}

func NewLocationUpdate(requestID string, loc GeoPoint, eta string) *Event {
	return newEvent(TypeLocationUpdate, requestID, LocationUpdateData{
		RequestID:            requestID,
		Location:             loc,
		EstimatedArrivalTime: eta,
	})
}

func NewProviderAssigned(requestID, providerID, providerName, vehicleDetails string) *Event {
	return newEvent(TypeProviderAssigned, requestID, ProviderAssignedData{
		RequestID:      requestID,
		ProviderID:     providerID,
		ProviderName:   providerName,
		VehicleDetails: vehicleDetails,
	})
}

func NewProviderArrived(requestID, providerID, vehicleDetails string) *Event {
	return newEvent(TypeProviderArrived, requestID, ProviderArrivedData{
		RequestID:      requestID,
		ProviderID:     providerID,
		VehicleDetails: vehicleDetails,
	})
}

func NewRequestConfirmed(requestID, status string) *Event {
	return newEvent(TypeRequestConfirmed, requestID, RequestConfirmedData{
		RequestID: requestID,
		Status:    status,
	})
}

func NewAgentAssignment(requestID, agentID, summary string) *Event {
	return newEvent(TypeAgentAssignment, requestID, AgentAssignmentData{
		RequestID: requestID,
		AgentID:   agentID,
		Summary:   summary,
	})
}

func NewSilentModeCommand(requestID string, data SilentModeData) *Event {
	return newEvent(TypeSilentModeCommand, requestID, data)
}

func NewPong() *Event {
	return newEvent(TypePong, "", nil)
}
