package silent

import (
	"context"
	"time"

	"github.com/akontos/sirena/internal/event"
)

type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

func ParsePlatform(s string) (Platform, bool) {
	switch Platform(s) {
	case PlatformAndroid, PlatformIOS:
		return Platform(s), true
	}
	return "", false
}

// CommandResult is consumed by the Manager for persistence and
// logging, not by the end caller.
type CommandResult struct {
	Status    string    `json:"status"`
	Platform  Platform  `json:"platform"`
	Timestamp time.Time `json:"timestamp"`
}

// Sender pushes a silent-mode command to one user's live connection.
// Satisfied by broadcast.Broadcaster.
type Sender interface {
	SendSilentModeCommand(userID string, data event.SilentModeData)
}

// Controller translates an abstract activate/deactivate intent into a
// platform-specific device command. The send layer absorbs failures,
// so these cannot fail in practice; the error return is a seam for a
// future OS-level integration.
type Controller interface {
	Activate(ctx context.Context, userID, requestID string, duration time.Duration) (CommandResult, error)
	Deactivate(ctx context.Context, userID, requestID, restoreMode string) (CommandResult, error)
}

type androidController struct {
	sender Sender
}

func newAndroidController(sender Sender) *androidController {
	return &androidController{sender: sender}
}

func (c *androidController) Activate(_ context.Context, userID, requestID string, duration time.Duration) (CommandResult, error) {
	c.sender.SendSilentModeCommand(userID, event.SilentModeData{
		Type:            event.CommandActivateSilentMode,
		RequestID:       requestID,
		DurationMinutes: int(duration.Minutes()),
		PlatformSpecific: map[string]any{
			"android": map[string]any{
				"mode":                  "do_not_disturb",
				"allow_emergency_calls": true,
				"allow_alarms":          true,
			},
		},
	})
	return CommandResult{Status: "sent", Platform: PlatformAndroid, Timestamp: time.Now().UTC()}, nil
}

func (c *androidController) Deactivate(_ context.Context, userID, requestID, restoreMode string) (CommandResult, error) {
	c.sender.SendSilentModeCommand(userID, event.SilentModeData{
		Type:        event.CommandDeactivateSilentMode,
		RequestID:   requestID,
		RestoreMode: restoreMode,
		PlatformSpecific: map[string]any{
			"android": map[string]any{
				"restore_mode": restoreMode,
			},
		},
	})
	return CommandResult{Status: "sent", Platform: PlatformAndroid, Timestamp: time.Now().UTC()}, nil
}

type iosController struct {
	sender Sender
}

func newIOSController(sender Sender) *iosController {
	return &iosController{sender: sender}
}

func (c *iosController) Activate(_ context.Context, userID, requestID string, duration time.Duration) (CommandResult, error) {
	c.sender.SendSilentModeCommand(userID, event.SilentModeData{
		Type:            event.CommandActivateSilentMode,
		RequestID:       requestID,
		DurationMinutes: int(duration.Minutes()),
		PlatformSpecific: map[string]any{
			"ios": map[string]any{
				"focus_mode":              "Emergency Dispatch",
				"critical_alerts_enabled": true,
				"silence_notifications":   true,
			},
		},
	})
	return CommandResult{Status: "sent", Platform: PlatformIOS, Timestamp: time.Now().UTC()}, nil
}

func (c *iosController) Deactivate(_ context.Context, userID, requestID, restoreMode string) (CommandResult, error) {
	c.sender.SendSilentModeCommand(userID, event.SilentModeData{
		Type:        event.CommandDeactivateSilentMode,
		RequestID:   requestID,
		RestoreMode: restoreMode,
		PlatformSpecific: map[string]any{
			"ios": map[string]any{
				"focus_mode":   "Emergency Dispatch",
				"restore_mode": restoreMode,
			},
		},
	})
	return CommandResult{Status: "sent", Platform: PlatformIOS, Timestamp: time.Now().UTC()}, nil
}
