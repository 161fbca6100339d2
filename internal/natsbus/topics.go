package natsbus

import "fmt"

// Topic patterns for the internal event mirror.

func TopicRequestEvents(requestID string) string {
	return fmt.Sprintf("events.request.%s", requestID)
}

func TopicUserEvents(actorID string) string {
	return fmt.Sprintf("events.user.%s", actorID)
}

func TopicRoleEvents(role string) string {
	return fmt.Sprintf("events.role.%s", role)
}

func TopicSilentSession(userID string) string {
	return fmt.Sprintf("events.silent.%s", userID)
}

const (
	TopicEventsAll    = "events.>"
	TopicEventsSilent = "events.silent.*"
)
