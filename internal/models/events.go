package models

import (
	"time"

	"github.com/google/uuid"
)

// Domain event names.
const (
	EventStoryCreated = "story.created"
	EventRetryQueued  = "story.retry_queued"
)

// DomainEvent is published by the orchestrator fire-and-forget; delivery
// guarantees belong to the publisher.
type DomainEvent interface {
	EventName() string
}

// StoryCreatedEvent is published once a story aggregate has been persisted,
// on both the synchronous and the queued creation path.
type StoryCreatedEvent struct {
	StoryID    uuid.UUID `json:"storyId"`
	OwnerID    uuid.UUID `json:"ownerId"`
	Title      string    `json:"title"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (StoryCreatedEvent) EventName() string { return EventStoryCreated }

// RetryQueuedEvent is published after an owner-initiated retry has been
// dispatched with a fresh job id.
type RetryQueuedEvent struct {
	StoryID    uuid.UUID `json:"storyId"`
	OwnerID    uuid.UUID `json:"ownerId"`
	JobID      string    `json:"jobId"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (RetryQueuedEvent) EventName() string { return EventRetryQueued }
