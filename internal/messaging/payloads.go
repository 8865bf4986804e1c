package messaging

// TaskType identifies the kind of work carried by a queue message.
type TaskType string

const (
	TaskTypeStoryGeneration TaskType = "story_generation"
)

// GenerationTaskPayload is the message handed to the job queue for one story
// generation. It carries catalog ids, not names: the worker re-resolves them
// so a catalog rename between dispatch and execution cannot go stale.
type GenerationTaskPayload struct {
	JobID              string   `json:"jobId"`
	TaskType           TaskType `json:"taskType"`
	StoryID            string   `json:"storyId"`
	OwnerID            string   `json:"ownerId"`
	ThemeID            string   `json:"themeId"`
	LanguageID         string   `json:"languageId"`
	ToneID             string   `json:"toneId"`
	Synopsis           string   `json:"synopsis,omitempty"`
	ProtagonistName    string   `json:"protagonistName"`
	ProtagonistSpecies string   `json:"protagonistSpecies"`
	ChildAge           int      `json:"childAge"`
	ChapterCount       int      `json:"chapterCount"`
}

// eventEnvelope wraps a domain event for the queue.
type eventEnvelope struct {
	Name       string      `json:"name"`
	OccurredAt string      `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}
