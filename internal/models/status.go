package models

// GenerationStatus is the lifecycle state of a story's generation.
type GenerationStatus string

const (
	GenerationPending    GenerationStatus = "pending"
	GenerationProcessing GenerationStatus = "processing"
	GenerationCompleted  GenerationStatus = "completed"
	GenerationFailed     GenerationStatus = "failed"
)

// legalTransitions is the full transition table. Anything absent here is a
// programming error surfaced as a state conflict, never retried.
var legalTransitions = map[GenerationStatus]map[GenerationStatus]bool{
	GenerationPending:    {GenerationProcessing: true},
	GenerationProcessing: {GenerationCompleted: true, GenerationFailed: true},
	GenerationFailed:     {GenerationPending: true}, // retry only
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s GenerationStatus) CanTransitionTo(next GenerationStatus) bool {
	return legalTransitions[s][next]
}

// IsTerminal reports whether s is a terminal status. Note that failed is
// terminal only for the job: the owner may still retry.
func (s GenerationStatus) IsTerminal() bool {
	return s == GenerationCompleted || s == GenerationFailed
}

// IsValidGenerationStatus reports whether the raw value is a known status.
func IsValidGenerationStatus(s GenerationStatus) bool {
	switch s {
	case GenerationPending, GenerationProcessing, GenerationCompleted, GenerationFailed:
		return true
	default:
		return false
	}
}
