package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseGeneratedStory decodes the content model's response into a structured
// story. Models occasionally wrap JSON in markdown fences despite
// instructions; fences are stripped before the strict parse.
func ParseGeneratedStory(raw string) (*GeneratedStory, error) {
	cleaned := stripCodeFences(raw)

	var story GeneratedStory
	decoder := json.NewDecoder(strings.NewReader(cleaned))
	if err := decoder.Decode(&story); err != nil {
		return nil, fmt.Errorf("%w: response is not valid JSON: %v", ErrGenerationFailed, err)
	}

	if strings.TrimSpace(story.Title) == "" {
		return nil, fmt.Errorf("%w: response is missing a title", ErrGenerationFailed)
	}
	if len(story.Chapters) == 0 {
		return nil, fmt.Errorf("%w: response contains no chapters", ErrGenerationFailed)
	}
	for i, ch := range story.Chapters {
		if strings.TrimSpace(ch.Content) == "" {
			return nil, fmt.Errorf("%w: chapter %d has empty content", ErrGenerationFailed, i+1)
		}
	}
	return &story, nil
}

func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop an optional language tag on the fence line
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(s[:idx])
		if firstLine == "" || !strings.ContainsAny(firstLine, "{[") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
