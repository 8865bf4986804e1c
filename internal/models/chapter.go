package models

import "fmt"

// Chapter length bounds, enforced at construction.
const (
	ChapterTitleMaxLen   = 100
	ChapterContentMaxLen = 5000
)

// Chapter is a story chapter. Its identity is the 1-indexed position within
// the story: position 1 and position 2 are distinct chapters even with
// identical text.
type Chapter struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// NewChapter validates and builds a chapter. Bounds violations reject the
// chapter outright.
func NewChapter(position int, title, content, imageURL string) (Chapter, error) {
	if position < 1 {
		return Chapter{}, fmt.Errorf("%w: chapter position must be >= 1, got %d", ErrInvalidInput, position)
	}
	if l := len(title); l < 1 || l > ChapterTitleMaxLen {
		return Chapter{}, fmt.Errorf("%w: chapter %d title length %d out of range [1, %d]",
			ErrInvalidInput, position, l, ChapterTitleMaxLen)
	}
	if l := len(content); l < 1 || l > ChapterContentMaxLen {
		return Chapter{}, fmt.Errorf("%w: chapter %d content length %d out of range [1, %d]",
			ErrInvalidInput, position, l, ChapterContentMaxLen)
	}
	return Chapter{
		Position: position,
		Title:    title,
		Content:  content,
		ImageURL: imageURL,
	}, nil
}

// NewChapters builds the ordered chapter list all-or-nothing: a single
// invalid chapter rejects the whole batch.
func NewChapters(titles, contents, imageURLs []string) ([]Chapter, error) {
	if len(titles) != len(contents) {
		return nil, fmt.Errorf("%w: %d chapter titles but %d contents", ErrInvalidInput, len(titles), len(contents))
	}
	chapters := make([]Chapter, 0, len(titles))
	for i := range titles {
		imageURL := ""
		if i < len(imageURLs) {
			imageURL = imageURLs[i]
		}
		ch, err := NewChapter(i+1, titles[i], contents[i], imageURL)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, ch)
	}
	return chapters, nil
}
