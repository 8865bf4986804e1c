package imaging

import (
	"context"
	"errors"
)

// ErrImageGenerationFailed wraps provider-level image generation failures.
var ErrImageGenerationFailed = errors.New("image generation failed")

// ErrImageSaveFailed wraps failures storing a generated image.
var ErrImageSaveFailed = errors.New("image save failed")

// Provider generates illustrations. Implementations differ in whether they
// can anchor a character's appearance across images: the coordinator probes
// SupportsCharacterReference instead of switching on provider names.
type Provider interface {
	Name() string
	TestConnection(ctx context.Context) error
	// SupportsCharacterReference reports whether the provider can produce
	// and consume a character reference for visual consistency.
	SupportsCharacterReference() bool
	// CreateCharacterReference generates the anchor image for the
	// protagonist and returns an opaque reference the other calls accept.
	// Only valid when SupportsCharacterReference is true.
	CreateCharacterReference(ctx context.Context, storyID, prompt string) (string, error)
	// GenerateCover renders the cover. characterRef may be empty. The
	// second return value is an optional visual lock: a stable description
	// of the rendered character that chapter calls reuse so the protagonist
	// looks the same across illustrations.
	GenerateCover(ctx context.Context, storyID, prompt, characterRef string) (url, visualLock string, err error)
	// GenerateChapterImage renders the illustration for one chapter,
	// anchored by the character reference and the cover's visual lock.
	GenerateChapterImage(ctx context.Context, storyID, prompt, characterRef, visualLock string, position int) (string, error)
}
