package translation

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTranslationFailed wraps provider-level translation failures.
	ErrTranslationFailed = errors.New("translation failed")
	// ErrMixedBatch rejects a batch whose items target different languages.
	ErrMixedBatch = errors.New("batch contains mixed target languages")
	// ErrUnsupportedLanguage means no provider serves the target language.
	ErrUnsupportedLanguage = errors.New("unsupported target language")
	// ErrInvalidRequest rejects a malformed request before any provider call.
	ErrInvalidRequest = errors.New("invalid translation request")
)

// TranslationError carries the provider and language pair of a failed call.
type TranslationError struct {
	Provider   string
	SourceLang string
	TargetLang string
	Err        error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation %s->%s via %s: %v", e.SourceLang, e.TargetLang, e.Provider, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

func (e *TranslationError) Is(target error) bool { return target == ErrTranslationFailed }

// Provider is a single translation backend.
type Provider interface {
	Name() string
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}
