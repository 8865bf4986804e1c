package translation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// RouteDecision is the outcome of routing a target language.
type RouteDecision string

const (
	// RouteNone means the content model already writes this language; no
	// translation pass runs.
	RouteNone RouteDecision = "none"
	// RoutePrimary sends text through the dedicated translation provider.
	RoutePrimary RouteDecision = "primary"
	// RouteFallback sends text through the general-purpose model translator.
	RouteFallback RouteDecision = "fallback"
)

// BatchItem is one text in a translation batch.
type BatchItem struct {
	Text       string
	TargetLang string
}

// Router routes translation requests by target language: languages the
// content model writes natively skip translation entirely, languages the
// primary provider supports go there, everything else falls back to the
// model translator. A primary-provider failure also falls back.
type Router struct {
	direct   map[string]struct{}
	primary  map[string]struct{}
	primaryP Provider
	fallback Provider
	maxChars int
	logger   *zap.Logger
}

// NewRouter builds a router. directLangs and primaryLangs are uppercase
// language codes; maxChars bounds a single provider call, longer texts are
// split on paragraph boundaries.
func NewRouter(directLangs, primaryLangs []string, primary, fallback Provider, maxChars int, logger *zap.Logger) *Router {
	direct := make(map[string]struct{}, len(directLangs))
	for _, code := range directLangs {
		direct[strings.ToUpper(code)] = struct{}{}
	}
	primarySet := make(map[string]struct{}, len(primaryLangs))
	for _, code := range primaryLangs {
		primarySet[strings.ToUpper(code)] = struct{}{}
	}
	if maxChars <= 0 {
		maxChars = 4800
	}
	return &Router{
		direct:   direct,
		primary:  primarySet,
		primaryP: primary,
		fallback: fallback,
		maxChars: maxChars,
		logger:   logger.Named("translation_router"),
	}
}

// Route decides how a target language is served.
func (r *Router) Route(targetLang string) RouteDecision {
	code := strings.ToUpper(targetLang)
	if _, ok := r.direct[code]; ok {
		return RouteNone
	}
	if _, ok := r.primary[code]; ok && r.primaryP != nil {
		return RoutePrimary
	}
	return RouteFallback
}

// Translate translates a single text into targetLang. The request is
// validated before any provider call; texts routed as RouteNone are returned
// unchanged. Texts longer than maxChars are split on paragraph boundaries and
// translated chunk by chunk.
func (r *Router) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text is empty", ErrInvalidRequest)
	}
	if strings.TrimSpace(sourceLang) == "" {
		return "", fmt.Errorf("%w: source language is empty", ErrInvalidRequest)
	}
	if strings.TrimSpace(targetLang) == "" {
		return "", fmt.Errorf("%w: target language is empty", ErrInvalidRequest)
	}
	switch r.Route(targetLang) {
	case RouteNone:
		return text, nil
	case RoutePrimary:
		out, err := r.translateChunked(ctx, r.primaryP, text, sourceLang, targetLang)
		if err == nil {
			return out, nil
		}
		if r.fallback == nil {
			return "", err
		}
		r.logger.Warn("primary translation provider failed, falling back",
			zap.String("target_lang", targetLang),
			zap.Error(err))
		return r.translateChunked(ctx, r.fallback, text, sourceLang, targetLang)
	default:
		if r.fallback == nil {
			return "", &TranslationError{Provider: "none", SourceLang: sourceLang, TargetLang: targetLang, Err: ErrUnsupportedLanguage}
		}
		return r.translateChunked(ctx, r.fallback, text, sourceLang, targetLang)
	}
}

// TranslateBatch translates every item into the batch's single target
// language. Items with differing targets are rejected up front: a batch is
// one routing decision, not many.
func (r *Router) TranslateBatch(ctx context.Context, items []BatchItem, sourceLang string) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	target := strings.ToUpper(items[0].TargetLang)
	for _, item := range items[1:] {
		if strings.ToUpper(item.TargetLang) != target {
			return nil, ErrMixedBatch
		}
	}

	results := make([]string, len(items))
	for i, item := range items {
		out, err := r.Translate(ctx, item.Text, sourceLang, target)
		if err != nil {
			return nil, err
		}
		results[i] = out
	}
	return results, nil
}

func (r *Router) translateChunked(ctx context.Context, p Provider, text, sourceLang, targetLang string) (string, error) {
	chunks := splitChunks(text, r.maxChars)
	if len(chunks) == 1 {
		out, err := p.Translate(ctx, chunks[0], sourceLang, targetLang)
		if err != nil {
			return "", &TranslationError{Provider: p.Name(), SourceLang: sourceLang, TargetLang: targetLang, Err: err}
		}
		return out, nil
	}

	var b strings.Builder
	for i, chunk := range chunks {
		out, err := p.Translate(ctx, chunk, sourceLang, targetLang)
		if err != nil {
			return "", &TranslationError{Provider: p.Name(), SourceLang: sourceLang, TargetLang: targetLang, Err: err}
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(out)
	}
	return b.String(), nil
}

// splitChunks splits text into pieces of at most maxChars, preferring
// paragraph boundaries. A single paragraph longer than maxChars is split
// hard at the limit.
func splitChunks(text string, maxChars int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}
	paragraphs := strings.Split(text, "\n\n")
	var chunks []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}
	for _, p := range paragraphs {
		for len(p) > maxChars {
			flush()
			chunks = append(chunks, p[:maxChars])
			p = p[maxChars:]
		}
		if current.Len() > 0 && current.Len()+2+len(p) > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	flush()
	return chunks
}
