package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	name  string
	err   error
	calls []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Translate(_ context.Context, text, _, targetLang string) (string, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("[%s:%s]%s", f.name, targetLang, text), nil
}

func newTestRouter(primary, fallback Provider) *Router {
	return NewRouter(
		[]string{"EN", "ES", "FR"},
		[]string{"JA", "ZH"},
		primary, fallback, 4800, zap.NewNop())
}

func TestRouterRoute(t *testing.T) {
	r := newTestRouter(&fakeProvider{name: "deepl"}, &fakeProvider{name: "openai"})

	assert.Equal(t, RouteNone, r.Route("EN"))
	assert.Equal(t, RouteNone, r.Route("fr"))
	assert.Equal(t, RoutePrimary, r.Route("JA"))
	assert.Equal(t, RouteFallback, r.Route("SW"))
}

func TestRouterDirectLanguageSkipsTranslation(t *testing.T) {
	primary := &fakeProvider{name: "deepl"}
	r := newTestRouter(primary, &fakeProvider{name: "openai"})

	out, err := r.Translate(context.Background(), "hello", "EN", "ES")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Empty(t, primary.calls)
}

func TestRouterPrimaryProvider(t *testing.T) {
	primary := &fakeProvider{name: "deepl"}
	r := newTestRouter(primary, &fakeProvider{name: "openai"})

	out, err := r.Translate(context.Background(), "hello", "EN", "JA")
	require.NoError(t, err)
	assert.Equal(t, "[deepl:JA]hello", out)
}

func TestRouterFallsBackOnPrimaryFailure(t *testing.T) {
	primary := &fakeProvider{name: "deepl", err: errors.New("quota exhausted")}
	fallback := &fakeProvider{name: "openai"}
	r := newTestRouter(primary, fallback)

	out, err := r.Translate(context.Background(), "hello", "EN", "JA")
	require.NoError(t, err)
	assert.Equal(t, "[openai:JA]hello", out)
	assert.Len(t, primary.calls, 1)
}

func TestRouterFallbackFailureSurfacesProvider(t *testing.T) {
	fallback := &fakeProvider{name: "openai", err: errors.New("timeout")}
	r := newTestRouter(&fakeProvider{name: "deepl"}, fallback)

	_, err := r.Translate(context.Background(), "hello", "EN", "SW")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranslationFailed))

	var terr *TranslationError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "openai", terr.Provider)
	assert.Equal(t, "SW", terr.TargetLang)
}

func TestRouterRejectsInvalidRequests(t *testing.T) {
	primary := &fakeProvider{name: "deepl"}
	fallback := &fakeProvider{name: "openai"}
	r := newTestRouter(primary, fallback)

	_, err := r.Translate(context.Background(), "   ", "EN", "JA")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = r.Translate(context.Background(), "hello", "", "JA")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = r.Translate(context.Background(), "hello", "EN", "")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	// validation happens before any provider call
	assert.Empty(t, primary.calls)
	assert.Empty(t, fallback.calls)
}

func TestRouterChunksOverLimitText(t *testing.T) {
	primary := &fakeProvider{name: "deepl"}
	r := NewRouter([]string{"EN"}, []string{"JA"}, primary, nil, 50, zap.NewNop())

	text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40)
	out, err := r.Translate(context.Background(), text, "EN", "JA")
	require.NoError(t, err)

	assert.Len(t, primary.calls, 2)
	assert.Contains(t, out, "[deepl:JA]")
}

func TestRouterBatchRejectsMixedTargets(t *testing.T) {
	r := newTestRouter(&fakeProvider{name: "deepl"}, &fakeProvider{name: "openai"})

	_, err := r.TranslateBatch(context.Background(), []BatchItem{
		{Text: "one", TargetLang: "JA"},
		{Text: "two", TargetLang: "ZH"},
	}, "EN")
	assert.ErrorIs(t, err, ErrMixedBatch)
}

func TestRouterBatchTranslatesAll(t *testing.T) {
	r := newTestRouter(&fakeProvider{name: "deepl"}, &fakeProvider{name: "openai"})

	out, err := r.TranslateBatch(context.Background(), []BatchItem{
		{Text: "one", TargetLang: "ja"},
		{Text: "two", TargetLang: "JA"},
	}, "EN")
	require.NoError(t, err)
	assert.Equal(t, []string{"[deepl:JA]one", "[deepl:JA]two"}, out)
}

func TestSplitChunks(t *testing.T) {
	text := strings.Repeat("a", 30) + "\n\n" + strings.Repeat("b", 30) + "\n\n" + strings.Repeat("c", 30)

	chunks := splitChunks(text, 70)
	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 70)
	}
	assert.Equal(t, strings.ReplaceAll(text, "\n\n", ""),
		strings.ReplaceAll(strings.Join(chunks, ""), "\n\n", ""))
}

func TestSplitChunksHardSplitsLongParagraph(t *testing.T) {
	text := strings.Repeat("x", 120)

	chunks := splitChunks(text, 50)
	require.Len(t, chunks, 3)
	assert.Equal(t, text, strings.Join(chunks, ""))
}
