package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/totalctl/internal/classifier"
	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// mockCapturer writes an empty file per capture.
type mockCapturer struct {
	dir string
	err error
}

func (m *mockCapturer) Capture(ctx context.Context) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	path := filepath.Join(m.dir, "screen.png")
	return path, os.WriteFile(path, []byte("png"), 0600)
}

type mockExtractor struct {
	text string
}

func (m *mockExtractor) ExtractText(ctx context.Context, path string) string {
	return m.text
}

type mockWindowSource struct {
	info domain.WindowInfo
	err  error
}

func (m *mockWindowSource) ActiveWindow(ctx context.Context) (domain.WindowInfo, error) {
	return m.info, m.err
}

type mockHistory struct {
	records []domain.ScreenAnalysis
	err     error
}

func (m *mockHistory) Record(a domain.ScreenAnalysis) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, a)
	return nil
}

func (m *mockHistory) Recent(limit int) ([]domain.ScreenAnalysis, error) {
	return m.records, nil
}

func newTestAnalyzer(t *testing.T, text string, keep bool) (*ScreenAnalyzer, *mockHistory, string) {
	t.Helper()
	dir := t.TempDir()
	history := &mockHistory{}
	a := NewScreenAnalyzer(
		&mockCapturer{dir: dir},
		&mockExtractor{text: text},
		&mockWindowSource{info: domain.WindowInfo{Title: "Home / X - Twitter"}},
		classifier.NewTextClassifier(),
		history,
		keep,
		zap.NewNop(),
	)
	a.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return a, history, filepath.Join(dir, "screen.png")
}

func TestScreenAnalyzer_BlockedScreenKeepsScreenshot(t *testing.T) {
	a, _, path := newTestAnalyzer(t, "For You · What's happening · Trending now", false)

	analysis, err := a.Analyze(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.TextFeed, analysis.Category)
	assert.True(t, analysis.ShouldBlock)
	assert.Equal(t, "twitter", analysis.AppHint)
	assert.Equal(t, path, analysis.ScreenshotPath)
	assert.Len(t, analysis.TextHash, 12)
	assert.FileExists(t, path)
}

func TestScreenAnalyzer_AllowedScreenRemovesScreenshot(t *testing.T) {
	a, _, path := newTestAnalyzer(t, "Direct Messages  New message", false)

	analysis, err := a.Analyze(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.TextDM, analysis.Category)
	assert.False(t, analysis.ShouldBlock)
	assert.Empty(t, analysis.ScreenshotPath)
	assert.NoFileExists(t, path)
}

func TestScreenAnalyzer_KeepScreenshots(t *testing.T) {
	a, _, path := newTestAnalyzer(t, "Direct Messages", true)

	analysis, err := a.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, analysis.ScreenshotPath)
	assert.FileExists(t, path)
}

func TestScreenAnalyzer_CaptureError(t *testing.T) {
	a := NewScreenAnalyzer(&mockCapturer{err: domain.ErrNoCaptureTool}, &mockExtractor{}, nil,
		classifier.NewTextClassifier(), nil, false, zap.NewNop())

	_, err := a.Analyze(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoCaptureTool)
}

func TestScreenAnalyzer_EmptyTextIsUnknownAndBlocked(t *testing.T) {
	a, _, _ := newTestAnalyzer(t, "", false)

	analysis := a.AnalyzeText("", "", "")
	assert.Equal(t, domain.TextUnknown, analysis.Category)
	assert.Zero(t, analysis.Confidence)
	assert.True(t, analysis.ShouldBlock)
}

func TestScreenAnalyzer_TruncatesRawText(t *testing.T) {
	a, _, _ := newTestAnalyzer(t, "", false)
	long := strings.Repeat("ü", domain.MaxRawTextRunes+10)

	analysis := a.AnalyzeText(long, "", "")
	assert.Equal(t, domain.MaxRawTextRunes, utf8.RuneCountInString(analysis.RawText))
	assert.True(t, utf8.ValidString(analysis.RawText))
	assert.Equal(t, TextHash(long), analysis.TextHash)
}

func TestScreenAnalyzer_Record(t *testing.T) {
	a, history, _ := newTestAnalyzer(t, "", false)

	a.Record(domain.ScreenAnalysis{AppHint: "x"})
	require.Len(t, history.records, 1)

	history.err = errors.New("db locked")
	assert.NotPanics(t, func() { a.Record(domain.ScreenAnalysis{}) })
}

func TestTextHash(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00", TextHash(""))
	assert.Equal(t, TextHash("same"), TextHash("same"))
	assert.NotEqual(t, TextHash("a"), TextHash("b"))
}
