package usecase

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/totalctl/internal/classifier"
	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// TextScorer classifies OCR text. Implementation: classifier.TextClassifier.
type TextScorer interface {
	Classify(text, appHint string) classifier.TextResult
}

// ScreenAnalyzer runs the OCR pipeline: capture, app hint from the focused
// window, text extraction and classification.
type ScreenAnalyzer struct {
	capturer  domain.ScreenCapturer
	extractor domain.TextExtractor
	windows   domain.WindowSource
	scorer    TextScorer
	history   domain.AnalysisHistory
	keepShots bool
	now       func() time.Time
	logger    *zap.Logger
}

// NewScreenAnalyzer creates an analyzer. windows and history may be nil.
func NewScreenAnalyzer(
	capturer domain.ScreenCapturer,
	extractor domain.TextExtractor,
	windows domain.WindowSource,
	scorer TextScorer,
	history domain.AnalysisHistory,
	keepScreenshots bool,
	logger *zap.Logger,
) *ScreenAnalyzer {
	return &ScreenAnalyzer{
		capturer:  capturer,
		extractor: extractor,
		windows:   windows,
		scorer:    scorer,
		history:   history,
		keepShots: keepScreenshots,
		now:       time.Now,
		logger:    logger,
	}
}

// Analyze captures the screen and classifies it. The screenshot is removed
// afterwards unless the screen is blocked or screenshots are kept.
func (a *ScreenAnalyzer) Analyze(ctx context.Context) (domain.ScreenAnalysis, error) {
	path, err := a.capturer.Capture(ctx)
	if err != nil {
		return domain.ScreenAnalysis{}, err
	}

	analysis := a.AnalyzeImage(ctx, path, a.appHint(ctx))

	if !analysis.ShouldBlock && !a.keepShots {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			a.logger.Debug("failed to remove screenshot", zap.String("path", path), zap.Error(err))
		}
		analysis.ScreenshotPath = ""
	}
	return analysis, nil
}

// AnalyzeImage classifies an existing image.
func (a *ScreenAnalyzer) AnalyzeImage(ctx context.Context, path, appHint string) domain.ScreenAnalysis {
	text := a.extractor.ExtractText(ctx, path)
	return a.AnalyzeText(text, appHint, path)
}

// AnalyzeText classifies already extracted text.
func (a *ScreenAnalyzer) AnalyzeText(text, appHint, path string) domain.ScreenAnalysis {
	res := a.scorer.Classify(text, appHint)

	return domain.ScreenAnalysis{
		Timestamp:       a.now(),
		AppHint:         appHint,
		Category:        res.Category,
		Confidence:      res.Confidence,
		RawText:         domain.TruncateRawText(text),
		TextHash:        TextHash(text),
		MatchedPatterns: res.MatchedPatterns,
		ShouldBlock:     classifier.ShouldBlockText(res.Category),
		ScreenshotPath:  path,
	}
}

// Record stores analysis in the history, if one is configured.
func (a *ScreenAnalyzer) Record(analysis domain.ScreenAnalysis) {
	if a.history == nil {
		return
	}
	if err := a.history.Record(analysis); err != nil {
		a.logger.Warn("failed to record screen analysis", zap.Error(err))
	}
}

func (a *ScreenAnalyzer) appHint(ctx context.Context) string {
	if a.windows == nil {
		return ""
	}
	w, err := a.windows.ActiveWindow(ctx)
	if err != nil {
		return ""
	}
	return classifier.AppHintFromTitle(w.Title)
}

// TextHash is the short fingerprint used to detect an unchanged screen.
func TextHash(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:12]
}
