package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

const (
	// CaptureTimeout bounds one screenshot tool run.
	CaptureTimeout = 10 * time.Second
	// OCRTimeout bounds one tesseract run.
	OCRTimeout = 10 * time.Second
)

// captureTool is a screenshot program and how it is told where to write.
type captureTool struct {
	name string
	args func(path string) []string
}

// captureTools are tried in order; the first installed one is used.
var captureTools = []captureTool{
	{"gnome-screenshot", func(p string) []string { return []string{"-f", p} }},
	{"scrot", func(p string) []string { return []string{p} }},
	{"import", func(p string) []string { return []string{"-window", "root", p} }},
	{"flameshot", func(p string) []string { return []string{"full", "-p", filepath.Dir(p)} }},
}

// ScreenCapturerImpl writes screenshots into a directory.
type ScreenCapturerImpl struct {
	dir    string
	runner CommandRunner
	now    func() time.Time
	logger *zap.Logger
}

// NewScreenCapturer creates a capturer writing into dir.
func NewScreenCapturer(dir string, runner CommandRunner, logger *zap.Logger) *ScreenCapturerImpl {
	return &ScreenCapturerImpl{dir: dir, runner: runner, now: time.Now, logger: logger}
}

// Capture runs the first installed tool and returns the screenshot path.
func (c *ScreenCapturerImpl) Capture(ctx context.Context) (string, error) {
	if err := os.MkdirAll(c.dir, 0700); err != nil {
		return "", err
	}
	path := filepath.Join(c.dir, "screen_"+c.now().Format("20060102_150405")+".png")

	found := false
	for _, tool := range captureTools {
		if !c.runner.LookPath(tool.name) {
			continue
		}
		found = true

		if tool.name == "flameshot" {
			before := latestPNG(c.dir)
			if err := c.run(ctx, tool.name, tool.args(path)...); err != nil {
				continue
			}
			if shot := latestPNG(c.dir); shot != "" && shot != before {
				return shot, nil
			}
			continue
		}

		if err := c.run(ctx, tool.name, tool.args(path)...); err != nil {
			c.logger.Debug("screenshot tool failed", zap.String("tool", tool.name), zap.Error(err))
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	if !found {
		return "", domain.ErrNoCaptureTool
	}
	return "", fmt.Errorf("screenshot failed with every installed tool")
}

func (c *ScreenCapturerImpl) run(ctx context.Context, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, CaptureTimeout)
	defer cancel()
	return c.runner.Run(ctx, name, args...)
}

// latestPNG returns the most recently modified png in dir, or "".
func latestPNG(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var (
		best    string
		bestMod time.Time
	)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".png") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best, bestMod = filepath.Join(dir, e.Name()), info.ModTime()
		}
	}
	return best
}

// TesseractExtractor runs tesseract OCR.
type TesseractExtractor struct {
	runner CommandRunner
	lang   string
	logger *zap.Logger
}

// NewTesseractExtractor creates an English OCR extractor.
func NewTesseractExtractor(runner CommandRunner, logger *zap.Logger) *TesseractExtractor {
	return &TesseractExtractor{runner: runner, lang: "eng", logger: logger}
}

// ExtractText returns the OCR text of imagePath, or "" on any failure.
func (e *TesseractExtractor) ExtractText(ctx context.Context, imagePath string) string {
	ctx, cancel := context.WithTimeout(ctx, OCRTimeout)
	defer cancel()

	out, err := e.runner.Output(ctx, "tesseract", imagePath, "stdout", "-l", e.lang, "--psm", "3")
	if err != nil {
		e.logger.Debug("ocr failed", zap.String("image", imagePath), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(string(out))
}

var (
	_ domain.ScreenCapturer = (*ScreenCapturerImpl)(nil)
	_ domain.TextExtractor  = (*TesseractExtractor)(nil)
)
