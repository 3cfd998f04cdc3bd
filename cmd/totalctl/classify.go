package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/totalctl/internal/classifier"
	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
	"github.com/eliteGoblin/focusd/totalctl/internal/infra"
	"github.com/eliteGoblin/focusd/totalctl/internal/usecase"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a window title, a text, or the current screen",
}

var classifyWindowCmd = &cobra.Command{
	Use:   "window CLASS TITLE",
	Short: "Classify a window by its class and title",
	Args:  cobra.ExactArgs(2),
	RunE:  runClassifyWindow,
}

var classifyTextCmd = &cobra.Command{
	Use:   "text [TEXT]",
	Short: "Classify OCR text (argument or stdin)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClassifyText,
}

var classifyScreenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Capture the screen, OCR it and classify the result",
	RunE:  runClassifyScreen,
}

var (
	appHint    string
	recordShot bool
)

func init() {
	classifyTextCmd.Flags().StringVar(&appHint, "app", "", "App hint (e.g. twitter, discord)")
	classifyScreenCmd.Flags().BoolVar(&recordShot, "record", false, "Store the analysis in history")

	classifyCmd.AddCommand(classifyWindowCmd, classifyTextCmd, classifyScreenCmd)
	rootCmd.AddCommand(classifyCmd)
}

func runClassifyWindow(cmd *cobra.Command, args []string) error {
	c := classifier.NewWindowClassifier()
	app, category := c.Classify(args[0], args[1])
	d := c.Decide(args[0], args[1])

	fmt.Printf("%s  %s\n", verdict(d.ShouldBlock), d.Reason)
	fmt.Printf("  app: %s\n", app)
	fmt.Printf("  category: %s\n", category)
	return nil
}

func runClassifyText(cmd *cobra.Command, args []string) error {
	var text string
	if len(args) == 1 {
		text = args[0]
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read text: %w", err)
		}
		text = string(data)
	}

	a := usecase.NewScreenAnalyzer(nil, nil, nil, classifier.NewTextClassifier(), nil, true, cliLogger()).
		AnalyzeText(text, appHint, "")
	printAnalysis(a)
	return nil
}

func runClassifyScreen(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	runner := infra.NewCommandRunner(cfg.CommandTimeout)

	var history domain.AnalysisHistory
	if recordShot {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		history = store
	}

	analyzer := usecase.NewScreenAnalyzer(
		infra.NewScreenCapturer(cfg.ScreenshotDir(), runner, logger),
		infra.NewTesseractExtractor(runner, logger),
		infra.NewX11WindowSource(runner),
		classifier.NewTextClassifier(),
		history,
		cfg.KeepScreenshots,
		logger,
	)

	a, err := analyzer.Analyze(cmd.Context())
	if err != nil {
		return err
	}
	if recordShot {
		analyzer.Record(a)
	}
	printAnalysis(a)
	return nil
}

func printAnalysis(a domain.ScreenAnalysis) {
	fmt.Printf("%s  %s (%.0f%%)\n", verdict(a.ShouldBlock), a.Category, a.Confidence*100)
	if a.AppHint != "" {
		fmt.Printf("  app: %s\n", a.AppHint)
	}
	if len(a.MatchedPatterns) > 0 {
		fmt.Printf("  matched: %s\n", strings.Join(a.MatchedPatterns, ", "))
	}
	fmt.Printf("  hash: %s\n", a.TextHash)
	if a.ScreenshotPath != "" {
		fmt.Printf("  screenshot: %s\n", a.ScreenshotPath)
	}
}
