package main

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/totalctl/internal/classifier"
	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent screen analyses",
	Long:  `Shows the most recent OCR screen analyses recorded by the monitor. Use --stats for distributions.`,
	RunE:  runHistory,
}

var (
	historyLimit int
	historyStats bool
)

// topApps is how many apps --stats lists.
const topApps = 10

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of records")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "Show category and app distributions")
	rootCmd.AddCommand(historyCmd)
}

type countEntry struct {
	Name  string
	Count int
}

// screenStats are the category and app distributions of a set of analyses.
type screenStats struct {
	Total      int
	Categories []countEntry
	Apps       []countEntry
}

func computeStats(records []domain.ScreenAnalysis) screenStats {
	cats := make(map[string]int)
	apps := make(map[string]int)
	for _, r := range records {
		cats[string(r.Category)]++
		app := r.AppHint
		if app == "" {
			app = "unknown"
		}
		apps[app]++
	}

	stats := screenStats{
		Total:      len(records),
		Categories: sortedCounts(cats),
		Apps:       sortedCounts(apps),
	}
	if len(stats.Apps) > topApps {
		stats.Apps = stats.Apps[:topApps]
	}
	return stats
}

// sortedCounts orders by count descending, then name.
func sortedCounts(m map[string]int) []countEntry {
	out := make([]countEntry, 0, len(m))
	for name, n := range m {
		out = append(out, countEntry{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Recent(historyLimit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No screen history. Enable ocr_blocking and run the monitor.")
		return nil
	}

	if historyStats {
		printStats(computeStats(records))
		return nil
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("=== Last %d screens ===", len(records))))
	for _, r := range records {
		app := r.AppHint
		if app == "" {
			app = "unknown"
		}
		fmt.Printf("%s  %-14s %-12s %3.0f%%  %s\n",
			faintStyle.Render(r.Timestamp.Format("2006-01-02 15:04:05")),
			app, r.Category, r.Confidence*100, verdict(r.ShouldBlock))
	}
	return nil
}

func printStats(s screenStats) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("=== Screen stats (%s records) ===", humanize.Comma(int64(s.Total)))))

	fmt.Println("\nScreen type distribution:")
	for _, c := range s.Categories {
		action := "ALLOW"
		if classifier.ShouldBlockText(domain.TextCategory(c.Name)) {
			action = "BLOCK"
		}
		fmt.Printf("  %-14s %5d  %s\n", c.Name, c.Count, action)
	}

	fmt.Println("\nApp distribution:")
	for _, a := range s.Apps {
		fmt.Printf("  %-20s %5d\n", a.Name, a.Count)
	}
}
