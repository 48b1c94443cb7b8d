package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docrag/internal/usecase"
)

var (
	ingestDocID string
	ingestJSON  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|dir|->...",
	Short: "Ingest documents",
	Long: `Extract, chunk and store documents. Directories are walked with the
configured include/exclude patterns and extension whitelist. "-" reads plain
text from stdin.

Examples:
  docrag ingest report.pdf
  docrag ingest Data/
  echo "some text" | docrag ingest --id notes -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestDocID, "id", "", "document id for stdin input (default: generated)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output as JSON")
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := buildApp(GetConfig(), GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	_ = a.store.EnsureSchema(ctx)

	var results []*usecase.IngestResult
	var problems []string

	for _, arg := range args {
		if arg == "-" {
			text, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			res, err := a.ingest.Ingest(ctx, ingestDocID, string(text))
			if err != nil {
				return err
			}
			res.Name = "stdin"
			results = append(results, res)
			continue
		}

		info, err := os.Stat(arg)
		if err != nil {
			return fmt.Errorf("path does not exist: %w", err)
		}

		if info.IsDir() {
			batch, err := a.ingest.IngestDir(ctx, arg, newProgress(ingestJSON))
			if err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}
			results = append(results, batch.Documents...)
			problems = append(problems, batch.Errors...)
			continue
		}

		data, err := os.ReadFile(arg)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", arg, err)
		}
		res, err := a.ingest.IngestFile(ctx, filepath.Base(arg), data)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", arg, err))
			continue
		}
		res.Name = arg
		results = append(results, res)
	}

	if ingestJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(output))
	} else {
		printIngestSummary(cmd.OutOrStdout(), results, problems)
	}

	if len(results) == 0 && len(problems) > 0 {
		return fmt.Errorf("nothing ingested")
	}
	return nil
}

func printIngestSummary(w io.Writer, results []*usecase.IngestResult, problems []string) {
	id := color.New(color.FgCyan).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "\nIngestion complete:\n")
	for _, r := range results {
		line := fmt.Sprintf("  %s  %s  %d chunks", id(r.DocumentID), r.Name, r.ChunkCount)
		if r.Failed > 0 {
			line += warn(fmt.Sprintf(" (%d failed to store)", r.Failed))
		}
		fmt.Fprintln(w, line)
	}

	if len(problems) > 0 {
		fmt.Fprintf(w, "\nWarnings:\n")
		for _, p := range problems {
			fmt.Fprintf(w, "  - %s\n", warn(p))
		}
	}
}

// newProgress returns a progress callback that draws a bar on stderr once the
// file count is known.
func newProgress(quiet bool) usecase.ProgressFunc {
	if quiet {
		return nil
	}

	var bar *progressbar.ProgressBar
	var mu sync.Mutex
	var start time.Time

	return func(processed, total int, current string) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			start = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			)
		}

		bar.Set(processed)

		elapsed := time.Since(start)
		if remaining := total - processed; remaining > 0 && elapsed > 0 {
			perFile := elapsed / time.Duration(processed)
			bar.Describe(fmt.Sprintf("[cyan]Ingesting[reset] ETA: %s", formatDuration(perFile*time.Duration(remaining))))
		}
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
