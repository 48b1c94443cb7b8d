package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"docrag/internal/domain"
	"docrag/internal/usecase"
)

var (
	retrieveTopK int
	retrieveMode string
	retrieveJSON bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <document-id> <question>...",
	Short: "Query one document",
	Long: `Return the fragments of one document most relevant to a question.

Examples:
  docrag retrieve 3f2a9c1e-... "what is the refund policy"
  docrag retrieve my-doc refund policy -k 10 --mode permissive --json`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRetrieve,
}

func init() {
	rootCmd.AddCommand(retrieveCmd)
	retrieveCmd.Flags().IntVarP(&retrieveTopK, "top-k", "k", 0, "number of fragments (default from config)")
	retrieveCmd.Flags().StringVar(&retrieveMode, "mode", "", "match mode: strict or permissive (default from config)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output as JSON")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	a, err := buildApp(GetConfig(), GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	question := strings.Join(args[1:], " ")
	resp, err := a.retrieve.Retrieve(cmd.Context(), usecase.RetrieveRequest{
		DocumentID: args[0],
		Query:      question,
		TopK:       retrieveTopK,
		Mode:       domain.MatchMode(retrieveMode),
	})
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if retrieveJSON {
		output, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}

	if len(resp.Fragments) == 0 {
		fmt.Fprintln(out, "No fragments found.")
		return nil
	}

	header := color.New(color.FgGreen, color.Bold).SprintFunc()
	score := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintf(out, "Found %d fragments for: %s\n\n", len(resp.Fragments), question)
	for i, f := range resp.Fragments {
		fmt.Fprintf(out, "%s (score: %s)\n", header(fmt.Sprintf("--- [%d]", i+1)), score(fmt.Sprintf("%.3f", f.Score)))
		text := f.Chunk
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Fprintln(out, text)
		fmt.Fprintln(out)
	}
	return nil
}
