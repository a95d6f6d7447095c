package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/wyu/textfetch/internal/catalog"
	"github.com/wyu/textfetch/internal/config"
	"github.com/wyu/textfetch/internal/runner"
	"github.com/wyu/textfetch/internal/selection"
	"github.com/wyu/textfetch/internal/transfer"
	"github.com/wyu/textfetch/pkg/ndr"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download selected textbooks",
	Long: `Download selected textbooks.

Selection modes (highest precedence first):
  --book-id     fetch one record by its identifier
  --sequence    fetch the Nth record across all catalogs
  --range       fetch an inclusive range of sequence numbers, e.g. 200-210
  --table/--item/--limit/--single
                start at a catalog coordinate and take records from there

Examples:
  textfetch fetch --sequence 431
  textfetch fetch --range 200-210
  textfetch fetch --book-id 6ba7b810-9dad-11d1-80b4-00c04fd430c8
  textfetch fetch --table 1 --item 40 --limit 10`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().Int("sequence", 0, "Global sequence number of the record to fetch")
	fetchCmd.Flags().String("range", "", "Inclusive sequence range, e.g. 200-210")
	fetchCmd.Flags().String("book-id", "", "Record identifier to fetch")
	fetchCmd.Flags().Int("single", 0, "Fetch only the Nth record from the start coordinate")
	fetchCmd.Flags().Int("limit", 0, "Stop after this many records (0 = unbounded)")
	fetchCmd.Flags().Int("table", 0, "Catalog index to start from")
	fetchCmd.Flags().Int("item", 0, "Record position within the catalog to start from")
	fetchCmd.Flags().String("output", "", "Output directory (overrides config)")
	fetchCmd.Flags().Bool("validate-pdf", false, "Structurally validate downloaded PDFs")
}

func runFetch(cmd *cobra.Command, args []string) error {
	sequence, _ := cmd.Flags().GetInt("sequence")
	rangeSpec, _ := cmd.Flags().GetString("range")
	bookID, _ := cmd.Flags().GetString("book-id")
	single, _ := cmd.Flags().GetInt("single")
	limit, _ := cmd.Flags().GetInt("limit")
	table, _ := cmd.Flags().GetInt("table")
	item, _ := cmd.Flags().GetInt("item")
	output, _ := cmd.Flags().GetString("output")
	validatePDF, _ := cmd.Flags().GetBool("validate-pdf")

	mode, err := selection.Parse(selection.Flags{
		Sequence: sequence,
		Range:    rangeSpec,
		BookID:   bookID,
		Single:   single,
		Limit:    limit,
		Table:    table,
		Item:     item,
	})
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	headers := requestHeaders(cfg)
	client := newPlatformClient(cfg, headers, logger)

	fetcher := catalog.NewRetryFetcher(client, uint(cfg.Source.Retries), cfg.Source.RetryDelay.Std(), logger)
	walker := catalog.NewWalker(fetcher,
		catalog.WithStart(mode.Start()),
		catalog.WithWalkerLogger(logger),
	)

	engineOpts := []transfer.Option{
		transfer.WithHeaders(headers),
		transfer.WithLogger(logger),
		transfer.WithMinSize(cfg.Transfer.MinValidSize),
		transfer.WithDeepValidation(validatePDF || cfg.Transfer.ValidatePDF),
	}
	if len(cfg.Transfer.Mirrors) > 0 {
		engineOpts = append(engineOpts, transfer.WithMirrors(cfg.Transfer.Mirrors))
	}
	engine := transfer.NewEngine(engineOpts...)

	outputRoot := cfg.Transfer.OutputRoot
	if output != "" {
		outputRoot = output
	}

	run := runner.New(walker, client, engine, mode, outputRoot,
		runner.WithDelay(cfg.Transfer.Delay.Std()),
		runner.WithLogger(logger),
	)

	summary, err := run.Run(cmd.Context())
	if err != nil {
		return err
	}
	return printSummary(summary)
}

// requestHeaders merges configured extra headers over the platform's
// required browser-like set.
func requestHeaders(cfg *config.Config) map[string]string {
	headers := ndr.DefaultHeaders()
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return headers
}

func newPlatformClient(cfg *config.Config, headers map[string]string, logger *slog.Logger) *ndr.Client {
	opts := []ndr.Option{
		ndr.WithLogger(logger),
		ndr.WithHeaders(headers),
	}
	if cfg.Source.BaseURL != "" {
		opts = append(opts, ndr.WithBaseURL(cfg.Source.BaseURL))
	}
	return ndr.New(opts...)
}

func printSummary(summary runner.Summary) error {
	if jsonOutput {
		type failureJSON struct {
			ID       string `json:"id"`
			Sequence int    `json:"sequence"`
			Title    string `json:"title"`
			Error    string `json:"error"`
		}
		out := struct {
			Processed int           `json:"processed"`
			Succeeded int           `json:"succeeded"`
			Failed    []failureJSON `json:"failed"`
		}{
			Processed: summary.Processed,
			Succeeded: summary.Succeeded,
			Failed:    make([]failureJSON, 0, len(summary.Failed)),
		}
		for _, f := range summary.Failed {
			out.Failed = append(out.Failed, failureJSON{
				ID:       f.Record.ID,
				Sequence: f.Record.GlobalSequence,
				Title:    f.Record.Name(),
				Error:    f.Err.Error(),
			})
		}
		if err := printJSON(out); err != nil {
			return err
		}
		if len(summary.Failed) > 0 {
			return fmt.Errorf("%d of %d records failed", len(summary.Failed), summary.Processed)
		}
		return nil
	}

	fmt.Printf("%d processed, %d succeeded, %d failed\n",
		summary.Processed, summary.Succeeded, len(summary.Failed))
	for _, f := range summary.Failed {
		fmt.Printf("  failed #%d %s (%s): %v\n",
			f.Record.GlobalSequence, f.Record.Name(), f.Record.ID, f.Err)
	}
	if len(summary.Failed) > 0 {
		return fmt.Errorf("%d of %d records failed", len(summary.Failed), summary.Processed)
	}
	return nil
}
