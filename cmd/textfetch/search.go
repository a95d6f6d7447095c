package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wyu/textfetch/internal/snapshot"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Search the snapshot for textbooks by title",
	Long: `Search the snapshot for textbooks by title.

Matches fuzzily against publisher and title, so partial or slightly
misspelled queries still find the record. Run 'textfetch snapshot'
first to capture the catalog.

Examples:
  textfetch search 数学
  textfetch search --limit 5 语文一年级`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().Int("limit", 10, "Maximum number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.Snapshot.Database); err != nil {
		return fmt.Errorf("no snapshot database at %s, run 'textfetch snapshot' first", cfg.Snapshot.Database)
	}

	db, err := openSnapshotDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	matches, err := snapshot.NewStore(db).SearchTitle(query, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		type matchJSON struct {
			Sequence int     `json:"sequence"`
			ID       string  `json:"id"`
			Name     string  `json:"name"`
			Score    float32 `json:"score"`
		}
		out := make([]matchJSON, 0, len(matches))
		for _, m := range matches {
			out = append(out, matchJSON{
				Sequence: m.Record.GlobalSequence,
				ID:       m.Record.ID,
				Name:     m.Record.Name(),
				Score:    m.Score,
			})
		}
		return printJSON(out)
	}

	if len(matches) == 0 {
		fmt.Println("No records found")
		return nil
	}
	for _, m := range matches {
		fmt.Printf("#%-6d %.2f  %s  (%s)\n", m.Record.GlobalSequence, m.Score, m.Record.Name(), m.Record.ID)
	}
	return nil
}
