package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"quiz-learning-service/internal/config"
	"quiz-learning-service/internal/domain"
	"quiz-learning-service/internal/logging"
)

// NewRankingCmd prints the current leaderboard.
func NewRankingCmd(configPath *string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ranking",
		Short: "Print the student ranking",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

			d, err := buildDeps(cmd.Context(), cfg, log, nil)
			if err != nil {
				return err
			}
			defer d.Close()

			ranking, err := d.services.Ranking.BuildRanking(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(ranking)
			}
			printRanking(cmd.OutOrStdout(), ranking)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printRanking(w io.Writer, ranking domain.Ranking) {
	if len(ranking.Entries) == 0 {
		fmt.Fprintln(w, "no finished sessions yet")
		return
	}
	header := color.New(color.Bold)
	header.Fprintf(w, "%-4s %-30s %8s %8s %8s\n", "#", "STUDENT", "AVERAGE", "MODULES", "CORRECT")
	for _, e := range ranking.Entries {
		line := fmt.Sprintf("%-4d %-30s %8s %8d %8d", e.Position, e.Student.Name, e.AverageNota.StringFixed(3), e.ModulesCompleted, e.TotalCorrect)
		if e.Position == 1 {
			color.New(color.FgYellow).Fprintln(w, line)
			continue
		}
		fmt.Fprintln(w, line)
	}
}
