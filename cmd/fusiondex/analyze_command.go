package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fusiondex/internal/analyzer"
	"fusiondex/internal/fusion"
	"fusiondex/internal/services"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var limit int

	cmd := &cobra.Command{
		Use:   "analyze <id> <id> [id...]",
		Short: "Score every fusion pair of the given ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDArgs(args)
			if err != nil {
				return services.Wrap(services.ErrValidation, "analyze", "parse ids", "", err)
			}
			rt, err := ctx.ensureRuntime(cmd.Context())
			if err != nil {
				return err
			}

			runCtx := services.WithStage(cmd.Context(), "analyze")
			result := rt.coordinator.Resolve(runCtx, ids)
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			if limit > 0 && len(result.Fusions) > limit {
				result.Fusions = result.Fusions[:limit]
			}

			if jsonOutput {
				return writeJSON(cmd, result)
			}
			printAnalysis(cmd, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the top N fusions (0 shows all)")
	return cmd
}

func printAnalysis(cmd *cobra.Command, result analyzer.Result) {
	out := cmd.OutOrStdout()
	if len(result.Unknown) > 0 {
		fmt.Fprintf(out, "Ignored unknown ids: %s\n", joinInts(result.Unknown))
	}
	if len(result.Fusions) == 0 {
		fmt.Fprintln(out, "No fusions available")
		printResolveSummary(cmd, result)
		return
	}

	rows := make([][]string, 0, len(result.Fusions))
	for _, f := range result.Fusions {
		s := f.Stats
		rows = append(rows, []string{
			string(f.Key),
			f.Name,
			strings.Join(f.Types, "/"),
			strconv.Itoa(s.Total),
			formatScore(f.DefensiveScore),
			formatScore(f.BulkScore),
			strconv.Itoa(s.HP),
			strconv.Itoa(s.ATK),
			strconv.Itoa(s.DEF),
			strconv.Itoa(s.SpAtk),
			strconv.Itoa(s.SpDef),
			strconv.Itoa(s.Speed),
			strconv.Itoa(f.Immunities),
			strconv.Itoa(f.Resists),
			strconv.Itoa(f.Weak2x),
			strconv.Itoa(f.Weak4x),
			strings.Join(f.Weaknesses[fusion.BucketQuadruple], ", "),
		})
	}
	right := alignRight
	fmt.Fprint(out, renderTable(tableSpec{
		Headers: []string{"Fusion", "Name", "Types", "Total", "Def", "Bulk", "HP", "ATK", "DEF", "SPA", "SPD", "SPE", "Imm", "Res", "2x", "4x", "4x Types"},
		Aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, right, right, right, right, right, right, right, right, right, right, right, right, right, alignLeft},
		Rows:    rows,
	}))
	fmt.Fprintln(out)
	printResolveSummary(cmd, result)
}

func printResolveSummary(cmd *cobra.Command, result analyzer.Result) {
	fmt.Fprintf(cmd.OutOrStdout(), "Pairs: %d cached, %d fetched, %d failed, %d skipped (batch %s)\n",
		result.Cached, result.Fetched, result.Failed, result.Skipped, result.BatchID)
}
