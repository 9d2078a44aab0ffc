package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fusiondex/internal/entities"
	"fusiondex/internal/services"
	"fusiondex/internal/teams"
)

type teamsOutput struct {
	BatchID string       `json:"batch_id"`
	Teams   []teams.Team `json:"teams"`
	Unknown []int        `json:"unknown,omitempty"`
}

func newTeamsCommand(ctx *commandContext) *cobra.Command {
	var size int
	var maxTeams int
	var greedy bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "teams <id> <id> [id...]",
		Short: "Build ranked fusion teams from a pool of ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDArgs(args)
			if err != nil {
				return services.Wrap(services.ErrValidation, "teams", "parse ids", "", err)
			}
			rt, err := ctx.ensureRuntime(cmd.Context())
			if err != nil {
				return err
			}
			if size <= 0 {
				size = rt.cfg.Teams.TeamSize
			}

			runCtx := services.WithStage(cmd.Context(), "teams")
			scores, result := rt.coordinator.PairScores(runCtx, ids)
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			pool := excludeIDs(ids, result.Unknown)
			built := rt.teamBuilder(greedy).Build(pool, size, maxTeams, scores.Get)

			if jsonOutput {
				return writeJSON(cmd, teamsOutput{BatchID: result.BatchID, Teams: built, Unknown: result.Unknown})
			}
			printTeams(cmd, rt.entities, built, result.Unknown)
			printResolveSummary(cmd, result)
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "size", 0, "Members per team (defaults to teams.team_size)")
	cmd.Flags().IntVar(&maxTeams, "max", 0, "Maximum teams to show (defaults to teams.max_teams)")
	cmd.Flags().BoolVar(&greedy, "greedy", false, "Pair members greedily instead of exactly")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printTeams(cmd *cobra.Command, dir entities.Directory, built []teams.Team, unknown []int) {
	out := cmd.OutOrStdout()
	if len(unknown) > 0 {
		fmt.Fprintf(out, "Ignored unknown ids: %s\n", joinInts(unknown))
	}
	if len(built) == 0 {
		fmt.Fprintln(out, "No teams generated")
		return
	}

	rows := make([][]string, 0, len(built))
	for i, team := range built {
		pairs := make([]string, 0, len(team.Pairs))
		for _, p := range team.Pairs {
			pairs = append(pairs, fmt.Sprintf("%s + %s (%s)", entities.Label(dir, p.A), entities.Label(dir, p.B), formatScore(p.Score)))
		}
		unpaired := make([]string, 0, len(team.Unpaired))
		for _, id := range team.Unpaired {
			unpaired = append(unpaired, entities.Label(dir, id))
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			formatScore(team.Score),
			strings.Join(pairs, "\n"),
			strings.Join(unpaired, ", "),
			team.Strategy,
		})
	}
	fmt.Fprint(out, renderTable(tableSpec{
		Headers: []string{"#", "Score", "Pairs", "Unpaired", "Matcher"},
		Aligns:  []columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft},
		Rows:    rows,
	}))
	fmt.Fprintln(out)
}

func excludeIDs(ids, drop []int) []int {
	if len(drop) == 0 {
		return ids
	}
	skip := make(map[int]bool, len(drop))
	for _, id := range drop {
		skip[id] = true
	}
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out
}
