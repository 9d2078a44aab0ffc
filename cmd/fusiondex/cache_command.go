package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"fusiondex/internal/fusion"
	"fusiondex/internal/fusioncache"
	"fusiondex/internal/logging"
	"fusiondex/internal/services"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the fusion cache",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheAuditCommand(ctx))
	cacheCmd.AddCommand(newCacheSpritesCommand(ctx))
	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache and fetch ledger statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.ensureRuntime(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cache file:     %s\n", rt.cfg.Paths.CacheFile)
			fmt.Fprintf(out, "Loaded from:    %s\n", rt.cache.Source())
			fmt.Fprintf(out, "Entries:        %d\n", rt.cache.Len())
			fmt.Fprintf(out, "Writes enabled: %s\n", yesNo(!rt.cache.ReadOnly()))
			fmt.Fprintf(out, "Workers:        %d\n", rt.coordinator.Workers())
			fmt.Fprintf(out, "Offline:        %s\n", yesNo(rt.coordinator.Offline()))

			if rt.ledger == nil {
				fmt.Fprintln(out, "Fetch ledger:   unavailable")
				return nil
			}
			summary, err := rt.ledger.Summary(cmd.Context())
			if err != nil {
				return fmt.Errorf("ledger summary: %w", err)
			}
			fmt.Fprintf(out, "Batches:        %d (%d fetched, %d cached, %d failed pairs)\n",
				summary.Batches, summary.Fetched, summary.Cached, summary.Failed)
			if summary.LastBatch != nil {
				fmt.Fprintf(out, "Last batch:     %s at %s (%s)\n",
					summary.LastBatch.ID,
					summary.LastBatch.StartedAt.Local().Format("2006-01-02 15:04:05"),
					summary.LastBatch.Duration().Round(time.Millisecond))
			}
			if len(summary.ByReason) > 0 {
				reasons := make([]string, 0, len(summary.ByReason))
				for reason := range summary.ByReason {
					reasons = append(reasons, reason)
				}
				sort.Strings(reasons)
				rows := make([][]string, 0, len(reasons))
				for _, reason := range reasons {
					rows = append(rows, []string{reason, strconv.Itoa(summary.ByReason[reason])})
				}
				fmt.Fprint(out, renderTable(tableSpec{
					Title:   "Fetch failures",
					Headers: []string{"Reason", "Count"},
					Aligns:  []columnAlignment{alignLeft, alignRight},
					Rows:    rows,
				}))
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

type auditOutput struct {
	Entries        int          `json:"entries"`
	Source         string       `json:"source"`
	MissingStats   []fusion.Key `json:"missing_stats"`
	MissingSprites []fusion.Key `json:"missing_sprites"`
	Complete       bool         `json:"complete"`
}

func newCacheAuditCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report cache entries lacking stats or a local sprite",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.ensureRuntime(cmd.Context())
			if err != nil {
				return err
			}
			report := rt.cache.Audit(rt.cfg.Paths.SpritesDir)
			if jsonOutput {
				return writeJSON(cmd, auditOutput{
					Entries:        report.Entries,
					Source:         string(report.Source),
					MissingStats:   report.MissingStats,
					MissingSprites: report.MissingSprites,
					Complete:       report.Complete(),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Entries: %d (loaded from %s)\n", report.Entries, report.Source)
			fmt.Fprintf(out, "Missing stats: %d\n", len(report.MissingStats))
			fmt.Fprintf(out, "Missing sprites: %d\n", len(report.MissingSprites))
			if report.Complete() {
				fmt.Fprintln(out, "Cache is complete")
				return nil
			}
			rows := auditRows(report, limit)
			fmt.Fprint(out, renderTable(tableSpec{
				Headers: []string{"Fusion", "Problem"},
				Rows:    rows,
			}))
			fmt.Fprintln(out)
			if len(report.MissingSprites) > 0 {
				fmt.Fprintln(out, "Run `fusiondex cache sprites` to download missing sprites.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum problem rows to list")
	return cmd
}

func auditRows(report fusioncache.AuditReport, limit int) [][]string {
	var rows [][]string
	for _, key := range report.MissingStats {
		rows = append(rows, []string{string(key), "missing stats"})
	}
	for _, key := range report.MissingSprites {
		rows = append(rows, []string{string(key), "missing sprite"})
	}
	if limit > 0 && len(rows) > limit {
		rows = append(rows[:limit], []string{"...", fmt.Sprintf("%d more", len(rows)-limit)})
	}
	return rows
}

func newCacheSpritesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sprites",
		Short: "Download sprites for cached entries that lack a local file",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.ensureRuntime(cmd.Context())
			if err != nil {
				return err
			}
			if rt.cfg.Fetch.Offline {
				return services.Wrap(services.ErrConfiguration, "cache", "sprites", "sprite download is disabled in offline mode", nil)
			}
			dir := rt.cfg.Paths.SpritesDir
			pending := make(map[fusion.Key]fusion.Record)
			for key, rec := range rt.cache.Snapshot() {
				if rec.SpriteURL == "" || fusioncache.HasLocalSprite(dir, rec) {
					continue
				}
				rec.LocalSprite = ""
				pending[key] = rec
			}
			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "No sprites to download")
				return nil
			}

			logger := logging.NewComponentLogger(rt.logger, "cache")
			logger.Info("downloading sprites", logging.Int("pending", len(pending)))
			attached := rt.sprites.Attach(services.WithStage(cmd.Context(), "sprites"), pending)

			updated := make(map[fusion.Key]fusion.Record, attached)
			for key, rec := range pending {
				if rec.LocalSprite != "" {
					updated[key] = rec
				}
			}
			if err := rt.cache.MergeAndPersist(cmd.Context(), updated); err != nil {
				return fmt.Errorf("persist sprite names: %w", err)
			}
			fmt.Fprintf(out, "Downloaded %d of %d sprites into %s\n", attached, len(pending), dir)
			return nil
		},
	}
}
