package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/timmy/sportsclips/internal/logger"
)

func newAdaptersCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List registered source adapters",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cc.open(cmd.Context())
			if err != nil {
				return err
			}
			var rows [][]string
			for _, m := range a.Registry.Metadata() {
				caps := []string{}
				if m.Capabilities.Odds {
					caps = append(caps, "odds")
				}
				if m.Capabilities.Results {
					caps = append(caps, "results")
				}
				rows = append(rows, []string{string(m.Type), m.DisplayName, strings.Join(caps, ","), itoa(m.RecommendedMinIntervalMinutes)})
			}
			writeTable(cmd.OutOrStdout(), []string{"Type", "Name", "Extras", "Min interval (m)"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight})
			return nil
		},
	}
}

func newSourcesCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured sources and their health",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cc.open(cmd.Context())
			if err != nil {
				return err
			}
			sources, err := a.Sources.List(cmd.Context(), a.Config.Server.OrgID)
			if err != nil {
				return err
			}
			var rows [][]string
			for _, s := range sources {
				rows = append(rows, []string{
					s.ID, truncate(s.Name, 32), string(s.Type), string(s.Status),
					itoa(s.FetchCount), itoa(s.ConsecutiveErrors), formatTime(s.NextFetchAt),
				})
			}
			writeTable(cmd.OutOrStdout(), []string{"ID", "Name", "Type", "Status", "Fetches", "Errors", "Next fetch"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft})
			return nil
		},
	}
}

func newFetchCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <source-id>",
		Short: "Trigger a manual fetch of a source and execute it in-process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := cc.open(ctx)
			if err != nil {
				return err
			}
			run, err := a.Scheduler.TriggerSource(ctx, args[0])
			if err != nil {
				return err
			}
			outcome, err := a.Fetch.ExecuteRun(ctx, run.ID)
			if err != nil {
				return err
			}
			writeTable(cmd.OutOrStdout(), []string{"Run", "Status", "Fetched", "New", "Odds", "Results"}, [][]string{{
				outcome.RunID, string(outcome.Status), itoa(outcome.ItemsFetched), itoa(outcome.NewItems),
				itoa(outcome.Odds), itoa(outcome.Results),
			}}, []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight})
			return nil
		},
	}
}

func newRunCommand(cc *commandContext) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "run <query-id>",
		Short: "Trigger a manual query run and execute the clip pipeline in-process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := cc.open(ctx)
			if err != nil {
				return err
			}
			run, err := a.Scheduler.TriggerQuery(ctx, args[0])
			if err != nil {
				return err
			}
			outcome, err := a.Pipeline.ExecuteRun(ctx, run.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			p := outcome.Progress
			fmt.Fprintf(out, "Run %s %s: %d videos, %d transcripts, %d candidates, %d failed\n",
				outcome.RunID, outcome.Status, p.VideosFetched, p.TranscriptsFetched, p.CandidatesProduced, p.FailedItems)

			var rows [][]string
			for i, c := range outcome.Candidates {
				if i >= top {
					break
				}
				title := c.VideoID
				if c.Video != nil {
					title = c.Video.Title
				}
				rows = append(rows, []string{itoa(i + 1), formatScore(c.RelevanceScore), truncate(title, 60), itoa(len(c.Moments))})
			}
			if len(rows) > 0 {
				writeTable(out, []string{"#", "Score", "Title", "Moments"}, rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignRight})
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "Number of candidates to print")
	return cmd
}

func newRunsCommand(cc *commandContext) *cobra.Command {
	var sourceID, queryID string
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent fetch runs or query runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := cc.open(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if queryID != "" {
				runs, err := a.Runs.ListQueryRuns(ctx, queryID, limit)
				if err != nil {
					return err
				}
				var rows [][]string
				for _, r := range runs {
					rows = append(rows, []string{
						r.ID, string(r.Trigger), string(r.Status), itoa(r.Progress) + "%",
						itoa(r.CandidatesProduced), formatTime(&r.QueuedAt), truncate(r.ErrorMessage, 40),
					})
				}
				writeTable(out, []string{"Run", "Trigger", "Status", "Progress", "Candidates", "Queued", "Error"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft})
				return nil
			}

			runs, err := a.Runs.ListFetchRuns(ctx, sourceID, limit)
			if err != nil {
				return err
			}
			var rows [][]string
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID, r.SourceID, string(r.Trigger), string(r.Status),
					itoa(r.ItemsFetched), itoa(r.NewItems), formatTime(&r.QueuedAt), truncate(r.ErrorMessage, 40),
				})
			}
			writeTable(out, []string{"Run", "Source", "Trigger", "Status", "Fetched", "New", "Queued", "Error"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft})
			return nil
		},
	}
	cmd.Flags().StringVar(&sourceID, "source", "", "Only fetch runs of this source")
	cmd.Flags().StringVar(&queryID, "query", "", "Show query runs of this definition instead of fetch runs")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to show")
	return cmd
}

func newTickCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduler pass, enqueueing every due source and query",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := cc.open(ctx)
			if err != nil {
				return err
			}
			if !a.Config.Redis.Enabled {
				logger.CtxWarn(ctx, "Redis queue disabled: runs enqueued by this tick are requeued when a worker or the API starts, and failed after %s otherwise",
					a.Config.Scheduler.StaleRunTimeout)
			}
			res, err := a.Scheduler.RunOnce(ctx)
			if err != nil {
				return err
			}
			writeTable(cmd.OutOrStdout(), []string{"Sources", "Queries", "Skipped", "Failed", "Reaped"}, [][]string{{
				itoa(res.SourcesEnqueued), itoa(res.QueriesEnqueued), itoa(res.Skipped), itoa(res.Failed),
				fmt.Sprint(res.Reaped),
			}}, []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight})
			return nil
		},
	}
}

func newPairCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pair <news-id>",
		Short: "Re-pair one news item with candidate clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := cc.open(ctx)
			if err != nil {
				return err
			}
			matches, err := a.Pairing.PairNewsItem(ctx, args[0])
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching clips")
				return nil
			}
			var rows [][]string
			for _, m := range matches {
				rows = append(rows, []string{m.CandidateID, formatScore(m.MatchScore), strings.Join(m.MatchReasons, "; ")})
			}
			writeTable(cmd.OutOrStdout(), []string{"Candidate", "Score", "Reasons"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft})
			return nil
		},
	}
}

func newPairPendingCommand(cc *commandContext) *cobra.Command {
	var minImportance float64
	var limit int
	cmd := &cobra.Command{
		Use:   "pair-pending",
		Short: "Pair every unpaired news item above the importance threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := cc.open(ctx)
			if err != nil {
				return err
			}
			stats, err := a.Pairing.PairPending(ctx, minImportance, limit)
			if err != nil {
				return err
			}
			writeTable(cmd.OutOrStdout(), []string{"Considered", "Paired", "Unmatched", "Failed"}, [][]string{{
				itoa(stats.Considered), itoa(stats.Paired), itoa(stats.Unmatched), itoa(stats.Failed),
			}}, []columnAlignment{alignRight, alignRight, alignRight, alignRight})
			return nil
		},
	}
	cmd.Flags().Float64Var(&minImportance, "min-importance", 0, "Minimum importance score (0 uses the configured value)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum items to pair (0 uses the configured value)")
	return cmd
}

func newWorkerCommand(cc *commandContext) *cobra.Command {
	var withScheduler bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume queued runs until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			a, err := cc.open(ctx)
			if err != nil {
				return err
			}
			pool := a.Workers()
			pool.Start(ctx)
			if withScheduler {
				go a.Scheduler.Start(ctx)
			}
			logger.CtxInfo(ctx, "Worker running, press Ctrl+C to stop")
			<-ctx.Done()
			pool.Wait()
			return nil
		},
	}
	cmd.Flags().BoolVar(&withScheduler, "scheduler", false, "Also run the scheduler loop")
	return cmd
}
