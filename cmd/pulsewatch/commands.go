package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"PulseWatch/internal/app"
	"PulseWatch/internal/domain"
	"PulseWatch/internal/usecase"
)

func newServeCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, scheduled jobs and the candidate consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd.Context(), func(a *app.Application) error {
				return a.Serve(cmd.Context())
			})
		},
	}
}

func newAnalyzeCommand(cc *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Classify a batch of unanalyzed posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd.Context(), func(a *app.Application) error {
				result, err := a.Analyze(cmd.Context(), limit)
				if err != nil && result.RunID == "" {
					return err
				}
				if asJSON {
					if werr := writeJSON(cmd, result); werr != nil {
						return werr
					}
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), renderTable(
						[]string{"Run", "Analyzed", "Failed"},
						[][]string{{result.RunID, strconv.Itoa(result.Analyzed), strconv.Itoa(result.Failed)}},
						[]columnAlignment{alignLeft, alignRight, alignRight},
					))
					fmt.Fprintln(cmd.OutOrStdout(), result.Message)
					for _, e := range result.Errors {
						fmt.Fprintln(cmd.ErrOrStderr(), "  -", e)
					}
				}
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Posts to analyze (1-50, defaults to the configured batch size)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func newIngestCommand(cc *commandContext) *cobra.Command {
	var file string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Store candidates read from a JSON file (use - for stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			candidates, err := readCandidates(cmd, file)
			if err != nil {
				return err
			}
			return cc.withApp(cmd.Context(), func(a *app.Application) error {
				result, err := a.Ingest(cmd.Context(), candidates)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, result)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Received", "Stored", "Duplicates", "Too short", "Failed batches"},
					[][]string{{
						strconv.Itoa(result.Received),
						strconv.Itoa(result.Stored),
						strconv.Itoa(result.Duplicates),
						strconv.Itoa(result.TooShort),
						strconv.Itoa(result.FailedBatches),
					}},
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file holding an array of candidates or {\"candidates\": [...]}")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

// readCandidates accepts either a bare JSON array or an object with a candidates field.
func readCandidates(cmd *cobra.Command, file string) ([]domain.Candidate, error) {
	var r io.Reader = cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open candidates: %w", err)
		}
		defer f.Close()
		r = f
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}
	return decodeCandidates(raw)
}

func decodeCandidates(raw []byte) ([]domain.Candidate, error) {
	var list []domain.Candidate
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Candidates []domain.Candidate `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	return wrapped.Candidates, nil
}

func newCleanupCommand(cc *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove duplicate posts and their analyses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd.Context(), func(a *app.Application) error {
				result, err := a.Cleanup(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, result)
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.Message)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func newHealthCommand(cc *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show store statistics and the derived health status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd.Context(), func(a *app.Application) error {
				report := a.Health(cmd.Context())
				if asJSON {
					return writeJSON(cmd, report)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderHealth(report))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func renderHealth(report usecase.HealthReport) string {
	rows := [][]string{
		{"Status", string(report.Status)},
		{"Database", yesNo(report.DatabaseConnected)},
	}
	if s := report.Statistics; s != nil {
		rows = append(rows,
			[]string{"Total posts", strconv.Itoa(s.TotalPosts)},
			[]string{"Analyzed", strconv.Itoa(s.TotalAnalyzed)},
			[]string{"Posts today", strconv.Itoa(s.PostsToday)},
			[]string{"Avg sentiment", formatScore(s.AvgSentimentScore)},
			[]string{"Last post", formatTimePtr(s.LastPostTime)},
			[]string{"Last analysis", formatTimePtr(s.LastAnalysisTime)},
		)
	}
	out := renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})

	if len(report.SentimentDistribution) > 0 {
		dist := make([][]string, 0, len(report.SentimentDistribution))
		for _, bucket := range report.SentimentDistribution {
			dist = append(dist, []string{string(bucket.Sentiment), strconv.Itoa(bucket.Count)})
		}
		out += "\n" + renderTable([]string{"Sentiment", "Posts"}, dist, []columnAlignment{alignLeft, alignRight})
	}

	if len(report.RecentEvents) > 0 {
		events := make([][]string, 0, len(report.RecentEvents))
		for _, e := range report.RecentEvents {
			events = append(events, []string{e.RecordedAt.Local().Format(time.DateTime), e.MetricName})
		}
		out += "\n" + renderTable([]string{"Recorded", "Event"}, events, nil)
	}
	return out
}

func newAnalyticsCommand(cc *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show top topics, keywords and the weekly sentiment timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd.Context(), func(a *app.Application) error {
				report, err := a.Analytics(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, report)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderAnalytics(report))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func renderAnalytics(report usecase.AnalyticsReport) string {
	topics := make([][]string, 0, len(report.TopTopics))
	for _, t := range report.TopTopics {
		topics = append(topics, []string{t.Topic, strconv.Itoa(t.Count)})
	}
	out := renderTable([]string{"Topic", "Posts"}, topics, []columnAlignment{alignLeft, alignRight})

	if len(report.TopKeywords) > 0 {
		keywords := make([][]string, 0, len(report.TopKeywords))
		for _, k := range report.TopKeywords {
			keywords = append(keywords, []string{k.Keyword, strconv.Itoa(k.Count)})
		}
		out += "\n" + renderTable([]string{"Keyword", "Mentions"}, keywords, []columnAlignment{alignLeft, alignRight})
	}

	days := make([][]string, 0, len(report.Timeline))
	for _, d := range report.Timeline {
		avg := d.AvgScore
		days = append(days, []string{
			d.Date,
			strconv.Itoa(d.Positive),
			strconv.Itoa(d.Negative),
			strconv.Itoa(d.Neutral),
			strconv.Itoa(d.Total),
			formatScore(&avg),
		})
	}
	out += "\n" + renderTable(
		[]string{"Day", "Positive", "Negative", "Neutral", "Total", "Avg score"},
		days,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
	return out
}

func newConfigCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
			if err := cfg.Validate(); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "configuration problems:")
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
			return nil
		},
	}
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return strconv.FormatFloat(*score, 'f', 3, 64)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
