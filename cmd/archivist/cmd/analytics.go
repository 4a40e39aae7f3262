package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	aerrors "github.com/Aman-CERP/archivist/internal/errors"
	"github.com/Aman-CERP/archivist/internal/output"
	"github.com/Aman-CERP/archivist/internal/search"
	"github.com/Aman-CERP/archivist/internal/store"
)

// dateFlags are the --start/--end flags shared by the analytics commands.
type dateFlags struct {
	start string
	end   string
}

func (d *dateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.start, "start", "", "Start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&d.end, "end", "", "End date, YYYY-MM-DD")
}

// openAnalytics opens the entity store for a read-only analytics command.
func openAnalytics(g *globalOptions) (*app, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return openApp(cfg, openOptions{requireEntities: true, lexicalOnly: true})
}

func parseGranularity(s string) (store.Granularity, error) {
	gran, err := store.ParseGranularity(s, store.GranularityMonth)
	if err != nil {
		return "", aerrors.New(aerrors.ErrCodeInvalidGranularity, err.Error(), nil)
	}
	return gran, nil
}

func newTimelineCmd(g *globalOptions) *cobra.Command {
	var (
		dates       dateFlags
		granularity string
	)
	cmd := &cobra.Command{
		Use:   "timeline <entity>",
		Short: "Coverage timeline of a person, organization or concept",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := g.writer(cmd)
			if err != nil {
				return err
			}
			entity := strings.Join(args, " ")
			dr, err := parseDates(dates.start, dates.end)
			if err != nil {
				return err
			}
			gran, err := parseGranularity(granularity)
			if err != nil {
				return err
			}

			a, err := openAnalytics(g)
			if err != nil {
				return err
			}
			defer a.Close()

			buckets, err := a.engine.EntityTimeline(cmd.Context(), entity, dr, gran)
			if err != nil {
				return err
			}
			return out.Result(buckets, search.FormatTimeline(entity, buckets))
		},
	}
	dates.register(cmd)
	cmd.Flags().StringVarP(&granularity, "granularity", "g", "month", "Bucket size: day, week, month")
	return cmd
}

func newTrendCmd(g *globalOptions) *cobra.Command {
	var (
		dates       dateFlags
		granularity string
	)
	cmd := &cobra.Command{
		Use:   "trend <keyword>",
		Short: "Keyword frequency over time with co-occurring entities",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := g.writer(cmd)
			if err != nil {
				return err
			}
			keyword := strings.Join(args, " ")
			dr, err := parseDates(dates.start, dates.end)
			if err != nil {
				return err
			}
			gran, err := parseGranularity(granularity)
			if err != nil {
				return err
			}

			a, err := openAnalytics(g)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.engine.Trend(cmd.Context(), keyword, dr, gran)
			if err != nil {
				return err
			}
			return out.Result(report, search.FormatTrend(report))
		},
	}
	dates.register(cmd)
	cmd.Flags().StringVarP(&granularity, "granularity", "g", "month", "Bucket size: day, week, month")
	return cmd
}

func newSourceCmd(g *globalOptions) *cobra.Command {
	var (
		dates dateFlags
		topic string
	)
	cmd := &cobra.Command{
		Use:   "source <media>",
		Short: "Documents attributed to a media outlet",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := g.writer(cmd)
			if err != nil {
				return err
			}
			media := strings.Join(args, " ")
			dr, err := parseDates(dates.start, dates.end)
			if err != nil {
				return err
			}

			a, err := openAnalytics(g)
			if err != nil {
				return err
			}
			defer a.Close()

			docs, err := a.engine.SearchBySource(cmd.Context(), media, topic, dr)
			if err != nil {
				return err
			}
			return out.Result(docs, search.FormatSources(media, docs))
		},
	}
	dates.register(cmd)
	cmd.Flags().StringVar(&topic, "topic", "", "Only documents mentioning this topic")
	return cmd
}

func newEntityCmd(g *globalOptions) *cobra.Command {
	var (
		dates dateFlags
		typ   string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "entity <name>",
		Short: "Documents linked to an entity, newest first",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := g.writer(cmd)
			if err != nil {
				return err
			}
			name := strings.Join(args, " ")
			dr, err := parseDates(dates.start, dates.end)
			if err != nil {
				return err
			}
			et, err := store.ParseEntityType(typ)
			if err != nil {
				return aerrors.ValidationError(err.Error(), nil).
					WithSuggestion("Use person, organization, concept, event or location")
			}
			if limit <= 0 {
				return aerrors.ValidationError("--limit must be positive", nil)
			}

			a, err := openAnalytics(g)
			if err != nil {
				return err
			}
			defer a.Close()

			docs, err := a.engine.SearchByEntity(cmd.Context(), name, et, dr, limit)
			if err != nil {
				return err
			}
			if out.IsJSON() {
				return out.JSON(docs)
			}
			return documentTable(out, name, docs)
		},
	}
	dates.register(cmd)
	cmd.Flags().StringVarP(&typ, "type", "t", "", "Entity type: person, organization, concept, event, location")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum documents")
	return cmd
}

func documentTable(out *output.Writer, name string, docs []store.DocumentSummary) error {
	if len(docs) == 0 {
		return out.Result(nil, fmt.Sprintf("No documents for %q", name))
	}
	rows := make([][]string, len(docs))
	for i, d := range docs {
		rows[i] = []string{d.Date, d.DocID, output.Truncate(d.Title, 60)}
	}
	return out.Table([]string{"DATE", "ID", "TITLE"}, rows)
}

func newDailyCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "daily <date>",
		Short: "Summary of one day: titles and the entities mentioned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := g.writer(cmd)
			if err != nil {
				return err
			}
			dr, err := parseDates(args[0], "")
			if err != nil {
				return err
			}
			if dr.Start == "" {
				return aerrors.New(aerrors.ErrCodeInvalidDate, "date is required", nil)
			}

			a, err := openAnalytics(g)
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := a.engine.DailySummary(cmd.Context(), dr.Start)
			if err != nil {
				return err
			}
			return out.Result(sum, formatDaily(sum))
		},
	}
}

func formatDaily(sum *store.DailySummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d documents\n", sum.Date, sum.DocCount)
	for _, t := range sum.Titles {
		fmt.Fprintf(&sb, "  - %s\n", t)
	}
	fmt.Fprintf(&sb, "Persons: %s\n", joinOrDash(sum.Persons))
	fmt.Fprintf(&sb, "Organizations: %s\n", joinOrDash(sum.Organizations))
	fmt.Fprintf(&sb, "Concepts: %s\n", joinOrDash(sum.Concepts))
	return sb.String()
}

func joinOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
