package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/archivist/internal/config"
	"github.com/Aman-CERP/archivist/internal/index"
	"github.com/Aman-CERP/archivist/internal/output"
	"github.com/Aman-CERP/archivist/internal/store"
	"github.com/Aman-CERP/archivist/internal/ui"
)

type statsOptions struct {
	check   bool
	repair  bool
	noColor bool
}

// statsReport is the JSON form of `archivist stats --check`.
type statsReport struct {
	ui.StatusInfo
	Check *index.CheckResult `json:"check,omitempty"`
	// Repaired is the number of orphan vectors removed by --repair.
	Repaired int `json:"repaired,omitempty"`
}

func newStatsCmd(g *globalOptions) *cobra.Command {
	opts := &statsOptions{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index and entity store statistics",
		Long: `Show the lexical index snapshot, entity store totals, vector graph size
and on-disk sizes.

With --check, the entity store is compared against the lexical index and
the vector graph. --repair removes vectors whose documents are gone;
other issues need a rebuild.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.repair {
				opts.check = true
			}
			return runStats(cmd, g, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.check, "check", false, "Verify consistency between the stores")
	cmd.Flags().BoolVar(&opts.repair, "repair", false, "Remove orphan vectors (implies --check)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")

	return cmd
}

func runStats(cmd *cobra.Command, g *globalOptions, opts *statsOptions) error {
	out, err := g.writer(cmd)
	if err != nil {
		return err
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	info := ui.StatusInfo{
		DataDir:     cfg.Paths.DataDir,
		LexicalSize: fileSize(cfg.LexicalIndexPath()),
		EntitySize:  fileSize(cfg.EntityDBPath()),
		VectorSize:  fileSize(cfg.VectorGraphPath()) + fileSize(cfg.VectorGraphPath()+".meta"),
	}
	report := statsReport{}

	if exists(cfg.EntityDBPath()) || exists(cfg.LexicalIndexPath()) {
		a, err := openApp(cfg, openOptions{lexicalOnly: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if ix := a.engine.Index(); ix != nil {
			st := ix.Stats()
			info.Snapshot = st.SnapshotID
			info.BuiltAt = st.BuiltAt
			info.Documents = st.Documents
			info.Terms = st.Terms
			info.Postings = st.Postings
			info.AvgDocLength = st.AvgDocLength
		}
		ss, err := a.engine.StoreStats(cmd.Context())
		if err != nil {
			return err
		}
		info.StoredDocuments = ss.Documents
		info.EntityLinks = ss.EntityLinks
		info.UniqueEntities = ss.UniqueEntities
		info.FirstDate = ss.FirstDate
		info.LastDate = ss.LastDate

		graph := loadGraph(cfg)
		if graph != nil {
			defer func() { _ = graph.Close() }()
			info.Vectors = graph.Count()
			info.EmbedderModel = graph.Config().Model
		}

		if opts.check {
			checker := index.NewConsistencyChecker(a.entities, a.engine.Index(), graph)
			res, err := checker.Check(cmd.Context())
			if err != nil {
				return err
			}
			report.Check = res
			if opts.repair && graph != nil && res.Count(index.InconsistencyOrphanVector) > 0 {
				report.Repaired = checker.Repair(res.Inconsistencies)
				if err := graph.Save(cfg.VectorGraphPath()); err != nil {
					return err
				}
				info.Vectors = graph.Count()
			}
		}
	}
	report.StatusInfo = info

	if out.IsJSON() {
		return out.JSON(report)
	}
	r := ui.NewStatusRenderer(cmd.OutOrStdout(), opts.noColor || ui.DetectNoColor())
	if err := r.Render(info); err != nil {
		return err
	}
	if report.Check != nil {
		renderCheck(out, report)
	}
	return nil
}

func renderCheck(out *output.Writer, report statsReport) {
	out.Newline()
	res := report.Check
	if len(res.Inconsistencies) == 0 {
		out.Successf("Consistent: %d documents checked", res.Checked)
		return
	}
	out.Warningf("%d inconsistencies in %d documents", len(res.Inconsistencies), res.Checked)
	for _, t := range []index.InconsistencyType{
		index.InconsistencyOrphanLexical,
		index.InconsistencyMissingLexical,
		index.InconsistencyOrphanVector,
		index.InconsistencyMissingVector,
	} {
		if n := res.Count(t); n > 0 {
			out.Status("", fmt.Sprintf("%s: %d", t, n))
		}
	}
	if report.Repaired > 0 {
		out.Successf("Removed %d orphan vectors", report.Repaired)
	}
	out.Status("", "Run 'archivist build' to rebuild missing entries")
}

// loadGraph opens the local vector graph if one exists.
func loadGraph(cfg *config.Config) *store.HNSWStore {
	if !exists(cfg.VectorGraphPath()) {
		return nil
	}
	graph, err := store.LoadHNSWStore(cfg.VectorGraphPath())
	if err != nil {
		return nil
	}
	return graph
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
