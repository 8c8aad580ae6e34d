package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/BaSui01/distiset"
	"github.com/BaSui01/distiset/dataset"
	"github.com/BaSui01/distiset/internal/ctxkeys"
	"github.com/BaSui01/distiset/internal/metrics"
	"github.com/BaSui01/distiset/types"
)

// =============================================================================
// 🧰 subcommand plumbing
// =============================================================================

// command is the body of one subcommand, run once flags are parsed and the
// app is up.
type command func(ctx context.Context, a *app, args []string) error

// execute parses flags, enforces the positional argument count, builds the
// app and runs cmd. Usage problems exit with 2, runtime failures with 1.
func execute(ctx context.Context, fs *pflag.FlagSet, common *commonFlags, args []string, nargs int, stderr io.Writer, cmd command) int {
	fs.SetOutput(stderr)
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() != nargs {
		fmt.Fprintf(stderr, "%s: expected %d argument(s), got %d\n", fs.Name(), nargs, fs.NArg())
		fs.PrintDefaults()
		return exitUsage
	}

	a, err := newApp(common)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to start: %v\n", err)
		return exitError
	}
	defer a.close(ctx)

	runID := uuid.NewString()
	ctx = ctxkeys.WithCommand(ctxkeys.WithRunID(ctx, runID), fs.Name())
	a.logger.Debug("command started",
		zap.String("command", fs.Name()),
		zap.String("run_id", runID),
		zap.Strings("args", fs.Args()),
	)

	if err := cmd(ctx, a, fs.Args()); err != nil {
		a.logger.Debug("command failed", zap.String("command", fs.Name()), zap.String("run_id", runID), zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if code := types.GetErrorCode(err); code != "" {
			fmt.Fprintf(stderr, "  code: %s\n", code)
		}
		return exitError
	}
	return exitOK
}

// =============================================================================
// 🔍 info
// =============================================================================

type splitInfo struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

type stepInfo struct {
	Name    string      `json:"name"`
	Kind    string      `json:"kind"`
	Rows    int         `json:"rows"`
	Splits  []splitInfo `json:"splits,omitempty"`
	Columns []string    `json:"columns"`
}

type infoReport struct {
	Source         string     `json:"source"`
	PipelineConfig string     `json:"pipeline_config,omitempty"`
	PipelineLog    string     `json:"pipeline_log,omitempty"`
	Artifacts      string     `json:"artifacts,omitempty"`
	Steps          []stepInfo `json:"steps"`
}

func describe(source string, d *distiset.Distiset) infoReport {
	r := infoReport{Source: source, Steps: []stepInfo{}}
	if d.ConfigPath != nil {
		r.PipelineConfig = d.ConfigPath.String()
	}
	if d.LogPath != nil {
		r.PipelineLog = d.LogPath.String()
	}
	if d.ArtifactsPath != nil {
		r.Artifacts = d.ArtifactsPath.String()
	}
	for _, step := range d.Steps() {
		leaf, _ := d.Get(step)
		s := stepInfo{
			Name:    step,
			Kind:    leaf.Kind().String(),
			Rows:    leaf.NumRows(),
			Columns: dataset.ColumnNames(leaf),
		}
		if g, ok := leaf.(*dataset.SplitGroup); ok {
			for _, name := range g.Names() {
				t, _ := g.Split(name)
				s.Splits = append(s.Splits, splitInfo{Name: name, Rows: t.NumRows()})
			}
		}
		r.Steps = append(r.Steps, s)
	}
	return r
}

func (r infoReport) writeText(w io.Writer) error {
	orDash := func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	}
	fmt.Fprintf(w, "Distiset:        %s\n", r.Source)
	fmt.Fprintf(w, "Pipeline config: %s\n", orDash(r.PipelineConfig))
	fmt.Fprintf(w, "Pipeline log:    %s\n", orDash(r.PipelineLog))
	fmt.Fprintf(w, "Artifacts:       %s\n\n", orDash(r.Artifacts))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tKIND\tROWS\tSPLITS\tCOLUMNS")
	for _, s := range r.Steps {
		splits := make([]string, len(s.Splits))
		for i, sp := range s.Splits {
			splits[i] = fmt.Sprintf("%s=%d", sp.Name, sp.Rows)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", s.Name, s.Kind, s.Rows,
			orDash(strings.Join(splits, ",")), orDash(strings.Join(s.Columns, ",")))
	}
	return tw.Flush()
}

func runInfo(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("info", pflag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	downloadDir := fs.String("download-dir", "", "Mirror a remote distiset into this directory first")
	var common commonFlags

	return execute(ctx, fs, &common, args, 1, stderr, func(ctx context.Context, a *app, args []string) error {
		d, err := distiset.LoadFromDisk(ctx, args[0], a.loadOptions(*downloadDir)...)
		if err != nil {
			return err
		}
		report := describe(args[0], d)
		if *asJSON {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		return report.writeText(stdout)
	})
}

// =============================================================================
// 📝 card
// =============================================================================

func runCard(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("card", pflag.ContinueOnError)
	repoID := fs.String("repo-id", "", "Repository id shown on the card (default: base name of the path)")
	header := fs.Bool("header-only", false, "Print only the YAML metadata header")
	var common commonFlags

	return execute(ctx, fs, &common, args, 1, stderr, func(ctx context.Context, a *app, args []string) (err error) {
		done := a.metrics.Track(metrics.OpCard)
		defer func() { done(err) }()

		d, err := distiset.LoadFromDisk(ctx, args[0], a.loadOptions("")...)
		if err != nil {
			return err
		}
		id := *repoID
		if id == "" {
			id = baseName(args[0])
		}
		c, err := d.GetCard(ctx, id)
		if err != nil {
			return err
		}
		if *header {
			y, err := c.Metadata.YAML()
			if err != nil {
				return err
			}
			_, err = io.WriteString(stdout, y)
			return err
		}
		_, err = io.WriteString(stdout, c.String())
		return err
	})
}

// baseName returns the last element of a local path or URI.
func baseName(p string) string {
	p = strings.TrimRight(p, `/\`)
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// =============================================================================
// 📦 copy / split
// =============================================================================

// saveFlags are the SaveToDisk toggles shared by copy and split. Only flags
// set on the command line override the configuration.
type saveFlags struct {
	overwrite        bool
	noCard           bool
	noPipelineConfig bool
	noPipelineLog    bool
	repoID           string
	downloadDir      string
}

func (s *saveFlags) register(fs *pflag.FlagSet) {
	fs.BoolVar(&s.overwrite, "overwrite", false, "Replace a non-empty destination")
	fs.BoolVar(&s.noCard, "no-card", false, "Do not write README.md and dataset_card.yaml")
	fs.BoolVar(&s.noPipelineConfig, "no-pipeline-config", false, "Do not bundle pipeline.yaml")
	fs.BoolVar(&s.noPipelineLog, "no-pipeline-log", false, "Do not bundle pipeline.log")
	fs.StringVar(&s.repoID, "repo-id", "", "Repository id shown on the card")
	fs.StringVar(&s.downloadDir, "download-dir", "", "Mirror a remote source into this directory first")
}

func (s *saveFlags) options(fs *pflag.FlagSet) []distiset.SaveOption {
	var opts []distiset.SaveOption
	if fs.Changed("overwrite") {
		opts = append(opts, distiset.WithOverwrite(s.overwrite))
	}
	if fs.Changed("no-card") {
		opts = append(opts, distiset.WithCard(!s.noCard))
	}
	if fs.Changed("no-pipeline-config") {
		opts = append(opts, distiset.WithPipelineConfig(!s.noPipelineConfig))
	}
	if fs.Changed("no-pipeline-log") {
		opts = append(opts, distiset.WithPipelineLog(!s.noPipelineLog))
	}
	if s.repoID != "" {
		opts = append(opts, distiset.WithRepoID(s.repoID))
	}
	return opts
}

func save(ctx context.Context, a *app, d *distiset.Distiset, dst string, extra []distiset.SaveOption) error {
	opts, err := a.saveOptions()
	if err != nil {
		return err
	}
	return d.SaveToDisk(ctx, dst, append(opts, extra...)...)
}

func runCopy(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("copy", pflag.ContinueOnError)
	var sf saveFlags
	sf.register(fs)
	var common commonFlags

	return execute(ctx, fs, &common, args, 2, stderr, func(ctx context.Context, a *app, args []string) error {
		src, dst := args[0], args[1]
		d, err := distiset.LoadFromDisk(ctx, src, a.loadOptions(sf.downloadDir)...)
		if err != nil {
			return err
		}
		if err := save(ctx, a, d, dst, sf.options(fs)); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "copied %d step(s) from %s to %s\n", d.Len(), src, dst)
		return nil
	})
}

func runSplit(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("split", pflag.ContinueOnError)
	trainSize := fs.Float64("train-size", 0, "Fraction of rows in the train split (default from config)")
	seed := fs.Uint64("seed", 0, "Shuffle seed (default from config)")
	noShuffle := fs.Bool("no-shuffle", false, "Keep row order: train is the head, test the tail")
	var sf saveFlags
	sf.register(fs)
	var common commonFlags

	return execute(ctx, fs, &common, args, 2, stderr, func(ctx context.Context, a *app, args []string) (err error) {
		src, dst := args[0], args[1]
		d, err := distiset.LoadFromDisk(ctx, src, a.loadOptions(sf.downloadDir)...)
		if err != nil {
			return err
		}

		size := a.cfg.Split.TrainSize
		if fs.Changed("train-size") {
			size = *trainSize
		}
		splitSeed := a.cfg.Split.Seed
		if fs.Changed("seed") {
			splitSeed = *seed
		}
		shuffle := a.cfg.Split.Shuffle && !*noShuffle

		done := a.metrics.Track(metrics.OpSplit)
		split, err := d.TrainTestSplit(size, dataset.WithSeed(splitSeed), dataset.WithShuffle(shuffle))
		done(err)
		if err != nil {
			return err
		}

		if err := save(ctx, a, split, dst, sf.options(fs)); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "split %d step(s) with train size %g into %s\n", split.Len(), size, dst)
		return nil
	})
}
