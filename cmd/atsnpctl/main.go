package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"atsnp/internal/storage"
	"atsnp/pkg/atsnp"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "atsnp.db"
)

func main() {
	_ = godotenv.Load(".env")

	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "delete":
		return runDelete(ctx, args[1:])
	case "percentile":
		return runPercentile(ctx, args[1:])
	case "theta":
		return runTheta(ctx, args[1:])
	case "cumulant":
		return runCumulant(ctx, args[1:])
	case "sample":
		return runSample(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// clientFlags are shared by every subcommand that touches persisted runs.
// Defaults come from ATSNP_* environment variables, which main may load from
// a .env file.
type clientFlags struct {
	storeKind    *string
	dbPath       *string
	artifactsDir *string
	verbose      *bool
}

func addClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind:    fs.String("store", envOr("ATSNP_STORE", storage.DefaultStoreKind()), "store backend: memory|sqlite"),
		dbPath:       fs.String("db-path", envOr("ATSNP_DB_PATH", defaultDBPath), "sqlite database path"),
		artifactsDir: fs.String("artifacts", envOr("ATSNP_ARTIFACTS_DIR", defaultArtifactsDir), "run artifacts directory"),
		verbose:      fs.Bool("verbose", false, "log estimator progress to stderr"),
	}
}

func (f clientFlags) newClient(exportsDir string) (*atsnp.Client, error) {
	return atsnp.New(atsnp.Options{
		StoreKind:    *f.storeKind,
		DBPath:       *f.dbPath,
		ArtifactsDir: *f.artifactsDir,
		ExportsDir:   exportsDir,
		Logger:       newLogger(*f.verbose),
	})
}

func newLogger(verbose bool) logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	motifName := fs.String("motif", "", "motif name (defaults to the PWM name)")
	pwmPath := fs.String("pwm", "", "PWM file (csv/tsv, rows are motif positions)")
	weightsPath := fs.String("weights", "", "weight matrix file (defaults to the PWM)")
	bgPath := fs.String("background", "", "background JSON with stationary and transition (defaults to uniform)")
	scoresPath := fs.String("scores", "", "score pair file: score0,score1 or id,score0,score1")
	p := fs.Float64("p", 0.1, "upper percentile of absolute score differences that sets the tilt")
	samples := fs.Int("samples", 10000, "Monte Carlo sample count")
	seed := fs.Int64("seed", 1, "rng seed")
	workers := fs.Int("workers", 4, "worker count")
	streams := fs.Int("streams", 0, "rng stream count (0 uses the worker count)")
	jsonOut := fs.Bool("json", false, "emit p-values as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	cfg, err := loadOrDefaultRunConfig(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		cfg = runConfig{
			Motif:      *motifName,
			PWM:        *pwmPath,
			Weights:    *weightsPath,
			Background: *bgPath,
			Scores:     *scoresPath,
			P:          *p,
			Samples:    *samples,
			Seed:       *seed,
			Workers:    *workers,
			Streams:    *streams,
		}
	} else {
		overrideFromFlags(&cfg, setFlags, map[string]any{
			"motif":      *motifName,
			"pwm":        *pwmPath,
			"weights":    *weightsPath,
			"background": *bgPath,
			"scores":     *scoresPath,
			"p":          *p,
			"samples":    *samples,
			"seed":       *seed,
			"workers":    *workers,
			"streams":    *streams,
		})
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	req, err := atsnp.LoadRequest(atsnp.FileInputs{
		PWMPath:        cfg.PWM,
		WeightPath:     cfg.Weights,
		BackgroundPath: cfg.Background,
		ScoresPath:     cfg.Scores,
	})
	if err != nil {
		return err
	}
	if cfg.Motif != "" {
		req.Motif = cfg.Motif
	}
	req.P = cfg.P
	req.Samples = cfg.Samples
	req.Seed = cfg.Seed
	req.Workers = cfg.Workers
	req.Streams = cfg.Streams

	client, err := cf.newClient(defaultExportsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	if *jsonOut {
		type pValueItem struct {
			ID     string  `json:"id,omitempty"`
			PValue float64 `json:"p_value"`
		}
		items := make([]pValueItem, len(summary.PValues))
		for i, pv := range summary.PValues {
			items[i].PValue = pv
			if len(req.VariantIDs) != 0 {
				items[i].ID = req.VariantIDs[i]
			}
		}
		return writeJSON(map[string]any{
			"run_id":      summary.RunID,
			"diagnostics": summary.Diagnostics,
			"p_values":    items,
		})
	}

	d := summary.Diagnostics
	fmt.Printf("run_id=%s motif=%s variants=%s samples=%s\n",
		summary.RunID,
		req.Motif,
		humanize.Comma(int64(len(summary.PValues))),
		humanize.Comma(int64(cfg.Samples)),
	)
	fmt.Printf("percentile=%.6f theta=%.4f theta_steps=%d norm_const=%.6g mean_weight=%.6f\n",
		d.Percentile, d.Theta, d.ThetaSteps, d.NormConst, d.MeanWeight)
	fmt.Printf("p_value_min=%.6g p_value_median=%.6g below_0.05=%d artifacts=%s\n",
		summary.Summary.Min, summary.Summary.Median, summary.Summary.BelowAlpha5, summary.ArtifactsDir)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := cf.newClient(defaultExportsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, atsnp.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(items)
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, item := range items {
		fmt.Printf("run_id=%s created_at=%s motif=%s variants=%s samples=%s seed=%d theta=%.4f min_p_value=%.6g\n",
			item.RunID,
			item.CreatedAtUTC,
			item.Motif,
			humanize.Comma(int64(item.Variants)),
			humanize.Comma(int64(item.Samples)),
			item.Seed,
			item.Theta,
			item.MinPValue,
		)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run")
	limit := fs.Int("limit", 0, "max p-values to print (0 prints all)")
	jsonOut := fs.Bool("json", false, "emit the run record as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit < 0 {
		return errors.New("limit must be >= 0")
	}

	client, err := cf.newClient(defaultExportsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	res, err := client.Show(ctx, atsnp.ShowRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(map[string]any{"run": res.Run, "summary": res.Summary})
	}

	r := res.Run
	fmt.Printf("run_id=%s created_at=%s motif=%s motif_len=%d variants=%s samples=%s seed=%d streams=%d p=%g\n",
		r.ID, r.CreatedAtUTC, r.Motif, r.MotifLen,
		humanize.Comma(int64(r.Variants)), humanize.Comma(int64(r.Samples)),
		r.Seed, r.Streams, r.P)
	d := r.Diagnostics
	fmt.Printf("percentile=%.6f theta=%.4f theta_steps=%d norm_const=%.6g mean_weight=%.6f mean_diff=%.6f mean_adjustment=%.6f mean_score=%.6f\n",
		d.Percentile, d.Theta, d.ThetaSteps, d.NormConst, d.MeanWeight, d.MeanDiff, d.MeanAdjustment, d.MeanScore)
	s := res.Summary
	fmt.Printf("p_values count=%d mean=%.6g median=%.6g min=%.6g max=%.6g below_0.05=%d below_0.01=%d\n",
		s.Count, s.Mean, s.Median, s.Min, s.Max, s.BelowAlpha5, s.BelowAlpha1)
	for i, pv := range r.PValues {
		if *limit > 0 && i >= *limit {
			break
		}
		id := fmt.Sprintf("#%d", i+1)
		if i < len(r.VariantIDs) {
			id = r.VariantIDs[i]
		}
		fmt.Printf("%s\t%.6g\n", id, pv)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", defaultExportsDir, "export output directory")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := cf.newClient(*outDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, atsnp.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("delete requires --run-id")
	}

	client, err := cf.newClient(defaultExportsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Delete(ctx, *runID); err != nil {
		return err
	}
	fmt.Printf("deleted run_id=%s\n", *runID)
	return nil
}

func writeJSON(value any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: atsnpctl <run|runs|show|export|delete|percentile|theta|cumulant|sample> [flags]", msg)
}
