package atsnp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"atsnp/internal/isample"
	"atsnp/internal/model"
	"atsnp/internal/stats"
	"atsnp/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "atsnp.db"
	defaultRunsLimit    = 20
)

// Errors surfaced by the estimator.
var (
	ErrInvalidInput       = isample.ErrInvalidInput
	ErrNonConvergent      = isample.ErrNonConvergent
	ErrInvariantViolation = isample.ErrInvariantViolation
	ErrNonFinite          = isample.ErrNonFinite
	ErrInvalidRunID       = stats.ErrInvalidRunID
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       logrus.FieldLogger
}

type Client struct {
	mu          sync.Mutex
	store       storage.Store
	initialized bool
	log         logrus.FieldLogger

	artifactsDir string
	exportsDir   string
}

// RunRequest is one batch of variants against one motif. Weights defaults to
// the PWM and a nil background defaults to the uniform chain.
type RunRequest struct {
	Motif      string
	PWM        mat.Matrix
	Weights    mat.Matrix
	Stationary mat.Vector
	Transition mat.Matrix
	// Scores is n x 2: the score of each allele.
	Scores     mat.Matrix
	VariantIDs []string
	P          float64
	Samples    int
	Seed       int64
	Workers    int
	Streams    int
	// Sources records where the inputs were loaded from, if anywhere.
	Sources FileInputs
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	PValues      []float64
	Diagnostics  model.Diagnostics
	Summary      stats.Summary
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Motif        string
	Variants     int
	Samples      int
	Seed         int64
	Theta        float64
	MinPValue    float64
}

type ShowRequest struct {
	RunID  string
	Latest bool
}

type ShowResult struct {
	Run     model.RunRecord
	Summary stats.Summary
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		log:          logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureStore(ctx)
	return err
}

// Run estimates p-values for every score pair, then persists the run to the
// store and to the artifacts directory.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.P < 0 || req.P >= 1 {
		return RunSummary{}, fmt.Errorf("%w: p must be in [0, 1), got %g", ErrInvalidInput, req.P)
	}
	if req.Samples < 0 || req.Workers < 0 || req.Streams < 0 {
		return RunSummary{}, fmt.Errorf("%w: samples, workers and streams must be >= 0", ErrInvalidInput)
	}
	if req.Motif == "" {
		req.Motif = "motif"
	}

	pwm, err := toMatrix("pwm", req.PWM)
	if err != nil {
		return RunSummary{}, err
	}
	weights := pwm
	if req.Weights != nil {
		weights, err = toMatrix("weight matrix", req.Weights)
		if err != nil {
			return RunSummary{}, err
		}
	}
	bg, err := toBackground(req.Stationary, req.Transition)
	if err != nil {
		return RunSummary{}, err
	}
	pairs, err := toScorePairs(req.Scores)
	if err != nil {
		return RunSummary{}, err
	}
	if len(req.VariantIDs) != 0 && len(req.VariantIDs) != len(pairs) {
		return RunSummary{}, fmt.Errorf("%w: %d variant ids for %d score pairs", ErrInvalidInput, len(req.VariantIDs), len(pairs))
	}

	store, err := c.ensureStore(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	now := time.Now().UTC()
	runID := uuid.NewString()
	log := c.log.WithFields(logrus.Fields{"run_id": runID, "motif": req.Motif})

	est := isample.NewEstimator(isample.Options{
		Samples: req.Samples,
		Seed:    req.Seed,
		Workers: req.Workers,
		Streams: req.Streams,
		Logger:  log,
	})
	opts := est.Options()
	result, err := est.Estimate(ctx, isample.Problem{
		PWM:        pwm,
		Weights:    weights,
		Background: bg,
		Scores:     pairs,
		P:          req.P,
	})
	if err != nil {
		return RunSummary{}, err
	}

	record := storage.Versioned(model.RunRecord{
		ID:           runID,
		CreatedAtUTC: now.Format(time.RFC3339Nano),
		Motif:        req.Motif,
		MotifLen:     pwm.Len(),
		Variants:     len(pairs),
		Samples:      opts.Samples,
		Seed:         opts.Seed,
		Workers:      opts.Workers,
		Streams:      opts.Streams,
		P:            req.P,
		VariantIDs:   append([]string(nil), req.VariantIDs...),
		PValues:      result.PValues,
		Diagnostics:  result.Diagnostics,
	})
	if err := store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}

	rows := make([]stats.PValueRow, len(pairs))
	for i, pair := range pairs {
		rows[i] = stats.PValueRow{Scores: pair, PValue: result.PValues[i]}
		if len(req.VariantIDs) != 0 {
			rows[i].ID = req.VariantIDs[i]
		}
	}
	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:      runID,
			Motif:      req.Motif,
			MotifLen:   pwm.Len(),
			PWMPath:    req.Sources.PWMPath,
			WeightPath: req.Sources.WeightPath,
			BGPath:     req.Sources.BackgroundPath,
			ScoresPath: req.Sources.ScoresPath,
			Variants:   len(pairs),
			Samples:    opts.Samples,
			Seed:       opts.Seed,
			Workers:    opts.Workers,
			Streams:    opts.Streams,
			P:          req.P,
		},
		Rows:        rows,
		Diagnostics: result.Diagnostics,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:        runID,
		Motif:        req.Motif,
		Variants:     len(pairs),
		Samples:      opts.Samples,
		Seed:         opts.Seed,
		Theta:        result.Diagnostics.Theta,
		MinPValue:    minValue(result.PValues),
		CreatedAtUTC: record.CreatedAtUTC,
	}); err != nil {
		return RunSummary{}, err
	}
	log.WithField("artifacts", runDir).Info("run saved")

	return RunSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		PValues:      append([]float64(nil), result.PValues...),
		Diagnostics:  result.Diagnostics,
		Summary:      stats.Summarize(result.PValues),
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = defaultRunsLimit
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Motif:        e.Motif,
			Variants:     e.Variants,
			Samples:      e.Samples,
			Seed:         e.Seed,
			Theta:        e.Theta,
			MinPValue:    e.MinPValue,
		})
	}
	return out, nil
}

// Show loads a run from the store, falling back to its artifacts for runs
// saved by another process with a memory store.
func (c *Client) Show(ctx context.Context, req ShowRequest) (ShowResult, error) {
	store, err := c.ensureStore(ctx)
	if err != nil {
		return ShowResult{}, err
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ShowResult{}, err
	}

	run, ok, err := store.GetRun(ctx, runID)
	if err != nil {
		return ShowResult{}, err
	}
	if ok {
		return ShowResult{Run: run, Summary: stats.Summarize(run.PValues)}, nil
	}

	run, ok, err = c.runFromArtifacts(runID)
	if err != nil {
		return ShowResult{}, err
	}
	if !ok {
		return ShowResult{}, fmt.Errorf("run not found: %s", runID)
	}
	summary, _, err := stats.ReadSummary(c.artifactsDir, runID)
	if err != nil {
		return ShowResult{}, err
	}
	return ShowResult{Run: run, Summary: summary}, nil
}

func (c *Client) runFromArtifacts(runID string) (model.RunRecord, bool, error) {
	cfg, ok, err := stats.ReadRunConfig(c.artifactsDir, runID)
	if err != nil || !ok {
		return model.RunRecord{}, false, err
	}
	diag, _, err := stats.ReadDiagnostics(c.artifactsDir, runID)
	if err != nil {
		return model.RunRecord{}, false, err
	}
	rows, _, err := stats.ReadPValues(c.artifactsDir, runID)
	if err != nil {
		return model.RunRecord{}, false, err
	}

	run := storage.Versioned(model.RunRecord{
		ID:          cfg.RunID,
		Motif:       cfg.Motif,
		MotifLen:    cfg.MotifLen,
		Variants:    cfg.Variants,
		Samples:     cfg.Samples,
		Seed:        cfg.Seed,
		Workers:     cfg.Workers,
		Streams:     cfg.Streams,
		P:           cfg.P,
		Diagnostics: diag,
	})
	for _, row := range rows {
		if row.ID != "" {
			run.VariantIDs = append(run.VariantIDs, row.ID)
		}
		run.PValues = append(run.PValues, row.PValue)
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return model.RunRecord{}, false, err
	}
	for _, e := range entries {
		if e.RunID == runID {
			run.CreatedAtUTC = e.CreatedAtUTC
			break
		}
	}
	return run, true, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// Delete removes a run from the store and its artifacts from disk.
func (c *Client) Delete(ctx context.Context, runID string) error {
	if err := stats.ValidateRunID(runID); err != nil {
		return err
	}
	store, err := c.ensureStore(ctx)
	if err != nil {
		return err
	}
	if err := store.DeleteRun(ctx, runID); err != nil {
		return err
	}
	return stats.RemoveRunArtifacts(c.artifactsDir, runID)
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		if err := stats.ValidateRunID(runID); err != nil {
			return "", err
		}
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func (c *Client) ensureStore(ctx context.Context) (storage.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return c.store, nil
	}
	if err := c.store.Init(ctx); err != nil {
		return nil, err
	}
	c.initialized = true
	return c.store, nil
}

func minValue(values []float64) float64 {
	out := math.Inf(1)
	for _, v := range values {
		out = math.Min(out, v)
	}
	return out
}
