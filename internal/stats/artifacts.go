package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"atsnp/internal/model"
)

// ErrInvalidRunID is returned for run ids that would resolve outside the
// artifacts directory.
var ErrInvalidRunID = errors.New("invalid run id")

const (
	runIndexFile    = "run_index.json"
	configFile      = "config.json"
	pValuesFile     = "pvalues.csv"
	diagnosticsFile = "diagnostics.json"
	summaryFile     = "summary.json"
)

// RunConfig is the reproducible part of a run: everything needed to draw the
// same samples again given the same inputs.
type RunConfig struct {
	RunID      string  `json:"run_id"`
	Motif      string  `json:"motif"`
	MotifLen   int     `json:"motif_len"`
	PWMPath    string  `json:"pwm_path,omitempty"`
	WeightPath string  `json:"weight_path,omitempty"`
	BGPath     string  `json:"background_path,omitempty"`
	ScoresPath string  `json:"scores_path,omitempty"`
	Variants   int     `json:"variants"`
	Samples    int     `json:"samples"`
	Seed       int64   `json:"seed"`
	Workers    int     `json:"workers"`
	Streams    int     `json:"streams"`
	P          float64 `json:"p"`
}

// PValueRow is one line of pvalues.csv.
type PValueRow struct {
	ID     string
	Scores model.ScorePair
	PValue float64
}

type RunArtifacts struct {
	Config      RunConfig
	Rows        []PValueRow
	Diagnostics model.Diagnostics
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Motif        string  `json:"motif"`
	Variants     int     `json:"variants"`
	Samples      int     `json:"samples"`
	Seed         int64   `json:"seed"`
	Theta        float64 `json:"theta"`
	MinPValue    float64 `json:"min_p_value"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// ValidateRunID rejects ids that are empty or are not a single local path
// element.
func ValidateRunID(runID string) error {
	if runID == "" {
		return fmt.Errorf("%w: run id is required", ErrInvalidRunID)
	}
	if runID == "." || runID == ".." || strings.ContainsAny(runID, `/\`) || !filepath.IsLocal(runID) {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	return nil
}

func runDir(baseDir, runID string) (string, error) {
	if err := ValidateRunID(runID); err != nil {
		return "", err
	}
	return filepath.Join(baseDir, runID), nil
}

// WriteRunArtifacts writes config.json, pvalues.csv, diagnostics.json and
// summary.json under baseDir/<run id> and returns that directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	dir, err := runDir(baseDir, artifacts.Config.RunID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(dir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writePValues(filepath.Join(dir, pValuesFile), artifacts.Rows); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, diagnosticsFile), artifacts.Diagnostics); err != nil {
		return "", err
	}
	pValues := make([]float64, len(artifacts.Rows))
	for i, row := range artifacts.Rows {
		pValues[i] = row.PValue
	}
	if err := writeJSON(filepath.Join(dir, summaryFile), Summarize(pValues)); err != nil {
		return "", err
	}
	return dir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if err := ValidateRunID(entry.RunID); err != nil {
		return err
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ExportRunArtifacts copies a run directory to outDir/<run id>. The summary is
// optional for runs written before it existed.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	src, err := runDir(baseDir, runID)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, pValuesFile, diagnosticsFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	summarySrc := filepath.Join(src, summaryFile)
	if _, err := os.Stat(summarySrc); err == nil {
		if err := copyFile(summarySrc, filepath.Join(dst, summaryFile)); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

// RemoveRunArtifacts deletes a run directory and its index entry. Missing runs
// are not an error.
func RemoveRunArtifacts(baseDir, runID string) error {
	dir, err := runDir(baseDir, runID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}
	kept := index[:0]
	for _, entry := range index {
		if entry.RunID != runID {
			kept = append(kept, entry)
		}
	}
	if len(kept) == len(index) {
		return nil
	}
	return writeJSON(filepath.Join(baseDir, runIndexFile), kept)
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readRunFile(baseDir, runID, configFile, &cfg)
	return cfg, ok, err
}

func ReadDiagnostics(baseDir, runID string) (model.Diagnostics, bool, error) {
	var diag model.Diagnostics
	ok, err := readRunFile(baseDir, runID, diagnosticsFile, &diag)
	return diag, ok, err
}

func readRunFile(baseDir, runID, name string, value any) (bool, error) {
	dir, err := runDir(baseDir, runID)
	if err != nil {
		return false, err
	}
	return readJSON(filepath.Join(dir, name), value)
}

func writePValues(path string, rows []PValueRow) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"id", "score0", "score1", "p_value"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.ID,
			strconv.FormatFloat(row.Scores[0], 'g', -1, 64),
			strconv.FormatFloat(row.Scores[1], 'g', -1, 64),
			strconv.FormatFloat(row.PValue, 'g', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadPValues(baseDir, runID string) ([]PValueRow, bool, error) {
	dir, err := runDir(baseDir, runID)
	if err != nil {
		return nil, false, err
	}
	file, err := os.Open(filepath.Join(dir, pValuesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []PValueRow{}, true, nil
		}
		return nil, false, err
	}
	if len(header) != 4 {
		return nil, false, fmt.Errorf("p-value header must have 4 columns")
	}

	rows := make([]PValueRow, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		var values [3]float64
		for i := range values {
			values[i], err = strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return nil, false, err
			}
		}
		rows = append(rows, PValueRow{
			ID:     record[0],
			Scores: model.ScorePair{values[0], values[1]},
			PValue: values[2],
		})
	}
	return rows, true, nil
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
