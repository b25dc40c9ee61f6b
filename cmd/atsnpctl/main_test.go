package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"atsnp/internal/stats"
)

func writeInputs(t *testing.T, dir string) (pwm, bg, scores string) {
	t.Helper()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return path
	}
	pwm = write("demo.csv", ">demo\nA,C,G,T\n0.7,0.1,0.1,0.1\n0.1,0.1,0.7,0.1\n0.1,0.1,0.1,0.7\n")
	bg = write("bg.json", `{
		"stationary": [0.3, 0.2, 0.2, 0.3],
		"transition": [[0.4,0.2,0.2,0.2],[0.25,0.25,0.25,0.25],[0.25,0.25,0.25,0.25],[0.2,0.2,0.2,0.4]]
	}`)
	scores = write("scores.csv", "id,ref,alt\nrs1,-4,-3\nrs2,-4,-4.2\nrs3,-5,-3.5\nrs4,-3.5,-3\n")
	return pwm, bg, scores
}

func captureStdout(fn func() error) (string, error) {
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(&buf, r)
		done <- err
	}()

	os.Stdout = w
	runErr := fn()
	_ = w.Close()
	os.Stdout = origStdout

	copyErr := <-done
	_ = r.Close()
	if copyErr != nil {
		return "", copyErr
	}
	return buf.String(), runErr
}

func TestRunCommandWritesArtifactsAndListsRuns(t *testing.T) {
	dir := t.TempDir()
	pwm, bg, scores := writeInputs(t, dir)
	artifacts := filepath.Join(dir, "runs")

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"run",
			"--store", "memory",
			"--artifacts", artifacts,
			"--pwm", pwm,
			"--background", bg,
			"--scores", scores,
			"--p", "0.25",
			"--samples", "2000",
			"--seed", "3",
			"--workers", "2",
		})
	})
	if err != nil {
		t.Fatalf("run command: %v", err)
	}
	if !strings.Contains(out, "motif=demo") || !strings.Contains(out, "samples=2,000") {
		t.Fatalf("unexpected run output: %s", out)
	}

	entries, err := stats.ListRunIndex(artifacts)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 || entries[0].Variants != 4 {
		t.Fatalf("unexpected index: %+v", entries)
	}
	runID := entries[0].RunID

	out, err = captureStdout(func() error {
		return run(context.Background(), []string{"runs", "--artifacts", artifacts, "--limit", "1"})
	})
	if err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if !strings.Contains(out, "run_id="+runID) {
		t.Fatalf("runs output missing run id %s: %s", runID, out)
	}

	out, err = captureStdout(func() error {
		return run(context.Background(), []string{"show", "--store", "memory", "--artifacts", artifacts, "--latest", "--json"})
	})
	if err != nil {
		t.Fatalf("show command: %v", err)
	}
	var shown struct {
		Run struct {
			ID         string    `json:"id"`
			PValues    []float64 `json:"p_values"`
			VariantIDs []string  `json:"variant_ids"`
		} `json:"run"`
	}
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decode show output: %v\n%s", err, out)
	}
	if shown.Run.ID != runID || len(shown.Run.PValues) != 4 || shown.Run.VariantIDs[0] != "rs1" {
		t.Fatalf("unexpected shown run: %+v", shown.Run)
	}

	exports := filepath.Join(dir, "exports")
	if _, err := captureStdout(func() error {
		return run(context.Background(), []string{"export", "--artifacts", artifacts, "--latest", "--out", exports})
	}); err != nil {
		t.Fatalf("export command: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exports, runID, "pvalues.csv")); err != nil {
		t.Fatalf("expected exported p-values: %v", err)
	}

	if _, err := captureStdout(func() error {
		return run(context.Background(), []string{"delete", "--store", "memory", "--artifacts", artifacts, "--run-id", runID})
	}); err != nil {
		t.Fatalf("delete command: %v", err)
	}
	if _, err := os.Stat(filepath.Join(artifacts, runID)); !os.IsNotExist(err) {
		t.Fatalf("expected artifacts removed, got %v", err)
	}
}

func TestDeleteCommand(t *testing.T) {
	dir := t.TempDir()
	pwm, bg, scores := writeInputs(t, dir)
	artifacts := filepath.Join(dir, "runs")

	if _, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"run", "--store", "memory", "--artifacts", artifacts,
			"--pwm", pwm, "--background", bg, "--scores", scores,
			"--p", "0.25", "--samples", "300",
		})
	}); err != nil {
		t.Fatalf("run command: %v", err)
	}
	entries, err := stats.ListRunIndex(artifacts)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one indexed run, got %+v err=%v", entries, err)
	}
	runID := entries[0].RunID

	deleteRun := func(id string) (string, error) {
		return captureStdout(func() error {
			return run(context.Background(), []string{"delete", "--store", "memory", "--artifacts", artifacts, "--run-id", id})
		})
	}

	for _, id := range []string{"..", ".", "../runs", "x/y"} {
		if _, err := deleteRun(id); !errors.Is(err, stats.ErrInvalidRunID) {
			t.Fatalf("delete %q: expected invalid run id, got %v", id, err)
		}
	}
	if _, err := deleteRun(""); err == nil {
		t.Fatal("expected missing run id error")
	}
	for _, path := range []string{pwm, scores, filepath.Join(artifacts, runID, "pvalues.csv")} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to survive rejected deletes: %v", path, err)
		}
	}

	out, err := deleteRun("never-existed")
	if err != nil {
		t.Fatalf("delete missing run: %v", err)
	}
	if !strings.Contains(out, "deleted run_id=never-existed") {
		t.Fatalf("unexpected delete output: %s", out)
	}
	if entries, _ := stats.ListRunIndex(artifacts); len(entries) != 1 {
		t.Fatalf("missing-run delete changed the index: %+v", entries)
	}

	if _, err := deleteRun(runID); err != nil {
		t.Fatalf("delete run: %v", err)
	}
	if entries, err := stats.ListRunIndex(artifacts); err != nil || len(entries) != 0 {
		t.Fatalf("expected empty index, got %+v err=%v", entries, err)
	}
	if _, err := os.Stat(filepath.Join(artifacts, runID)); !os.IsNotExist(err) {
		t.Fatalf("expected artifacts removed, got %v", err)
	}
}

func TestRunCommandUsesConfigWithFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	pwm, _, scores := writeInputs(t, dir)
	artifacts := filepath.Join(dir, "runs")
	configPath := filepath.Join(dir, "run.json")
	config := map[string]any{
		"motif":   "from-config",
		"pwm":     pwm,
		"scores":  scores,
		"p":       0.25,
		"samples": 500,
		"seed":    9,
		"workers": 1,
	}
	data, err := json.Marshal(config)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"run",
			"--store", "memory",
			"--artifacts", artifacts,
			"--config", configPath,
			"--samples", "300",
		})
	}); err != nil {
		t.Fatalf("run command: %v", err)
	}

	entries, err := stats.ListRunIndex(artifacts)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one indexed run, got %+v err=%v", entries, err)
	}
	if entries[0].Motif != "from-config" || entries[0].Samples != 300 || entries[0].Seed != 9 {
		t.Fatalf("unexpected run entry: %+v", entries[0])
	}
}

func TestDebugCommands(t *testing.T) {
	dir := t.TempDir()
	pwm, bg, scores := writeInputs(t, dir)

	cases := []struct {
		args []string
		want string
	}{
		{args: []string{"percentile", "--scores", scores, "--p", "0.25"}, want: "percentile=-1.000000"},
		{args: []string{"cumulant", "--weights", pwm, "--background", bg, "--theta", "0"}, want: "cumulant=1 "},
		{args: []string{"theta", "--weights", pwm, "--target", "-1.5"}, want: "theta="},
		{args: []string{"sample", "--weights", pwm, "--background", bg, "--theta", "1", "--n", "3"}, want: "start="},
	}
	for _, tc := range cases {
		t.Run(tc.args[0], func(t *testing.T) {
			out, err := captureStdout(func() error {
				return run(context.Background(), tc.args)
			})
			if err != nil {
				t.Fatalf("%s command: %v", tc.args[0], err)
			}
			if !strings.Contains(out, tc.want) {
				t.Fatalf("expected %q in output: %s", tc.want, out)
			}
		})
	}
}

func TestRunRejectsUnknownCommandAndMissingInputs(t *testing.T) {
	if err := run(context.Background(), nil); err == nil {
		t.Fatal("expected missing command error")
	}
	if err := run(context.Background(), []string{"bogus"}); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
	if err := run(context.Background(), []string{"run", "--store", "memory", "--artifacts", t.TempDir()}); err == nil {
		t.Fatal("expected missing pwm error")
	}
	if err := run(context.Background(), []string{"export", "--artifacts", t.TempDir()}); err == nil {
		t.Fatal("expected export selector error")
	}
}
