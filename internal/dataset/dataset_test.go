package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"atsnp/internal/model"
)

func TestReadMatrixWithNameAndHeader(t *testing.T) {
	input := strings.Join([]string{
		"# demo motif",
		">MA0001 demo",
		"A,C,G,T",
		"0.7,0.1,0.1,0.1",
		"",
		"0.0, 0.5, 0.5, 0.0",
	}, "\n")
	m, err := ReadMatrix(strings.NewReader(input), ',')
	if err != nil {
		t.Fatalf("read matrix: %v", err)
	}
	if m.Name != "MA0001 demo" {
		t.Fatalf("unexpected name %q", m.Name)
	}
	if m.Matrix.Len() != 2 || m.Matrix[1][2] != 0.5 {
		t.Fatalf("unexpected matrix %+v", m.Matrix)
	}
}

func TestReadMatrixRejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"short row":   "0.5,0.5,0\n",
		"non numeric": "0.5,x,0,0.5\n",
		"negative":    "0.5,-0.1,0.3,0.3\n",
		"empty":       "# nothing\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadMatrix(strings.NewReader(input), ','); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestReadMatrixFileUsesTabsAndFileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctcf.tsv")
	if err := os.WriteFile(path, []byte("0.1\t0.2\t0.3\t0.4\n0.4\t0.3\t0.2\t0.1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err := ReadMatrixFile(path)
	if err != nil {
		t.Fatalf("read matrix file: %v", err)
	}
	if m.Name != "ctcf" || m.Matrix.Len() != 2 || m.Matrix[0][3] != 0.4 {
		t.Fatalf("unexpected matrix %+v", m)
	}
}

func TestReadScoresDetectsHeaderAndIDs(t *testing.T) {
	input := "snp,ref,alt\nrs1,-3.5,-1.25\nrs2,-2,-2\n"
	table, err := ReadScores(strings.NewReader(input), ',')
	if err != nil {
		t.Fatalf("read scores: %v", err)
	}
	if len(table.Pairs) != 2 || len(table.IDs) != 2 {
		t.Fatalf("unexpected table %+v", table)
	}
	if table.IDs[0] != "rs1" || table.Pairs[0] != (model.ScorePair{-3.5, -1.25}) {
		t.Fatalf("unexpected first row: id=%s pair=%v", table.IDs[0], table.Pairs[0])
	}
}

func TestReadScoresTwoColumns(t *testing.T) {
	table, err := ReadScores(strings.NewReader("1,2\n3,4\n"), ',')
	if err != nil {
		t.Fatalf("read scores: %v", err)
	}
	if len(table.IDs) != 0 || len(table.Pairs) != 2 || table.Pairs[1][1] != 4 {
		t.Fatalf("unexpected table %+v", table)
	}
}

func TestReadScoresRejectsLateGarbage(t *testing.T) {
	if _, err := ReadScores(strings.NewReader("1,2\nx,y\n"), ','); err == nil {
		t.Fatal("expected non-numeric error")
	}
}

func TestReadBackgroundFileValidates(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "bg.json")
	if err := os.WriteFile(good, []byte(`{
		"stationary": [0.25, 0.25, 0.25, 0.25],
		"transition": [[0.25,0.25,0.25,0.25],[0.1,0.2,0.3,0.4],[0.25,0.25,0.25,0.25],[0.4,0.3,0.2,0.1]]
	}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	bg, err := ReadBackgroundFile(good)
	if err != nil {
		t.Fatalf("read background: %v", err)
	}
	if bg.Transition[1][3] != 0.4 {
		t.Fatalf("unexpected background %+v", bg)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"stationary": [0.5, 0.5, 0.5, 0.5], "transition": [[1,0,0,0],[1,0,0,0],[1,0,0,0],[1,0,0,0]]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadBackgroundFile(bad); err == nil {
		t.Fatal("expected stationary sum error")
	}
}

func TestReadJASPARNormalizesCounts(t *testing.T) {
	input := strings.Join([]string{
		">MA0004.1 Arnt",
		"A  [ 4 19  0 ]",
		"C  [16  0 20 ]",
		"G  [ 0  1  0 ]",
		"T  [ 0  0  0 ]",
	}, "\n")
	m, err := ReadJASPAR(strings.NewReader(input))
	if err != nil {
		t.Fatalf("read jaspar: %v", err)
	}
	if m.Name != "MA0004.1 Arnt" || m.Matrix.Len() != 3 {
		t.Fatalf("unexpected matrix %+v", m)
	}
	if m.Matrix[0] != [4]float64{0.2, 0.8, 0, 0} || m.Matrix[1][1] != 0 || m.Matrix[2][1] != 1 {
		t.Fatalf("unexpected frequencies %v", m.Matrix)
	}
}

func TestReadJASPARRejectsRaggedRows(t *testing.T) {
	cases := map[string]string{
		"ragged":    "A [1 2]\nC [1 2]\nG [1]\nT [1 2]\n",
		"missing":   "A [1 2]\nC [1 2]\nG [1 2]\n",
		"duplicate": "A [1]\nA [1]\nG [1]\nT [1]\n",
		"label":     "X [1]\n",
		"no counts": "A [0]\nC [0]\nG [0]\nT [0]\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadJASPAR(strings.NewReader(input)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestReadMatrixFileDetectsJASPAR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arnt.jaspar")
	if err := os.WriteFile(path, []byte("A [1 3]\nC [1 0]\nG [1 0]\nT [1 1]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err := ReadMatrixFile(path)
	if err != nil {
		t.Fatalf("read matrix file: %v", err)
	}
	if m.Name != "arnt" || m.Matrix[0][0] != 0.25 || m.Matrix[1][3] != 0.25 {
		t.Fatalf("unexpected matrix %+v", m)
	}
}
