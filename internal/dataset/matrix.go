package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"atsnp/internal/model"
)

// NamedMatrix is a motif matrix with the name taken from a ">name" line.
type NamedMatrix struct {
	Name   string
	Matrix model.Matrix
}

// ReadMatrixFile loads a motif_len x 4 matrix. Files ending in .jaspar are
// JASPAR count matrices, .tsv and .txt are tab separated, everything else is
// comma separated.
func ReadMatrixFile(path string) (NamedMatrix, error) {
	file, err := os.Open(path)
	if err != nil {
		return NamedMatrix{}, err
	}
	defer file.Close()

	var m NamedMatrix
	if strings.EqualFold(filepath.Ext(path), ".jaspar") {
		m, err = ReadJASPAR(file)
	} else {
		m, err = ReadMatrix(file, separatorFor(path))
	}
	if err != nil {
		return NamedMatrix{}, fmt.Errorf("read matrix %s: %w", path, err)
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return m, nil
}

// ReadMatrix parses one row per motif position with the A, C, G, T columns.
// Blank lines and lines starting with '#' are skipped, a leading ">name" line
// names the motif and an "A,C,G,T" header row is allowed.
func ReadMatrix(in io.Reader, comma rune) (NamedMatrix, error) {
	reader := csv.NewReader(in)
	reader.Comma = comma
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var out NamedMatrix
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return NamedMatrix{}, err
		}
		line++
		record = trimRecord(record)
		if len(record) == 0 {
			continue
		}
		if strings.HasPrefix(record[0], ">") {
			out.Name = strings.TrimSpace(strings.TrimPrefix(strings.Join(record, " "), ">"))
			continue
		}
		if isNucleotideHeader(record) {
			continue
		}
		if len(record) != model.Alphabet {
			return NamedMatrix{}, fmt.Errorf("row %d: expected %d columns, got %d", line, model.Alphabet, len(record))
		}
		var row [model.Alphabet]float64
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return NamedMatrix{}, fmt.Errorf("row %d column %d: %w", line, j+1, err)
			}
			if v < 0 {
				return NamedMatrix{}, fmt.Errorf("row %d column %d: negative weight %g", line, j+1, v)
			}
			row[j] = v
		}
		out.Matrix = append(out.Matrix, row)
	}
	if out.Matrix.Len() == 0 {
		return NamedMatrix{}, fmt.Errorf("matrix has no rows")
	}
	return out, nil
}

func separatorFor(path string) rune {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".txt":
		return '\t'
	default:
		return ','
	}
}

func trimRecord(record []string) []string {
	out := record[:0]
	for _, field := range record {
		field = strings.TrimSpace(field)
		if field != "" {
			out = append(out, field)
		}
	}
	return out
}

func isNucleotideHeader(record []string) bool {
	if len(record) != model.Alphabet {
		return false
	}
	for i, field := range record {
		if !strings.EqualFold(field, string("ACGT"[i])) {
			return false
		}
	}
	return true
}
