package dataset

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"atsnp/internal/model"
)

// ReadJASPAR parses a JASPAR count matrix: an optional ">id name" header and
// one bracketed row per nucleotide, columns being motif positions. Counts are
// normalized to frequencies per position.
func ReadJASPAR(in io.Reader) (NamedMatrix, error) {
	scanner := bufio.NewScanner(in)
	var (
		out  NamedMatrix
		rows [model.Alphabet][]float64
		seen [model.Alphabet]bool
		line int
	)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if strings.HasPrefix(text, ">") {
			out.Name = strings.Join(strings.Fields(strings.TrimPrefix(text, ">")), " ")
			continue
		}

		nuc := strings.IndexByte("ACGT", byte(text[0]&^0x20))
		if nuc < 0 {
			return NamedMatrix{}, fmt.Errorf("line %d: expected a row label A, C, G or T", line)
		}
		if seen[nuc] {
			return NamedMatrix{}, fmt.Errorf("line %d: duplicate row %c", line, "ACGT"[nuc])
		}
		seen[nuc] = true

		body := strings.NewReplacer("[", " ", "]", " ").Replace(text[1:])
		for _, field := range strings.Fields(body) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return NamedMatrix{}, fmt.Errorf("line %d: %w", line, err)
			}
			if v < 0 {
				return NamedMatrix{}, fmt.Errorf("line %d: negative count %g", line, v)
			}
			rows[nuc] = append(rows[nuc], v)
		}
	}
	if err := scanner.Err(); err != nil {
		return NamedMatrix{}, err
	}

	for nuc := range rows {
		if !seen[nuc] {
			return NamedMatrix{}, fmt.Errorf("missing row %c", "ACGT"[nuc])
		}
		if len(rows[nuc]) != len(rows[0]) {
			return NamedMatrix{}, fmt.Errorf("row %c has %d columns, row A has %d", "ACGT"[nuc], len(rows[nuc]), len(rows[0]))
		}
	}
	if len(rows[0]) == 0 {
		return NamedMatrix{}, fmt.Errorf("matrix has no columns")
	}

	out.Matrix = make(model.Matrix, len(rows[0]))
	for pos := range out.Matrix {
		total := 0.0
		for nuc := range rows {
			total += rows[nuc][pos]
		}
		if total == 0 {
			return NamedMatrix{}, fmt.Errorf("position %d has no counts", pos+1)
		}
		for nuc := range rows {
			out.Matrix[pos][nuc] = rows[nuc][pos] / total
		}
	}
	return out, nil
}
