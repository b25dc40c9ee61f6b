package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"atsnp/internal/model"
)

// ScoreTable holds allele score pairs and, when the input has three columns,
// the variant ids from the first one.
type ScoreTable struct {
	IDs   []string
	Pairs []model.ScorePair
}

func ReadScoresFile(path string) (ScoreTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return ScoreTable{}, err
	}
	defer file.Close()

	table, err := ReadScores(file, separatorFor(path))
	if err != nil {
		return ScoreTable{}, fmt.Errorf("read scores %s: %w", path, err)
	}
	return table, nil
}

// ReadScores parses rows of "score0,score1" or "id,score0,score1". A first
// row whose score columns do not parse is treated as a header.
func ReadScores(in io.Reader, comma rune) (ScoreTable, error) {
	reader := csv.NewReader(in)
	reader.Comma = comma
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var table ScoreTable
	rowIndex := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ScoreTable{}, fmt.Errorf("read score row %d: %w", rowIndex+1, err)
		}
		rowIndex++
		if blankRecord(record) {
			continue
		}

		var id string
		fields := record
		switch len(record) {
		case 2:
		case 3:
			id = strings.TrimSpace(record[0])
			fields = record[1:]
		default:
			return ScoreTable{}, fmt.Errorf("score row %d: expected 2 or 3 columns, got %d", rowIndex, len(record))
		}

		s0, err0 := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		s1, err1 := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err0 != nil || err1 != nil {
			if rowIndex == 1 {
				continue
			}
			return ScoreTable{}, fmt.Errorf("score row %d: non-numeric score", rowIndex)
		}
		if len(record) == 3 {
			table.IDs = append(table.IDs, id)
		}
		table.Pairs = append(table.Pairs, model.ScorePair{s0, s1})
	}
	if len(table.IDs) != 0 && len(table.IDs) != len(table.Pairs) {
		return ScoreTable{}, fmt.Errorf("score rows mix 2 and 3 columns")
	}
	if len(table.Pairs) == 0 {
		return ScoreTable{}, fmt.Errorf("no score rows")
	}
	return table, nil
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
