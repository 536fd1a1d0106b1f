// Package dataset loads municipal hexagon CSVs and keeps them cached.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/hexselect/internal/core/model"
)

const (
	ColState        = "noment"
	ColMunicipality = "nomgeo"
	ColCell         = "h3_09"
	ColCatAE        = "catMunActEcon"
	ColCatPOB       = "catMunPob"
	ColCatAFL       = "catMunAfluLog"
	ColRankAE       = "rankMunActEco"
	ColRankPOB      = "rankMunPob"
	ColRankAFL      = "rankMunAfluLog"
)

var RequiredColumns = []string{
	ColState, ColMunicipality, ColCell,
	ColCatAE, ColCatPOB, ColCatAFL,
	ColRankAE, ColRankPOB, ColRankAFL,
}

var ErrEmpty = errors.New("empty csv")

type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: [%s]", strings.Join(e.Columns, ", "))
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads a whole CSV into a dataset.
func Parse(r io.Reader, id, source string) (*model.Dataset, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return parseBytes(body, id, source)
}

func parseBytes(body []byte, id, source string) (*model.Dataset, error) {
	hash := xxhash.Sum64(body)
	body = bytes.TrimPrefix(body, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(body))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	cols := columnIndex{
		state: idx[ColState], muni: idx[ColMunicipality], cell: idx[ColCell],
		catAE: idx[ColCatAE], catPOB: idx[ColCatPOB], catAFL: idx[ColCatAFL],
		rankAE: idx[ColRankAE], rankPOB: idx[ColRankPOB], rankAFL: idx[ColRankAFL],
	}

	rows := make([]model.Hexagon, 0, 256)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		rows = append(rows, cols.build(rec, len(header)))
	}

	return &model.Dataset{
		ID:       id,
		Source:   source,
		Hash:     hash,
		Columns:  header,
		Rows:     rows,
		LoadedAt: time.Now(),
	}, nil
}

type columnIndex struct {
	state, muni, cell        int
	catAE, catPOB, catAFL    int
	rankAE, rankPOB, rankAFL int
}

func (c columnIndex) build(rec []string, width int) model.Hexagon {
	// ragged rows are padded with blanks or truncated to the header width
	vals := make([]string, width)
	copy(vals, rec)

	h := model.Hexagon{
		State:        strings.TrimSpace(vals[c.state]),
		Municipality: strings.TrimSpace(vals[c.muni]),
		Cell:         strings.TrimSpace(vals[c.cell]),
		CatAE:        ConvertCategory(vals[c.catAE]),
		CatPOB:       ConvertCategory(vals[c.catPOB]),
		CatAFL:       ConvertCategory(vals[c.catAFL]),
		RankAE:       parseRank(vals[c.rankAE]),
		RankPOB:      parseRank(vals[c.rankPOB]),
		RankAFL:      parseRank(vals[c.rankAFL]),
	}
	vals[c.catAE] = h.CatAE.String()
	vals[c.catPOB] = h.CatPOB.String()
	vals[c.catAFL] = h.CatAFL.String()
	h.Values = vals
	return h
}

func parseRank(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
