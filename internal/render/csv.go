package render

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/mohammed-shakir/hexselect/internal/core/model"
)

// FileName follows top10_metodo_<M>_<n>_hexagonos.csv.
func FileName(res *model.Result) string {
	return fmt.Sprintf("top10_metodo_%s_%d_hexagonos.csv", res.Method, len(res.Rows))
}

// WriteCSV writes the result rows. Methods A and B export every dataset
// column; C exports its coincidence table. All add latitud/longitud.
func WriteCSV(w io.Writer, res *model.Result) error {
	cw := csv.NewWriter(w)

	var header []string
	switch res.Method {
	case model.MethodIntersection:
		header = []string{"h3_09", "coincidencias", "esta_en_AE", "esta_en_POB", "esta_en_AFL"}
	default:
		header = append(header, res.Columns...)
		if res.Method == model.MethodWeighted {
			header = append(header, "score", "score_norm")
		}
	}
	header = append(header, "latitud", "longitud")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}

	for _, r := range res.Rows {
		var rec []string
		switch res.Method {
		case model.MethodIntersection:
			rec = []string{r.Cell, strconv.Itoa(r.Coincidences), pyBool(r.InAE), pyBool(r.InPOB), pyBool(r.InAFL)}
		default:
			rec = make([]string, 0, len(header))
			rec = append(rec, r.Values...)
			for len(rec) < len(res.Columns) {
				rec = append(rec, "")
			}
			if res.Method == model.MethodWeighted {
				rec = append(rec, fmtFloat(r.Score), fmtFloat(r.ScoreNorm))
			}
		}
		rec = append(rec, fmtFloat(r.Lat), fmtFloat(r.Lng))
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("csv row %d: %w", r.Index, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csv flush: %w", err)
	}
	return nil
}

func fmtFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// pandas spelling, the downloads are opened by the same notebooks
func pyBool(b *bool) string {
	if b != nil && *b {
		return "True"
	}
	return "False"
}
