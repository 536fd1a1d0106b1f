package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/hexselect/internal/core/model"
	"github.com/mohammed-shakir/hexselect/internal/dataset"
	"github.com/mohammed-shakir/hexselect/internal/engine"
	h3mapper "github.com/mohammed-shakir/hexselect/internal/mapper/h3"
	"github.com/mohammed-shakir/hexselect/internal/render"
)

var (
	flagCSV          string
	flagMethod       string
	flagState        string
	flagMunicipality string
	flagMinAE        string
	flagMinPOB       string
	flagMinAFL       string
	flagWAE          float64
	flagWPOB         float64
	flagWAFL         float64
	flagTopN         int
	flagLimit        int
	flagFormat       string
	flagOut          string
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Run a selection method against a CSV file",
	RunE:  runSelect,
}

func init() {
	def := engine.DefaultWeights()
	f := selectCmd.Flags()
	f.StringVar(&flagCSV, "csv", "", "dataset CSV (default: configured dataset path)")
	f.StringVarP(&flagMethod, "method", "m", "", "selection method A|B|C")
	f.StringVar(&flagState, "state", "", "filter by state (noment)")
	f.StringVar(&flagMunicipality, "municipality", "", "filter by municipality (nomgeo)")
	f.StringVar(&flagMinAE, "min-ae", "2", "method A minimum for economic activity (1..4 or off)")
	f.StringVar(&flagMinPOB, "min-pob", "2", "method A minimum for population (1..4 or off)")
	f.StringVar(&flagMinAFL, "min-afl", "2", "method A minimum for logistic affluence (1..4 or off)")
	f.Float64Var(&flagWAE, "w-ae", def.AE, "method B weight for economic activity")
	f.Float64Var(&flagWPOB, "w-pob", def.POB, "method B weight for population")
	f.Float64Var(&flagWAFL, "w-afl", def.AFL, "method B weight for logistic affluence")
	f.IntVar(&flagTopN, "top-n", engine.DefaultTopN, "method C top-N per ranking")
	f.IntVar(&flagLimit, "limit", engine.DefaultLimit, "rows to print")
	f.StringVarP(&flagFormat, "format", "f", "table", "output format: table|json|csv|geojson")
	f.StringVarP(&flagOut, "out", "o", "", "write to file instead of stdout")
	_ = selectCmd.MarkFlagRequired("method")
	rootCmd.AddCommand(selectCmd)
}

func runSelect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	if flagCSV != "" {
		cfg.Dataset.Path = flagCSV
	}
	log := newLogger(cfg, "cli", os.Stderr)

	method, err := model.ParseMethod(flagMethod)
	if err != nil {
		return err
	}
	req := engine.Request{
		DatasetID:    dataset.DefaultID,
		Method:       method,
		State:        flagState,
		Municipality: flagMunicipality,
		TopN:         flagTopN,
		Limit:        flagLimit,
		User:         "cli",
	}
	req.Weights.AE, req.Weights.POB, req.Weights.AFL = flagWAE, flagWPOB, flagWAFL
	if req.Thresholds.MinAE, err = thresholdFlag("min-ae", flagMinAE); err != nil {
		return err
	}
	if req.Thresholds.MinPOB, err = thresholdFlag("min-pob", flagMinPOB); err != nil {
		return err
	}
	if req.Thresholds.MinAFL, err = thresholdFlag("min-afl", flagMinAFL); err != nil {
		return err
	}

	reg, err := dataset.NewRegistry(dataset.Config{DefaultPath: cfg.Dataset.Path}, log)
	if err != nil {
		return err
	}
	geo := h3mapper.New()
	res, err := engine.New(reg, geo, engine.Options{Logger: log}).Run(context.Background(), req)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "  warning: %s\n", w)
	}

	out := cmd.OutOrStdout()
	if flagOut != "" {
		f, err := os.Create(flagOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", flagOut, err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	switch strings.ToLower(flagFormat) {
	case "table", "":
		return writeTable(out, res)
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "csv":
		if flagOut == "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "  suggested file name: %s\n", render.FileName(res))
		}
		return render.WriteCSV(out, res)
	case "geojson":
		fc, warnings := render.MapLayer(geo, res.Rows, fmt.Sprintf("Top %d hexagons, method %s", len(res.Rows), res.Method))
		for _, w := range warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "  warning: %s\n", w)
		}
		return json.NewEncoder(out).Encode(fc)
	default:
		return fmt.Errorf("unknown format %q (want table|json|csv|geojson)", flagFormat)
	}
}

func thresholdFlag(name, raw string) (*int, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "off", "none":
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("--%s: expected 1..4 or off, got %q", name, raw)
	}
	return &n, nil
}

func writeTable(w io.Writer, res *model.Result) error {
	if len(res.Rows) == 0 {
		_, err := fmt.Fprintf(w, "method %s: no hexagons selected (%d after filter)\n", res.Method, res.Filtered)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "method %s: %d of %d selected, showing %d\n\n", res.Method, res.Total, res.Filtered, len(res.Rows))

	switch res.Method {
	case model.MethodIntersection:
		fmt.Fprintln(tw, "#\th3_09\tcoincidencias\tAE\tPOB\tAFL\tlatitud\tlongitud")
		for _, r := range res.Rows {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n", r.Index, r.Cell, r.Coincidences,
				yesNo(r.InAE), yesNo(r.InPOB), yesNo(r.InAFL), coord(r.Lat), coord(r.Lng))
		}
	default:
		header := "#\th3_09\tnoment\tnomgeo\tAE\tPOB\tAFL"
		if res.Method == model.MethodWeighted {
			header += "\tscore\tscore_norm"
		}
		fmt.Fprintln(tw, header+"\tlatitud\tlongitud")
		for _, r := range res.Rows {
			line := fmt.Sprintf("%d\t%s\t%s\t%s\t%s\t%s\t%s", r.Index, r.Cell, r.State, r.Municipality,
				category(r.CatAE), category(r.CatPOB), category(r.CatAFL))
			if res.Method == model.MethodWeighted {
				line += fmt.Sprintf("\t%s\t%s", number(r.Score, 3), number(r.ScoreNorm, 1))
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", line, coord(r.Lat), coord(r.Lng))
		}
	}
	return tw.Flush()
}

func category(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func number(f *float64, prec int) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', prec, 64)
}

func coord(f *float64) string { return number(f, 6) }

func yesNo(b *bool) string {
	if b == nil || !*b {
		return "no"
	}
	return "yes"
}
