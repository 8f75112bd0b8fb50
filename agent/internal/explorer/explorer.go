// Package explorer compares heart-rate sessions side by side.
//
// Compare runs the same analysis over each file independently. A file that
// cannot be read or has no heart-rate column is reported in the failures
// list and the remaining files are still processed.
package explorer

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/hrstress/hrstress/agent/internal/ingest"
	"github.com/hrstress/hrstress/pkg/hrv"
	"github.com/hrstress/hrstress/pkg/types"
)

// Row is the summary of one session file.
type Row struct {
	File    string
	MeanHR  float64
	SDNN    float64
	RMSSD   float64
	PNN50   float64
	Samples int
	Stress  types.StressLevel
}

// MarshalJSON writes undefined values as null.
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		File    string            `json:"file"`
		MeanHR  *float64          `json:"mean_hr_bpm"`
		SDNN    *float64          `json:"sdnn_ms"`
		RMSSD   *float64          `json:"rmssd_ms"`
		PNN50   *float64          `json:"pnn50_percent"`
		Samples int               `json:"n"`
		Stress  types.StressLevel `json:"stress"`
	}{r.File, types.Optional(r.MeanHR), types.Optional(r.SDNN), types.Optional(r.RMSSD), types.Optional(r.PNN50), r.Samples, r.Stress})
}

// Failure records a file that could not be analysed.
type Failure struct {
	File string `json:"file"`
	Err  string `json:"error"`
}

// RowFromResult builds the summary row for an analysed file.
func RowFromResult(file string, res *hrv.Result) Row {
	return Row{
		File:    file,
		MeanHR:  res.HeartRate.Mean,
		SDNN:    res.Metrics.SDNN,
		RMSSD:   res.Metrics.RMSSD,
		PNN50:   res.Metrics.PNN50,
		Samples: len(res.Samples),
		Stress:  res.Stress.Level,
	}
}

// Compare analyses every path with opts. Rows and failures keep input order.
func Compare(paths []string, opts hrv.Options) ([]Row, []Failure) {
	var rows []Row
	var failures []Failure
	for _, p := range paths {
		name := filepath.Base(p)
		tbl, err := ingest.ReadFile(p)
		if err != nil {
			failures = append(failures, Failure{File: name, Err: err.Error()})
			continue
		}
		res, err := hrv.Analyze(tbl, opts)
		if err != nil {
			failures = append(failures, Failure{File: name, Err: err.Error()})
			continue
		}
		rows = append(rows, RowFromResult(name, res))
	}
	return rows, failures
}

var stressColors = map[types.StressLevel]lipgloss.Color{
	types.StressLow:    lipgloss.Color("2"),
	types.StressMedium: lipgloss.Color("3"),
	types.StressHigh:   lipgloss.Color("1"),
}

// RenderTable writes rows as a bordered terminal table. Stress levels are
// coloured when w is a terminal.
func RenderTable(w io.Writer, rows []Row) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("file", "mean_hr_bpm", "sdnn_ms", "rmssd_ms", "pnn50_percent", "n", "stress")

	for _, r := range rows {
		level := string(r.Stress)
		if c, ok := stressColors[r.Stress]; ok {
			level = lipgloss.NewStyle().Foreground(c).Render(level)
		}
		t.Row(r.File, num(r.MeanHR), num(r.SDNN), num(r.RMSSD), num(r.PNN50), fmt.Sprint(r.Samples), level)
	}

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// RenderJSON writes rows and failures as one JSON document.
func RenderJSON(w io.Writer, rows []Row, failures []Failure) error {
	if rows == nil {
		rows = []Row{}
	}
	if failures == nil {
		failures = []Failure{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Sessions []Row     `json:"sessions"`
		Failures []Failure `json:"failures"`
	}{rows, failures})
}

func num(v float64) string {
	if types.Optional(v) == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}
