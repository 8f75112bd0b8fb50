package explorer

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hrstress/hrstress/pkg/hrv"
	"github.com/hrstress/hrstress/pkg/types"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestCompare_MixedBatch(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"calm.csv":   "hr\n60\n62\n61\n63\n",
		"tense.csv":  "bpm\n100\n100\n100\n",
		"nohr.csv":   "time,steps\n2025-01-01,10\n",
		"single.tsv": "heart_rate\n70\n",
	})
	paths := []string{
		filepath.Join(dir, "calm.csv"),
		filepath.Join(dir, "nohr.csv"),
		filepath.Join(dir, "missing.csv"),
		filepath.Join(dir, "tense.csv"),
		filepath.Join(dir, "single.tsv"),
	}

	rows, failures := Compare(paths, hrv.Options{})

	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].File != "calm.csv" || rows[1].File != "tense.csv" || rows[2].File != "single.tsv" {
		t.Errorf("row order = %s, %s, %s", rows[0].File, rows[1].File, rows[2].File)
	}
	if rows[1].Stress != types.StressHigh || rows[1].Samples != 3 {
		t.Errorf("tense row = %+v", rows[1])
	}
	if rows[2].Stress != types.StressUnknown {
		t.Errorf("single-sample stress = %q, want Unknown", rows[2].Stress)
	}

	if len(failures) != 2 {
		t.Fatalf("failures = %+v, want 2", failures)
	}
	if failures[0].File != "nohr.csv" || !strings.Contains(failures[0].Err, "heart rate") {
		t.Errorf("failure[0] = %+v", failures[0])
	}
	if failures[1].File != "missing.csv" {
		t.Errorf("failure[1] = %+v", failures[1])
	}
}

func TestCompare_HintsApplyToEveryFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.csv": "pulse\n70\n72\n",
		"b.csv": "pulse,hr\n80\n82\n",
	})
	rows, failures := Compare([]string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")},
		hrv.Options{Hints: hrv.Hints{HeartRate: "pulse"}})
	if len(failures) != 0 || len(rows) != 2 {
		t.Fatalf("rows=%d failures=%+v", len(rows), failures)
	}
	if rows[1].MeanHR != 81 {
		t.Errorf("b mean HR = %v, want 81 from the pulse column", rows[1].MeanHR)
	}
}

func TestRenderTable(t *testing.T) {
	rows := []Row{
		{File: "calm.csv", MeanHR: 61.5, SDNN: 20, RMSSD: 35.25, PNN50: 10, Samples: 4, Stress: types.StressLow},
		{File: "short.csv", MeanHR: 70, SDNN: nan(), RMSSD: nan(), PNN50: nan(), Samples: 1, Stress: types.StressUnknown},
	}
	var buf bytes.Buffer
	if err := RenderTable(&buf, rows); err != nil {
		t.Fatalf("RenderTable: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"mean_hr_bpm", "calm.csv", "35.25", "Low", "short.csv", "n/a", "Unknown"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderJSON(t *testing.T) {
	rows := []Row{{File: "x.csv", MeanHR: 70, SDNN: nan(), RMSSD: nan(), PNN50: nan(), Samples: 1, Stress: types.StressUnknown}}
	var buf bytes.Buffer
	if err := RenderJSON(&buf, rows, nil); err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}

	var doc struct {
		Sessions []map[string]any `json:"sessions"`
		Failures []Failure        `json:"failures"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(doc.Sessions) != 1 || doc.Failures == nil {
		t.Fatalf("doc = %+v", doc)
	}
	s := doc.Sessions[0]
	if s["rmssd_ms"] != nil || s["mean_hr_bpm"] != 70.0 || s["n"] != 1.0 || s["stress"] != "Unknown" {
		t.Errorf("session = %v", s)
	}
}

func nan() float64 { return types.Value(nil) }
